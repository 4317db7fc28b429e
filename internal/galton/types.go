package galton

import (
	"fmt"
	"math"
)

type BallState int

const (
	Falling BallState = iota
	Settled
)

func (s BallState) String() string {
	switch s {
	case Falling:
		return "falling"
	case Settled:
		return "settled"
	default:
		return fmt.Sprintf("BallState(%d)", int(s))
	}
}

// Ball is one ball in flight. Physics owns X, Y, VX and VY; once State is
// Settled nothing may change except Bin, which the accumulator sets once.
type Ball struct {
	ID    uint64
	X, Y  float64
	VX    float64
	VY    float64
	State BallState

	// NextRow and Slot describe the slot the ball is committed to: the peg
	// (NextRow, Slot) while NextRow < rows, or bin Slot after the last row.
	NextRow int
	Slot    int
	Path    []int8 // -1 left, +1 right, one entry per deflection

	Bin int // -1 until recorded by the accumulator
}

func NewBall(id uint64, x, y float64) *Ball {
	return &Ball{ID: id, X: x, Y: y, State: Falling, Bin: -1}
}

func (b *Ball) IsValid() bool {
	for _, v := range [...]float64{b.X, b.Y, b.VX, b.VY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Rights counts rightward deflections along the ball's path.
func (b *Ball) Rights() int {
	n := 0
	for _, d := range b.Path {
		if d > 0 {
			n++
		}
	}
	return n
}

// Landing is what remains of a ball after it settles.
type Landing struct {
	ID          uint64  `json:"id"`
	X           float64 `json:"x"`
	Bin         int     `json:"bin"`
	Deflections int     `json:"deflections"`
}

// Phase is the simulation clock's run state.
type Phase int

const (
	Idle Phase = iota
	Running
	Paused
	Complete
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	for _, candidate := range [...]Phase{Idle, Running, Paused, Complete} {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("galton: unknown phase %q", text)
}

// BallPos is a ball's position as seen by a renderer.
type BallPos struct {
	ID uint64  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Snapshot is the read-only per-frame view of a run. Balls are ordered by
// id and Bins by index; both slices are owned by the snapshot.
type Snapshot struct {
	Tick    uint64    `json:"tick"`
	Time    float64   `json:"time"`
	Phase   Phase     `json:"phase"`
	Balls   []BallPos `json:"balls"`
	Bins    []int     `json:"bins"`
	Spawned int       `json:"spawned"`
	Settled int       `json:"settled"`
	Dropped int       `json:"dropped"`
	Total   int       `json:"total"`
}

// Progress is the settled fraction of the ball budget, or 0 when unlimited.
func (s Snapshot) Progress() float64 {
	if s.Total <= 0 {
		return 0
	}
	return float64(s.Settled) / float64(s.Total)
}

// Metric accumulates a scalar over the ticks of a run.
type Metric interface {
	Name() string
	Observe(snap Snapshot, landed []Landing, dt float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnTick(snap Snapshot, landed []Landing)
}
