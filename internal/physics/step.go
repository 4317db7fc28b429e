package physics

import (
	"math"

	"github.com/san-kum/galtonsim/internal/galton"
	"github.com/san-kum/galtonsim/internal/lattice"
)

// Source is the per-ball random stream. *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

type Event int

const (
	None Event = iota
	Deflected
	Landed
)

func (e Event) String() string {
	switch e {
	case Deflected:
		return "deflected"
	case Landed:
		return "landed"
	default:
		return "none"
	}
}

// Advance moves b forward by dt seconds. The step is split into sub-steps
// short enough that the ball cannot pass through a peg between two checks.
// At most one peg collision is resolved per call; if a second contact comes
// up the ball holds its position for the rest of dt.
//
// Settled balls and non-positive dt leave b untouched.
func Advance(b *galton.Ball, lat *lattice.Lattice, board galton.BoardConfig, dt float64, src Source) (Event, error) {
	if b.State == galton.Settled || !(dt > 0) {
		return None, nil
	}
	if !b.IsValid() {
		return None, galton.ErrInvalidState
	}

	contact := board.ContactDistance()
	budget := contact / 2
	g := board.Gravity
	bottom := lat.Bottom()

	event := None
	collided := false
	remaining := dt

	for remaining > 0 {
		h := budget / (2*(math.Abs(b.VX)+math.Abs(b.VY)) + 2*math.Sqrt(g*budget))
		if h > remaining {
			h = remaining
		}
		if !(h > 0) {
			return event, galton.ErrInvalidState
		}

		vy := b.VY + g*h
		x := b.X + b.VX*h
		y := b.Y + b.VY*h + 0.5*g*h*h

		if peg, ok := firstContact(lat, b.NextRow, x, y, contact); ok {
			if collided {
				break
			}
			collided = true
			event = Deflected
			deflect(b, lat, board, peg, x, y, vy, src)
			remaining -= h
			continue
		}

		if y >= bottom {
			// Interpolate to the crossing so the landing x does not depend
			// on where the sub-step happened to end.
			frac := (bottom - b.Y) / (y - b.Y)
			cx := b.X + (x-b.X)*frac
			b.X, _ = lat.ClampX(cx)
			b.Y = bottom
			b.VX, b.VY = 0, 0
			b.State = galton.Settled
			if !b.IsValid() {
				return Landed, galton.ErrInvalidState
			}
			return Landed, nil
		}

		b.X, b.Y, b.VY = x, y, vy
		if cx, clamped := lat.ClampX(b.X); clamped {
			b.X = cx
			b.VX = 0
		}
		remaining -= h
	}

	if !b.IsValid() {
		return event, galton.ErrInvalidState
	}
	return event, nil
}

// firstContact scans candidate pegs top-to-bottom, left-to-right and returns
// the first one the ball at (x, y) overlaps. Rows above fromRow have already
// been passed and are skipped.
func firstContact(lat *lattice.Lattice, fromRow int, x, y, contact float64) (lattice.Peg, bool) {
	lo, hi := lat.RowsNear(y)
	if lo < fromRow {
		lo = fromRow
	}
	for r := lo; r <= hi; r++ {
		for _, p := range lat.Row(r) {
			if math.Hypot(x-p.X, y-p.Y) < contact {
				return p, true
			}
		}
	}
	return lattice.Peg{}, false
}

func deflect(b *galton.Ball, lat *lattice.Lattice, board galton.BoardConfig, p lattice.Peg, x, y, vy float64, src Source) {
	contact := board.ContactDistance()

	nx, ny := 0.0, -1.0
	if d := math.Hypot(x-p.X, y-p.Y); d > 0 {
		nx, ny = (x-p.X)/d, (y-p.Y)/d
	}
	b.X = p.X + nx*contact
	b.Y = p.Y + ny*contact
	b.VY = vy * board.Restitution

	dir := int8(-1)
	if src.Float64() < board.PRight() {
		dir = 1
	}

	b.NextRow = p.Row + 1
	b.Slot = p.Col
	if dir > 0 {
		b.Slot++
	}
	b.Path = append(b.Path, dir)

	speed := board.DeflectionSpeed
	if speed <= 0 {
		speed = slotSpeed(b, lat, board)
	}
	b.VX = float64(dir) * speed
}

// slotSpeed is the horizontal speed that brings the ball over its next slot
// (peg top or bin centre) by the time it has fallen to that height.
func slotSpeed(b *galton.Ball, lat *lattice.Lattice, board galton.BoardConfig) float64 {
	target := lat.SlotX(b.NextRow, b.Slot)

	var fall float64
	if b.NextRow < lat.Rows() {
		fall = float64(b.NextRow)*lat.Spacing() - board.ContactDistance() - b.Y
	} else {
		fall = lat.Bottom() - b.Y
	}
	if fall <= 0 {
		fall = lat.Spacing() / 2
	}

	g := board.Gravity
	vy := b.VY
	t := (-vy + math.Sqrt(vy*vy+2*g*fall)) / g
	if !(t > 0) {
		return 0
	}
	return math.Abs(target-b.X) / t
}
