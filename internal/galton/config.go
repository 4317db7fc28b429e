package galton

import (
	"fmt"
	"math"
	"strings"
)

// BoardConfig fixes the geometry and physics of one run. Changing any field
// requires a full reset: new lattice, no balls, zeroed bins.
type BoardConfig struct {
	RowCount       int     `json:"row_count"`
	PegSpacing     float64 `json:"peg_spacing"`
	Gravity        float64 `json:"gravity"`
	Restitution    float64 `json:"restitution"`
	HorizontalBias float64 `json:"horizontal_bias"`
	PegRadius      float64 `json:"peg_radius"`
	BallRadius     float64 `json:"ball_radius"`

	// DeflectionSpeed is the horizontal speed given by a bounce. Zero means
	// the speed is solved per bounce so the ball reaches its next slot.
	DeflectionSpeed float64 `json:"deflection_speed"`
}

// RunConfig paces spawning and stepping. It can change between runs without
// regenerating the lattice.
type RunConfig struct {
	SpawnIntervalMs int    `json:"spawn_interval_ms"`
	MaxActiveBalls  int    `json:"max_active_balls"`
	TotalBalls      int    `json:"total_balls"` // 0 = unlimited
	Seed            *int64 `json:"seed,omitempty"`

	// SpawnJitter is the half-width of the uniform horizontal offset a new
	// ball gets around top-centre.
	SpawnJitter float64 `json:"spawn_jitter"`

	Workers         int `json:"workers"`
	NormalThreshold int `json:"normal_threshold"`
}

// Config is everything a simulation clock needs.
type Config struct {
	Board BoardConfig `json:"board"`
	Run   RunConfig   `json:"run"`
}

// DefaultNormalThreshold is the row count above which the expected
// distribution switches to the normal approximation.
const DefaultNormalThreshold = 60

func DefaultBoard() BoardConfig {
	return BoardConfig{
		RowCount:       12,
		PegSpacing:     1.0,
		Gravity:        9.81,
		Restitution:    0.6,
		HorizontalBias: 0,
		PegRadius:      0.1,
		BallRadius:     0.15,
	}
}

func DefaultRun() RunConfig {
	return RunConfig{
		SpawnIntervalMs: 100,
		MaxActiveBalls:  8,
		TotalBalls:      500,
		SpawnJitter:     0.02,
		Workers:         1,
		NormalThreshold: DefaultNormalThreshold,
	}
}

func DefaultConfig() Config {
	return Config{Board: DefaultBoard(), Run: DefaultRun()}
}

// ContactDistance is the centre distance below which a ball touches a peg.
func (b BoardConfig) ContactDistance() float64 {
	return b.BallRadius + b.PegRadius
}

// PRight is the probability of a rightward deflection at one peg.
func (b BoardConfig) PRight() float64 {
	return BiasProbability(b.HorizontalBias)
}

// BiasProbability maps a horizontal bias in [-1, 1] to the per-peg
// probability of deflecting right. An unbiased board gives 0.5.
func BiasProbability(bias float64) float64 {
	p := (1 + bias) / 2
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Validate collects every violation and reports them together.
func (c Config) Validate() error {
	var errs []string
	b, r := c.Board, c.Run

	if b.RowCount < 1 {
		errs = append(errs, fmt.Sprintf("row_count must be >= 1, got %d", b.RowCount))
	}
	if !positive(b.PegSpacing) {
		errs = append(errs, fmt.Sprintf("peg_spacing must be > 0, got %g", b.PegSpacing))
	}
	if !positive(b.Gravity) {
		errs = append(errs, fmt.Sprintf("gravity must be > 0, got %g", b.Gravity))
	}
	if !(b.Restitution > 0 && b.Restitution <= 1) {
		errs = append(errs, fmt.Sprintf("restitution must be in (0,1], got %g", b.Restitution))
	}
	if !(b.HorizontalBias >= -1 && b.HorizontalBias <= 1) {
		errs = append(errs, fmt.Sprintf("horizontal_bias must be in [-1,1], got %g", b.HorizontalBias))
	}
	if !positive(b.PegRadius) {
		errs = append(errs, fmt.Sprintf("peg_radius must be > 0, got %g", b.PegRadius))
	}
	if !positive(b.BallRadius) {
		errs = append(errs, fmt.Sprintf("ball_radius must be > 0, got %g", b.BallRadius))
	}
	if positive(b.PegSpacing) && b.ContactDistance() >= b.PegSpacing/2 {
		errs = append(errs, fmt.Sprintf("ball_radius + peg_radius must be < peg_spacing/2, got %g", b.ContactDistance()))
	}
	if b.DeflectionSpeed < 0 || math.IsNaN(b.DeflectionSpeed) || math.IsInf(b.DeflectionSpeed, 0) {
		errs = append(errs, fmt.Sprintf("deflection_speed must be >= 0, got %g", b.DeflectionSpeed))
	}

	if r.SpawnIntervalMs < 0 {
		errs = append(errs, fmt.Sprintf("spawn_interval_ms must be >= 0, got %d", r.SpawnIntervalMs))
	}
	if r.MaxActiveBalls < 1 {
		errs = append(errs, fmt.Sprintf("max_active_balls must be >= 1, got %d", r.MaxActiveBalls))
	}
	if r.TotalBalls < 0 {
		errs = append(errs, fmt.Sprintf("total_balls must be >= 0, got %d", r.TotalBalls))
	}
	if r.SpawnJitter < 0 || math.IsNaN(r.SpawnJitter) {
		errs = append(errs, fmt.Sprintf("spawn_jitter must be >= 0, got %g", r.SpawnJitter))
	} else if r.SpawnJitter >= b.ContactDistance() && b.ContactDistance() > 0 {
		errs = append(errs, fmt.Sprintf("spawn_jitter must be < ball_radius + peg_radius, got %g", r.SpawnJitter))
	}
	if r.Workers < 0 {
		errs = append(errs, fmt.Sprintf("workers must be >= 0, got %d", r.Workers))
	}
	if r.NormalThreshold < 1 {
		errs = append(errs, fmt.Sprintf("normal_threshold must be >= 1, got %d", r.NormalThreshold))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfiguration, strings.Join(errs, "; "))
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
