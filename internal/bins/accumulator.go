// Package bins turns landed balls into histogram counts.
package bins

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/san-kum/galtonsim/internal/galton"
	"github.com/san-kum/galtonsim/internal/lattice"
)

// Accumulator counts settled balls per bin. Bins are spacing-wide and
// cover the board from Left to Right, so bin k is centred under the slot a
// ball reaches after k rightward deflections.
//
// It is not safe for concurrent use; the clock calls it from its serial
// accumulation pass.
type Accumulator struct {
	counts  []int
	total   int
	clamped int
	left    float64
	right   float64
	width   float64
	log     zerolog.Logger
}

func New(lat *lattice.Lattice, log zerolog.Logger) *Accumulator {
	a := &Accumulator{log: log.With().Str("component", "bins").Logger()}
	a.Resize(lat)
	return a
}

// Resize adopts a new lattice geometry and clears all counts.
func (a *Accumulator) Resize(lat *lattice.Lattice) {
	a.counts = make([]int, lat.BinCount())
	a.left = lat.Left()
	a.right = lat.Right()
	a.width = lat.BinWidth()
	a.total = 0
	a.clamped = 0
}

// Index maps a terminal x to its bin. Both walls belong to the board, so a
// ball resting against the right wall is in the last bin. ok is false when
// x fell outside the board and had to be clamped.
func (a *Accumulator) Index(x float64) (idx int, ok bool) {
	f := math.Floor((x - a.left) / a.width)
	last := len(a.counts) - 1
	switch {
	case math.IsNaN(f):
		return 0, false
	case f < 0:
		return 0, false
	case f > float64(last):
		return last, x <= a.right
	}
	return int(f), true
}

// Settle records b once and stamps b.Bin. A ball still falling or already
// recorded is rejected without touching the counts.
func (a *Accumulator) Settle(b *galton.Ball) (int, error) {
	if b.State != galton.Settled {
		return -1, fmt.Errorf("ball %d: %w", b.ID, galton.ErrNotSettled)
	}
	if b.Bin >= 0 {
		return b.Bin, fmt.Errorf("ball %d already in bin %d: %w", b.ID, b.Bin, galton.ErrDuplicateSettlement)
	}

	idx, ok := a.Index(b.X)
	if !ok {
		a.clamped++
		a.log.Warn().
			Err(galton.ErrBinIndexOutOfRange).
			Uint64("ball", b.ID).
			Float64("x", b.X).
			Int("bin", idx).
			Msg("landing outside board, clamped")
	}

	a.counts[idx]++
	a.total++
	b.Bin = idx
	return idx, nil
}

// Counts returns a copy ordered by bin index.
func (a *Accumulator) Counts() []int {
	out := make([]int, len(a.counts))
	copy(out, a.counts)
	return out
}

func (a *Accumulator) Len() int     { return len(a.counts) }
func (a *Accumulator) Total() int   { return a.total }
func (a *Accumulator) Clamped() int { return a.clamped }

// Reset zeroes every bin, keeping the geometry.
func (a *Accumulator) Reset() {
	for i := range a.counts {
		a.counts[i] = 0
	}
	a.total = 0
	a.clamped = 0
}
