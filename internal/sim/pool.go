package sim

import (
	"math/rand"
	"sync"

	"github.com/san-kum/galtonsim/internal/galton"
	"github.com/san-kum/galtonsim/internal/physics"
)

// flight is one ball in the air together with its private random stream and
// the outcome of its last physics step.
type flight struct {
	ball  *galton.Ball
	rng   *rand.Rand
	event physics.Event
	err   error
}

// flightPool recycles flights so a long run does not allocate a ball, a
// path slice and a rand.Rand per spawn.
type flightPool struct {
	pool sync.Pool
}

func newFlightPool() *flightPool {
	return &flightPool{
		pool: sync.Pool{
			New: func() interface{} {
				return &flight{
					ball: &galton.Ball{},
					rng:  rand.New(rand.NewSource(0)),
				}
			},
		},
	}
}

func (p *flightPool) Get(id uint64, x, y float64, seed int64) *flight {
	f := p.pool.Get().(*flight)
	*f.ball = galton.Ball{ID: id, X: x, Y: y, State: galton.Falling, Bin: -1, Path: f.ball.Path[:0]}
	f.rng.Seed(seed)
	f.event = physics.None
	f.err = nil
	return f
}

func (p *flightPool) Put(f *flight) {
	p.pool.Put(f)
}
