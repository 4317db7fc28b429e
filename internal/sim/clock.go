// Package sim drives a Galton board run: spawning, stepping, accumulation
// and the run-state machine around them.
package sim

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/san-kum/galtonsim/internal/analysis"
	"github.com/san-kum/galtonsim/internal/bins"
	"github.com/san-kum/galtonsim/internal/galton"
	"github.com/san-kum/galtonsim/internal/lattice"
	"github.com/san-kum/galtonsim/internal/physics"
)

// minParallelBalls is the per-goroutine chunk below which the physics pass
// stays on the calling goroutine.
const minParallelBalls = 32

const maxKeptErrors = 64

// Clock owns one run. It is not safe for concurrent use; callers that share
// a clock between goroutines serialise access themselves.
type Clock struct {
	cfg     galton.Config
	pending *galton.Config

	lat *lattice.Lattice
	acc *bins.Accumulator
	cmp *analysis.Comparer

	seed   int64
	master *rand.Rand
	pool   *flightPool

	phase      galton.Phase
	flights    []*flight // ascending ball id
	nextID     uint64
	spawned    int
	dropped    int
	tick       uint64
	time       float64
	sinceSpawn float64 // ms
	errs       []error

	metrics   []galton.Metric
	observers []galton.Observer
	log       zerolog.Logger
}

// New validates cfg and returns an Idle clock with its lattice built.
func New(cfg galton.Config, log zerolog.Logger) (*Clock, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Clock{
		cfg:  cfg,
		pool: newFlightPool(),
		log:  log.With().Str("component", "clock").Logger(),
	}
	c.lat = lattice.Generate(cfg.Board.RowCount, cfg.Board.PegSpacing, cfg.Board.PegRadius)
	c.acc = bins.New(c.lat, log)
	c.cmp = analysis.ForBoard(cfg.Board, cfg.Run.NormalThreshold)
	c.reseed()

	c.log.Debug().
		Int("rows", cfg.Board.RowCount).
		Int("pegs", c.lat.Len()).
		Int64("seed", c.seed).
		Msg("clock ready")
	return c, nil
}

func (c *Clock) AddMetric(m galton.Metric)     { c.metrics = append(c.metrics, m) }
func (c *Clock) AddObserver(o galton.Observer) { c.observers = append(c.observers, o) }

func (c *Clock) Phase() galton.Phase          { return c.phase }
func (c *Clock) Config() galton.Config        { return c.cfg }
func (c *Clock) Lattice() *lattice.Lattice    { return c.lat }
func (c *Clock) Comparer() *analysis.Comparer { return c.cmp }
func (c *Clock) Counts() []int                { return c.acc.Counts() }
func (c *Clock) Clamped() int                 { return c.acc.Clamped() }

// Seed is the seed the current run was started from. When the config leaves
// the seed unset it is drawn from the wall clock at every reset.
func (c *Clock) Seed() int64 { return c.seed }

// Errors returns the most recent per-ball failures of this run.
func (c *Clock) Errors() []error {
	out := make([]error, len(c.errs))
	copy(out, c.errs)
	return out
}

func (c *Clock) Metrics() []galton.Metric { return c.metrics }

// Configure stages cfg for the next Reset. The running board is untouched
// until then.
func (c *Clock) Configure(cfg galton.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.pending = &cfg
	return nil
}

// Pending reports whether a staged config is waiting for Reset.
func (c *Clock) Pending() bool { return c.pending != nil }

func (c *Clock) Start() error {
	if c.phase != galton.Idle {
		return c.transitionErr("start")
	}
	c.phase = galton.Running
	// The first ball drops on the first tick.
	c.sinceSpawn = float64(c.cfg.Run.SpawnIntervalMs)
	c.log.Info().Int64("seed", c.seed).Int("total", c.cfg.Run.TotalBalls).Msg("run started")
	return nil
}

func (c *Clock) Pause() error {
	if c.phase != galton.Running {
		return c.transitionErr("pause")
	}
	c.phase = galton.Paused
	return nil
}

func (c *Clock) Resume() error {
	if c.phase != galton.Paused {
		return c.transitionErr("resume")
	}
	c.phase = galton.Running
	return nil
}

// Toggle starts an idle clock and flips between running and paused.
func (c *Clock) Toggle() error {
	switch c.phase {
	case galton.Idle:
		return c.Start()
	case galton.Running:
		return c.Pause()
	case galton.Paused:
		return c.Resume()
	}
	return c.transitionErr("toggle")
}

// Reset returns to Idle from any phase with no balls and zeroed bins. A
// staged config is applied first; the lattice is rebuilt only if the board
// changed.
func (c *Clock) Reset() {
	if c.pending != nil {
		next := *c.pending
		c.pending = nil

		if next.Board != c.cfg.Board {
			c.lat = lattice.Generate(next.Board.RowCount, next.Board.PegSpacing, next.Board.PegRadius)
			c.acc.Resize(c.lat)
			c.log.Info().Int("rows", next.Board.RowCount).Int("bins", c.acc.Len()).Msg("board rebuilt")
		}
		if next.Board != c.cfg.Board || next.Run.NormalThreshold != c.cfg.Run.NormalThreshold {
			c.cmp = analysis.ForBoard(next.Board, next.Run.NormalThreshold)
		}
		c.cfg = next
	}

	for _, f := range c.flights {
		c.pool.Put(f)
	}
	c.flights = nil
	c.acc.Reset()

	c.phase = galton.Idle
	c.nextID = 0
	c.spawned = 0
	c.dropped = 0
	c.tick = 0
	c.time = 0
	c.sinceSpawn = 0
	c.errs = nil
	c.reseed()

	for _, m := range c.metrics {
		m.Reset()
	}
}

// Tick advances a running clock by dt seconds and returns the new
// snapshot. Outside Running it only reports the current state.
func (c *Clock) Tick(dt float64) galton.Snapshot {
	if c.phase != galton.Running {
		return c.Snapshot()
	}
	if !(dt >= 0) || math.IsInf(dt, 0) {
		c.log.Warn().Float64("dt", dt).Msg("ignoring tick with invalid dt")
		return c.Snapshot()
	}

	c.tick++
	c.time += dt

	c.spawn()
	c.sinceSpawn += dt * 1000
	c.step(dt)
	landed := c.collect()

	if c.finished() {
		c.phase = galton.Complete
		c.log.Info().
			Int("settled", c.acc.Total()).
			Int("dropped", c.dropped).
			Float64("time", c.time).
			Msg("run complete")
	}

	snap := c.Snapshot()
	for _, m := range c.metrics {
		m.Observe(snap, landed, dt)
	}
	for _, o := range c.observers {
		o.OnTick(snap, landed)
	}
	return snap
}

// Snapshot is the current frame: active balls by id and bin counts.
func (c *Clock) Snapshot() galton.Snapshot {
	balls := make([]galton.BallPos, len(c.flights))
	for i, f := range c.flights {
		balls[i] = galton.BallPos{ID: f.ball.ID, X: f.ball.X, Y: f.ball.Y}
	}
	return galton.Snapshot{
		Tick:    c.tick,
		Time:    c.time,
		Phase:   c.phase,
		Balls:   balls,
		Bins:    c.acc.Counts(),
		Spawned: c.spawned,
		Settled: c.acc.Total(),
		Dropped: c.dropped,
		Total:   c.cfg.Run.TotalBalls,
	}
}

// Comparison reports the current histogram against the expected mass.
func (c *Clock) Comparison() analysis.Comparison {
	return c.cmp.Compare(c.acc.Counts())
}

func (c *Clock) canSpawn() bool {
	if len(c.flights) >= c.cfg.Run.MaxActiveBalls {
		return false
	}
	return c.cfg.Run.TotalBalls == 0 || c.spawned < c.cfg.Run.TotalBalls
}

func (c *Clock) spawn() {
	interval := float64(c.cfg.Run.SpawnIntervalMs)
	for c.canSpawn() && c.sinceSpawn >= interval {
		jitter := (c.master.Float64()*2 - 1) * c.cfg.Run.SpawnJitter
		f := c.pool.Get(c.nextID, jitter, c.lat.SpawnY(), c.master.Int63())
		c.flights = append(c.flights, f)
		c.nextID++
		c.spawned++
		c.sinceSpawn -= interval
	}
	// A blocked spawn fires as soon as room frees up, without a burst of
	// backlog.
	if c.sinceSpawn > interval {
		c.sinceSpawn = interval
	}
}

func (c *Clock) step(dt float64) {
	workers := c.cfg.Run.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	board := c.cfg.Board
	galton.ParallelFor(len(c.flights), minParallelBalls, workers, func(start, end int) {
		for _, f := range c.flights[start:end] {
			f.event, f.err = physics.Advance(f.ball, c.lat, board, dt, f.rng)
		}
	})
}

// collect hands landed balls to the accumulator in id order and compacts
// the active set.
func (c *Clock) collect() []galton.Landing {
	var landed []galton.Landing
	kept := c.flights[:0]

	for _, f := range c.flights {
		b := f.ball
		if f.err != nil {
			c.drop(f, f.err)
			continue
		}
		if b.State != galton.Settled {
			kept = append(kept, f)
			continue
		}

		idx, err := c.acc.Settle(b)
		if err != nil {
			c.drop(f, err)
			continue
		}
		landed = append(landed, galton.Landing{
			ID:          b.ID,
			X:           b.X,
			Bin:         idx,
			Deflections: len(b.Path),
		})
		c.pool.Put(f)
	}

	for i := len(kept); i < len(c.flights); i++ {
		c.flights[i] = nil
	}
	c.flights = kept
	return landed
}

func (c *Clock) drop(f *flight, err error) {
	berr := &galton.BallError{BallID: f.ball.ID, Tick: c.tick, Wrapped: err}
	c.dropped++
	if len(c.errs) >= maxKeptErrors {
		c.errs = c.errs[1:]
	}
	c.errs = append(c.errs, berr)
	c.log.Error().Err(berr).Uint64("ball", f.ball.ID).Msg("ball dropped")
	c.pool.Put(f)
}

func (c *Clock) finished() bool {
	total := c.cfg.Run.TotalBalls
	return total > 0 && c.spawned >= total && len(c.flights) == 0
}

func (c *Clock) reseed() {
	if c.cfg.Run.Seed != nil {
		c.seed = *c.cfg.Run.Seed
	} else {
		c.seed = time.Now().UnixNano()
	}
	c.master = rand.New(rand.NewSource(c.seed))
}

func (c *Clock) transitionErr(action string) error {
	return fmt.Errorf("%w: cannot %s while %s", galton.ErrInvalidTransition, action, c.phase)
}

// RunToCompletion starts c if idle and ticks it by dt until every ball of
// the budget has landed or ctx is done.
func RunToCompletion(ctx context.Context, c *Clock, dt float64) (galton.Snapshot, error) {
	if c.cfg.Run.TotalBalls <= 0 {
		return c.Snapshot(), fmt.Errorf("%w: total_balls must be > 0 to run to completion", galton.ErrInvalidConfiguration)
	}
	if !(dt > 0) {
		return c.Snapshot(), fmt.Errorf("dt must be positive, got %f", dt)
	}
	switch c.phase {
	case galton.Idle:
		if err := c.Start(); err != nil {
			return c.Snapshot(), err
		}
	case galton.Paused:
		if err := c.Resume(); err != nil {
			return c.Snapshot(), err
		}
	}

	snap := c.Snapshot()
	for snap.Phase == galton.Running {
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		default:
		}
		snap = c.Tick(dt)
	}
	return snap, nil
}
