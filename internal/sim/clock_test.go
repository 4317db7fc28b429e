package sim

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/san-kum/galtonsim/internal/galton"
	"github.com/san-kum/galtonsim/internal/metrics"
)

const testDt = 1.0 / 60

func testConfig(rows, total int, seed int64) galton.Config {
	cfg := galton.DefaultConfig()
	cfg.Board.RowCount = rows
	cfg.Run.TotalBalls = total
	cfg.Run.SpawnIntervalMs = 0
	cfg.Run.MaxActiveBalls = 64
	cfg.Run.Seed = &seed
	return cfg
}

func newClock(t *testing.T, cfg galton.Config) *Clock {
	t.Helper()
	c, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("new clock: %v", err)
	}
	return c
}

func runAll(t *testing.T, c *Clock) galton.Snapshot {
	t.Helper()
	snap, err := RunToCompletion(context.Background(), c, testDt)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return snap
}

func TestClock_SumInvariant(t *testing.T) {
	c := newClock(t, testConfig(10, 200, 1))
	snap := runAll(t, c)

	sum := 0
	for _, n := range snap.Bins {
		sum += n
	}
	if sum != snap.Settled {
		t.Errorf("bins sum to %d but %d balls settled", sum, snap.Settled)
	}
	if snap.Settled+snap.Dropped != 200 {
		t.Errorf("expected 200 balls accounted for, got %d settled + %d dropped", snap.Settled, snap.Dropped)
	}
	if snap.Dropped != 0 {
		t.Errorf("expected no dropped balls, got %d: %v", snap.Dropped, c.Errors())
	}
	if len(snap.Balls) != 0 {
		t.Errorf("expected no balls in flight, got %d", len(snap.Balls))
	}
}

func TestClock_InvariantHoldsEveryTick(t *testing.T) {
	c := newClock(t, testConfig(8, 100, 2))
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 100000 && c.Phase() == galton.Running; i++ {
		snap := c.Tick(testDt)
		sum := 0
		for _, n := range snap.Bins {
			sum += n
		}
		if sum != snap.Settled {
			t.Fatalf("tick %d: bins sum %d != settled %d", snap.Tick, sum, snap.Settled)
		}
		if snap.Settled+len(snap.Balls)+snap.Dropped != snap.Spawned {
			t.Fatalf("tick %d: %d settled + %d active + %d dropped != %d spawned",
				snap.Tick, snap.Settled, len(snap.Balls), snap.Dropped, snap.Spawned)
		}
		for j := 1; j < len(snap.Balls); j++ {
			if snap.Balls[j].ID <= snap.Balls[j-1].ID {
				t.Fatalf("tick %d: balls out of id order", snap.Tick)
			}
		}
	}
}

func TestClock_Deterministic(t *testing.T) {
	a := runAll(t, newClock(t, testConfig(12, 300, 99)))
	b := runAll(t, newClock(t, testConfig(12, 300, 99)))

	if !reflect.DeepEqual(a.Bins, b.Bins) {
		t.Errorf("same seed gave different histograms:\n%v\n%v", a.Bins, b.Bins)
	}
	if a.Tick != b.Tick {
		t.Errorf("same seed took %d and %d ticks", a.Tick, b.Tick)
	}
}

func TestClock_DeterministicAcrossWorkers(t *testing.T) {
	serial := testConfig(10, 400, 5)
	serial.Run.MaxActiveBalls = 200
	serial.Run.Workers = 1

	parallel := serial
	parallel.Run.Workers = 4

	a := runAll(t, newClock(t, serial))
	b := runAll(t, newClock(t, parallel))

	if !reflect.DeepEqual(a.Bins, b.Bins) {
		t.Errorf("worker count changed the histogram:\n%v\n%v", a.Bins, b.Bins)
	}
}

func TestClock_ResetKeepsLattice(t *testing.T) {
	c := newClock(t, testConfig(10, 50, 3))
	lat := c.Lattice()
	runAll(t, c)

	c.Reset()

	if c.Lattice() != lat {
		t.Error("lattice rebuilt although the board did not change")
	}
	snap := c.Snapshot()
	if snap.Settled != 0 || len(snap.Balls) != 0 || snap.Spawned != 0 {
		t.Errorf("reset left state behind: %+v", snap)
	}
	for i, n := range snap.Bins {
		if n != 0 {
			t.Errorf("bin %d not cleared: %d", i, n)
		}
	}
	if c.Phase() != galton.Idle {
		t.Errorf("expected idle after reset, got %s", c.Phase())
	}

	// A run-only change keeps the lattice too.
	cfg := c.Config()
	cfg.Run.MaxActiveBalls = 3
	if err := c.Configure(cfg); err != nil {
		t.Fatal(err)
	}
	c.Reset()
	if c.Lattice() != lat {
		t.Error("lattice rebuilt for a run-only change")
	}
}

func TestClock_ResetReplaysSeed(t *testing.T) {
	c := newClock(t, testConfig(10, 100, 17))
	first := runAll(t, c)

	c.Reset()
	second := runAll(t, c)

	if !reflect.DeepEqual(first.Bins, second.Bins) {
		t.Errorf("fixed seed did not replay after reset:\n%v\n%v", first.Bins, second.Bins)
	}
}

func TestClock_RowCountChangeResizes(t *testing.T) {
	c := newClock(t, testConfig(10, 30, 4))
	runAll(t, c)

	cfg := c.Config()
	cfg.Board.RowCount = 16
	if err := c.Configure(cfg); err != nil {
		t.Fatal(err)
	}

	if len(c.Counts()) != 11 {
		t.Errorf("configure alone changed the bins to %d", len(c.Counts()))
	}

	c.Reset()

	if got := len(c.Counts()); got != 17 {
		t.Errorf("expected 17 bins, got %d", got)
	}
	if c.Lattice().Rows() != 16 || c.Lattice().Len() != 16*17/2 {
		t.Errorf("lattice not regenerated: %d rows, %d pegs", c.Lattice().Rows(), c.Lattice().Len())
	}

	snap := runAll(t, c)
	if snap.Settled != 30 {
		t.Errorf("expected 30 settled on the new board, got %d", snap.Settled)
	}
}

func TestClock_ConfigureRejectsInvalid(t *testing.T) {
	c := newClock(t, testConfig(10, 30, 4))

	cfg := c.Config()
	cfg.Board.PegSpacing = -1
	err := c.Configure(cfg)

	if !errors.Is(err, galton.ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration, got %v", err)
	}
	if c.Pending() {
		t.Error("invalid config was staged")
	}
}

func TestClock_SpawnInterval(t *testing.T) {
	cfg := testConfig(10, 0, 6)
	cfg.Run.SpawnIntervalMs = 100
	cfg.Run.MaxActiveBalls = 10
	c := newClock(t, cfg)
	c.Start()

	want := []int{1, 1, 2, 2, 3, 3}
	for i, w := range want {
		snap := c.Tick(0.05)
		if snap.Spawned != w {
			t.Errorf("tick %d: expected %d spawned, got %d", i+1, w, snap.Spawned)
		}
	}
}

func TestClock_ActiveCap(t *testing.T) {
	cfg := testConfig(10, 0, 7)
	cfg.Run.MaxActiveBalls = 5
	c := newClock(t, cfg)
	c.Start()

	for i := 0; i < 20; i++ {
		snap := c.Tick(testDt)
		if len(snap.Balls) > 5 {
			t.Fatalf("tick %d: %d balls in flight, cap is 5", i, len(snap.Balls))
		}
	}
	if n := len(c.Snapshot().Balls); n != 5 {
		t.Errorf("expected cap to be filled, got %d", n)
	}
}

func TestClock_ZeroDtNeverSettles(t *testing.T) {
	c := newClock(t, testConfig(10, 10, 8))
	c.Start()

	var snap galton.Snapshot
	for i := 0; i < 500; i++ {
		snap = c.Tick(0)
	}

	if snap.Settled != 0 {
		t.Errorf("expected nothing settled, got %d", snap.Settled)
	}
	if len(snap.Balls) == 0 {
		t.Error("expected balls to stay in flight")
	}
	if snap.Phase != galton.Running {
		t.Errorf("expected running, got %s", snap.Phase)
	}
}

func TestClock_DropsInvalidBall(t *testing.T) {
	c := newClock(t, testConfig(10, 3, 9))
	c.Start()
	c.Tick(testDt)

	c.flights[0].ball.VY = math.NaN()
	snap := c.Tick(testDt)

	if snap.Dropped != 1 {
		t.Fatalf("expected 1 dropped ball, got %d", snap.Dropped)
	}
	errs := c.Errors()
	if len(errs) != 1 || !errors.Is(errs[0], galton.ErrInvalidState) {
		t.Fatalf("expected one ErrInvalidState, got %v", errs)
	}
	var berr *galton.BallError
	if !errors.As(errs[0], &berr) || berr.BallID != 0 {
		t.Errorf("expected BallError for ball 0, got %v", errs[0])
	}

	snap = runAll(t, c)
	if snap.Settled != 2 || snap.Phase != galton.Complete {
		t.Errorf("expected the other two balls to finish, got %+v", snap)
	}
}

func TestClock_MetricsAndDistribution(t *testing.T) {
	c := newClock(t, testConfig(10, 500, 11))
	defl := metrics.NewDeflections()
	thr := metrics.NewThroughput()
	c.AddMetric(defl)
	c.AddMetric(thr)

	runAll(t, c)

	if defl.Min() != 10 || defl.Value() != 10 {
		t.Errorf("expected every ball to bounce 10 times, min %d mean %f", defl.Min(), defl.Value())
	}
	if thr.Value() <= 0 {
		t.Errorf("expected positive throughput, got %f", thr.Value())
	}

	cmp := c.Comparison()
	if cmp.Total != 500 {
		t.Errorf("expected comparison over 500 balls, got %d", cmp.Total)
	}
	if math.Abs(cmp.ObservedMean-5) > 0.5 {
		t.Errorf("observed mean %f too far from 5", cmp.ObservedMean)
	}
	if math.Abs(cmp.ObservedStdDev-math.Sqrt(2.5)) > 0.5 {
		t.Errorf("observed std %f too far from %f", cmp.ObservedStdDev, math.Sqrt(2.5))
	}
}

type countingObserver struct{ ticks, landed int }

func (o *countingObserver) OnTick(snap galton.Snapshot, landed []galton.Landing) {
	o.ticks++
	o.landed += len(landed)
}

func TestClock_Observer(t *testing.T) {
	c := newClock(t, testConfig(6, 20, 12))
	obs := &countingObserver{}
	c.AddObserver(obs)

	snap := runAll(t, c)

	if uint64(obs.ticks) != snap.Tick {
		t.Errorf("observer saw %d ticks, clock ran %d", obs.ticks, snap.Tick)
	}
	if obs.landed != 20 {
		t.Errorf("observer saw %d landings, expected 20", obs.landed)
	}
}

func TestRunToCompletion_Unbounded(t *testing.T) {
	c := newClock(t, testConfig(6, 0, 13))

	if _, err := RunToCompletion(context.Background(), c, testDt); !errors.Is(err, galton.ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestRunToCompletion_Cancelled(t *testing.T) {
	c := newClock(t, testConfig(6, 1000, 14))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := RunToCompletion(ctx, c, testDt); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestEnsemble(t *testing.T) {
	cfg := testConfig(8, 100, 0)
	e := NewEnsemble(cfg, 4, 100, testDt, zerolog.Nop())
	e.NewMetrics = metrics.Standard

	results, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Seed != 100+int64(i) {
			t.Errorf("run %d: expected seed %d, got %d", i, 100+i, r.Seed)
		}
		if r.Comparison.Total != 100 {
			t.Errorf("run %d: expected 100 balls, got %d", i, r.Comparison.Total)
		}
		if _, ok := r.Metrics["throughput"]; !ok {
			t.Errorf("run %d: missing throughput metric", i)
		}
	}

	again := runAll(t, newClock(t, testConfig(8, 100, 102)))
	if !reflect.DeepEqual(results[2].Counts, again.Bins) {
		t.Error("ensemble run differs from a single run with the same seed")
	}

	s := Summarize(results)
	if s.Runs != 4 || s.MeanObservedMean <= 0 || s.MaxTotalVariation < s.MeanTotalVariation {
		t.Errorf("unexpected spread: %+v", s)
	}
}
