package galton

import (
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"zero rows", func(c *Config) { c.Board.RowCount = 0 }, "row_count"},
		{"negative spacing", func(c *Config) { c.Board.PegSpacing = -1 }, "peg_spacing"},
		{"zero gravity", func(c *Config) { c.Board.Gravity = 0 }, "gravity"},
		{"zero restitution", func(c *Config) { c.Board.Restitution = 0 }, "restitution"},
		{"restitution above one", func(c *Config) { c.Board.Restitution = 1.01 }, "restitution"},
		{"bias too large", func(c *Config) { c.Board.HorizontalBias = 1.5 }, "horizontal_bias"},
		{"NaN bias", func(c *Config) { c.Board.HorizontalBias = math.NaN() }, "horizontal_bias"},
		{"pegs overlap", func(c *Config) { c.Board.BallRadius = 0.45 }, "peg_spacing/2"},
		{"negative interval", func(c *Config) { c.Run.SpawnIntervalMs = -1 }, "spawn_interval_ms"},
		{"no active balls", func(c *Config) { c.Run.MaxActiveBalls = 0 }, "max_active_balls"},
		{"negative total", func(c *Config) { c.Run.TotalBalls = -5 }, "total_balls"},
		{"jitter misses top peg", func(c *Config) { c.Run.SpawnJitter = 0.3 }, "spawn_jitter"},
		{"negative workers", func(c *Config) { c.Run.Workers = -1 }, "workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfiguration) {
				t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error does not name %s: %v", tt.field, err)
			}
		})
	}
}

func TestValidate_Boundaries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Board.Restitution = 1
	cfg.Board.HorizontalBias = -1
	cfg.Run.SpawnIntervalMs = 0
	cfg.Run.TotalBalls = 0

	if err := cfg.Validate(); err != nil {
		t.Errorf("boundary values rejected: %v", err)
	}
}

func TestBiasProbability(t *testing.T) {
	tests := []struct {
		bias, want float64
	}{
		{0, 0.5},
		{1, 1},
		{-1, 0},
		{0.5, 0.75},
		{2, 1},
	}

	for _, tt := range tests {
		if got := BiasProbability(tt.bias); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("BiasProbability(%g) = %g, want %g", tt.bias, got, tt.want)
		}
	}
}

func TestBallError(t *testing.T) {
	err := &BallError{BallID: 4, Tick: 9, Wrapped: ErrInvalidState}

	if !errors.Is(err, ErrInvalidState) {
		t.Error("BallError does not unwrap")
	}
	if !strings.Contains(err.Error(), "ball 4 (tick 9)") {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestParallelFor(t *testing.T) {
	tests := []struct {
		name              string
		n, chunk, workers int
	}{
		{"empty", 0, 4, 4},
		{"inline", 10, 32, 8},
		{"single worker", 100, 1, 1},
		{"split", 1000, 16, 8},
		{"uneven", 101, 10, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits := make([]int32, tt.n)
			var calls int32
			ParallelFor(tt.n, tt.chunk, tt.workers, func(start, end int) {
				atomic.AddInt32(&calls, 1)
				for i := start; i < end; i++ {
					atomic.AddInt32(&hits[i], 1)
				}
			})

			for i, h := range hits {
				if h != 1 {
					t.Fatalf("index %d visited %d times", i, h)
				}
			}
			if int(calls) > tt.workers && tt.workers > 0 {
				t.Errorf("%d chunks for %d workers", calls, tt.workers)
			}
		})
	}
}
