package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/galtonsim/internal/galton"
)

const (
	DefaultDt       = 1.0 / 60
	DefaultAddr     = ":8080"
	DefaultStreamHz = 30

	// MinDt and MaxDt bound one tick, in seconds. The server paces ticks
	// in wall time, so dt has to be a usable ticker period.
	MinDt       = 1e-6
	MaxDt       = 1.0
	MaxStreamHz = 1000
)

// Config is the on-disk form of a run. YAML and TOML files map onto it, with
// the format chosen by file extension; the HTTP API uses the same keys in JSON.
type Config struct {
	Board BoardConfig `json:"board" yaml:"board" toml:"board"`
	Run   RunConfig   `json:"run" yaml:"run" toml:"run"`
	Serve ServeConfig `json:"serve" yaml:"serve" toml:"serve"`
}

type BoardConfig struct {
	RowCount        int     `json:"row_count" yaml:"row_count" toml:"row_count"`
	PegSpacing      float64 `json:"peg_spacing" yaml:"peg_spacing" toml:"peg_spacing"`
	Gravity         float64 `json:"gravity" yaml:"gravity" toml:"gravity"`
	Restitution     float64 `json:"restitution" yaml:"restitution" toml:"restitution"`
	HorizontalBias  float64 `json:"horizontal_bias" yaml:"horizontal_bias" toml:"horizontal_bias"`
	PegRadius       float64 `json:"peg_radius" yaml:"peg_radius" toml:"peg_radius"`
	BallRadius      float64 `json:"ball_radius" yaml:"ball_radius" toml:"ball_radius"`
	DeflectionSpeed float64 `json:"deflection_speed" yaml:"deflection_speed" toml:"deflection_speed"`
	SpawnJitter     float64 `json:"spawn_jitter" yaml:"spawn_jitter" toml:"spawn_jitter"`
}

type RunConfig struct {
	SpawnIntervalMs int     `json:"spawn_interval_ms" yaml:"spawn_interval_ms" toml:"spawn_interval_ms"`
	MaxActiveBalls  int     `json:"max_active_balls" yaml:"max_active_balls" toml:"max_active_balls"`
	TotalBalls      int     `json:"total_balls" yaml:"total_balls" toml:"total_balls"`
	RandomSeed      *int64  `json:"random_seed,omitempty" yaml:"random_seed,omitempty" toml:"random_seed,omitempty"`
	Dt              float64 `json:"dt" yaml:"dt" toml:"dt"`
	Workers         int     `json:"workers" yaml:"workers" toml:"workers"`
	NormalThreshold int     `json:"normal_threshold" yaml:"normal_threshold" toml:"normal_threshold"`
}

type ServeConfig struct {
	Addr     string `json:"addr" yaml:"addr" toml:"addr"`
	StreamHz int    `json:"stream_hz" yaml:"stream_hz" toml:"stream_hz"`
}

// StepPeriod is dt as wall time.
func (r RunConfig) StepPeriod() time.Duration {
	return time.Duration(r.Dt * float64(time.Second))
}

// Period is the wall time between two streamed frames.
func (s ServeConfig) Period() time.Duration {
	return time.Second / time.Duration(s.StreamHz)
}

func DefaultConfig() *Config {
	b := galton.DefaultBoard()
	r := galton.DefaultRun()
	return &Config{
		Board: BoardConfig{
			RowCount:        b.RowCount,
			PegSpacing:      b.PegSpacing,
			Gravity:         b.Gravity,
			Restitution:     b.Restitution,
			HorizontalBias:  b.HorizontalBias,
			PegRadius:       b.PegRadius,
			BallRadius:      b.BallRadius,
			DeflectionSpeed: b.DeflectionSpeed,
			SpawnJitter:     r.SpawnJitter,
		},
		Run: RunConfig{
			SpawnIntervalMs: r.SpawnIntervalMs,
			MaxActiveBalls:  r.MaxActiveBalls,
			TotalBalls:      r.TotalBalls,
			Dt:              DefaultDt,
			Workers:         r.Workers,
			NormalThreshold: r.NormalThreshold,
		},
		Serve: ServeConfig{
			Addr:     DefaultAddr,
			StreamHz: DefaultStreamHz,
		},
	}
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	if c.Run.RandomSeed != nil {
		seed := *c.Run.RandomSeed
		out.Run.RandomSeed = &seed
	}
	return &out
}

// Load reads path over the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := Decode(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode overlays the file at path onto cfg. Keys missing from the file
// keep cfg's values.
func Decode(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if isTOML(path) {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func Save(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Engine converts the file form into what the simulation clock takes.
func (c *Config) Engine() galton.Config {
	var seed *int64
	if c.Run.RandomSeed != nil {
		s := *c.Run.RandomSeed
		seed = &s
	}
	return galton.Config{
		Board: galton.BoardConfig{
			RowCount:        c.Board.RowCount,
			PegSpacing:      c.Board.PegSpacing,
			Gravity:         c.Board.Gravity,
			Restitution:     c.Board.Restitution,
			HorizontalBias:  c.Board.HorizontalBias,
			PegRadius:       c.Board.PegRadius,
			BallRadius:      c.Board.BallRadius,
			DeflectionSpeed: c.Board.DeflectionSpeed,
		},
		Run: galton.RunConfig{
			SpawnIntervalMs: c.Run.SpawnIntervalMs,
			MaxActiveBalls:  c.Run.MaxActiveBalls,
			TotalBalls:      c.Run.TotalBalls,
			Seed:            seed,
			SpawnJitter:     c.Board.SpawnJitter,
			Workers:         c.Run.Workers,
			NormalThreshold: c.Run.NormalThreshold,
		},
	}
}

// Validate checks the engine settings and the fields only the CLI uses.
func (c *Config) Validate() error {
	var errs []string
	if err := c.Engine().Validate(); err != nil {
		errs = append(errs, strings.TrimPrefix(err.Error(), galton.ErrInvalidConfiguration.Error()+": "))
	}
	if !(c.Run.Dt >= MinDt && c.Run.Dt <= MaxDt) {
		errs = append(errs, fmt.Sprintf("dt must be in [%g, %g], got %g", MinDt, MaxDt, c.Run.Dt))
	}
	if c.Serve.StreamHz < 1 || c.Serve.StreamHz > MaxStreamHz {
		errs = append(errs, fmt.Sprintf("stream_hz must be in [1, %d], got %d", MaxStreamHz, c.Serve.StreamHz))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", galton.ErrInvalidConfiguration, strings.Join(errs, "; "))
	}
	return nil
}
