package config

import (
	"fmt"
	"os"
	"strconv"
)

// ApplyEnv overlays GALTON_* environment variables. Flags named in changed
// were set explicitly on the command line and are left alone.
func ApplyEnv(cfg *Config, changed map[string]bool) error {
	s := newSetter(changed)

	s.setInt("rows", "GALTON_ROWS", &cfg.Board.RowCount)
	s.setFloat("spacing", "GALTON_PEG_SPACING", &cfg.Board.PegSpacing)
	s.setFloat("gravity", "GALTON_GRAVITY", &cfg.Board.Gravity)
	s.setFloat("restitution", "GALTON_RESTITUTION", &cfg.Board.Restitution)
	s.setFloat("bias", "GALTON_BIAS", &cfg.Board.HorizontalBias)
	s.setFloat("deflection-speed", "GALTON_DEFLECTION_SPEED", &cfg.Board.DeflectionSpeed)

	s.setInt("interval", "GALTON_SPAWN_INTERVAL_MS", &cfg.Run.SpawnIntervalMs)
	s.setInt("max-active", "GALTON_MAX_ACTIVE", &cfg.Run.MaxActiveBalls)
	s.setInt("balls", "GALTON_TOTAL_BALLS", &cfg.Run.TotalBalls)
	s.setSeed("seed", "GALTON_SEED", &cfg.Run.RandomSeed)
	s.setFloat("dt", "GALTON_DT", &cfg.Run.Dt)
	s.setInt("workers", "GALTON_WORKERS", &cfg.Run.Workers)

	s.setString("addr", "GALTON_ADDR", &cfg.Serve.Addr)

	return s.err
}

// setter records the first parse failure and skips the rest, so ApplyEnv
// reads as a flat list.
type setter struct {
	changed map[string]bool
	err     error
}

func newSetter(changed map[string]bool) *setter {
	return &setter{changed: changed}
}

func (s *setter) lookup(flag, env string) (string, bool) {
	if s.err != nil || s.changed[flag] {
		return "", false
	}
	v := os.Getenv(env)
	return v, v != ""
}

func (s *setter) setString(flag, env string, dst *string) {
	if v, ok := s.lookup(flag, env); ok {
		*dst = v
	}
}

func (s *setter) setInt(flag, env string, dst *int) {
	v, ok := s.lookup(flag, env)
	if !ok {
		return
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		s.err = fmt.Errorf("parse %s: %w", env, err)
		return
	}
	*dst = i
}

func (s *setter) setFloat(flag, env string, dst *float64) {
	v, ok := s.lookup(flag, env)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		s.err = fmt.Errorf("parse %s: %w", env, err)
		return
	}
	*dst = f
}

func (s *setter) setSeed(flag, env string, dst **int64) {
	v, ok := s.lookup(flag, env)
	if !ok {
		return
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		s.err = fmt.Errorf("parse %s: %w", env, err)
		return
	}
	*dst = &i
}
