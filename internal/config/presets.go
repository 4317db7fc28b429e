package config

import "sort"

func seed(v int64) *int64 { return &v }

// Presets are named starting points; files, environment and flags are
// applied on top.
var Presets = map[string]*Config{
	"classic": DefaultConfig(),
	"biased": func() *Config {
		c := DefaultConfig()
		c.Board.HorizontalBias = 0.4
		c.Run.TotalBalls = 1000
		return c
	}(),
	"tall": func() *Config {
		c := DefaultConfig()
		c.Board.RowCount = 80
		c.Run.MaxActiveBalls = 64
		c.Run.SpawnIntervalMs = 20
		c.Run.TotalBalls = 2000
		c.Run.Workers = 0
		return c
	}(),
	"wide": func() *Config {
		c := DefaultConfig()
		c.Board.RowCount = 24
		c.Board.PegSpacing = 0.5
		c.Board.PegRadius = 0.05
		c.Board.BallRadius = 0.08
		c.Board.SpawnJitter = 0.01
		c.Run.MaxActiveBalls = 32
		return c
	}(),
	"quick": func() *Config {
		c := DefaultConfig()
		c.Board.RowCount = 8
		c.Run.SpawnIntervalMs = 0
		c.Run.MaxActiveBalls = 128
		c.Run.TotalBalls = 2000
		c.Run.RandomSeed = seed(1)
		return c
	}(),
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
