package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/san-kum/galtonsim/internal/config"
	"github.com/san-kum/galtonsim/internal/logging"
)

var (
	configFile string
	preset     string
	envFile    string
	logLevel   string
	dataDir    string

	// Board and run overrides. Only flags given on the command line are
	// applied, so file and environment values survive.
	rows            int
	spacing         float64
	gravity         float64
	restitution     float64
	bias            float64
	deflectionSpeed float64
	interval        int
	maxActive       int
	balls           int
	seed            int64
	dt              float64
	workers         int
	addr            string
)

// main runs the command named on the command line, exiting with status 1 on
// error.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "galton",
		Short:         "galton board simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			return logging.SetLevel(logLevel)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "config file (.yaml or .toml)")
	pf.StringVarP(&preset, "preset", "p", "", "start from a named preset")
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file with GALTON_* overrides")
	pf.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&dataDir, "data", ".galton", "report directory")

	pf.IntVar(&rows, "rows", 0, "number of peg rows")
	pf.Float64Var(&spacing, "spacing", 0, "peg spacing")
	pf.Float64Var(&gravity, "gravity", 0, "gravitational acceleration")
	pf.Float64Var(&restitution, "restitution", 0, "vertical restitution at a peg (0,1]")
	pf.Float64Var(&bias, "bias", 0, "horizontal bias in [-1,1]")
	pf.Float64Var(&deflectionSpeed, "deflection-speed", 0, "fixed sideways speed after a hit (0 aims at the next slot)")
	pf.IntVar(&interval, "interval", 0, "spawn interval in ms")
	pf.IntVar(&maxActive, "max-active", 0, "maximum balls in flight")
	pf.IntVar(&balls, "balls", 0, "total balls to drop (0 = unlimited)")
	pf.Int64Var(&seed, "seed", 0, "random seed")
	pf.Float64Var(&dt, "dt", 0, "simulated seconds per tick")
	pf.IntVar(&workers, "workers", 0, "physics goroutines (0 = one per CPU)")

	rootCmd.AddCommand(
		newRunCmd(),
		newLiveCmd(),
		newServeCmd(),
		newExpectedCmd(),
		newEnsembleCmd(),
		newPresetsCmd(),
		newBenchCmd(),
		newListCmd(),
		newPlotCmd(),
		newSweepCmd(),
	)
	return rootCmd
}

// loadConfig resolves the run configuration: preset or defaults, then the
// config file, then GALTON_* variables, then flags given explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		if cfg = config.GetPreset(preset); cfg == nil {
			return nil, fmt.Errorf("unknown preset %q (have %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		if err := config.Decode(configFile, cfg); err != nil {
			return nil, err
		}
	}
	if err := finish(cmd, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish layers the environment and explicit flags over cfg.
func finish(cmd *cobra.Command, cfg *config.Config) error {
	changed := make(map[string]bool)
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if err := config.ApplyEnv(cfg, changed); err != nil {
		return err
	}

	for name := range changed {
		switch name {
		case "rows":
			cfg.Board.RowCount = rows
		case "spacing":
			cfg.Board.PegSpacing = spacing
		case "gravity":
			cfg.Board.Gravity = gravity
		case "restitution":
			cfg.Board.Restitution = restitution
		case "bias":
			cfg.Board.HorizontalBias = bias
		case "deflection-speed":
			cfg.Board.DeflectionSpeed = deflectionSpeed
		case "interval":
			cfg.Run.SpawnIntervalMs = interval
		case "max-active":
			cfg.Run.MaxActiveBalls = maxActive
		case "balls":
			cfg.Run.TotalBalls = balls
		case "seed":
			s := seed
			cfg.Run.RandomSeed = &s
		case "dt":
			cfg.Run.Dt = dt
		case "workers":
			cfg.Run.Workers = workers
		case "addr":
			cfg.Serve.Addr = addr
		}
	}
	return nil
}
