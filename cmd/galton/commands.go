package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/guptarohit/asciigraph"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/san-kum/galtonsim/internal/analysis"
	"github.com/san-kum/galtonsim/internal/config"
	"github.com/san-kum/galtonsim/internal/galton"
	"github.com/san-kum/galtonsim/internal/logging"
	"github.com/san-kum/galtonsim/internal/metrics"
	"github.com/san-kum/galtonsim/internal/report"
	"github.com/san-kum/galtonsim/internal/server"
	"github.com/san-kum/galtonsim/internal/sim"
	"github.com/san-kum/galtonsim/internal/sweep"
	"github.com/san-kum/galtonsim/internal/viz"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newRunCmd() *cobra.Command {
	var (
		save     bool
		jsonOut  bool
		showPlot bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "drop a fixed number of balls and compare the result with theory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := logging.Logger()

			clock, err := sim.New(cfg.Engine(), log)
			if err != nil {
				return err
			}
			for _, m := range metrics.Standard() {
				clock.AddMetric(m)
			}

			ctx, cancel := signalContext()
			defer cancel()

			start := time.Now()
			snap, err := sim.RunToCompletion(ctx, clock, cfg.Run.Dt)
			if err != nil {
				return err
			}
			elapsed := time.Since(start)

			sum := &report.Summary{
				Preset:     preset,
				Seed:       clock.Seed(),
				Config:     *cfg,
				Ticks:      snap.Tick,
				Time:       snap.Time,
				Settled:    snap.Settled,
				Dropped:    snap.Dropped,
				Clamped:    clock.Clamped(),
				Comparison: clock.Comparison(),
				Metrics:    metrics.Values(clock.Metrics()),
			}

			if save {
				st := report.New(dataDir)
				if err := st.Init(); err != nil {
					return err
				}
				runID, err := st.Save(sum)
				if err != nil {
					return err
				}
				canvas := viz.NewCanvas(72, 30)
				viz.DrawBoard(canvas, clock.Lattice(), snap)
				if err := st.SaveBoard(runID, canvas); err != nil {
					return err
				}
				log.Info().Str("run", runID).Str("dir", filepath.Join(dataDir, runID)).Msg("report saved")
			}

			if jsonOut {
				return report.WriteJSON(os.Stdout, sum)
			}

			fmt.Printf("%d balls on %d rows, seed %d, %d ticks (%.1fs simulated, %s wall)\n\n",
				snap.Settled, cfg.Board.RowCount, sum.Seed, snap.Tick, snap.Time, elapsed.Round(time.Millisecond))
			if showPlot {
				fmt.Println(plotComparison(sum.Comparison))
				fmt.Println()
			}
			return printComparison(os.Stdout, sum.Comparison, sum.Metrics)
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "write a report under --data")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the summary as JSON")
	cmd.Flags().BoolVar(&showPlot, "plot", true, "plot observed vs expected")
	return cmd
}

func plotComparison(cmp analysis.Comparison) string {
	return asciigraph.PlotMany(
		[][]float64{cmp.Observed, cmp.Expected},
		asciigraph.Height(12),
		asciigraph.Width(60),
		asciigraph.SeriesColors(asciigraph.Cyan, asciigraph.Yellow),
		asciigraph.Caption("observed (cyan) vs expected (yellow) by bin"),
	)
}

func printComparison(out io.Writer, cmp analysis.Comparison, values map[string]float64) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tOBSERVED\tEXPECTED")
	fmt.Fprintf(w, "mean\t%.4f\t%.4f\n", cmp.ObservedMean, cmp.ExpectedMean)
	fmt.Fprintf(w, "std dev\t%.4f\t%.4f\n", cmp.ObservedStdDev, cmp.ExpectedStdDev)
	fmt.Fprintf(w, "chi-square\t%.4f\t\n", cmp.ChiSquare)
	fmt.Fprintf(w, "total variation\t%.4f\t\n", cmp.TotalVariation)
	fmt.Fprintf(w, "model\t%s (p=%.3f)\t\n", cmp.Method, cmp.P)

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%.4f\t\n", name, values[name])
	}
	return w.Flush()
}

func newLiveCmd() *cobra.Command {
	var (
		watch   bool
		theme   string
		logFile string
	)
	cmd := &cobra.Command{
		Use:   "live",
		Short: "watch the board fill up in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			// The viewer owns the terminal.
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
				if err != nil {
					return err
				}
				defer f.Close()
				logging.SetOutput(f)
			} else {
				logging.SetOutput(io.Discard)
			}
			defer logging.SetOutput(os.Stderr)
			log := logging.Logger()

			clock, err := sim.New(cfg.Engine(), log)
			if err != nil {
				return err
			}
			for _, m := range metrics.Standard() {
				clock.AddMetric(m)
			}

			model := viz.NewModel(clock, cfg.Run.Dt).WithTheme(theme)

			ctx, cancel := signalContext()
			defer cancel()
			if watch && configFile != "" {
				w := newWatcher(cmd, log)
				go func() {
					if err := w.Run(ctx); err != nil {
						log.Error().Err(err).Msg("config watcher stopped")
					}
				}()
				model = model.WithUpdates(w.Updates())
			}

			_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			if err != nil && ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", true, "reload --config when it changes")
	cmd.Flags().StringVar(&theme, "theme", viz.Themes[0].Name, "color theme ("+strings.Join(viz.ThemeNames(), ", ")+")")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs here while the viewer runs")
	return cmd
}

// newWatcher reloads --config over the same preset and reapplies env and
// flags, so an edit to the file behaves like a restart.
func newWatcher(cmd *cobra.Command, log zerolog.Logger) *config.Watcher {
	w := config.NewWatcher(configFile, config.DefaultDebounce, log)
	w.Base = func() *config.Config {
		if p := config.GetPreset(preset); p != nil {
			return p
		}
		return config.DefaultConfig()
	}
	w.Finish = func(cfg *config.Config) error { return finish(cmd, cfg) }
	return w
}

func newServeCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the board behind an HTTP API and websocket stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := logging.Logger()
			if log.GetLevel() > zerolog.DebugLevel {
				gin.SetMode(gin.ReleaseMode)
			}

			srv, err := server.New(cfg, log)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			if watch && configFile != "" {
				w := newWatcher(cmd, log)
				go func() {
					if err := w.Run(ctx); err != nil {
						log.Error().Err(err).Msg("config watcher stopped")
					}
				}()
				go func() {
					for {
						select {
						case <-ctx.Done():
							return
						case next := <-w.Updates():
							if err := srv.Apply(next); err != nil {
								log.Warn().Err(err).Msg("reloaded config not applied")
							}
						}
					}
				}()
			}

			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "listen address")
	cmd.Flags().BoolVar(&watch, "watch", true, "apply edits to --config and reset")
	return cmd
}

func newExpectedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expected",
		Short: "print the theoretical bin distribution",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cmp := analysis.NewComparer(cfg.Board.RowCount, galton.BiasProbability(cfg.Board.HorizontalBias), cfg.Run.NormalThreshold)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d rows, p=%.4f, %s model, mean %.4f, std dev %.4f\n\n",
				cmp.Rows(), galton.BiasProbability(cfg.Board.HorizontalBias), cmp.Method(), cmp.Mean(), cmp.StdDev())

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "BIN\tPROBABILITY")
			for k, p := range cmp.Expected() {
				fmt.Fprintf(w, "%d\t%.6f\n", k, p)
			}
			return w.Flush()
		},
	}
}

func newEnsembleCmd() *cobra.Command {
	var (
		runs      int
		seedStart int64
	)
	cmd := &cobra.Command{
		Use:   "ensemble",
		Short: "run consecutive seeds in parallel and report the spread",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if runs < 1 {
				return fmt.Errorf("--runs must be >= 1, got %d", runs)
			}
			log := logging.Logger()

			ctx, cancel := signalContext()
			defer cancel()

			ens := sim.NewEnsemble(cfg.Engine(), runs, seedStart, cfg.Run.Dt, log)
			ens.NewMetrics = metrics.Standard

			start := time.Now()
			results, err := ens.Run(ctx)
			if err != nil {
				return err
			}
			elapsed := time.Since(start)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SEED\tMEAN\tSTD\tCHI2\tTV\tTICKS")
			for _, r := range results {
				c := r.Comparison
				fmt.Fprintf(w, "%d\t%.3f\t%.3f\t%.2f\t%.4f\t%d\n",
					r.Seed, c.ObservedMean, c.ObservedStdDev, c.ChiSquare, c.TotalVariation, r.Ticks)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			spread := sim.Summarize(results)
			fmt.Printf("\n%d runs in %s\n", spread.Runs, elapsed.Round(time.Millisecond))
			fmt.Printf("mean of means %.4f ± %.4f (theory %.4f)\n",
				spread.MeanObservedMean, spread.StdObservedMean, results[0].Comparison.ExpectedMean)
			fmt.Printf("total variation mean %.4f, max %.4f\n", spread.MeanTotalVariation, spread.MaxTotalVariation)

			// Rerun the first seed to confirm the board replays.
			again, err := sim.NewEnsemble(cfg.Engine(), 1, seedStart, cfg.Run.Dt, log).Run(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("seed %d replays identically: %v\n", seedStart, slices.Equal(again[0].Counts, results[0].Counts))
			return nil
		},
	}
	cmd.Flags().IntVar(&runs, "runs", 8, "number of seeds")
	cmd.Flags().Int64Var(&seedStart, "seed-start", 1, "first seed")
	return cmd
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "list the built-in presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tROWS\tBIAS\tBALLS\tMAX ACTIVE\tSEED")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				s := "random"
				if p.Run.RandomSeed != nil {
					s = strconv.FormatInt(*p.Run.RandomSeed, 10)
				}
				fmt.Fprintf(w, "%s\t%d\t%+.2f\t%d\t%d\t%s\n",
					name, p.Board.RowCount, p.Board.HorizontalBias, p.Run.TotalBalls, p.Run.MaxActiveBalls, s)
			}
			return w.Flush()
		},
	}
}

func newBenchCmd() *cobra.Command {
	var (
		caps  []int
		ticks int
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "measure ticks per second for several active-ball caps",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			fmt.Printf("benchmarking %d rows, %d ticks per cap\n\n", cfg.Board.RowCount, ticks)
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CAP\tWORKERS\tSETTLED\tTIME\tTICKS/SEC\tBALL-STEPS/SEC")

			for _, limit := range caps {
				engine := cfg.Engine()
				engine.Run.MaxActiveBalls = limit
				engine.Run.TotalBalls = 0
				engine.Run.SpawnIntervalMs = 0

				clock, err := sim.New(engine, logging.Nop())
				if err != nil {
					return err
				}
				if err := clock.Start(); err != nil {
					return err
				}

				var ballSteps int
				start := time.Now()
				for i := 0; i < ticks; i++ {
					ballSteps += len(clock.Tick(cfg.Run.Dt).Balls)
				}
				elapsed := time.Since(start)
				secs := elapsed.Seconds()

				fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%.0f\t%.0f\n",
					limit, engine.Run.Workers, clock.Snapshot().Settled, elapsed.Round(time.Millisecond),
					float64(ticks)/secs, float64(ballSteps)/secs)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntSliceVar(&caps, "caps", []int{8, 64, 256, 1024}, "active-ball caps to measure")
	cmd.Flags().IntVar(&ticks, "ticks", 600, "ticks per cap")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list saved run reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := report.New(dataDir).List()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tROWS\tBIAS\tBALLS\tSEED\tTV")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%+.2f\t%d\t%d\t%.4f\n",
					r.ID,
					r.Created.Local().Format("2006-01-02 15:04:05"),
					r.Config.Board.RowCount,
					r.Config.Board.HorizontalBias,
					r.Settled,
					r.Seed,
					r.Comparison.TotalVariation,
				)
			}
			return w.Flush()
		},
	}
}

func newPlotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a saved run against theory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := report.New(dataDir)
			sum, err := st.Load(args[0])
			if err != nil {
				return err
			}
			bins, err := st.LoadBins(args[0])
			if err != nil {
				return err
			}

			cmp := sum.Comparison
			cmp.Observed = make([]float64, len(bins))
			cmp.Expected = make([]float64, len(bins))
			for i, b := range bins {
				cmp.Observed[i], cmp.Expected[i] = b.Observed, b.Expected
			}
			if len(bins) == 0 {
				return fmt.Errorf("run %s has no bins", args[0])
			}

			fmt.Printf("run %s: %d balls on %d rows, seed %d\n\n", sum.ID, sum.Settled, sum.Config.Board.RowCount, sum.Seed)
			fmt.Println(plotComparison(cmp))
			fmt.Println()
			return printComparison(os.Stdout, cmp, sum.Metrics)
		},
	}
}

var scores = map[string]func(analysis.Comparison) float64{
	"total_variation": func(c analysis.Comparison) float64 { return c.TotalVariation },
	"chi_square":      func(c analysis.Comparison) float64 { return c.ChiSquare },
	"mean_error":      func(c analysis.Comparison) float64 { return math.Abs(c.ObservedMean - c.ExpectedMean) },
}

func newSweepCmd() *cobra.Command {
	var (
		params []string
		score  string
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "run the board over a parameter grid and rank the cells",
		Example: "  galton sweep --param bias=-0.5:0.5:0.25 --param restitution=0.3,0.6 --balls 500",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			scoreFn, ok := scores[score]
			if !ok {
				return fmt.Errorf("unknown score %q", score)
			}
			if len(params) == 0 {
				return fmt.Errorf("at least one --param is required (one of %s)", strings.Join(sweep.Names(), ", "))
			}

			names := make([]string, 0, len(params))
			ranges := make([][]float64, 0, len(params))
			for _, p := range params {
				name, vals, err := sweep.ParseParam(p)
				if err != nil {
					return err
				}
				names = append(names, name)
				ranges = append(ranges, vals)
			}

			ctx, cancel := signalContext()
			defer cancel()

			grid := sweep.NewGridSearch(names, ranges)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sweeping %d cells, scoring by %s\n\n", grid.Size(), score)

			best, points, err := grid.Search(ctx, func(ctx context.Context, values map[string]float64) (float64, error) {
				cell, err := sweep.Apply(cfg, values)
				if err != nil {
					return 0, err
				}
				clock, err := sim.New(cell.Engine(), logging.Nop())
				if err != nil {
					return 0, err
				}
				if _, err := sim.RunToCompletion(ctx, clock, cell.Run.Dt); err != nil {
					return 0, err
				}
				return scoreFn(clock.Comparison()), nil
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, strings.ToUpper(strings.Join(names, "\t"))+"\tSCORE")
			for _, p := range points {
				row := make([]string, 0, len(names)+1)
				for _, n := range names {
					row = append(row, strconv.FormatFloat(p.Params[n], 'g', 4, 64))
				}
				if p.Err != nil {
					row = append(row, "error: "+p.Err.Error())
				} else {
					row = append(row, strconv.FormatFloat(p.Score, 'f', 4, 64))
				}
				fmt.Fprintln(w, strings.Join(row, "\t"))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			parts := make([]string, 0, len(names))
			for _, n := range names {
				parts = append(parts, fmt.Sprintf("%s=%g", n, best.Params[n]))
			}
			fmt.Fprintf(out, "\nbest: %s (%s %.4f)\n", strings.Join(parts, " "), score, best.Score)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&params, "param", nil, "parameter range, name=start:stop:step or name=v1,v2")
	cmd.Flags().StringVar(&score, "score", "total_variation", "score to minimise (total_variation, chi_square, mean_error)")
	return cmd
}
