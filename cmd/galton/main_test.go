package main

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/san-kum/galtonsim/internal/report"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	args = append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env"))
	if !slices.Contains(args, "--log-level") {
		args = append(args, "--log-level", "error")
	}
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestExpected(t *testing.T) {
	out, err := execute(t, "expected", "--rows", "4")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"4 rows", "p=0.5000", "binomial", "0.375000"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	if err := os.WriteFile(path, []byte("board:\n  row_count: 9\n  horizontal_bias: 0.5\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GALTON_ROWS", "7")

	out, err := execute(t, "expected", "--config", path, "--bias", "-0.5")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "7 rows, p=0.2500") {
		t.Errorf("expected env rows and flag bias to win:\n%s", out)
	}
}

func TestPresetThenFlags(t *testing.T) {
	out, err := execute(t, "expected", "--preset", "tall")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "80 rows") || !strings.Contains(out, "normal") {
		t.Errorf("tall preset not applied:\n%s", out)
	}

	if _, err := execute(t, "expected", "--preset", "nope"); err == nil || !strings.Contains(err.Error(), "unknown preset") {
		t.Errorf("expected unknown preset error, got %v", err)
	}
}

func TestDotenv(t *testing.T) {
	t.Setenv("GALTON_ROWS", "")
	os.Unsetenv("GALTON_ROWS")

	env := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(env, []byte("GALTON_ROWS=5\n"), 0644); err != nil {
		t.Fatal(err)
	}

	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"expected", "--env-file", env, "--log-level", "error"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "5 rows") {
		t.Errorf("dotenv value not applied:\n%s", buf.String())
	}
}

func TestInvalidFlags(t *testing.T) {
	_, err := execute(t, "expected", "--rows", "0")
	if err == nil || !strings.Contains(err.Error(), "row_count") {
		t.Errorf("expected row_count error, got %v", err)
	}

	if _, err := execute(t, "expected", "--log-level", "loud"); err == nil {
		t.Error("expected invalid log level error")
	}
	if _, err := execute(t, "expected", "--dt", "1e-10"); err == nil || !strings.Contains(err.Error(), "dt") {
		t.Errorf("expected dt error, got %v", err)
	}
}

func TestPresets(t *testing.T) {
	out, err := execute(t, "presets")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"biased", "classic", "quick", "tall", "wide"} {
		if !strings.Contains(out, name) {
			t.Errorf("presets missing %s:\n%s", name, out)
		}
	}
}

func TestRunSavesReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "runs")
	if _, err := execute(t, "run", "--preset", "quick", "--balls", "50", "--plot=false", "--save", "--data", dir); err != nil {
		t.Fatal(err)
	}

	runs, err := report.New(dir).List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 saved run, got %d", len(runs))
	}
	if runs[0].Settled != 50 || runs[0].Seed != 1 || runs[0].Preset != "quick" {
		t.Errorf("unexpected summary: settled %d seed %d preset %q", runs[0].Settled, runs[0].Seed, runs[0].Preset)
	}
	if _, err := os.Stat(filepath.Join(dir, runs[0].ID, "board.svg")); err != nil {
		t.Errorf("board frame not saved: %v", err)
	}
}

func TestRun_RequiresBudget(t *testing.T) {
	if _, err := execute(t, "run", "--balls", "0"); err == nil {
		t.Error("expected error for an unlimited run")
	}
}

func TestSweep(t *testing.T) {
	out, err := execute(t, "sweep", "--preset", "quick", "--balls", "40",
		"--param", "bias=-0.5,0.5", "--param", "rows=4,6")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "sweeping 4 cells") || !strings.Contains(out, "best: bias=") {
		t.Errorf("unexpected sweep output:\n%s", out)
	}

	if _, err := execute(t, "sweep", "--param", "colour=1"); err == nil {
		t.Error("expected error for unknown parameter")
	}
}
