package viz

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/san-kum/galtonsim/internal/config"
	"github.com/san-kum/galtonsim/internal/galton"
	"github.com/san-kum/galtonsim/internal/sim"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	cfg := galton.DefaultConfig()
	seed := int64(5)
	cfg.Run.Seed = &seed
	cfg.Run.TotalBalls = 20

	c, err := sim.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	m := NewModel(c, 1.0/60)
	m.Init()
	return m
}

func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_InitStartsClock(t *testing.T) {
	m := newTestModel(t)
	if m.clock.Phase() != galton.Running {
		t.Errorf("expected running after Init, got %s", m.clock.Phase())
	}
}

func TestModel_TickAdvances(t *testing.T) {
	m := newTestModel(t)
	for i := 0; i < 120; i++ {
		m = send(t, m, TickMsg{})
	}
	if m.snap.Tick != 120 {
		t.Errorf("expected 120 ticks, got %d", m.snap.Tick)
	}
	if m.snap.Spawned == 0 {
		t.Error("no balls spawned")
	}
}

func TestModel_PauseToggle(t *testing.T) {
	m := newTestModel(t)
	m = send(t, m, key(" "))
	if m.clock.Phase() != galton.Paused {
		t.Fatalf("expected paused, got %s", m.clock.Phase())
	}

	m = send(t, m, TickMsg{})
	if m.snap.Tick != 0 {
		t.Error("paused clock advanced")
	}

	m = send(t, m, key(" "))
	if m.clock.Phase() != galton.Running {
		t.Errorf("expected running, got %s", m.clock.Phase())
	}
}

func TestModel_Speed(t *testing.T) {
	m := newTestModel(t)
	m = send(t, m, key("+"))
	m = send(t, m, key("+"))
	if m.Speed() != 4 {
		t.Fatalf("expected 4x, got %g", m.Speed())
	}

	m = send(t, m, TickMsg{})
	if m.snap.Tick != 4 {
		t.Errorf("4x frame should take 4 ticks, took %d", m.snap.Tick)
	}

	for i := 0; i < 10; i++ {
		m = send(t, m, key("-"))
	}
	if m.Speed() != speeds[0] {
		t.Errorf("speed not clamped: %g", m.Speed())
	}
}

func TestModel_CycleBias(t *testing.T) {
	m := newTestModel(t)
	for i := 0; i < 30; i++ {
		m = send(t, m, TickMsg{})
	}

	m = send(t, m, key("b"))
	if got := m.clock.Config().Board.HorizontalBias; got != 0.25 {
		t.Errorf("expected bias 0.25, got %f", got)
	}
	if m.snap.Tick != 0 || m.clock.Phase() != galton.Running {
		t.Errorf("bias change should restart the run: tick %d phase %s", m.snap.Tick, m.clock.Phase())
	}

	m = send(t, m, key("b"))
	m = send(t, m, key("b"))
	if got := m.clock.Config().Board.HorizontalBias; got != -0.5 {
		t.Errorf("expected wrap to -0.5, got %f", got)
	}
}

func TestModel_ConfigMsg(t *testing.T) {
	m := newTestModel(t)

	cfg := config.DefaultConfig()
	cfg.Board.RowCount = 8
	cfg.Run.Dt = 0.01
	m = send(t, m, ConfigMsg{Config: cfg})

	if m.clock.Lattice().Rows() != 8 {
		t.Errorf("expected 8 rows, got %d", m.clock.Lattice().Rows())
	}
	if m.dt != 0.01 {
		t.Errorf("dt not applied: %f", m.dt)
	}

	bad := config.DefaultConfig()
	bad.Board.RowCount = 0
	m = send(t, m, ConfigMsg{Config: bad})
	if m.clock.Lattice().Rows() != 8 {
		t.Error("invalid config applied")
	}
	if !strings.Contains(m.notice, "row_count") {
		t.Errorf("expected notice naming row_count, got %q", m.notice)
	}
}

func TestModel_Quit(t *testing.T) {
	m := newTestModel(t)
	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestModel_View(t *testing.T) {
	m := newTestModel(t)
	for i := 0; i < 200; i++ {
		m = send(t, m, TickMsg{})
	}

	view := m.View()
	for _, want := range []string{"GALTON BOARD", "Chi-square", "binomial"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	m = send(t, m, key("?"))
	if !strings.Contains(m.View(), "KEYBOARD SHORTCUTS") {
		t.Error("help overlay not shown")
	}
}
