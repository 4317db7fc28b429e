package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/galtonsim/internal/config"
	"github.com/san-kum/galtonsim/internal/galton"
	"github.com/san-kum/galtonsim/internal/sim"
)

const (
	width     = 72
	height    = 30
	frameRate = 60
)

var (
	speeds     = []float64{0.25, 0.5, 1, 2, 4, 8}
	biasCycle  = []float64{-0.5, -0.25, 0, 0.25, 0.5}
	defaultIdx = 2
)

type TickMsg time.Time

// ConfigMsg carries a reloaded configuration from a file watcher.
type ConfigMsg struct{ Config *config.Config }

func tick() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// WaitForConfig delivers the next config from ch as a ConfigMsg.
func WaitForConfig(ch <-chan *config.Config) tea.Cmd {
	return func() tea.Msg {
		cfg, ok := <-ch
		if !ok {
			return nil
		}
		return ConfigMsg{Config: cfg}
	}
}

// Model is the live board view. The clock is stepped once per frame.
type Model struct {
	clock   *sim.Clock
	dt      float64
	speed   int
	canvas  *Canvas
	theme   Theme
	st      styles
	updates <-chan *config.Config

	snap     galton.Snapshot
	notice   string
	showHelp bool
}

// NewModel wraps c. dt is the simulated seconds per frame at 1x speed.
func NewModel(c *sim.Clock, dt float64) Model {
	return Model{
		clock:  c,
		dt:     dt,
		speed:  defaultIdx,
		canvas: NewCanvas(width, height),
		theme:  Themes[0],
		st:     newStyles(Themes[0]),
		snap:   c.Snapshot(),
	}
}

// WithUpdates makes the model apply configs received on ch.
func (m Model) WithUpdates(ch <-chan *config.Config) Model {
	m.updates = ch
	return m
}

func (m Model) WithTheme(name string) Model {
	m.theme = GetTheme(name)
	m.st = newStyles(m.theme)
	return m
}

func (m Model) Speed() float64 { return speeds[m.speed] }

func (m Model) Init() tea.Cmd {
	if m.clock.Phase() == galton.Idle {
		m.clock.Start()
	}
	if m.updates != nil {
		return tea.Batch(tick(), WaitForConfig(m.updates))
	}
	return tick()
}

// Update handles keys, frame ticks and config reloads.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			if err := m.clock.Toggle(); err != nil {
				m.notice = err.Error()
			}
		case "r":
			m.restart()
		case "+", "=":
			m.speed = min(m.speed+1, len(speeds)-1)
		case "-", "_":
			m.speed = max(m.speed-1, 0)
		case "b":
			m.cycleBias()
		case "t":
			m.theme = nextTheme(m.theme.Name)
			m.st = newStyles(m.theme)
		case "?":
			m.showHelp = !m.showHelp
		}
		m.snap = m.clock.Snapshot()
	case TickMsg:
		m.step()
		return m, tick()
	case ConfigMsg:
		m.apply(msg.Config)
		if m.updates != nil {
			return m, WaitForConfig(m.updates)
		}
	}
	return m, nil
}

// step advances the clock by one frame. Fast speeds take several ticks of
// the base dt rather than one long tick.
func (m *Model) step() {
	speed := speeds[m.speed]
	if speed <= 1 {
		m.snap = m.clock.Tick(m.dt * speed)
		return
	}
	for i := 0; i < int(speed); i++ {
		m.snap = m.clock.Tick(m.dt)
	}
}

// restart resets the board and starts dropping again.
func (m *Model) restart() {
	m.clock.Reset()
	m.clock.Start()
	m.notice = ""
}

func (m *Model) cycleBias() {
	cfg := m.clock.Config()
	next := biasCycle[0]
	for _, b := range biasCycle {
		if b > cfg.Board.HorizontalBias+1e-9 {
			next = b
			break
		}
	}
	cfg.Board.HorizontalBias = next
	if err := m.clock.Configure(cfg); err != nil {
		m.notice = err.Error()
		return
	}
	m.restart()
	m.notice = fmt.Sprintf("bias %+.2f", next)
}

func (m *Model) apply(cfg *config.Config) {
	if err := m.clock.Configure(cfg.Engine()); err != nil {
		m.notice = err.Error()
		return
	}
	m.dt = cfg.Run.Dt
	m.restart()
	m.notice = "config reloaded"
	m.snap = m.clock.Snapshot()
}

func (m Model) status() string {
	switch m.snap.Phase {
	case galton.Running:
		return m.st.running.Render("RUNNING")
	case galton.Paused:
		return m.st.paused.Render("PAUSED")
	case galton.Complete:
		return m.st.complete.Render("COMPLETE")
	}
	return m.st.paused.Render("IDLE")
}

func (m Model) View() string {
	DrawBoard(m.canvas, m.clock.Lattice(), m.snap)
	board := m.st.board.Render(m.canvas.String())

	cmp := m.clock.Comparison()
	cfg := m.clock.Config()
	row := func(label, value string) string {
		return m.st.label.Render(label) + m.st.value.Render(value) + "\n"
	}

	var s strings.Builder
	s.WriteString(m.st.header.Render(fmt.Sprintf("GALTON BOARD  %d rows", cfg.Board.RowCount)) + "\n")
	s.WriteString(fmt.Sprintf("%s  %.2gx\n\n", m.status(), speeds[m.speed]))

	if len(cmp.Observed) > 1 {
		chart := asciigraph.PlotMany(
			[][]float64{cmp.Observed, cmp.Expected},
			asciigraph.Height(8),
			asciigraph.Width(34),
			asciigraph.SeriesColors(asciigraph.Cyan, asciigraph.Yellow),
			asciigraph.Caption("observed vs expected"),
		)
		s.WriteString(m.st.graph.Render(chart) + "\n")
	}

	s.WriteString(row("Time", fmt.Sprintf("%.2fs", m.snap.Time)))
	s.WriteString(row("In flight", fmt.Sprintf("%d", len(m.snap.Balls))))
	if m.snap.Total > 0 {
		s.WriteString(row("Settled", fmt.Sprintf("%d/%d", m.snap.Settled, m.snap.Total)))
		s.WriteString(m.st.label.Render("Progress") + m.st.ProgressBar(m.snap.Progress(), 20) + "\n")
	} else {
		s.WriteString(row("Settled", fmt.Sprintf("%d", m.snap.Settled)))
	}
	if m.snap.Dropped > 0 {
		s.WriteString(m.st.label.Render("Dropped") + m.st.warn.Render(fmt.Sprintf("%d", m.snap.Dropped)) + "\n")
	}
	s.WriteString(row("Bias", fmt.Sprintf("%+.2f (p=%.3f)", cfg.Board.HorizontalBias, cmp.P)))
	s.WriteString(row("Mean", fmt.Sprintf("%.2f / %.2f", cmp.ObservedMean, cmp.ExpectedMean)))
	s.WriteString(row("Std dev", fmt.Sprintf("%.2f / %.2f", cmp.ObservedStdDev, cmp.ExpectedStdDev)))
	s.WriteString(row("Chi-square", formatStat(cmp.ChiSquare)))
	s.WriteString(row("TV distance", formatStat(cmp.TotalVariation)))
	s.WriteString(row("Model", cmp.Method.String()))
	for _, metric := range m.clock.Metrics() {
		s.WriteString(row(metric.Name(), formatStat(metric.Value())))
	}

	if m.notice != "" {
		s.WriteString("\n" + m.st.keyHint.Render(m.notice) + "\n")
	}
	s.WriteString(m.st.keyHint.Render("\nSP:Pause R:Reset B:Bias\n+/-:Speed T:Theme ?:Help Q:Quit"))

	view := lipgloss.JoinHorizontal(lipgloss.Top, board, m.st.panel.Render(s.String()))
	if m.showHelp {
		return m.st.helpPanel.Render(helpText) + "\n" + view
	}
	return view
}

func formatStat(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.4g", v)
}

const helpText = `KEYBOARD SHORTCUTS
Space   start / pause / resume
R       reset the board
B       cycle horizontal bias
+ / -   simulation speed
T       cycle themes
?       toggle this help
Q       quit`
