package metrics

import "github.com/san-kum/galtonsim/internal/galton"

// Deflections is the mean number of peg bounces per landed ball. On a
// healthy board it equals the row count; anything lower means balls are
// slipping past pegs.
type Deflections struct {
	name    string
	total   int
	landed  int
	minimum int
}

func NewDeflections() *Deflections {
	return &Deflections{name: "deflections", minimum: -1}
}

func (m *Deflections) Name() string { return m.name }

func (m *Deflections) Observe(snap galton.Snapshot, landed []galton.Landing, dt float64) {
	for _, l := range landed {
		m.total += l.Deflections
		m.landed++
		if m.minimum < 0 || l.Deflections < m.minimum {
			m.minimum = l.Deflections
		}
	}
}

func (m *Deflections) Value() float64 {
	if m.landed == 0 {
		return 0
	}
	return float64(m.total) / float64(m.landed)
}

// Min is the fewest bounces any landed ball took, or -1 before the first.
func (m *Deflections) Min() int { return m.minimum }

func (m *Deflections) Reset() {
	m.total = 0
	m.landed = 0
	m.minimum = -1
}
