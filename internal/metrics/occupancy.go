package metrics

import "github.com/san-kum/galtonsim/internal/galton"

// Occupancy is the time-weighted mean number of balls in flight.
type Occupancy struct {
	name     string
	weighted float64
	elapsed  float64
	peak     int
}

func NewOccupancy() *Occupancy {
	return &Occupancy{name: "occupancy"}
}

func (m *Occupancy) Name() string { return m.name }

func (m *Occupancy) Observe(snap galton.Snapshot, landed []galton.Landing, dt float64) {
	n := len(snap.Balls)
	m.weighted += float64(n) * dt
	m.elapsed += dt
	if n > m.peak {
		m.peak = n
	}
}

func (m *Occupancy) Value() float64 {
	if m.elapsed == 0 {
		return 0
	}
	return m.weighted / m.elapsed
}

// Peak is the largest in-flight count seen.
func (m *Occupancy) Peak() int { return m.peak }

func (m *Occupancy) Reset() {
	m.weighted = 0
	m.elapsed = 0
	m.peak = 0
}
