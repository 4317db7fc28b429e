package metrics

import "github.com/san-kum/galtonsim/internal/galton"

// Throughput is balls landed per simulated second.
type Throughput struct {
	name    string
	landed  int
	elapsed float64
}

func NewThroughput() *Throughput {
	return &Throughput{name: "throughput"}
}

func (m *Throughput) Name() string { return m.name }

func (m *Throughput) Observe(snap galton.Snapshot, landed []galton.Landing, dt float64) {
	m.landed += len(landed)
	m.elapsed += dt
}

func (m *Throughput) Value() float64 {
	if m.elapsed == 0 {
		return 0
	}
	return float64(m.landed) / m.elapsed
}

func (m *Throughput) Reset() {
	m.landed = 0
	m.elapsed = 0
}
