package metrics

import (
	"math"
	"testing"

	"github.com/san-kum/galtonsim/internal/galton"
)

func snapWith(active int) galton.Snapshot {
	return galton.Snapshot{Balls: make([]galton.BallPos, active)}
}

func TestThroughput(t *testing.T) {
	m := NewThroughput()

	if m.Value() != 0 {
		t.Errorf("expected 0 before observing, got %f", m.Value())
	}

	m.Observe(snapWith(0), []galton.Landing{{ID: 1}, {ID: 2}}, 0.5)
	m.Observe(snapWith(0), []galton.Landing{{ID: 3}}, 0.5)

	if math.Abs(m.Value()-3) > 1e-12 {
		t.Errorf("expected 3 balls/s, got %f", m.Value())
	}

	m.Reset()
	if m.Value() != 0 {
		t.Errorf("expected 0 after reset, got %f", m.Value())
	}
}

func TestOccupancy(t *testing.T) {
	m := NewOccupancy()

	m.Observe(snapWith(2), nil, 1)
	m.Observe(snapWith(6), nil, 3)

	if math.Abs(m.Value()-5) > 1e-12 {
		t.Errorf("expected time-weighted mean 5, got %f", m.Value())
	}
	if m.Peak() != 6 {
		t.Errorf("expected peak 6, got %d", m.Peak())
	}
}

func TestDeflections(t *testing.T) {
	m := NewDeflections()

	if m.Min() != -1 {
		t.Errorf("expected -1 before any landing, got %d", m.Min())
	}

	m.Observe(snapWith(0), []galton.Landing{{Deflections: 10}, {Deflections: 8}}, 0.1)
	m.Observe(snapWith(0), []galton.Landing{{Deflections: 12}}, 0.1)

	if math.Abs(m.Value()-10) > 1e-12 {
		t.Errorf("expected mean 10, got %f", m.Value())
	}
	if m.Min() != 8 {
		t.Errorf("expected min 8, got %d", m.Min())
	}
}

func TestStandardNames(t *testing.T) {
	vals := Values(Standard())

	for _, name := range []string{"throughput", "occupancy", "deflections"} {
		if _, ok := vals[name]; !ok {
			t.Errorf("missing metric %q", name)
		}
	}
}
