// Package metrics provides run observers in the galton.Metric shape.
package metrics

import "github.com/san-kum/galtonsim/internal/galton"

// Standard returns the metrics every run reports.
func Standard() []galton.Metric {
	return []galton.Metric{
		NewThroughput(),
		NewOccupancy(),
		NewDeflections(),
	}
}

// Values collects metric values by name.
func Values(ms []galton.Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}
