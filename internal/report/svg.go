package report

import (
	"fmt"
	"strings"

	"github.com/san-kum/galtonsim/internal/analysis"
	"github.com/san-kum/galtonsim/internal/viz"
)

const (
	svgBackground = "#0a0a0a"
	svgBar        = "#d4a017"
	svgCurve      = "#8fbcbb"
)

// HistogramSVG draws the observed distribution as bars with the expected
// distribution as a line over it.
func HistogramSVG(cmp analysis.Comparison, width, height int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, svgBackground)

	n := len(cmp.Expected)
	if n == 0 {
		sb.WriteString("</svg>")
		return sb.String()
	}

	peak := 0.0
	for i := 0; i < n; i++ {
		peak = max(peak, cmp.Expected[i])
		if i < len(cmp.Observed) {
			peak = max(peak, cmp.Observed[i])
		}
	}
	if peak == 0 {
		peak = 1
	}

	const margin = 20.0
	plotW := float64(width) - 2*margin
	plotH := float64(height) - 2*margin
	slot := plotW / float64(n)
	y := func(v float64) float64 { return margin + plotH - v/peak*plotH }

	fmt.Fprintf(&sb, "<g fill=\"%s\">\n", svgBar)
	for i := 0; i < n && i < len(cmp.Observed); i++ {
		if cmp.Observed[i] == 0 {
			continue
		}
		top := y(cmp.Observed[i])
		fmt.Fprintf(&sb, "<rect x=\"%.1f\" y=\"%.1f\" width=\"%.1f\" height=\"%.1f\"/>\n",
			margin+float64(i)*slot+slot*0.1, top, slot*0.8, margin+plotH-top)
	}
	sb.WriteString("</g>\n")

	fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="2" d="M`, svgCurve)
	for i, v := range cmp.Expected {
		x := margin + (float64(i)+0.5)*slot
		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", x, y(v))
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y(v))
		}
	}
	sb.WriteString("\"/>\n</svg>")
	return sb.String()
}

// CanvasToSVG converts a braille canvas, such as a board frame, to SVG dots.
func CanvasToSVG(canvas *viz.Canvas, scale float64) string {
	if canvas == nil {
		return ""
	}

	w, h := canvas.Dots()
	width, height := float64(w)*scale, float64(h)*scale

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="%s"/>
<g fill="%s">
`, width, height, width, height, svgBackground, svgBar)

	r := scale * 0.4
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if canvas.IsSet(x, y) {
				fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n",
					(float64(x)+0.5)*scale, (float64(y)+0.5)*scale, r)
			}
		}
	}
	sb.WriteString("</g>\n</svg>")
	return sb.String()
}
