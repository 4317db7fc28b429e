package viz

import (
	"math"

	"github.com/san-kum/galtonsim/internal/galton"
	"github.com/san-kum/galtonsim/internal/lattice"
)

// binDepth is how far below the last row the bin bars may reach, in units
// of peg spacing.
func binDepth(lat *lattice.Lattice) float64 {
	return math.Max(3, 0.35*float64(lat.Rows())) * lat.Spacing()
}

// BoardViewport fits the whole board, bins included, into c.
func BoardViewport(c *Canvas, lat *lattice.Lattice) Viewport {
	w, h := c.Dots()
	s := lat.Spacing()
	return Fit(lat.Left(), lat.Right(), lat.SpawnY()-s/2, lat.Bottom()+binDepth(lat), w, h)
}

// DrawBoard renders pegs, walls, the balls of snap and a bar per bin scaled
// to the fullest bin.
func DrawBoard(c *Canvas, lat *lattice.Lattice, snap galton.Snapshot) {
	c.Clear()
	vp := BoardViewport(c, lat)

	for _, p := range lat.Pegs() {
		c.Set(vp.Project(p.X, p.Y))
	}

	bottom := lat.Bottom()
	floor := bottom + binDepth(lat)
	lx, ly := vp.Project(lat.Left(), bottom)
	rx, ry := vp.Project(lat.Right(), floor)
	c.DrawLine(lx, ly, lx, ry)
	c.DrawLine(rx, ly, rx, ry)
	c.DrawLine(lx, ry, rx, ry)

	for _, b := range snap.Balls {
		x, y := vp.Project(b.X, b.Y)
		c.Blob(x-1, y-1)
	}

	peak := 0
	for _, n := range snap.Bins {
		peak = max(peak, n)
	}
	if peak == 0 {
		return
	}
	depth := binDepth(lat)
	half := lat.BinWidth() / 2
	for k, n := range snap.Bins {
		if n == 0 {
			continue
		}
		top := floor - depth*float64(n)/float64(peak)
		x0, y0 := vp.Project(lat.BinCenter(k)-half*0.6, top)
		x1, y1 := vp.Project(lat.BinCenter(k)+half*0.6, floor)
		c.FillRect(x0, y0, max(x1, x0+1), y1)
	}
}
