// Package lattice generates the triangular peg grid of a Galton board.
package lattice

import "math"

// Peg is immutable once generated.
type Peg struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
	Row    int     `json:"row"`
	Col    int     `json:"col"`
}

// Lattice holds the pegs of one board configuration, row-major:
// top-to-bottom, then left-to-right. Row r starts at index r(r+1)/2.
type Lattice struct {
	pegs    []Peg
	rows    int
	spacing float64
}

// Generate builds rowCount rows where row r holds r+1 pegs centred on x = 0
// at y = r*spacing. Inputs are assumed validated.
func Generate(rowCount int, spacing, pegRadius float64) *Lattice {
	l := &Lattice{
		pegs:    make([]Peg, 0, rowCount*(rowCount+1)/2),
		rows:    rowCount,
		spacing: spacing,
	}
	for r := 0; r < rowCount; r++ {
		for c := 0; c <= r; c++ {
			l.pegs = append(l.pegs, Peg{
				X:      l.SlotX(r, c),
				Y:      float64(r) * spacing,
				Radius: pegRadius,
				Row:    r,
				Col:    c,
			})
		}
	}
	return l
}

func (l *Lattice) Rows() int { return l.rows }

func (l *Lattice) Spacing() float64 { return l.spacing }

func (l *Lattice) Len() int { return len(l.pegs) }

// BinCount is rows+1: one bin per possible number of rightward deflections.
func (l *Lattice) BinCount() int { return l.rows + 1 }

func (l *Lattice) BinWidth() float64 { return l.spacing }

// Bottom is the y at which a ball leaves the last row and settles.
func (l *Lattice) Bottom() float64 { return float64(l.rows) * l.spacing }

func (l *Lattice) Left() float64 { return -float64(l.rows+1) / 2 * l.spacing }

func (l *Lattice) Right() float64 { return float64(l.rows+1) / 2 * l.spacing }

func (l *Lattice) SpawnY() float64 { return -l.spacing / 2 }

func (l *Lattice) BinCenter(k int) float64 { return l.SlotX(l.rows, k) }

// SlotX is the x of column c in row r. Row rows is the bin row.
func (l *Lattice) SlotX(r, c int) float64 {
	return (float64(c) - float64(r)/2) * l.spacing
}

// Pegs returns a copy of every peg in row-major order.
func (l *Lattice) Pegs() []Peg {
	out := make([]Peg, len(l.pegs))
	copy(out, l.pegs)
	return out
}

// Row returns row r as a read-only view into the lattice.
func (l *Lattice) Row(r int) []Peg {
	if r < 0 || r >= l.rows {
		return nil
	}
	start := r * (r + 1) / 2
	end := start + r + 1
	return l.pegs[start:end:end]
}

func (l *Lattice) At(r, c int) (Peg, bool) {
	if r < 0 || r >= l.rows || c < 0 || c > r {
		return Peg{}, false
	}
	return l.pegs[r*(r+1)/2+c], true
}

// RowsNear returns the inclusive row range whose pegs lie within one spacing
// of y. lo > hi means no row qualifies.
func (l *Lattice) RowsNear(y float64) (lo, hi int) {
	lo = int(math.Ceil(y/l.spacing - 1))
	hi = int(math.Floor(y/l.spacing + 1))
	if lo < 0 {
		lo = 0
	}
	if hi > l.rows-1 {
		hi = l.rows - 1
	}
	return lo, hi
}

// ClampX keeps x inside the board's physical width.
func (l *Lattice) ClampX(x float64) (float64, bool) {
	if x < l.Left() {
		return l.Left(), true
	}
	if x > l.Right() {
		return l.Right(), true
	}
	return x, false
}
