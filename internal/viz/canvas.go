package viz

import (
	"math"
	"strings"
)

// Braille cells are 2 dots wide and 4 tall:
// 1 4
// 2 5
// 3 6
// 7 8
var pixelMap = [4][2]rune{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const blank = 0x2800

// Canvas is a character grid addressed in braille sub-pixels, so a canvas of
// Width x Height cells has (2*Width) x (4*Height) dots.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, Grid: make([][]rune, h)}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Dots returns the canvas size in sub-pixels.
func (c *Canvas) Dots() (int, int) { return c.Width * 2, c.Height * 4 }

// Set lights the dot at (x, y). Out-of-range dots are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= pixelMap[y%4][x%2]
}

func (c *Canvas) IsSet(x, y int) bool {
	if x < 0 || y < 0 || x/2 >= c.Width || y/4 >= c.Height {
		return false
	}
	return c.Grid[y/4][x/2]&pixelMap[y%4][x%2] != 0
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx, dy := absInt(x1-x0), absInt(y1-y0)
	sx, sy := -1, -1
	if x0 < x1 {
		sx = 1
	}
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// Blob draws a 2x2 dot block with its top-left at (x, y).
func (c *Canvas) Blob(x, y int) {
	c.Set(x, y)
	c.Set(x+1, y)
	c.Set(x, y+1)
	c.Set(x+1, y+1)
}

// FillRect lights every dot in the half-open box [x0,x1) x [y0,y1).
func (c *Canvas) FillRect(x0, y0, x1, y1 int) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			c.Set(x, y)
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	b.Grow(c.Height * (c.Width*3 + 1))
	for _, row := range c.Grid {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}

// Viewport maps board coordinates (x right, y down) onto canvas dots with a
// uniform scale, centred horizontally.
type Viewport struct {
	minX, minY float64
	scale      float64
	offX, offY float64
}

// Fit returns the viewport that shows [minX,maxX] x [minY,maxY] inside a
// canvas of w x h dots without distorting it.
func Fit(minX, maxX, minY, maxY float64, w, h int) Viewport {
	spanX, spanY := maxX-minX, maxY-minY
	if spanX <= 0 {
		spanX = 1
	}
	if spanY <= 0 {
		spanY = 1
	}
	scale := math.Min(float64(w-1)/spanX, float64(h-1)/spanY)
	return Viewport{
		minX:  minX,
		minY:  minY,
		scale: scale,
		offX:  (float64(w-1) - spanX*scale) / 2,
		offY:  0,
	}
}

func (v Viewport) Project(x, y float64) (int, int) {
	px := v.offX + (x-v.minX)*v.scale
	py := v.offY + (y-v.minY)*v.scale
	return int(math.Round(px)), int(math.Round(py))
}

// Scale is the number of dots per board unit.
func (v Viewport) Scale() float64 { return v.scale }

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
