package viz

import (
	"strings"
	"testing"

	"github.com/san-kum/galtonsim/internal/galton"
	"github.com/san-kum/galtonsim/internal/lattice"
)

func TestCanvas_SetAndClear(t *testing.T) {
	c := NewCanvas(4, 2)
	c.Set(0, 0)
	c.Set(7, 7)
	c.Set(-1, 3)
	c.Set(8, 0)

	if !c.IsSet(0, 0) || !c.IsSet(7, 7) {
		t.Fatal("expected dots to be set")
	}
	if c.Grid[0][0] != 0x2801 {
		t.Errorf("unexpected cell %U", c.Grid[0][0])
	}
	if c.Grid[1][3] != 0x2880 {
		t.Errorf("unexpected cell %U", c.Grid[1][3])
	}

	c.Clear()
	for _, row := range c.Grid {
		for _, r := range row {
			if r != blank {
				t.Fatalf("cell not cleared: %U", r)
			}
		}
	}
}

func TestCanvas_DrawLine(t *testing.T) {
	c := NewCanvas(10, 5)
	c.DrawLine(0, 0, 19, 19)
	for i := 0; i < 20; i++ {
		if !c.IsSet(i, i) {
			t.Errorf("diagonal dot (%d,%d) missing", i, i)
		}
	}
}

func TestCanvas_FillRect(t *testing.T) {
	c := NewCanvas(2, 1)
	c.FillRect(0, 0, 4, 4)
	if got := c.String(); got != "⣿⣿\n" {
		t.Errorf("expected full cells, got %q", got)
	}
}

func TestViewport_Fit(t *testing.T) {
	vp := Fit(-5, 5, 0, 10, 101, 201)

	x, y := vp.Project(-5, 0)
	if x != 0 || y != 0 {
		t.Errorf("top-left projected to (%d,%d)", x, y)
	}
	x, y = vp.Project(5, 10)
	if x != 100 || y != 100 {
		t.Errorf("bottom-right projected to (%d,%d)", x, y)
	}
	if vp.Scale() != 10 {
		t.Errorf("expected scale 10, got %f", vp.Scale())
	}
}

func TestDrawBoard(t *testing.T) {
	lat := lattice.Generate(6, 1, 0.1)
	c := NewCanvas(40, 20)

	empty := galton.Snapshot{Bins: make([]int, lat.BinCount())}
	DrawBoard(c, lat, empty)
	base := strings.Count(c.String(), string(rune(blank)))

	snap := galton.Snapshot{
		Balls: []galton.BallPos{{ID: 0, X: 0, Y: 1.5}},
		Bins:  []int{0, 1, 4, 8, 4, 1, 0},
	}
	DrawBoard(c, lat, snap)
	if got := strings.Count(c.String(), string(rune(blank))); got >= base {
		t.Errorf("balls and bars drew nothing: %d blank cells, %d before", got, base)
	}

	vp := BoardViewport(c, lat)
	peg, _ := lat.At(0, 0)
	x, y := vp.Project(peg.X, peg.Y)
	if !c.IsSet(x, y) {
		t.Error("top peg not drawn")
	}
}
