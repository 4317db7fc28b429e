// Package sweep runs a board over a grid of parameter values.
package sweep

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/san-kum/galtonsim/internal/config"
)

// Point is one evaluated grid cell.
type Point struct {
	Params map[string]float64 `json:"params"`
	Score  float64            `json:"score"`
	Err    error              `json:"-"`
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Size is the number of grid cells.
func (g *GridSearch) Size() int {
	if len(g.ranges) == 0 {
		return 0
	}
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Search evaluates every cell in row-major order and returns the cell with
// the lowest score along with all of them. Cells whose evaluation fails are
// kept with their error and never win.
func (g *GridSearch) Search(
	ctx context.Context,
	eval func(ctx context.Context, params map[string]float64) (float64, error),
) (Point, []Point, error) {
	points := make([]Point, 0, g.Size())
	best := Point{Score: math.Inf(1)}

	err := g.searchRecursive(ctx, 0, make(map[string]float64), eval, &points, &best)
	if err != nil {
		return best, points, err
	}
	if best.Params == nil {
		return best, points, fmt.Errorf("sweep: no grid cell evaluated successfully")
	}
	return best, points, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	eval func(context.Context, map[string]float64) (float64, error),
	points *[]Point,
	best *Point,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.paramNames) {
		params := make(map[string]float64, len(current))
		for k, v := range current {
			params[k] = v
		}
		score, err := eval(ctx, params)
		p := Point{Params: params, Score: score, Err: err}
		*points = append(*points, p)
		if err == nil && score < best.Score {
			*best = p
		}
		return nil
	}

	name := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		current[name] = val
		if err := g.searchRecursive(ctx, depth+1, current, eval, points, best); err != nil {
			return err
		}
	}
	delete(current, name)
	return nil
}

// ParseParam reads "name=start:stop:step" or "name=v1,v2,...".
func ParseParam(s string) (string, []float64, error) {
	name, values, ok := strings.Cut(s, "=")
	if !ok || name == "" || values == "" {
		return "", nil, fmt.Errorf("sweep: parameter %q: want name=start:stop:step or name=v1,v2", s)
	}
	if _, err := lookup(name); err != nil {
		return "", nil, err
	}

	if parts := strings.Split(values, ":"); len(parts) == 3 {
		var bounds [3]float64
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return "", nil, fmt.Errorf("sweep: parameter %s: %w", name, err)
			}
			bounds[i] = v
		}
		start, stop, step := bounds[0], bounds[1], bounds[2]
		if !(step > 0) || stop < start {
			return "", nil, fmt.Errorf("sweep: parameter %s: need start <= stop and step > 0", name)
		}
		var vals []float64
		for i := 0; ; i++ {
			v := start + float64(i)*step
			if v > stop+step*1e-9 {
				break
			}
			vals = append(vals, v)
		}
		return name, vals, nil
	}

	var vals []float64
	for _, p := range strings.Split(values, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return "", nil, fmt.Errorf("sweep: parameter %s: %w", name, err)
		}
		vals = append(vals, v)
	}
	return name, vals, nil
}

var setters = map[string]func(*config.Config, float64){
	"rows":             func(c *config.Config, v float64) { c.Board.RowCount = int(math.Round(v)) },
	"spacing":          func(c *config.Config, v float64) { c.Board.PegSpacing = v },
	"gravity":          func(c *config.Config, v float64) { c.Board.Gravity = v },
	"restitution":      func(c *config.Config, v float64) { c.Board.Restitution = v },
	"bias":             func(c *config.Config, v float64) { c.Board.HorizontalBias = v },
	"deflection-speed": func(c *config.Config, v float64) { c.Board.DeflectionSpeed = v },
	"interval":         func(c *config.Config, v float64) { c.Run.SpawnIntervalMs = int(math.Round(v)) },
	"max-active":       func(c *config.Config, v float64) { c.Run.MaxActiveBalls = int(math.Round(v)) },
}

func lookup(name string) (func(*config.Config, float64), error) {
	set, ok := setters[name]
	if !ok {
		return nil, fmt.Errorf("sweep: unknown parameter %q (have %s)", name, strings.Join(Names(), ", "))
	}
	return set, nil
}

// Names lists the parameters a sweep can vary.
func Names() []string {
	names := make([]string, 0, len(setters))
	for n := range setters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Apply returns a copy of base with params set.
func Apply(base *config.Config, params map[string]float64) (*config.Config, error) {
	cfg := base.Clone()
	for name, v := range params {
		set, err := lookup(name)
		if err != nil {
			return nil, err
		}
		set(cfg, v)
	}
	return cfg, cfg.Validate()
}
