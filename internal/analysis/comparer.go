package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/san-kum/galtonsim/internal/galton"
)

type Method int

const (
	Binomial Method = iota
	Normal
)

func (m Method) String() string {
	switch m {
	case Binomial:
		return "binomial"
	case Normal:
		return "normal"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Method) UnmarshalText(text []byte) error {
	switch string(text) {
	case "binomial":
		*m = Binomial
	case "normal":
		*m = Normal
	default:
		return fmt.Errorf("unknown method %q", text)
	}
	return nil
}

// MethodFor picks the approximation used for a board of rows rows.
func MethodFor(rows, threshold int) Method {
	if rows > threshold {
		return Normal
	}
	return Binomial
}

// ExpectedMass returns rows+1 probabilities, one per bin, for a per-peg
// rightward probability p. Boards above the default threshold use the
// normal approximation.
func ExpectedMass(rows int, p float64) []float64 {
	return massFor(MethodFor(rows, galton.DefaultNormalThreshold), rows, p)
}

func massFor(m Method, rows int, p float64) []float64 {
	if m == Normal {
		return NormalMass(rows, p)
	}
	return BinomialMass(rows, p)
}

// BinomialMass is the exact binomial distribution over 0..rows rightward
// deflections.
func BinomialMass(rows int, p float64) []float64 {
	if rows < 0 {
		return nil
	}
	mass := make([]float64, rows+1)
	if deg, ok := degenerate(rows, p); ok {
		mass[deg] = 1
		return mass
	}

	dist := distuv.Binomial{N: float64(rows), P: p}
	for k := range mass {
		mass[k] = dist.Prob(float64(k))
	}
	return mass
}

// NormalMass integrates N(np, np(1-p)) over [k-0.5, k+0.5). The outer bins
// absorb the tails so the masses sum to one.
func NormalMass(rows int, p float64) []float64 {
	if rows < 0 {
		return nil
	}
	mass := make([]float64, rows+1)
	if deg, ok := degenerate(rows, p); ok {
		mass[deg] = 1
		return mass
	}

	n := float64(rows)
	dist := distuv.Normal{Mu: n * p, Sigma: math.Sqrt(n * p * (1 - p))}

	prev := 0.0
	for k := 0; k < rows; k++ {
		cdf := dist.CDF(float64(k) + 0.5)
		mass[k] = cdf - prev
		prev = cdf
	}
	mass[rows] = 1 - prev
	return mass
}

// degenerate reports the single certain bin when p leaves no randomness.
func degenerate(rows int, p float64) (int, bool) {
	switch {
	case rows == 0 || p <= 0:
		return 0, true
	case p >= 1:
		return rows, true
	}
	return 0, false
}

// Comparison is one comparer's view of a histogram. All slices are owned by
// the comparison.
type Comparison struct {
	Method   Method    `json:"method"`
	Rows     int       `json:"rows"`
	P        float64   `json:"p"`
	Expected []float64 `json:"expected"`
	Observed []float64 `json:"observed"`
	Counts   []int     `json:"counts"`
	Total    int       `json:"total"`

	ExpectedMean   float64 `json:"expected_mean"`
	ExpectedStdDev float64 `json:"expected_std"`
	ObservedMean   float64 `json:"observed_mean"`
	ObservedStdDev float64 `json:"observed_std"`

	// ChiSquare is over bins with non-zero expected mass only.
	ChiSquare      float64 `json:"chi_square"`
	TotalVariation float64 `json:"total_variation"`
}

// Comparer holds the expected mass for one board so repeated comparisons
// during a run do not recompute it.
type Comparer struct {
	rows     int
	p        float64
	method   Method
	expected []float64
}

func NewComparer(rows int, p float64, threshold int) *Comparer {
	m := MethodFor(rows, threshold)
	return &Comparer{
		rows:     rows,
		p:        p,
		method:   m,
		expected: massFor(m, rows, p),
	}
}

// ForBoard builds a comparer from a board and the run's normal threshold.
func ForBoard(board galton.BoardConfig, threshold int) *Comparer {
	return NewComparer(board.RowCount, board.PRight(), threshold)
}

func (c *Comparer) Method() Method { return c.method }
func (c *Comparer) Rows() int      { return c.rows }

func (c *Comparer) Expected() []float64 {
	out := make([]float64, len(c.expected))
	copy(out, c.expected)
	return out
}

// Mean and StdDev of the number of rightward deflections.
func (c *Comparer) Mean() float64 { return float64(c.rows) * c.p }

func (c *Comparer) StdDev() float64 {
	return math.Sqrt(float64(c.rows) * c.p * (1 - c.p))
}

// Compare summarises counts against the expected mass. counts must have
// Rows()+1 entries; missing bins read as zero and extra ones are ignored.
func (c *Comparer) Compare(counts []int) Comparison {
	n := len(c.expected)
	cmp := Comparison{
		Method:         c.method,
		Rows:           c.rows,
		P:              c.p,
		Expected:       c.Expected(),
		Observed:       make([]float64, n),
		Counts:         make([]int, n),
		ExpectedMean:   c.Mean(),
		ExpectedStdDev: c.StdDev(),
	}
	copy(cmp.Counts, counts)

	weights := make([]float64, n)
	for i, v := range cmp.Counts {
		weights[i] = float64(v)
		cmp.Total += v
	}
	if cmp.Total == 0 {
		return cmp
	}

	total := float64(cmp.Total)
	idx := make([]float64, n)
	for i := range idx {
		idx[i] = float64(i)
		cmp.Observed[i] = weights[i] / total
	}

	mean, variance := stat.PopMeanVariance(idx, weights)
	cmp.ObservedMean = mean
	cmp.ObservedStdDev = math.Sqrt(variance)

	var obs, exp []float64
	for i, e := range c.expected {
		if e > 0 {
			obs = append(obs, weights[i])
			exp = append(exp, e*total)
		}
	}
	cmp.ChiSquare = stat.ChiSquare(obs, exp)
	cmp.TotalVariation = floats.Distance(cmp.Observed, c.expected, 1) / 2
	return cmp
}
