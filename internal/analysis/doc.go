// Package analysis compares a board's empirical histogram with theory.
//
// The package provides:
//
//   - [ExpectedMass]: per-bin probabilities for a board of n rows
//   - [BinomialMass]: exact C(n,k) p^k (1-p)^(n-k)
//   - [NormalMass]: normal approximation with continuity correction
//   - [Comparer]: fixed-method comparer producing a [Comparison]
//
// # Choosing a method
//
// Boards taller than the normal threshold (60 rows by default) use the
// normal approximation. The choice is made once per comparer:
//
//	c := analysis.NewComparer(rows, galton.BiasProbability(bias), 60)
//	cmp := c.Compare(acc.Counts())
//	fmt.Println(cmp.Method, cmp.ChiSquare)
package analysis
