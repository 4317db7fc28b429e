package galton

import (
	"errors"
	"fmt"
)

// Domain errors for engine operations.
var (
	// ErrInvalidConfiguration indicates malformed board or run values.
	// The run never starts.
	ErrInvalidConfiguration = errors.New("galton: invalid configuration")

	// ErrDuplicateSettlement indicates a ball was submitted to the bin
	// accumulator a second time.
	ErrDuplicateSettlement = errors.New("galton: ball already settled into a bin")

	// ErrNotSettled indicates a falling ball was submitted to the bin accumulator.
	ErrNotSettled = errors.New("galton: ball has not crossed the bottom boundary")

	// ErrBinIndexOutOfRange indicates a landing position outside the bin row.
	// The index is clamped and the run continues.
	ErrBinIndexOutOfRange = errors.New("galton: bin index out of range")

	// ErrInvalidState indicates a ball whose position or velocity became NaN or Inf.
	ErrInvalidState = errors.New("galton: invalid ball state (NaN or Inf detected)")

	// ErrInvalidTransition indicates a clock control call not allowed in the current phase.
	ErrInvalidTransition = errors.New("galton: invalid clock transition")
)

// BallError wraps an error with the ball and tick it happened on.
type BallError struct {
	BallID  uint64
	Tick    uint64
	Wrapped error
}

func (e *BallError) Error() string {
	return fmt.Sprintf("ball %d (tick %d): %v", e.BallID, e.Tick, e.Wrapped)
}

func (e *BallError) Unwrap() error {
	return e.Wrapped
}
