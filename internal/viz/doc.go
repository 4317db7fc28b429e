// Package viz renders a running Galton board in the terminal.
//
// The live view is a Bubble Tea program: the board (pegs, balls in flight and
// bin bars) is drawn on a braille [Canvas], next to a panel comparing the
// observed histogram with the expected distribution.
//
// # Key Bindings
//
//	Space - Start/Pause/Resume
//	R     - Reset the board
//	B     - Cycle horizontal bias
//	+/-   - Simulation speed
//	T     - Cycle color themes
//	?     - Show help overlay
package viz
