// Package physics advances a single ball through the peg lattice.
//
// [Advance] integrates gravity exactly over short sub-steps, detects the
// first peg contact in row-major order, and resolves it with one random
// left/right decision drawn from the ball's own [Source]:
//
//	src := rand.New(rand.NewSource(seed))
//	ev, err := physics.Advance(ball, lat, board, 1.0/60, src)
//
// A bounce keeps the ball's vertical speed scaled by the restitution and
// sets its horizontal speed so it arrives over the slot it committed to.
// Setting [galton.BoardConfig.DeflectionSpeed] replaces that with a fixed
// speed.
package physics
