package matching

import "math/rand"

// Chooser picks one index out of n candidates. Injectable so tests can pin
// the selection; the production chooser is uniform, independent of how the
// candidate set was stored or ordered.
type Chooser interface {
	// Pick returns an index in [0, n). n is always >= 1.
	Pick(n int) int
}

type uniformChooser struct{}

func NewUniformChooser() Chooser {
	return uniformChooser{}
}

func (uniformChooser) Pick(n int) int {
	return rand.Intn(n)
}
