package control

import "math"

// SimpleFeedforward is a two term affine motor model: a static friction voltage applied in the
// direction of travel plus a voltage proportional to velocity.
type SimpleFeedforward struct {
	KS float64
	KV float64
}

// Calculate returns the feedforward voltage for the commanded velocity.
func (ff SimpleFeedforward) Calculate(velocity float64) float64 {
	var sign float64
	switch {
	case velocity > 0:
		sign = 1
	case velocity < 0:
		sign = -1
	}
	return ff.KS*sign + ff.KV*velocity
}

// Clamp bounds v to [-limit, limit].
func Clamp(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}
