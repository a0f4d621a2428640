package control

import (
	"testing"

	"go.viam.com/test"
)

func TestSimpleFeedforward(t *testing.T) {
	ff := SimpleFeedforward{KS: 0.3, KV: 0.019}
	for _, tc := range []struct {
		velocity float64
		volts    float64
	}{
		{0, 0},
		{100, 0.3 + 1.9},
		{-100, -0.3 - 1.9},
	} {
		test.That(t, ff.Calculate(tc.velocity), test.ShouldAlmostEqual, tc.volts)
	}
}

func TestClamp(t *testing.T) {
	test.That(t, Clamp(15, 12), test.ShouldEqual, 12.0)
	test.That(t, Clamp(-15, 12), test.ShouldEqual, -12.0)
	test.That(t, Clamp(3, 12), test.ShouldEqual, 3.0)
}
