package sensor

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestSwitch(t *testing.T) {
	ctx := context.Background()
	s := NewSwitch("BeamBreak")
	test.That(t, s.Name(), test.ShouldEqual, "BeamBreak")
	v, err := s.Get(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldBeFalse)

	s.Set(true)
	v, err = s.Get(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldBeTrue)

	s.SetError(errors.New("disconnected"))
	_, err = s.Get(ctx)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestInverted(t *testing.T) {
	ctx := context.Background()
	s := NewSwitch("Limit")
	inv := Inverted{s}
	test.That(t, inv.Name(), test.ShouldEqual, "Limit")
	v, err := inv.Get(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldBeTrue)
	s.Set(true)
	v, _ = inv.Get(ctx)
	test.That(t, v, test.ShouldBeFalse)
}
