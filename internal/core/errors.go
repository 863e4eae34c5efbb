package core

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	// ErrTypeInvalidArgument is the type of errors returned by constructors
	// given an unusable configuration.
	ErrTypeInvalidArgument = "invalid_argument"
)

// InvalidArgument returns an ErrTypeInvalidArgument error tagged with the
// offending value.
func InvalidArgument(msg, field string, value any) error {
	return errors.New(msg).
		WithType(ErrTypeInvalidArgument).
		WithTag(field, value)
}

// ValidatePositive checks that v is a finite number greater than zero.
func ValidatePositive(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return InvalidArgument(field+" must be a positive finite number", field, v)
	}
	return nil
}

// ValidatePositiveInt checks that v is greater than zero.
func ValidatePositiveInt(field string, v int) error {
	if v <= 0 {
		return InvalidArgument(field+" must be greater than zero", field, v)
	}
	return nil
}

// ValidateBounds checks that b is a finite box with Min < Max on every axis.
func ValidateBounds(b AABB3D) error {
	for i := 0; i < 3; i++ {
		if !finite(b.Min[i]) || !finite(b.Max[i]) || b.Min[i] >= b.Max[i] {
			return InvalidArgument("bounds must be finite with min < max on every axis", "bounds", b)
		}
	}
	return nil
}

// ValidateRect checks that r is a finite rectangle with Min < Max on both axes.
func ValidateRect(r Rect) error {
	for i := 0; i < 2; i++ {
		if !finite(r.Min[i]) || !finite(r.Max[i]) || r.Min[i] >= r.Max[i] {
			return InvalidArgument("rect must be finite with min < max on both axes", "rect", r)
		}
	}
	return nil
}

// ValidatePlane checks that p is a known Plane.
func ValidatePlane(p Plane) error {
	if !p.Valid() {
		return InvalidArgument("unknown plane", "plane", p.String())
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
