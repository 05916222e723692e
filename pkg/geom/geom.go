// Package geom holds the small amount of geometry shared by the ray
// dispatcher, the cut tree and the primitive plugins: rays, axis-aligned
// boxes and the slab clip between them. Vectors are sdfx v3.Vec values so
// that primitives built on sdfx need no conversion.
package geom

import (
	"fmt"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

const (
	// Infinity stands in for the reciprocal of a zero direction component.
	// It is finite so that 0*Infinity stays a number.
	Infinity = 1.0e40

	// SmallFastf is the magnitude below which a direction component is
	// treated as zero.
	SmallFastf = 1.0e-77
)

// Ray is a half line with a valid parameter interval [Min, Max].
// Dir must be unit length.
type Ray struct {
	Origin v3.Vec
	Dir    v3.Vec

	// Index, X and Y are caller bookkeeping (ray number, grid cell).
	Index int
	X, Y  int

	Min float64
	Max float64
}

// NewRay returns a ray valid over [0, +MaxFloat64].
func NewRay(origin, dir v3.Vec) Ray {
	return Ray{Origin: origin, Dir: dir, Max: math.MaxFloat64}
}

// At returns the point at distance t along the ray.
func (r *Ray) At(t float64) v3.Vec {
	return r.Origin.Add(r.Dir.MulScalar(t))
}

func (r Ray) String() string {
	return fmt.Sprintf("ray#%d (%g %g %g)->(%g %g %g)",
		r.Index, r.Origin.X, r.Origin.Y, r.Origin.Z, r.Dir.X, r.Dir.Y, r.Dir.Z)
}

// Reciprocal returns 1/d per component, substituting +/-Infinity for
// components too small to divide by.
func Reciprocal(d v3.Vec) v3.Vec {
	return v3.Vec{X: recip(d.X), Y: recip(d.Y), Z: recip(d.Z)}
}

func recip(c float64) float64 {
	switch {
	case c < -SmallFastf:
		return 1.0 / c
	case c > SmallFastf:
		return 1.0 / c
	case math.Signbit(c):
		return -Infinity
	}
	return Infinity
}

// Axis returns component i (0=X, 1=Y, 2=Z) of v.
func Axis(v v3.Vec, i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	}
	return v.Z
}

// SetAxis returns v with component i replaced by f.
func SetAxis(v v3.Vec, i int, f float64) v3.Vec {
	switch i {
	case 0:
		v.X = f
	case 1:
		v.Y = f
	default:
		v.Z = f
	}
	return v
}

// NearZero reports whether |f| < tol.
func NearZero(f, tol float64) bool {
	return f > -tol && f < tol
}
