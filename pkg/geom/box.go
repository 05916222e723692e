package geom

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Box is an axis-aligned bounding box. The zero value is the degenerate
// box at the origin; use EmptyBox to start an accumulation.
type Box struct {
	Min, Max v3.Vec
}

// EmptyBox returns an inverted box that any Extend call replaces.
func EmptyBox() Box {
	inf := math.Inf(1)
	return Box{
		Min: v3.Vec{X: inf, Y: inf, Z: inf},
		Max: v3.Vec{X: -inf, Y: -inf, Z: -inf},
	}
}

// FromSDF converts an sdfx bounding box.
func FromSDF(b sdf.Box3) Box {
	return Box{Min: b.Min, Max: b.Max}
}

// SDF converts the box to its sdfx form.
func (b Box) SDF() sdf.Box3 {
	return sdf.Box3{Min: b.Min, Max: b.Max}
}

// IsEmpty reports whether the box is inverted along any axis.
func (b Box) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Extend returns the smallest box holding both b and o.
func (b Box) Extend(o Box) Box {
	if o.IsEmpty() {
		return b
	}
	return b.ExtendPoint(o.Min).ExtendPoint(o.Max)
}

// ExtendPoint returns the smallest box holding b and p.
func (b Box) ExtendPoint(p v3.Vec) Box {
	return Box{
		Min: v3.Vec{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)},
		Max: v3.Vec{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)},
	}
}

// Pad grows the box by d on every side.
func (b Box) Pad(d float64) Box {
	pad := v3.Vec{X: d, Y: d, Z: d}
	return Box{Min: b.Min.Sub(pad), Max: b.Max.Add(pad)}
}

// Size returns the edge lengths.
func (b Box) Size() v3.Vec {
	return b.Max.Sub(b.Min)
}

// Center returns the midpoint.
func (b Box) Center() v3.Vec {
	return b.Min.Add(b.Max).MulScalar(0.5)
}

// Contains reports whether p lies inside or on the box.
func (b Box) Contains(p v3.Vec) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Overlaps reports whether two boxes share any point, faces included.
func (b Box) Overlaps(o Box) bool {
	return b.Min.X <= o.Max.X && o.Min.X <= b.Max.X &&
		b.Min.Y <= o.Max.Y && o.Min.Y <= b.Max.Y &&
		b.Min.Z <= o.Max.Z && o.Min.Z <= b.Max.Z
}

// Corners returns the eight vertices of the box.
func (b Box) Corners() [8]v3.Vec {
	var c [8]v3.Vec
	for i := 0; i < 8; i++ {
		c[i] = v3.Vec{X: b.Min.X, Y: b.Min.Y, Z: b.Min.Z}
		if i&1 != 0 {
			c[i].X = b.Max.X
		}
		if i&2 != 0 {
			c[i].Y = b.Max.Y
		}
		if i&4 != 0 {
			c[i].Z = b.Max.Z
		}
	}
	return c
}

// Transform returns the axis-aligned box around b's corners under m.
func (b Box) Transform(m sdf.M44) Box {
	out := EmptyBox()
	for _, c := range b.Corners() {
		out = out.ExtendPoint(m.MulPosition(c))
	}
	return out
}

func (b Box) String() string {
	return fmt.Sprintf("[(%g %g %g) (%g %g %g)]",
		b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z)
}

// Clip intersects the ray with the box using the slab method. inv is the
// ray's reciprocal direction from Reciprocal. It returns the entry and exit
// distances; ok is false when the ray misses. Distances may be negative
// when the origin is inside or past the box.
func (b Box) Clip(r *Ray, inv v3.Vec) (near, far float64, ok bool) {
	near = -math.MaxFloat64
	far = math.MaxFloat64
	for i := 0; i < 3; i++ {
		o := Axis(r.Origin, i)
		d := Axis(r.Dir, i)
		lo := Axis(b.Min, i)
		hi := Axis(b.Max, i)
		if NearZero(d, SmallFastf) {
			// Parallel to this slab: inside it or never.
			if o < lo || o > hi {
				return 0, 0, false
			}
			continue
		}
		iv := Axis(inv, i)
		t0 := (lo - o) * iv
		t1 := (hi - o) * iv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > near {
			near = t0
		}
		if t1 < far {
			far = t1
		}
		if near > far {
			return 0, 0, false
		}
	}
	return near, far, true
}
