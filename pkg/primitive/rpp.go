package primitive

import (
	"fmt"

	"github.com/chazu/csgray/pkg/geom"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// RPPParams describes a right parallelepiped: an axis-aligned box.
type RPPParams struct {
	Min, Max v3.Vec
}

// Kind implements Params.
func (RPPParams) Kind() string { return "rpp" }

// RPP is the axis-aligned box primitive. An instance transform is applied
// to the corners and the result re-boxed, so only translations and
// quarter-turn rotations keep the shape exact.
type RPP struct{}

var _ Primitive = RPP{}

// Name implements Primitive.
func (RPP) Name() string { return "rpp" }

// Prep implements Primitive.
func (RPP) Prep(p Params, xf sdf.M44) (State, geom.Box, error) {
	rp, ok := p.(RPPParams)
	if !ok {
		return nil, geom.Box{}, fmt.Errorf("rpp: unexpected params %T", p)
	}
	size := rp.Max.Sub(rp.Min)
	if !(size.X > 0 && size.Y > 0 && size.Z > 0) {
		return nil, geom.Box{}, fmt.Errorf("rpp: min %v must be below max %v on every axis", rp.Min, rp.Max)
	}
	b := geom.Box{Min: rp.Min, Max: rp.Max}.Transform(xf)
	return &b, b, nil
}

// Surface numbers are axis*2, plus 1 for the max face.
func faceSurf(axis int, max bool) int {
	if max {
		return axis*2 + 1
	}
	return axis * 2
}

// Shot implements Primitive.
func (RPP) Shot(st State, r *geom.Ray, segs []Seg) []Seg {
	b := st.(*geom.Box)
	near, far := -1e300, 1e300
	nearSurf, farSurf := -1, -1
	for i := 0; i < 3; i++ {
		o := geom.Axis(r.Origin, i)
		d := geom.Axis(r.Dir, i)
		lo, hi := geom.Axis(b.Min, i), geom.Axis(b.Max, i)
		if geom.NearZero(d, geom.SmallFastf) {
			if o < lo || o > hi {
				return segs
			}
			continue
		}
		t0, t1 := (lo-o)/d, (hi-o)/d
		s0, s1 := faceSurf(i, false), faceSurf(i, true)
		if t0 > t1 {
			t0, t1 = t1, t0
			s0, s1 = s1, s0
		}
		if t0 > near {
			near, nearSurf = t0, s0
		}
		if t1 < far {
			far, farSurf = t1, s1
		}
	}
	if near >= far || nearSurf < 0 {
		return segs
	}
	return append(segs, Seg{
		In:  Hit{Dist: near, Surf: nearSurf},
		Out: Hit{Dist: far, Surf: farSurf},
	})
}

// VShot implements Primitive.
func (p RPP) VShot(sts []State, rays []geom.Ray, out [][]Seg) [][]Seg {
	return VStub(p, sts, rays, out)
}

// Norm implements Primitive.
func (RPP) Norm(st State, r *geom.Ray, h *Hit) {
	fillPoint(r, h)
	axis := h.Surf / 2
	sign := -1.0
	if h.Surf%2 == 1 {
		sign = 1
	}
	h.Normal = geom.SetAxis(v3.Vec{}, axis, sign)
	h.Normed = true
}

// Free implements Primitive.
func (RPP) Free(State) {}
