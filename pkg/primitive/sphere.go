package primitive

import (
	"fmt"
	"math"

	"github.com/chazu/csgray/pkg/geom"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// SphereParams describes a sphere.
type SphereParams struct {
	Center v3.Vec
	Radius float64
}

// Kind implements Params.
func (SphereParams) Kind() string { return "sph" }

type sphereState struct {
	center v3.Vec
	radius float64
	radSq  float64
	invRad float64
}

// Sphere is the analytic sphere primitive.
type Sphere struct{}

var _ Primitive = Sphere{}

// Name implements Primitive.
func (Sphere) Name() string { return "sph" }

// Prep transforms the center and scales the radius by xf. Non-uniform
// scales are not supported.
func (Sphere) Prep(p Params, xf sdf.M44) (State, geom.Box, error) {
	sp, ok := p.(SphereParams)
	if !ok {
		return nil, geom.Box{}, fmt.Errorf("sph: unexpected params %T", p)
	}
	if !(sp.Radius > 0) {
		return nil, geom.Box{}, fmt.Errorf("sph: radius must be positive, got %g", sp.Radius)
	}
	c := xf.MulPosition(sp.Center)
	edge := xf.MulPosition(sp.Center.Add(v3.Vec{X: sp.Radius}))
	r := edge.Sub(c).Length()
	st := &sphereState{center: c, radius: r, radSq: r * r, invRad: 1 / r}
	rv := v3.Vec{X: r, Y: r, Z: r}
	return st, geom.Box{Min: c.Sub(rv), Max: c.Add(rv)}, nil
}

// Shot reports the chord through the sphere. A sphere entirely behind an
// outside origin, and a tangent ray, produce nothing.
func (Sphere) Shot(st State, r *geom.Ray, segs []Seg) []Seg {
	s := st.(*sphereState)
	ov := s.center.Sub(r.Origin)
	b := r.Dir.Dot(ov)
	magsq := ov.Dot(ov)

	if magsq >= s.radSq && b < 0 {
		return segs
	}
	root := b*b - magsq + s.radSq
	if root <= 0 {
		return segs
	}
	root = math.Sqrt(root)
	return append(segs, Seg{
		In:  Hit{Dist: b - root},
		Out: Hit{Dist: b + root},
	})
}

// VShot implements Primitive.
func (p Sphere) VShot(sts []State, rays []geom.Ray, out [][]Seg) [][]Seg {
	return VStub(p, sts, rays, out)
}

// Norm implements Primitive.
func (Sphere) Norm(st State, r *geom.Ray, h *Hit) {
	s := st.(*sphereState)
	fillPoint(r, h)
	h.Normal = h.Point.Sub(s.center).MulScalar(s.invRad)
	h.Normed = true
}

// Free implements Primitive.
func (Sphere) Free(State) {}
