// Package sdfx implements the "sdf" primitive on top of the
// github.com/deadsy/sdfx signed distance function library. Any sdf.SDF3
// can be traced: Shot sphere-traces the ray through the shape's bounding
// box and bisects every sign change of the distance function.
package sdfx

import (
	"fmt"
	"math"

	"github.com/chazu/csgray/pkg/geom"
	"github.com/chazu/csgray/pkg/primitive"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ primitive.Primitive = (*Primitive)(nil)

const (
	// maxSteps bounds the march along one ray.
	maxSteps = 4096

	// bisectIters bounds root refinement at a sign change.
	bisectIters = 60
)

// Params wraps an sdf.SDF3 as primitive parameters.
type Params struct {
	Shape sdf.SDF3
	Label string // shape description for diagnostics
}

// Kind implements primitive.Params.
func (Params) Kind() string { return "sdf" }

// Wrap makes Params from an arbitrary SDF.
func Wrap(s sdf.SDF3, label string) Params {
	return Params{Shape: s, Label: label}
}

// Box returns a box of the given size centered on the origin.
func Box(size v3.Vec, round float64) (Params, error) {
	s, err := sdf.Box3D(size, round)
	if err != nil {
		return Params{}, fmt.Errorf("sdfx: box: %w", err)
	}
	return Params{Shape: s, Label: "box"}, nil
}

// Cylinder returns a Z-axis cylinder centered on the origin.
func Cylinder(height, radius, round float64) (Params, error) {
	s, err := sdf.Cylinder3D(height, radius, round)
	if err != nil {
		return Params{}, fmt.Errorf("sdfx: cylinder: %w", err)
	}
	return Params{Shape: s, Label: "cylinder"}, nil
}

// Sphere returns a sphere centered on the origin.
func Sphere(radius float64) (Params, error) {
	s, err := sdf.Sphere3D(radius)
	if err != nil {
		return Params{}, fmt.Errorf("sdfx: sphere: %w", err)
	}
	return Params{Shape: s, Label: "sphere"}, nil
}

type state struct {
	s       sdf.SDF3
	box     geom.Box
	eps     float64 // distance treated as on-surface
	minStep float64
}

// Primitive traces sdf.SDF3 shapes.
type Primitive struct{}

// New returns the sdf primitive.
func New() *Primitive {
	return &Primitive{}
}

// Name implements primitive.Primitive.
func (*Primitive) Name() string { return "sdf" }

// Prep applies xf to the shape and sizes the marching tolerances from its
// bounding box.
func (*Primitive) Prep(p primitive.Params, xf sdf.M44) (primitive.State, geom.Box, error) {
	sp, ok := p.(Params)
	if !ok {
		return nil, geom.Box{}, fmt.Errorf("sdf: unexpected params %T", p)
	}
	if sp.Shape == nil {
		return nil, geom.Box{}, fmt.Errorf("sdf: %s: nil shape", sp.Label)
	}
	s := sdf.Transform3D(sp.Shape, xf)
	box := geom.FromSDF(s.BoundingBox())
	size := box.Size()
	diag := size.Length()
	if box.IsEmpty() || !(diag > 0) {
		return nil, geom.Box{}, fmt.Errorf("sdf: %s: empty bounding box %v", sp.Label, box)
	}
	st := &state{
		s:       s,
		box:     box,
		eps:     diag * 1e-9,
		minStep: diag * 1e-4,
	}
	return st, box, nil
}

// Shot implements primitive.Primitive.
func (*Primitive) Shot(ps primitive.State, r *geom.Ray, segs []primitive.Seg) []primitive.Seg {
	st := ps.(*state)
	near, far, ok := st.box.Pad(st.minStep).Clip(r, geom.Reciprocal(r.Dir))
	if !ok {
		return segs
	}

	t := near
	prev := st.s.Evaluate(r.At(t))
	inside := prev < 0
	inT := near
	for i := 0; i < maxSteps && t < far; i++ {
		nt := t + math.Max(math.Abs(prev), st.minStep)
		if nt > far {
			nt = far
		}
		d := st.s.Evaluate(r.At(nt))
		if (d < 0) != inside {
			root := st.bisect(r, t, nt, inside)
			if inside {
				segs = append(segs, seg(inT, root))
			} else {
				inT = root
			}
			inside = !inside
		}
		t, prev = nt, d
	}
	if inside {
		segs = append(segs, seg(inT, t))
	}
	return segs
}

func seg(in, out float64) primitive.Seg {
	return primitive.Seg{In: primitive.Hit{Dist: in}, Out: primitive.Hit{Dist: out, Surf: 1}}
}

// bisect finds the surface between lo and hi, where the inside flag
// describes lo.
func (st *state) bisect(r *geom.Ray, lo, hi float64, inside bool) float64 {
	for i := 0; i < bisectIters && hi-lo > st.eps; i++ {
		mid := 0.5 * (lo + hi)
		if (st.s.Evaluate(r.At(mid)) < 0) == inside {
			lo = mid
		} else {
			hi = mid
		}
	}
	return 0.5 * (lo + hi)
}

// VShot implements primitive.Primitive.
func (p *Primitive) VShot(sts []primitive.State, rays []geom.Ray, out [][]primitive.Seg) [][]primitive.Seg {
	return primitive.VStub(p, sts, rays, out)
}

// Norm estimates the gradient by central differences.
func (*Primitive) Norm(ps primitive.State, r *geom.Ray, h *primitive.Hit) {
	st := ps.(*state)
	p := r.At(h.Dist)
	e := st.minStep * 0.1
	dx := v3.Vec{X: e}
	dy := v3.Vec{Y: e}
	dz := v3.Vec{Z: e}
	g := v3.Vec{
		X: st.s.Evaluate(p.Add(dx)) - st.s.Evaluate(p.Sub(dx)),
		Y: st.s.Evaluate(p.Add(dy)) - st.s.Evaluate(p.Sub(dy)),
		Z: st.s.Evaluate(p.Add(dz)) - st.s.Evaluate(p.Sub(dz)),
	}
	h.Point = p
	if g.Length() > 0 {
		h.Normal = g.Normalize()
	}
	h.Normed = true
}

// Free implements primitive.Primitive.
func (*Primitive) Free(primitive.State) {}
