// Package primitive defines the capability set every solid type exposes to
// the ray dispatcher. The dispatcher never looks inside a primitive: it
// preps it once, asks it for hit segments along a ray, and asks it for a
// surface normal when a caller wants one. Implementations live behind a
// Registry keyed by type name, resolved once when a scene is prepped.
package primitive

import (
	"github.com/chazu/csgray/pkg/geom"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Hit is one ray/surface intersection. Point and Normal are only valid
// once Normed is set; the dispatcher fills them lazily through Norm.
type Hit struct {
	Dist   float64
	Point  v3.Vec
	Normal v3.Vec
	Surf   int // primitive-specific surface number
	Normed bool
}

// Seg is one entry/exit interval reported by Shot.
type Seg struct {
	In, Out Hit
}

// Params describes an unprepped solid. Each primitive defines its own
// concrete parameter type.
type Params interface {
	Kind() string
}

// State is whatever a primitive keeps after Prep. It is owned by the
// primitive and must not be mutated by Shot.
type State any

// Primitive is the capability set of one solid type.
type Primitive interface {
	// Name is the registry key and matches Params.Kind.
	Name() string

	// Prep validates p, applies the instance transform xf and returns the
	// prepped state and its bounding box.
	Prep(p Params, xf sdf.M44) (State, geom.Box, error)

	// Shot appends every segment where r passes through the solid.
	Shot(st State, r *geom.Ray, segs []Seg) []Seg

	// VShot shoots rays[i] at sts[i]. Results have the same semantics as
	// len(rays) calls to Shot.
	VShot(sts []State, rays []geom.Ray, out [][]Seg) [][]Seg

	// Norm fills h.Point and h.Normal (outward, unit length) and sets
	// h.Normed.
	Norm(st State, r *geom.Ray, h *Hit)

	// Free releases st. The state is not used afterwards.
	Free(st State)
}

// VStub implements VShot as a loop over Shot.
func VStub(p Primitive, sts []State, rays []geom.Ray, out [][]Seg) [][]Seg {
	if cap(out) < len(rays) {
		out = make([][]Seg, len(rays))
	}
	out = out[:len(rays)]
	for i := range rays {
		out[i] = p.Shot(sts[i], &rays[i], out[i][:0])
	}
	return out
}

// fillPoint sets h.Point from the ray.
func fillPoint(r *geom.Ray, h *Hit) {
	h.Point = r.At(h.Dist)
}
