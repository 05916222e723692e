// Package rt is the ray/CSG evaluation core. A Scene is a flattened model
// whose solids have been prepped by their primitives and indexed by a cut
// tree. Shootray fires one ray described by an Application through a
// Scene: it collects primitive segments cell by cell, weaves them into
// partitions, evaluates each region's boolean tree over the partitions
// and hands the surviving, ordered partitions to the caller's hit
// callback.
//
// A Scene is read-only once Prep returns and may be shared by any number
// of goroutines. All per-ray scratch state lives in a Resource, which
// belongs to exactly one goroutine.
package rt

import (
	"fmt"

	"github.com/chazu/csgray/pkg/cut"
	"github.com/chazu/csgray/pkg/geom"
	"github.com/chazu/csgray/pkg/model"
	"github.com/chazu/csgray/pkg/primitive"
)

// Tolerance holds the distance tolerance used to fuse nearly coincident
// hit distances.
type Tolerance struct {
	Dist float64
}

// DefaultTolerance returns the conventional 0.0005 model-unit tolerance.
func DefaultTolerance() Tolerance {
	return Tolerance{Dist: 0.0005}
}

// Solid is one prepped primitive instance.
type Solid struct {
	Bit     int
	Name    string
	Type    string
	Box     geom.Box
	Regions []*Region

	prim  primitive.Primitive
	state primitive.State
}

// Norm fills in h's point and normal if they have not been computed yet.
func (s *Solid) Norm(r *geom.Ray, h *primitive.Hit) {
	if !h.Normed {
		s.prim.Norm(s.state, r, h)
	}
}

// Region is a named boolean combination of solids.
type Region struct {
	Bit      int
	Name     string
	ID       int
	Material string
	Tree     *model.Tree

	solids []int
}

// Air reports whether the region classifies air rather than material.
func (r *Region) Air() bool { return r.ID <= 0 }

func (r *Region) String() string { return r.Name }

// PrepOptions tunes Prep. Zero fields take their defaults.
type PrepOptions struct {
	Tol Tolerance
	Cut cut.Options
}

// Scene is a prepped model.
type Scene struct {
	Solids  []*Solid
	Regions []*Region
	Bounds  geom.Box
	Tree    *cut.Tree
	Tol     Tolerance

	freed bool
}

// Prep preps every instance of flat through reg and builds the cut tree.
func Prep(flat *model.Flat, reg *primitive.Registry, opts PrepOptions) (*Scene, error) {
	if opts.Tol.Dist <= 0 {
		opts.Tol = DefaultTolerance()
	}
	if opts.Cut == (cut.Options{}) {
		opts.Cut = cut.DefaultOptions()
	}

	sc := &Scene{Tol: opts.Tol, Bounds: geom.EmptyBox()}
	boxes := make([]geom.Box, 0, len(flat.Instances))
	for i, inst := range flat.Instances {
		typ := inst.Shape.Type()
		prim, err := reg.Lookup(typ)
		if err != nil {
			sc.Free()
			return nil, fmt.Errorf("rt: prep %s: %w", inst.Name, err)
		}
		st, box, err := prim.Prep(inst.Shape.Params, inst.Xform)
		if err != nil {
			sc.Free()
			return nil, fmt.Errorf("rt: prep %s: %w", inst.Name, err)
		}
		if box.IsEmpty() {
			prim.Free(st)
			sc.Free()
			return nil, fmt.Errorf("rt: prep %s: primitive returned empty bounds", inst.Name)
		}
		sc.Solids = append(sc.Solids, &Solid{
			Bit:   i,
			Name:  inst.Name,
			Type:  typ,
			Box:   box,
			prim:  prim,
			state: st,
		})
		boxes = append(boxes, box)
		sc.Bounds = sc.Bounds.Extend(box)
	}

	for i := range flat.Regions {
		fr := &flat.Regions[i]
		if fr.Tree == nil {
			sc.Free()
			return nil, fmt.Errorf("rt: region %s has no tree", fr.Name)
		}
		r := &Region{
			Bit:      i,
			Name:     fr.Name,
			ID:       fr.ID,
			Material: fr.Material,
			Tree:     fr.Tree,
			solids:   fr.Tree.Solids(),
		}
		for _, id := range r.solids {
			if id < 0 || id >= len(sc.Solids) {
				sc.Free()
				return nil, fmt.Errorf("rt: region %s references solid %d of %d", r.Name, id, len(sc.Solids))
			}
			s := sc.Solids[id]
			s.Regions = append(s.Regions, r)
		}
		sc.Regions = append(sc.Regions, r)
	}

	tree, err := cut.Build(boxes, opts.Cut)
	if err != nil {
		sc.Free()
		return nil, fmt.Errorf("rt: prep: %w", err)
	}
	sc.Tree = tree

	Logger().Info("rt: scene prepped",
		"solids", len(sc.Solids),
		"regions", len(sc.Regions),
		"bounds", sc.Bounds.String(),
		"cut", tree.Stats().String())
	return sc, nil
}

// Free releases every solid's prepped state. The scene must not be shot
// at afterwards.
func (sc *Scene) Free() {
	if sc.freed {
		return
	}
	sc.freed = true
	for _, s := range sc.Solids {
		s.prim.Free(s.state)
		s.state = nil
	}
}

// RegionSummary describes one region of a scene.
type RegionSummary struct {
	Name   string
	ID     int
	Air    bool
	Solids int
}

// Describe lists the regions of the scene in bit order.
func (sc *Scene) Describe() []RegionSummary {
	out := make([]RegionSummary, len(sc.Regions))
	for i, r := range sc.Regions {
		out[i] = RegionSummary{Name: r.Name, ID: r.ID, Air: r.Air(), Solids: len(r.solids)}
	}
	return out
}

// Region returns the region with the given name, or nil.
func (sc *Scene) Region(name string) *Region {
	for _, r := range sc.Regions {
		if r.Name == name {
			return r
		}
	}
	return nil
}
