package rt

import (
	"sort"

	"github.com/chazu/csgray/pkg/geom"
	"github.com/chazu/csgray/pkg/primitive"
)

// vgroup is the (solid, ray) pairs of one primitive type in a bundle.
type vgroup struct {
	prim   primitive.Primitive
	solids []int
	rays   []int
	sts    []primitive.State
	in     []geom.Ray
}

// vhit is one pair's segments, tagged for sorting back into ray order.
type vhit struct {
	ray, solid int
	segs       []primitive.Seg
}

// Shootrays fires a bundle of rays through ap.Scene and returns each
// ray's callback result. Instead of walking the cut tree per ray, every
// solid whose box a ray crosses is paired with that ray, and the pairs
// are shot with one VShot call per primitive type. Each ray is then
// woven, evaluated and reported exactly as Shootray would, with ap.Ray
// set to that ray during its callbacks.
//
// OneHit stops evaluation early but not shooting: the whole bundle is
// shot up front. The Stats shot and prune counts therefore differ from
// Shootray's. Without OneHit the partitions do not; with it, every solid
// on the ray has already been woven, so an early partition can be split
// by an overlap Shootray had not reached yet.
func Shootrays(ap *Application, rays []geom.Ray) []int {
	res := checkApplication(ap, "Shootrays")
	sc := ap.Scene
	for i := range rays {
		checkDir("Shootrays", rays[i].Dir)
	}
	rets := make([]int, len(rays))
	if len(rays) == 0 {
		return rets
	}

	// Pair rays with solids, grouped by primitive in first-seen order.
	live := make([]bool, len(rays))
	var groups []*vgroup
	index := make(map[primitive.Primitive]*vgroup)
	for i := range rays {
		r := &rays[i]
		inv := geom.Reciprocal(r.Dir)
		start, end, ok := modelRange(sc, r, inv)
		if !ok {
			continue
		}
		live[i] = true
		for id, s := range sc.Solids {
			near, far, hit := s.Box.Clip(r, inv)
			if !hit || far < start || near > end {
				res.Stats.PruneSolRPP++
				continue
			}
			g := index[s.prim]
			if g == nil {
				g = &vgroup{prim: s.prim}
				index[s.prim] = g
				groups = append(groups, g)
			}
			g.solids = append(g.solids, id)
			g.rays = append(g.rays, i)
			g.sts = append(g.sts, s.state)
			g.in = append(g.in, *r)
		}
	}

	var hits []vhit
	for _, g := range groups {
		out := g.prim.VShot(g.sts, g.in, nil)
		for k, segs := range out {
			res.Stats.Shots++
			if len(segs) == 0 {
				res.Stats.ShotMisses++
				continue
			}
			res.Stats.ShotHits++
			hits = append(hits, vhit{ray: g.rays[k], solid: g.solids[k], segs: segs})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].ray != hits[b].ray {
			return hits[a].ray < hits[b].ray
		}
		return hits[a].solid < hits[b].solid
	})

	next := 0
	for i := range rays {
		lo := next
		for next < len(hits) && hits[next].ray == i {
			next++
		}
		rets[i] = res.shootBundled(ap, rays[i], live[i], hits[lo:next])
	}
	return rets
}

// shootBundled finishes one ray of a bundle from its pre-shot segments.
func (res *Resource) shootBundled(ap *Application, ray geom.Ray, live bool, hits []vhit) int {
	sc := ap.Scene
	ap.Ray = ray
	r := &ap.Ray

	res.Stats.Rays++
	res.begin(sc, r)
	defer res.end()

	if !live {
		res.Stats.MissModel++
		return ap.miss()
	}
	for _, h := range hits {
		res.testAndSet(h.solid)
		for _, sg := range h.segs {
			res.addWaiting(h.solid, sg)
		}
	}

	if ap.NoBooleans {
		res.weaveFlat(sc.Tol.Dist)
	} else {
		res.weave(sc.Tol.Dist)
	}
	return res.finish(ap, false, 0)
}
