package cut

import (
	"math"
	"sort"

	"github.com/chazu/csgray/pkg/geom"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Walker yields the leaves a ray passes through, nearest first. The zero
// value yields nothing; Reset arms it for a ray. A Walker holds no
// allocations of its own, so one can be kept per worker and reused.
type Walker struct {
	t    *Tree
	r    *geom.Ray
	inv  v3.Vec
	dist float64
	end  float64
	done bool
}

// Walk returns a walker over [start, end] along r. inv is the ray's
// reciprocal direction.
func (t *Tree) Walk(r *geom.Ray, inv v3.Vec, start, end float64) *Walker {
	w := &Walker{}
	w.Reset(t, r, inv, start, end)
	return w
}

// Reset re-arms the walker for a new ray or range. The range is clipped
// to the tree bounds; a ray missing them yields nothing.
func (w *Walker) Reset(t *Tree, r *geom.Ray, inv v3.Vec, start, end float64) {
	w.t, w.r, w.inv = t, r, inv
	w.dist, w.end = start, end
	w.done = t == nil || t.Root == nil || start > end
	if w.done {
		return
	}
	near, far, ok := t.Bounds.Clip(r, inv)
	if !ok {
		w.done = true
		return
	}
	w.dist = math.Max(start, near)
	w.end = math.Min(end, far)
	w.done = w.dist > w.end
}

// Next returns the next leaf and the ray interval inside it. ok is false
// once the range is exhausted.
func (w *Walker) Next() (leaf *Node, in, out float64, ok bool) {
	for !w.done {
		if w.dist > w.end {
			w.done = true
			break
		}
		p := w.r.At(w.dist)
		if !w.t.Bounds.Pad(w.t.eps).Contains(p) {
			w.done = true
			break
		}
		leaf = w.t.locate(p, w.r.Dir)
		near, far, hit := leaf.Box.Clip(w.r, w.inv)
		if !hit || far <= w.dist {
			// Grazing a cell edge; creep forward.
			w.dist = w.advance(w.dist)
			continue
		}
		in = math.Max(near, w.dist)
		out = math.Min(far, w.end)
		w.dist = w.advance(far)
		return leaf, in, out, true
	}
	return nil, 0, 0, false
}

// advance returns a distance just past d.
func (w *Walker) advance(d float64) float64 {
	nd := d + w.t.eps + math.Abs(d)*1e-12
	if nd <= d {
		nd = math.Nextafter(d, math.Inf(1))
	}
	return nd
}

// locate descends to the leaf holding p. A point on a split plane goes to
// the side the ray is heading into.
func (t *Tree) locate(p, dir v3.Vec) *Node {
	n := t.Root
	for !n.IsLeaf() {
		c := geom.Axis(p, n.Axis)
		switch {
		case c < n.Point:
			n = n.Lo
		case c > n.Point:
			n = n.Hi
		case geom.Axis(dir, n.Axis) < 0:
			n = n.Lo
		default:
			n = n.Hi
		}
	}
	return n
}

// Candidates returns every solid id a walk of r over its valid interval
// would offer, sorted and without duplicates.
func (t *Tree) Candidates(r *geom.Ray) []int {
	if t.Root == nil {
		return nil
	}
	inv := geom.Reciprocal(r.Dir)
	near, far, ok := t.Bounds.Clip(r, inv)
	if !ok {
		return nil
	}
	near = math.Max(near, r.Min)
	far = math.Min(far, r.Max)

	seen := make(map[int]bool)
	var ids []int
	w := t.Walk(r, inv, near, far)
	for leaf, _, _, ok := w.Next(); ok; leaf, _, _, ok = w.Next() {
		for _, id := range leaf.Solids {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Ints(ids)
	return ids
}
