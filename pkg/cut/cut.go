// Package cut builds the spatial index the ray dispatcher uses to decide
// which solids a ray must be tested against. The index is a binary space
// subdivision of the model box: interior nodes split one axis at one
// plane, leaves list every solid whose bounding box reaches into the cell.
// A solid may appear in several leaves; callers de-duplicate per ray.
//
// Building is deterministic. Walking is lazy and near-to-far.
package cut

import (
	"fmt"
	"sort"

	"github.com/chazu/csgray/pkg/geom"
	"github.com/dhconnelly/rtreego"
)

// Options tunes the subdivision.
type Options struct {
	// MaxDepth stops splitting below this depth.
	MaxDepth int
	// MaxLen is the leaf length accepted once depth reaches minDepth.
	MaxLen int
	// MinSide is the narrowest child a cut may leave. Cells narrower than
	// twice this are never cut.
	MinSide float64
}

// DefaultOptions mirrors the classic librt tuning.
func DefaultOptions() Options {
	return Options{MaxDepth: 32, MaxLen: 45, MinSide: 1.0}
}

// minDepth is the depth before which MaxLen is not consulted.
const minDepth = 6

// Node is one cell of the tree. Leaves have Solids; interior nodes have
// both children.
type Node struct {
	Box    geom.Box
	Axis   int
	Point  float64
	Lo, Hi *Node
	Solids []int
	Depth  int
}

// IsLeaf reports whether n is a leaf cell.
func (n *Node) IsLeaf() bool { return n.Lo == nil }

// Tree is a built cut tree. It is read-only after Build.
type Tree struct {
	Root   *Node
	Bounds geom.Box

	boxes []geom.Box
	eps   float64
	index *rtreego.Rtree
}

// solidRect adapts a solid box to rtreego.Spatial.
type solidRect struct {
	id   int
	rect rtreego.Rect
}

func (s *solidRect) Bounds() rtreego.Rect { return s.rect }

func rect(b geom.Box) (rtreego.Rect, error) {
	return rtreego.NewRectFromPoints(
		rtreego.Point{b.Min.X, b.Min.Y, b.Min.Z},
		rtreego.Point{b.Max.X, b.Max.Y, b.Max.Z},
	)
}

// Build subdivides the union of boxes. boxes[i] is the bounding box of
// solid i. Zero boxes produce a tree with a nil root.
func Build(boxes []geom.Box, opts Options) (*Tree, error) {
	t := &Tree{Bounds: geom.EmptyBox(), boxes: boxes}
	if len(boxes) == 0 {
		return t, nil
	}
	for i, b := range boxes {
		if b.IsEmpty() {
			return nil, fmt.Errorf("cut: solid %d has an empty bounding box", i)
		}
		t.Bounds = t.Bounds.Extend(b)
	}

	diag := t.Bounds.Size().Length()
	t.eps = diag*1e-9 + 1e-12

	objs := make([]rtreego.Spatial, len(boxes))
	for i, b := range boxes {
		r, err := rect(b.Pad(t.eps))
		if err != nil {
			return nil, fmt.Errorf("cut: solid %d: %w", i, err)
		}
		objs[i] = &solidRect{id: i, rect: r}
	}
	t.index = rtreego.NewTree(3, 8, 32, objs...)

	root := &Node{Box: t.Bounds}
	root.Solids = t.populate(root.Box)
	t.Root = root
	t.optim(root, opts)
	return t, nil
}

// populate returns the sorted ids of solids whose box reaches into b.
func (t *Tree) populate(b geom.Box) []int {
	r, err := rect(b.Pad(t.eps))
	if err != nil {
		return nil
	}
	hits := t.index.SearchIntersect(r)
	ids := make([]int, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.(*solidRect).id)
	}
	sort.Ints(ids)
	return ids
}

// optim splits n recursively until the stop rules hold.
func (t *Tree) optim(n *Node, opts Options) {
	oldlen := len(n.Solids)
	if oldlen <= 1 || n.Depth > opts.MaxDepth {
		return
	}
	if n.Depth >= minDepth && oldlen <= opts.MaxLen {
		return
	}

	axis, where, ok := t.assess(n, opts)
	if !ok {
		return
	}

	loBox, hiBox := n.Box, n.Box
	loBox.Max = geom.SetAxis(loBox.Max, axis, where)
	hiBox.Min = geom.SetAxis(hiBox.Min, axis, where)
	lo := &Node{Box: loBox, Depth: n.Depth + 1, Solids: t.populate(loBox)}
	hi := &Node{Box: hiBox, Depth: n.Depth + 1, Solids: t.populate(hiBox)}

	// Hopeless: neither side got any smaller.
	if len(lo.Solids) >= oldlen && len(hi.Solids) >= oldlen {
		return
	}

	n.Axis, n.Point = axis, where
	n.Lo, n.Hi = lo, hi
	n.Solids = nil
	t.optim(lo, opts)
	t.optim(hi, opts)
}

// assess picks the split. Axes are tried starting at depth%3; on each axis
// the candidate planes are the solid box faces inside the cell, and the
// one nearest the cell midpoint wins.
func (t *Tree) assess(n *Node, opts Options) (axis int, where float64, ok bool) {
	for k := 0; k < 3; k++ {
		axis = (n.Depth + k) % 3
		lo := geom.Axis(n.Box.Min, axis)
		hi := geom.Axis(n.Box.Max, axis)
		if hi-lo < 2*opts.MinSide {
			continue
		}
		mid := 0.5 * (lo + hi)
		best, found := 0.0, false
		consider := func(p float64) {
			if p < lo+opts.MinSide || p > hi-opts.MinSide {
				return
			}
			if !found || abs(p-mid) < abs(best-mid) || (abs(p-mid) == abs(best-mid) && p < best) {
				best, found = p, true
			}
		}
		for _, id := range n.Solids {
			consider(geom.Axis(t.boxes[id].Min, axis))
			consider(geom.Axis(t.boxes[id].Max, axis))
		}
		if found {
			return axis, best, true
		}
	}
	return 0, 0, false
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// Stats summarises the shape of a tree.
type Stats struct {
	Cells    int
	Leaves   int
	MaxDepth int
	MaxLen   int
	MeanLen  float64
	Empty    int // leaves with no solids
}

// Stats measures the tree.
func (t *Tree) Stats() Stats {
	var s Stats
	total := 0
	var walk func(n *Node)
	walk = func(n *Node) {
		s.Cells++
		if n.Depth > s.MaxDepth {
			s.MaxDepth = n.Depth
		}
		if !n.IsLeaf() {
			walk(n.Lo)
			walk(n.Hi)
			return
		}
		s.Leaves++
		total += len(n.Solids)
		if len(n.Solids) > s.MaxLen {
			s.MaxLen = len(n.Solids)
		}
		if len(n.Solids) == 0 {
			s.Empty++
		}
	}
	if t.Root != nil {
		walk(t.Root)
	}
	if s.Leaves > 0 {
		s.MeanLen = float64(total) / float64(s.Leaves)
	}
	return s
}

func (s Stats) String() string {
	return fmt.Sprintf("cells=%d leaves=%d empty=%d depth=%d maxlen=%d meanlen=%.2f",
		s.Cells, s.Leaves, s.Empty, s.MaxDepth, s.MaxLen, s.MeanLen)
}
