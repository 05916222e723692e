package model

import (
	"fmt"
	"strings"

	"github.com/deadsy/sdfx/sdf"
)

// Tree is a region's boolean tree after flattening. Leaves index into
// Flat.Instances.
type Tree struct {
	Op          Op
	Left, Right *Tree
	Solid       int
}

func (t *Tree) String() string {
	if t.Op == OpLeaf {
		return fmt.Sprintf("#%d", t.Solid)
	}
	return fmt.Sprintf("(%s %s %s)", t.Op, t.Left, t.Right)
}

// Solids returns the distinct instance indices under t in first-seen order.
func (t *Tree) Solids() []int {
	var out []int
	seen := make(map[int]bool)
	var walk func(*Tree)
	walk = func(n *Tree) {
		if n.Op == OpLeaf {
			if !seen[n.Solid] {
				seen[n.Solid] = true
				out = append(out, n.Solid)
			}
			return
		}
		walk(n.Left)
		walk(n.Right)
	}
	walk(t)
	return out
}

// Instance is one shape placed with one transform. Several region leaves
// may share an instance.
type Instance struct {
	Name  string
	Shape *Shape
	Xform sdf.M44
}

// FlatRegion is a region whose tree references instances.
type FlatRegion struct {
	Name     string
	ID       int
	Material string
	Tree     *Tree
}

// Air reports whether the region is an air region.
func (r *FlatRegion) Air() bool { return r.ID <= 0 }

// Flat is a fully resolved model, ready for prep.
type Flat struct {
	Instances []Instance
	Regions   []FlatRegion
}

// InvalidError is returned by Flatten when validation fails.
type InvalidError struct {
	Findings []ValidationError
}

func (e *InvalidError) Error() string {
	msgs := make([]string, len(e.Findings))
	for i, f := range e.Findings {
		msgs[i] = f.Error()
	}
	return "model: invalid database: " + strings.Join(msgs, "; ")
}

// transformStack accumulates instance transforms during the tree walk.
type transformStack struct {
	stack []sdf.M44
}

func newTransformStack() *transformStack {
	return &transformStack{stack: []sdf.M44{sdf.Identity3d()}}
}

func (ts *transformStack) push(m sdf.M44) {
	ts.stack = append(ts.stack, ts.top().Mul(m))
}

func (ts *transformStack) pop() {
	if len(ts.stack) > 1 {
		ts.stack = ts.stack[:len(ts.stack)-1]
	}
}

func (ts *transformStack) top() sdf.M44 {
	return ts.stack[len(ts.stack)-1]
}

type instanceKey struct {
	shape string
	xf    sdf.M44
}

type flattener struct {
	db    *Database
	flat  *Flat
	index map[instanceKey]int
	uses  map[string]int
	ts    *transformStack
}

// Flatten resolves the regions reachable from roots, or every region when
// no roots are given, into a Flat model. It validates db first.
func Flatten(db *Database, roots ...string) (*Flat, error) {
	if errs := Errors(Validate(db)); len(errs) > 0 {
		return nil, &InvalidError{Findings: errs}
	}

	regions, err := selectRegions(db, roots)
	if err != nil {
		return nil, err
	}

	f := &flattener{
		db:    db,
		flat:  &Flat{},
		index: make(map[instanceKey]int),
		uses:  make(map[string]int),
		ts:    newTransformStack(),
	}
	for _, r := range regions {
		tree, err := f.walk(r.Tree)
		if err != nil {
			return nil, fmt.Errorf("model: flatten region %q: %w", r.Name, err)
		}
		f.flat.Regions = append(f.flat.Regions, FlatRegion{
			Name:     r.Name,
			ID:       r.RegionID,
			Material: r.Material,
			Tree:     tree,
		})
	}
	return f.flat, nil
}

// selectRegions gathers region combs reachable from roots in walk order.
func selectRegions(db *Database, roots []string) ([]*Comb, error) {
	if len(roots) == 0 {
		return db.Regions(), nil
	}
	var out []*Comb
	seen := make(map[string]bool)
	var visit func(name string)
	visit = func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		c := db.Comb(name)
		if c == nil {
			return
		}
		if c.Region {
			out = append(out, c)
			return
		}
		c.Tree.Leaves(func(n *Node) { visit(n.Name) })
	}
	for _, name := range roots {
		if !db.Has(name) {
			return nil, fmt.Errorf("model: unknown root %q", name)
		}
		visit(name)
	}
	return out, nil
}

// walk converts a description tree into a flat tree, inlining
// combinations under the accumulated transform.
func (f *flattener) walk(n *Node) (*Tree, error) {
	switch n.Op {
	case OpLeaf:
		f.ts.push(n.Xform)
		defer f.ts.pop()
		if s := f.db.Shape(n.Name); s != nil {
			return &Tree{Op: OpLeaf, Solid: f.instance(s)}, nil
		}
		if c := f.db.Comb(n.Name); c != nil {
			return f.walk(c.Tree)
		}
		return nil, fmt.Errorf("undefined object %q", n.Name)

	case OpUnion, OpIntersect, OpSubtract:
		l, err := f.walk(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := f.walk(n.Right)
		if err != nil {
			return nil, err
		}
		return &Tree{Op: n.Op, Left: l, Right: r}, nil

	default:
		return nil, fmt.Errorf("unknown node op: %v", n.Op)
	}
}

// instance returns the index of s under the current transform, adding a
// new instance the first time the pair is seen.
func (f *flattener) instance(s *Shape) int {
	key := instanceKey{shape: s.Name, xf: f.ts.top()}
	if i, ok := f.index[key]; ok {
		return i
	}
	f.uses[s.Name]++
	name := s.Name
	if n := f.uses[s.Name]; n > 1 {
		name = fmt.Sprintf("%s@%d", s.Name, n)
	}
	i := len(f.flat.Instances)
	f.flat.Instances = append(f.flat.Instances, Instance{Name: name, Shape: s, Xform: key.xf})
	f.index[key] = i
	return i
}
