// Package model describes CSG geometry before it is prepped for ray
// tracing. A Database holds named primitive shapes and named combinations
// whose boolean trees reference shapes and other combinations by name.
// Combinations flagged as regions are the unit of attribution along a ray.
//
// Flatten resolves a Database into a Flat model: one instance per distinct
// (shape, transform) pair and one boolean tree per region over those
// instances. The ray tracing core only ever sees Flat models.
package model

import (
	"fmt"

	"github.com/chazu/csgray/pkg/primitive"
	"github.com/deadsy/sdfx/sdf"
)

// Op is the kind of a boolean tree node.
type Op int

const (
	OpLeaf Op = iota
	OpUnion
	OpIntersect
	OpSubtract
)

func (o Op) String() string {
	switch o {
	case OpLeaf:
		return "leaf"
	case OpUnion:
		return "union"
	case OpIntersect:
		return "intersect"
	case OpSubtract:
		return "subtract"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// Node is a description tree node. Leaves name a Shape or a Comb and carry
// the transform applied to what they reference.
type Node struct {
	Op          Op
	Left, Right *Node

	Name  string
	Xform sdf.M44
}

// Ref returns a leaf referencing name with the identity transform.
func Ref(name string) *Node {
	return &Node{Op: OpLeaf, Name: name, Xform: sdf.Identity3d()}
}

// Union returns l OR r.
func Union(l, r *Node) *Node { return &Node{Op: OpUnion, Left: l, Right: r} }

// Intersect returns l AND r.
func Intersect(l, r *Node) *Node { return &Node{Op: OpIntersect, Left: l, Right: r} }

// Subtract returns l AND NOT r.
func Subtract(l, r *Node) *Node { return &Node{Op: OpSubtract, Left: l, Right: r} }

// Transform premultiplies m onto every leaf under n, in place.
func (n *Node) Transform(m sdf.M44) *Node {
	if n == nil {
		return nil
	}
	if n.Op == OpLeaf {
		n.Xform = m.Mul(n.Xform)
		return n
	}
	n.Left.Transform(m)
	n.Right.Transform(m)
	return n
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Left = n.Left.Clone()
	c.Right = n.Right.Clone()
	return &c
}

// Leaves calls fn for every leaf in left-to-right order.
func (n *Node) Leaves(fn func(*Node)) {
	if n == nil {
		return
	}
	if n.Op == OpLeaf {
		fn(n)
		return
	}
	n.Left.Leaves(fn)
	n.Right.Leaves(fn)
}

func (n *Node) String() string {
	if n == nil {
		return "()"
	}
	if n.Op == OpLeaf {
		return n.Name
	}
	return fmt.Sprintf("(%s %s %s)", n.Op, n.Left, n.Right)
}

// Shape is a named primitive solid.
type Shape struct {
	Name   string
	Params primitive.Params
}

// Type returns the primitive type name.
func (s *Shape) Type() string {
	if s.Params == nil {
		return ""
	}
	return s.Params.Kind()
}

// Comb is a named combination. When Region is set the comb is a region
// and RegionID classifies it; IDs <= 0 mark air.
type Comb struct {
	Name     string
	Tree     *Node
	Region   bool
	RegionID int
	Material string
}

// IsAir reports whether the comb is an air region.
func (c *Comb) IsAir() bool {
	return c.Region && c.RegionID <= 0
}
