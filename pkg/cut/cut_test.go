package cut

import (
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/chazu/csgray/pkg/geom"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cube(x, y, z, half float64) geom.Box {
	h := v3.Vec{X: half, Y: half, Z: half}
	c := v3.Vec{X: x, Y: y, Z: z}
	return geom.Box{Min: c.Sub(h), Max: c.Add(h)}
}

// grid returns n*n*n unit cubes spaced 4 apart.
func grid(n int) []geom.Box {
	var boxes []geom.Box
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				boxes = append(boxes, cube(float64(i*4), float64(j*4), float64(k*4), 1))
			}
		}
	}
	return boxes
}

func randomBoxes(rng *rand.Rand, n int) []geom.Box {
	boxes := make([]geom.Box, n)
	for i := range boxes {
		boxes[i] = cube(rng.Float64()*40-20, rng.Float64()*40-20, rng.Float64()*40-20, 0.2+rng.Float64()*3)
	}
	return boxes
}

func randomRay(rng *rand.Rand) geom.Ray {
	o := v3.Vec{X: rng.Float64()*80 - 40, Y: rng.Float64()*80 - 40, Z: rng.Float64()*80 - 40}
	d := v3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}.Normalize()
	r := geom.NewRay(o, d)
	r.Min = -1e6
	return r
}

func TestBuildEmpty(t *testing.T) {
	tree, err := Build(nil, DefaultOptions())
	require.NoError(t, err)
	assert.Nil(t, tree.Root)

	r := geom.NewRay(v3.Vec{}, v3.Vec{X: 1})
	assert.Empty(t, tree.Candidates(&r))

	w := tree.Walk(&r, geom.Reciprocal(r.Dir), 0, 100)
	_, _, _, ok := w.Next()
	assert.False(t, ok)
	assert.Equal(t, Stats{}, tree.Stats())
}

func TestBuildRejectsEmptyBox(t *testing.T) {
	_, err := Build([]geom.Box{geom.EmptyBox()}, DefaultOptions())
	assert.Error(t, err)
}

func TestBuildSingleSolidIsLeaf(t *testing.T) {
	tree, err := Build([]geom.Box{cube(0, 0, 0, 1)}, DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, tree.Root)
	assert.True(t, tree.Root.IsLeaf())
	assert.Equal(t, []int{0}, tree.Root.Solids)
}

func TestBuildSplitsSeparatedSolids(t *testing.T) {
	boxes := []geom.Box{cube(-2, 0, 0, 1), cube(2, 0, 0, 1)}
	tree, err := Build(boxes, DefaultOptions())
	require.NoError(t, err)
	root := tree.Root
	require.False(t, root.IsLeaf(), "two separated solids should be cut apart")
	assert.Equal(t, 0, root.Axis)
	assert.Equal(t, []int{0}, tree.locate(v3.Vec{X: -2.5}, v3.Vec{X: 1}).Solids)
	assert.Equal(t, []int{1}, tree.locate(v3.Vec{X: 2.5}, v3.Vec{X: 1}).Solids)
}

func TestBuildHopelessSplitUndone(t *testing.T) {
	// Identical boxes can never be separated.
	boxes := []geom.Box{cube(0, 0, 0, 5), cube(0, 0, 0, 5), cube(0, 0, 0, 5)}
	tree, err := Build(boxes, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, tree.Root.IsLeaf())
	assert.Len(t, tree.Root.Solids, 3)
}

func TestBuildDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	boxes := randomBoxes(rng, 200)
	a, err := Build(boxes, DefaultOptions())
	require.NoError(t, err)
	b, err := Build(boxes, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, reflect.DeepEqual(a.Root, b.Root), "identical input must build identical trees")
}

func TestStats(t *testing.T) {
	tree, err := Build(grid(4), DefaultOptions())
	require.NoError(t, err)
	s := tree.Stats()
	assert.Greater(t, s.Leaves, 1)
	assert.Equal(t, s.Cells, 2*s.Leaves-1)
	assert.LessOrEqual(t, s.MaxLen, 64)
	assert.NotEmpty(t, s.String())
}

func TestWalkOrderedAndContiguous(t *testing.T) {
	tree, err := Build(grid(4), DefaultOptions())
	require.NoError(t, err)

	r := geom.NewRay(v3.Vec{X: -10, Y: 4.5, Z: 4.5}, v3.Vec{X: 1})
	inv := geom.Reciprocal(r.Dir)
	near, far, ok := tree.Bounds.Clip(&r, inv)
	require.True(t, ok)

	w := tree.Walk(&r, inv, near, far)
	last := near
	cells := 0
	for leaf, in, out, ok := w.Next(); ok; leaf, in, out, ok = w.Next() {
		assert.True(t, leaf.IsLeaf())
		assert.LessOrEqual(t, in, out)
		assert.InDelta(t, last, in, 1e-6, "cells must tile the ray")
		last = out
		cells++
	}
	assert.Greater(t, cells, 1)
	assert.InDelta(t, far, last, 1e-6)
}

func TestWalkerReset(t *testing.T) {
	tree, err := Build(grid(2), DefaultOptions())
	require.NoError(t, err)
	r := geom.NewRay(v3.Vec{X: -10}, v3.Vec{X: 1})
	inv := geom.Reciprocal(r.Dir)

	var w Walker
	w.Reset(tree, &r, inv, 0, 100)
	var first []*Node
	for leaf, _, _, ok := w.Next(); ok; leaf, _, _, ok = w.Next() {
		first = append(first, leaf)
	}
	w.Reset(tree, &r, inv, 0, 100)
	var second []*Node
	for leaf, _, _, ok := w.Next(); ok; leaf, _, _, ok = w.Next() {
		second = append(second, leaf)
	}
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestWalkClipsToBounds(t *testing.T) {
	tree, err := Build(grid(2), DefaultOptions())
	require.NoError(t, err)
	r := geom.NewRay(v3.Vec{X: -10}, v3.Vec{X: 1})
	inv := geom.Reciprocal(r.Dir)
	_, far, ok := tree.Bounds.Clip(&r, inv)
	require.True(t, ok)

	type cell struct{ in, out float64 }
	done := make(chan []cell, 1)
	go func() {
		var cells []cell
		w := tree.Walk(&r, inv, 0, 100)
		for _, in, out, ok := w.Next(); ok; _, in, out, ok = w.Next() {
			cells = append(cells, cell{in, out})
		}
		done <- cells
	}()

	select {
	case cells := <-done:
		require.NotEmpty(t, cells)
		assert.InDelta(t, 9, cells[0].in, 1e-9)
		assert.InDelta(t, far, cells[len(cells)-1].out, 1e-9)
	case <-time.After(5 * time.Second):
		t.Fatalf("walk over [0,100] with bounds %v did not finish", tree.Bounds)
	}

	// A ray that misses the bounds yields nothing.
	miss := geom.NewRay(v3.Vec{X: -10, Y: 50}, v3.Vec{X: 1})
	w := tree.Walk(&miss, geom.Reciprocal(miss.Dir), 0, 100)
	_, _, _, ok = w.Next()
	assert.False(t, ok)
}

func TestCandidatesComplete(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	boxes := randomBoxes(rng, 150)
	tree, err := Build(boxes, Options{MaxDepth: 32, MaxLen: 4, MinSide: 0.5})
	require.NoError(t, err)

	for i := 0; i < 500; i++ {
		r := randomRay(rng)
		inv := geom.Reciprocal(r.Dir)
		got := make(map[int]bool)
		for _, id := range tree.Candidates(&r) {
			got[id] = true
		}
		for id, b := range boxes {
			if _, _, ok := b.Clip(&r, inv); ok && !got[id] {
				t.Fatalf("ray %d (%v) crosses solid %d %v but the cut tree omitted it", i, r, id, b)
			}
		}
	}
}

func TestCandidatesAxisAlignedOnSplitPlane(t *testing.T) {
	boxes := []geom.Box{cube(-2, 0, 0, 1), cube(2, 0, 0, 1)}
	tree, err := Build(boxes, DefaultOptions())
	require.NoError(t, err)

	// Travels inside the split plane x = root.Point.
	x := tree.Root.Point
	r := geom.NewRay(v3.Vec{X: x, Y: -10}, v3.Vec{Y: 1})
	got := tree.Candidates(&r)
	for id, b := range boxes {
		if _, _, ok := b.Clip(&r, geom.Reciprocal(r.Dir)); ok {
			assert.Contains(t, got, id)
		}
	}
}
