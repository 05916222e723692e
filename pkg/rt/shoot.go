package rt

import (
	"fmt"
	"math"

	"github.com/chazu/csgray/pkg/geom"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// BackingDist is how far behind the ray start the cell walk begins, so
// solids enclosing the origin are found.
const BackingDist = -2.0

// dirTol is the allowed deviation of |Dir|² from one.
const dirTol = 1e-4

// Shootray fires ap.Ray through ap.Scene. It returns the hit callback's
// result when any partition survives, otherwise the miss callback's.
// The ray direction must be unit length. A nil ap.Resource uses
// Uniresource.
func Shootray(ap *Application) int {
	res := checkApplication(ap, "Shootray")
	sc := ap.Scene
	r := &ap.Ray

	checkDir("Shootray", r.Dir)

	res.Stats.Rays++
	res.begin(sc, r)
	defer res.end()

	inv := geom.Reciprocal(r.Dir)
	start, end, ok := modelRange(sc, r, inv)
	if !ok {
		res.Stats.MissModel++
		return ap.miss()
	}

	tol := sc.Tol.Dist
	oneHit := ap.OneHit != 0 && !ap.NoBooleans
	hits := 0
	done := false

	res.walker.Reset(sc.Tree, r, inv, start, end)
	for leaf, _, out, ok := res.walker.Next(); ok; leaf, _, out, ok = res.walker.Next() {
		res.Stats.Cells++
		if len(leaf.Solids) == 0 {
			res.Stats.EmptyCells++
			continue
		}
		shot := false
		for _, id := range leaf.Solids {
			if res.testAndSet(id) {
				res.Stats.Dups++
				continue
			}
			s := sc.Solids[id]
			if _, _, hit := s.Box.Clip(r, inv); !hit {
				res.Stats.PruneSolRPP++
				continue
			}
			res.Stats.Shots++
			res.shotBuf = s.prim.Shot(s.state, r, res.shotBuf[:0])
			if len(res.shotBuf) == 0 {
				res.Stats.ShotMisses++
				continue
			}
			res.Stats.ShotHits++
			for _, sg := range res.shotBuf {
				res.addWaiting(id, sg)
			}
			shot = true
		}
		if !shot {
			continue
		}
		if ap.NoBooleans {
			res.weaveFlat(tol)
			continue
		}
		res.weave(tol)
		if oneHit {
			hits = res.boolFinal(ap, out, hits)
			if ap.enough(hits) {
				done = true
				break
			}
		}
	}

	return res.finish(ap, done, hits)
}

// checkApplication enforces the dispatcher preconditions and returns the
// Resource to shoot with.
func checkApplication(ap *Application, fn string) *Resource {
	if ap == nil {
		panic("rt: " + fn + ": nil Application")
	}
	sc := ap.Scene
	if sc == nil {
		panic("rt: " + fn + ": Application has no Scene")
	}
	if sc.freed {
		panic("rt: " + fn + ": Scene has been freed")
	}
	if ap.Resource == nil {
		return Uniresource()
	}
	return ap.Resource
}

// checkDir panics unless d is unit length.
func checkDir(fn string, d v3.Vec) {
	if l2 := d.Dot(d); math.Abs(l2-1) > dirTol {
		panic(fmt.Sprintf("rt: %s: ray direction %v is not unit length", fn, d))
	}
}

// modelRange is the stretch of r worth walking: the model bounds clipped
// to the ray interval, starting up to BackingDist behind it.
func modelRange(sc *Scene, r *geom.Ray, inv v3.Vec) (start, end float64, ok bool) {
	if sc.Tree == nil || sc.Tree.Root == nil {
		return 0, 0, false
	}
	near, far, hit := sc.Bounds.Clip(r, inv)
	start = math.Max(near, r.Min+BackingDist)
	end = math.Min(far, r.Max)
	return start, end, hit && far >= r.Min && start <= end
}

// finish evaluates whatever the raw chain still holds and reports the
// ray to the callbacks. done means boolFinal already stopped early.
func (res *Resource) finish(ap *Application, done bool, hits int) int {
	if res.chainEmpty(res.rawHead) && res.chainEmpty(res.finalHead) {
		res.Stats.MissPrims++
		return ap.miss()
	}
	switch {
	case ap.NoBooleans:
		res.finalFlat(ap)
	case !done:
		res.boolFinal(ap, math.Inf(1), hits)
	}
	if res.chainEmpty(res.finalHead) {
		res.Stats.MissBool++
		return ap.miss()
	}

	list := &PartitionList{res: res, head: res.finalHead}
	res.Stats.Hits++
	res.Stats.Partitions += uint64(list.Len())
	return ap.hit(list)
}
