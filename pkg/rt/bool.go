package rt

import "github.com/chazu/csgray/pkg/model"

// behindTol is how far past the ray start a partition must reach to be
// kept.
const behindTol = 0.001

// boolFinal evaluates raw partitions that start before enddist and moves
// the ones a region claims onto the final chain. hits is the number of
// hit points already final; the updated count is returned. With OneHit
// set, a partition reaching past enddist is still evaluated when every
// solid of every region that could claim it has been shot.
func (res *Resource) boolFinal(ap *Application, enddist float64, hits int) int {
	tol := res.scene.Tol.Dist
	r := res.ray
	raw, final := res.rawHead, res.finalHead

	for pi := res.parts[raw].next; pi != raw; {
		pp := res.parts[pi]
		next := pp.next

		if pp.Len() <= tol || pp.OutDist <= r.Min+behindTol {
			res.unlink(pi)
			res.freePartition(pi)
			pi = next
			continue
		}
		if pp.InDist > r.Max || pp.InDist > enddist+tol {
			break
		}

		res.regionTable(pp)
		if pp.OutDist > enddist+tol && (ap.OneHit == 0 || !res.ready()) {
			break
		}

		res.claim = res.claim[:0]
		for _, reg := range res.regTab {
			if res.evalTree(reg.Tree, pp) {
				res.claim = append(res.claim, reg)
			}
		}

		var prev *Region
		lastIdx := res.parts[final].prev
		last := res.parts[lastIdx]
		if lastIdx != final {
			prev = last.Region
		}

		region := res.resolve(ap, pp, prev)
		res.unlink(pi)
		if region == nil || (region.Air() && !ap.TrackAir) {
			res.freePartition(pi)
			pi = next
			continue
		}
		pp.Region = region

		if prev == region && !last.overlapped && !pp.overlapped && pp.InDist-last.OutDist <= tol {
			last.OutDist, last.out = pp.OutDist, pp.out
			for _, s := range pp.segs {
				last.addSeg(s)
			}
			res.freePartition(pi)
		} else {
			res.insertBefore(pi, final)
			if ap.OneHit >= 0 || !region.Air() {
				hits += 2
			}
		}

		if ap.enough(hits) {
			return hits
		}
		pi = next
	}
	return hits
}

// regionTable fills res.regTab with every region using a solid of pp.
func (res *Resource) regionTable(pp *Partition) {
	res.regTab = res.regTab[:0]
	for _, si := range pp.segs {
		for _, reg := range res.scene.Solids[res.segs[si].Solid].Regions {
			found := false
			for _, have := range res.regTab {
				if have == reg {
					found = true
					break
				}
			}
			if !found {
				res.regTab = append(res.regTab, reg)
			}
		}
	}
}

// ready reports whether every solid of every region in res.regTab has
// been shot, so no later cell can change their verdict.
func (res *Resource) ready() bool {
	for _, reg := range res.regTab {
		for _, id := range reg.solids {
			if !res.shot(id) {
				return false
			}
		}
	}
	return true
}

// evalTree reports whether the region tree t contains pp.
func (res *Resource) evalTree(t *model.Tree, pp *Partition) bool {
	switch t.Op {
	case model.OpLeaf:
		return pp.hasSolid(t.Solid)
	case model.OpUnion:
		return res.evalTree(t.Left, pp) || res.evalTree(t.Right, pp)
	case model.OpIntersect:
		return res.evalTree(t.Left, pp) && res.evalTree(t.Right, pp)
	case model.OpSubtract:
		return res.evalTree(t.Left, pp) && !res.evalTree(t.Right, pp)
	}
	return false
}

// finalFlat moves every raw partition to the final chain, attributed to
// the first region of its solid.
func (res *Resource) finalFlat(ap *Application) {
	tol := res.scene.Tol.Dist
	r := res.ray
	raw, final := res.rawHead, res.finalHead
	for pi := res.parts[raw].next; pi != raw; {
		pp := res.parts[pi]
		next := pp.next
		res.unlink(pi)
		s := res.scene.Solids[res.segs[pp.segs[0]].Solid]
		switch {
		case pp.Len() <= tol, pp.OutDist <= r.Min+behindTol, pp.InDist > r.Max,
			len(s.Regions) == 0, s.Regions[0].Air() && !ap.TrackAir:
			res.freePartition(pi)
		default:
			pp.Region = s.Regions[0]
			res.insertBefore(pi, final)
		}
		pi = next
	}
}
