package rt

import "github.com/chazu/csgray/pkg/geom"

// farBehind is how far behind the origin a segment may end before it is
// ignored outright.
const farBehind = -10.0

// weave merges every waiting segment into the raw partition chain, so
// that the chain stays ordered, non-overlapping, and each partition
// records every solid enclosing it.
func (res *Resource) weave(tol float64) {
	for si := res.segs[0].next; si != 0; si = res.segs[si].next {
		if res.sane(si, tol) {
			res.weaveSeg(si, tol)
		}
	}
	res.clearWaiting()
}

// sane fuses near-zero distances and reports whether the segment is
// worth weaving.
func (res *Resource) sane(si int32, tol float64) bool {
	seg := &res.segs[si]
	if geom.NearZero(seg.In.Dist, tol) {
		seg.In.Dist = 0
	}
	if geom.NearZero(seg.Out.Dist, tol) {
		seg.Out.Dist = 0
	}
	switch {
	case seg.Out.Dist < farBehind:
		return false
	case seg.In.Dist > seg.Out.Dist+tol:
		res.Stats.InsideOut++
		Logger().Warn("rt: inside-out segment dropped",
			"solid", res.scene.Solids[seg.Solid].Name,
			"in", seg.In.Dist, "out", seg.Out.Dist)
		return false
	case seg.Out.Dist-seg.In.Dist <= tol:
		res.Stats.Degenerate++
		Logger().Debug("rt: zero thickness segment dropped",
			"solid", res.scene.Solids[seg.Solid].Name,
			"in", seg.In.Dist)
		return false
	}
	return true
}

func (res *Resource) weaveSeg(si int32, tol float64) {
	seg := &res.segs[si]
	lastin := seg.In.Dist
	lastref := hitRef{seg: si}
	outref := hitRef{seg: si, out: true}
	head := res.rawHead

	for pi := res.parts[head].next; pi != head; pi = res.parts[pi].next {
		pp := res.parts[pi]
		if lastin >= pp.OutDist-tol {
			if lastin < pp.OutDist {
				// Fuse onto pp's exit.
				lastin, lastref = pp.OutDist, pp.out
			}
			continue
		}

		switch {
		case lastin > pp.InDist+tol:
			// Starts inside pp: split off pp's tail and weave into it.
			ni := res.newPartition()
			np := res.parts[ni]
			np.copyFrom(pp)
			np.InDist, np.in = lastin, lastref
			pp.OutDist, pp.out = lastin, lastref
			res.insertAfter(ni, pi)
			pi, pp = ni, np

		case lastin < pp.InDist-tol:
			// Starts in the gap in front of pp.
			ni := res.newPartition()
			np := res.parts[ni]
			np.InDist, np.in = lastin, lastref
			np.segs = append(np.segs, si)
			if seg.Out.Dist <= pp.InDist+tol {
				np.OutDist, np.out = min(seg.Out.Dist, pp.InDist), outref
				res.insertBefore(ni, pi)
				return
			}
			np.OutDist, np.out = pp.InDist, pp.in
			res.insertBefore(ni, pi)
			lastin, lastref = pp.InDist, pp.in

		default:
			// Starts with pp.
			lastin = pp.InDist
		}

		switch {
		case seg.Out.Dist > pp.OutDist+tol:
			pp.addSeg(si)
			lastin, lastref = pp.OutDist, pp.out

		case seg.Out.Dist >= pp.OutDist-tol:
			pp.addSeg(si)
			return

		default:
			// Ends inside pp: split pp at the segment's out.
			ni := res.newPartition()
			np := res.parts[ni]
			np.copyFrom(pp)
			np.InDist, np.in = seg.Out.Dist, outref
			pp.OutDist, pp.out = seg.Out.Dist, outref
			pp.addSeg(si)
			res.insertAfter(ni, pi)
			return
		}
	}

	// Past every partition.
	ni := res.newPartition()
	np := res.parts[ni]
	np.InDist, np.in = lastin, lastref
	np.OutDist, np.out = seg.Out.Dist, outref
	np.segs = append(np.segs, si)
	res.insertBefore(ni, head)
}

// weaveFlat adds one raw partition per waiting segment, ordered by entry
// distance, without splitting anything.
func (res *Resource) weaveFlat(tol float64) {
	head := res.rawHead
	for si := res.segs[0].next; si != 0; si = res.segs[si].next {
		if !res.sane(si, tol) {
			continue
		}
		seg := &res.segs[si]
		ni := res.newPartition()
		np := res.parts[ni]
		np.InDist, np.in = seg.In.Dist, hitRef{seg: si}
		np.OutDist, np.out = seg.Out.Dist, hitRef{seg: si, out: true}
		np.segs = append(np.segs, si)

		at := head
		for pi := res.parts[head].prev; pi != head; pi = res.parts[pi].prev {
			if res.parts[pi].InDist <= np.InDist {
				at = res.parts[pi].next
				break
			}
			at = pi
		}
		res.insertBefore(ni, at)
	}
	res.clearWaiting()
}
