package rt

import "fmt"

// Resolver settles a partition claimed by regions a and b. prev is the
// region of the previous final partition, or nil. Returning nil drops the
// partition.
type Resolver func(ap *Application, pp *Partition, a, b, prev *Region) *Region

// ResolveAirYields gives a partition to material over air, then to the
// region that claimed the partition in front of it, then to the region
// prepped first.
func ResolveAirYields(_ *Application, _ *Partition, a, b, prev *Region) *Region {
	switch {
	case a.Air() && !b.Air():
		return b
	case b.Air() && !a.Air():
		return a
	case a.Air() && b.Air():
		return b
	case prev == a:
		return a
	case prev == b:
		return b
	case a.Bit <= b.Bit:
		return a
	}
	return b
}

// ResolveFirstRegion always gives the partition to the region prepped
// first.
func ResolveFirstRegion(_ *Application, _ *Partition, a, b, _ *Region) *Region {
	if a.Bit <= b.Bit {
		return a
	}
	return b
}

// ResolveDiscard drops every partition two material regions (or two
// tracked air regions) contest. Air contesting material is not dropped:
// the material keeps it.
func ResolveDiscard(*Application, *Partition, *Region, *Region, *Region) *Region {
	return nil
}

// ParseResolver maps a configuration name to a Resolver.
func ParseResolver(name string) (Resolver, error) {
	switch name {
	case "", "air-yields":
		return ResolveAirYields, nil
	case "first-region":
		return ResolveFirstRegion, nil
	case "discard":
		return ResolveDiscard, nil
	}
	return nil, fmt.Errorf("rt: unknown overlap resolver %q", name)
}

// overlapLogLimit caps DefaultOverlap warnings per Resource.
const overlapLogLimit = 100

// DefaultOverlap logs the overlap and lets the Resolver decide.
func DefaultOverlap(ap *Application, pp *Partition, a, b *Region) int {
	res := pp.res
	res.overlapLogs++
	switch {
	case res.overlapLogs < overlapLogLimit:
		pt := ap.Ray.At(pp.InDist)
		Logger().Warn("rt: overlap",
			"a", a.Name,
			"b", b.Name,
			"depth", pp.Len(),
			"in", pp.InDist,
			"x", pt.X, "y", pt.Y, "z", pt.Z,
			"ray", ap.Ray.Index)
	case res.overlapLogs == overlapLogLimit:
		Logger().Warn("rt: overlap logging suppressed", "cpu", res.CPU, "after", overlapLogLimit)
	}
	return 0
}

// resolve picks the region for pp from the claimants in res.claim.
func (res *Resource) resolve(ap *Application, pp *Partition, prev *Region) *Region {
	cl := res.claim
	if len(cl) == 0 {
		return nil
	}
	cur := cl[0]
	if len(cl) == 1 {
		return cur
	}
	resolver := ap.resolver()
	counted := false
	for _, next := range cl[1:] {
		if cur.Air() != next.Air() {
			// Air against material is a classification, not an overlap.
			// The resolver may hand the partition to air but cannot drop
			// the material.
			mat := cur
			if cur.Air() {
				mat = next
			}
			if cur = resolver(ap, pp, cur, next, prev); cur == nil {
				cur = mat
			}
			continue
		}
		if cur.Air() && !ap.TrackAir {
			// Untracked air is dropped anyway; which air wins is moot.
			continue
		}
		if !counted {
			res.Stats.Overlaps++
			counted = true
		}
		if pp.Len() >= ap.OverlapTolerance && ap.overlap(pp, cur, next) != 0 {
			if !pp.overlapped {
				pp.overlapped = true
				pp.claimants = append(pp.claimants, cur)
			}
			pp.claimants = append(pp.claimants, next)
			continue
		}
		cur = resolver(ap, pp, cur, next, prev)
		if cur == nil {
			return nil
		}
	}
	return cur
}
