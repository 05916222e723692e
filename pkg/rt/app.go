package rt

import "github.com/chazu/csgray/pkg/geom"

// HitFunc receives the final partitions of a ray. Its return value is
// returned by Shootray.
type HitFunc func(ap *Application, parts *PartitionList) int

// MissFunc is called when a ray yields no partitions.
type MissFunc func(ap *Application) int

// OverlapFunc is called when regions a and b both claim pp over at least
// OverlapTolerance. A non-zero return keeps the partition, attributed to
// a and flagged as overlapped; zero hands the pair to the Resolver.
type OverlapFunc func(ap *Application, pp *Partition, a, b *Region) int

// Application describes one ray and what to do with its result. An
// Application is reused across rays by setting Ray and shooting again;
// it must only be used by the goroutine that owns its Resource.
type Application struct {
	Scene    *Scene
	Resource *Resource
	Ray      geom.Ray

	Hit     HitFunc
	Miss    MissFunc
	Overlap OverlapFunc
	Resolve Resolver

	// OneHit stops the ray once that many hit points are final. A
	// negative value counts only non-air partitions. Zero evaluates the
	// whole ray.
	OneHit int

	// TrackAir keeps partitions claimed by air regions.
	TrackAir bool

	// NoBooleans skips region evaluation and reports one partition per
	// primitive segment.
	NoBooleans bool

	// OverlapTolerance is the shortest overlap reported to Overlap.
	// Shorter ones go straight to the Resolver.
	OverlapTolerance float64

	Purpose string
	User    any
}

func (ap *Application) hit(l *PartitionList) int {
	if ap.Hit == nil {
		return 1
	}
	return ap.Hit(ap, l)
}

func (ap *Application) miss() int {
	if ap.Miss == nil {
		return 0
	}
	return ap.Miss(ap)
}

func (ap *Application) overlap(pp *Partition, a, b *Region) int {
	if ap.Overlap == nil {
		return DefaultOverlap(ap, pp, a, b)
	}
	return ap.Overlap(ap, pp, a, b)
}

func (ap *Application) resolver() Resolver {
	if ap.Resolve == nil {
		return ResolveAirYields
	}
	return ap.Resolve
}

// enough reports whether hits satisfies a positive OneHit.
func (ap *Application) enough(hits int) bool {
	switch {
	case ap.OneHit > 0:
		return hits >= ap.OneHit
	case ap.OneHit < 0:
		return hits >= -ap.OneHit
	}
	return false
}
