package rt

import "fmt"

// Stats are the per-Resource ray counters. They are only ever written by
// the goroutine owning the Resource; combine them with Add when reporting.
type Stats struct {
	Rays      uint64 // Shootray calls
	Hits      uint64 // rays delivered to the hit callback
	MissModel uint64 // missed the model bounding box
	MissPrims uint64 // reached the model but no primitive was hit
	MissBool  uint64 // primitives hit but no region survived evaluation

	Shots       uint64 // primitive Shot calls
	ShotHits    uint64 // Shot calls returning segments
	ShotMisses  uint64 // Shot calls returning nothing
	PruneSolRPP uint64 // candidates skipped by the solid box test
	Dups        uint64 // candidates already shot for this ray

	Cells      uint64 // cut tree leaves visited
	EmptyCells uint64 // visited leaves with no solids

	Partitions uint64 // final partitions delivered
	Overlaps   uint64 // partitions claimed by two or more regions
	Degenerate uint64 // zero-thickness segments dropped
	InsideOut  uint64 // segments with in after out dropped
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Rays += o.Rays
	s.Hits += o.Hits
	s.MissModel += o.MissModel
	s.MissPrims += o.MissPrims
	s.MissBool += o.MissBool
	s.Shots += o.Shots
	s.ShotHits += o.ShotHits
	s.ShotMisses += o.ShotMisses
	s.PruneSolRPP += o.PruneSolRPP
	s.Dups += o.Dups
	s.Cells += o.Cells
	s.EmptyCells += o.EmptyCells
	s.Partitions += o.Partitions
	s.Overlaps += o.Overlaps
	s.Degenerate += o.Degenerate
	s.InsideOut += o.InsideOut
}

// Misses is the total of all miss outcomes.
func (s Stats) Misses() uint64 {
	return s.MissModel + s.MissPrims + s.MissBool
}

func (s Stats) String() string {
	return fmt.Sprintf("rays=%d hits=%d miss(model=%d prims=%d bool=%d) shots=%d (hit=%d miss=%d) pruned=%d dups=%d cells=%d (empty=%d) partitions=%d overlaps=%d",
		s.Rays, s.Hits, s.MissModel, s.MissPrims, s.MissBool,
		s.Shots, s.ShotHits, s.ShotMisses, s.PruneSolRPP, s.Dups,
		s.Cells, s.EmptyCells, s.Partitions, s.Overlaps)
}
