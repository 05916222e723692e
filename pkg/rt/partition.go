package rt

import (
	"fmt"
	"iter"
	"strings"

	"github.com/chazu/csgray/pkg/primitive"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Segment is the ray interval inside one solid, as reported by its
// primitive. Segments live in the Resource arena for the length of one
// ray; partitions refer to them by index.
type Segment struct {
	Solid   int
	In, Out primitive.Hit

	next, prev int32
}

// hitRef names one of a segment's two hits.
type hitRef struct {
	seg int32
	out bool
}

// Partition is a ray interval over which the set of enclosing solids is
// constant. Once evaluated it carries the region that claims it.
type Partition struct {
	InDist, OutDist float64
	Region          *Region

	in, out    hitRef
	segs       []int32
	claimants  []*Region
	overlapped bool

	idx, next, prev int32
	res             *Resource
}

func (p *Partition) reset(res *Resource, i int32) {
	p.InDist, p.OutDist = 0, 0
	p.Region = nil
	p.in, p.out = hitRef{}, hitRef{}
	p.segs = p.segs[:0]
	p.claimants = p.claimants[:0]
	p.overlapped = false
	p.idx, p.next, p.prev = i, i, i
	p.res = res
}

// copyFrom copies src's interval and segment set, not its links.
func (p *Partition) copyFrom(src *Partition) {
	p.InDist, p.OutDist = src.InDist, src.OutDist
	p.in, p.out = src.in, src.out
	p.segs = append(p.segs[:0], src.segs...)
}

func (p *Partition) addSeg(si int32) {
	for _, s := range p.segs {
		if s == si {
			return
		}
	}
	p.segs = append(p.segs, si)
}

func (p *Partition) hasSolid(id int) bool {
	for _, s := range p.segs {
		if p.res.segs[s].Solid == id {
			return true
		}
	}
	return false
}

func (p *Partition) hit(h hitRef) *primitive.Hit {
	seg := &p.res.segs[h.seg]
	if h.out {
		return &seg.Out
	}
	return &seg.In
}

// Len is the partition's thickness along the ray.
func (p *Partition) Len() float64 { return p.OutDist - p.InDist }

// InHit is the hit where the ray enters the partition. Its point and
// normal are only valid after InNormal.
func (p *Partition) InHit() *primitive.Hit { return p.hit(p.in) }

// OutHit is the hit where the ray leaves the partition.
func (p *Partition) OutHit() *primitive.Hit { return p.hit(p.out) }

// InSolid is the solid whose surface bounds the partition in front.
func (p *Partition) InSolid() *Solid {
	return p.res.scene.Solids[p.res.segs[p.in.seg].Solid]
}

// OutSolid is the solid whose surface bounds the partition behind.
func (p *Partition) OutSolid() *Solid {
	return p.res.scene.Solids[p.res.segs[p.out.seg].Solid]
}

// InFlip reports that the entry surface is where a solid is exited, so
// its normal must be reversed to face the ray.
func (p *Partition) InFlip() bool { return p.in.out }

// OutFlip reports that the exit surface is where a solid is entered.
func (p *Partition) OutFlip() bool { return !p.out.out }

// InNormal computes the entry surface normal, flipped as needed so it
// points against the ray.
func (p *Partition) InNormal() v3.Vec {
	h := p.InHit()
	p.InSolid().Norm(p.res.ray, h)
	if p.InFlip() {
		return h.Normal.MulScalar(-1)
	}
	return h.Normal
}

// OutNormal computes the exit surface normal, flipped as needed so it
// points along the ray.
func (p *Partition) OutNormal() v3.Vec {
	h := p.OutHit()
	p.OutSolid().Norm(p.res.ray, h)
	if p.OutFlip() {
		return h.Normal.MulScalar(-1)
	}
	return h.Normal
}

// Solids lists the solids enclosing the partition.
func (p *Partition) Solids() []*Solid {
	out := make([]*Solid, len(p.segs))
	for i, s := range p.segs {
		out[i] = p.res.scene.Solids[p.res.segs[s].Solid]
	}
	return out
}

// Overlapped reports whether the overlap callback kept this partition
// despite several regions claiming it.
func (p *Partition) Overlapped() bool { return p.overlapped }

// Claimants lists every region that claimed an overlapped partition.
func (p *Partition) Claimants() []*Region { return p.claimants }

func (p *Partition) String() string {
	name := "<none>"
	if p.Region != nil {
		name = p.Region.Name
	}
	return fmt.Sprintf("%s [%g, %g]", name, p.InDist, p.OutDist)
}

// PartitionList is the ordered result of one ray. It is only valid
// inside the hit callback; copy out anything needed afterwards.
type PartitionList struct {
	res  *Resource
	head int32
}

// Len counts the partitions.
func (l *PartitionList) Len() int { return l.res.chainLen(l.head) }

// First returns the nearest partition, or nil.
func (l *PartitionList) First() *Partition {
	i := l.res.parts[l.head].next
	if i == l.head {
		return nil
	}
	return l.res.parts[i]
}

// Next returns the partition after p, or nil.
func (l *PartitionList) Next(p *Partition) *Partition {
	if p.next == l.head {
		return nil
	}
	return l.res.parts[p.next]
}

// All iterates the partitions nearest first.
func (l *PartitionList) All() iter.Seq[*Partition] {
	return func(yield func(*Partition) bool) {
		for p := l.First(); p != nil; p = l.Next(p) {
			if !yield(p) {
				return
			}
		}
	}
}

func (l *PartitionList) String() string {
	var sb strings.Builder
	for p := range l.All() {
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(p.String())
	}
	return sb.String()
}
