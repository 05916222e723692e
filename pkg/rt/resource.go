package rt

import (
	"sync"

	"github.com/chazu/csgray/pkg/cut"
	"github.com/chazu/csgray/pkg/geom"
	"github.com/chazu/csgray/pkg/primitive"
)

// Resource is the scratch state of one ray tracing goroutine: segment and
// partition pools, the per-ray "already shot" bits, the cut tree walker
// and the ray counters. Create one per worker with NewResource and pass
// it in every Application that worker shoots. A Resource is never locked
// and must not be shared between goroutines.
type Resource struct {
	CPU   int
	Stats Stats

	// segs[0] is the head of the waiting list.
	segs []Segment

	// parts is a pool of stable pointers; nparts entries are in use
	// this ray and freeParts lists released ones.
	parts     []*Partition
	nparts    int32
	freeParts []int32
	rawHead   int32
	finalHead int32

	solidBits []uint64
	touched   []int32

	walker  cut.Walker
	shotBuf []primitive.Seg
	regTab  []*Region
	claim   []*Region

	overlapLogs int

	scene *Scene
	ray   *geom.Ray
}

// NewResource returns a Resource for the worker numbered cpu.
func NewResource(cpu int) *Resource {
	return &Resource{CPU: cpu}
}

var (
	uniOnce     sync.Once
	uniresource *Resource
)

// Uniresource returns the process-wide Resource Shootray uses when an
// Application carries none. It is only safe for single-goroutine use.
func Uniresource() *Resource {
	uniOnce.Do(func() { uniresource = NewResource(-1) })
	return uniresource
}

// begin readies the resource for one ray.
func (res *Resource) begin(sc *Scene, r *geom.Ray) {
	res.scene = sc
	res.ray = r

	words := (len(sc.Solids) + 63) / 64
	if len(res.solidBits) < words {
		res.solidBits = make([]uint64, words)
	}

	if len(res.segs) == 0 {
		res.segs = append(res.segs, Segment{})
	}
	res.segs = res.segs[:1]
	res.segs[0].next, res.segs[0].prev = 0, 0

	res.nparts = 0
	res.freeParts = res.freeParts[:0]
	res.rawHead = res.newPartition()
	res.finalHead = res.newPartition()
}

// end clears the per-ray bits. Pools keep their capacity.
func (res *Resource) end() {
	for _, id := range res.touched {
		res.solidBits[id>>6] &^= 1 << (uint(id) & 63)
	}
	res.touched = res.touched[:0]
}

// testAndSet marks solid id as shot for this ray and reports whether it
// already was.
func (res *Resource) testAndSet(id int) bool {
	w, b := id>>6, uint64(1)<<(uint(id)&63)
	if res.solidBits[w]&b != 0 {
		return true
	}
	res.solidBits[w] |= b
	res.touched = append(res.touched, int32(id))
	return false
}

// shot reports whether solid id has been shot during this ray.
func (res *Resource) shot(id int) bool {
	return res.solidBits[id>>6]&(1<<(uint(id)&63)) != 0
}

// addWaiting appends a segment from solid to the waiting list.
func (res *Resource) addWaiting(solid int, sg primitive.Seg) {
	i := int32(len(res.segs))
	tail := res.segs[0].prev
	res.segs = append(res.segs, Segment{Solid: solid, In: sg.In, Out: sg.Out, next: 0, prev: tail})
	res.segs[tail].next = i
	res.segs[0].prev = i
}

// clearWaiting empties the waiting list. The segments stay in the arena
// because partitions refer to them.
func (res *Resource) clearWaiting() {
	res.segs[0].next, res.segs[0].prev = 0, 0
}

// newPartition takes a partition from the pool, self-linked.
func (res *Resource) newPartition() int32 {
	var i int32
	if n := len(res.freeParts); n > 0 {
		i = res.freeParts[n-1]
		res.freeParts = res.freeParts[:n-1]
	} else {
		if int(res.nparts) == len(res.parts) {
			res.parts = append(res.parts, &Partition{})
		}
		i = res.nparts
		res.nparts++
	}
	res.parts[i].reset(res, i)
	return i
}

// freePartition returns an unlinked partition to the pool.
func (res *Resource) freePartition(i int32) {
	res.freeParts = append(res.freeParts, i)
}

func (res *Resource) insertBefore(i, before int32) {
	p, b := res.parts[i], res.parts[before]
	p.next, p.prev = before, b.prev
	res.parts[b.prev].next = i
	b.prev = i
}

func (res *Resource) insertAfter(i, after int32) {
	res.insertBefore(i, res.parts[after].next)
}

func (res *Resource) unlink(i int32) {
	p := res.parts[i]
	res.parts[p.prev].next = p.next
	res.parts[p.next].prev = p.prev
	p.next, p.prev = i, i
}

// chainLen counts the partitions on the chain at head.
func (res *Resource) chainLen(head int32) int {
	n := 0
	for i := res.parts[head].next; i != head; i = res.parts[i].next {
		n++
	}
	return n
}

func (res *Resource) chainEmpty(head int32) bool {
	return res.parts[head].next == head
}
