package lightgraph

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Interaction is the cached relationship between one light and one surface.
// A live interaction is linked into exactly one light chain (tail-appended,
// creation order) and one surface chain (head-inserted, unordered). All links
// are slot indices into the InteractionPool.
type Interaction struct {
	Light   int // light pool slot
	Surface int // surface table slot

	Bounds        [2]mgl32.Vec3 // light ∩ surface
	IsEmpty       bool
	CastsShadow   bool
	ReceivesLight bool
	IsStatic      bool // light static and surface not dynamic

	Culled          bool // frame-transient, reset by CullInteractions
	LastUpdateFrame int

	slot      int
	lightPrev int
	lightNext int
	surfPrev  int
	surfNext  int
	live      bool
}

// Live reports whether the record is currently allocated and linked.
func (in *Interaction) Live() bool {
	return in != nil && in.live
}

// Slot returns the record's pool index.
func (in *Interaction) Slot() int { return in.slot }

// intersectBounds clips a to b per axis. min > max on any axis means the
// boxes do not overlap.
func intersectBounds(a, b [2]mgl32.Vec3) ([2]mgl32.Vec3, bool) {
	var out [2]mgl32.Vec3
	empty := false
	for i := 0; i < 3; i++ {
		out[0][i] = max(a[0][i], b[0][i])
		out[1][i] = min(a[1][i], b[1][i])
		if out[0][i] > out[1][i] {
			empty = true
		}
	}
	return out, empty
}

// InteractionPool is a fixed slab of interaction records. Allocation bumps a
// watermark until capacity, then reuses freed slots from an explicit
// free-index stack. The per-frame counters are reset by the frame scheduler.
type InteractionPool struct {
	items []Interaction
	free  []int
	high  int
	log   Logger

	NumInteractions   int // live records
	NumStaticCached   int // static records created since last counter reset
	NumDynamicCreated int
	NumCulled         int
	NumProcessed      int
}

func NewInteractionPool(capacity int, log Logger) *InteractionPool {
	if log == nil {
		log = NewNopLogger()
	}
	return &InteractionPool{
		items: make([]Interaction, capacity),
		free:  make([]int, 0, capacity),
		log:   log,
	}
}

func (p *InteractionPool) Cap() int { return len(p.items) }

// NumFree returns the count of immediately reusable slots plus never-used
// capacity.
func (p *InteractionPool) NumFree() int {
	return len(p.free) + (len(p.items) - p.high)
}

// alloc returns a zeroed live record, or none when the pool is exhausted.
func (p *InteractionPool) alloc() int {
	var slot int
	switch {
	case len(p.free) > 0:
		slot = p.free[len(p.free)-1]
		p.free = p.free[:len(p.free)-1]
	case p.high < len(p.items):
		slot = p.high
		p.high++
	default:
		p.log.Warnf("interaction pool exhausted (%d slots)", len(p.items))
		return none
	}
	p.items[slot] = Interaction{
		slot:      slot,
		Light:     none,
		Surface:   none,
		lightPrev: none,
		lightNext: none,
		surfPrev:  none,
		surfNext:  none,
		live:      true,
	}
	p.NumInteractions++
	return slot
}

// release returns an unlinked record to the free stack. Unlinking is the
// caller's job (System.freeInteraction).
func (p *InteractionPool) release(slot int) {
	if slot < 0 || slot >= p.high || !p.items[slot].live {
		return
	}
	p.items[slot] = Interaction{slot: slot}
	p.free = append(p.free, slot)
	p.NumInteractions--
}

// Get returns the record at slot, or nil for invalid or free slots.
func (p *InteractionPool) Get(slot int) *Interaction {
	if slot < 0 || slot >= p.high {
		return nil
	}
	in := &p.items[slot]
	if !in.live {
		return nil
	}
	return in
}

// Clear drops every record, live or free.
func (p *InteractionPool) Clear() {
	for i := range p.items[:p.high] {
		p.items[i] = Interaction{}
	}
	p.free = p.free[:0]
	p.high = 0
	p.NumInteractions = 0
	p.ResetFrameCounters()
}

// ResetFrameCounters zeroes the per-frame bookkeeping, keeping the live count.
func (p *InteractionPool) ResetFrameCounters() {
	p.NumStaticCached = 0
	p.NumDynamicCreated = 0
	p.NumCulled = 0
	p.NumProcessed = 0
}
