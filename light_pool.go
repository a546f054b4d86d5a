package lightgraph

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Engine defaults applied to every freshly allocated light slot.
const (
	defaultSpotFov    = 90.0
	defaultSpotNear   = 1.0
	defaultSpotFar    = 300.0
	defaultShadowBias = 0.001
	defaultShadowSoft = 1.0
)

// LightPool is fixed-capacity storage for RenderLights. Alloc hands out slots
// in order; Free never returns a slot, only a full Clear does. Slot indices
// are therefore stable handles for the whole session.
type LightPool struct {
	lights []RenderLight
	next   int
	log    Logger
}

func NewLightPool(capacity int, log Logger) *LightPool {
	if log == nil {
		log = NewNopLogger()
	}
	return &LightPool{
		lights: make([]RenderLight, capacity),
		log:    log,
	}
}

func (p *LightPool) Cap() int { return len(p.lights) }

// NumAllocated counts slots handed out since the last Clear, including ones
// since freed.
func (p *LightPool) NumAllocated() int { return p.next }

// Alloc returns the next slot reset to engine defaults, or nil with a warning
// when the pool is exhausted. Exhaustion is recoverable: the light simply
// does not participate.
func (p *LightPool) Alloc() *RenderLight {
	if p.next >= len(p.lights) {
		p.log.Warnf("light pool exhausted (%d slots)", len(p.lights))
		return nil
	}
	l := &p.lights[p.next]
	*l = RenderLight{
		Index:            p.next,
		Shape:            Omni{Radius: 100},
		Axis:             mgl32.QuatIdent(),
		Intensity:        1,
		Attenuation:      [3]float32{0, 0, 1}, // near inverse-square falloff
		Cutoff:           defaultSpotFar,
		ShadowBias:       defaultShadowBias,
		ShadowSoftness:   defaultShadowSoft,
		NeedsUpdate:      true,
		AreaNum:          none,
		areaNext:         none,
		firstInteraction: none,
		lastInteraction:  none,
		active:           true,
	}
	p.next++
	return l
}

// Get returns the light at index, or nil for out-of-range or inactive slots.
func (p *LightPool) Get(index int) *RenderLight {
	if index < 0 || index >= p.next {
		return nil
	}
	l := &p.lights[index]
	if !l.active {
		return nil
	}
	return l
}

// Clear resets the pool to empty. Outstanding *RenderLight handles are
// invalid afterwards.
func (p *LightPool) Clear() {
	for i := range p.lights[:p.next] {
		p.lights[i] = RenderLight{}
	}
	p.next = 0
}

// AreaIndex keeps one singly linked list of lights per spatial area, threaded
// through RenderLight.areaNext. A light belongs to at most one area.
type AreaIndex struct {
	heads []int
}

func NewAreaIndex(numAreas int) *AreaIndex {
	a := &AreaIndex{heads: make([]int, numAreas)}
	a.Clear()
	return a
}

func (a *AreaIndex) Clear() {
	for i := range a.heads {
		a.heads[i] = none
	}
}

// Add links the light into area. Re-adding first removes it from its old
// area, so Add is idempotent.
func (a *AreaIndex) Add(pool *LightPool, l *RenderLight, area int) {
	if l == nil || area < 0 || area >= len(a.heads) {
		return
	}
	if l.AreaNum != none {
		a.Remove(pool, l)
	}
	l.AreaNum = area
	l.areaNext = a.heads[area]
	a.heads[area] = l.Index
}

// Remove unlinks the light from its area, if any.
func (a *AreaIndex) Remove(pool *LightPool, l *RenderLight) {
	if l == nil || l.AreaNum == none {
		return
	}
	area := l.AreaNum
	if a.heads[area] == l.Index {
		a.heads[area] = l.areaNext
	} else {
		for idx := a.heads[area]; idx != none; {
			cur := &pool.lights[idx]
			if cur.areaNext == l.Index {
				cur.areaNext = l.areaNext
				break
			}
			idx = cur.areaNext
		}
	}
	l.AreaNum = none
	l.areaNext = none
}

// Lights returns the indices of the lights linked into area.
func (a *AreaIndex) Lights(pool *LightPool, area int) []int {
	if area < 0 || area >= len(a.heads) {
		return nil
	}
	var out []int
	for idx := a.heads[area]; idx != none; idx = pool.lights[idx].areaNext {
		out = append(out, idx)
	}
	return out
}
