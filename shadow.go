package lightgraph

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// DepthTargetID is an opaque handle to a backend depth image. The backend
// owns the image; this package only associates the handle with a light.
type DepthTargetID string

// ShadowRenderer is the backend that owns depth targets and rasterizes shadow
// passes. RenderShadow is handed up-to-date matrices and must not be called
// for clean maps.
type ShadowRenderer interface {
	CreateDepthTarget(width, height int) DepthTargetID
	ReleaseDepthTarget(id DepthTargetID)
	RenderShadow(l *RenderLight, sm *ShadowMapInfo)
}

// NullShadowRenderer satisfies ShadowRenderer without any GPU behind it.
// Handles are minted ids so association logic stays testable.
type NullShadowRenderer struct {
	Created  int
	Released int
	Rendered int
}

func (r *NullShadowRenderer) CreateDepthTarget(width, height int) DepthTargetID {
	r.Created++
	return DepthTargetID(uuid.NewString())
}

func (r *NullShadowRenderer) ReleaseDepthTarget(id DepthTargetID) {
	r.Released++
}

func (r *NullShadowRenderer) RenderShadow(l *RenderLight, sm *ShadowMapInfo) {
	r.Rendered++
}

// ShadowMapInfo is one shadow-map descriptor, owned 1:1 by a shadow-casting
// light.
type ShadowMapInfo struct {
	Width       int
	Height      int
	LOD         int
	NeedsUpdate bool

	Target DepthTargetID // backend-owned depth image

	View mgl32.Mat4
	Proj mgl32.Mat4

	slot int
	used bool
}

// ShadowMapAllocator is a fixed pool of shadow-map descriptors. It never
// grows; exhaustion logs a warning and the light goes unshadowed this
// session.
type ShadowMapAllocator struct {
	maps    []ShadowMapInfo
	backend ShadowRenderer
	log     Logger

	resolution int // LOD-0 edge in texels
}

func NewShadowMapAllocator(capacity, resolution int, backend ShadowRenderer, log Logger) *ShadowMapAllocator {
	if log == nil {
		log = NewNopLogger()
	}
	if backend == nil {
		backend = &NullShadowRenderer{}
	}
	return &ShadowMapAllocator{
		maps:       make([]ShadowMapInfo, capacity),
		backend:    backend,
		log:        log,
		resolution: resolution,
	}
}

func (a *ShadowMapAllocator) Cap() int { return len(a.maps) }

func (a *ShadowMapAllocator) NumUsed() int {
	n := 0
	for i := range a.maps {
		if a.maps[i].used {
			n++
		}
	}
	return n
}

// lodForLight picks a detail level from the light's reach: far-reaching
// lights keep full resolution, short-range ones drop mips.
func (a *ShadowMapAllocator) lodForLight(l *RenderLight) int {
	switch {
	case l.isDirectional():
		return 0
	case l.Cutoff >= 512:
		return 0
	case l.Cutoff >= 128:
		return 1
	default:
		return 2
	}
}

// Alloc binds a new shadow map descriptor to the light, sized from the global
// resolution and the light's LOD. Returns nil on exhaustion or for lights
// flagged no-shadows.
func (a *ShadowMapAllocator) Alloc(l *RenderLight) *ShadowMapInfo {
	if l == nil || l.NoShadows {
		return nil
	}
	for i := range a.maps {
		if a.maps[i].used {
			continue
		}
		lod := a.lodForLight(l)
		edge := a.resolution >> lod
		if edge < 1 {
			edge = 1
		}
		a.maps[i] = ShadowMapInfo{
			Width:       edge,
			Height:      edge,
			LOD:         lod,
			NeedsUpdate: true,
			Target:      a.backend.CreateDepthTarget(edge, edge),
			slot:        i,
			used:        true,
		}
		return &a.maps[i]
	}
	a.log.Warnf("shadow map pool exhausted (%d slots)", len(a.maps))
	return nil
}

// Free releases the backend target and zeroes the record. The pool is not
// compacted; the slot is immediately reusable.
func (a *ShadowMapAllocator) Free(sm *ShadowMapInfo) {
	if sm == nil || !sm.used {
		return
	}
	if sm.Target != "" {
		a.backend.ReleaseDepthTarget(sm.Target)
	}
	slot := sm.slot
	a.maps[slot] = ShadowMapInfo{slot: slot}
}

// Render refreshes the light's shadow map: a no-op unless the map is dirty,
// otherwise it computes the shadow-pass matrices and delegates rasterization
// to the backend.
func (a *ShadowMapAllocator) Render(l *RenderLight) {
	if l == nil || l.ShadowMap == nil || !l.ShadowMap.NeedsUpdate {
		return
	}
	sm := l.ShadowMap
	if view, proj, ok := l.Shape.matrices(l.Origin, l.Axis); ok {
		sm.View = view
		sm.Proj = proj
	}
	a.backend.RenderShadow(l, sm)
	sm.NeedsUpdate = false
}

// Clear releases every used descriptor.
func (a *ShadowMapAllocator) Clear() {
	for i := range a.maps {
		if a.maps[i].used {
			a.Free(&a.maps[i])
		}
	}
}
