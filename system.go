package lightgraph

// DrawListConsumer receives the surviving (visible, non-empty) interactions
// each frame, in light order, for additive lighting composition.
type DrawListConsumer interface {
	AddInteraction(l *RenderLight, surf *Surface, in *Interaction)
}

// System is the light–surface interaction frontend: it owns the light pool,
// the interaction pool, the area index, and the shadow-map allocator, and is
// driven once per frame by UpdateFrame. Single-threaded by design; all calls
// must come from the render frontend.
type System struct {
	cfg Config
	log Logger

	lights       *LightPool
	interactions *InteractionPool
	shadows      *ShadowMapAllocator
	areas        *AreaIndex

	surfaces []*Surface
	pvs      PVS
	backend  ShadowRenderer

	legacySlots []*RenderLight // system-owned lights reused for per-frame dlights

	frameCount    int
	visCount      int // visibility epoch, bumped per CullLights pass
	visibleLights []*RenderLight

	stats FrameStats
}

// FrameStats is the per-frame counter snapshot exposed for telemetry.
type FrameStats struct {
	Frame          int `json:"frame"`
	VisibleLights  int `json:"visibleLights"`
	Interactions   int `json:"interactions"`
	StaticCached   int `json:"staticCached"`
	DynamicCreated int `json:"dynamicCreated"`
	Culled         int `json:"culled"`
	Processed      int `json:"processed"`
}

// Option configures a System at construction.
type Option func(*System)

func WithLogger(log Logger) Option { return func(s *System) { s.log = log } }

func WithPVS(pvs PVS) Option { return func(s *System) { s.pvs = pvs } }

func WithBackend(b ShadowRenderer) Option { return func(s *System) { s.backend = b } }

// NewSystem allocates the pools and wires the collaborators. This is the
// subsystem's init entry point.
func NewSystem(cfg Config, opts ...Option) *System {
	s := &System{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = NewNopLogger()
	}
	if s.backend == nil {
		s.backend = &NullShadowRenderer{}
	}
	s.lights = NewLightPool(cfg.MaxLights, s.log)
	s.interactions = NewInteractionPool(cfg.MaxInteractions, s.log)
	s.shadows = NewShadowMapAllocator(cfg.MaxShadowMaps, cfg.ShadowResolution, s.backend, s.log)
	s.areas = NewAreaIndex(cfg.MaxAreas)

	s.log.Infof("light system up: %d lights, %d interactions, %d shadow maps",
		cfg.MaxLights, cfg.MaxInteractions, cfg.MaxShadowMaps)
	return s
}

// Close shuts the subsystem down, releasing backend shadow targets.
func (s *System) Close() {
	s.Clear()
	s.log.Infof("light system down")
}

// Clear resets the whole session: every light, interaction, and shadow map is
// dropped, surfaces are unregistered.
func (s *System) Clear() {
	s.shadows.Clear()
	s.interactions.Clear()
	s.lights.Clear()
	s.areas.Clear()
	s.surfaces = s.surfaces[:0]
	s.legacySlots = s.legacySlots[:0]
	s.visibleLights = s.visibleLights[:0]
	s.frameCount = 0
	s.visCount = 0
	s.stats = FrameStats{}
}

func (s *System) Lights() *LightPool             { return s.lights }
func (s *System) Interactions() *InteractionPool { return s.interactions }
func (s *System) Shadows() *ShadowMapAllocator   { return s.shadows }
func (s *System) Areas() *AreaIndex              { return s.areas }
func (s *System) Stats() FrameStats              { return s.stats }
func (s *System) Frame() int                     { return s.frameCount }

// AddSurface registers a candidate surface and initializes its chain. The
// surface table only grows; RemoveSurface leaves a nil hole.
func (s *System) AddSurface(surf *Surface) int {
	if surf == nil {
		return none
	}
	surf.index = len(s.surfaces)
	surf.firstInteraction = none
	s.surfaces = append(s.surfaces, surf)
	return surf.index
}

// RemoveSurface destroys the surface's live interactions and unregisters it.
func (s *System) RemoveSurface(index int) {
	if index < 0 || index >= len(s.surfaces) || s.surfaces[index] == nil {
		return
	}
	surf := s.surfaces[index]
	for slot := surf.firstInteraction; slot != none; {
		in := &s.interactions.items[slot]
		slot = in.surfNext
		s.freeInteraction(in)
	}
	s.surfaces[index] = nil
}

// Surface returns the registered surface at index, or nil.
func (s *System) Surface(index int) *Surface {
	if index < 0 || index >= len(s.surfaces) {
		return nil
	}
	return s.surfaces[index]
}

// AllocLight hands out a pooled light. May return nil (pool exhausted); the
// caller treats that as "no light this frame".
func (s *System) AllocLight() *RenderLight {
	return s.lights.Alloc()
}

// UpdateLight recomputes the light's bounds and, for projected/directional
// shapes, its view and projection matrices. Clears NeedsUpdate and stamps the
// frame. A dirty light also dirties its shadow map.
func (s *System) UpdateLight(l *RenderLight) {
	if l == nil || !l.active {
		return
	}
	l.Bounds = l.Shape.bounds(l.Origin, l.Axis)
	if view, proj, ok := l.Shape.matrices(l.Origin, l.Axis); ok {
		l.View = view
		l.Proj = proj
	}
	if l.ShadowMap != nil {
		l.ShadowMap.NeedsUpdate = true
	}
	// The chain is stale now; GenerateInteractions consumes the flag.
	l.needsRebuild = true
	l.NeedsUpdate = false
	l.LastUpdateFrame = s.frameCount
}

// FreeLight destroys the light: its interaction chain is freed, it leaves its
// area, its shadow map is released, and the slot goes inactive. The slot is
// not reused before a Clear.
func (s *System) FreeLight(l *RenderLight) {
	if l == nil || !l.active {
		return
	}
	s.freeLightInteractions(l)
	s.areas.Remove(s.lights, l)
	if l.ShadowMap != nil {
		s.shadows.Free(l.ShadowMap)
		l.ShadowMap = nil
	}
	l.active = false
}

// EnsureShadowMap lazily binds a shadow map to a shadow-casting light.
func (s *System) EnsureShadowMap(l *RenderLight) *ShadowMapInfo {
	if l == nil || !l.active || l.NoShadows {
		return nil
	}
	if l.ShadowMap == nil {
		l.ShadowMap = s.shadows.Alloc(l)
	}
	return l.ShadowMap
}

// linkInteraction threads a fresh record into both chains: light chain tail
// (creation order is meaningful downstream), surface chain head (order is
// not).
func (s *System) linkInteraction(in *Interaction, l *RenderLight, surf *Surface) {
	in.Light = l.Index
	in.Surface = surf.index

	in.lightPrev = l.lastInteraction
	in.lightNext = none
	if l.lastInteraction != none {
		s.interactions.items[l.lastInteraction].lightNext = in.slot
	} else {
		l.firstInteraction = in.slot
	}
	l.lastInteraction = in.slot

	in.surfPrev = none
	in.surfNext = surf.firstInteraction
	if surf.firstInteraction != none {
		s.interactions.items[surf.firstInteraction].surfPrev = in.slot
	}
	surf.firstInteraction = in.slot
}

// unlinkInteraction removes the record from both chains in O(1).
func (s *System) unlinkInteraction(in *Interaction) {
	l := &s.lights.lights[in.Light]
	if in.lightPrev != none {
		s.interactions.items[in.lightPrev].lightNext = in.lightNext
	} else {
		l.firstInteraction = in.lightNext
	}
	if in.lightNext != none {
		s.interactions.items[in.lightNext].lightPrev = in.lightPrev
	} else {
		l.lastInteraction = in.lightPrev
	}

	if surf := s.surfaces[in.Surface]; surf != nil {
		if in.surfPrev != none {
			s.interactions.items[in.surfPrev].surfNext = in.surfNext
		} else {
			surf.firstInteraction = in.surfNext
		}
		if in.surfNext != none {
			s.interactions.items[in.surfNext].surfPrev = in.surfPrev
		}
	}
}

func (s *System) freeInteraction(in *Interaction) {
	if in == nil || !in.live {
		return
	}
	s.unlinkInteraction(in)
	s.interactions.release(in.slot)
}

// freeLightInteractions drops the light's whole chain. The per-light counters
// stay as running totals (see LightCounts).
func (s *System) freeLightInteractions(l *RenderLight) {
	for slot := l.firstInteraction; slot != none; {
		in := &s.interactions.items[slot]
		slot = in.lightNext
		s.freeInteraction(in)
	}
}

// refreshInteraction recomputes the derived state from the current endpoint
// bounds and flags. Called on creation and whenever an endpoint changes;
// never lazily.
func (s *System) refreshInteraction(in *Interaction) {
	l := &s.lights.lights[in.Light]
	surf := s.surfaces[in.Surface]

	in.Bounds, in.IsEmpty = intersectBounds(l.Bounds, surf.Bounds)
	in.CastsShadow = !surf.NoShadows && !l.NoShadows
	in.ReceivesLight = !surf.NoLight
	in.IsStatic = l.Static && !surf.Dynamic
	in.LastUpdateFrame = s.frameCount

	if in.CastsShadow {
		l.NumShadowCasters++
	}
	if in.ReceivesLight {
		l.NumLitSurfaces++
	}
	l.NumInteractions++
}

// CreateInteraction allocates and links one (light, surface) record
// unconditionally and computes its derived state. GenerateInteractions is the
// usual entry; this one serves endpoint-change paths and tests. Returns nil
// on pool exhaustion.
func (s *System) CreateInteraction(l *RenderLight, surf *Surface) *Interaction {
	if l == nil || !l.active || surf == nil {
		return nil
	}
	if surf.index < 0 || surf.index >= len(s.surfaces) || s.surfaces[surf.index] != surf {
		return nil // unregistered surface
	}
	slot := s.interactions.alloc()
	if slot == none {
		return nil
	}
	in := &s.interactions.items[slot]
	s.linkInteraction(in, l, surf)
	s.refreshInteraction(in)
	if in.IsStatic {
		s.interactions.NumStaticCached++
	} else {
		s.interactions.NumDynamicCreated++
	}
	return in
}

// lightHasSurface scans the light's own chain for an existing record with the
// surface. Linear, but static chains are short and rebuilt rarely.
func (s *System) lightHasSurface(l *RenderLight, surfIndex int) bool {
	for slot := l.firstInteraction; slot != none; slot = s.interactions.items[slot].lightNext {
		if s.interactions.items[slot].Surface == surfIndex {
			return true
		}
	}
	return false
}

// GenerateInteractions brings the light's chain in sync with the current
// surface set: exactly one live record per genuinely intersecting pair, no
// stale entries. Dynamic (or dirty static) lights rebuild from scratch;
// clean static lights only fill in surfaces missing from their cached chain.
func (s *System) GenerateInteractions(l *RenderLight) {
	if l == nil || !l.active {
		return
	}
	rebuild := !l.Static || l.NeedsUpdate || l.needsRebuild
	if rebuild {
		s.freeLightInteractions(l)
	}

	for _, surf := range s.surfaces {
		if surf == nil || !surf.lightable() {
			continue
		}
		if !rebuild && s.lightHasSurface(l, surf.index) {
			continue // static cache hit
		}
		if _, empty := intersectBounds(l.Bounds, surf.Bounds); empty {
			continue
		}
		s.CreateInteraction(l, surf)
	}

	l.needsRebuild = false
	l.NeedsUpdate = false
	l.LastUpdateFrame = s.frameCount
}

// LightCounts recounts the light's shadow-caster and lit-surface totals from
// its live chain. The running fields on RenderLight only ever grow; this is
// the authoritative view.
func (s *System) LightCounts(l *RenderLight) (interactions, shadowCasters, litSurfaces int) {
	if l == nil || !l.active {
		return 0, 0, 0
	}
	for slot := l.firstInteraction; slot != none; slot = s.interactions.items[slot].lightNext {
		in := &s.interactions.items[slot]
		interactions++
		if in.CastsShadow {
			shadowCasters++
		}
		if in.ReceivesLight {
			litSurfaces++
		}
	}
	return
}

// ingestLegacyLights maps the frame's legacy dynamic lights onto
// system-owned slots. Slots are reused across frames because the light pool
// never reclaims individual slots; extras left over from a longer previous
// frame go inactive until needed again.
func (s *System) ingestLegacyLights(legacy []LegacyLight) {
	for i, src := range legacy {
		if i >= len(s.legacySlots) {
			l := s.lights.Alloc()
			if l == nil {
				return // pool exhausted, remaining dlights sit out this frame
			}
			s.legacySlots = append(s.legacySlots, l)
		}
		l := s.legacySlots[i]
		l.active = true
		ConvertLegacyLight(src, l)
	}
	for i := len(legacy); i < len(s.legacySlots); i++ {
		l := s.legacySlots[i]
		if l.active {
			s.freeLightInteractions(l)
			l.active = false
		}
	}
}

// UpdateFrame runs the fixed per-frame sequence: ingest legacy lights, update
// dirty lights, cull lights, generate interactions per visible light, cull
// interactions into the consumer, refresh shadow maps. Returns the frame's
// counter snapshot.
func (s *System) UpdateFrame(view *ViewParams, legacy []LegacyLight, consumer DrawListConsumer) FrameStats {
	s.frameCount++
	s.interactions.ResetFrameCounters()

	s.ingestLegacyLights(legacy)

	for i := 0; i < s.lights.next; i++ {
		l := &s.lights.lights[i]
		if l.active && l.NeedsUpdate {
			s.UpdateLight(l)
		}
	}

	s.CullLights(view)

	for _, l := range s.visibleLights {
		s.GenerateInteractions(l)
	}

	s.CullInteractions(view, consumer)

	for _, l := range s.visibleLights {
		if _, casters, _ := s.LightCounts(l); casters > 0 {
			if s.EnsureShadowMap(l) != nil {
				s.shadows.Render(l)
			}
		}
	}

	s.stats = FrameStats{
		Frame:          s.frameCount,
		VisibleLights:  len(s.visibleLights),
		Interactions:   s.interactions.NumInteractions,
		StaticCached:   s.interactions.NumStaticCached,
		DynamicCreated: s.interactions.NumDynamicCreated,
		Culled:         s.interactions.NumCulled,
		Processed:      s.interactions.NumProcessed,
	}
	if s.log.DebugEnabled() {
		s.log.Debugf("frame %d: %d visible lights, %d interactions (%d culled of %d processed)",
			s.stats.Frame, s.stats.VisibleLights, s.stats.Interactions, s.stats.Culled, s.stats.Processed)
	}
	return s.stats
}
