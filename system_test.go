package lightgraph

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addStaticWall(s *System, at mgl32.Vec3) *Surface {
	half := mgl32.Vec3{1, 1, 1}
	surf := &Surface{
		Bounds:      [2]mgl32.Vec3{at.Sub(half), at.Add(half)},
		Lightmapped: true,
	}
	s.AddSurface(surf)
	return surf
}

func TestStaticLightCaching(t *testing.T) {
	s := NewSystem(DefaultConfig())
	defer s.Close()

	l := s.AllocLight()
	l.Shape = Omni{Radius: 5}
	l.Origin = mgl32.Vec3{0, 0, -10}
	l.Static = true

	addStaticWall(s, mgl32.Vec3{0, 0, -10})
	addStaticWall(s, mgl32.Vec3{2, 0, -10})
	addStaticWall(s, mgl32.Vec3{-2, 0, -10})

	view := testView()
	consumer := &recordingConsumer{}

	stats := s.UpdateFrame(view, nil, consumer)
	require.Equal(t, 3, stats.Interactions)
	require.Equal(t, 3, stats.StaticCached)
	require.Equal(t, 0, stats.DynamicCreated)

	var firstFrameSlots []int
	for slot := l.firstInteraction; slot != none; slot = s.interactions.items[slot].lightNext {
		firstFrameSlots = append(firstFrameSlots, slot)
	}
	require.Len(t, firstFrameSlots, 3)

	// Clean static light, unchanged surfaces: no churn at all.
	consumer.got = nil
	stats = s.UpdateFrame(view, nil, consumer)
	assert.Equal(t, 3, stats.Interactions)
	assert.Equal(t, 0, stats.DynamicCreated, "cached frames create nothing")
	assert.Equal(t, 0, stats.StaticCached, "cached frames create nothing")

	var secondFrameSlots []int
	for slot := l.firstInteraction; slot != none; slot = s.interactions.items[slot].lightNext {
		secondFrameSlots = append(secondFrameSlots, slot)
	}
	assert.Equal(t, firstFrameSlots, secondFrameSlots, "interaction identities preserved")
	assert.Len(t, consumer.got, 3)
}

func TestDirtyStaticLightRebuild(t *testing.T) {
	s := NewSystem(DefaultConfig())
	defer s.Close()

	l := s.AllocLight()
	l.Shape = Omni{Radius: 5}
	l.Origin = mgl32.Vec3{0, 0, -10}
	l.Static = true

	for i := 0; i < 3; i++ {
		addStaticWall(s, mgl32.Vec3{float32(i - 1), 0, -10})
	}

	view := testView()
	s.UpdateFrame(view, nil, nil)
	require.Equal(t, 3, s.Interactions().NumInteractions)

	// Mutate the light; the next frame must rebuild the whole chain.
	l.Origin = mgl32.Vec3{1, 0, -10}
	l.NeedsUpdate = true

	stats := s.UpdateFrame(view, nil, nil)
	assert.Equal(t, 3, stats.Interactions)
	assert.Equal(t, 3, stats.StaticCached, "dirty static light rebuilds from scratch")

	for slot := l.firstInteraction; slot != none; slot = s.interactions.items[slot].lightNext {
		in := &s.interactions.items[slot]
		assert.Equal(t, 2, in.LastUpdateFrame, "rebuilt records are stamped with the rebuild frame")
	}
}

func TestDirectGenerateOnDirtyLight(t *testing.T) {
	s := NewSystem(DefaultConfig())
	defer s.Close()

	l := s.AllocLight()
	l.Shape = Omni{Radius: 5}
	l.Origin = mgl32.Vec3{0, 0, 0}
	l.Static = true
	s.UpdateLight(l)

	addStaticWall(s, mgl32.Vec3{0, 0, 0})
	s.GenerateInteractions(l)
	require.Equal(t, 1, s.Interactions().NumInteractions)
	require.False(t, l.NeedsUpdate)

	// Marking dirty and generating directly rebuilds and clears the flag.
	l.NeedsUpdate = true
	s.GenerateInteractions(l)
	assert.False(t, l.NeedsUpdate)
	assert.Equal(t, 1, s.Interactions().NumInteractions)
}

func TestDynamicLightRebuildsEveryFrame(t *testing.T) {
	s := NewSystem(DefaultConfig())
	defer s.Close()

	l := s.AllocLight()
	l.Shape = Omni{Radius: 5}
	l.Origin = mgl32.Vec3{0, 0, -10}
	// Static stays false: dynamic light.

	addStaticWall(s, mgl32.Vec3{0, 0, -10})

	view := testView()
	stats := s.UpdateFrame(view, nil, nil)
	assert.Equal(t, 1, stats.DynamicCreated)

	stats = s.UpdateFrame(view, nil, nil)
	assert.Equal(t, 1, stats.DynamicCreated, "dynamic lights rebuild every frame")
	assert.Equal(t, 1, stats.Interactions, "rebuild must not leak records")
}

func TestSurfacePredicateRejects(t *testing.T) {
	s := NewSystem(DefaultConfig())
	defer s.Close()

	l := s.AllocLight()
	l.Shape = Omni{Radius: 100}
	l.Origin = mgl32.Vec3{0, 0, 0}
	s.UpdateLight(l)

	bounds := [2]mgl32.Vec3{{-1, -1, -1}, {1, 1, 1}}
	s.AddSurface(&Surface{Bounds: bounds, Lightmapped: true, Sky: true})
	s.AddSurface(&Surface{Bounds: bounds}) // not lightmapped
	s.AddSurface(&Surface{Bounds: bounds, Lightmapped: true, NoDynLight: true})
	ok := &Surface{Bounds: bounds, Lightmapped: true}
	s.AddSurface(ok)

	s.GenerateInteractions(l)

	assert.Equal(t, 1, s.Interactions().NumInteractions)
	assert.Equal(t, ok.index, s.interactions.items[l.firstInteraction].Surface)
}

func TestLegacyLightIngest(t *testing.T) {
	s := NewSystem(DefaultConfig())
	defer s.Close()

	addStaticWall(s, mgl32.Vec3{0, 0, -10})
	view := testView()

	legacy := []LegacyLight{
		{Origin: mgl32.Vec3{0, 0, -10}, Color: mgl32.Vec3{1, 1, 1}, Radius: 4},
		{Origin: mgl32.Vec3{5, 0, -10}, Color: mgl32.Vec3{1, 0, 0}, Radius: 2},
	}

	stats := s.UpdateFrame(view, legacy, nil)
	assert.Equal(t, 2, stats.VisibleLights)
	allocatedAfterFirst := s.Lights().NumAllocated()

	// Same count next frame: slots are reused, the pool must not grow.
	s.UpdateFrame(view, legacy, nil)
	assert.Equal(t, allocatedAfterFirst, s.Lights().NumAllocated())

	// Fewer legacy lights: the extra slot goes dormant.
	stats = s.UpdateFrame(view, legacy[:1], nil)
	assert.Equal(t, 1, stats.VisibleLights)
	assert.Equal(t, allocatedAfterFirst, s.Lights().NumAllocated())

	// And comes back without a fresh alloc.
	stats = s.UpdateFrame(view, legacy, nil)
	assert.Equal(t, 2, stats.VisibleLights)
	assert.Equal(t, allocatedAfterFirst, s.Lights().NumAllocated())
}

func TestLightCountsRecount(t *testing.T) {
	s := NewSystem(DefaultConfig())
	defer s.Close()

	l := s.AllocLight()
	l.Shape = Omni{Radius: 5}
	l.Origin = mgl32.Vec3{0, 0, 0}
	l.Static = true
	s.UpdateLight(l)

	lit := addStaticWall(s, mgl32.Vec3{0, 0, 0})
	noShadow := &Surface{Bounds: lit.Bounds, Lightmapped: true, NoShadows: true}
	s.AddSurface(noShadow)

	s.GenerateInteractions(l)
	inter, casters, litCount := s.LightCounts(l)
	assert.Equal(t, 2, inter)
	assert.Equal(t, 1, casters)
	assert.Equal(t, 2, litCount)

	// Rebuild inflates the running totals but not the recount.
	l.NeedsUpdate = true
	s.GenerateInteractions(l)
	inter, casters, litCount = s.LightCounts(l)
	assert.Equal(t, 2, inter)
	assert.Equal(t, 1, casters)
	assert.Equal(t, 2, litCount)
	assert.Greater(t, l.NumInteractions, inter, "running totals only ever grow")
}

func TestClearResetsEverything(t *testing.T) {
	s := NewSystem(DefaultConfig())
	defer s.Close()

	l := s.AllocLight()
	l.Shape = Omni{Radius: 5}
	l.Origin = mgl32.Vec3{0, 0, -10}
	s.UpdateLight(l)
	addStaticWall(s, mgl32.Vec3{0, 0, -10})
	s.GenerateInteractions(l)
	require.NotZero(t, s.Interactions().NumInteractions)

	s.Clear()

	assert.Zero(t, s.Interactions().NumInteractions)
	assert.Zero(t, s.Lights().NumAllocated())
	assert.Zero(t, s.Frame())
	assert.Empty(t, s.surfaces)
	assert.NotNil(t, s.AllocLight(), "pool usable again after clear")
}

func TestUpdateFrameStats(t *testing.T) {
	s := NewSystem(DefaultConfig())
	defer s.Close()

	l := s.AllocLight()
	l.Shape = Omni{Radius: 3}
	l.Origin = mgl32.Vec3{0, 0, -10}

	addStaticWall(s, mgl32.Vec3{0, 0, -10})

	stats := s.UpdateFrame(testView(), nil, nil)
	assert.Equal(t, 1, stats.Frame)
	assert.Equal(t, 1, stats.VisibleLights)
	assert.Equal(t, 1, stats.Interactions)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 0, stats.Culled)
	assert.Equal(t, stats, s.Stats())
}

func TestPoolExhaustionIsRecoverable(t *testing.T) {
	s := NewSystem(Config{
		MaxLights: 1, MaxInteractions: 1, MaxShadowMaps: 1, MaxAreas: 1, ShadowResolution: 64,
	})
	defer s.Close()

	l := s.AllocLight()
	require.NotNil(t, l)
	l.Shape = Omni{Radius: 100}
	l.Origin = mgl32.Vec3{0, 0, -10}

	addStaticWall(s, mgl32.Vec3{0, 0, -10})
	addStaticWall(s, mgl32.Vec3{2, 0, -10})

	// Interaction pool holds one; the second pair sits the frame out.
	stats := s.UpdateFrame(testView(), nil, nil)
	assert.Equal(t, 1, stats.Interactions)

	// Light pool is full; legacy lights are dropped, frame still completes.
	stats = s.UpdateFrame(testView(), []LegacyLight{{Origin: mgl32.Vec3{0, 0, -10}, Radius: 2}}, nil)
	assert.Equal(t, 1, stats.VisibleLights)
}

func TestDefensiveNilHandling(t *testing.T) {
	s := NewSystem(DefaultConfig())
	defer s.Close()

	s.UpdateLight(nil)
	s.FreeLight(nil)
	s.GenerateInteractions(nil)
	s.RemoveSurface(-1)
	s.RemoveSurface(99)
	assert.Equal(t, none, s.AddSurface(nil))
	assert.Nil(t, s.CreateInteraction(nil, &Surface{}))
	assert.Empty(t, s.CullLights(nil))

	l := s.AllocLight()
	assert.Nil(t, s.CreateInteraction(l, &Surface{}), "unregistered surfaces are ignored")
}
