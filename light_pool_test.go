package lightgraph

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLightPoolCapacity(t *testing.T) {
	pool := NewLightPool(2, NewNopLogger())

	a := pool.Alloc()
	b := pool.Alloc()
	c := pool.Alloc()

	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Nil(t, c, "third alloc from a pool of 2 must fail")
	assert.Equal(t, 2, pool.NumAllocated())
}

func TestLightPoolDefaults(t *testing.T) {
	pool := NewLightPool(4, nil)
	l := pool.Alloc()
	require.NotNil(t, l)

	omni, ok := l.Shape.(Omni)
	require.True(t, ok, "fresh lights default to omni")
	assert.Greater(t, omni.Radius, float32(0))
	assert.Equal(t, float32(1), l.Intensity)
	assert.Equal(t, [3]float32{0, 0, 1}, l.Attenuation, "near inverse-square falloff")
	assert.Equal(t, mgl32.QuatIdent(), l.Axis)
	assert.True(t, l.NeedsUpdate)
	assert.Equal(t, none, l.AreaNum)
	assert.Equal(t, none, l.firstInteraction)
	assert.Equal(t, none, l.lastInteraction)
	assert.True(t, l.Active())
}

func TestLightPoolSlotsNotReusedUntilClear(t *testing.T) {
	s := NewSystem(Config{MaxLights: 2, MaxInteractions: 8, MaxShadowMaps: 1, MaxAreas: 1, ShadowResolution: 256})
	defer s.Close()

	a := s.AllocLight()
	require.NotNil(t, a)
	s.FreeLight(a)
	assert.False(t, a.Active())

	b := s.AllocLight()
	require.NotNil(t, b)
	assert.NotEqual(t, a.Index, b.Index, "freed slots stay reserved until Clear")

	assert.Nil(t, s.AllocLight())

	s.Clear()
	assert.NotNil(t, s.AllocLight())
}

func TestAreaIndexAddRemove(t *testing.T) {
	pool := NewLightPool(8, nil)
	areas := NewAreaIndex(4)

	a := pool.Alloc()
	b := pool.Alloc()
	c := pool.Alloc()

	areas.Add(pool, a, 0)
	areas.Add(pool, b, 0)
	areas.Add(pool, c, 0)
	assert.ElementsMatch(t, []int{a.Index, b.Index, c.Index}, areas.Lights(pool, 0))

	// Re-adding moves the light, it never appears twice.
	areas.Add(pool, b, 1)
	assert.ElementsMatch(t, []int{a.Index, c.Index}, areas.Lights(pool, 0))
	assert.Equal(t, []int{b.Index}, areas.Lights(pool, 1))
	assert.Equal(t, 1, b.AreaNum)

	// Re-adding to the same area is idempotent.
	areas.Add(pool, b, 1)
	assert.Equal(t, []int{b.Index}, areas.Lights(pool, 1))

	areas.Remove(pool, a)
	areas.Remove(pool, c)
	assert.Empty(t, areas.Lights(pool, 0))
	assert.Equal(t, none, a.AreaNum)

	// Removing an unlinked light is a no-op.
	areas.Remove(pool, a)
	areas.Remove(pool, nil)

	// Out-of-range areas are ignored.
	areas.Add(pool, a, 99)
	assert.Equal(t, none, a.AreaNum)
}
