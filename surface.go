package lightgraph

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Surface is one candidate receiver of light: world-space bounds plus the
// shader flags that decide whether it can take part in lighting at all.
// Register with System.AddSurface before generating interactions; the system
// threads the surface-owned interaction chain through registered surfaces.
type Surface struct {
	Bounds [2]mgl32.Vec3 // Min, Max

	Sky         bool // sky surfaces never interact
	Lightmapped bool // non-lightmapped geometry is excluded from dynamic lighting
	NoDynLight  bool // shader opts out of the interaction pass entirely
	NoLight     bool // takes no lighting but may still cast shadows
	NoShadows   bool // never casts shadows
	Dynamic     bool // moves per frame; interactions with it are never static

	index            int
	firstInteraction int // head of this surface's interaction chain
}

// Index returns the surface's slot in the system it was registered with.
// Only meaningful after AddSurface.
func (s *Surface) Index() int {
	return s.index
}

// lightable is the cheap reject applied before any bounds work.
func (s *Surface) lightable() bool {
	return !s.Sky && s.Lightmapped && !s.NoDynLight
}
