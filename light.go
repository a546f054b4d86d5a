package lightgraph

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// none is the sentinel slot index used by every index-based chain in this
// package (light/surface interaction chains, area lists, the free stack).
const none = -1

// directionalExtent stands in for "unbounded" on directional lights. Kept
// finite so bounds intersections stay NaN-free.
const directionalExtent = 1e20

// LightShape is the per-type geometry payload of a RenderLight. Each variant
// carries only the fields that mean something for it and resolves its own
// bounds and shadow-pass matrices.
type LightShape interface {
	// bounds returns the world-space AABB of the lit volume.
	bounds(origin mgl32.Vec3, axis mgl32.Quat) [2]mgl32.Vec3
	// matrices returns the view/projection pair for shadow rendering.
	// ok is false for shapes with no meaningful projection (Omni).
	matrices(origin mgl32.Vec3, axis mgl32.Quat) (view, proj mgl32.Mat4, ok bool)
}

// Omni is a point light lighting a sphere of Radius around its origin.
type Omni struct {
	Radius float32
}

func (o Omni) bounds(origin mgl32.Vec3, _ mgl32.Quat) [2]mgl32.Vec3 {
	r := mgl32.Vec3{o.Radius, o.Radius, o.Radius}
	return [2]mgl32.Vec3{origin.Sub(r), origin.Add(r)}
}

func (o Omni) matrices(_ mgl32.Vec3, _ mgl32.Quat) (mgl32.Mat4, mgl32.Mat4, bool) {
	return mgl32.Ident4(), mgl32.Ident4(), false
}

// Projected is a spot/projector light: a frustum aimed from the light origin
// at Target. FovX/FovY are full angles in degrees.
type Projected struct {
	Target mgl32.Vec3
	FovX   float32
	FovY   float32
	Near   float32
	Far    float32
}

func (p Projected) basis(origin mgl32.Vec3) (forward, right, up mgl32.Vec3) {
	forward = p.Target.Sub(origin)
	if forward.LenSqr() < 1e-12 {
		forward = mgl32.Vec3{0, 0, -1}
	} else {
		forward = forward.Normalize()
	}
	worldUp := mgl32.Vec3{0, 0, 1}
	if mgl32.Abs(forward.Dot(worldUp)) > 0.999 {
		worldUp = mgl32.Vec3{0, 1, 0}
	}
	right = forward.Cross(worldUp).Normalize()
	up = right.Cross(forward)
	return
}

func (p Projected) bounds(origin mgl32.Vec3, _ mgl32.Quat) [2]mgl32.Vec3 {
	forward, right, up := p.basis(origin)

	tanX := float32(math.Tan(float64(mgl32.DegToRad(p.FovX) * 0.5)))
	tanY := float32(math.Tan(float64(mgl32.DegToRad(p.FovY) * 0.5)))

	inf := float32(math.Inf(1))
	bmin := mgl32.Vec3{inf, inf, inf}
	bmax := mgl32.Vec3{-inf, -inf, -inf}

	// 8 frustum corners: near and far rectangles around the forward axis.
	for _, depth := range [2]float32{p.Near, p.Far} {
		center := origin.Add(forward.Mul(depth))
		dx := right.Mul(tanX * depth)
		dy := up.Mul(tanY * depth)
		for _, sx := range [2]float32{-1, 1} {
			for _, sy := range [2]float32{-1, 1} {
				c := center.Add(dx.Mul(sx)).Add(dy.Mul(sy))
				bmin = mgl32.Vec3{min(bmin.X(), c.X()), min(bmin.Y(), c.Y()), min(bmin.Z(), c.Z())}
				bmax = mgl32.Vec3{max(bmax.X(), c.X()), max(bmax.Y(), c.Y()), max(bmax.Z(), c.Z())}
			}
		}
	}
	return [2]mgl32.Vec3{bmin, bmax}
}

func (p Projected) matrices(origin mgl32.Vec3, _ mgl32.Quat) (mgl32.Mat4, mgl32.Mat4, bool) {
	forward, _, up := p.basis(origin)
	view := mgl32.LookAtV(origin, origin.Add(forward), up)

	tanX := float32(math.Tan(float64(mgl32.DegToRad(p.FovX) * 0.5)))
	tanY := float32(math.Tan(float64(mgl32.DegToRad(p.FovY) * 0.5)))
	aspect := float32(1)
	if tanY > 0 {
		aspect = tanX / tanY
	}
	proj := mgl32.Perspective(mgl32.DegToRad(p.FovY), aspect, p.Near, p.Far)
	return view, proj, true
}

// Directional is a sun-style light. It lights everything (unbounded volume);
// Radius is the half-extent of the ortho shadow volume and Near/Far its depth
// range, anchored at the light origin along the orientation axis.
type Directional struct {
	Radius float32
	Near   float32
	Far    float32
}

func (d Directional) bounds(_ mgl32.Vec3, _ mgl32.Quat) [2]mgl32.Vec3 {
	e := float32(directionalExtent)
	return [2]mgl32.Vec3{{-e, -e, -e}, {e, e, e}}
}

func (d Directional) matrices(origin mgl32.Vec3, axis mgl32.Quat) (mgl32.Mat4, mgl32.Mat4, bool) {
	forward := axis.Rotate(mgl32.Vec3{0, 0, -1})
	worldUp := mgl32.Vec3{0, 0, 1}
	if mgl32.Abs(forward.Dot(worldUp)) > 0.999 {
		worldUp = mgl32.Vec3{0, 1, 0}
	}
	view := mgl32.LookAtV(origin, origin.Add(forward), worldUp)
	proj := mgl32.Ortho(-d.Radius, d.Radius, -d.Radius, d.Radius, d.Near, d.Far)
	return view, proj, true
}

// RenderLight is one pooled light instance. Slots are stable for the life of
// the pool; Free marks a slot inactive but never reuses it before a Clear.
type RenderLight struct {
	Index int

	Shape  LightShape
	Origin mgl32.Vec3
	Axis   mgl32.Quat // orientation; drives Directional forward

	Color       mgl32.Vec3
	Intensity   float32
	Attenuation [3]float32 // constant, linear, quadratic
	Cutoff      float32    // max lit distance

	NoShadows      bool
	ShadowBias     float32
	ShadowSoftness float32

	Static          bool
	NeedsUpdate     bool
	LastUpdateFrame int

	Bounds [2]mgl32.Vec3 // Min, Max; recomputed by UpdateLight
	View   mgl32.Mat4    // Projected/Directional only
	Proj   mgl32.Mat4

	ShadowMap *ShadowMapInfo

	// Running totals, incremented on interaction creation and never
	// decremented. Report through System.LightCounts, which recounts from
	// the live chain instead.
	NumInteractions  int
	NumShadowCasters int
	NumLitSurfaces   int

	AreaNum  int // -1 when the light is outside any area
	areaNext int

	firstInteraction int
	lastInteraction  int

	viewCount    int // visibility epoch stamp; equal to the frame's epoch when visible
	needsRebuild bool
	active       bool
}

// Active reports whether the slot holds a live light.
func (l *RenderLight) Active() bool {
	return l != nil && l.active
}

// Directional lights are never spatially culled.
func (l *RenderLight) isDirectional() bool {
	_, ok := l.Shape.(Directional)
	return ok
}

// LegacyLight is the old per-frame dynamic light record still fed in by game
// code: a point light with no persistence and no shadow configuration.
type LegacyLight struct {
	Origin   mgl32.Vec3
	Color    mgl32.Vec3
	Radius   float32
	Additive bool
}

// ConvertLegacyLight maps a legacy point light onto an existing RenderLight
// slot. Attenuation follows the old falloff: constant 0, linear 2/r,
// quadratic 1/r².
func ConvertLegacyLight(src LegacyLight, dst *RenderLight) {
	if dst == nil {
		return
	}
	r := src.Radius
	if r <= 0 {
		r = 1
	}
	dst.Shape = Omni{Radius: r}
	dst.Origin = src.Origin
	dst.Color = src.Color
	dst.Intensity = 1
	dst.Attenuation = [3]float32{0, 2 / r, 1 / (r * r)}
	dst.Cutoff = r
	dst.NoShadows = true
	dst.Static = false
	dst.NeedsUpdate = true
}
