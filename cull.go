package lightgraph

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// PVS answers precomputed area-to-area visibility queries. Lights with area
// membership are additionally rejected when their origin is not potentially
// visible from the view origin.
type PVS interface {
	IsVisible(origin, viewOrigin mgl32.Vec3) bool
}

// ViewParams is the per-frame view description handed to the culler: the four
// side planes of the frustum (near/far intentionally excluded, lights close
// behind the viewer can still cast into view), the PVS query origin, and the
// view-projection the planes came from.
type ViewParams struct {
	Planes   [4]mgl32.Vec4 // left, right, bottom, top; normals point inside
	Origin   mgl32.Vec3
	ViewProj mgl32.Mat4
}

// NewViewParams extracts the side planes from a view-projection matrix.
// Plane form is Ax+By+Cz+D=0 with the normal pointing into the frustum.
func NewViewParams(viewProj mgl32.Mat4, origin mgl32.Vec3) *ViewParams {
	v := &ViewParams{Origin: origin, ViewProj: viewProj}

	// Left: row3 + row0, Right: row3 - row0,
	// Bottom: row3 + row1, Top: row3 - row1.
	for i, sign := range [4]struct {
		row int
		neg bool
	}{{0, false}, {0, true}, {1, false}, {1, true}} {
		var p mgl32.Vec4
		for c := 0; c < 4; c++ {
			if sign.neg {
				p[c] = viewProj.At(3, c) - viewProj.At(sign.row, c)
			} else {
				p[c] = viewProj.At(3, c) + viewProj.At(sign.row, c)
			}
		}
		length := float32(math.Sqrt(float64(p[0]*p[0] + p[1]*p[1] + p[2]*p[2])))
		if length > 0 {
			p = p.Mul(1.0 / length)
		}
		v.Planes[i] = p
	}
	return v
}

// boxOutsidePlanes rejects an AABB only when it lies entirely on the negative
// side of one of the planes. The positive vertex (the corner furthest along
// the plane normal) decides: if even that corner is behind, the whole box is.
func boxOutsidePlanes(aabb [2]mgl32.Vec3, planes [4]mgl32.Vec4) bool {
	for i := 0; i < 4; i++ {
		plane := planes[i]
		var p mgl32.Vec3
		for c := 0; c < 3; c++ {
			if plane[c] > 0 {
				p[c] = aabb[1][c]
			} else {
				p[c] = aabb[0][c]
			}
		}
		dist := plane[0]*p[0] + plane[1]*p[1] + plane[2]*p[2] + plane[3]
		if dist < 0 {
			return true
		}
	}
	return false
}

// CullLights builds the frame's visible-light list. Lights already stamped
// with the current visibility epoch are skipped (duplicate-work guard when a
// light is reachable through several portals). Directional lights bypass the
// spatial test; lights with area membership must also pass the PVS check.
func (s *System) CullLights(view *ViewParams) []*RenderLight {
	s.visCount++
	s.visibleLights = s.visibleLights[:0]
	if view == nil {
		return s.visibleLights
	}

	for i := 0; i < s.lights.next; i++ {
		l := &s.lights.lights[i]
		if !l.active {
			continue
		}
		if l.viewCount == s.visCount {
			continue // already handled this epoch
		}
		if !l.isDirectional() && boxOutsidePlanes(l.Bounds, view.Planes) {
			continue
		}
		if l.AreaNum != none && s.pvs != nil && !s.pvs.IsVisible(l.Origin, view.Origin) {
			continue
		}
		l.viewCount = s.visCount
		s.visibleLights = append(s.visibleLights, l)
	}
	return s.visibleLights
}

// CullInteractions walks every interaction reachable from the visible lights,
// resets the frame-transient culled flag, and marks empty or out-of-frustum
// interactions. Survivors are handed to the draw-list consumer.
func (s *System) CullInteractions(view *ViewParams, consumer DrawListConsumer) {
	for _, l := range s.visibleLights {
		for slot := l.firstInteraction; slot != none; {
			in := &s.interactions.items[slot]
			slot = in.lightNext

			in.Culled = false
			s.interactions.NumProcessed++

			switch {
			case in.IsEmpty:
				in.Culled = true
				s.interactions.NumCulled++
			case view != nil && boxOutsidePlanes(in.Bounds, view.Planes):
				in.Culled = true
				s.interactions.NumCulled++
			default:
				if consumer != nil {
					consumer.AddInteraction(l, s.surfaces[in.Surface], in)
				}
			}
		}
	}
}
