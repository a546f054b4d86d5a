// Package gltfscene ingests candidate surfaces for the light system from a
// glTF document: one Surface per node mesh primitive, with world-space bounds
// and lighting flags derived from materials and animations.
package gltfscene

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/gekko3d/lightgraph"
)

// unlit materials take no lighting of their own.
const unlitExtension = "KHR_materials_unlit"

// LoadSurfaces opens a .glb or .gltf file and returns the surfaces of its
// default scene.
func LoadSurfaces(path string) ([]*lightgraph.Surface, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gltf open %q: %w", path, err)
	}
	return SurfacesFromDocument(doc)
}

// SurfacesFromDocument converts every mesh primitive reachable from the
// document's default scene (or all parentless nodes when no scene is set)
// into a Surface. Flags:
//
//   - Sky: material name starts with "sky"
//   - NoLight: material carries KHR_materials_unlit
//   - Dynamic: some animation channel targets the node
//   - Lightmapped: always, this is world geometry
func SurfacesFromDocument(doc *gltf.Document) ([]*lightgraph.Surface, error) {
	animated := animatedNodes(doc)

	var surfaces []*lightgraph.Surface
	var walk func(nodeIdx int, parent mgl32.Mat4) error
	walk = func(nodeIdx int, parent mgl32.Mat4) error {
		if nodeIdx < 0 || nodeIdx >= len(doc.Nodes) {
			return nil
		}
		node := doc.Nodes[nodeIdx]
		world := parent.Mul4(nodeTransform(node))

		if node.Mesh != nil && *node.Mesh < len(doc.Meshes) {
			mesh := doc.Meshes[*node.Mesh]
			for pi, prim := range mesh.Primitives {
				surf, err := primitiveSurface(doc, prim, world)
				if err != nil {
					return fmt.Errorf("mesh %q prim %d: %w", mesh.Name, pi, err)
				}
				if surf == nil {
					continue // no geometry
				}
				surf.Dynamic = animated[nodeIdx]
				surfaces = append(surfaces, surf)
			}
		}

		for _, child := range node.Children {
			if err := walk(child, world); err != nil {
				return err
			}
		}
		return nil
	}

	for _, root := range rootNodes(doc) {
		if err := walk(root, mgl32.Ident4()); err != nil {
			return nil, err
		}
	}
	return surfaces, nil
}

func primitiveSurface(doc *gltf.Document, prim *gltf.Primitive, world mgl32.Mat4) (*lightgraph.Surface, error) {
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, nil
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	if len(positions) == 0 {
		return nil, nil
	}

	inf := float32(1e30)
	bmin := mgl32.Vec3{inf, inf, inf}
	bmax := mgl32.Vec3{-inf, -inf, -inf}
	for _, p := range positions {
		w := world.Mul4x1(mgl32.Vec3{p[0], p[1], p[2]}.Vec4(1)).Vec3()
		bmin = mgl32.Vec3{min(bmin.X(), w.X()), min(bmin.Y(), w.Y()), min(bmin.Z(), w.Z())}
		bmax = mgl32.Vec3{max(bmax.X(), w.X()), max(bmax.Y(), w.Y()), max(bmax.Z(), w.Z())}
	}

	surf := &lightgraph.Surface{
		Bounds:      [2]mgl32.Vec3{bmin, bmax},
		Lightmapped: true,
	}

	if prim.Material != nil && *prim.Material < len(doc.Materials) {
		mat := doc.Materials[*prim.Material]
		if strings.HasPrefix(strings.ToLower(mat.Name), "sky") {
			surf.Sky = true
		}
		if _, unlit := mat.Extensions[unlitExtension]; unlit {
			surf.NoLight = true
		}
	}
	return surf, nil
}

// nodeTransform composes the node's TRS the same way the scene loaders in
// this engine family do; authored matrix transforms are not supported.
func nodeTransform(node *gltf.Node) mgl32.Mat4 {
	t := node.TranslationOrDefault()
	s := node.ScaleOrDefault()
	r := node.RotationOrDefault() // x, y, z, w

	translate := mgl32.Translate3D(float32(t[0]), float32(t[1]), float32(t[2]))
	rotate := mgl32.Quat{
		W: float32(r[3]),
		V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])},
	}.Mat4()
	scale := mgl32.Scale3D(float32(s[0]), float32(s[1]), float32(s[2]))
	return translate.Mul4(rotate).Mul4(scale)
}

func animatedNodes(doc *gltf.Document) map[int]bool {
	out := make(map[int]bool)
	for _, anim := range doc.Animations {
		for _, ch := range anim.Channels {
			if ch.Target.Node != nil {
				out[*ch.Target.Node] = true
			}
		}
	}
	return out
}

func rootNodes(doc *gltf.Document) []int {
	if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
		return doc.Scenes[*doc.Scene].Nodes
	}
	hasParent := make([]bool, len(doc.Nodes))
	for _, node := range doc.Nodes {
		for _, c := range node.Children {
			if c < len(hasParent) {
				hasParent[c] = true
			}
		}
	}
	var roots []int
	for i := range doc.Nodes {
		if !hasParent[i] {
			roots = append(roots, i)
		}
	}
	return roots
}
