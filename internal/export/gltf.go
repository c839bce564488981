// Package export converts extracted splines into formats a game engine can
// load directly.
package export

import (
	"io"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/dgallion1/splinegest/internal/report"
)

// Generator is written to the glTF asset header.
const Generator = "splinegest"

// Document builds a glTF document with one LINE_STRIP mesh, and one node
// referencing it, per spline. Mesh and node names fall back to the
// geometry id when the spline is unnamed or its name is empty.
func Document(views []report.SplineView) *gltf.Document {
	doc := gltf.NewDocument()
	doc.Asset.Generator = Generator
	if len(doc.Scenes) == 0 {
		doc.Scenes = append(doc.Scenes, &gltf.Scene{Name: "Root Scene"})
		doc.Scene = gltf.Index(0)
	}
	root := doc.Scenes[0]

	for _, v := range views {
		name := v.DisplayName()
		positions := make([][3]float32, len(v.Points))
		for i, p := range v.Points {
			positions[i] = [3]float32{float32(p[0]), float32(p[1]), float32(p[2])}
		}
		pos := modeler.WritePosition(doc, positions)

		doc.Meshes = append(doc.Meshes, &gltf.Mesh{
			Name: name,
			Primitives: []*gltf.Primitive{{
				Attributes: map[string]int{gltf.POSITION: pos},
				Mode:       gltf.PrimitiveLineStrip,
			}},
		})
		doc.Nodes = append(doc.Nodes, &gltf.Node{
			Name: name,
			Mesh: gltf.Index(len(doc.Meshes) - 1),
		})
		root.Nodes = append(root.Nodes, len(doc.Nodes)-1)
	}
	return doc
}

// WriteGLB encodes views as a binary glTF (.glb) stream.
func WriteGLB(w io.Writer, views []report.SplineView) error {
	enc := gltf.NewEncoder(w)
	enc.AsBinary = true
	return enc.Encode(Document(views))
}
