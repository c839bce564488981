package collada

import (
	"fmt"
	"unicode/utf8"

	"github.com/dgallion1/splinegest/internal/doctree"
)

// C4DParser reads Cinema 4D COLLADA exports. Splines are line-strip geometries
// in library_geometries; their names come from the visual scene nodes that
// instance them.
type C4DParser struct{}

func (C4DParser) Parse(root *doctree.Node) ([]Geometry, error) {
	geoLib := doctree.FindNode("library_geometries", root)
	sceneLib := doctree.FindNode("library_visual_scenes", root)
	if geoLib == nil || sceneLib == nil {
		return nil, ErrMissingLibraries
	}
	if len(geoLib.Children) == 0 || len(sceneLib.Children) == 0 {
		return nil, ErrMissingLibraries
	}

	geoms, err := decodeGeometries(geoLib)
	if err != nil {
		return nil, err
	}
	if err := resolveNames(geoms, sceneLib.Children[0]); err != nil {
		return nil, err
	}
	return geoms, nil
}

// decodeGeometries collects every line-strip geometry in library order.
func decodeGeometries(geoLib *doctree.Node) ([]Geometry, error) {
	geoms := []Geometry{}
	for _, nd := range geoLib.Children {
		if doctree.FindNodeInDepth("linestrips", nd) == nil {
			continue
		}
		id, _ := doctree.FindAttributeValue("id", nd)
		arr := doctree.FindNodeInDepth("float_array", nd)
		if arr == nil {
			continue
		}
		points, err := DecodeFloatArray(arr.Text)
		if err != nil {
			return nil, fmt.Errorf("geometry %q: %w", id, err)
		}
		geoms = append(geoms, Geometry{ID: id, Points: points})
	}
	return geoms, nil
}

// resolveNames walks the scene graph breadth-first and names each geometry
// after the first scene node that instances it. That node claims the record
// even when it has no name attribute.
func resolveNames(geoms []Geometry, scene *doctree.Node) error {
	top := doctree.FindNodeList("node", scene)
	if len(top) == 0 {
		return ErrEmptySceneGraph
	}
	claimed := make([]bool, len(geoms))
	q := doctree.NewQueue(top...)
	for {
		cnd, ok := q.Pop()
		if !ok {
			return nil
		}
		if inst := doctree.FindNode("instance_geometry", cnd); inst != nil {
			if id, ok := referencedID(inst); ok {
				nameGeometry(geoms, claimed, id, cnd)
			}
		}
		q.Push(doctree.FindNodeList("node", cnd)...)
	}
}

// referencedID strips the leading '#' marker from an instance_geometry url.
// A url with nothing after the marker references no geometry.
func referencedID(inst *doctree.Node) (string, bool) {
	url, ok := doctree.FindAttributeValue("url", inst)
	if !ok || url == "" {
		return "", false
	}
	_, size := utf8.DecodeRuneInString(url)
	if url[size:] == "" {
		return "", false
	}
	return url[size:], true
}

// nameGeometry names the first geometry with id and marks it claimed. Later
// scene nodes referencing a claimed record are ignored.
func nameGeometry(geoms []Geometry, claimed []bool, id string, sceneNode *doctree.Node) {
	for i := range geoms {
		if geoms[i].ID != id {
			continue
		}
		if !claimed[i] {
			claimed[i] = true
			if name, ok := doctree.FindAttributeValue("name", sceneNode); ok {
				geoms[i].Name = &name
			}
		}
		return
	}
}
