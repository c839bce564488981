// Package collada extracts spline geometries from COLLADA scene documents.
//
// A parse runs in two steps. First the authoring tool recorded in the asset
// metadata selects a FormatParser. Then that parser decodes the line-strip
// geometries and names them from the scene graph. The package only reads the
// tree it is given and holds no state between calls, so parses may run
// concurrently on independent documents.
package collada

import (
	"github.com/dgallion1/splinegest/internal/doctree"
)

// Phase is a step of the parse state machine.
type Phase string

const (
	PhaseDetecting  Phase = "detecting"
	PhaseExtracting Phase = "extracting"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// Importer runs a parse and reports phase transitions to OnPhase.
type Importer struct {
	OnPhase func(Phase)
	// OnTool, when set, receives the detected tool and its raw metadata text.
	OnTool func(tool Tool, info string)
}

// Parse extracts the splines of doc with a default Importer.
func Parse(doc *doctree.Document) ([]Geometry, error) {
	return Importer{}.Import(doc)
}

// Import runs Detecting, then Extracting, and ends in Done or Failed. On
// failure the returned list is always nil.
func (im Importer) Import(doc *doctree.Document) ([]Geometry, error) {
	im.phase(PhaseDetecting)
	var root *doctree.Node
	if doc != nil {
		root = doc.Root
	}
	if root == nil || (root.Name != "COLLADA" && root.Name != "collada") {
		im.phase(PhaseFailed)
		return nil, ErrInvalidRoot
	}

	info, err := AuthoringTool(root)
	if err != nil {
		im.phase(PhaseFailed)
		return nil, err
	}
	tool := DetectTool(info)
	if im.OnTool != nil {
		im.OnTool(tool, info)
	}

	im.phase(PhaseExtracting)
	geoms, err := ParserFor(tool).Parse(root)
	if err != nil {
		im.phase(PhaseFailed)
		return nil, err
	}
	im.phase(PhaseDone)
	return geoms, nil
}

func (im Importer) phase(p Phase) {
	if im.OnPhase != nil {
		im.OnPhase(p)
	}
}
