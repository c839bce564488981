package collada

import (
	"fmt"
	"strings"

	"github.com/dgallion1/splinegest/internal/doctree"
)

// Tool identifies the application that authored a document.
type Tool string

const (
	ToolUnknown  Tool = "unknown"
	ToolCinema4D Tool = "c4d"
)

// FormatParser extracts splines from a COLLADA root element. Each authoring
// tool lays out its exports differently, so there is one variant per tool.
type FormatParser interface {
	Parse(root *doctree.Node) ([]Geometry, error)
}

// toolMarkers lists the literal substrings that identify each tool. Matching
// is plain containment with no case folding.
var toolMarkers = []struct {
	tool    Tool
	markers []string
}{
	{ToolCinema4D, []string{"CINEMA4D", "cinema4d"}},
}

// parsers maps each known tool to its format variant.
var parsers = map[Tool]FormatParser{
	ToolCinema4D: C4DParser{},
}

// DetectTool classifies authoring-tool text.
func DetectTool(info string) Tool {
	for _, tm := range toolMarkers {
		for _, m := range tm.markers {
			if strings.Contains(info, m) {
				return tm.tool
			}
		}
	}
	return ToolUnknown
}

// ParserFor returns the format variant for tool. Unknown tools get an
// UnsupportedParser, so callers never branch on the tool themselves.
func ParserFor(tool Tool) FormatParser {
	if p, ok := parsers[tool]; ok {
		return p
	}
	return UnsupportedParser{Tool: tool}
}

// AuthoringTool returns the authoring_tool text found below the root's asset
// element.
func AuthoringTool(root *doctree.Node) (string, error) {
	asset := doctree.FindNode("asset", root)
	if asset == nil {
		return "", fmt.Errorf("%w: no asset element", ErrMissingAssetMetadata)
	}
	n := doctree.FindNodeInDepth("authoring_tool", asset)
	if n == nil {
		return "", ErrMissingAssetMetadata
	}
	return n.Text, nil
}

// UnsupportedParser is the variant chosen when no known tool matched.
type UnsupportedParser struct {
	Tool Tool
}

func (p UnsupportedParser) Parse(*doctree.Node) ([]Geometry, error) {
	return nil, ErrUnsupportedTool
}
