package collada

import "errors"

// Failure kinds of a parse. None of them are retryable and a failed parse never
// returns a partial list.
var (
	ErrInvalidRoot          = errors.New("root element is not COLLADA")
	ErrMissingAssetMetadata = errors.New("authoring_tool metadata not found")
	ErrMissingLibraries     = errors.New("geometry or visual scene library missing or empty")
	ErrEmptySceneGraph      = errors.New("visual scene has no nodes")
	ErrMalformedVertexData  = errors.New("malformed vertex data")

	// ErrUnsupportedTool is a soft outcome: the document is well formed but was
	// produced by a tool no parser variant handles.
	ErrUnsupportedTool = errors.New("unsupported authoring tool")
)

// IsSoft reports whether err is the unsupported-tool outcome rather than a
// malformed document.
func IsSoft(err error) bool {
	return errors.Is(err, ErrUnsupportedTool)
}
