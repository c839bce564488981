// Package doctree holds the parsed element tree handed to the spline
// extractor and the navigation helpers used to search it.
package doctree

// Document is the root of a parsed document. It owns every Node below Root.
type Document struct {
	Root *Node
}

// Node is one element of a parsed document. Nodes are treated as read-only
// once the parser returns them.
type Node struct {
	Name     string            // Element tag (local name)
	Attrs    map[string]string // Attribute name -> value (may be nil)
	Text     string            // Raw character data directly inside the element
	Children []*Node           // Child elements in document order
}

// NewNode is a convenience constructor used by parsers and tests.
func NewNode(name string, attrs map[string]string, children ...*Node) *Node {
	return &Node{Name: name, Attrs: attrs, Children: children}
}

// WithText sets the node's text and returns it, for building trees inline.
func (n *Node) WithText(text string) *Node {
	n.Text = text
	return n
}

// Count returns the number of nodes in the tree rooted at n, n included.
func (n *Node) Count() int {
	if n == nil {
		return 0
	}
	total := 1
	for _, c := range n.Children {
		total += c.Count()
	}
	return total
}
