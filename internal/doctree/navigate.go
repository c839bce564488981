package doctree

// FindNode returns the first direct child of node tagged name, or nil.
func FindNode(name string, node *Node) *Node {
	if node == nil {
		return nil
	}
	for _, c := range node.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// FindNodeList returns every direct child of node tagged name, in document order.
func FindNodeList(name string, node *Node) []*Node {
	list := []*Node{}
	if node == nil {
		return list
	}
	for _, c := range node.Children {
		if c.Name == name {
			list = append(list, c)
		}
	}
	return list
}

// FindNodeInDepth searches the subtree below node (node itself excluded) in
// level order and returns the first element tagged name. When several
// descendants share the tag, the shallowest, left-most one wins.
func FindNodeInDepth(name string, node *Node) *Node {
	if node == nil {
		return nil
	}
	q := NewQueue(node.Children...)
	for {
		n, ok := q.Pop()
		if !ok {
			return nil
		}
		if n.Name == name {
			return n
		}
		q.Push(n.Children...)
	}
}

// FindAttributeValue returns the value of attribute name on node.
// ok is false when the node has no such attribute (or no attributes at all).
func FindAttributeValue(name string, node *Node) (value string, ok bool) {
	if node == nil || node.Attrs == nil {
		return "", false
	}
	value, ok = node.Attrs[name]
	return value, ok
}
