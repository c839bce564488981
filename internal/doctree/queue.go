package doctree

// Queue is a FIFO worklist of nodes used for breadth-first traversal.
// The zero value is an empty queue ready to use.
type Queue struct {
	items []*Node
	head  int
}

// NewQueue returns a queue seeded with nodes, in order.
func NewQueue(nodes ...*Node) *Queue {
	q := &Queue{}
	q.Push(nodes...)
	return q
}

// Push appends nodes to the back of the queue.
func (q *Queue) Push(nodes ...*Node) {
	q.items = append(q.items, nodes...)
}

// Pop removes and returns the front node. ok is false when the queue is empty.
func (q *Queue) Pop() (n *Node, ok bool) {
	if q.head >= len(q.items) {
		return nil, false
	}
	n = q.items[q.head]
	q.items[q.head] = nil
	q.head++
	// Reclaim the consumed prefix once it dominates the backing array.
	if q.head > 64 && q.head*2 >= len(q.items) {
		q.items = append([]*Node(nil), q.items[q.head:]...)
		q.head = 0
	}
	return n, true
}

// Len returns the number of nodes still queued.
func (q *Queue) Len() int {
	return len(q.items) - q.head
}
