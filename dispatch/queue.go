package dispatch

import "container/heap"

// priorityQueue orders pending work by priority tier, then by arrival
// sequence within a tier. A binary heap keeps insertion logarithmic while
// the monotonic sequence number preserves FIFO among equal priorities: a
// higher-priority item submitted later may overtake, an equal-priority item
// never does.
type priorityQueue struct {
	items itemHeap
}

func newPriorityQueue() *priorityQueue {
	return &priorityQueue{}
}

func (q *priorityQueue) Len() int {
	return len(q.items)
}

func (q *priorityQueue) Push(it *item) {
	heap.Push(&q.items, it)
}

// Pop removes and returns the highest-precedence item, or nil when empty.
func (q *priorityQueue) Pop() *item {
	if len(q.items) == 0 {
		return nil
	}
	return heap.Pop(&q.items).(*item)
}

// Remove extracts an item regardless of position. Returns false when the
// item is no longer queued.
func (q *priorityQueue) Remove(it *item) bool {
	if it.heapIndex < 0 || it.heapIndex >= len(q.items) || q.items[it.heapIndex] != it {
		return false
	}
	heap.Remove(&q.items, it.heapIndex)
	return true
}

// Drain empties the queue in precedence order.
func (q *priorityQueue) Drain() []*item {
	drained := make([]*item, 0, len(q.items))
	for q.Len() > 0 {
		drained = append(drained, q.Pop())
	}
	return drained
}

type itemHeap []*item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *itemHeap) Push(x any) {
	it := x.(*item)
	it.heapIndex = len(*h)
	*h = append(*h, it)
}

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.heapIndex = -1
	*h = old[:n-1]
	return it
}
