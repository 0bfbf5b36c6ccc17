// Package queue provides the bounded priority structures used during graph
// traversal: a min-heap frontier (pop-closest) and a max-heap result set with
// eviction-on-overflow.
package queue

// Item represents an item in the priority queue.
// Value-based (no pointers) for cache locality and zero allocations.
type Item struct {
	Node     uint32  // Node is a dense node identifier.
	Distance float32 // Distance is the priority of the item in the queue.
}

// PriorityQueue is a binary heap of Items.
// Value-based storage; steady-state operations do not allocate once the
// backing slice has grown to capacity.
type PriorityQueue struct {
	isMaxHeap bool
	items     []Item
}

// NewMin initializes a priority queue that pops the smallest distance first.
func NewMin(capacity int) *PriorityQueue {
	return &PriorityQueue{
		isMaxHeap: false,
		items:     make([]Item, 0, capacity),
	}
}

// NewMax initializes a priority queue that pops the largest distance first.
func NewMax(capacity int) *PriorityQueue {
	return &PriorityQueue{
		isMaxHeap: true,
		items:     make([]Item, 0, capacity),
	}
}

// Len returns the number of elements in the priority queue.
func (pq *PriorityQueue) Len() int { return len(pq.items) }

// TopItem returns the top element of the heap without removing it.
func (pq *PriorityQueue) TopItem() (Item, bool) {
	if len(pq.items) == 0 {
		return Item{}, false
	}
	return pq.items[0], true
}

// PushItem inserts an item while maintaining the heap invariant.
func (pq *PriorityQueue) PushItem(item Item) {
	pq.items = append(pq.items, item)
	pq.siftUp(len(pq.items) - 1)
}

// PushBounded inserts an item into a max-heap while keeping at most capacity
// elements, evicting the current largest distance when over capacity.
// Returns false if the item was rejected (worse than the current worst at
// full capacity).
func (pq *PriorityQueue) PushBounded(item Item, capacity int) bool {
	if capacity <= 0 {
		return false
	}
	if len(pq.items) < capacity {
		pq.PushItem(item)
		return true
	}
	worst := pq.items[0]
	if item.Distance >= worst.Distance {
		return false
	}
	_, _ = pq.PopItem()
	pq.PushItem(item)
	return true
}

// PopItem removes and returns the top element while maintaining the heap invariant.
func (pq *PriorityQueue) PopItem() (Item, bool) {
	n := len(pq.items)
	if n == 0 {
		return Item{}, false
	}
	root := pq.items[0]
	last := pq.items[n-1]
	pq.items[n-1] = Item{}
	pq.items = pq.items[:n-1]
	if n-1 > 0 {
		pq.items[0] = last
		pq.siftDown(0)
	}
	return root, true
}

// MinItem returns the item with the smallest distance currently in the queue.
// For min-heaps this is the top element; for max-heaps this scans the backing slice.
func (pq *PriorityQueue) MinItem() (Item, bool) {
	if len(pq.items) == 0 {
		return Item{}, false
	}
	if !pq.isMaxHeap {
		return pq.items[0], true
	}
	min := pq.items[0]
	for i := 1; i < len(pq.items); i++ {
		if pq.items[i].Distance < min.Distance {
			min = pq.items[i]
		}
	}
	return min, true
}

// Reset clears the priority queue for reuse, keeping the backing slice.
func (pq *PriorityQueue) Reset() {
	pq.items = pq.items[:0]
}

func (pq *PriorityQueue) less(i, j int) bool {
	if pq.isMaxHeap {
		return pq.items[i].Distance > pq.items[j].Distance
	}
	return pq.items[i].Distance < pq.items[j].Distance
}

func (pq *PriorityQueue) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !pq.less(i, p) {
			return
		}
		pq.items[i], pq.items[p] = pq.items[p], pq.items[i]
		i = p
	}
}

func (pq *PriorityQueue) siftDown(i int) {
	n := len(pq.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && pq.less(r, l) {
			best = r
		}
		if !pq.less(best, i) {
			return
		}
		pq.items[i], pq.items[best] = pq.items[best], pq.items[i]
		i = best
	}
}
