package hnsw

import "container/heap"

// queueItem is a single scored candidate: a node id and its distance to
// whatever the current search is anchored on.
type queueItem struct {
	id    string
	dist  float32
	index int // maintained by container/heap
}

// priorityQueue implements container/heap.Interface. When order is false it
// behaves as a min-heap (ascending distance, used for the candidate
// frontier); when true, a max-heap (descending distance, used for the
// bounded result set so the worst element is always at the top).
type priorityQueue struct {
	order bool
	items []*queueItem
}

var _ heap.Interface = (*priorityQueue)(nil)

func (pq *priorityQueue) Len() int { return len(pq.items) }

func (pq *priorityQueue) Less(i, j int) bool {
	if !pq.order {
		return pq.items[i].dist < pq.items[j].dist
	}
	return pq.items[i].dist > pq.items[j].dist
}

func (pq *priorityQueue) Swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
	pq.items[i].index, pq.items[j].index = i, j
}

func (pq *priorityQueue) Push(x any) {
	item, _ := x.(*queueItem)
	item.index = len(pq.items)
	pq.items = append(pq.items, item)
}

func (pq *priorityQueue) Pop() any {
	old := pq.items
	n := len(old)
	if n == 0 {
		return nil
	}
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	pq.items = old[:n-1]
	return item
}

func (pq *priorityQueue) top() *queueItem {
	return pq.items[0]
}
