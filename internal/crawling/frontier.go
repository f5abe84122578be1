package crawling

import "container/heap"

const (
	priorityRegister = 0
	priorityOther    = 1
)

type frontierItem struct {
	url      string
	priority int
	depth    int
	seq      int
}

// frontier is a priority queue of pages to crawl ordered by priority,
// then depth, then discovery order.
type frontier struct {
	items  frontierHeap
	queued map[string]bool
	seq    int
}

func newFrontier() *frontier {
	return &frontier{queued: make(map[string]bool)}
}

// push enqueues url unless its key has been queued before.
func (f *frontier) push(url, key string, priority, depth int) bool {
	if f.queued[key] {
		return false
	}
	f.queued[key] = true
	f.seq++
	heap.Push(&f.items, &frontierItem{url: url, priority: priority, depth: depth, seq: f.seq})
	return true
}

func (f *frontier) pop() *frontierItem {
	return heap.Pop(&f.items).(*frontierItem)
}

func (f *frontier) len() int {
	return f.items.Len()
}

type frontierHeap []*frontierItem

func (h frontierHeap) Len() int { return len(h) }

func (h frontierHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	if h[i].depth != h[j].depth {
		return h[i].depth < h[j].depth
	}
	return h[i].seq < h[j].seq
}

func (h frontierHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *frontierHeap) Push(x any) { *h = append(*h, x.(*frontierItem)) }

func (h *frontierHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
