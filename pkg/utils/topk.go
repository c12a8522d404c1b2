package utils

import (
	"container/heap"
	"sort"
)

// ScoredItem represents an item with a score for top-K selection.
type ScoredItem[T any] struct {
	Item  T
	Score float64
}

// scoredHeap keeps the K best items seen so far with the worst one at the root.
type scoredHeap[T any] struct {
	items []ScoredItem[T]
	// better reports whether a ranks before b
	better func(a, b ScoredItem[T]) bool
}

func (h *scoredHeap[T]) Len() int           { return len(h.items) }
func (h *scoredHeap[T]) Less(i, j int) bool { return h.better(h.items[j], h.items[i]) }
func (h *scoredHeap[T]) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *scoredHeap[T]) Push(x any) {
	h.items = append(h.items, x.(ScoredItem[T]))
}

func (h *scoredHeap[T]) Pop() any {
	old := h.items
	n := len(old)
	x := old[n-1]
	h.items = old[:n-1]
	return x
}

// TopKByScore returns the k items with the highest scores in descending order.
// Equal scores are ordered by tieLess on the items, so the selection does not
// depend on the input order. With a nil tieLess the order of equal scores is
// unspecified.
func TopKByScore[T any](items []ScoredItem[T], k int, tieLess func(a, b T) bool) []ScoredItem[T] {
	if k <= 0 || len(items) == 0 {
		return nil
	}

	better := func(a, b ScoredItem[T]) bool {
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if tieLess != nil {
			return tieLess(a.Item, b.Item)
		}
		return false
	}

	if k >= len(items) {
		result := make([]ScoredItem[T], len(items))
		copy(result, items)
		sort.SliceStable(result, func(i, j int) bool { return better(result[i], result[j]) })
		return result
	}

	h := &scoredHeap[T]{items: make([]ScoredItem[T], 0, k), better: better}
	for _, item := range items {
		if h.Len() < k {
			heap.Push(h, item)
		} else if better(item, h.items[0]) {
			h.items[0] = item
			heap.Fix(h, 0)
		}
	}

	result := make([]ScoredItem[T], h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(ScoredItem[T])
	}
	return result
}
