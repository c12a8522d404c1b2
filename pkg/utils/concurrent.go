package utils

import (
	"context"
	"os"
	"strconv"
	"sync"
)

// DefaultWorkerLimit is used when no worker count is configured.
const DefaultWorkerLimit = 4

// GetWorkerLimit returns the worker limit from the MINERVA_WORKERS environment
// variable, or DefaultWorkerLimit.
func GetWorkerLimit() int {
	val := os.Getenv("MINERVA_WORKERS")
	if val == "" {
		return DefaultWorkerLimit
	}
	limit, err := strconv.Atoi(val)
	if err != nil || limit <= 0 {
		return DefaultWorkerLimit
	}
	return limit
}

// Worker represents a worker function that processes one item
type Worker[T any, R any] func(ctx context.Context, item T) (R, error)

// WorkerPool processes items with a fixed number of goroutines.
//
// Results and errors are returned in item order. Items left unprocessed because
// the context was cancelled get the context error. Panics in workers are
// recovered and reported as PanicError for the item that panicked.
//
// Example:
//
//	pool := NewWorkerPool(4, func(ctx context.Context, id string) (*types.KnowledgeRecord, error) {
//	    return fetcher.Fetch(ctx, id)
//	})
//	records, errs := pool.ProcessItems(ctx, ids)
type WorkerPool[T any, R any] struct {
	numWorkers int
	worker     Worker[T, R]
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool[T any, R any](numWorkers int, worker Worker[T, R]) *WorkerPool[T, R] {
	if numWorkers <= 0 {
		numWorkers = GetWorkerLimit()
	}
	return &WorkerPool[T, R]{
		numWorkers: numWorkers,
		worker:     worker,
	}
}

type indexed[T any] struct {
	item  T
	index int
}

// ProcessItems runs the worker over items and blocks until all are done.
func (wp *WorkerPool[T, R]) ProcessItems(ctx context.Context, items []T) ([]R, []error) {
	if len(items) == 0 {
		return nil, nil
	}

	itemsChan := make(chan indexed[T], len(items))
	for i, item := range items {
		itemsChan <- indexed[T]{item: item, index: i}
	}
	close(itemsChan)

	results := make([]R, len(items))
	errs := make([]error, len(items))
	done := make([]bool, len(items))

	workers := wp.numWorkers
	if workers > len(items) {
		workers = len(items)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for it := range itemsChan {
				if ctx.Err() != nil {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							errs[it.index] = newPanicError(r)
						}
					}()
					results[it.index], errs[it.index] = wp.worker(ctx, it.item)
				}()
				done[it.index] = true
			}
		}()
	}
	wg.Wait()

	for i := range items {
		if !done[i] {
			errs[i] = ctx.Err()
		}
	}
	return results, errs
}
