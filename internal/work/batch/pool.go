// Package batch runs the return engine over a fund universe with a bounded
// worker pool, isolating every fund from the failures of the others.
package batch

import (
	"context"
	"sync"

	"github.com/aristath/navreturns/internal/domain"
)

// DefaultWorkers is the pool size used when none is configured
const DefaultWorkers = 10

// WorkerPool manages a pool of worker goroutines for parallel fund processing
type WorkerPool struct {
	numWorkers int
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = DefaultWorkers
	}
	return &WorkerPool{
		numWorkers: numWorkers,
	}
}

// Size returns the configured number of workers
func (wp *WorkerPool) Size() int {
	return wp.numWorkers
}

// ProcessFunc computes the result of one fund
type ProcessFunc func(ctx context.Context, fund domain.Fund) domain.FundReturns

// Process runs fn over every fund in parallel.
// Results are returned in the same order as the input funds.
func (wp *WorkerPool) Process(ctx context.Context, funds []domain.Fund, fn ProcessFunc) []domain.FundReturns {
	numFunds := len(funds)
	if numFunds == 0 {
		return []domain.FundReturns{}
	}

	jobs := make(chan jobItem, numFunds)
	results := make(chan resultItem, numFunds)

	var wg sync.WaitGroup
	numActualWorkers := wp.numWorkers
	if numFunds < numActualWorkers {
		numActualWorkers = numFunds // Don't spawn more workers than funds
	}

	for i := 0; i < numActualWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(ctx, jobs, results, fn)
		}()
	}

	for idx, fund := range funds {
		jobs <- jobItem{index: idx, fund: fund}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	resultSlice := make([]domain.FundReturns, numFunds)
	for result := range results {
		resultSlice[result.index] = result.fundResult
	}

	return resultSlice
}

type jobItem struct {
	index int
	fund  domain.Fund
}

type resultItem struct {
	index      int
	fundResult domain.FundReturns
}

func worker(ctx context.Context, jobs <-chan jobItem, results chan<- resultItem, fn ProcessFunc) {
	for job := range jobs {
		results <- resultItem{
			index:      job.index,
			fundResult: fn(ctx, job.fund),
		}
	}
}
