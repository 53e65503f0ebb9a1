// Package taskqueue runs a batch of independent jobs with a bounded number of
// workers, reporting progress after each job and collecting failures instead of
// aborting the batch.
package taskqueue

import (
	"context"
	"sort"
	"sync"
)

// Progress is delivered after every finished item.
type Progress struct {
	Index int // position of the item in the input
	Done  int // items finished so far, including this one
	Total int
	Err   error
}

// Options configures Run.
type Options struct {
	// Concurrency is the number of workers. Values below 1 mean 1, which
	// processes items strictly in input order.
	Concurrency int
	// OnProgress is called once per item. Calls never overlap.
	OnProgress func(Progress)
}

// Failure is an item whose job returned an error.
type Failure[T any] struct {
	Index int
	Item  T
	Err   error
}

// Report summarizes a batch.
type Report[T any] struct {
	Total     int
	Succeeded int
	Failures  []Failure[T]
}

// Failed reports whether at least one item failed.
func (r Report[T]) Failed() bool {
	return len(r.Failures) > 0
}

type job[T any] struct {
	index int
	item  T
}

// Run applies fn to every item. Once ctx is done the remaining items are
// recorded as failures with ctx.Err() and fn is not called for them.
func Run[T any](ctx context.Context, items []T, opts Options, fn func(ctx context.Context, item T) error) Report[T] {
	workers := opts.Concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(items) && len(items) > 0 {
		workers = len(items)
	}

	report := Report[T]{Total: len(items)}
	var mu sync.Mutex
	done := 0

	record := func(j job[T], err error) {
		mu.Lock()
		defer mu.Unlock()
		done++
		if err != nil {
			report.Failures = append(report.Failures, Failure[T]{Index: j.index, Item: j.item, Err: err})
		} else {
			report.Succeeded++
		}
		if opts.OnProgress != nil {
			opts.OnProgress(Progress{Index: j.index, Done: done, Total: len(items), Err: err})
		}
	}

	process := func(j job[T]) {
		if err := ctx.Err(); err != nil {
			record(j, err)
			return
		}
		record(j, fn(ctx, j.item))
	}

	if workers == 1 {
		for i, it := range items {
			process(job[T]{index: i, item: it})
		}
		return report
	}

	jobs := make(chan job[T])
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				process(j)
			}
		}()
	}

	for i, it := range items {
		jobs <- job[T]{index: i, item: it}
	}
	close(jobs)
	wg.Wait()

	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].Index < report.Failures[j].Index
	})
	return report
}
