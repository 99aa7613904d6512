package crdt

import (
	"context"

	"github.com/tonk-labs/tonk-sub000/storage"
)

// PutEntry is one document blob to be written during a parallel import.
type PutEntry struct {
	Key  []string
	Data []byte
}

// PutResult reports the outcome of writing one PutEntry.
type PutResult struct {
	Key []string
	Err error
}

// putWorker mirrors the teacher's readerpool.go task/result pair,
// generalized from file reads to storage-adapter writes so bundle import
// can fan document blobs out to a bounded worker pool instead of writing
// them into the adapter one at a time.
func putWorker(ctx context.Context, adapter storage.Adapter, tasks <-chan PutEntry, results chan<- PutResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case task, open := <-tasks:
			if !open {
				return
			}
			err := adapter.Put(ctx, task.Key, task.Data)
			select {
			case results <- PutResult{Key: task.Key, Err: err}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// ParallelPut writes every entry to adapter using workers goroutines,
// returning one PutResult per entry in completion order (not submission
// order) so a caller can log per-key failures the way the sequential loop
// it replaces did. Used by vfs.FromBundle to write a bundle's storage/*
// document blobs into the destination adapter concurrently.
func ParallelPut(ctx context.Context, adapter storage.Adapter, entries []PutEntry, workers int) []PutResult {
	if workers < 1 {
		workers = 1
	}
	tasks := make(chan PutEntry, len(entries))
	results := make(chan PutResult, len(entries))

	for i := 0; i < workers; i++ {
		go putWorker(ctx, adapter, tasks, results)
	}
	for _, e := range entries {
		tasks <- e
	}
	close(tasks)

	out := make([]PutResult, 0, len(entries))
	for range entries {
		select {
		case r := <-results:
			out = append(out, r)
		case <-ctx.Done():
			return out
		}
	}
	return out
}
