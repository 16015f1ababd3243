package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/TogetherCrew/hivemind-backend/core"
)

// Job pairs a pipeline with the documents it should ingest.
type Job struct {
	Pipeline  *Pipeline
	Documents []*core.Document
}

// Group runs ingestion jobs for multiple collections concurrently over a
// shared worker pool. Collections write to disjoint key ranges, so
// pipelines for distinct collections never contend on the same records.
type Group struct {
	pool   *ants.Pool
	logger *slog.Logger
}

// NewGroup creates a group with the given pool size. A size below 1
// defaults to runtime.NumCPU() / 2, with a minimum of 1.
func NewGroup(size int, logger *slog.Logger) (*Group, error) {
	if size < 1 {
		size = runtime.NumCPU() / 2
		if size < 1 {
			size = 1
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}

	return &Group{pool: pool, logger: logger}, nil
}

// Run executes every job and waits for all of them to finish. Each job's
// result lands at the matching index of the returned slice; a nil entry
// means that job failed. Failures are joined into the returned error and
// do not stop sibling jobs.
func (g *Group) Run(ctx context.Context, jobs []Job) ([]*RunResult, error) {
	results := make([]*RunResult, len(jobs))
	errs := make([]error, len(jobs))

	var wg sync.WaitGroup
	for i, job := range jobs {
		i, job := i, job
		wg.Add(1)
		submitErr := g.pool.Submit(func() {
			defer wg.Done()
			res, err := job.Pipeline.Run(ctx, job.Documents)
			if err != nil {
				g.logger.Error("ingestion job failed",
					"collection", job.Pipeline.collection.Name(), "err", err)
				errs[i] = err
				return
			}
			results[i] = res
		})
		if submitErr != nil {
			wg.Done()
			errs[i] = submitErr
		}
	}
	wg.Wait()

	return results, errors.Join(errs...)
}

// Release releases the worker pool.
// The group should not be used after calling Release.
func (g *Group) Release() {
	g.pool.Release()
}
