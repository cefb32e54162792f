// Package dispatch runs the fuzzer's parallel top-level worker loop (spec.md
// §5): P workers, each an independent instance of the generate-compile-run
// pipeline on its own seed, with no shared mutable state across workers
// except an append-only event log. golang.org/x/sync/errgroup (already a
// dependency of the teacher's own go.mod) is the natural fit: one goroutine
// per worker, the shared context cancelled on the first infrastructure
// failure, a found divergence reported through the log rather than by
// returning an error.
package dispatch

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/diffuzz/diffuzz/internal/rng"
)

// WorkerFunc runs one pipeline iteration for the given per-call seed.
// Returning a non-nil error is treated as an infrastructure failure (spec.md
// §5, §7 "fatal infrastructure failures ... are surfaced to the dispatcher")
// and cancels every other worker; a found divergence is the caller's to
// record (typically via internal/eventlog) and must not be returned here.
type WorkerFunc func(ctx context.Context, seed uint64) error

// Plan bounds how much total work the dispatcher's workers do: exactly one
// of NumPrograms/SecondsToRun is expected to be set (spec.md §6 lists them
// as mutually exclusive CLI flags; internal/config.Parse enforces that).
type Plan struct {
	NumPrograms  int
	SecondsToRun int
	Parallelism  int // <= 0 means runtime.GOMAXPROCS(0)
}

// Run spawns Plan.Parallelism workers, each seeded independently (via
// successive draws from a PRNG stream seeded by masterSeed, spec.md §4.A),
// and calls fn once per program until the plan's bound is reached or ctx is
// cancelled. It returns the first infrastructure-failure error from any
// worker, if any, after every worker has stopped.
func Run(ctx context.Context, masterSeed uint64, plan Plan, fn WorkerFunc) error {
	parallelism := plan.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	master := rng.New(masterSeed)
	seeds := make([]uint64, parallelism)
	for i := range seeds {
		seeds[i] = master.NextUint64()
	}

	var deadline <-chan struct{}
	if plan.SecondsToRun > 0 {
		done := make(chan struct{})
		timer := time.AfterFunc(time.Duration(plan.SecondsToRun)*time.Second, func() { close(done) })
		defer timer.Stop()
		deadline = done
	}

	var produced int64
	for _, seed := range seeds {
		workerSeed := seed
		g.Go(func() error {
			r := rng.New(workerSeed)
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-deadline:
					return nil
				default:
				}
				if plan.NumPrograms > 0 && atomic.AddInt64(&produced, 1) > int64(plan.NumPrograms) {
					return nil
				}
				if err := fn(gctx, r.NextUint64()); err != nil {
					return err
				}
			}
		})
	}
	return g.Wait()
}
