package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

// TestRunStopsAtNumPrograms covers spec.md §5: with NumPrograms set, the
// total number of fn invocations across all workers must equal the bound,
// regardless of how many workers run in parallel.
func TestRunStopsAtNumPrograms(t *testing.T) {
	var calls int64
	plan := Plan{NumPrograms: 25, Parallelism: 4}
	err := Run(context.Background(), 1, plan, func(ctx context.Context, seed uint64) error {
		atomic.AddInt64(&calls, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := atomic.LoadInt64(&calls); got != 25 {
		t.Fatalf("got %d calls, want 25", got)
	}
}

// TestRunPropagatesWorkerError covers spec.md §5/§7: a worker's non-nil
// return is an infrastructure failure that cancels its siblings and comes
// back out of Run.
func TestRunPropagatesWorkerError(t *testing.T) {
	sentinel := errors.New("infra failure")
	plan := Plan{NumPrograms: 1_000_000, Parallelism: 4}
	err := Run(context.Background(), 2, plan, func(ctx context.Context, seed uint64) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("got err %v, want %v", err, sentinel)
	}
}

// TestRunDistinctSeedsPerWorker covers spec.md §4.A: each worker draws from
// an independently-seeded stream, so two workers should not be handed the
// same per-call seed on their first iteration.
func TestRunDistinctSeedsPerWorker(t *testing.T) {
	var seedsMu countingSeedSet
	plan := Plan{NumPrograms: 8, Parallelism: 4}
	err := Run(context.Background(), 3, plan, func(ctx context.Context, seed uint64) error {
		seedsMu.add(seed)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if seedsMu.len() < 2 {
		t.Fatalf("got %d distinct seeds across 8 calls on 4 workers, want more variety", seedsMu.len())
	}
}

type countingSeedSet struct {
	mu   sync.Mutex
	seen map[uint64]bool
}

func (s *countingSeedSet) add(v uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		s.seen = map[uint64]bool{}
	}
	s.seen[v] = true
}

func (s *countingSeedSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
