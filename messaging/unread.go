package messaging

import (
	"context"
	"log/slog"
	"sync"
)

// UnreadReconciler is the single source of truth for unread counts per
// counterparty. Every surface that shows a badge or a total reads from this
// mapping; none keeps a running total of its own, so they cannot disagree.
type UnreadReconciler struct {
	fetch  func(ctx context.Context) (map[int]int, error)
	logger *slog.Logger

	mu     sync.Mutex
	counts map[int]int
}

// NewUnreadReconciler creates an empty reconciler. fetch is the bulk
// unread-counts call on the fallback path; it may be nil, in which case Seed
// and ForceRefresh are no-ops.
func NewUnreadReconciler(fetch func(ctx context.Context) (map[int]int, error), logger *slog.Logger) *UnreadReconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UnreadReconciler{
		fetch:  fetch,
		logger: logger,
		counts: make(map[int]int),
	}
}

// Seed performs the initial bulk fetch. A failed fetch leaves the state
// empty rather than blocking the session.
func (r *UnreadReconciler) Seed(ctx context.Context) {
	if err := r.ForceRefresh(ctx); err != nil {
		r.logger.Warn("unread counter seed failed, starting empty", "error", err)
	}
}

// ForceRefresh re-runs the bulk fetch and replaces the whole mapping. Last
// write wins over any live increments applied while the fetch was in flight.
func (r *UnreadReconciler) ForceRefresh(ctx context.Context) error {
	if r.fetch == nil {
		return nil
	}
	counts, err := r.fetch(ctx)
	if err != nil {
		return WrapError(ErrorFallbackFailed, "bulk unread fetch", err)
	}
	fresh := make(map[int]int, len(counts))
	for id, n := range counts {
		if n > 0 {
			fresh[id] = n
		}
	}
	r.mu.Lock()
	r.counts = fresh
	r.mu.Unlock()
	return nil
}

// Increment adds one unread message for the counterparty.
func (r *UnreadReconciler) Increment(counterpartyID int) {
	r.mu.Lock()
	r.counts[counterpartyID]++
	r.mu.Unlock()
}

// MarkRead sets the counterparty's count to exactly zero. Idempotent, and
// commutative with itself: the local optimistic call and the live
// messages_read event converge on the same value.
func (r *UnreadReconciler) MarkRead(counterpartyID int) {
	r.mu.Lock()
	delete(r.counts, counterpartyID)
	r.mu.Unlock()
}

// Count returns the unread count for one counterparty.
func (r *UnreadReconciler) Count(counterpartyID int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[counterpartyID]
}

// Counts returns a copy of the whole mapping.
func (r *UnreadReconciler) Counts() map[int]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int]int, len(r.counts))
	for id, n := range r.counts {
		out[id] = n
	}
	return out
}

// Total recomputes the aggregate from the shared mapping, so it always
// equals the sum of the per-counterparty values.
func (r *UnreadReconciler) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, n := range r.counts {
		total += n
	}
	return total
}

// Clear empties the mapping on session teardown.
func (r *UnreadReconciler) Clear() {
	r.mu.Lock()
	r.counts = make(map[int]int)
	r.mu.Unlock()
}
