package reclaim

import "sync"

// Reclaimer defers disposal of items across a fixed number of
// generations. Add places an item in the current generation; each call to
// Heartbeat ages every generation by one step and finalizes whatever
// generation has just aged out, guaranteeing an item survives at least
// one and at most delay heartbeats past the call to Add that retired it.
type Reclaimer[T any] struct {
	mu       sync.Mutex
	buckets  [][]T
	current  int
	finalize func(T)
}

// New constructs a Reclaimer with delay generations. delay is clamped to
// at least 1: a Reclaimer with no delay finalizes an item on the very
// next heartbeat after it is added.
func New[T any](delay int, finalize func(T)) *Reclaimer[T] {
	if delay < 1 {
		delay = 1
	}
	return &Reclaimer[T]{
		buckets:  make([][]T, delay),
		finalize: finalize,
	}
}

// Add enqueues item in the current generation.
func (r *Reclaimer[T]) Add(item T) {
	r.mu.Lock()
	r.buckets[r.current] = append(r.buckets[r.current], item)
	r.mu.Unlock()
}

// Heartbeat advances every generation by one step and finalizes the
// generation that has just aged out of the window.
func (r *Reclaimer[T]) Heartbeat() {
	r.mu.Lock()
	next := (r.current + 1) % len(r.buckets)
	stale := r.buckets[next]
	r.buckets[next] = nil
	r.current = next
	r.mu.Unlock()

	for _, item := range stale {
		r.finalize(item)
	}
}

// Pending returns the number of items currently awaiting finalization,
// across all generations. Intended for metrics/diagnostics.
func (r *Reclaimer[T]) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.buckets {
		n += len(b)
	}
	return n
}
