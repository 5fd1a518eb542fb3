// Package queue buffers rows on their way to the database.
package queue

import "sync"

// Batch is a thread-safe buffer that reports when it has reached its flush size.
type Batch[T any] struct {
	mu    sync.Mutex
	items []T
	limit int
}

// NewBatch creates a batch that is due for a flush once it holds limit items.
// A non-positive limit never reports due.
func NewBatch[T any](limit int) *Batch[T] {
	return &Batch[T]{limit: limit}
}

// Add appends items and reports whether the batch is now due for a flush.
func (b *Batch[T]) Add(items ...T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, items...)
	return b.limit > 0 && len(b.items) >= b.limit
}

// Drain removes and returns everything buffered, in insertion order.
func (b *Batch[T]) Drain() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.items
	b.items = nil
	return out
}

// Requeue puts items that failed to write back in front of anything added since.
func (b *Batch[T]) Requeue(items []T) {
	if len(items) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(items[:len(items):len(items)], b.items...)
}

// Len returns the number of buffered items.
func (b *Batch[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
