// Package viewmodel holds the chat and settings orchestrators. Each view model
// owns its state on a single goroutine, runs use cases on worker goroutines and
// publishes state continuously and effects exactly once.
package viewmodel

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"relaychat/internal/domain"
)

// DefaultEffectBuffer is the effect queue capacity when none is configured.
const DefaultEffectBuffer = 16

// ErrConsumerAttached is returned by Collect when another consumer is active.
var ErrConsumerAttached = errors.New("effect consumer already attached")

// EffectQueue is a bounded, single-consumer queue of one-time effects.
// Effects emitted while no consumer is attached wait for the next one.
// Delivered effects are never replayed.
type EffectQueue struct {
	mu       sync.Mutex
	buf      []domain.Effect
	capacity int
	attached bool
	closed   bool
	notify   chan struct{}
	done     chan struct{}
	dropped  uint64
	logger   *slog.Logger
}

// NewEffectQueue creates a queue holding at most capacity undelivered effects.
func NewEffectQueue(capacity int, logger *slog.Logger) *EffectQueue {
	if capacity <= 0 {
		capacity = DefaultEffectBuffer
	}
	return &EffectQueue{
		buf:      make([]domain.Effect, 0, capacity),
		capacity: capacity,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// Emit enqueues e without blocking. When the buffer is full the oldest
// undelivered effect is dropped.
func (q *EffectQueue) Emit(e domain.Effect) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if len(q.buf) == q.capacity {
		old := q.buf[0]
		q.buf = append(q.buf[:0], q.buf[1:]...)
		q.dropped++
		q.logger.Warn("effect queue full, dropping oldest effect",
			"dropped", effectName(old),
			"capacity", q.capacity,
		)
	}
	q.buf = append(q.buf, e)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Collect attaches fn as the single consumer and delivers effects in emission
// order until ctx is done or the queue is closed. It returns
// ErrConsumerAttached if a consumer is already attached, ctx.Err() when ctx
// ends and nil when the queue is closed.
func (q *EffectQueue) Collect(ctx context.Context, fn func(domain.Effect)) error {
	q.mu.Lock()
	if q.attached {
		q.mu.Unlock()
		return ErrConsumerAttached
	}
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.attached = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.attached = false
		q.mu.Unlock()
	}()

	for {
		for {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e, ok := q.pop()
			if !ok {
				break
			}
			fn(e)
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			return ctx.Err()
		case <-q.done:
			return nil
		}
	}
}

func (q *EffectQueue) pop() (domain.Effect, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buf) == 0 {
		return nil, false
	}
	e := q.buf[0]
	q.buf[0] = nil
	q.buf = q.buf[1:]
	return e, true
}

// Len returns the number of undelivered effects.
func (q *EffectQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// Attached reports whether a consumer is currently collecting.
func (q *EffectQueue) Attached() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.attached
}

// Dropped returns how many effects were discarded because the queue was full.
func (q *EffectQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close releases the consumer and discards later emissions. Idempotent.
func (q *EffectQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

func effectName(e domain.Effect) string {
	switch e.(type) {
	case domain.ShowToast:
		return "toast"
	case domain.ShowSnackbar:
		return "snackbar"
	case domain.Navigate:
		return "navigate"
	default:
		return "unknown"
	}
}
