// Package watch provides a goroutine-safe observable value with conflated,
// non-blocking delivery to subscribers.
package watch

import (
	"context"
	"sync"
)

type subscriber[T any] struct {
	id uint64
	ch chan T
}

// Value holds the latest T and notifies subscribers of changes. Set never
// blocks: a slow subscriber only ever sees the most recent value.
type Value[T any] struct {
	mu     sync.RWMutex
	cur    T
	subs   []subscriber[T]
	nextID uint64
}

// New creates a Value holding initial.
func New[T any](initial T) *Value[T] {
	return &Value[T]{cur: initial}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cur
}

// Set replaces the current value and notifies all subscribers.
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cur = val
	for _, s := range v.subs {
		offer(s.ch, val)
	}
}

// Update applies fn to the current value under the write lock.
func (v *Value[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cur = fn(v.cur)
	for _, s := range v.subs {
		offer(s.ch, v.cur)
	}
	return v.cur
}

// Subscribe returns a channel that receives the current value immediately and
// every later value until ctx is done, at which point the channel is closed.
func (v *Value[T]) Subscribe(ctx context.Context) <-chan T {
	v.mu.Lock()
	v.nextID++
	id := v.nextID
	ch := make(chan T, 1)
	ch <- v.cur
	v.subs = append(v.subs, subscriber[T]{id: id, ch: ch})
	v.mu.Unlock()

	go func() {
		<-ctx.Done()
		v.mu.Lock()
		defer v.mu.Unlock()
		for i, s := range v.subs {
			if s.id == id {
				v.subs = append(v.subs[:i], v.subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch
}

// Subscribers returns the number of live subscriptions.
func (v *Value[T]) Subscribers() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.subs)
}

// offer replaces any undelivered value in ch with val.
func offer[T any](ch chan T, val T) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- val:
	default:
	}
}
