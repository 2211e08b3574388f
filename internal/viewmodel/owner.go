package viewmodel

import (
	"context"
	"sync"
)

// inboxSize bounds queued events and worker results per view model.
const inboxSize = 64

// owner serializes all state mutations of a view model on one goroutine.
// Events and worker results are closures posted to the inbox and run in
// submission order.
type owner struct {
	ctx    context.Context
	cancel context.CancelFunc
	inbox  chan func()
	wg     sync.WaitGroup
	once   sync.Once
}

func newOwner(parent context.Context) *owner {
	ctx, cancel := context.WithCancel(parent)
	o := &owner{
		ctx:    ctx,
		cancel: cancel,
		inbox:  make(chan func(), inboxSize),
	}
	o.wg.Add(1)
	go o.loop()
	return o
}

func (o *owner) loop() {
	defer o.wg.Done()
	for {
		select {
		case fn := <-o.inbox:
			fn()
		case <-o.ctx.Done():
			return
		}
	}
}

// post queues fn for the owner goroutine. It reports false once the view
// model is closed.
func (o *owner) post(fn func()) bool {
	if o.closed() {
		return false
	}
	select {
	case o.inbox <- fn:
		return true
	case <-o.ctx.Done():
		return false
	}
}

// spawn runs fn on a worker goroutine tracked by Close. Only the owner
// goroutine spawns, so the wait group never drops to zero while spawning.
func (o *owner) spawn(fn func()) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		fn()
	}()
}

// close cancels all work and waits for the owner and every worker.
func (o *owner) close() {
	o.once.Do(o.cancel)
	o.wg.Wait()
}

func (o *owner) closed() bool {
	return o.ctx.Err() != nil
}
