// Package notify provides a debounced, multi-consumer change
// notification channel.
//
// A Channel models a value that starts unset and is published possibly
// many times. Consumers only ever observe the latest delivered value;
// bursts of publishes inside the debounce window collapse to a single
// delivery carrying the final value. This bounds notification fan-out
// to at most one delivery per window regardless of publish rate.
package notify

import (
	"context"
	"sync"
	"time"
)

// DefaultWindow is the debounce window used when none is given.
const DefaultWindow = 5 * time.Millisecond

// Channel is a single-producer, multi-consumer notification channel
// with collapse-to-last debouncing.
type Channel[T any] struct {
	mu     sync.Mutex
	window time.Duration

	pending *T
	timer   *time.Timer

	latest  *T
	seq     uint64
	changed chan struct{}
	closed  bool
}

// NewChannel creates a channel with the given debounce window. A
// non-positive window falls back to DefaultWindow.
func NewChannel[T any](window time.Duration) *Channel[T] {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Channel[T]{
		window:  window,
		changed: make(chan struct{}),
	}
}

// Publish enqueues value for delivery. It never blocks: the value
// replaces any still-pending one, and a single coalescing timer flushes
// the most recent value once the window elapses. Publishing on a closed
// channel is a no-op.
func (c *Channel[T]) Publish(value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.pending = &value
	if c.timer == nil {
		c.timer = time.AfterFunc(c.window, c.deliver)
	}
}

func (c *Channel[T]) deliver() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timer = nil
	if c.closed || c.pending == nil {
		return
	}
	c.latest = c.pending
	c.pending = nil
	c.seq++
	close(c.changed)
	c.changed = make(chan struct{})
}

// Subscribe returns a cursor positioned at the current delivery point:
// Current observes the latest delivered value (if any), Next waits for
// the following one.
func (c *Channel[T]) Subscribe() *Cursor[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &Cursor[T]{ch: c, seen: c.seq}
}

// Close ends the channel. All blocked cursors wake up and report no
// value; later publishes are dropped.
func (c *Channel[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.pending = nil
	close(c.changed)
}

// Cursor is an independent observer of a Channel. Cursors never see a
// backlog: a slow consumer skips straight to the latest value.
type Cursor[T any] struct {
	ch   *Channel[T]
	seen uint64
}

// Current returns the latest delivered value without blocking, or false
// if nothing has been delivered yet.
func (cur *Cursor[T]) Current() (T, bool) {
	c := cur.ch
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	if c.latest == nil {
		return zero, false
	}
	return *c.latest, true
}

// Next blocks until a value newer than the cursor's position is
// delivered, then returns it. It returns false when ctx is done or the
// channel is closed.
func (cur *Cursor[T]) Next(ctx context.Context) (T, bool) {
	var zero T
	c := cur.ch
	for {
		c.mu.Lock()
		if c.seq > cur.seen {
			cur.seen = c.seq
			v := *c.latest
			c.mu.Unlock()
			return v, true
		}
		if c.closed {
			c.mu.Unlock()
			return zero, false
		}
		wait := c.changed
		c.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return zero, false
		}
	}
}
