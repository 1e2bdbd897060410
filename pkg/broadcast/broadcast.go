// Package broadcast provides a fan-out channel for coordination messages
// between concurrently running detectors.
//
// Every subscriber has its own unbounded queue, so a publisher never waits
// on a slow reader. Messages are delivered only to subscribers registered at
// publish time; there is no replay.
package broadcast

import (
	"context"
	"errors"
	"iter"
	"sync"
)

// ErrCompleted is returned by [Channel.Publish] after [Channel.Complete].
var ErrCompleted = errors.New("broadcast channel completed")

// Channel fans each published message out to all current subscribers.
// The zero value is not usable; call [New].
type Channel[T any] struct {
	mu   sync.Mutex
	subs map[*subscription[T]]struct{}
	done bool
}

// New returns an open channel.
func New[T any]() *Channel[T] {
	return &Channel[T]{subs: make(map[*subscription[T]]struct{})}
}

type subscription[T any] struct {
	mu     sync.Mutex
	queue  []T
	closed bool
	wake   chan struct{}
}

func (s *subscription[T]) push(msg T) {
	s.mu.Lock()
	if !s.closed {
		s.queue = append(s.queue, msg)
	}
	s.mu.Unlock()
	s.signal()
}

func (s *subscription[T]) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.signal()
}

func (s *subscription[T]) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// next returns the next queued message. ok is false once the queue is
// drained and the subscription closed.
func (s *subscription[T]) next(ctx context.Context) (msg T, ok bool) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			msg = s.queue[0]
			var zero T
			s.queue[0] = zero
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return msg, true
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return msg, false
		}
		select {
		case <-s.wake:
		case <-ctx.Done():
			return msg, false
		}
	}
}

// Subscribe registers a subscriber immediately and returns the sequence of
// messages published from now on. The sequence ends after [Channel.Complete]
// once the queue is drained. Stopping the iteration early unsubscribes. The
// sequence may be iterated once.
//
// Registration happens in Subscribe, not when iteration starts, so no
// message published in between is lost. Until the sequence is iterated its
// queue keeps growing; a caller that never iterates must see the channel
// completed to release it.
func (c *Channel[T]) Subscribe() iter.Seq[T] {
	return c.SubscribeContext(context.Background())
}

// SubscribeContext is [Channel.Subscribe] with a sequence that also ends
// when ctx is done. The subscriber is registered eagerly as with Subscribe;
// ctx only ends an iteration in progress.
func (c *Channel[T]) SubscribeContext(ctx context.Context) iter.Seq[T] {
	s := &subscription[T]{wake: make(chan struct{}, 1)}

	c.mu.Lock()
	if c.done {
		s.closed = true
	} else {
		c.subs[s] = struct{}{}
	}
	c.mu.Unlock()

	return func(yield func(T) bool) {
		defer c.unsubscribe(s)
		for {
			msg, ok := s.next(ctx)
			if !ok || !yield(msg) {
				return
			}
		}
	}
}

func (c *Channel[T]) unsubscribe(s *subscription[T]) {
	c.mu.Lock()
	delete(c.subs, s)
	c.mu.Unlock()
	s.close()
}

// Publish enqueues msg for every current subscriber.
func (c *Channel[T]) Publish(ctx context.Context, msg T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return ErrCompleted
	}
	for s := range c.subs {
		s.push(msg)
	}
	return nil
}

// Complete closes the channel. Subscribers finish after draining what was
// already queued. Calling Complete more than once has no effect.
func (c *Channel[T]) Complete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return
	}
	c.done = true
	for s := range c.subs {
		s.close()
	}
}

// Completed reports whether Complete was called.
func (c *Channel[T]) Completed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Subscribers returns the number of registered subscribers.
func (c *Channel[T]) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Collect subscribes and gathers every message into a slice in a background
// goroutine. The returned function blocks until the channel completes and
// yields the messages in publish order.
func Collect[T any](c *Channel[T]) func() []T {
	seq := c.Subscribe()
	done := make(chan []T, 1)
	go func() {
		var out []T
		for msg := range seq {
			out = append(out, msg)
		}
		done <- out
	}()
	return sync.OnceValue(func() []T { return <-done })
}
