package reactive

import "sync"

// Subscriber receives values published to the Observable it subscribed to.
type Subscriber[T any] struct {
	c         chan T
	once      sync.Once
	container *Observable[T]
}

// Cancel removes the subscriber from the container and closes its channel.
// Not calling this method results in a memory leak. Calling it more than once is safe.
func (s *Subscriber[T]) Cancel() {
	s.once.Do(func() {
		s.container.delete(s)
		close(s.c)
	})
}

// Channel returns channel that can be used to read from observable.
func (s *Subscriber[T]) Channel() <-chan T {
	return s.c
}

// Observable creates a container for subscribers.
// This works in single producer multiple consumer pattern.
type Observable[T any] struct {
	mux         sync.RWMutex
	subscribers map[*Subscriber[T]]struct{}
	size        int
}

// New creates Observable container that holds channels for all subscribers.
// size is the buffer size of each channel, it is at least one.
func New[T any](size int) *Observable[T] {
	if size < 1 {
		size = 1
	}
	return &Observable[T]{
		mux:         sync.RWMutex{},
		subscribers: make(map[*Subscriber[T]]struct{}),
		size:        size,
	}
}

// Subscribe subscribes to the container.
func (o *Observable[T]) Subscribe() *Subscriber[T] {
	sub := &Subscriber[T]{
		c:         make(chan T, o.size),
		container: o,
	}
	o.mux.Lock()
	defer o.mux.Unlock()
	o.subscribers[sub] = struct{}{}
	return sub
}

// Publish publishes value to all subscribers and returns the number of subscribers that received it.
// A subscriber with a full buffer misses the value, a slow subscriber never blocks the publisher.
func (o *Observable[T]) Publish(v T) int {
	o.mux.RLock()
	defer o.mux.RUnlock()
	var delivered int
	for s := range o.subscribers {
		select {
		case s.c <- v:
			delivered++
		default:
		}
	}
	return delivered
}

// Len returns the number of active subscribers.
func (o *Observable[T]) Len() int {
	o.mux.RLock()
	defer o.mux.RUnlock()
	return len(o.subscribers)
}

func (o *Observable[T]) delete(s *Subscriber[T]) {
	o.mux.Lock()
	defer o.mux.Unlock()
	delete(o.subscribers, s)
}
