// Package shutdown turns interrupt signals into cooperative
// cancellation: the first signal cancels the returned context so
// in-flight requests and poll sessions unwind cleanly, the second
// forces an immediate exit.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// SignalCounter tracks repeated shutdown signals and triggers a forced
// shutdown once the threshold is reached.
type SignalCounter struct {
	mu         sync.Mutex
	count      int
	forceAfter int
	onForce    func()
}

// NewSignalCounter creates a counter that invokes onForce when the
// count reaches forceAfter. A forceAfter of 2 gives the usual "first
// signal graceful, second forced" behavior.
func NewSignalCounter(forceAfter int, onForce func()) *SignalCounter {
	return &SignalCounter{
		forceAfter: forceAfter,
		onForce:    onForce,
	}
}

// Increment increases the count and returns the new value. The onForce
// callback runs while the lock is held, so it should be fast or exit
// the process.
func (s *SignalCounter) Increment() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	if s.count >= s.forceAfter && s.onForce != nil {
		s.onForce()
	}
	return s.count
}

// Count returns the current signal count.
func (s *SignalCounter) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// WithSignals returns a context cancelled by the first SIGINT or
// SIGTERM. A second signal invokes onForce (normally os.Exit). The
// returned stop function releases the signal watcher.
func WithSignals(parent context.Context, onForce func()) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	counter := NewSignalCounter(2, onForce)
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for range sigChan {
			if counter.Increment() == 1 {
				cancel()
			}
		}
	}()

	stop := func() {
		signal.Stop(sigChan)
		cancel()
	}
	return ctx, stop
}
