package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"go_superres/logging"
)

// SignalCounter counts interrupts and calls onForce once the count reaches
// forceAfter: the first signal is graceful, a repeat forces.
type SignalCounter struct {
	mu         sync.Mutex
	count      int
	forceAfter int
	onForce    func()
}

// NewSignalCounter returns a counter. onForce may be nil.
func NewSignalCounter(forceAfter int, onForce func()) *SignalCounter {
	return &SignalCounter{forceAfter: forceAfter, onForce: onForce}
}

// Increment records one signal and returns the new count. onForce runs
// under the lock, so it should be quick or exit the process.
func (s *SignalCounter) Increment() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	if s.count >= s.forceAfter && s.onForce != nil {
		s.onForce()
	}
	return s.count
}

// Count returns the number of signals seen.
func (s *SignalCounter) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// NotifyContext returns a context cancelled by the first SIGINT or SIGTERM.
// The batch then stops starting new images; a second signal calls onForce.
// stop unregisters the handler and releases the context.
func NotifyContext(parent context.Context, logger *logging.Logger, onForce func()) (ctx context.Context, stop context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	counter := NewSignalCounter(2, onForce)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigCh:
				if counter.Increment() == 1 {
					logger.Warn("Interrupt received; finishing the current image (repeat to force exit)",
						zap.String("signal", sig.String()))
					cancel()
				}
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	stop = func() {
		once.Do(func() {
			signal.Stop(sigCh)
			close(done)
			cancel()
		})
	}
	return ctx, stop
}
