// Package dispatch forwards resolved identities to downstream review.
// Delivery is best effort: the sync pipeline has already stored and
// scored the message by the time dispatch happens, so a full queue or a
// write failure is logged and swallowed, never propagated.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrQueueFull is returned when the dispatch buffer has no room.
var ErrQueueFull = errors.New("dispatch queue full")

// ErrClosed is returned when enqueueing after Close.
var ErrClosed = errors.New("dispatcher closed")

// reviewWriter is the slice of the store the dispatcher drains into.
type reviewWriter interface {
	EnqueueReview(ctx context.Context, employeeID, reason string) error
}

type entry struct {
	employeeID string
	reason     string
}

// Dispatcher buffers review entries in a bounded channel and drains them
// to the store on a background goroutine, keeping persistence latency out
// of the sync hot path.
type Dispatcher struct {
	store  reviewWriter
	queue  chan entry
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a Dispatcher with the given buffer size and starts its
// drain goroutine.
func New(store reviewWriter, bufferSize int, logger *slog.Logger) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		store:  store,
		queue:  make(chan entry, bufferSize),
		logger: logger,
	}
	d.wg.Add(1)
	go d.drain()
	return d
}

func (d *Dispatcher) drain() {
	defer d.wg.Done()
	for e := range d.queue {
		// Draining continues after Close until the buffer empties;
		// each write gets its own context.
		if err := d.store.EnqueueReview(context.Background(), e.employeeID, e.reason); err != nil {
			d.logger.Warn("review enqueue failed, dropping entry",
				"employee", e.employeeID, "reason", e.reason, "err", err)
		}
	}
}

// Enqueue buffers an entry for downstream review. It never blocks: when
// the buffer is full the entry is dropped and ErrQueueFull returned so
// the caller can log it.
func (d *Dispatcher) Enqueue(ctx context.Context, employeeID, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	select {
	case d.queue <- entry{employeeID: employeeID, reason: reason}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting entries and waits for buffered entries to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}
