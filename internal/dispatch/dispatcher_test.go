package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeReviewStore records enqueued entries; optionally blocks or fails.
type fakeReviewStore struct {
	mu      sync.Mutex
	entries []string
	failAll bool
	block   chan struct{} // when non-nil, writes wait on this
}

func (f *fakeReviewStore) EnqueueReview(ctx context.Context, employeeID, reason string) error {
	if f.block != nil {
		<-f.block
	}
	if f.failAll {
		return errors.New("store down")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, employeeID+"/"+reason)
	return nil
}

func (f *fakeReviewStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

func TestEnqueue_DrainsToStore(t *testing.T) {
	store := &fakeReviewStore{}
	d := New(store, 10, nil)

	for i := 0; i < 5; i++ {
		if err := d.Enqueue(context.Background(), "emp-1", "flagged"); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	d.Close()

	if store.count() != 5 {
		t.Fatalf("expected 5 drained entries, got %d", store.count())
	}
}

func TestEnqueue_FullBufferReturnsErrNotBlocks(t *testing.T) {
	store := &fakeReviewStore{block: make(chan struct{})}
	d := New(store, 2, nil)

	// First write is picked up by the drainer and blocks there; the next
	// two fill the buffer.
	deadline := time.Now().Add(time.Second)
	filled := 0
	for time.Now().Before(deadline) && filled < 3 {
		if err := d.Enqueue(context.Background(), "emp-1", "r"); err == nil {
			filled++
		} else {
			break
		}
	}

	start := time.Now()
	err := d.Enqueue(context.Background(), "emp-overflow", "r")
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("Enqueue must not block on a full buffer")
	}

	close(store.block)
	d.Close()
}

func TestEnqueue_StoreFailureIsSwallowed(t *testing.T) {
	store := &fakeReviewStore{failAll: true}
	d := New(store, 10, nil)

	if err := d.Enqueue(context.Background(), "emp-1", "flagged"); err != nil {
		t.Fatalf("store failures must not surface at enqueue: %v", err)
	}
	d.Close() // must not hang or panic even when every write failed
}

func TestEnqueue_AfterClose(t *testing.T) {
	d := New(&fakeReviewStore{}, 10, nil)
	d.Close()
	if err := d.Enqueue(context.Background(), "emp-1", "r"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	d := New(&fakeReviewStore{}, 10, nil)
	d.Close()
	d.Close() // second close must be a no-op
}

func TestEnqueue_CancelledContext(t *testing.T) {
	d := New(&fakeReviewStore{}, 10, nil)
	defer d.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Enqueue(ctx, "emp-1", "r"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
