package syncer

import (
	"fmt"
	"sync"
	"time"
)

// SyncError records one non-fatal failure attributed to the unit it
// occurred in (a principal, or a specific item within one).
type SyncError struct {
	Unit    string
	Message string
}

func (e SyncError) String() string {
	return fmt.Sprintf("%s: %s", e.Unit, e.Message)
}

// RunSummary accumulates the outcome of one sync run. It is shared by
// the concurrent per-principal workers, so every mutation takes the lock.
type RunSummary struct {
	mu sync.Mutex

	Provider   string
	StartedAt  time.Time
	FinishedAt time.Time

	Principals      int // enumerated
	Synced          int // principals fully processed
	ItemsFetched    int
	ItemsPersisted  int
	ItemsCreated    int
	ItemsSkipped    int // malformed payloads
	Flagged         int
	Dispatched      int
	EmployeesSynced int

	maxErrors int
	errs      []SyncError
	truncated int // errors dropped once the cap was hit
}

func newRunSummary(provider string, maxErrors int) *RunSummary {
	if maxErrors <= 0 {
		maxErrors = 50
	}
	return &RunSummary{
		Provider:  provider,
		StartedAt: time.Now(),
		maxErrors: maxErrors,
	}
}

func (s *RunSummary) addError(unit string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errs) >= s.maxErrors {
		s.truncated++
		return
	}
	s.errs = append(s.errs, SyncError{Unit: unit, Message: err.Error()})
}

func (s *RunSummary) addCounts(fetched, persisted, created, skipped, flagged, dispatched int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ItemsFetched += fetched
	s.ItemsPersisted += persisted
	s.ItemsCreated += created
	s.ItemsSkipped += skipped
	s.Flagged += flagged
	s.Dispatched += dispatched
}

func (s *RunSummary) markSynced() {
	s.mu.Lock()
	s.Synced++
	s.mu.Unlock()
}

// Errors returns the recorded failures and how many more were dropped
// once the bound was reached.
func (s *RunSummary) Errors() ([]SyncError, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SyncError, len(s.errs))
	copy(out, s.errs)
	return out, s.truncated
}

// Duration returns the run's wall-clock time.
func (s *RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
