package store

import (
	"context"
	"fmt"
	"time"
)

// ReviewEntry is one pending downstream-review item.
type ReviewEntry struct {
	ID         int64
	EmployeeID string
	Reason     string
	Status     string
	CreatedAt  time.Time
}

// EnqueueReview appends an entry to the downstream review queue.
func (s *Store) EnqueueReview(ctx context.Context, employeeID, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO review_queue (employee_id, reason) VALUES (?, ?)`,
		employeeID, reason,
	)
	if err != nil {
		return fmt.Errorf("enqueue review: %w", err)
	}
	return nil
}

// PendingReviews lists queue entries still awaiting review, oldest first.
func (s *Store) PendingReviews(ctx context.Context, limit int) ([]ReviewEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, employee_id, reason, status, created_at
		 FROM review_queue WHERE status = 'pending'
		 ORDER BY created_at ASC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ReviewEntry
	for rows.Next() {
		var e ReviewEntry
		if err := rows.Scan(&e.ID, &e.EmployeeID, &e.Reason, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
