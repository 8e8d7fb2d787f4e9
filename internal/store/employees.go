package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ronyzarom/SecureWatch-sub001/internal/domain"
)

// UpsertEmployee inserts or refreshes an employee record keyed by email.
// Returns the employee id actually stored: an existing row keeps its id so
// message links stay stable across runs.
func (s *Store) UpsertEmployee(ctx context.Context, e domain.Employee) (string, error) {
	existing, err := s.FindEmployeeByEmail(ctx, e.Email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		_, err := s.db.ExecContext(ctx,
			`UPDATE employees SET display_name = ?, active = ?, updated_at = ? WHERE id = ?`,
			e.DisplayName, e.Active, time.Now(), existing.ID,
		)
		if err != nil {
			return "", fmt.Errorf("update employee: %w", err)
		}
		return existing.ID, nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO employees (id, email, display_name, active) VALUES (?, ?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET display_name = excluded.display_name, active = excluded.active`,
		e.ID, e.Email, e.DisplayName, e.Active,
	)
	if err != nil {
		return "", fmt.Errorf("insert employee: %w", err)
	}
	return e.ID, nil
}

// FindEmployeeByEmail looks an employee up by email. Returns nil when no
// match exists.
func (s *Store) FindEmployeeByEmail(ctx context.Context, email string) (*domain.Employee, error) {
	var e domain.Employee
	var displayName sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, active FROM employees WHERE email = ?`, email,
	).Scan(&e.ID, &e.Email, &displayName, &e.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.DisplayName = displayName.String
	return &e, nil
}

// CountEmployees returns how many employee records exist.
func (s *Store) CountEmployees(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM employees`).Scan(&n)
	return n, err
}
