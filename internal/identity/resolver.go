// Package identity links monitored principals to internal employee
// records: a read-only resolver used by the message pipeline, and a
// reconciliation phase that runs before message sync so lookups hit
// fresh identities.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ronyzarom/SecureWatch-sub001/internal/domain"
)

// employeeFinder is the slice of the store the resolver needs.
type employeeFinder interface {
	FindEmployeeByEmail(ctx context.Context, email string) (*domain.Employee, error)
}

// Resolver looks up internal employees by email. It never creates,
// updates, or caches identities.
type Resolver struct {
	store  employeeFinder
	logger *slog.Logger
}

// NewResolver creates a Resolver backed by the given store.
func NewResolver(store employeeFinder, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, logger: logger}
}

// Resolve returns the employee id for email, or an empty identity when no
// match exists. A miss is a valid terminal outcome, not an error.
// Addresses are matched case-insensitively: reconciliation stores them
// lowercased, and providers report casing inconsistently.
func (r *Resolver) Resolve(ctx context.Context, email string) (domain.ResolvedIdentity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return domain.ResolvedIdentity{}, nil
	}
	e, err := r.store.FindEmployeeByEmail(ctx, email)
	if err != nil {
		return domain.ResolvedIdentity{}, fmt.Errorf("identity lookup %s: %w", email, err)
	}
	if e == nil {
		return domain.ResolvedIdentity{}, nil
	}
	return domain.ResolvedIdentity{EmployeeID: e.ID}, nil
}
