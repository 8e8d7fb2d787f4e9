package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/ronyzarom/SecureWatch-sub001/internal/domain"
)

// employeeWriter is the slice of the store the reconciler needs.
type employeeWriter interface {
	UpsertEmployee(ctx context.Context, e domain.Employee) (string, error)
}

// Reconciler upserts employee records from a run's principal list. It
// runs to completion before message sync so message-identity linkage sees
// up-to-date records.
type Reconciler struct {
	store         employeeWriter
	primaryDomain string
	logger        *slog.Logger
}

// NewReconciler creates a Reconciler. primaryDomain is required: rather
// than silently defaulting unknown organizational domains, reconciliation
// fails closed when it is empty.
func NewReconciler(store employeeWriter, primaryDomain string, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:         store,
		primaryDomain: strings.TrimPrefix(strings.ToLower(primaryDomain), "@"),
		logger:        logger,
	}
}

// Reconcile upserts one employee per enabled principal whose email
// belongs to the configured primary domain. Returns how many records were
// written.
func (r *Reconciler) Reconcile(ctx context.Context, principals []domain.Principal) (int, error) {
	if r.primaryDomain == "" {
		return 0, fmt.Errorf("identity.primaryDomain is not configured; refusing to reconcile identities")
	}

	written := 0
	for _, p := range principals {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if !p.Enabled || p.PrimaryEmail == "" {
			continue
		}
		email := strings.ToLower(p.PrimaryEmail)
		if !strings.HasSuffix(email, "@"+r.primaryDomain) {
			r.logger.Debug("skipping principal outside primary domain",
				"email", email, "domain", r.primaryDomain)
			continue
		}

		id, err := r.store.UpsertEmployee(ctx, domain.Employee{
			ID:          uuid.NewString(),
			Email:       email,
			DisplayName: p.DisplayName,
			Active:      true,
		})
		if err != nil {
			return written, fmt.Errorf("reconcile %s: %w", email, err)
		}
		written++
		r.logger.Debug("employee reconciled", "email", email, "id", id)
	}
	return written, nil
}
