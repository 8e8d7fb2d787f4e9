package domain

import (
	"context"
	"time"
)

// ActivityQuery bounds one page fetch for a principal.
type ActivityQuery struct {
	Since    time.Time
	Folder   string
	PageSize int
	Cursor   string // empty on the first page
}

// ActivityPage is one page of raw items. An empty NextCursor means the
// provider has no more pages for this query.
type ActivityPage struct {
	Items      []RawItem
	NextCursor string
}

// ProviderClient is the per-vendor collaborator supplying enumeration and
// activity fetch. Implementations page internally or expose a cursor the
// caller drives; either way the caller can bound total items per principal.
type ProviderClient interface {
	Name() Provider
	// ListPrincipals returns a fully materialized list of monitored
	// accounts or channels.
	ListPrincipals(ctx context.Context) ([]Principal, error)
	// FetchActivity returns one page of raw items for the principal,
	// each already tagged with its origin folder.
	FetchActivity(ctx context.Context, p Principal, q ActivityQuery) (ActivityPage, error)
	// Folders returns the folders to sync for this provider. Outbound
	// folders are only included when includeOutbound is set.
	Folders(includeOutbound bool) []string
}

// MessageStore persists canonical messages idempotently.
type MessageStore interface {
	// UpsertMessage stores the message keyed by its natural key. The
	// second call with the same key updates only the mutable fields
	// (risk score, flagged, category) and reports created=false. A
	// unique-key race with a concurrent insert is a successful no-op.
	UpsertMessage(ctx context.Context, m *CanonicalMessage) (created bool, err error)
}

// IdentityResolver looks up the internal employee for an email address.
// It never creates or caches identities.
type IdentityResolver interface {
	Resolve(ctx context.Context, email string) (ResolvedIdentity, error)
}

// RiskAnalyzer scores one canonical message. The scoring algorithm itself
// is external to the sync pipeline; this interface is the contract.
type RiskAnalyzer interface {
	Score(ctx context.Context, m *CanonicalMessage, id ResolvedIdentity) (RiskResult, error)
}

// Dispatcher forwards a resolved identity to downstream review. Enqueue is
// fire-and-forget from the pipeline's point of view: failures are logged
// by the caller and never abort a run.
type Dispatcher interface {
	Enqueue(ctx context.Context, employeeID, reason string) error
}
