// Package syncer orchestrates one provider's sync run: principal
// enumeration, identity reconciliation, bounded fan-out over principals,
// and the per-item normalize/resolve/score/persist/dispatch pipeline.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ronyzarom/SecureWatch-sub001/internal/domain"
	"github.com/ronyzarom/SecureWatch-sub001/internal/metrics"
	"github.com/ronyzarom/SecureWatch-sub001/internal/normalize"
	"github.com/ronyzarom/SecureWatch-sub001/internal/schedule"
)

// Reconciler refreshes the employee roster from enumerated principals
// before messages are resolved against it.
type Reconciler interface {
	Reconcile(ctx context.Context, principals []domain.Principal) (int, error)
}

// Options wires one Syncer. All collaborators are required except
// Reconciler and Logger.
type Options struct {
	Client     domain.ProviderClient
	Normalizer *normalize.Normalizer
	Resolver   domain.IdentityResolver
	Analyzer   domain.RiskAnalyzer
	Store      domain.MessageStore
	Dispatcher domain.Dispatcher
	Reconciler Reconciler

	WindowDays           int
	PageSize             int
	MaxItemsPerPrincipal int
	ConcurrencyLimit     int
	PacingDelay          time.Duration
	IncludeOutbound      bool
	MaxErrors            int
	DispatchReason       string

	Logger *slog.Logger
}

// Syncer runs the sync pipeline for a single provider.
type Syncer struct {
	opts   Options
	logger *slog.Logger
}

func New(opts Options) (*Syncer, error) {
	switch {
	case opts.Client == nil:
		return nil, errors.New("syncer: provider client is required")
	case opts.Normalizer == nil:
		return nil, errors.New("syncer: normalizer is required")
	case opts.Resolver == nil:
		return nil, errors.New("syncer: identity resolver is required")
	case opts.Analyzer == nil:
		return nil, errors.New("syncer: risk analyzer is required")
	case opts.Store == nil:
		return nil, errors.New("syncer: message store is required")
	case opts.Dispatcher == nil:
		return nil, errors.New("syncer: dispatcher is required")
	}
	if opts.WindowDays <= 0 {
		opts.WindowDays = 7
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.MaxItemsPerPrincipal <= 0 {
		opts.MaxItemsPerPrincipal = 500
	}
	if opts.ConcurrencyLimit <= 0 {
		opts.ConcurrencyLimit = 3
	}
	if opts.DispatchReason == "" {
		opts.DispatchReason = "flagged-communication"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{opts: opts, logger: logger.With("provider", opts.Client.Name())}, nil
}

// RunSync executes one full sync run. The returned summary is populated
// even when the run aborts. Fatal outcomes are principal enumeration
// failure, reconciliation failure, authentication rejection, and context
// cancellation; everything else degrades to recorded per-unit errors.
func (s *Syncer) RunSync(ctx context.Context) (*RunSummary, error) {
	summary := newRunSummary(string(s.opts.Client.Name()), s.opts.MaxErrors)
	defer func() { summary.FinishedAt = time.Now() }()

	principals, err := s.opts.Client.ListPrincipals(ctx)
	if err != nil {
		return summary, fmt.Errorf("enumerate principals: %w", err)
	}
	summary.Principals = len(principals)

	if s.opts.Reconciler != nil {
		n, err := s.opts.Reconciler.Reconcile(ctx, principals)
		if err != nil {
			return summary, fmt.Errorf("reconcile identities: %w", err)
		}
		summary.EmployeesSynced = n
	}

	enabled := principals[:0:0]
	for _, p := range principals {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}
	s.logger.Info("sync run starting",
		"principals", len(principals), "enabled", len(enabled))

	// An auth rejection anywhere stops the whole run. Cancelling the run
	// context lets chunks already in flight finish their unit and stops
	// new chunks from starting.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	b := schedule.Batcher{
		Limit:  s.opts.ConcurrencyLimit,
		Logger: s.logger,
	}
	if s.opts.PacingDelay > 0 {
		b.Pacer = schedule.FixedDelay(s.opts.PacingDelay)
	}

	results, runErr := schedule.Run(runCtx, b, enabled, func(ctx context.Context, p domain.Principal) (struct{}, error) {
		metrics.SyncsInFlight.Inc()
		defer metrics.SyncsInFlight.Dec()
		err := s.syncPrincipal(ctx, p, summary)
		if err != nil && domain.IsAuth(err) {
			cancel()
		}
		return struct{}{}, err
	})

	var authErr error
	for i, r := range results {
		if r.Err == nil {
			continue
		}
		if domain.IsAuth(r.Err) && authErr == nil {
			authErr = r.Err
		}
		metrics.SyncErrors.Inc()
		summary.addError(principalUnit(enabled[i]), r.Err)
	}

	switch {
	case authErr != nil:
		return summary, authErr
	case runErr != nil && ctx.Err() != nil:
		return summary, runErr
	}

	errs, truncated := summary.Errors()
	s.logger.Info("sync run finished",
		"synced", summary.Synced,
		"fetched", summary.ItemsFetched,
		"persisted", summary.ItemsPersisted,
		"created", summary.ItemsCreated,
		"flagged", summary.Flagged,
		"errors", len(errs),
		"errors_dropped", truncated,
		"duration", summary.Duration())
	return summary, nil
}

// syncPrincipal walks every folder of one principal, paging until the
// provider is exhausted or the per-principal item bound is hit.
func (s *Syncer) syncPrincipal(ctx context.Context, p domain.Principal, summary *RunSummary) error {
	since := time.Now().AddDate(0, 0, -s.opts.WindowDays)
	remaining := s.opts.MaxItemsPerPrincipal

	for _, folder := range s.opts.Client.Folders(s.opts.IncludeOutbound) {
		if remaining <= 0 {
			break
		}
		q := domain.ActivityQuery{Since: since, Folder: folder, PageSize: min(s.opts.PageSize, remaining)}
		for {
			if err := ctx.Err(); err != nil {
				return err
			}

			start := time.Now()
			page, err := s.opts.Client.FetchActivity(ctx, p, q)
			metrics.FetchLatency.Observe(time.Since(start).Seconds())
			if err != nil {
				if domain.IsAuth(err) || ctx.Err() != nil {
					return err
				}
				// A transient fetch failure ends this principal's run;
				// siblings keep going and pick it up next pass.
				metrics.SyncErrors.Inc()
				summary.addError(principalUnit(p)+"/"+folder, err)
				return nil
			}

			for _, item := range page.Items {
				s.processItem(ctx, item, p, summary)
				remaining--
				if remaining <= 0 {
					break
				}
			}

			if page.NextCursor == "" || remaining <= 0 {
				break
			}
			q.Cursor = page.NextCursor
			q.PageSize = min(s.opts.PageSize, remaining)
		}
	}

	summary.markSynced()
	return nil
}

// processItem runs one raw item through normalize, resolve, score,
// persist, and dispatch. Failures are recorded against the item and
// never abort the principal.
func (s *Syncer) processItem(ctx context.Context, item domain.RawItem, p domain.Principal, summary *RunSummary) {
	unit := principalUnit(p) + "/" + item.ProviderID

	msg, err := s.opts.Normalizer.Normalize(item, p, s.opts.Client.Name())
	if err != nil {
		metrics.NormalizeSkips.Inc()
		summary.addCounts(1, 0, 0, 1, 0, 0)
		summary.addError(unit, err)
		s.logger.Debug("item skipped", "unit", unit, "err", err)
		return
	}

	identity, err := s.opts.Resolver.Resolve(ctx, msg.OwnerEmail)
	if err != nil {
		metrics.SyncErrors.Inc()
		summary.addCounts(1, 0, 0, 0, 0, 0)
		summary.addError(unit, fmt.Errorf("resolve identity: %w", err))
		return
	}

	risk, err := s.opts.Analyzer.Score(ctx, msg, identity)
	if err != nil {
		metrics.SyncErrors.Inc()
		summary.addCounts(1, 0, 0, 0, 0, 0)
		summary.addError(unit, fmt.Errorf("score: %w", err))
		return
	}
	msg.RiskScore = risk.Score
	msg.Flagged = risk.Flagged
	msg.Category = risk.Category

	start := time.Now()
	created, err := s.opts.Store.UpsertMessage(ctx, msg)
	metrics.UpsertLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SyncErrors.Inc()
		summary.addCounts(1, 0, 0, 0, 0, 0)
		summary.addError(unit, fmt.Errorf("persist: %w", err))
		return
	}

	metrics.MessagesSynced.Inc()
	if created {
		metrics.MessagesCreated.Inc()
	}

	flagged, dispatched := 0, 0
	if msg.Flagged {
		flagged = 1
		metrics.MessagesFlagged.Inc()
		if identity.Resolved() {
			if err := s.opts.Dispatcher.Enqueue(ctx, identity.EmployeeID, s.opts.DispatchReason); err != nil {
				// Review dispatch is best-effort. The message is already
				// persisted with its flag, so a lost enqueue only delays
				// review until the next run.
				s.logger.Warn("review dispatch failed", "unit", unit, "err", err)
			} else {
				dispatched = 1
				metrics.ReviewDispatch.Inc()
			}
		}
	}
	createdN := 0
	if created {
		createdN = 1
	}
	summary.addCounts(1, 1, createdN, 0, flagged, dispatched)
}

// ProbeResult is the outcome of a connectivity probe.
type ProbeResult struct {
	Provider   string
	Success    bool
	Detail     string
	CountFound int
}

// TestConnection verifies credentials and enumeration without touching
// any message data.
func (s *Syncer) TestConnection(ctx context.Context) ProbeResult {
	res := ProbeResult{Provider: string(s.opts.Client.Name())}
	principals, err := s.opts.Client.ListPrincipals(ctx)
	if err != nil {
		res.Detail = err.Error()
		return res
	}
	res.Success = true
	res.CountFound = len(principals)
	res.Detail = fmt.Sprintf("%d principals visible", len(principals))
	return res
}

func principalUnit(p domain.Principal) string {
	if p.PrimaryEmail != "" {
		return p.PrimaryEmail
	}
	return p.ID
}
