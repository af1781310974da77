// Package sweeper runs the background expiry passes: hard-deleting
// contacts whose soft-delete grace period has lapsed and purging expired
// form submissions. Sweeps are idempotent and need no cross-node
// coordination; two nodes sweeping concurrently just race to delete the
// same rows.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"twym/internal/contacts/metrics"
	contactmodels "twym/internal/contacts/models"
	"twym/internal/platform/config"
	id "twym/pkg/domain"
	"twym/pkg/requestcontext"
)

// ContactStore is the slice of the contact store the sweeper needs.
type ContactStore interface {
	ListSoftDeleted(ctx context.Context) ([]*contactmodels.Contact, error)
	HardDelete(ctx context.Context, contactID id.ContactID) error
}

// SubmissionStore purges expired form submissions in bulk.
type SubmissionStore interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Sweeper owns both expiry passes.
type Sweeper struct {
	contacts    ContactStore
	submissions SubmissionStore
	graceDays   int
	interval    time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) { s.metrics = m }
}

func New(contacts ContactStore, submissions SubmissionStore, contactsCfg config.ContactsConfig, sweepCfg config.SweepConfig, opts ...Option) *Sweeper {
	s := &Sweeper{
		contacts:    contacts,
		submissions: submissions,
		graceDays:   contactsCfg.DeleteGraceDays,
		interval:    sweepCfg.Interval,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps immediately and then on every tick until the context ends.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.SweepContacts(ctx)
		s.SweepSubmissions(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SweepContacts hard-deletes contacts soft-deleted at least the grace
// period ago, measured in wall-clock days and inclusive of the boundary.
// Per-row failures are logged and skipped so one bad row cannot stall the
// backlog.
func (s *Sweeper) SweepContacts(ctx context.Context) {
	deleted, err := s.contacts.ListSoftDeleted(ctx)
	if err != nil {
		s.logger.Error("contact sweep: failed to list soft-deleted contacts", "error", err)
		return
	}

	now := requestcontext.Now(ctx)
	removed := 0
	for _, contact := range deleted {
		if contact.DeletedAt == nil {
			continue
		}
		if now.Sub(*contact.DeletedAt).Hours()/24 < float64(s.graceDays) {
			continue
		}
		if err := s.contacts.HardDelete(ctx, contact.ID); err != nil {
			s.logger.Error("contact sweep: failed to hard-delete contact",
				"contact_id", contact.ID, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.metrics.AddSweptContacts(removed)
		s.logger.Info("contact sweep finished", "removed", removed, "candidates", len(deleted))
	}
}

// SweepSubmissions bulk-purges submissions past their expires_at. Errors
// are logged, never propagated.
func (s *Sweeper) SweepSubmissions(ctx context.Context) {
	removed, err := s.submissions.DeleteExpired(ctx, requestcontext.Now(ctx))
	if err != nil {
		s.logger.Error("submission sweep failed", "error", err)
		return
	}
	if removed > 0 {
		s.metrics.AddSweptSubmissions(removed)
		s.logger.Info("submission sweep finished", "removed", removed)
	}
}
