// Package service implements the contact lifecycle engine: the dedup-gated
// create primitive every acquisition path funnels through, the path-specific
// pre-population rules, and the ownership-checked mutations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"twym/internal/contacts/identity"
	"twym/internal/contacts/metrics"
	"twym/internal/contacts/models"
	"twym/internal/events"
	"twym/internal/platform/config"
	"twym/internal/profiles"
	id "twym/pkg/domain"
	dErrors "twym/pkg/domain-errors"
	"twym/pkg/platform/sentinel"
)

// Store is the persistence port for contacts. FindByHash, FindByOwner, and
// Search exclude soft-deleted rows; FindByID returns them so restore works.
type Store interface {
	Create(ctx context.Context, contact *models.Contact) error
	Save(ctx context.Context, contact *models.Contact) error
	FindByID(ctx context.Context, contactID id.ContactID) (*models.Contact, error)
	FindByOwner(ctx context.Context, ownerID id.UserID) ([]*models.Contact, error)
	FindByHash(ctx context.Context, ownerID id.UserID, hash string) (*models.Contact, error)
	Search(ctx context.Context, ownerID id.UserID, query models.SearchQuery) ([]*models.Contact, error)
	ListSoftDeleted(ctx context.Context) ([]*models.Contact, error)
	HardDelete(ctx context.Context, contactID id.ContactID) error
	// WithinTx runs fn atomically; every store call made with the ctx it
	// passes joins the same transaction. Used by the paired create paths.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProfileDirectory resolves user references. A nil profile means the user
// does not exist.
type ProfileDirectory interface {
	FindByUserID(ctx context.Context, userID id.UserID) (*profiles.Profile, error)
}

// SubmissionDirectory checks contact_submission_id references on manual
// creates.
type SubmissionDirectory interface {
	Exists(ctx context.Context, submissionID id.SubmissionID) (bool, error)
}

// CreateResult is the discriminated outcome of a create: either a freshly
// persisted contact or the already-existing one. Duplicate detection is a
// successful outcome, not an error — re-scanning the same badge is a
// normal user action, so callers branch on Duplicate instead of catching
// anything.
type CreateResult struct {
	Duplicate bool            `json:"duplicate"`
	Contact   *models.Contact `json:"contact"`
	Message   string          `json:"message,omitempty"`
}

// CreateContactRequest carries the draft fields for any acquisition path.
type CreateContactRequest struct {
	ContactType         models.ContactType
	LinkedUserID        *id.UserID
	Name                string
	Title               string
	Department          string
	Company             string
	AcquiredVia         models.AcquisitionChannel
	ScannedType         *models.ScanType
	EventID             *id.EventID
	LoungeSessionID     *id.LoungeID
	ContactSubmissionID *id.SubmissionID
	MeetingNotes        string
	AutomaticTags       []string
	UserTags            []string
	Phones              []models.PhoneNumber
	Emails              []models.EmailAddress
	Addresses           []models.Address
	Links               []models.Link
}

// Service owns the contact lifecycle rules.
type Service struct {
	store       Store
	profiles    ProfileDirectory
	submissions SubmissionDirectory
	publisher   events.Publisher
	cfg         config.ContactsConfig
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithSubmissionDirectory(d SubmissionDirectory) Option {
	return func(s *Service) { s.submissions = d }
}

func New(store Store, profiles ProfileDirectory, cfg config.ContactsConfig, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("contact store is required")
	}
	if profiles == nil {
		return nil, fmt.Errorf("profile directory is required")
	}

	svc := &Service{
		store:     store,
		profiles:  profiles,
		publisher: events.NewMemorySink(),
		cfg:       cfg,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create is the dedup-gated create primitive. It computes the identity
// hash, short-circuits when a non-deleted contact with the same hash
// already belongs to the owner, and persists otherwise.
func (s *Service) Create(ctx context.Context, ownerID id.UserID, req CreateContactRequest) (*CreateResult, error) {
	result, err := s.createOne(ctx, ownerID, req)
	if err != nil {
		return nil, err
	}
	if !result.Duplicate {
		s.publishCreated(ctx, result.Contact)
	}
	return result, nil
}

// createOne runs the dedup gate and persistence without emitting lifecycle
// events, so the paired paths can publish only after their transaction
// commits.
func (s *Service) createOne(ctx context.Context, ownerID id.UserID, req CreateContactRequest) (*CreateResult, error) {
	if ownerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "owner is required")
	}

	contact := s.draft(ownerID, req)
	contact.ContactHash = identity.HashContact(contact)

	existing, err := s.store.FindByHash(ctx, ownerID, contact.ContactHash)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check for duplicate contact")
	}
	if existing != nil {
		s.metrics.IncDuplicate(string(contact.AcquiredVia))
		return &CreateResult{
			Duplicate: true,
			Contact:   existing,
			Message:   duplicateMessage(contact.AcquiredVia),
		}, nil
	}

	if err := s.store.Create(ctx, contact); err != nil {
		// A concurrent create can slip past the lookup; the store's partial
		// unique index turns that race into ErrConflict, which is the same
		// duplicate outcome as the lookup hit.
		if errors.Is(err, sentinel.ErrConflict) {
			winner, findErr := s.store.FindByHash(ctx, ownerID, contact.ContactHash)
			if findErr == nil && winner != nil {
				s.metrics.IncDuplicate(string(contact.AcquiredVia))
				return &CreateResult{
					Duplicate: true,
					Contact:   winner,
					Message:   duplicateMessage(contact.AcquiredVia),
				}, nil
			}
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create contact")
	}

	s.metrics.IncCreated(string(contact.AcquiredVia))
	return &CreateResult{Contact: contact}, nil
}

func (s *Service) draft(ownerID id.UserID, req CreateContactRequest) *models.Contact {
	now := time.Now()

	contactType := req.ContactType
	if contactType == "" {
		contactType = models.ContactTypeExternal
	}
	acquiredVia := req.AcquiredVia
	if acquiredVia == "" {
		acquiredVia = models.AcquiredManual
	}

	return &models.Contact{
		ID:                  id.NewContactID(),
		OwnerID:             ownerID,
		LinkedUserID:        req.LinkedUserID,
		ContactType:         contactType,
		Name:                req.Name,
		Title:               req.Title,
		Department:          req.Department,
		Company:             req.Company,
		AcquiredVia:         acquiredVia,
		ScannedType:         req.ScannedType,
		EventID:             req.EventID,
		LoungeSessionID:     req.LoungeSessionID,
		ContactSubmissionID: req.ContactSubmissionID,
		MeetingNotes:        req.MeetingNotes,
		AutomaticTags:       req.AutomaticTags,
		UserTags:            req.UserTags,
		Phones:              req.Phones,
		Emails:              req.Emails,
		Addresses:           req.Addresses,
		Links:               req.Links,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func duplicateMessage(channel models.AcquisitionChannel) string {
	if channel == models.AcquiredScanned {
		return "Contact already scanned"
	}
	return "Contact already exists"
}

func (s *Service) publishCreated(ctx context.Context, contact *models.Contact) {
	s.publisher.Publish(ctx, events.Event{
		Type:      events.ContactCreated,
		OwnerID:   contact.OwnerID,
		ContactID: contact.ID,
		Channel:   string(contact.AcquiredVia),
		Timestamp: contact.CreatedAt,
	})
}

// CreateManual creates a contact entered by hand. References to other
// entities are validated before the dedup gate runs.
func (s *Service) CreateManual(ctx context.Context, ownerID id.UserID, req CreateContactRequest) (*CreateResult, error) {
	if req.LinkedUserID != nil {
		profile, err := s.profiles.FindByUserID(ctx, *req.LinkedUserID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve linked user")
		}
		if profile == nil {
			return nil, dErrors.New(dErrors.CodeNotFound, "linked user not found")
		}
	}
	if req.ContactSubmissionID != nil {
		if s.submissions == nil {
			return nil, dErrors.New(dErrors.CodeNotFound, "contact submission not found")
		}
		ok, err := s.submissions.Exists(ctx, *req.ContactSubmissionID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve contact submission")
		}
		if !ok {
			return nil, dErrors.New(dErrors.CodeNotFound, "contact submission not found")
		}
	}

	if req.AcquiredVia == "" {
		req.AcquiredVia = models.AcquiredManual
	}
	return s.Create(ctx, ownerID, req)
}

// CreateScanned creates a contact from a QR, badge, or card scan and
// assigns the channel's automatic tags.
func (s *Service) CreateScanned(ctx context.Context, ownerID id.UserID, req CreateContactRequest) (*CreateResult, error) {
	req.AcquiredVia = models.AcquiredScanned

	if req.ScannedType != nil {
		switch *req.ScannedType {
		case models.ScanQRCode:
			req.AutomaticTags = appendTag(req.AutomaticTags, models.TagQRScan)
		case models.ScanEventBadge:
			// Badge scans outside an event context stay untagged.
			if req.EventID != nil {
				req.AutomaticTags = appendTag(req.AutomaticTags, models.TagEventBadge)
			}
		}
	}

	return s.Create(ctx, ownerID, req)
}

func appendTag(tags []string, tag string) []string {
	for _, t := range tags {
		if t == tag {
			return tags
		}
	}
	return append(tags, tag)
}
