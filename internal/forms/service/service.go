// Package service implements the public contact-capture surface: form
// management, the unauthenticated submit path with its per-IP daily limit,
// and the owner-side conversion of submissions into contacts.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	contactmodels "twym/internal/contacts/models"
	contactsvc "twym/internal/contacts/service"
	"twym/internal/events"
	"twym/internal/forms/metrics"
	"twym/internal/forms/models"
	"twym/internal/forms/ratelimit"
	"twym/internal/platform/config"
	"twym/internal/profiles"
	id "twym/pkg/domain"
	dErrors "twym/pkg/domain-errors"
	"twym/pkg/platform/sentinel"
	"twym/pkg/requestcontext"
)

// Store is the persistence port for forms and submissions.
type Store interface {
	CreateForm(ctx context.Context, form *models.ContactForm) error
	SaveForm(ctx context.Context, form *models.ContactForm) error
	FindFormByID(ctx context.Context, formID id.FormID) (*models.ContactForm, error)
	FindFormByProfile(ctx context.Context, profileID id.ProfileID) (*models.ContactForm, error)
	CreateSubmission(ctx context.Context, sub *models.ContactSubmission) error
	SaveSubmission(ctx context.Context, sub *models.ContactSubmission) error
	FindSubmissionByID(ctx context.Context, subID id.SubmissionID) (*models.ContactSubmission, error)
	ListByForm(ctx context.Context, formID id.FormID) ([]*models.ContactSubmission, error)
	// DeleteExpired purges submissions whose expires_at has passed and
	// returns how many rows went away. Used by the sweeper.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// ContactCreator is the dedup-gated create primitive conversions delegate
// to.
type ContactCreator interface {
	Create(ctx context.Context, ownerID id.UserID, req contactsvc.CreateContactRequest) (*contactsvc.CreateResult, error)
}

// SubmitRequest is an unauthenticated visitor submission.
type SubmitRequest struct {
	ProfileID       id.ProfileID
	Payload         map[string]any
	CaptchaVerified bool
}

// Service owns the capture form rules.
type Service struct {
	store     Store
	profiles  profiles.Directory
	contacts  ContactCreator
	limiter   ratelimit.Counter
	publisher events.Publisher
	cfg       config.FormsConfig
	logger    *slog.Logger
	metrics   *metrics.Metrics
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

func New(store Store, profileDir profiles.Directory, contacts ContactCreator, limiter ratelimit.Counter, cfg config.FormsConfig, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("form store is required")
	}
	if profileDir == nil {
		return nil, fmt.Errorf("profile directory is required")
	}
	if contacts == nil {
		return nil, fmt.Errorf("contact creator is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limit counter is required")
	}

	svc := &Service{
		store:     store,
		profiles:  profileDir,
		contacts:  contacts,
		limiter:   limiter,
		publisher: events.NewMemorySink(),
		cfg:       cfg,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// GetOrCreateForm returns the profile's capture form, creating a default
// one on first access. Field definitions are validated on every write.
func (s *Service) GetOrCreateForm(ctx context.Context, ownerID id.UserID, profileID id.ProfileID, title string, fields []models.FieldDefinition) (*models.ContactForm, error) {
	profile, err := s.ownedProfile(ctx, ownerID, profileID)
	if err != nil {
		return nil, err
	}

	form, err := s.store.FindFormByProfile(ctx, profile.ID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load form")
	}
	if form != nil {
		return form, nil
	}

	if len(fields) == 0 {
		fields = defaultFields()
	}
	if err := validateFields(fields); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	form = &models.ContactForm{
		ID:        id.NewFormID(),
		ProfileID: profile.ID,
		OwnerID:   ownerID,
		Title:     title,
		Fields:    fields,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateForm(ctx, form); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create form")
	}
	return form, nil
}

// UpdateForm replaces the form's title, fields, and active flag.
func (s *Service) UpdateForm(ctx context.Context, ownerID id.UserID, formID id.FormID, title string, fields []models.FieldDefinition, active bool) (*models.ContactForm, error) {
	form, err := s.ownedForm(ctx, ownerID, formID)
	if err != nil {
		return nil, err
	}
	if err := validateFields(fields); err != nil {
		return nil, err
	}

	form.Title = title
	form.Fields = fields
	form.IsActive = active
	form.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.SaveForm(ctx, form); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save form")
	}
	return form, nil
}

// Submit handles an unauthenticated visitor submission. Gates run in
// order: profile exists, capture enabled and form active, per-IP daily
// limit, then field validation.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*models.ContactSubmission, error) {
	profile, err := s.profiles.FindOne(ctx, req.ProfileID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "profile not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
	}
	if !profile.ContactCaptureEnabled {
		return nil, dErrors.New(dErrors.CodeBadRequest, "contact capture is not enabled")
	}

	form, err := s.store.FindFormByProfile(ctx, profile.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "contact form not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load form")
	}
	if !form.IsActive {
		return nil, dErrors.New(dErrors.CodeBadRequest, "contact form is not active")
	}

	visitorIP := requestcontext.ClientIP(ctx)
	count, err := s.limiter.Count(ctx, visitorIP)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check submission limit")
	}
	if count >= s.cfg.DailySubmissionLimit {
		s.metrics.IncRateLimited()
		return nil, dErrors.New(dErrors.CodeRateLimited, "daily submission limit reached")
	}

	data := sanitize(form.Fields, req.Payload)
	if err := validateSubmission(form.Fields, data); err != nil {
		s.metrics.IncInvalid()
		return nil, err
	}

	now := requestcontext.Now(ctx)
	sub := &models.ContactSubmission{
		ID:               id.NewSubmissionID(),
		FormID:           form.ID,
		ProfileID:        form.ProfileID,
		SubmissionData:   data,
		VisitorIP:        visitorIP,
		VisitorUserAgent: requestcontext.UserAgent(ctx),
		VisitorReferrer:  requestcontext.Referrer(ctx),
		CaptchaVerified:  req.CaptchaVerified,
		ExpiresAt:        now.AddDate(0, 0, s.cfg.SubmissionExpiryDays),
		CreatedAt:        now,
	}
	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save submission")
	}

	if err := s.limiter.Record(ctx, visitorIP); err != nil {
		// The submission is already in; losing one count is acceptable.
		s.logger.Warn("failed to record submission count", "error", err)
	}

	s.metrics.IncSubmission()
	return sub, nil
}

// Convert turns a submission into a contact exactly once. A duplicate from
// the dedup gate is a Conflict here, not a success: the owner asked for a
// new contact and did not get one.
func (s *Service) Convert(ctx context.Context, ownerID id.UserID, subID id.SubmissionID) (*contactmodels.Contact, error) {
	sub, _, err := s.ownedSubmission(ctx, ownerID, subID)
	if err != nil {
		return nil, err
	}
	if sub.IsConverted() {
		return nil, dErrors.New(dErrors.CodeConflict, "submission already converted")
	}

	result, err := s.contacts.Create(ctx, ownerID, contactRequest(sub))
	if err != nil {
		return nil, err
	}
	if result.Duplicate {
		return nil, dErrors.New(dErrors.CodeConflict, "contact already exists")
	}

	sub.CreatedContactID = &result.Contact.ID
	sub.IsRead = true
	if err := s.store.SaveSubmission(ctx, sub); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update submission")
	}

	s.metrics.IncConverted()
	s.publisher.Publish(ctx, events.Event{
		Type:      events.SubmissionConverted,
		OwnerID:   ownerID,
		ContactID: result.Contact.ID,
		Channel:   string(contactmodels.AcquiredCaptureForm),
		Timestamp: requestcontext.Now(ctx),
	})
	return result.Contact, nil
}

// MarkRead flags a submission as seen by the owner.
func (s *Service) MarkRead(ctx context.Context, ownerID id.UserID, subID id.SubmissionID) (*models.ContactSubmission, error) {
	sub, _, err := s.ownedSubmission(ctx, ownerID, subID)
	if err != nil {
		return nil, err
	}
	if sub.IsRead {
		return sub, nil
	}
	sub.IsRead = true
	if err := s.store.SaveSubmission(ctx, sub); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update submission")
	}
	return sub, nil
}

// ListSubmissions returns a form's submissions, newest first.
func (s *Service) ListSubmissions(ctx context.Context, ownerID id.UserID, formID id.FormID) ([]*models.ContactSubmission, error) {
	if _, err := s.ownedForm(ctx, ownerID, formID); err != nil {
		return nil, err
	}
	subs, err := s.store.ListByForm(ctx, formID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list submissions")
	}
	return subs, nil
}

// Exists implements the contacts service's SubmissionDirectory port.
func (s *Service) Exists(ctx context.Context, subID id.SubmissionID) (bool, error) {
	_, err := s.store.FindSubmissionByID(ctx, subID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Service) ownedProfile(ctx context.Context, ownerID id.UserID, profileID id.ProfileID) (*profiles.Profile, error) {
	profile, err := s.profiles.FindOne(ctx, profileID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "profile not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
	}
	if profile.UserID != ownerID {
		return nil, dErrors.New(dErrors.CodeBadRequest, "profile does not belong to user")
	}
	return profile, nil
}

func (s *Service) ownedForm(ctx context.Context, ownerID id.UserID, formID id.FormID) (*models.ContactForm, error) {
	form, err := s.store.FindFormByID(ctx, formID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "contact form not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load form")
	}
	if form.OwnerID != ownerID {
		return nil, dErrors.New(dErrors.CodeBadRequest, "form does not belong to user")
	}
	return form, nil
}

func (s *Service) ownedSubmission(ctx context.Context, ownerID id.UserID, subID id.SubmissionID) (*models.ContactSubmission, *models.ContactForm, error) {
	sub, err := s.store.FindSubmissionByID(ctx, subID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeNotFound, "submission not found")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load submission")
	}
	form, err := s.ownedForm(ctx, ownerID, sub.FormID)
	if err != nil {
		return nil, nil, err
	}
	return sub, form, nil
}

func defaultFields() []models.FieldDefinition {
	return []models.FieldDefinition{
		{Name: "name", Type: models.FieldText, Label: "Name", Required: true},
		{Name: "email", Type: models.FieldEmail, Label: "Email", Required: true},
		{Name: "phone", Type: models.FieldPhone, Label: "Phone"},
		{Name: "company", Type: models.FieldText, Label: "Company"},
		{Name: "message", Type: models.FieldTextarea, Label: "Message"},
	}
}

func validateFields(fields []models.FieldDefinition) error {
	if len(fields) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "form needs at least one field")
	}
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		if field.Name == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "field name is required")
		}
		if field.Label == "" {
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("field %q needs a label", field.Name))
		}
		if !models.KnownFieldType(field.Type) {
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("field %q has unsupported type %q", field.Name, field.Type))
		}
		if _, dup := seen[field.Name]; dup {
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("duplicate field %q", field.Name))
		}
		seen[field.Name] = struct{}{}
	}
	return nil
}

// sanitize keeps only declared string fields, trimmed. Unknown keys and
// non-string values are dropped silently.
func sanitize(fields []models.FieldDefinition, payload map[string]any) map[string]string {
	known := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		known[field.Name] = struct{}{}
	}

	out := make(map[string]string)
	for key, raw := range payload {
		if _, ok := known[key]; !ok {
			continue
		}
		value, ok := raw.(string)
		if !ok {
			continue
		}
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out[key] = trimmed
		}
	}
	return out
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func validateSubmission(fields []models.FieldDefinition, data map[string]string) error {
	for _, field := range fields {
		value, present := data[field.Name]
		if field.Required && !present {
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s is required", field.Label))
		}
		if present && field.Type == models.FieldEmail && !emailPattern.MatchString(value) {
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s is not a valid email address", field.Label))
		}
	}
	return nil
}

// contactRequest maps well-known submission keys onto the contact draft.
func contactRequest(sub *models.ContactSubmission) contactsvc.CreateContactRequest {
	subID := sub.ID
	req := contactsvc.CreateContactRequest{
		Name:                sub.SubmissionData["name"],
		Company:             sub.SubmissionData["company"],
		Title:               sub.SubmissionData["title"],
		AcquiredVia:         contactmodels.AcquiredCaptureForm,
		ContactSubmissionID: &subID,
		MeetingNotes:        sub.SubmissionData["message"],
		AutomaticTags:       []string{contactmodels.TagLead},
	}
	if email := sub.SubmissionData["email"]; email != "" {
		req.Emails = []contactmodels.EmailAddress{{Address: email, Type: contactmodels.EmailPersonal, IsPrimary: true}}
	}
	if phone := sub.SubmissionData["phone"]; phone != "" {
		req.Phones = []contactmodels.PhoneNumber{{Number: phone, Type: contactmodels.PhoneMobile, IsPrimary: true}}
	}
	return req
}
