package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"twym/internal/forms/models"
	id "twym/pkg/domain"
	"twym/pkg/platform/sentinel"
	"twym/pkg/platform/tx"
)

// PostgresStore persists capture forms and submissions.
//
// Expected schema (see migrations):
//
//	contact_forms(id uuid pk, profile_id uuid unique, owner_id uuid,
//	  title text, fields jsonb, is_active bool,
//	  created_at timestamptz, updated_at timestamptz)
//	contact_submissions(id uuid pk,
//	  form_id uuid references contact_forms on delete cascade,
//	  profile_id uuid,
//	  submission_data jsonb, visitor_ip text, visitor_user_agent text,
//	  visitor_referrer text, captcha_verified bool, is_read bool,
//	  created_contact_id uuid null, expires_at timestamptz,
//	  created_at timestamptz)
//
// Field definitions and submission payloads are free-form per form, so
// both ride in jsonb columns rather than child tables.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

const formColumns = `id, profile_id, owner_id, title, fields, is_active, created_at, updated_at`

func (s *PostgresStore) CreateForm(ctx context.Context, form *models.ContactForm) error {
	fields, err := json.Marshal(form.Fields)
	if err != nil {
		return fmt.Errorf("marshal form fields: %w", err)
	}
	query := `
		INSERT INTO contact_forms (` + formColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.q(ctx).ExecContext(ctx, query,
		form.ID.String(),
		form.ProfileID.String(),
		form.OwnerID.String(),
		form.Title,
		fields,
		form.IsActive,
		form.CreatedAt,
		form.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("form already exists for profile: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert form: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveForm(ctx context.Context, form *models.ContactForm) error {
	fields, err := json.Marshal(form.Fields)
	if err != nil {
		return fmt.Errorf("marshal form fields: %w", err)
	}
	query := `
		UPDATE contact_forms SET
			title = $2, fields = $3, is_active = $4, updated_at = $5
		WHERE id = $1
	`
	result, err := s.q(ctx).ExecContext(ctx, query,
		form.ID.String(), form.Title, fields, form.IsActive, form.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update form: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("form %s: %w", form.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) FindFormByID(ctx context.Context, formID id.FormID) (*models.ContactForm, error) {
	query := `SELECT ` + formColumns + ` FROM contact_forms WHERE id = $1`
	form, err := scanForm(s.q(ctx).QueryRowContext(ctx, query, formID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("form %s: %w", formID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("select form: %w", err)
	}
	return form, nil
}

func (s *PostgresStore) FindFormByProfile(ctx context.Context, profileID id.ProfileID) (*models.ContactForm, error) {
	query := `SELECT ` + formColumns + ` FROM contact_forms WHERE profile_id = $1`
	form, err := scanForm(s.q(ctx).QueryRowContext(ctx, query, profileID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("form for profile %s: %w", profileID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("select form: %w", err)
	}
	return form, nil
}

const submissionColumns = `id, form_id, profile_id, submission_data, visitor_ip, visitor_user_agent,
	visitor_referrer, captcha_verified, is_read, created_contact_id, expires_at, created_at`

func (s *PostgresStore) CreateSubmission(ctx context.Context, sub *models.ContactSubmission) error {
	data, err := json.Marshal(sub.SubmissionData)
	if err != nil {
		return fmt.Errorf("marshal submission data: %w", err)
	}
	query := `
		INSERT INTO contact_submissions (` + submissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.q(ctx).ExecContext(ctx, query,
		sub.ID.String(),
		sub.FormID.String(),
		sub.ProfileID.String(),
		data,
		sub.VisitorIP,
		sub.VisitorUserAgent,
		sub.VisitorReferrer,
		sub.CaptchaVerified,
		sub.IsRead,
		nullableContactID(sub.CreatedContactID),
		sub.ExpiresAt,
		sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveSubmission(ctx context.Context, sub *models.ContactSubmission) error {
	query := `
		UPDATE contact_submissions SET
			is_read = $2, created_contact_id = $3
		WHERE id = $1
	`
	result, err := s.q(ctx).ExecContext(ctx, query,
		sub.ID.String(), sub.IsRead, nullableContactID(sub.CreatedContactID))
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("submission %s: %w", sub.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) FindSubmissionByID(ctx context.Context, subID id.SubmissionID) (*models.ContactSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM contact_submissions WHERE id = $1`
	sub, err := scanSubmission(s.q(ctx).QueryRowContext(ctx, query, subID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("submission %s: %w", subID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("select submission: %w", err)
	}
	return sub, nil
}

func (s *PostgresStore) ListByForm(ctx context.Context, formID id.FormID) ([]*models.ContactSubmission, error) {
	query := `
		SELECT ` + submissionColumns + ` FROM contact_submissions
		WHERE form_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, formID.String())
	if err != nil {
		return nil, fmt.Errorf("select submissions: %w", err)
	}
	defer rows.Close()

	var out []*models.ContactSubmission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM contact_submissions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired submissions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted submissions: %w", err)
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanForm(row rowScanner) (*models.ContactForm, error) {
	var (
		form       models.ContactForm
		rawID      string
		rawProfile string
		rawOwner   string
		fields     []byte
	)
	err := row.Scan(&rawID, &rawProfile, &rawOwner, &form.Title, &fields,
		&form.IsActive, &form.CreatedAt, &form.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if form.ID, err = id.ParseFormID(rawID); err != nil {
		return nil, err
	}
	if form.ProfileID, err = id.ParseProfileID(rawProfile); err != nil {
		return nil, err
	}
	if form.OwnerID, err = id.ParseUserID(rawOwner); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fields, &form.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal form fields: %w", err)
	}
	return &form, nil
}

func scanSubmission(row rowScanner) (*models.ContactSubmission, error) {
	var (
		sub        models.ContactSubmission
		rawID      string
		rawForm    string
		rawProfile string
		data       []byte
		rawContact sql.NullString
	)
	err := row.Scan(&rawID, &rawForm, &rawProfile, &data, &sub.VisitorIP, &sub.VisitorUserAgent,
		&sub.VisitorReferrer, &sub.CaptchaVerified, &sub.IsRead, &rawContact,
		&sub.ExpiresAt, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	if sub.ID, err = id.ParseSubmissionID(rawID); err != nil {
		return nil, err
	}
	if sub.FormID, err = id.ParseFormID(rawForm); err != nil {
		return nil, err
	}
	if sub.ProfileID, err = id.ParseProfileID(rawProfile); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &sub.SubmissionData); err != nil {
		return nil, fmt.Errorf("unmarshal submission data: %w", err)
	}
	if rawContact.Valid {
		contactID, err := id.ParseContactID(rawContact.String)
		if err != nil {
			return nil, err
		}
		sub.CreatedContactID = &contactID
	}
	return &sub, nil
}

func nullableContactID(contactID *id.ContactID) any {
	if contactID == nil {
		return nil
	}
	return contactID.String()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
