package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"twym/internal/contacts/models"
	id "twym/pkg/domain"
	"twym/pkg/platform/sentinel"
	"twym/pkg/platform/tx"
)

// PostgresStore persists contacts in PostgreSQL.
//
// Expected schema (see migrations):
//
//	contacts(id uuid pk, owner_id uuid, linked_user_id uuid null,
//	  contact_type text, name text, title text, department text,
//	  company text, acquired_via text, scanned_type text null,
//	  event_id uuid null, lounge_session_id uuid null,
//	  contact_submission_id uuid null, meeting_notes text,
//	  is_favorite bool, is_pinned bool, automatic_tags text[],
//	  user_tags text[], contact_hash text, created_at timestamptz,
//	  updated_at timestamptz, deleted_at timestamptz null)
//	contact_phones / contact_emails / contact_addresses / contact_links
//	  (contact_id uuid references contacts on delete cascade, position int, ...)
//
// The duplicate-detection invariant is backed by a partial unique index:
//
//	CREATE UNIQUE INDEX contacts_owner_hash_live
//	  ON contacts (owner_id, contact_hash) WHERE deleted_at IS NULL;
//
// which turns the lookup-then-insert race into a unique violation that this
// store reports as sentinel.ErrConflict.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// querier abstracts over *sql.DB and *sql.Tx so methods join an ambient
// transaction when one is in the context.
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

const contactColumns = `id, owner_id, linked_user_id, contact_type, name, title, department,
	company, acquired_via, scanned_type, event_id, lounge_session_id,
	contact_submission_id, meeting_notes, is_favorite, is_pinned,
	automatic_tags, user_tags, contact_hash, created_at, updated_at, deleted_at`

func (s *PostgresStore) Create(ctx context.Context, contact *models.Contact) error {
	query := `
		INSERT INTO contacts (` + contactColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		contact.ID.String(),
		contact.OwnerID.String(),
		nullableID(contact.LinkedUserID),
		string(contact.ContactType),
		contact.Name,
		contact.Title,
		contact.Department,
		contact.Company,
		string(contact.AcquiredVia),
		nullableScanType(contact.ScannedType),
		nullableID(contact.EventID),
		nullableID(contact.LoungeSessionID),
		nullableID(contact.ContactSubmissionID),
		contact.MeetingNotes,
		contact.IsFavorite,
		contact.IsPinned,
		pq.Array(contact.AutomaticTags),
		pq.Array(contact.UserTags),
		contact.ContactHash,
		contact.CreatedAt,
		contact.UpdatedAt,
		contact.DeletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("contact hash already exists for owner: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert contact: %w", err)
	}
	return s.replaceChildren(ctx, contact)
}

func (s *PostgresStore) Save(ctx context.Context, contact *models.Contact) error {
	query := `
		UPDATE contacts SET
			linked_user_id = $2, contact_type = $3, name = $4, title = $5,
			department = $6, company = $7, acquired_via = $8, scanned_type = $9,
			event_id = $10, lounge_session_id = $11, contact_submission_id = $12,
			meeting_notes = $13, is_favorite = $14, is_pinned = $15,
			automatic_tags = $16, user_tags = $17, contact_hash = $18,
			updated_at = $19, deleted_at = $20
		WHERE id = $1
	`
	result, err := s.q(ctx).ExecContext(ctx, query,
		contact.ID.String(),
		nullableID(contact.LinkedUserID),
		string(contact.ContactType),
		contact.Name,
		contact.Title,
		contact.Department,
		contact.Company,
		string(contact.AcquiredVia),
		nullableScanType(contact.ScannedType),
		nullableID(contact.EventID),
		nullableID(contact.LoungeSessionID),
		nullableID(contact.ContactSubmissionID),
		contact.MeetingNotes,
		contact.IsFavorite,
		contact.IsPinned,
		pq.Array(contact.AutomaticTags),
		pq.Array(contact.UserTags),
		contact.ContactHash,
		contact.UpdatedAt,
		contact.DeletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("contact hash already exists for owner: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("update contact: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update contact rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("contact %s: %w", contact.ID, sentinel.ErrNotFound)
	}
	return s.replaceChildren(ctx, contact)
}

func (s *PostgresStore) FindByID(ctx context.Context, contactID id.ContactID) (*models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1`
	contact, err := scanContact(s.q(ctx).QueryRowContext(ctx, query, contactID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("contact %s: %w", contactID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find contact: %w", err)
	}
	if err := s.hydrateChildren(ctx, []*models.Contact{contact}); err != nil {
		return nil, err
	}
	return contact, nil
}

func (s *PostgresStore) FindByOwner(ctx context.Context, ownerID id.UserID) ([]*models.Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE owner_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`
	return s.queryContacts(ctx, query, ownerID.String())
}

func (s *PostgresStore) FindByHash(ctx context.Context, ownerID id.UserID, hash string) (*models.Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE owner_id = $1 AND contact_hash = $2 AND deleted_at IS NULL
		LIMIT 1
	`
	contact, err := scanContact(s.q(ctx).QueryRowContext(ctx, query, ownerID.String(), hash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("contact hash: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find contact by hash: %w", err)
	}
	if err := s.hydrateChildren(ctx, []*models.Contact{contact}); err != nil {
		return nil, err
	}
	return contact, nil
}

func (s *PostgresStore) Search(ctx context.Context, ownerID id.UserID, searchQuery models.SearchQuery) ([]*models.Contact, error) {
	where := []string{"owner_id = $1", "deleted_at IS NULL"}
	args := []any{ownerID.String()}

	if searchQuery.Text != "" {
		args = append(args, "%"+searchQuery.Text+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(`(
			name ILIKE $%d OR company ILIKE $%d OR title ILIKE $%d OR department ILIKE $%d
			OR EXISTS (SELECT 1 FROM contact_emails e WHERE e.contact_id = contacts.id AND e.address ILIKE $%d)
			OR EXISTS (SELECT 1 FROM contact_phones p WHERE p.contact_id = contacts.id AND p.number LIKE $%d)
		)`, n, n, n, n, n, n))
	}
	if len(searchQuery.Tags) > 0 {
		// Query tags arrive lowercased; compare stored tags lowercased too.
		args = append(args, pq.Array(searchQuery.Tags))
		n := len(args)
		where = append(where, fmt.Sprintf(`EXISTS (
			SELECT 1
			FROM unnest(coalesce(automatic_tags, '{}') || coalesce(user_tags, '{}')) AS tag
			WHERE lower(tag) = ANY($%d)
		)`, n))
	}

	query := `SELECT ` + contactColumns + ` FROM contacts WHERE ` +
		strings.Join(where, " AND ") + " ORDER BY " + orderClause(searchQuery.Sort)

	return s.queryContacts(ctx, query, args...)
}

// orderClause mirrors SortContacts: every mode has a defined secondary
// sort so result order stays stable across pages.
func orderClause(mode models.SortMode) string {
	switch mode {
	case models.SortPinned:
		return "is_pinned DESC, created_at DESC"
	case models.SortFavorite:
		return "is_favorite DESC, created_at DESC"
	case models.SortName:
		return "lower(name) ASC, created_at DESC"
	case models.SortTag:
		return "lower(COALESCE(automatic_tags[1], user_tags[1])) ASC NULLS LAST, lower(name) ASC"
	case models.SortScanned:
		return "(acquired_via = 'scanned') DESC, created_at DESC"
	default:
		return "created_at DESC, lower(name) ASC"
	}
}

func (s *PostgresStore) ListSoftDeleted(ctx context.Context) ([]*models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE deleted_at IS NOT NULL`
	return s.queryContacts(ctx, query)
}

func (s *PostgresStore) HardDelete(ctx context.Context, contactID id.ContactID) error {
	// Child rows go with the contact via ON DELETE CASCADE.
	if _, err := s.q(ctx).ExecContext(ctx, `DELETE FROM contacts WHERE id = $1`, contactID.String()); err != nil {
		return fmt.Errorf("hard delete contact: %w", err)
	}
	return nil
}

// WithinTx begins a transaction and stores it in the context so nested
// store calls join it. Nested WithinTx calls reuse the outer transaction.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := tx.From(ctx); ok {
		return fn(ctx)
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin contact tx: %w", err)
	}
	defer func() {
		_ = dbTx.Rollback()
	}()

	if err := fn(tx.WithTx(ctx, dbTx)); err != nil {
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit contact tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) queryContacts(ctx context.Context, query string, args ...any) ([]*models.Contact, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}
	defer rows.Close()

	var out []*models.Contact
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	if err := s.hydrateChildren(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// hydrateChildren loads the four child collections for a result set in
// parallel; each query fetches all rows for the batch in one round trip.
func (s *PostgresStore) hydrateChildren(ctx context.Context, contacts []*models.Contact) error {
	if len(contacts) == 0 {
		return nil
	}

	byID := make(map[string]*models.Contact, len(contacts))
	ids := make([]string, 0, len(contacts))
	for _, contact := range contacts {
		key := contact.ID.String()
		byID[key] = contact
		ids = append(ids, key)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.loadPhones(gctx, ids, byID) })
	g.Go(func() error { return s.loadEmails(gctx, ids, byID) })
	g.Go(func() error { return s.loadAddresses(gctx, ids, byID) })
	g.Go(func() error { return s.loadLinks(gctx, ids, byID) })
	return g.Wait()
}

func (s *PostgresStore) loadPhones(ctx context.Context, ids []string, byID map[string]*models.Contact) error {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT contact_id, number, type, is_primary
		FROM contact_phones WHERE contact_id = ANY($1) ORDER BY contact_id, position
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load phones: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var contactID string
		var phone models.PhoneNumber
		if err := rows.Scan(&contactID, &phone.Number, &phone.Type, &phone.IsPrimary); err != nil {
			return fmt.Errorf("scan phone: %w", err)
		}
		byID[contactID].Phones = append(byID[contactID].Phones, phone)
	}
	return rows.Err()
}

func (s *PostgresStore) loadEmails(ctx context.Context, ids []string, byID map[string]*models.Contact) error {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT contact_id, address, type, is_primary
		FROM contact_emails WHERE contact_id = ANY($1) ORDER BY contact_id, position
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load emails: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var contactID string
		var email models.EmailAddress
		if err := rows.Scan(&contactID, &email.Address, &email.Type, &email.IsPrimary); err != nil {
			return fmt.Errorf("scan email: %w", err)
		}
		byID[contactID].Emails = append(byID[contactID].Emails, email)
	}
	return rows.Err()
}

func (s *PostgresStore) loadAddresses(ctx context.Context, ids []string, byID map[string]*models.Contact) error {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT contact_id, street, city, country, postal_code, type, is_primary
		FROM contact_addresses WHERE contact_id = ANY($1) ORDER BY contact_id, position
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load addresses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var contactID string
		var addr models.Address
		if err := rows.Scan(&contactID, &addr.Street, &addr.City, &addr.Country, &addr.PostalCode, &addr.Type, &addr.IsPrimary); err != nil {
			return fmt.Errorf("scan address: %w", err)
		}
		byID[contactID].Addresses = append(byID[contactID].Addresses, addr)
	}
	return rows.Err()
}

func (s *PostgresStore) loadLinks(ctx context.Context, ids []string, byID map[string]*models.Contact) error {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT contact_id, url, type, is_primary
		FROM contact_links WHERE contact_id = ANY($1) ORDER BY contact_id, position
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load links: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var contactID string
		var link models.Link
		if err := rows.Scan(&contactID, &link.URL, &link.Type, &link.IsPrimary); err != nil {
			return fmt.Errorf("scan link: %w", err)
		}
		byID[contactID].Links = append(byID[contactID].Links, link)
	}
	return rows.Err()
}

// replaceChildren rewrites the child collections. Child rows are small and
// few per contact; delete-and-reinsert keeps ordering authoritative.
func (s *PostgresStore) replaceChildren(ctx context.Context, contact *models.Contact) error {
	q := s.q(ctx)
	contactID := contact.ID.String()

	for _, table := range []string{"contact_phones", "contact_emails", "contact_addresses", "contact_links"} {
		if _, err := q.ExecContext(ctx, `DELETE FROM `+table+` WHERE contact_id = $1`, contactID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for i, phone := range contact.Phones {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO contact_phones (contact_id, position, number, type, is_primary)
			VALUES ($1, $2, $3, $4, $5)
		`, contactID, i, phone.Number, string(phone.Type), phone.IsPrimary); err != nil {
			return fmt.Errorf("insert phone: %w", err)
		}
	}
	for i, email := range contact.Emails {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO contact_emails (contact_id, position, address, type, is_primary)
			VALUES ($1, $2, $3, $4, $5)
		`, contactID, i, email.Address, string(email.Type), email.IsPrimary); err != nil {
			return fmt.Errorf("insert email: %w", err)
		}
	}
	for i, addr := range contact.Addresses {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO contact_addresses (contact_id, position, street, city, country, postal_code, type, is_primary)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, contactID, i, addr.Street, addr.City, addr.Country, addr.PostalCode, string(addr.Type), addr.IsPrimary); err != nil {
			return fmt.Errorf("insert address: %w", err)
		}
	}
	for i, link := range contact.Links {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO contact_links (contact_id, position, url, type, is_primary)
			VALUES ($1, $2, $3, $4, $5)
		`, contactID, i, link.URL, string(link.Type), link.IsPrimary); err != nil {
			return fmt.Errorf("insert link: %w", err)
		}
	}
	return nil
}

type contactRow interface {
	Scan(dest ...any) error
}

func scanContact(row contactRow) (*models.Contact, error) {
	var (
		contact                                            models.Contact
		rawID, rawOwnerID                                  string
		linkedUserID, scannedType                          sql.NullString
		eventID, loungeID, submissionID                    sql.NullString
		contactType, acquiredVia                           string
		deletedAt                                          sql.NullTime
		automaticTags, userTags                            pq.StringArray
	)
	if err := row.Scan(
		&rawID, &rawOwnerID, &linkedUserID, &contactType, &contact.Name,
		&contact.Title, &contact.Department, &contact.Company, &acquiredVia,
		&scannedType, &eventID, &loungeID, &submissionID,
		&contact.MeetingNotes, &contact.IsFavorite, &contact.IsPinned,
		&automaticTags, &userTags, &contact.ContactHash,
		&contact.CreatedAt, &contact.UpdatedAt, &deletedAt,
	); err != nil {
		return nil, err
	}

	parsedID, err := id.ParseContactID(rawID)
	if err != nil {
		return nil, err
	}
	parsedOwner, err := id.ParseUserID(rawOwnerID)
	if err != nil {
		return nil, err
	}
	contact.ID = parsedID
	contact.OwnerID = parsedOwner
	contact.ContactType = models.ContactType(contactType)
	contact.AcquiredVia = models.AcquisitionChannel(acquiredVia)
	contact.AutomaticTags = automaticTags
	contact.UserTags = userTags

	if linkedUserID.Valid {
		parsed, err := id.ParseUserID(linkedUserID.String)
		if err != nil {
			return nil, err
		}
		contact.LinkedUserID = &parsed
	}
	if scannedType.Valid {
		st := models.ScanType(scannedType.String)
		contact.ScannedType = &st
	}
	if eventID.Valid {
		parsed, err := id.ParseEventID(eventID.String)
		if err != nil {
			return nil, err
		}
		contact.EventID = &parsed
	}
	if loungeID.Valid {
		parsed, err := id.ParseLoungeID(loungeID.String)
		if err != nil {
			return nil, err
		}
		contact.LoungeSessionID = &parsed
	}
	if submissionID.Valid {
		parsed, err := id.ParseSubmissionID(submissionID.String)
		if err != nil {
			return nil, err
		}
		contact.ContactSubmissionID = &parsed
	}
	if deletedAt.Valid {
		contact.DeletedAt = &deletedAt.Time
	}
	return &contact, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullableID(v fmt.Stringer) any {
	if v == nil || isNilStringer(v) {
		return nil
	}
	return v.String()
}

func isNilStringer(v fmt.Stringer) bool {
	switch t := v.(type) {
	case *id.UserID:
		return t == nil
	case *id.EventID:
		return t == nil
	case *id.LoungeID:
		return t == nil
	case *id.SubmissionID:
		return t == nil
	default:
		return false
	}
}

func nullableScanType(st *models.ScanType) any {
	if st == nil {
		return nil
	}
	return string(*st)
}
