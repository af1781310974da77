package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"twym/internal/files/models"
	id "twym/pkg/domain"
	"twym/pkg/platform/sentinel"
	"twym/pkg/platform/tx"
)

// PostgresStore persists file records and contact-file associations.
//
// Expected schema (see migrations):
//
//	files(id uuid pk, owner_id uuid, filename text, content_type text,
//	  size_bytes bigint, content_hash text, storage_path text, url text,
//	  ocr_text text null, ocr_confidence double precision null,
//	  ocr_language text null, ocr_engine text null, created_at timestamptz)
//	contact_files(id uuid pk,
//	  contact_id uuid null references contacts on delete cascade,
//	  file_id uuid references files, doc_type text, side text,
//	  is_active bool, processing_status text, ocr_text text null,
//	  ocr_confidence double precision null, ocr_language text null,
//	  ocr_engine text null, created_at timestamptz, updated_at timestamptz)
//
// contact_id is null for cards uploaded before the contact exists. The
// single-active-slot rule is backed by a partial unique index, which never
// applies to null contact_id rows:
//
//	CREATE UNIQUE INDEX contact_files_active_slot
//	  ON contact_files (contact_id, doc_type, side) WHERE is_active;
//
// and the OCR cache lookup by:
//
//	CREATE INDEX files_owner_hash ON files (owner_id, content_hash);
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

const fileColumns = `id, owner_id, filename, content_type, size_bytes, content_hash,
	storage_path, url, ocr_text, ocr_confidence, ocr_language, ocr_engine, created_at`

func (s *PostgresStore) CreateFile(ctx context.Context, file *models.StoredFile) error {
	query := `
		INSERT INTO files (` + fileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	text, confidence, language, engine := ocrFields(file.OCR)
	_, err := s.q(ctx).ExecContext(ctx, query,
		file.ID.String(),
		file.OwnerID.String(),
		file.Filename,
		file.ContentType,
		file.SizeBytes,
		file.ContentHash,
		file.StoragePath,
		file.URL,
		text, confidence, language, engine,
		file.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveFile(ctx context.Context, file *models.StoredFile) error {
	query := `
		UPDATE files SET
			ocr_text = $2, ocr_confidence = $3, ocr_language = $4, ocr_engine = $5
		WHERE id = $1
	`
	text, confidence, language, engine := ocrFields(file.OCR)
	result, err := s.q(ctx).ExecContext(ctx, query,
		file.ID.String(), text, confidence, language, engine)
	if err != nil {
		return fmt.Errorf("update file: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("file %s: %w", file.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) FindFileByID(ctx context.Context, fileID id.FileID) (*models.StoredFile, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`
	file, err := scanFile(s.q(ctx).QueryRowContext(ctx, query, fileID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("file %s: %w", fileID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("select file: %w", err)
	}
	return file, nil
}

func (s *PostgresStore) FindCachedOCR(ctx context.Context, ownerID id.UserID, contentHash string) (*models.StoredFile, error) {
	query := `
		SELECT ` + fileColumns + ` FROM files
		WHERE owner_id = $1 AND content_hash = $2 AND ocr_text IS NOT NULL
		ORDER BY created_at DESC
		LIMIT 1
	`
	file, err := scanFile(s.q(ctx).QueryRowContext(ctx, query, ownerID.String(), contentHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("cached ocr result: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("select cached ocr: %w", err)
	}
	return file, nil
}

const contactFileColumns = `id, contact_id, file_id, doc_type, side, is_active,
	processing_status, ocr_text, ocr_confidence, ocr_language, ocr_engine,
	created_at, updated_at`

func (s *PostgresStore) CreateContactFile(ctx context.Context, cf *models.ContactFile) error {
	query := `
		INSERT INTO contact_files (` + contactFileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	text, confidence, language, engine := ocrFields(cf.OCR)
	_, err := s.q(ctx).ExecContext(ctx, query,
		cf.ID.String(),
		nullableContactID(cf.ContactID),
		cf.FileID.String(),
		string(cf.DocType),
		string(cf.Side),
		cf.IsActive,
		string(cf.ProcessingStatus),
		text, confidence, language, engine,
		cf.CreatedAt,
		cf.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("active file already exists for slot: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert contact file: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveContactFile(ctx context.Context, cf *models.ContactFile) error {
	query := `
		UPDATE contact_files SET
			is_active = $2, processing_status = $3, ocr_text = $4,
			ocr_confidence = $5, ocr_language = $6, ocr_engine = $7, updated_at = $8
		WHERE id = $1
	`
	text, confidence, language, engine := ocrFields(cf.OCR)
	result, err := s.q(ctx).ExecContext(ctx, query,
		cf.ID.String(),
		cf.IsActive,
		string(cf.ProcessingStatus),
		text, confidence, language, engine,
		cf.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update contact file: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("contact file %s: %w", cf.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) FindContactFileByID(ctx context.Context, cfID id.ContactFileID) (*models.ContactFile, error) {
	query := `SELECT ` + contactFileColumns + ` FROM contact_files WHERE id = $1`
	cf, err := scanContactFile(s.q(ctx).QueryRowContext(ctx, query, cfID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("contact file %s: %w", cfID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("select contact file: %w", err)
	}
	return cf, nil
}

func (s *PostgresStore) ListByContact(ctx context.Context, contactID id.ContactID) ([]*models.ContactFile, error) {
	query := `
		SELECT ` + contactFileColumns + ` FROM contact_files
		WHERE contact_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, contactID.String())
	if err != nil {
		return nil, fmt.Errorf("select contact files: %w", err)
	}
	defer rows.Close()

	var out []*models.ContactFile
	for rows.Next() {
		cf, err := scanContactFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact file: %w", err)
		}
		out = append(out, cf)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeactivateActive(ctx context.Context, contactID id.ContactID, docType models.DocType, side models.CardSide) error {
	query := `
		UPDATE contact_files SET is_active = FALSE
		WHERE contact_id = $1 AND doc_type = $2 AND side = $3 AND is_active
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		contactID.String(), string(docType), string(side))
	if err != nil {
		return fmt.Errorf("deactivate contact file slot: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*models.StoredFile, error) {
	var (
		file       models.StoredFile
		rawID      string
		rawOwner   string
		text       sql.NullString
		confidence sql.NullFloat64
		language   sql.NullString
		engine     sql.NullString
	)
	err := row.Scan(
		&rawID, &rawOwner, &file.Filename, &file.ContentType, &file.SizeBytes,
		&file.ContentHash, &file.StoragePath, &file.URL,
		&text, &confidence, &language, &engine, &file.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if file.ID, err = id.ParseFileID(rawID); err != nil {
		return nil, err
	}
	if file.OwnerID, err = id.ParseUserID(rawOwner); err != nil {
		return nil, err
	}
	file.OCR = ocrFromFields(text, confidence, language, engine)
	return &file, nil
}

func scanContactFile(row rowScanner) (*models.ContactFile, error) {
	var (
		cf         models.ContactFile
		rawID      string
		rawContact sql.NullString
		rawFile    string
		docType    string
		side       string
		status     string
		text       sql.NullString
		confidence sql.NullFloat64
		language   sql.NullString
		engine     sql.NullString
	)
	err := row.Scan(
		&rawID, &rawContact, &rawFile, &docType, &side, &cf.IsActive, &status,
		&text, &confidence, &language, &engine, &cf.CreatedAt, &cf.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if cf.ID, err = id.ParseContactFileID(rawID); err != nil {
		return nil, err
	}
	if rawContact.Valid {
		contactID, err := id.ParseContactID(rawContact.String)
		if err != nil {
			return nil, err
		}
		cf.ContactID = &contactID
	}
	if cf.FileID, err = id.ParseFileID(rawFile); err != nil {
		return nil, err
	}
	cf.DocType = models.DocType(docType)
	cf.Side = models.CardSide(side)
	cf.ProcessingStatus = models.ProcessingStatus(status)
	cf.OCR = ocrFromFields(text, confidence, language, engine)
	return &cf, nil
}

func ocrFields(ocr *models.OCRResult) (sql.NullString, sql.NullFloat64, sql.NullString, sql.NullString) {
	if ocr == nil {
		return sql.NullString{}, sql.NullFloat64{}, sql.NullString{}, sql.NullString{}
	}
	return sql.NullString{String: ocr.RawText, Valid: true},
		sql.NullFloat64{Float64: ocr.Confidence, Valid: true},
		sql.NullString{String: ocr.Language, Valid: true},
		sql.NullString{String: ocr.Engine, Valid: true}
}

func ocrFromFields(text sql.NullString, confidence sql.NullFloat64, language, engine sql.NullString) *models.OCRResult {
	if !text.Valid {
		return nil
	}
	return &models.OCRResult{
		RawText:    text.String,
		Confidence: confidence.Float64,
		Language:   language.String,
		Engine:     engine.String,
	}
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
