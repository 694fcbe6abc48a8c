package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/adamscao/permitserver/internal/models"
)

// CredentialRepository handles credential record data access
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

const credentialColumns = `id, request_id, serial, payload, image_ref, document_ref, active, issued_at, expires_at`

// ReplaceActive retires any active credential for the request and inserts
// the given credential as the active one, in a single transaction. Together
// with the partial unique index on (request_id) WHERE active = 1 this keeps
// the "at most one active credential per request" invariant even under
// duplicated issuance triggers.
func (r *CredentialRepository) ReplaceActive(cred *models.Credential) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`UPDATE credentials SET active = 0 WHERE request_id = ? AND active = 1`, cred.RequestID)
	if err != nil {
		return fmt.Errorf("failed to retire previous credential: %w", err)
	}

	if cred.IssuedAt.IsZero() {
		cred.IssuedAt = time.Now().UTC()
	}
	cred.Active = true

	result, err := tx.Exec(`
		INSERT INTO credentials (request_id, serial, payload, image_ref, document_ref, active, issued_at, expires_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
	`,
		cred.RequestID,
		cred.Serial,
		cred.Payload,
		nullString(cred.ImageRef),
		nullString(cred.DocumentRef),
		cred.IssuedAt,
		nullTime(cred.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create credential: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	cred.ID = id

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit credential replacement: %w", err)
	}

	return nil
}

// GetActiveByRequest retrieves the active credential for a request
func (r *CredentialRepository) GetActiveByRequest(requestID string) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE request_id = ? AND active = 1`

	cred, err := scanCredential(r.db.QueryRow(query, requestID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return cred, nil
}

// GetBySerial retrieves a credential by its serial
func (r *CredentialRepository) GetBySerial(serial string) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE serial = ?`

	cred, err := scanCredential(r.db.QueryRow(query, serial))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return cred, nil
}

// ListByRequest lists all credentials ever issued for a request, newest
// first
func (r *CredentialRepository) ListByRequest(requestID string) ([]*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE request_id = ? ORDER BY issued_at DESC, id DESC`

	rows, err := r.db.Query(query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	var creds []*models.Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		creds = append(creds, cred)
	}

	return creds, rows.Err()
}

// DeactivateByRequest retires every credential associated with a request.
// Used by the request delete cascade.
func (r *CredentialRepository) DeactivateByRequest(requestID string) error {
	_, err := r.db.Exec(`UPDATE credentials SET active = 0 WHERE request_id = ?`, requestID)
	if err != nil {
		return fmt.Errorf("failed to deactivate credentials: %w", err)
	}
	return nil
}

func scanCredential(row rowScanner) (*models.Credential, error) {
	cred := &models.Credential{}
	var (
		imageRef, documentRef sql.NullString
		active                int
		expiresAt             sql.NullTime
	)

	err := row.Scan(
		&cred.ID,
		&cred.RequestID,
		&cred.Serial,
		&cred.Payload,
		&imageRef,
		&documentRef,
		&active,
		&cred.IssuedAt,
		&expiresAt,
	)
	if err != nil {
		return nil, err
	}

	cred.ImageRef = imageRef.String
	cred.DocumentRef = documentRef.String
	cred.Active = active == 1
	if expiresAt.Valid {
		t := expiresAt.Time
		cred.ExpiresAt = &t
	}

	return cred, nil
}
