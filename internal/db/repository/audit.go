package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/adamscao/permitserver/internal/models"
)

// AuditRepository handles audit ledger data access. The ledger is
// append-only: no update or delete path exists here by design of the data
// model; retention pruning is an explicit administrative operation.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends a new audit entry
func (r *AuditRepository) Create(entry *models.AuditEntry) error {
	query := `
		INSERT INTO audit_logs (action, description, actor_id, actor_name,
			target_user_id, target_user_name, target_request_id, target_summary, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		entry.Action,
		entry.Description,
		entry.ActorID,
		nullString(entry.ActorName),
		nullString(entry.TargetUserID),
		nullString(entry.TargetUserName),
		nullString(entry.TargetRequestID),
		nullString(entry.TargetSummary),
		nullString(entry.Metadata),
	)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	entry.ID = id
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	return nil
}

// List lists audit entries with optional filters, newest first
func (r *AuditRepository) List(action, actorID, targetRequestID string, limit int) ([]*models.AuditEntry, error) {
	query := `
		SELECT id, timestamp, action, description, actor_id, actor_name,
		       target_user_id, target_user_name, target_request_id, target_summary, metadata
		FROM audit_logs
		WHERE 1=1
	`
	args := []interface{}{}

	if action != "" {
		query += " AND action = ?"
		args = append(args, action)
	}

	if actorID != "" {
		query += " AND actor_id = ?"
		args = append(args, actorID)
	}

	if targetRequestID != "" {
		query += " AND target_request_id = ?"
		args = append(args, targetRequestID)
	}

	query += " ORDER BY timestamp DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// CountByAction counts audit entries by action since the given time
func (r *AuditRepository) CountByAction(action string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM audit_logs
		WHERE action = ? AND timestamp >= ?
	`

	var count int
	err := r.db.QueryRow(query, action, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	return count, nil
}

// DeleteOld deletes audit entries older than the given date. Retention
// pruning only; normal operation never removes entries.
func (r *AuditRepository) DeleteOld(before time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM audit_logs WHERE timestamp < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit entries: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return count, nil
}

func scanAuditEntry(row rowScanner) (*models.AuditEntry, error) {
	entry := &models.AuditEntry{}
	var actorName, targetUserID, targetUserName, targetRequestID, targetSummary, metadata sql.NullString

	err := row.Scan(
		&entry.ID,
		&entry.Timestamp,
		&entry.Action,
		&entry.Description,
		&entry.ActorID,
		&actorName,
		&targetUserID,
		&targetUserName,
		&targetRequestID,
		&targetSummary,
		&metadata,
	)
	if err != nil {
		return nil, err
	}

	entry.ActorName = actorName.String
	entry.TargetUserID = targetUserID.String
	entry.TargetUserName = targetUserName.String
	entry.TargetRequestID = targetRequestID.String
	entry.TargetSummary = targetSummary.String
	entry.Metadata = metadata.String

	return entry, nil
}
