package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adamscao/permitserver/internal/models"
)

// Sentinel errors shared by the repositories.
var (
	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when an atomic read-decide-write lost the
	// race against a concurrent mutation of the same record. Callers
	// should re-read and re-apply.
	ErrConflict = errors.New("concurrent modification conflict")
)

// RequestRepository handles access request data access. All mutations of the
// approval state go through Apply so the read-decide-write cycle stays a
// single transaction per record.
type RequestRepository struct {
	db *sql.DB
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sql.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `id, requester_id, created_by_admin, creator_id,
	holder_name, holder_id, email, phone, program,
	activity_type, activity_description,
	vehicle_plate, vehicle_model, vehicle_color, garage_location, modification_notes,
	vehicle_photo_ref, vehicle_id_photo_ref,
	level1_approved, level1_approver_id, level1_approved_at, level1_comments,
	level2_approved, level2_approver_id, level2_approved_at, level2_comments,
	denial_reason, denial_level, denied_by, denied_at,
	status, version, created_at, updated_at`

// Create inserts a new request. The id is generated when empty and the
// cached status is recomputed before the write.
func (r *RequestRepository) Create(req *models.AccessRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now
	req.VehiclePlate = models.NormalizePlate(req.VehiclePlate)
	req.Recompute()

	query := `
		INSERT INTO requests (` + requestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query, requestArgs(req)...)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return nil
}

// Get retrieves a request by id
func (r *RequestRepository) Get(id string) (*models.AccessRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = ?`
	req, err := scanRequest(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

// ListByStatus lists requests whose status is in the given set, newest
// first. An empty set lists everything.
func (r *RequestRepository) ListByStatus(statuses ...models.RequestStatus) ([]*models.AccessRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM requests`
	args := []interface{}{}

	if len(statuses) > 0 {
		placeholders := strings.Repeat("?, ", len(statuses)-1) + "?"
		query += " WHERE status IN (" + placeholders + ")"
		for _, s := range statuses {
			args = append(args, string(s))
		}
	}

	query += " ORDER BY created_at DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.AccessRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}

	return requests, rows.Err()
}

// ListByRequester lists a requester's own requests, newest first
func (r *RequestRepository) ListByRequester(requesterID string) ([]*models.AccessRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE requester_id = ? ORDER BY created_at DESC`

	rows, err := r.db.Query(query, requesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.AccessRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}

	return requests, rows.Err()
}

// CountOpenByRequester counts a requester's non-terminal requests
func (r *RequestRepository) CountOpenByRequester(requesterID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM requests
		WHERE requester_id = ? AND status NOT IN (?, ?)
	`

	var count int
	err := r.db.QueryRow(query, requesterID,
		string(models.StatusApproved), string(models.StatusRejected)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count open requests: %w", err)
	}

	return count, nil
}

// Apply runs fn against the current state of the request and persists the
// mutated record, all inside one transaction. The update carries a version
// check; losing the race surfaces as ErrConflict, never as a silent
// overwrite.
func (r *RequestRepository) Apply(id string, fn func(*models.AccessRequest) error) (*models.AccessRequest, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = ?`
	req, err := scanRequest(tx.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	prevVersion := req.Version
	if err := fn(req); err != nil {
		return nil, err
	}
	req.Version = prevVersion + 1

	update := `
		UPDATE requests SET
			level1_approved = ?, level1_approver_id = ?, level1_approved_at = ?, level1_comments = ?,
			level2_approved = ?, level2_approver_id = ?, level2_approved_at = ?, level2_comments = ?,
			denial_reason = ?, denial_level = ?, denied_by = ?, denied_at = ?,
			status = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := tx.Exec(update,
		boolToInt(req.Level1.Approved), nullString(req.Level1.ApproverID), nullTime(req.Level1.ApprovedAt), nullString(req.Level1.Comments),
		boolToInt(req.Level2.Approved), nullString(req.Level2.ApproverID), nullTime(req.Level2.ApprovedAt), nullString(req.Level2.Comments),
		nullString(req.Denial.Reason), nullInt(req.Denial.Level), nullString(req.Denial.DeniedBy), nullTime(req.Denial.DeniedAt),
		string(req.Status), req.Version, req.UpdatedAt,
		id, prevVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrConflict
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit request update: %w", err)
	}

	return req, nil
}

// Delete removes a request by id
func (r *RequestRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM requests WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*models.AccessRequest, error) {
	req := &models.AccessRequest{}
	var (
		requesterID, creatorID                         sql.NullString
		createdByAdmin                                 int
		activityType, activityDescription              sql.NullString
		garageLocation, modificationNotes              sql.NullString
		vehiclePhotoRef, vehicleIDPhotoRef             sql.NullString
		l1Approved, l2Approved                         int
		l1Approver, l1Comments, l2Approver, l2Comments sql.NullString
		l1At, l2At                                     sql.NullTime
		denialReason, deniedBy                         sql.NullString
		denialLevel                                    sql.NullInt64
		deniedAt                                       sql.NullTime
		status                                         string
	)

	err := row.Scan(
		&req.ID, &requesterID, &createdByAdmin, &creatorID,
		&req.HolderName, &req.HolderID, &req.Email, &req.Phone, &req.Program,
		&activityType, &activityDescription,
		&req.VehiclePlate, &req.VehicleModel, &req.VehicleColor, &garageLocation, &modificationNotes,
		&vehiclePhotoRef, &vehicleIDPhotoRef,
		&l1Approved, &l1Approver, &l1At, &l1Comments,
		&l2Approved, &l2Approver, &l2At, &l2Comments,
		&denialReason, &denialLevel, &deniedBy, &deniedAt,
		&status, &req.Version, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.RequesterID = requesterID.String
	req.CreatedByAdmin = createdByAdmin == 1
	req.CreatorID = creatorID.String
	req.ActivityType = activityType.String
	req.ActivityDescription = activityDescription.String
	req.GarageLocation = garageLocation.String
	req.ModificationNotes = modificationNotes.String
	req.VehiclePhotoRef = vehiclePhotoRef.String
	req.VehicleIDPhotoRef = vehicleIDPhotoRef.String

	req.Level1 = models.ApprovalRecord{
		Approved:   l1Approved == 1,
		ApproverID: l1Approver.String,
		Comments:   l1Comments.String,
	}
	if l1At.Valid {
		t := l1At.Time
		req.Level1.ApprovedAt = &t
	}

	req.Level2 = models.ApprovalRecord{
		Approved:   l2Approved == 1,
		ApproverID: l2Approver.String,
		Comments:   l2Comments.String,
	}
	if l2At.Valid {
		t := l2At.Time
		req.Level2.ApprovedAt = &t
	}

	req.Denial = models.DenialRecord{
		Reason:   denialReason.String,
		Level:    int(denialLevel.Int64),
		DeniedBy: deniedBy.String,
	}
	if deniedAt.Valid {
		t := deniedAt.Time
		req.Denial.DeniedAt = &t
	}

	req.Status = models.RequestStatus(status)

	return req, nil
}

func requestArgs(req *models.AccessRequest) []interface{} {
	return []interface{}{
		req.ID, nullString(req.RequesterID), boolToInt(req.CreatedByAdmin), nullString(req.CreatorID),
		req.HolderName, req.HolderID, req.Email, req.Phone, req.Program,
		nullString(req.ActivityType), nullString(req.ActivityDescription),
		req.VehiclePlate, req.VehicleModel, req.VehicleColor, nullString(req.GarageLocation), nullString(req.ModificationNotes),
		nullString(req.VehiclePhotoRef), nullString(req.VehicleIDPhotoRef),
		boolToInt(req.Level1.Approved), nullString(req.Level1.ApproverID), nullTime(req.Level1.ApprovedAt), nullString(req.Level1.Comments),
		boolToInt(req.Level2.Approved), nullString(req.Level2.ApproverID), nullTime(req.Level2.ApprovedAt), nullString(req.Level2.Comments),
		nullString(req.Denial.Reason), nullInt(req.Denial.Level), nullString(req.Denial.DeniedBy), nullTime(req.Denial.DeniedAt),
		string(req.Status), req.Version, req.CreatedAt, req.UpdatedAt,
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) interface{} {
	if n == 0 {
		return nil
	}
	return n
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
