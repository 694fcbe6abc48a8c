package models

import (
	"strings"
	"time"
)

// RequestStatus is the derived approval state of an access request.
// It is a cache of DeriveStatus over the approval and denial sub-records
// and must never be set independently.
type RequestStatus string

const (
	StatusPending        RequestStatus = "pending"
	StatusLevel1Approved RequestStatus = "level1_approved"
	StatusLevel2Approved RequestStatus = "level2_approved"
	StatusApproved       RequestStatus = "approved"
	StatusRejected       RequestStatus = "rejected"
)

// ApprovalRecord holds one authority level's decision slot.
type ApprovalRecord struct {
	Approved   bool       `json:"approved"`
	ApproverID string     `json:"approver_id,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	Comments   string     `json:"comments,omitempty"`
}

// DenialRecord holds the rejection details. A request is rejected iff
// DeniedBy is non-empty.
type DenialRecord struct {
	Reason   string     `json:"reason,omitempty"`
	Level    int        `json:"level,omitempty"`
	DeniedBy string     `json:"denied_by,omitempty"`
	DeniedAt *time.Time `json:"denied_at,omitempty"`
}

// Present reports whether a denial has been recorded.
func (d DenialRecord) Present() bool {
	return d.DeniedBy != ""
}

// AccessRequest represents one vehicle permit application.
type AccessRequest struct {
	ID string `json:"id"`

	// RequesterID is empty when an authority filed the request on
	// someone's behalf; CreatedByAdmin + CreatorID record who did.
	RequesterID    string `json:"requester_id,omitempty"`
	CreatedByAdmin bool   `json:"created_by_admin"`
	CreatorID      string `json:"creator_id,omitempty"`

	HolderName string `json:"holder_name"`
	HolderID   string `json:"holder_id"` // national id
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Program    string `json:"program"` // degree program / affiliation

	ActivityType        string `json:"activity_type,omitempty"`
	ActivityDescription string `json:"activity_description,omitempty"`

	VehiclePlate      string `json:"vehicle_plate"`
	VehicleModel      string `json:"vehicle_model"`
	VehicleColor      string `json:"vehicle_color"`
	GarageLocation    string `json:"garage_location,omitempty"`
	ModificationNotes string `json:"modification_notes,omitempty"`

	VehiclePhotoRef   string `json:"vehicle_photo_ref,omitempty"`
	VehicleIDPhotoRef string `json:"vehicle_id_photo_ref,omitempty"`

	Level1 ApprovalRecord `json:"level1"`
	Level2 ApprovalRecord `json:"level2"`
	Denial DenialRecord   `json:"denial"`

	Status RequestStatus `json:"status"`

	// Version increments on every persisted mutation and backs the
	// optimistic read-decide-write check in the repository.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeriveStatus is the single legal mapping from the approval and denial
// sub-records to a status value.
func DeriveStatus(level1Approved, level2Approved, denied bool) RequestStatus {
	switch {
	case denied:
		return StatusRejected
	case level1Approved && level2Approved:
		return StatusApproved
	case level1Approved:
		return StatusLevel1Approved
	case level2Approved:
		return StatusLevel2Approved
	default:
		return StatusPending
	}
}

// Recompute refreshes the cached Status from the sub-records.
func (r *AccessRequest) Recompute() {
	r.Status = DeriveStatus(r.Level1.Approved, r.Level2.Approved, r.Denial.Present())
}

// Terminal reports whether Approve/Reject actions are no longer legal.
func (r *AccessRequest) Terminal() bool {
	return r.Status == StatusApproved || r.Status == StatusRejected
}

// NormalizePlate uppercases and trims a vehicle plate for storage and
// comparison.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}
