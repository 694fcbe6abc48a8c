package models

import "time"

// AuditEntry represents one append-only audit ledger record. Actor and
// target fields are denormalized so entries stay readable after the
// referenced accounts or requests change or disappear.
type AuditEntry struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Action      string    `json:"action"`
	Description string    `json:"description"`

	ActorID   string `json:"actor_id"`
	ActorName string `json:"actor_name,omitempty"`

	TargetUserID    string `json:"target_user_id,omitempty"`
	TargetUserName  string `json:"target_user_name,omitempty"`
	TargetRequestID string `json:"target_request_id,omitempty"`
	TargetSummary   string `json:"target_summary,omitempty"`

	Metadata string `json:"metadata,omitempty"` // JSON
}

// Audit action constants (closed taxonomy)
const (
	ActionRequestCreated        = "request_created"
	ActionRequestApprovedLevel1 = "request_approved_level1"
	ActionRequestApprovedLevel2 = "request_approved_level2"
	ActionRequestRejected       = "request_rejected"
	ActionRequestDeleted        = "request_deleted"
	ActionCredentialIssued      = "credential_issued"
	ActionCredentialRegenerated = "credential_regenerated"
	ActionCredentialScanSuccess = "credential_scan_success"
	ActionCredentialScanFailed  = "credential_scan_failed"

	// Identity-management actions share the same ledger
	ActionUserCreated       = "user_created"
	ActionUserRoleChanged   = "user_role_changed"
	ActionUserStatusChanged = "user_status_changed"
	ActionUserDeleted       = "user_deleted"
	ActionPasswordChanged   = "password_changed"
)
