// Package checkpoint judges scanned credentials at the physical gate. The
// scanned payload is only a hint: the decision always re-checks the live
// credential and request records.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adamscao/permitserver/internal/credential"
	"github.com/adamscao/permitserver/internal/db/repository"
	"github.com/adamscao/permitserver/internal/models"
)

// DenyReason classifies why a scan was denied.
type DenyReason string

const (
	DenyMalformedPayload   DenyReason = "malformed_payload"
	DenyCredentialNotFound DenyReason = "credential_not_found"
	DenyExpired            DenyReason = "expired"
	DenyRequestNotApproved DenyReason = "request_not_approved"
)

// SubjectSummary is the sanitized identity/vehicle context shown to the
// gate operator.
type SubjectSummary struct {
	HolderName        string     `json:"holder_name"`
	HolderID          string     `json:"holder_id"`
	Plate             string     `json:"plate"`
	VehicleModel      string     `json:"vehicle_model,omitempty"`
	VehicleColor      string     `json:"vehicle_color,omitempty"`
	VehiclePhotoRef   string     `json:"vehicle_photo_ref,omitempty"`
	VehicleIDPhotoRef string     `json:"vehicle_id_photo_ref,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
}

// Decision is the outcome of a checkpoint scan.
type Decision struct {
	Granted bool
	// Reason is set on denials.
	Reason DenyReason
	// Summary is set on grants, and on denials where enough context was
	// resolved for the operator (expiry, stale status).
	Summary *SubjectSummary
	// RequestStatus carries the live status on request_not_approved
	// denials.
	RequestStatus models.RequestStatus
}

// Operator identifies who is running the scan.
type Operator struct {
	ID   string
	Name string
}

// CredentialStore resolves active credentials. Satisfied by
// repository.CredentialRepository.
type CredentialStore interface {
	GetActiveByRequest(requestID string) (*models.Credential, error)
}

// RequestStore resolves live requests. Satisfied by
// repository.RequestRepository.
type RequestStore interface {
	Get(id string) (*models.AccessRequest, error)
}

// Auditor appends scan outcomes to the audit ledger. Satisfied by
// repository.AuditRepository.
type Auditor interface {
	Create(entry *models.AuditEntry) error
}

// Validator resolves scanned payloads and decides physical access.
type Validator struct {
	credentials CredentialStore
	requests    RequestStore
	auditor     Auditor
	logger      *slog.Logger
	now         func() time.Time
}

// NewValidator creates a new checkpoint validator
func NewValidator(credentials CredentialStore, requests RequestStore, auditor Auditor, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		credentials: credentials,
		requests:    requests,
		auditor:     auditor,
		logger:      logger,
		now:         time.Now,
	}
}

// Validate judges a scanned payload right now. Every scan, grant or deny,
// is appended to the audit ledger best-effort: a failed audit write never
// changes the decision.
func (v *Validator) Validate(rawPayload string, op Operator) (Decision, error) {
	decision, err := v.resolve(rawPayload)
	if err != nil {
		return Decision{}, err
	}

	v.recordScan(op, rawPayload, decision)
	return decision, nil
}

func (v *Validator) resolve(rawPayload string) (Decision, error) {
	payload, err := credential.ParsePayload(rawPayload)
	if err != nil {
		return Decision{Reason: DenyMalformedPayload}, nil
	}

	cred, err := v.credentials.GetActiveByRequest(payload.RequestID)
	if errors.Is(err, repository.ErrNotFound) {
		return Decision{Reason: DenyCredentialNotFound}, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("failed to resolve credential: %w", err)
	}

	if cred.Expired(v.now()) {
		// Identity context from the payload so the operator can see who
		// is standing at the gate.
		return Decision{
			Reason: DenyExpired,
			Summary: &SubjectSummary{
				HolderName: payload.HolderName,
				HolderID:   payload.HolderID,
				Plate:      payload.Plate,
				ExpiresAt:  cred.ExpiresAt,
			},
		}, nil
	}

	// Mandatory live re-check: the payload and even the credential row
	// are hints, never an authority.
	req, err := v.requests.Get(cred.RequestID)
	if errors.Is(err, repository.ErrNotFound) {
		return Decision{Reason: DenyRequestNotApproved}, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("failed to resolve request: %w", err)
	}

	if req.Status != models.StatusApproved {
		return Decision{
			Reason:        DenyRequestNotApproved,
			RequestStatus: req.Status,
			Summary: &SubjectSummary{
				HolderName: req.HolderName,
				HolderID:   req.HolderID,
				Plate:      req.VehiclePlate,
			},
		}, nil
	}

	return Decision{
		Granted: true,
		Summary: &SubjectSummary{
			HolderName:        req.HolderName,
			HolderID:          req.HolderID,
			Plate:             req.VehiclePlate,
			VehicleModel:      req.VehicleModel,
			VehicleColor:      req.VehicleColor,
			VehiclePhotoRef:   req.VehiclePhotoRef,
			VehicleIDPhotoRef: req.VehicleIDPhotoRef,
			ExpiresAt:         cred.ExpiresAt,
		},
	}, nil
}

func (v *Validator) recordScan(op Operator, rawPayload string, decision Decision) {
	action := models.ActionCredentialScanFailed
	description := fmt.Sprintf("scan denied: %s", decision.Reason)
	if decision.Granted {
		action = models.ActionCredentialScanSuccess
		description = fmt.Sprintf("access granted for plate %s", decision.Summary.Plate)
	}

	entry := &models.AuditEntry{
		Action:      action,
		Description: description,
		ActorID:     op.ID,
		ActorName:   op.Name,
	}
	if payload, err := credential.ParsePayload(rawPayload); err == nil {
		entry.TargetRequestID = payload.RequestID
		entry.TargetSummary = payload.Plate
	}
	if meta, err := json.Marshal(map[string]interface{}{
		"granted": decision.Granted,
		"reason":  string(decision.Reason),
	}); err == nil {
		entry.Metadata = string(meta)
	}

	if err := v.auditor.Create(entry); err != nil {
		v.logger.Error("failed to record scan audit entry",
			"action", action, "operator", op.ID, "error", err)
	}
}
