// Package credential mints scannable permit credentials for fully-approved
// access requests and keeps the one-active-credential-per-request
// invariant across regenerations.
package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/adamscao/permitserver/internal/models"
)

// ErrNotApproved is returned when issuance is attempted for a request that
// is not fully approved.
var ErrNotApproved = errors.New("request is not fully approved")

// ErrRenderFailed wraps renderer errors. The approval transition that
// triggered issuance is already committed; callers report this error and
// recover via Regenerate.
var ErrRenderFailed = errors.New("artifact rendering failed")

// Artifacts are the rendered references owned by a credential.
type Artifacts struct {
	ImageRef    string
	DocumentRef string
}

// Renderer turns a credential payload into scannable and printable
// artifacts. The concrete engine is pluggable; see internal/render for the
// one shipped with the repo.
type Renderer interface {
	Render(payload string, req *models.AccessRequest) (Artifacts, error)
}

// Store is the credential persistence the issuer needs. Satisfied by
// repository.CredentialRepository.
type Store interface {
	ReplaceActive(cred *models.Credential) error
}

// ExpiryPolicy computes a credential's expiry from its issuance time.
// Satisfied by policy.Validator.
type ExpiryPolicy interface {
	CredentialExpiry(issuedAt time.Time) *time.Time
}

// Issuer mints credentials bound to fully-approved requests.
type Issuer struct {
	store    Store
	renderer Renderer
	expiry   ExpiryPolicy
	now      func() time.Time
}

// NewIssuer creates a new credential issuer
func NewIssuer(store Store, renderer Renderer, expiry ExpiryPolicy) *Issuer {
	return &Issuer{
		store:    store,
		renderer: renderer,
		expiry:   expiry,
		now:      time.Now,
	}
}

// Issue mints a credential for an approved request: build the payload,
// render the artifacts, compute expiry, persist as the active credential.
// Persisting goes through ReplaceActive, so a retried or duplicated
// issuance trigger retires the stale credential instead of minting a
// second active one.
func (i *Issuer) Issue(req *models.AccessRequest) (*models.Credential, error) {
	if req.Status != models.StatusApproved {
		return nil, fmt.Errorf("%w: status is %s", ErrNotApproved, req.Status)
	}

	serial, err := GenerateSerial()
	if err != nil {
		return nil, err
	}

	issuedAt := i.now().UTC()
	payload := Payload{
		RequestID:  req.ID,
		Serial:     serial,
		Plate:      req.VehiclePlate,
		HolderName: req.HolderName,
		HolderID:   req.HolderID,
		IssuedAt:   issuedAt,
	}
	encoded, err := payload.Encode()
	if err != nil {
		return nil, err
	}

	artifacts, err := i.renderer.Render(encoded, req)
	if err != nil {
		// The approval stands; nothing is persisted and the caller
		// retries via Regenerate.
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}

	cred := &models.Credential{
		RequestID:   req.ID,
		Serial:      serial,
		Payload:     encoded,
		ImageRef:    artifacts.ImageRef,
		DocumentRef: artifacts.DocumentRef,
		Active:      true,
		IssuedAt:    issuedAt,
		ExpiresAt:   i.expiry.CredentialExpiry(issuedAt),
	}

	if err := i.store.ReplaceActive(cred); err != nil {
		return nil, fmt.Errorf("failed to persist credential: %w", err)
	}

	return cred, nil
}

// Regenerate re-issues the credential for a request with a fresh serial,
// payload and artifacts. The previous credential is retired by the
// ReplaceActive persistence step, leaving exactly one active credential.
func (i *Issuer) Regenerate(req *models.AccessRequest) (*models.Credential, error) {
	return i.Issue(req)
}
