// Package permit orchestrates the permit lifecycle: it runs the approval
// state machine against the durable store, reacts to committed transitions
// (credential issuance), and writes the audit trail. Commit first, react
// second: a failed reaction can never roll back a committed transition.
package permit

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adamscao/permitserver/internal/approval"
	"github.com/adamscao/permitserver/internal/db/repository"
	"github.com/adamscao/permitserver/internal/models"
)

// applyRetries bounds the internal retry loop for lost read-decide-write
// races.
const applyRetries = 3

// RequestStore is the request persistence contract. Satisfied by
// repository.RequestRepository.
type RequestStore interface {
	Create(req *models.AccessRequest) error
	Get(id string) (*models.AccessRequest, error)
	ListByStatus(statuses ...models.RequestStatus) ([]*models.AccessRequest, error)
	ListByRequester(requesterID string) ([]*models.AccessRequest, error)
	Apply(id string, fn func(*models.AccessRequest) error) (*models.AccessRequest, error)
	Delete(id string) error
}

// CredentialStore is the slice of credential persistence the service needs
// directly. Satisfied by repository.CredentialRepository.
type CredentialStore interface {
	GetActiveByRequest(requestID string) (*models.Credential, error)
	DeactivateByRequest(requestID string) error
}

// Issuer mints credentials for approved requests. Satisfied by
// credential.Issuer.
type Issuer interface {
	Issue(req *models.AccessRequest) (*models.Credential, error)
	Regenerate(req *models.AccessRequest) (*models.Credential, error)
}

// Auditor appends entries to the audit ledger. Satisfied by
// repository.AuditRepository.
type Auditor interface {
	Create(entry *models.AuditEntry) error
}

// SubmissionValidator checks a draft request against policy. Satisfied by
// policy.Validator.
type SubmissionValidator interface {
	ValidateSubmission(req *models.AccessRequest) error
}

// Service coordinates requests, approvals, credentials and the audit
// ledger.
type Service struct {
	requests    RequestStore
	credentials CredentialStore
	issuer      Issuer
	auditor     Auditor
	validator   SubmissionValidator
	logger      *slog.Logger
	now         func() time.Time
}

// NewService creates a new permit service
func NewService(
	requests RequestStore,
	credentials CredentialStore,
	issuer Issuer,
	auditor Auditor,
	validator SubmissionValidator,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		requests:    requests,
		credentials: credentials,
		issuer:      issuer,
		auditor:     auditor,
		validator:   validator,
		logger:      logger,
		now:         time.Now,
	}
}

// Submit creates a new pending request owned by the acting requester.
func (s *Service) Submit(draft models.AccessRequest, actor approval.Actor) (*models.AccessRequest, error) {
	draft.RequesterID = actor.ID
	draft.CreatedByAdmin = false
	draft.CreatorID = ""
	return s.create(&draft, actor)
}

// SubmitOnBehalf creates a request filed by an authority for someone else.
// The requester reference may stay empty; the creator is recorded.
func (s *Service) SubmitOnBehalf(draft models.AccessRequest, actor approval.Actor) (*models.AccessRequest, error) {
	if actor.Authority == models.AuthorityNone {
		return nil, fmt.Errorf("%w: on-behalf submission requires an approval authority", approval.ErrWrongAuthority)
	}
	draft.CreatedByAdmin = true
	draft.CreatorID = actor.ID
	return s.create(&draft, actor)
}

func (s *Service) create(draft *models.AccessRequest, actor approval.Actor) (*models.AccessRequest, error) {
	draft.VehiclePlate = models.NormalizePlate(draft.VehiclePlate)
	if err := s.validator.ValidateSubmission(draft); err != nil {
		return nil, err
	}

	if err := s.requests.Create(draft); err != nil {
		return nil, err
	}

	s.audit(&models.AuditEntry{
		Action:          models.ActionRequestCreated,
		Description:     fmt.Sprintf("permit request created for plate %s", draft.VehiclePlate),
		ActorID:         actor.ID,
		ActorName:       actor.Name,
		TargetRequestID: draft.ID,
		TargetSummary:   requestSummary(draft),
	})

	return draft, nil
}

// Approve records one authority level's approval. On the transition into
// the approved status the credential issuance reaction runs after the
// commit; if issuance fails the method returns the committed request
// together with an error wrapping the issuance failure. The approval
// itself stands and Regenerate retries the issuance.
func (s *Service) Approve(id string, level int, actor approval.Actor, comments string) (*models.AccessRequest, error) {
	act := approval.Approve{Level: level, Actor: actor, Comments: comments}
	req, effects, err := s.transition(id, act)
	if err != nil {
		return nil, err
	}

	s.audit(&models.AuditEntry{
		Action:          approvalAction(level),
		Description:     fmt.Sprintf("request approved at level %d", level),
		ActorID:         actor.ID,
		ActorName:       actor.Name,
		TargetRequestID: req.ID,
		TargetSummary:   requestSummary(req),
	})

	return s.react(req, effects, actor)
}

// OverrideApprove fills an approval slot on behalf of its owning level.
// Highest authority only; the audit entry marks the override.
func (s *Service) OverrideApprove(id string, level int, actor approval.Actor, comments string) (*models.AccessRequest, error) {
	act := approval.OverrideApprove{Level: level, Actor: actor, Comments: comments}
	req, effects, err := s.transition(id, act)
	if err != nil {
		return nil, err
	}

	s.audit(&models.AuditEntry{
		Action:          approvalAction(level),
		Description:     fmt.Sprintf("request approved at level %d by override", level),
		ActorID:         actor.ID,
		ActorName:       actor.Name,
		TargetRequestID: req.ID,
		TargetSummary:   requestSummary(req),
		Metadata:        `{"override":true}`,
	})

	return s.react(req, effects, actor)
}

// Reject denies a request with a reason. Legal from any non-terminal
// status.
func (s *Service) Reject(id string, level int, actor approval.Actor, reason string) (*models.AccessRequest, error) {
	act := approval.Reject{Level: level, Actor: actor, Reason: reason}
	req, _, err := s.transition(id, act)
	if err != nil {
		return nil, err
	}

	meta, _ := json.Marshal(map[string]interface{}{"reason": reason, "level": level})
	s.audit(&models.AuditEntry{
		Action:          models.ActionRequestRejected,
		Description:     fmt.Sprintf("request rejected at level %d: %s", level, reason),
		ActorID:         actor.ID,
		ActorName:       actor.Name,
		TargetRequestID: req.ID,
		TargetSummary:   requestSummary(req),
		Metadata:        string(meta),
	})

	return req, nil
}

// Delete removes a request and retires any credential issued for it.
// Highest authority only; the purge is audited before the removal.
func (s *Service) Delete(id string, actor approval.Actor) error {
	req, err := s.requests.Get(id)
	if err != nil {
		return err
	}

	// Authority check through the machine so delete shares the same
	// guard taxonomy as the other actions.
	if _, _, err := approval.Decide(*req, approval.Delete{Actor: actor}, s.now().UTC()); err != nil {
		return err
	}

	s.audit(&models.AuditEntry{
		Action:          models.ActionRequestDeleted,
		Description:     fmt.Sprintf("request purged (status was %s)", req.Status),
		ActorID:         actor.ID,
		ActorName:       actor.Name,
		TargetRequestID: req.ID,
		TargetSummary:   requestSummary(req),
	})

	if err := s.credentials.DeactivateByRequest(id); err != nil {
		return fmt.Errorf("failed to retire credentials: %w", err)
	}

	return s.requests.Delete(id)
}

// Regenerate re-issues the credential for an approved request, retiring
// the previous one.
func (s *Service) Regenerate(id string, actor approval.Actor) (*models.Credential, error) {
	req, err := s.requests.Get(id)
	if err != nil {
		return nil, err
	}

	cred, err := s.issuer.Regenerate(req)
	if err != nil {
		return nil, err
	}

	s.audit(&models.AuditEntry{
		Action:          models.ActionCredentialRegenerated,
		Description:     fmt.Sprintf("credential regenerated, serial %s", cred.Serial),
		ActorID:         actor.ID,
		ActorName:       actor.Name,
		TargetRequestID: req.ID,
		TargetSummary:   requestSummary(req),
	})

	return cred, nil
}

// Get retrieves a request by id
func (s *Service) Get(id string) (*models.AccessRequest, error) {
	return s.requests.Get(id)
}

// List lists requests filtered by status, newest first
func (s *Service) List(statuses ...models.RequestStatus) ([]*models.AccessRequest, error) {
	return s.requests.ListByStatus(statuses...)
}

// ListForRequester lists a requester's own requests
func (s *Service) ListForRequester(requesterID string) ([]*models.AccessRequest, error) {
	return s.requests.ListByRequester(requesterID)
}

// ActiveCredential returns the active credential for a request
func (s *Service) ActiveCredential(requestID string) (*models.Credential, error) {
	return s.credentials.GetActiveByRequest(requestID)
}

// transition runs the state machine inside the store's atomic
// read-decide-write, retrying a bounded number of times when the version
// check loses a race.
func (s *Service) transition(id string, act approval.Action) (*models.AccessRequest, []approval.Effect, error) {
	var lastErr error
	for attempt := 0; attempt < applyRetries; attempt++ {
		var effects []approval.Effect
		updated, err := s.requests.Apply(id, func(req *models.AccessRequest) error {
			next, eff, err := approval.Decide(*req, act, s.now().UTC())
			if err != nil {
				return err
			}
			effects = eff
			*req = next
			return nil
		})
		if errors.Is(err, repository.ErrConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		return updated, effects, nil
	}
	return nil, nil, fmt.Errorf("transition still conflicting after %d attempts: %w", applyRetries, lastErr)
}

// react handles post-commit side effects.
func (s *Service) react(req *models.AccessRequest, effects []approval.Effect, actor approval.Actor) (*models.AccessRequest, error) {
	for _, effect := range effects {
		if effect != approval.EffectIssueCredential {
			continue
		}

		cred, err := s.issuer.Issue(req)
		if err != nil {
			// The approval is committed and stands. Report the issuance
			// failure so the caller can surface it and retry later.
			s.logger.Error("credential issuance failed after approval",
				"request_id", req.ID, "error", err)
			return req, fmt.Errorf("approval committed but credential issuance failed: %w", err)
		}

		s.audit(&models.AuditEntry{
			Action:          models.ActionCredentialIssued,
			Description:     fmt.Sprintf("credential issued, serial %s", cred.Serial),
			ActorID:         actor.ID,
			ActorName:       actor.Name,
			TargetRequestID: req.ID,
			TargetSummary:   requestSummary(req),
		})
	}
	return req, nil
}

// audit appends a ledger entry best-effort. Observability must not become
// a correctness hazard: failures are logged and the originating transition
// stands.
func (s *Service) audit(entry *models.AuditEntry) {
	if err := s.auditor.Create(entry); err != nil {
		s.logger.Error("failed to write audit entry",
			"action", entry.Action, "target_request", entry.TargetRequestID, "error", err)
	}
}

func approvalAction(level int) string {
	if level == 2 {
		return models.ActionRequestApprovedLevel2
	}
	return models.ActionRequestApprovedLevel1
}

func requestSummary(req *models.AccessRequest) string {
	return fmt.Sprintf("%s / %s", req.HolderName, req.VehiclePlate)
}
