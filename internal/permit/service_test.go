package permit_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/adamscao/permitserver/internal/approval"
	"github.com/adamscao/permitserver/internal/db/repository"
	"github.com/adamscao/permitserver/internal/models"
	"github.com/adamscao/permitserver/internal/permit"
)

var (
	level1Admin = approval.Actor{ID: "admin-1", Name: "Level One", Authority: models.AuthorityLevel1}
	level2Admin = approval.Actor{ID: "admin-2", Name: "Level Two", Authority: models.AuthorityLevel2}
	superAdmin  = approval.Actor{ID: "super-1", Name: "Super", Authority: models.AuthorityHighest}
	requester   = approval.Actor{ID: "req-user", Name: "Requester", Authority: models.AuthorityNone}
)

// memRequestStore is an in-memory RequestStore with the same atomic
// read-decide-write contract as the sqlite repository. conflictsLeft
// injects version-check losses to exercise the service retry loop.
type memRequestStore struct {
	mu            sync.Mutex
	requests      map[string]*models.AccessRequest
	nextID        int
	conflictsLeft int
}

func newMemRequestStore() *memRequestStore {
	return &memRequestStore{requests: make(map[string]*models.AccessRequest)}
}

func (s *memRequestStore) Create(req *models.AccessRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.ID == "" {
		s.nextID++
		req.ID = fmt.Sprintf("req-%d", s.nextID)
	}
	req.Recompute()
	copied := *req
	s.requests[req.ID] = &copied
	return nil
}

func (s *memRequestStore) Get(id string) (*models.AccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *req
	return &copied, nil
}

func (s *memRequestStore) ListByStatus(statuses ...models.RequestStatus) ([]*models.AccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.AccessRequest
	for _, req := range s.requests {
		if len(statuses) > 0 {
			match := false
			for _, status := range statuses {
				if req.Status == status {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		copied := *req
		out = append(out, &copied)
	}
	return out, nil
}

func (s *memRequestStore) ListByRequester(requesterID string) ([]*models.AccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.AccessRequest
	for _, req := range s.requests {
		if req.RequesterID == requesterID {
			copied := *req
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memRequestStore) Apply(id string, fn func(*models.AccessRequest) error) (*models.AccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflictsLeft > 0 {
		s.conflictsLeft--
		return nil, repository.ErrConflict
	}
	req, ok := s.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	working := *req
	if err := fn(&working); err != nil {
		return nil, err
	}
	working.Version++
	s.requests[id] = &working
	copied := working
	return &copied, nil
}

func (s *memRequestStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.requests, id)
	return nil
}

type memCredentialStore struct {
	mu          sync.Mutex
	active      map[string]*models.Credential
	deactivated []string
}

func newMemCredentialStore() *memCredentialStore {
	return &memCredentialStore{active: make(map[string]*models.Credential)}
}

func (s *memCredentialStore) GetActiveByRequest(requestID string) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.active[requestID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *cred
	return &copied, nil
}

func (s *memCredentialStore) DeactivateByRequest(requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, requestID)
	s.deactivated = append(s.deactivated, requestID)
	return nil
}

type fakeIssuer struct {
	mu         sync.Mutex
	store      *memCredentialStore
	issueCalls int
	regenCalls int
	nextSerial int
	issueErr   error
}

func (f *fakeIssuer) Issue(req *models.AccessRequest) (*models.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issueCalls++
	return f.mint(req)
}

func (f *fakeIssuer) Regenerate(req *models.AccessRequest) (*models.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regenCalls++
	return f.mint(req)
}

func (f *fakeIssuer) mint(req *models.AccessRequest) (*models.Credential, error) {
	if f.issueErr != nil {
		return nil, f.issueErr
	}
	f.nextSerial++
	cred := &models.Credential{
		RequestID: req.ID,
		Serial:    fmt.Sprintf("serial-%d", f.nextSerial),
		Active:    true,
	}
	f.store.mu.Lock()
	f.store.active[req.ID] = cred
	f.store.mu.Unlock()
	return cred, nil
}

type memAuditor struct {
	mu      sync.Mutex
	entries []*models.AuditEntry
	err     error
}

func (a *memAuditor) Create(entry *models.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, entry)
	return nil
}

func (a *memAuditor) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.entries))
	for i, entry := range a.entries {
		out[i] = entry.Action
	}
	return out
}

type fakeValidator struct {
	err error
}

func (v *fakeValidator) ValidateSubmission(req *models.AccessRequest) error {
	return v.err
}

type harness struct {
	svc         *permit.Service
	requests    *memRequestStore
	credentials *memCredentialStore
	issuer      *fakeIssuer
	auditor     *memAuditor
	validator   *fakeValidator
}

func newHarness() *harness {
	requests := newMemRequestStore()
	credentials := newMemCredentialStore()
	issuer := &fakeIssuer{store: credentials}
	auditor := &memAuditor{}
	validator := &fakeValidator{}
	return &harness{
		svc:         permit.NewService(requests, credentials, issuer, auditor, validator, nil),
		requests:    requests,
		credentials: credentials,
		issuer:      issuer,
		auditor:     auditor,
		validator:   validator,
	}
}

func (h *harness) submit(t *testing.T) *models.AccessRequest {
	t.Helper()
	req, err := h.svc.Submit(models.AccessRequest{
		HolderName:   "Maria Gonzalez",
		HolderID:     "12345678-9",
		Email:        "maria@example.edu",
		Phone:        "+56911112222",
		Program:      "Mechanical Engineering",
		VehiclePlate: "abcd12",
		VehicleModel: "Toyota Yaris",
		VehicleColor: "red",
	}, requester)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return req
}

func TestSubmit_CreatesPendingRequest(t *testing.T) {
	h := newHarness()
	req := h.submit(t)

	if req.Status != models.StatusPending {
		t.Errorf("expected pending, got %s", req.Status)
	}
	if req.RequesterID != requester.ID {
		t.Errorf("expected requester ownership, got %q", req.RequesterID)
	}
	if req.CreatedByAdmin {
		t.Error("self-service submission must not be marked admin-created")
	}
	if req.VehiclePlate != "ABCD12" {
		t.Errorf("expected normalized plate, got %q", req.VehiclePlate)
	}

	actions := h.auditor.actions()
	if len(actions) != 1 || actions[0] != models.ActionRequestCreated {
		t.Errorf("expected a request_created audit entry, got %v", actions)
	}
}

func TestSubmit_ValidationFailure_NothingCreated(t *testing.T) {
	h := newHarness()
	h.validator.err = errors.New("email is required")

	_, err := h.svc.Submit(models.AccessRequest{}, requester)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(h.requests.requests) != 0 {
		t.Error("expected no request to be created")
	}
	if len(h.auditor.actions()) != 0 {
		t.Error("expected no audit entry for a refused submission")
	}
}

func TestSubmitOnBehalf_RequiresAuthority(t *testing.T) {
	h := newHarness()

	_, err := h.svc.SubmitOnBehalf(models.AccessRequest{}, requester)
	if !errors.Is(err, approval.ErrWrongAuthority) {
		t.Fatalf("expected ErrWrongAuthority, got %v", err)
	}

	req, err := h.svc.SubmitOnBehalf(models.AccessRequest{
		HolderName:   "External Visitor",
		VehiclePlate: "XYZW99",
	}, level1Admin)
	if err != nil {
		t.Fatalf("SubmitOnBehalf: %v", err)
	}
	if !req.CreatedByAdmin || req.CreatorID != level1Admin.ID {
		t.Error("expected the creator to be recorded")
	}
	if req.RequesterID != "" {
		t.Errorf("on-behalf request must not claim a requester, got %q", req.RequesterID)
	}
}

func TestApprove_FullFlow_IssuesOneCredential(t *testing.T) {
	h := newHarness()
	req := h.submit(t)

	mid, err := h.svc.Approve(req.ID, 1, level1Admin, "docs ok")
	if err != nil {
		t.Fatalf("Approve level 1: %v", err)
	}
	if mid.Status != models.StatusLevel1Approved {
		t.Errorf("expected level1_approved, got %s", mid.Status)
	}
	if h.issuer.issueCalls != 0 {
		t.Error("no credential before full approval")
	}

	final, err := h.svc.Approve(req.ID, 2, level2Admin, "")
	if err != nil {
		t.Fatalf("Approve level 2: %v", err)
	}
	if final.Status != models.StatusApproved {
		t.Errorf("expected approved, got %s", final.Status)
	}
	if h.issuer.issueCalls != 1 {
		t.Errorf("expected exactly one issuance, got %d", h.issuer.issueCalls)
	}

	cred, err := h.svc.ActiveCredential(req.ID)
	if err != nil {
		t.Fatalf("ActiveCredential: %v", err)
	}
	if !cred.Active {
		t.Error("expected an active credential")
	}

	want := []string{
		models.ActionRequestCreated,
		models.ActionRequestApprovedLevel1,
		models.ActionRequestApprovedLevel2,
		models.ActionCredentialIssued,
	}
	got := h.auditor.actions()
	if len(got) != len(want) {
		t.Fatalf("expected audit trail %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected audit trail %v, got %v", want, got)
		}
	}
}

func TestApprove_ConcurrentLevels_SingleIssuance(t *testing.T) {
	h := newHarness()
	req := h.submit(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = h.svc.Approve(req.ID, 1, level1Admin, "")
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = h.svc.Approve(req.ID, 2, level2Admin, "")
	}()
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent approve %d: %v", i, err)
		}
	}

	final, err := h.svc.Get(req.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if final.Status != models.StatusApproved {
		t.Errorf("expected approved, got %s", final.Status)
	}
	if h.issuer.issueCalls != 1 {
		t.Errorf("expected exactly one issuance, got %d", h.issuer.issueCalls)
	}
}

func TestApprove_RetriesLostRaces(t *testing.T) {
	h := newHarness()
	req := h.submit(t)

	h.requests.conflictsLeft = 2
	if _, err := h.svc.Approve(req.ID, 1, level1Admin, ""); err != nil {
		t.Fatalf("expected the retry loop to absorb two conflicts, got %v", err)
	}

	h.requests.conflictsLeft = 3
	_, err := h.svc.Approve(req.ID, 2, level2Admin, "")
	if !errors.Is(err, repository.ErrConflict) {
		t.Errorf("expected the conflict to surface after retries run out, got %v", err)
	}
}

func TestApprove_IssuanceFailure_ApprovalStands(t *testing.T) {
	h := newHarness()
	req := h.submit(t)
	h.issuer.issueErr = errors.New("renderer down")

	if _, err := h.svc.Approve(req.ID, 1, level1Admin, ""); err != nil {
		t.Fatalf("Approve level 1: %v", err)
	}

	final, err := h.svc.Approve(req.ID, 2, level2Admin, "")
	if err == nil {
		t.Fatal("expected the issuance failure to be reported")
	}
	if final == nil || final.Status != models.StatusApproved {
		t.Fatal("expected the committed approved request alongside the error")
	}

	stored, err := h.svc.Get(req.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != models.StatusApproved {
		t.Errorf("approval must stand after issuance failure, got %s", stored.Status)
	}

	// Recovery path once the issuer is healthy again.
	h.issuer.issueErr = nil
	if _, err := h.svc.Regenerate(req.ID, superAdmin); err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if _, err := h.svc.ActiveCredential(req.ID); err != nil {
		t.Errorf("expected an active credential after regeneration, got %v", err)
	}
}

func TestOverrideApprove_MarksOverrideInAudit(t *testing.T) {
	h := newHarness()
	req := h.submit(t)

	if _, err := h.svc.OverrideApprove(req.ID, 1, superAdmin, "owner on leave"); err != nil {
		t.Fatalf("OverrideApprove: %v", err)
	}

	entries := h.auditor.entries
	last := entries[len(entries)-1]
	if last.Action != models.ActionRequestApprovedLevel1 {
		t.Errorf("expected a level1 approval entry, got %s", last.Action)
	}
	if last.Metadata != `{"override":true}` {
		t.Errorf("expected override metadata, got %q", last.Metadata)
	}
}

func TestReject_RecordsReason(t *testing.T) {
	h := newHarness()
	req := h.submit(t)

	rejected, err := h.svc.Reject(req.ID, 2, level2Admin, "vehicle not registered")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != models.StatusRejected {
		t.Errorf("expected rejected, got %s", rejected.Status)
	}
	if rejected.Denial.Reason != "vehicle not registered" {
		t.Errorf("expected the reason on the record, got %q", rejected.Denial.Reason)
	}

	actions := h.auditor.actions()
	if actions[len(actions)-1] != models.ActionRequestRejected {
		t.Errorf("expected a request_rejected entry, got %v", actions)
	}
	if h.issuer.issueCalls != 0 {
		t.Error("rejection must not issue a credential")
	}
}

func TestDelete_PurgesRequestAndCredential(t *testing.T) {
	h := newHarness()
	req := h.submit(t)
	if _, err := h.svc.Approve(req.ID, 1, level1Admin, ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := h.svc.Approve(req.ID, 2, level2Admin, ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if err := h.svc.Delete(req.ID, superAdmin); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := h.svc.Get(req.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected the request to be gone, got %v", err)
	}
	if _, err := h.svc.ActiveCredential(req.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected the credential to be retired, got %v", err)
	}

	actions := h.auditor.actions()
	if actions[len(actions)-1] != models.ActionRequestDeleted {
		t.Errorf("expected a request_deleted entry, got %v", actions)
	}
}

func TestDelete_RequiresHighestAuthority(t *testing.T) {
	h := newHarness()
	req := h.submit(t)

	err := h.svc.Delete(req.ID, level1Admin)
	if !errors.Is(err, approval.ErrWrongAuthority) {
		t.Fatalf("expected ErrWrongAuthority, got %v", err)
	}
	if _, err := h.svc.Get(req.ID); err != nil {
		t.Error("request must survive a refused delete")
	}
}

func TestRegenerate_AuditsAndRetiresPrevious(t *testing.T) {
	h := newHarness()
	req := h.submit(t)
	if _, err := h.svc.Approve(req.ID, 1, level1Admin, ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := h.svc.Approve(req.ID, 2, level2Admin, ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	first, _ := h.svc.ActiveCredential(req.ID)

	second, err := h.svc.Regenerate(req.ID, superAdmin)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if second.Serial == first.Serial {
		t.Error("expected a fresh serial")
	}

	active, err := h.svc.ActiveCredential(req.ID)
	if err != nil {
		t.Fatalf("ActiveCredential: %v", err)
	}
	if active.Serial != second.Serial {
		t.Error("expected the regenerated credential to be the active one")
	}

	actions := h.auditor.actions()
	if actions[len(actions)-1] != models.ActionCredentialRegenerated {
		t.Errorf("expected a credential_regenerated entry, got %v", actions)
	}
}

func TestAuditFailure_DoesNotFailTransitions(t *testing.T) {
	h := newHarness()
	h.auditor.err = errors.New("ledger unavailable")

	req := h.submit(t)
	if _, err := h.svc.Approve(req.ID, 1, level1Admin, ""); err != nil {
		t.Fatalf("Approve with failing auditor: %v", err)
	}

	stored, err := h.svc.Get(req.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != models.StatusLevel1Approved {
		t.Errorf("transition must stand despite audit failure, got %s", stored.Status)
	}
}
