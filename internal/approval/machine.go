// Package approval implements the two-level approval state machine as a
// pure decision function. Callers pass the current request state and an
// intended action; the machine returns the updated state plus any side
// effects to react to after the transition is committed. It never touches
// storage itself.
package approval

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adamscao/permitserver/internal/models"
)

// Guard violation errors
var (
	ErrAlreadyFinal    = errors.New("request is already in a terminal state")
	ErrAlreadyApproved = errors.New("level has already approved this request")
	ErrEmptyReason     = errors.New("rejection reason must not be empty")
	ErrWrongAuthority  = errors.New("actor authority does not permit this action")
)

// Actor identifies who is executing an action and with what authority.
type Actor struct {
	ID        string
	Name      string
	Authority models.AuthorityLevel
}

// Effect is a side effect the caller must react to after committing the
// transition returned by Decide.
type Effect int

const (
	// EffectIssueCredential is emitted exactly on the transition into the
	// approved status.
	EffectIssueCredential Effect = iota
)

// Action is an intended state transition.
type Action interface {
	apply(req *models.AccessRequest, now time.Time) ([]Effect, error)
}

// Approve records one authority level's approval. Each authority level owns
// exactly one slot: a level-1 actor may only approve slot 1, a level-2
// actor only slot 2.
type Approve struct {
	Level    int
	Actor    Actor
	Comments string
}

// OverrideApprove fills an approval slot on behalf of its owning level.
// Restricted to the highest authority; never implicit slot-sharing.
type OverrideApprove struct {
	Level    int
	Actor    Actor
	Comments string
}

// Reject denies the request. Allowed from any non-terminal status,
// regardless of prior partial approval. Requires a non-empty reason.
type Reject struct {
	Level  int
	Actor  Actor
	Reason string
}

// Delete removes the request. Permitted only for the highest authority,
// from any status.
type Delete struct {
	Actor Actor
}

// Decide runs the state machine: it validates the action against the
// current state, returns a copy of the request with the transition applied
// and the status recomputed, and lists the side effects the caller must
// trigger once the new state is durably committed.
func Decide(req models.AccessRequest, act Action, now time.Time) (models.AccessRequest, []Effect, error) {
	effects, err := act.apply(&req, now)
	if err != nil {
		return models.AccessRequest{}, nil, err
	}
	req.Recompute()
	req.UpdatedAt = now
	return req, effects, nil
}

func (a Approve) apply(req *models.AccessRequest, now time.Time) ([]Effect, error) {
	required := models.AuthorityLevel(a.Level)
	if a.Level != 1 && a.Level != 2 {
		return nil, fmt.Errorf("%w: unknown approval level %d", ErrWrongAuthority, a.Level)
	}
	if a.Actor.Authority != required {
		return nil, fmt.Errorf("%w: level %d slot requires a level %d authority", ErrWrongAuthority, a.Level, a.Level)
	}
	return fillSlot(req, a.Level, a.Actor, a.Comments, now)
}

func (a OverrideApprove) apply(req *models.AccessRequest, now time.Time) ([]Effect, error) {
	if a.Level != 1 && a.Level != 2 {
		return nil, fmt.Errorf("%w: unknown approval level %d", ErrWrongAuthority, a.Level)
	}
	if a.Actor.Authority != models.AuthorityHighest {
		return nil, fmt.Errorf("%w: override requires the highest authority", ErrWrongAuthority)
	}
	return fillSlot(req, a.Level, a.Actor, a.Comments, now)
}

// fillSlot applies the shared approval guards and sets one approval slot.
func fillSlot(req *models.AccessRequest, level int, actor Actor, comments string, now time.Time) ([]Effect, error) {
	if req.Status == models.StatusRejected {
		return nil, fmt.Errorf("%w: request is rejected", ErrAlreadyFinal)
	}

	slot := &req.Level1
	if level == 2 {
		slot = &req.Level2
	}
	if slot.Approved {
		return nil, fmt.Errorf("%w: level %d", ErrAlreadyApproved, level)
	}

	at := now
	slot.Approved = true
	slot.ApproverID = actor.ID
	slot.ApprovedAt = &at
	slot.Comments = comments

	// Both slots filled means the request just became fully approved.
	if req.Level1.Approved && req.Level2.Approved {
		return []Effect{EffectIssueCredential}, nil
	}
	return nil, nil
}

func (a Reject) apply(req *models.AccessRequest, now time.Time) ([]Effect, error) {
	if req.Terminal() {
		return nil, fmt.Errorf("%w: status is %s", ErrAlreadyFinal, req.Status)
	}
	if a.Actor.Authority != models.AuthorityLevel1 &&
		a.Actor.Authority != models.AuthorityLevel2 &&
		a.Actor.Authority != models.AuthorityHighest {
		return nil, fmt.Errorf("%w: rejection requires an approval authority", ErrWrongAuthority)
	}
	if strings.TrimSpace(a.Reason) == "" {
		return nil, ErrEmptyReason
	}

	at := now
	req.Denial = models.DenialRecord{
		Reason:   a.Reason,
		Level:    a.Level,
		DeniedBy: a.Actor.ID,
		DeniedAt: &at,
	}
	return nil, nil
}

func (a Delete) apply(req *models.AccessRequest, now time.Time) ([]Effect, error) {
	if a.Actor.Authority != models.AuthorityHighest {
		return nil, fmt.Errorf("%w: delete requires the highest authority", ErrWrongAuthority)
	}
	// Deletable from any status; the service layer performs the removal
	// and the credential cascade after logging.
	return nil, nil
}
