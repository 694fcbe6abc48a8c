// Package identity manages the user accounts that act on permits. The
// approval core trusts the actor identity handed to it; this package is
// where those identities live, and its management actions share the audit
// ledger with the permit lifecycle.
package identity

import (
	"fmt"
	"log/slog"

	"github.com/adamscao/permitserver/internal/approval"
	"github.com/adamscao/permitserver/internal/auth"
	"github.com/adamscao/permitserver/internal/models"
)

// UserStore is the user persistence contract. Satisfied by
// repository.UserRepository.
type UserStore interface {
	Create(user *models.User) error
	GetByID(id string) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	Update(user *models.User) error
	List() ([]*models.User, error)
	Delete(id string) error
}

// Auditor appends entries to the audit ledger. Satisfied by
// repository.AuditRepository.
type Auditor interface {
	Create(entry *models.AuditEntry) error
}

// Service manages user accounts.
type Service struct {
	users   UserStore
	auditor Auditor
	logger  *slog.Logger
}

// NewService creates a new identity service
func NewService(users UserStore, auditor Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, auditor: auditor, logger: logger}
}

// CreateUser creates an account with a bcrypt password hash. Superadmin
// accounts get a TOTP secret for two-factor enrollment; the secret is
// returned once so it can be shown to the new account holder.
func (s *Service) CreateUser(username, name, role, password string, actor approval.Actor) (*models.User, string, error) {
	if !models.ValidRole(role) {
		return nil, "", fmt.Errorf("unknown role %q", role)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", err
	}

	var totpSecret string
	if role == models.RoleSuperadmin {
		totpSecret, err = auth.GenerateTOTPSecret(username)
		if err != nil {
			return nil, "", err
		}
	}

	user := &models.User{
		Username:     username,
		Name:         name,
		Role:         role,
		PasswordHash: hash,
		TOTPSecret:   totpSecret,
		Enabled:      true,
	}
	if err := s.users.Create(user); err != nil {
		return nil, "", err
	}

	s.audit(&models.AuditEntry{
		Action:         models.ActionUserCreated,
		Description:    fmt.Sprintf("user %s created with role %s", username, role),
		ActorID:        actor.ID,
		ActorName:      actor.Name,
		TargetUserID:   user.ID,
		TargetUserName: user.Username,
	})

	return user, totpSecret, nil
}

// Authenticate verifies a username/password pair and returns the account
// when it is valid and enabled. Superadmin accounts additionally require a
// valid TOTP code.
func (s *Service) Authenticate(username, password, totpCode string) (*models.User, error) {
	user, err := s.users.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if !user.Enabled {
		return nil, fmt.Errorf("account %s is disabled", username)
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return nil, fmt.Errorf("invalid credentials")
	}
	if user.TOTPSecret != "" && !auth.ValidateTOTP(user.TOTPSecret, totpCode) {
		return nil, fmt.Errorf("invalid TOTP code")
	}
	return user, nil
}

// SetRole changes an account's role
func (s *Service) SetRole(userID, role string, actor approval.Actor) (*models.User, error) {
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, err
	}

	previous := user.Role
	user.Role = role
	if err := s.users.Update(user); err != nil {
		return nil, err
	}

	s.audit(&models.AuditEntry{
		Action:         models.ActionUserRoleChanged,
		Description:    fmt.Sprintf("role changed from %s to %s", previous, role),
		ActorID:        actor.ID,
		ActorName:      actor.Name,
		TargetUserID:   user.ID,
		TargetUserName: user.Username,
	})

	return user, nil
}

// SetStatus enables or disables an account
func (s *Service) SetStatus(userID string, enabled bool, actor approval.Actor) (*models.User, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, err
	}

	user.Enabled = enabled
	if err := s.users.Update(user); err != nil {
		return nil, err
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	s.audit(&models.AuditEntry{
		Action:         models.ActionUserStatusChanged,
		Description:    fmt.Sprintf("account %s", state),
		ActorID:        actor.ID,
		ActorName:      actor.Name,
		TargetUserID:   user.ID,
		TargetUserName: user.Username,
	})

	return user, nil
}

// ChangePassword replaces an account's password hash
func (s *Service) ChangePassword(userID, newPassword string, actor approval.Actor) error {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	user.PasswordHash = hash
	if err := s.users.Update(user); err != nil {
		return err
	}

	s.audit(&models.AuditEntry{
		Action:         models.ActionPasswordChanged,
		Description:    "password changed",
		ActorID:        actor.ID,
		ActorName:      actor.Name,
		TargetUserID:   user.ID,
		TargetUserName: user.Username,
	})

	return nil
}

// DeleteUser removes an account
func (s *Service) DeleteUser(userID string, actor approval.Actor) error {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return err
	}

	// Log before removal; the denormalized username keeps the entry
	// readable after the account is gone.
	s.audit(&models.AuditEntry{
		Action:         models.ActionUserDeleted,
		Description:    fmt.Sprintf("user %s deleted", user.Username),
		ActorID:        actor.ID,
		ActorName:      actor.Name,
		TargetUserID:   user.ID,
		TargetUserName: user.Username,
	})

	return s.users.Delete(userID)
}

// GetByUsername resolves an account by username
func (s *Service) GetByUsername(username string) (*models.User, error) {
	return s.users.GetByUsername(username)
}

// ListUsers lists all accounts
func (s *Service) ListUsers() ([]*models.User, error) {
	return s.users.List()
}

func (s *Service) audit(entry *models.AuditEntry) {
	if err := s.auditor.Create(entry); err != nil {
		s.logger.Error("failed to write audit entry",
			"action", entry.Action, "target_user", entry.TargetUserID, "error", err)
	}
}
