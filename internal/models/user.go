package models

import "time"

// Role names for user accounts
const (
	RoleRequester   = "requester"
	RoleScanner     = "scanner"
	RoleAdminLevel1 = "admin_level1"
	RoleAdminLevel2 = "admin_level2"
	RoleSuperadmin  = "superadmin"
)

// AuthorityLevel is the approval authority a role carries. Level 1 and 2
// each own exactly one approval slot; the highest level may delete and
// override.
type AuthorityLevel int

const (
	AuthorityNone AuthorityLevel = iota
	AuthorityLevel1
	AuthorityLevel2
	AuthorityHighest
)

// User represents a user account
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"` // Never expose password hash in JSON
	TOTPSecret   string    `json:"-"` // Never expose TOTP secret in JSON
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Authority maps the account role to its approval authority level.
func (u *User) Authority() AuthorityLevel {
	switch u.Role {
	case RoleAdminLevel1:
		return AuthorityLevel1
	case RoleAdminLevel2:
		return AuthorityLevel2
	case RoleSuperadmin:
		return AuthorityHighest
	default:
		return AuthorityNone
	}
}

// ValidRole reports whether the given role name is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleRequester, RoleScanner, RoleAdminLevel1, RoleAdminLevel2, RoleSuperadmin:
		return true
	}
	return false
}
