package types

import "time"

// UserRole represents the different user roles in the system
type UserRole string

const (
	RoleOwner       UserRole = "owner"
	RoleHQAnalyst   UserRole = "hq_analyst"
	RoleSiteManager UserRole = "site_manager"
	RoleDentist     UserRole = "dentist"
	RoleAssistant   UserRole = "assistant"
	RoleReception   UserRole = "reception"
)

// AllRoles lists every valid user role.
var AllRoles = []UserRole{RoleOwner, RoleHQAnalyst, RoleSiteManager, RoleDentist, RoleAssistant, RoleReception}

// IsValid reports whether the role is one of the closed enumeration.
func (r UserRole) IsValid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// SiteScoped reports whether users with this role are restricted to their own
// clinic site. Owner and HQ analysts see every site.
func (r UserRole) SiteScoped() bool {
	return r != RoleOwner && r != RoleHQAnalyst
}

// User represents a system user. Permissions is a point-in-time snapshot of
// the role defaults taken at creation, overridable per user; it is not
// re-derived from the role on each check.
type User struct {
	ID                  string     `json:"id" db:"id"`
	Name                string     `json:"name" db:"name"`
	Email               string     `json:"email" db:"email"`
	DNI                 string     `json:"dni" db:"dni"`
	PasswordHash        string     `json:"-" db:"password_hash"`
	Role                UserRole   `json:"role" db:"role"`
	SiteID              ClinicSite `json:"site_id" db:"site_id"`
	Permissions         []string   `json:"permissions" db:"permissions"`
	IsActive            bool       `json:"is_active" db:"is_active"`
	FailedLoginAttempts int        `json:"-" db:"failed_login_attempts"`
	LockedUntil         *time.Time `json:"-" db:"locked_until"`
	MFASecret           string     `json:"-" db:"mfa_secret"`
	LastAccess          *time.Time `json:"last_access,omitempty" db:"last_access"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}

type contextKey string

// ClaimsContextKey is the request-context key under which the gateway stores
// the authenticated caller's claims.
const ClaimsContextKey contextKey = "user_claims"

// UserClaims represents JWT token claims
type UserClaims struct {
	UserID      string     `json:"user_id"`
	Name        string     `json:"name"`
	Role        UserRole   `json:"role"`
	SiteID      ClinicSite `json:"site_id"`
	Permissions []string   `json:"permissions"`
}

// UserRegistrationRequest represents user registration data
type UserRegistrationRequest struct {
	Name        string     `json:"name" validate:"required,min=3,max=100"`
	Email       string     `json:"email" validate:"required,email"`
	DNI         string     `json:"dni" validate:"required"`
	Password    string     `json:"password" validate:"required,min=8"`
	Role        UserRole   `json:"role" validate:"required"`
	SiteID      ClinicSite `json:"site_id" validate:"required"`
	Permissions []string   `json:"permissions,omitempty"`
}

// Credentials represents user login credentials
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	MFAToken string `json:"mfa_token,omitempty"`
}

// AuthToken represents authentication token response
type AuthToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}
