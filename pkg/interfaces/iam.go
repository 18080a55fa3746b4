package interfaces

import (
	"github.com/Silviu2326/Dentaflow-sub002/pkg/types"
)

// IAMService defines the interface for identity and access management
type IAMService interface {
	// User management
	RegisterUser(req *types.UserRegistrationRequest) (*types.User, error)
	GetUser(userID string) (*types.User, error)
	UpdateUser(userID string, updates map[string]interface{}) error
	DeactivateUser(userID string) error
	ListUsers(filters map[string]interface{}, limit, offset int) ([]*types.User, error)

	// Authentication
	AuthenticateUser(credentials *types.Credentials) (*types.AuthToken, error)
	RefreshToken(token string) (*types.AuthToken, error)
	ResetPassword(userID string) (string, error)

	// Authorization
	HasPermission(claims *types.UserClaims, permission string) bool

	// Multi-factor authentication
	EnableMFA(userID string) (string, error) // returns secret
	VerifyMFA(userID, token string) (bool, error)
	DisableMFA(userID string) error
}

// UserRepository defines the interface for user data persistence
type UserRepository interface {
	Create(user *types.User) error
	GetByID(id string) (*types.User, error)
	GetByEmail(email string) (*types.User, error)
	GetByDNI(dni string) (*types.User, error)
	Update(id string, updates map[string]interface{}) error
	Delete(id string) error
	List(filters map[string]interface{}, limit, offset int) ([]*types.User, error)
}

// PasswordManager defines the interface for password operations
type PasswordManager interface {
	HashPassword(password string) (string, error)
	VerifyPassword(hashedPassword, password string) (bool, error)
	GenerateRandomPassword(length int) (string, error)
}

// MFAProvider defines the interface for multi-factor authentication
type MFAProvider interface {
	GenerateSecret(userID string) (string, error)
	ProvisioningURI(userID, secret string) (string, error)
	VerifyToken(secret, token string) (bool, error)
}

// TokenValidator validates bearer tokens at the HTTP boundary.
type TokenValidator interface {
	ValidateJWT(token string) (*types.UserClaims, error)
}
