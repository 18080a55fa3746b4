package iam

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Silviu2326/Dentaflow-sub002/pkg/config"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/interfaces"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/logger"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/monitoring"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/types"
)

// Service implements the IAM service
type Service struct {
	config          *config.Config
	logger          *logger.Logger
	userRepo        interfaces.UserRepository
	passwordManager interfaces.PasswordManager
	mfaProvider     interfaces.MFAProvider
	tokens          *TokenManager
	now             func() time.Time
}

// NewService creates a new IAM service instance
func NewService(
	cfg *config.Config,
	log *logger.Logger,
	userRepo interfaces.UserRepository,
	passwordManager interfaces.PasswordManager,
	mfaProvider interfaces.MFAProvider,
	tokens *TokenManager,
) *Service {
	return &Service{
		config:          cfg,
		logger:          log,
		userRepo:        userRepo,
		passwordManager: passwordManager,
		mfaProvider:     mfaProvider,
		tokens:          tokens,
		now:             time.Now,
	}
}

// RegisterUser registers a new user. Unless the request carries an explicit
// permission list, the role defaults are snapshotted onto the user at this
// point and not re-derived afterwards.
func (s *Service) RegisterUser(req *types.UserRegistrationRequest) (*types.User, error) {
	if err := s.validateRegistrationRequest(req); err != nil {
		return nil, err
	}

	if existing, _ := s.userRepo.GetByEmail(req.Email); existing != nil {
		return nil, types.NewValidationError(types.ErrCodeDuplicateUser,
			"a user with this email already exists", nil)
	}
	if existing, _ := s.userRepo.GetByDNI(req.DNI); existing != nil {
		return nil, types.NewValidationError(types.ErrCodeDuplicateUser,
			"a user with this DNI already exists", nil)
	}

	passwordHash, err := s.passwordManager.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	permissions := req.Permissions
	if len(permissions) == 0 {
		permissions = DefaultPermissions(req.Role)
	}

	user := &types.User{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Email:        req.Email,
		DNI:          req.DNI,
		PasswordHash: passwordHash,
		Role:         req.Role,
		SiteID:       req.SiteID,
		Permissions:  permissions,
		IsActive:     true,
		CreatedAt:    s.now(),
		UpdatedAt:    s.now(),
	}

	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	s.logger.Audit(user.ID, "register", "user:"+user.ID, true, map[string]interface{}{
		"role":    user.Role,
		"site_id": user.SiteID,
	})
	return user, nil
}

// GetUser retrieves a user by ID
func (s *Service) GetUser(userID string) (*types.User, error) {
	return s.userRepo.GetByID(userID)
}

// apiUpdatableFields are the user fields clients may change through
// UpdateUser. Credential and lockout columns are managed by their own flows
// (ResetPassword, MFA enrollment, the login path).
var apiUpdatableFields = map[string]bool{
	"name":        true,
	"email":       true,
	"dni":         true,
	"role":        true,
	"site_id":     true,
	"permissions": true,
	"is_active":   true,
}

// UpdateUser applies a partial update to a user
func (s *Service) UpdateUser(userID string, updates map[string]interface{}) error {
	for field := range updates {
		if !apiUpdatableFields[field] {
			return types.NewValidationError(types.ErrCodeInvalidInput,
				fmt.Sprintf("field cannot be updated: %s", field), nil)
		}
	}
	if role, ok := updates["role"]; ok {
		if !types.UserRole(fmt.Sprint(role)).IsValid() {
			return types.NewValidationError(types.ErrCodeInvalidInput,
				fmt.Sprintf("invalid role: %v", role), nil)
		}
	}
	if site, ok := updates["site_id"]; ok {
		if !types.ClinicSite(fmt.Sprint(site)).IsValid() {
			return types.NewValidationError(types.ErrCodeInvalidInput,
				fmt.Sprintf("invalid site: %v", site), nil)
		}
	}

	return s.userRepo.Update(userID, updates)
}

// DeactivateUser disables a user account without deleting it
func (s *Service) DeactivateUser(userID string) error {
	if err := s.userRepo.Update(userID, map[string]interface{}{"is_active": false}); err != nil {
		return err
	}

	s.logger.Security("user_deactivated", userID, nil)
	return nil
}

// ListUsers retrieves users matching the filters
func (s *Service) ListUsers(filters map[string]interface{}, limit, offset int) ([]*types.User, error) {
	return s.userRepo.List(filters, limit, offset)
}

// AuthenticateUser authenticates a user by email and password. The gates are
// checked in order: user exists, account active, account not locked, password
// matches, MFA token valid when enrolled. Unknown email and wrong password
// both return the same generic error so callers cannot enumerate accounts;
// disabled and locked states are reported distinctly.
func (s *Service) AuthenticateUser(credentials *types.Credentials) (*types.AuthToken, error) {
	user, err := s.userRepo.GetByEmail(credentials.Email)
	if err != nil {
		s.logger.Security("login_unknown_email", "", map[string]interface{}{"email": credentials.Email})
		return nil, types.NewAuthenticationError(types.ErrCodeInvalidCredentials, "invalid credentials")
	}

	if !user.IsActive {
		s.logger.Security("login_disabled_account", user.ID, nil)
		return nil, types.NewAuthenticationError(types.ErrCodeAccountDisabled, "account is disabled")
	}

	if user.LockedUntil != nil && user.LockedUntil.After(s.now()) {
		s.logger.Security("login_locked_account", user.ID, map[string]interface{}{
			"locked_until": user.LockedUntil,
		})
		return nil, types.NewAuthenticationError(types.ErrCodeAccountLocked,
			"account is temporarily locked, try again later")
	}

	match, err := s.passwordManager.VerifyPassword(user.PasswordHash, credentials.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !match {
		s.registerFailedAttempt(user)
		return nil, types.NewAuthenticationError(types.ErrCodeInvalidCredentials, "invalid credentials")
	}

	if user.MFASecret != "" {
		valid, err := s.mfaProvider.VerifyToken(user.MFASecret, credentials.MFAToken)
		if err != nil || !valid {
			s.logger.Security("login_mfa_failed", user.ID, nil)
			return nil, types.NewAuthenticationError(types.ErrCodeInvalidCredentials, "invalid credentials")
		}
	}

	now := s.now()
	if err := s.userRepo.Update(user.ID, map[string]interface{}{
		"failed_login_attempts": 0,
		"locked_until":          nil,
		"last_access":           now,
	}); err != nil {
		s.logger.WithUserID(user.ID).WithError(err).Warn("Failed to clear lockout state after login")
	}

	token, err := s.tokens.IssueTokens(user)
	if err != nil {
		return nil, err
	}

	s.logger.Audit(user.ID, "login", "session", true, map[string]interface{}{"site_id": user.SiteID})
	return token, nil
}

// registerFailedAttempt advances the lockout counter. A failure arriving
// after an expired lock starts a fresh streak at 1 rather than stacking on
// the stale count; reaching the threshold locks the account for the
// configured window.
func (s *Service) registerFailedAttempt(user *types.User) {
	monitoring.LoginFailure()

	attempts := user.FailedLoginAttempts + 1
	if user.LockedUntil != nil && !user.LockedUntil.After(s.now()) {
		attempts = 1
	}

	updates := map[string]interface{}{
		"failed_login_attempts": attempts,
	}
	if user.LockedUntil != nil && !user.LockedUntil.After(s.now()) {
		updates["locked_until"] = nil
	}

	threshold := s.config.Clinic.LockoutThreshold
	if threshold <= 0 {
		threshold = 5
	}
	if attempts >= threshold {
		lockedUntil := s.now().Add(time.Duration(s.config.Clinic.LockoutHours) * time.Hour)
		updates["locked_until"] = lockedUntil
		monitoring.AccountLockout()
		s.logger.Security("account_locked", user.ID, map[string]interface{}{
			"attempts":     attempts,
			"locked_until": lockedUntil,
		})
	}

	if err := s.userRepo.Update(user.ID, updates); err != nil {
		s.logger.WithUserID(user.ID).WithError(err).Error("Failed to record failed login attempt")
	}

	s.logger.Security("login_failed", user.ID, map[string]interface{}{"attempts": attempts})
}

// ResetPassword replaces the user's password with a generated temporary one
// and clears any lockout state. The temporary password is returned once to
// the caller and never stored in the clear.
func (s *Service) ResetPassword(userID string) (string, error) {
	if _, err := s.userRepo.GetByID(userID); err != nil {
		return "", err
	}

	password, err := s.passwordManager.GenerateRandomPassword(12)
	if err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}

	hash, err := s.passwordManager.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.Update(userID, map[string]interface{}{
		"password_hash":         hash,
		"failed_login_attempts": 0,
		"locked_until":          nil,
	}); err != nil {
		return "", err
	}

	s.logger.Security("password_reset", userID, nil)
	return password, nil
}

// RefreshToken exchanges a valid refresh token for a fresh token pair. The
// user row is re-read so a deactivation or permission change takes effect at
// the next refresh.
func (s *Service) RefreshToken(token string) (*types.AuthToken, error) {
	userID, err := s.tokens.ValidateRefreshToken(token)
	if err != nil {
		return nil, types.NewAuthenticationError(types.ErrCodeUnauthorized, "invalid refresh token")
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, types.NewAuthenticationError(types.ErrCodeUnauthorized, "invalid refresh token")
	}
	if !user.IsActive {
		return nil, types.NewAuthenticationError(types.ErrCodeAccountDisabled, "account is disabled")
	}

	return s.tokens.IssueTokens(user)
}

// HasPermission reports whether the caller is granted the requested
// capability
func (s *Service) HasPermission(claims *types.UserClaims, permission string) bool {
	if claims == nil {
		return false
	}
	return HasPermission(claims.Role, claims.Permissions, permission)
}

// EnableMFA enrolls a user in TOTP MFA and returns the secret to show once
func (s *Service) EnableMFA(userID string) (string, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return "", err
	}
	if user.MFASecret != "" {
		return "", types.NewValidationError(types.ErrCodeInvalidInput, "MFA is already enabled", nil)
	}

	secret, err := s.mfaProvider.GenerateSecret(userID)
	if err != nil {
		return "", err
	}

	if err := s.userRepo.Update(userID, map[string]interface{}{"mfa_secret": secret}); err != nil {
		return "", err
	}

	s.logger.Security("mfa_enabled", userID, nil)
	return secret, nil
}

// VerifyMFA checks a TOTP token against the user's enrolled secret
func (s *Service) VerifyMFA(userID, token string) (bool, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return false, err
	}
	if user.MFASecret == "" {
		return false, types.NewValidationError(types.ErrCodeInvalidInput, "MFA is not enabled", nil)
	}

	return s.mfaProvider.VerifyToken(user.MFASecret, token)
}

// DisableMFA removes a user's TOTP enrollment
func (s *Service) DisableMFA(userID string) error {
	if err := s.userRepo.Update(userID, map[string]interface{}{"mfa_secret": nil}); err != nil {
		return err
	}

	s.logger.Security("mfa_disabled", userID, nil)
	return nil
}

func (s *Service) validateRegistrationRequest(req *types.UserRegistrationRequest) error {
	if len(req.Name) < 3 {
		return types.NewValidationError(types.ErrCodeInvalidInput, "name must be at least 3 characters", nil)
	}
	if req.Email == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "email is required", nil)
	}
	if req.DNI == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "dni is required", nil)
	}
	if len(req.Password) < 8 {
		return types.NewValidationError(types.ErrCodeInvalidInput, "password must be at least 8 characters", nil)
	}
	if !req.Role.IsValid() {
		return types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("invalid role: %s", req.Role), nil)
	}
	if !req.SiteID.IsValid() {
		return types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("invalid site: %s", req.SiteID), nil)
	}
	return nil
}
