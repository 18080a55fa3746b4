package iam

import (
	"fmt"
	"net/url"

	"github.com/pquerna/otp/totp"

	"github.com/Silviu2326/Dentaflow-sub002/pkg/logger"
)

// MFAProvider implements TOTP-based multi-factor authentication
type MFAProvider struct {
	logger *logger.Logger
	issuer string
}

// NewMFAProvider creates a new MFA provider
func NewMFAProvider(log *logger.Logger, issuer string) *MFAProvider {
	return &MFAProvider{
		logger: log,
		issuer: issuer,
	}
}

// GenerateSecret generates a new TOTP secret for a user
func (mfa *MFAProvider) GenerateSecret(userID string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      mfa.issuer,
		AccountName: userID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	mfa.logger.WithUserID(userID).Info("Generated MFA secret")
	return key.Secret(), nil
}

// ProvisioningURI builds the otpauth:// URI the user scans into their
// authenticator app.
func (mfa *MFAProvider) ProvisioningURI(userID, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("no MFA secret configured")
	}

	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", mfa.issuer)

	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + mfa.issuer + ":" + userID,
		RawQuery: v.Encode(),
	}
	return u.String(), nil
}

// VerifyToken verifies a TOTP token against the stored secret. The library
// tolerates one period of clock skew in each direction.
func (mfa *MFAProvider) VerifyToken(secret, token string) (bool, error) {
	if secret == "" {
		return false, fmt.Errorf("no MFA secret configured")
	}
	return totp.Validate(token, secret), nil
}
