package iam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Silviu2326/Dentaflow-sub002/pkg/config"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/types"
)

func testTokenManager(accessTTL int) *TokenManager {
	return NewTokenManager(&config.JWTConfig{
		SecretKey:       "test-secret-key-with-enough-entropy",
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: 86400,
		Issuer:          "dentaflow-api",
		Audience:        "dentaflow-users",
	})
}

func tokenUser() *types.User {
	return &types.User{
		ID:          "user-1",
		Name:        "Test Dentist",
		Role:        types.RoleDentist,
		SiteID:      types.SiteCentro,
		Permissions: []string{"agenda:read", "agenda:update"},
	}
}

func TestIssueTokens_AccessTokenRoundTrip(t *testing.T) {
	tm := testTokenManager(3600)

	pair, err := tm.IssueTokens(tokenUser())
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, int64(3600), pair.ExpiresIn)

	claims, err := tm.ValidateJWT(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, types.RoleDentist, claims.Role)
	assert.Equal(t, types.SiteCentro, claims.SiteID)
	assert.Equal(t, []string{"agenda:read", "agenda:update"}, claims.Permissions)
}

func TestValidateJWT_RejectsRefreshToken(t *testing.T) {
	tm := testTokenManager(3600)

	pair, err := tm.IssueTokens(tokenUser())
	require.NoError(t, err)

	_, err = tm.ValidateJWT(pair.RefreshToken)
	assert.Error(t, err)
}

func TestValidateRefreshToken_RejectsAccessToken(t *testing.T) {
	tm := testTokenManager(3600)

	pair, err := tm.IssueTokens(tokenUser())
	require.NoError(t, err)

	_, err = tm.ValidateRefreshToken(pair.AccessToken)
	assert.Error(t, err)

	userID, err := tm.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestValidateJWT_RejectsExpiredToken(t *testing.T) {
	tm := testTokenManager(-60)

	pair, err := tm.IssueTokens(tokenUser())
	require.NoError(t, err)

	_, err = tm.ValidateJWT(pair.AccessToken)
	assert.Error(t, err)
}

func TestValidateJWT_RejectsWrongKey(t *testing.T) {
	tm := testTokenManager(3600)
	pair, err := tm.IssueTokens(tokenUser())
	require.NoError(t, err)

	other := testTokenManager(3600)
	other.cfg.SecretKey = "a-completely-different-secret-key"

	_, err = other.ValidateJWT(pair.AccessToken)
	assert.Error(t, err)
}

func TestValidateJWT_RejectsGarbage(t *testing.T) {
	tm := testTokenManager(3600)

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := tm.ValidateJWT(token)
		assert.Error(t, err, "token %q", token)
	}
}
