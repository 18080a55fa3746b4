package iam

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Silviu2326/Dentaflow-sub002/pkg/config"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/types"
)

// JWTClaims carries the user identity inside access tokens
type JWTClaims struct {
	UserID      string   `json:"user_id"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	SiteID      string   `json:"site_id"`
	Permissions []string `json:"permissions"`
	TokenType   string   `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates HS256 access and refresh tokens
type TokenManager struct {
	cfg *config.JWTConfig
}

// NewTokenManager creates a new token manager
func NewTokenManager(cfg *config.JWTConfig) *TokenManager {
	return &TokenManager{cfg: cfg}
}

// IssueTokens creates an access/refresh token pair for the user. The access
// token carries the role, site and permission snapshot so handlers never
// re-read the user row per request.
func (tm *TokenManager) IssueTokens(user *types.User) (*types.AuthToken, error) {
	now := time.Now()
	accessTTL := time.Duration(tm.cfg.AccessTokenTTL) * time.Second

	accessToken, err := tm.sign(&JWTClaims{
		UserID:      user.ID,
		Name:        user.Name,
		Role:        string(user.Role),
		SiteID:      string(user.SiteID),
		Permissions: user.Permissions,
		TokenType:   "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tm.cfg.Issuer,
			Audience:  jwt.ClaimStrings{tm.cfg.Audience},
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(accessTTL)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshToken, err := tm.sign(&JWTClaims{
		UserID:    user.ID,
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tm.cfg.Issuer,
			Audience:  jwt.ClaimStrings{tm.cfg.Audience},
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(tm.cfg.RefreshTokenTTL) * time.Second)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &types.AuthToken{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTTL.Seconds()),
		IssuedAt:     now,
	}, nil
}

func (tm *TokenManager) sign(claims *JWTClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(tm.cfg.SecretKey))
}

// ValidateJWT validates an access token and returns its user claims
func (tm *TokenManager) ValidateJWT(tokenString string) (*types.UserClaims, error) {
	claims, err := tm.parse(tokenString)
	if err != nil {
		return nil, err
	}

	if claims.TokenType != "access" {
		return nil, fmt.Errorf("not an access token")
	}

	return &types.UserClaims{
		UserID:      claims.UserID,
		Name:        claims.Name,
		Role:        types.UserRole(claims.Role),
		SiteID:      types.ClinicSite(claims.SiteID),
		Permissions: claims.Permissions,
	}, nil
}

// ValidateRefreshToken validates a refresh token and returns the user ID it
// was issued to.
func (tm *TokenManager) ValidateRefreshToken(tokenString string) (string, error) {
	claims, err := tm.parse(tokenString)
	if err != nil {
		return "", err
	}

	if claims.TokenType != "refresh" {
		return "", fmt.Errorf("not a refresh token")
	}
	return claims.UserID, nil
}

func (tm *TokenManager) parse(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(tm.cfg.SecretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
