// Package token issues and validates the signed bearer credentials of the
// service: long-lived session tokens and short-lived, scope-bound re-auth
// tokens. Revocation is handled here as well so that every validation
// consults the same store.
package token

import (
	"errors"
	"fmt"
	"time"

	"savepass/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Token purposes. A token minted for one purpose is never accepted where the
// other is expected.
const (
	PurposeAuth   = "auth"
	PurposeReAuth = "reAuth"
)

// Scope identifies a sensitive action category that requires step-up
// re-authentication. The set is closed; scopes are passed explicitly to the
// gate, never bound through closures.
type Scope string

const (
	ScopeCreatePasskey      Scope = "create-passkey"
	ScopeRemovePasskey      Scope = "remove-passkey"
	ScopeManageSecondFactor Scope = "manage-second-factor"
)

// Valid reports whether s is one of the known scopes.
func (s Scope) Valid() bool {
	switch s {
	case ScopeCreatePasskey, ScopeRemovePasskey, ScopeManageSecondFactor:
		return true
	}
	return false
}

// ErrTokenInvalid covers every validation failure: bad signature, expiry,
// wrong purpose, revoked token, vanished account. Callers must not be able
// to distinguish which check failed.
var ErrTokenInvalid = errors.New("token invalid")

// Claims is the JWT payload for both token purposes. SessionToken and Scope
// are only set on re-auth tokens.
type Claims struct {
	UserID       uint   `json:"user_id"`
	Purpose      string `json:"purpose"`
	SessionToken string `json:"session_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Service signs, validates and revokes tokens. One instance is shared by
// middlewares and handlers; it holds no mutable state beyond the database
// handle, so concurrent use is safe.
type Service struct {
	DB         *gorm.DB
	Secret     string
	Issuer     string
	SessionTTL time.Duration
	ReAuthTTL  time.Duration
}

// NewService constructs a token Service with sane fallbacks for the TTLs.
func NewService(db *gorm.DB, secret, issuer string, sessionTTL, reAuthTTL time.Duration) *Service {
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	if reAuthTTL <= 0 {
		reAuthTTL = 5 * time.Minute
	}
	return &Service{
		DB:         db,
		Secret:     secret,
		Issuer:     issuer,
		SessionTTL: sessionTTL,
		ReAuthTTL:  reAuthTTL,
	}
}

// IssueSession signs a session token for the account.
func (s *Service) IssueSession(userID uint) (string, error) {
	return s.sign(&Claims{
		UserID:  userID,
		Purpose: PurposeAuth,
	}, s.SessionTTL)
}

// ValidateSession runs the full validation pipeline: signature and expiry,
// purpose tag, revocation lookup, and subject resolution. On success it
// returns the account; the caller already holds the literal token string,
// which downstream step-up logic binds re-auth tokens against.
func (s *Service) ValidateSession(tokenStr string) (*models.User, error) {
	claims, err := s.parse(tokenStr)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	if claims.Purpose != PurposeAuth {
		return nil, ErrTokenInvalid
	}

	revoked, err := s.IsRevoked(tokenStr)
	if err != nil {
		return nil, fmt.Errorf("revocation lookup: %w", err)
	}
	if revoked {
		return nil, ErrTokenInvalid
	}

	// Credential material stays out of the default read; verification paths
	// that need it select those columns explicitly.
	var user models.User
	if err := s.DB.Omit("password_hash", "password_salt", "authenticator_secret").
		First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	return &user, nil
}

func (s *Service) sign(claims *Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    s.Issuer,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(s.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// parse verifies signature and expiry and returns the claims.
func (s *Service) parse(tokenStr string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
