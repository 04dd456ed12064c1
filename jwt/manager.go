// Package jwt issues and verifies the signed claim bundles used as session
// artifacts: access tokens, refresh tokens, and short-lived password-reset
// tokens. Tokens are signed, not encrypted.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const scopeReset = "password_reset"

var (
	// ErrInvalidToken is returned for a bad signature, malformed
	// structure, wrong scope, or expired access token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidRefreshToken is the refresh-path equivalent. A token
	// signed with the access secret always fails here.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrInvalidResetToken is returned when a password-reset token fails
	// verification.
	ErrInvalidResetToken = errors.New("invalid reset token")
)

// Config carries the two independent signing secrets and the per-kind TTLs.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte

	AccessTTL      time.Duration
	ShortAccessTTL time.Duration
	RefreshTTL     time.Duration
	ResetTTL       time.Duration

	Issuer string
	Leeway time.Duration
}

// Claims is the decoded payload common to every token kind.
type Claims struct {
	AccountID string `json:"uid"`
	Username  string `json:"username,omitempty"`
	Scope     string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies tokens with HS256. Access and refresh tokens
// use independent secrets, so each verification path rejects the other
// kind outright. Reset tokens share the access secret but carry a scope
// claim that both sides check.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a ready Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.AccessSecret) == 0 {
		return nil, errors.New("access secret required")
	}
	if len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("refresh secret required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.ResetTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.ShortAccessTTL <= 0 {
		cfg.ShortAccessTTL = cfg.AccessTTL
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Manager{config: cfg}, nil
}

// Access issues a session token for the account. When short is set the
// token uses the short TTL instead of the default.
func (m *Manager) Access(accountID, username string, short bool) (string, error) {
	ttl := m.config.AccessTTL
	if short {
		ttl = m.config.ShortAccessTTL
	}
	return m.sign(m.config.AccessSecret, Claims{
		AccountID:        accountID,
		Username:         username,
		RegisteredClaims: m.registered(ttl),
	})
}

// Refresh issues a refresh token for the account, signed with the refresh
// secret.
func (m *Manager) Refresh(accountID, username string) (string, error) {
	return m.sign(m.config.RefreshSecret, Claims{
		AccountID:        accountID,
		Username:         username,
		RegisteredClaims: m.registered(m.config.RefreshTTL),
	})
}

// Reset issues a short-lived password-reset token scoped so it can never
// pass access-token verification.
func (m *Manager) Reset(accountID string) (string, error) {
	return m.sign(m.config.AccessSecret, Claims{
		AccountID:        accountID,
		Scope:            scopeReset,
		RegisteredClaims: m.registered(m.config.ResetTTL),
	})
}

// VerifyAccess checks signature, structure, and expiry of a session token.
func (m *Manager) VerifyAccess(token string) (*Claims, error) {
	claims, err := m.parse(token, m.config.AccessSecret)
	if err != nil || claims.Scope != "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefresh checks a refresh token. Tokens signed with the access
// secret fail the signature check here.
func (m *Manager) VerifyRefresh(token string) (*Claims, error) {
	claims, err := m.parse(token, m.config.RefreshSecret)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	return claims, nil
}

// VerifyReset checks a password-reset token, requiring the reset scope.
func (m *Manager) VerifyReset(token string) (*Claims, error) {
	claims, err := m.parse(token, m.config.AccessSecret)
	if err != nil || claims.Scope != scopeReset {
		return nil, ErrInvalidResetToken
	}
	return claims, nil
}

// RefreshAccess verifies refreshToken and re-issues an access token for the
// same subject with the default TTL.
func (m *Manager) RefreshAccess(refreshToken string) (string, error) {
	claims, err := m.VerifyRefresh(refreshToken)
	if err != nil {
		return "", err
	}
	return m.Access(claims.AccountID, claims.Username, false)
}

func (m *Manager) registered(ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    m.config.Issuer,
	}
}

func (m *Manager) sign(secret []byte, claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func (m *Manager) parse(tokenStr string, secret []byte) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.AccountID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
