package authflow

import (
	"context"
	"strings"
	"time"
)

// Provider identifies the identity source of an account: local credentials
// or one of the supported OAuth providers.
type Provider string

const (
	// ProviderCredentials marks a local email+password account.
	ProviderCredentials Provider = "credentials"
	// ProviderGoogle marks an account federated through Google.
	ProviderGoogle Provider = "google"
	// ProviderGitHub marks an account federated through GitHub.
	ProviderGitHub Provider = "github"
	// ProviderFacebook marks an account federated through Facebook.
	ProviderFacebook Provider = "facebook"
	// ProviderTwitter marks an account federated through Twitter.
	ProviderTwitter Provider = "twitter"
	// ProviderLinkedIn marks an account federated through LinkedIn.
	ProviderLinkedIn Provider = "linkedin"
	// ProviderInstagram marks an account federated through Instagram.
	ProviderInstagram Provider = "instagram"
)

// Valid reports whether p is one of the known providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderCredentials, ProviderGoogle, ProviderGitHub, ProviderFacebook,
		ProviderTwitter, ProviderLinkedIn, ProviderInstagram:
		return true
	}
	return false
}

// External reports whether p is an OAuth provider rather than local
// credentials. External accounts carry no password and are pre-verified.
func (p Provider) External() bool {
	return p != ProviderCredentials && p.Valid()
}

// Account is the full record stored per user. The OTP and ResetToken field
// pairs are both set or both zero; stores enforce that when clearing them.
type Account struct {
	ID            string
	Username      string
	Email         string
	PasswordHash  string
	HasPassword   bool
	Provider      Provider
	EmailVerified bool

	OTP       string
	OTPExpiry time.Time

	ResetToken       string
	ResetTokenExpiry time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAccount is the input for [AccountStore.Create]. PasswordHash is empty
// for externally federated accounts.
type NewAccount struct {
	Username      string
	Email         string
	PasswordHash  string
	Provider      Provider
	EmailVerified bool
}

// AccountStore is the persistence contract the engine is built on. Each
// mutation names exactly the fields it may change; there is no generic
// update call, so a store cannot be tricked into mass-assigning fields.
//
// Consume operations are conditional writes: they only apply when the
// stored secret still equals the expected value, and report false when a
// concurrent call won the race. That guard is what makes OTP codes and
// reset tokens single-use under concurrent validation.
//
// Lookups return [ErrAccountNotFound] (possibly wrapped) for missing rows.
// Create returns [ErrEmailTaken] or [ErrUsernameTaken] when a unique
// constraint fires; the engine checks first, the store is the backstop.
type AccountStore interface {
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByUsername(ctx context.Context, username string) (*Account, error)

	Create(ctx context.Context, input NewAccount) (*Account, error)

	// SetPasswordHash replaces the stored hash and marks HasPassword.
	SetPasswordHash(ctx context.Context, id, hash string) error

	// SetOTP installs a pending verification code with its expiry,
	// replacing any previous one.
	SetOTP(ctx context.Context, id, code string, expiry time.Time) error

	// ConsumeOTP marks the account verified and clears both OTP fields,
	// but only if the stored code still equals code.
	ConsumeOTP(ctx context.Context, id, code string) (bool, error)

	// SetResetToken installs a pending reset token with its expiry,
	// replacing any previous one.
	SetResetToken(ctx context.Context, id, token string, expiry time.Time) error

	// ConsumeResetToken installs the new password hash and clears both
	// reset fields, but only if the stored token still equals token.
	ConsumeResetToken(ctx context.Context, id, token, hash string) (bool, error)

	Delete(ctx context.Context, id string) error
}

// Mailer delivers out-of-band notifications. The engine only depends on
// this single send contract; SMTP wiring lives in the mail sub-package.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Session is the pair of signed tokens issued on successful authentication.
type Session struct {
	AccessToken  string
	RefreshToken string
}

// RegisterRequest is the input for [Engine.Register].
type RegisterRequest struct {
	Username string
	Email    string
	Password string
}

// ProviderProfile is the identity asserted by an OAuth provider after a
// successful callback exchange. No password is ever attached to it.
type ProviderProfile struct {
	Provider Provider
	Email    string
	Username string
}

// ProviderInfo describes one enabled OAuth provider for client display.
type ProviderInfo struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// NormalizeEmail lowercases and trims an email address. Every lookup and
// every stored email goes through this, which is what makes the one
// account-per-email invariant case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
