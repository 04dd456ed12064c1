package authflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// OAuthCallback completes a federated login. The profile comes from the
// provider's userinfo endpoint; accounts created here are verified from
// the start and carry no password. An existing account with the same
// email is reused regardless of which provider originally created it,
// so a returning user keeps one identity.
func (e *Engine) OAuthCallback(ctx context.Context, profile ProviderProfile) (*Session, *Account, error) {
	if !e.ready() {
		return nil, nil, ErrEngineNotReady
	}
	if !profile.Provider.External() {
		return nil, nil, fmt.Errorf("oauth callback: %q is not an external provider", profile.Provider)
	}

	email := NormalizeEmail(profile.Email)
	if email == "" {
		return nil, nil, fmt.Errorf("oauth callback: provider %s returned no email", profile.Provider)
	}

	account, err := e.store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		// Reuse the existing account.
	case errors.Is(err, ErrAccountNotFound):
		account, err = e.createOAuthAccount(ctx, profile, email)
		if err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, fmt.Errorf("oauth callback: lookup email: %w", err)
	}

	session, err := e.issueSession(account, false)
	if err != nil {
		return nil, nil, err
	}

	e.metricInc(MetricOAuthLogin)
	e.emitAudit(ctx, auditEventOAuthLogin, true, account.ID, nil, func() map[string]string {
		return map[string]string{"provider": string(profile.Provider), "email": email}
	})
	return session, account, nil
}

func (e *Engine) createOAuthAccount(ctx context.Context, profile ProviderProfile, email string) (*Account, error) {
	username := profile.Username
	if username == "" {
		username = usernameFromEmail(email)
	}

	account, err := e.store.Create(ctx, NewAccount{
		Username:      username,
		Email:         email,
		Provider:      profile.Provider,
		EmailVerified: true,
	})
	if err != nil {
		// A username collision with an unrelated account is the only
		// conflict left: derive a unique one and retry once.
		if errors.Is(err, ErrUsernameTaken) {
			account, err = e.store.Create(ctx, NewAccount{
				Username:      username + "-" + uuid.NewString()[:8],
				Email:         email,
				Provider:      profile.Provider,
				EmailVerified: true,
			})
		}
		if err != nil {
			return nil, fmt.Errorf("oauth callback: create account: %w", err)
		}
	}

	e.emitAudit(ctx, auditEventOAuthAccountCreated, true, account.ID, nil, func() map[string]string {
		return map[string]string{"provider": string(profile.Provider), "email": email}
	})
	return account, nil
}

func usernameFromEmail(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
