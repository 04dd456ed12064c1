package authflow

import (
	"context"
	"errors"
	"fmt"
)

// Login authenticates a credentials account and issues a token pair.
// rememberMe selects the short access TTL; without it the default long
// TTL applies. Guard order is fixed so callers see the most specific error:
// unknown email, then external-provider accounts, then a bad password,
// then an unverified email.
func (e *Engine) Login(ctx context.Context, email, pass string, rememberMe bool) (*Session, *Account, error) {
	if !e.ready() {
		return nil, nil, ErrEngineNotReady
	}

	email = NormalizeEmail(email)

	if err := e.checkLimiter(ctx, e.loginLimiter, email); err != nil {
		e.metricInc(MetricLoginRateLimited)
		e.metricInc(MetricRateLimitHit)
		e.emitRateLimit(ctx, "login", func() map[string]string {
			return map[string]string{"email": email}
		})
		return nil, nil, ErrLoginRateLimited
	}

	account, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.loginFailed(ctx, email, "", ErrAccountNotFound)
			return nil, nil, ErrAccountNotFound
		}
		return nil, nil, fmt.Errorf("login: lookup email: %w", err)
	}

	if account.Provider.External() {
		e.loginFailed(ctx, email, account.ID, ErrProviderMismatch)
		return nil, nil, ErrProviderMismatch
	}

	ok, err := e.passwordHash.Verify(pass, account.PasswordHash)
	if err != nil {
		return nil, nil, fmt.Errorf("login: verify password: %w", err)
	}
	if !ok {
		e.loginFailed(ctx, email, account.ID, ErrInvalidCredentials)
		return nil, nil, ErrInvalidCredentials
	}

	if !account.EmailVerified {
		e.loginFailed(ctx, email, account.ID, ErrEmailNotVerified)
		return nil, nil, ErrEmailNotVerified
	}

	session, err := e.issueSession(account, rememberMe)
	if err != nil {
		return nil, nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, account.ID, nil, func() map[string]string {
		return map[string]string{"email": email, "remember": fmt.Sprint(rememberMe)}
	})
	return session, account, nil
}

// Refresh exchanges a valid refresh token for a new access token. The
// refresh token itself is not rotated.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}

	access, err := e.tokens.RefreshAccess(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", ErrInvalidRefreshToken, nil)
		return "", ErrInvalidRefreshToken
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, "", nil, nil)
	return access, nil
}

func (e *Engine) issueSession(account *Account, rememberMe bool) (*Session, error) {
	// rememberMe requests the short TTL that forces a refresh within
	// the hour; without it the default long TTL applies.
	access, err := e.tokens.Access(account.ID, account.Username, rememberMe)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := e.tokens.Refresh(account.ID, account.Username)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return &Session{AccessToken: access, RefreshToken: refresh}, nil
}

func (e *Engine) loginFailed(ctx context.Context, email, accountID string, cause error) {
	e.incrementLimiter(ctx, e.loginLimiter, email)
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, accountID, cause, func() map[string]string {
		return map[string]string{"email": email}
	})
}
