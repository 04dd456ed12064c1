package authflow

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authflow/mail"
)

// RequestPasswordReset issues a signed, single-use reset token for a
// credentials account and mails a link carrying it. The raw token is
// stored on the record so redemption can be made single-use; issuing a
// new token invalidates any outstanding one. The token is also returned
// so the boundary can hand it to the requesting client directly.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}

	email = NormalizeEmail(email)

	if err := e.checkLimiter(ctx, e.resetLimiter, email); err != nil {
		e.metricInc(MetricRateLimitHit)
		e.emitRateLimit(ctx, "password_reset", func() map[string]string {
			return map[string]string{"email": email}
		})
		return "", ErrResetRateLimited
	}

	account, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return "", ErrAccountNotFound
		}
		return "", fmt.Errorf("request password reset: lookup email: %w", err)
	}
	if account.Provider.External() {
		return "", ErrProviderMismatch
	}

	token, err := e.tokens.Reset(account.ID)
	if err != nil {
		return "", fmt.Errorf("request password reset: sign token: %w", err)
	}

	expiry := time.Now().Add(e.config.PasswordReset.TTL)
	if err := e.store.SetResetToken(ctx, account.ID, token, expiry); err != nil {
		return "", fmt.Errorf("request password reset: store token: %w", err)
	}

	e.incrementLimiter(ctx, e.resetLimiter, email)

	body, err := mail.ResetBody(e.config.App.Name, account.Username, e.config.App.ResetBaseURL, account.ID, token, e.config.PasswordReset.TTL)
	if err != nil {
		return "", fmt.Errorf("request password reset: render mail: %w", err)
	}
	if err := e.mailer.Send(ctx, account.Email, e.config.App.Name+" password reset", body); err != nil {
		return "", fmt.Errorf("request password reset: deliver mail: %w", err)
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, account.ID, nil, func() map[string]string {
		return map[string]string{"email": email}
	})
	return token, nil
}

// ResetPassword redeems a reset token and installs a new password hash.
// The token must verify cryptographically, match the stored copy, and
// still be within its expiry. The hash swap and token clear happen in
// one conditional store write.
func (e *Engine) ResetPassword(ctx context.Context, accountID, token, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if len(newPassword) < e.config.Password.MinLength {
		return ErrPasswordPolicy
	}

	claims, err := e.tokens.VerifyReset(token)
	if err != nil {
		return e.resetFailed(ctx, accountID, ErrResetInvalid)
	}
	if claims.AccountID != accountID {
		return e.resetFailed(ctx, accountID, ErrResetInvalid)
	}

	account, err := e.store.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return e.resetFailed(ctx, accountID, ErrResetInvalid)
		}
		return fmt.Errorf("reset password: lookup account: %w", err)
	}
	if account.ResetToken == "" || subtle.ConstantTimeCompare([]byte(account.ResetToken), []byte(token)) != 1 {
		return e.resetFailed(ctx, accountID, ErrResetInvalid)
	}
	if time.Now().After(account.ResetTokenExpiry) {
		return e.resetFailed(ctx, accountID, ErrResetExpired)
	}

	if account.HasPassword {
		same, err := e.passwordHash.Verify(newPassword, account.PasswordHash)
		if err != nil {
			return fmt.Errorf("reset password: compare password: %w", err)
		}
		if same {
			return e.resetFailed(ctx, accountID, ErrSamePassword)
		}
	}

	hash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("reset password: hash password: %w", err)
	}

	ok, err := e.store.ConsumeResetToken(ctx, account.ID, token, hash)
	if err != nil {
		return fmt.Errorf("reset password: consume token: %w", err)
	}
	if !ok {
		return e.resetFailed(ctx, accountID, ErrResetInvalid)
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, account.ID, nil, nil)
	return nil
}

// ChangePassword swaps a password for an account that knows its current
// one. External-provider accounts have no password to change.
func (e *Engine) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	account, err := e.store.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("change password: lookup account: %w", err)
	}
	if account.Provider.External() || !account.HasPassword {
		return ErrProviderMismatch
	}

	ok, err := e.passwordHash.Verify(currentPassword, account.PasswordHash)
	if err != nil {
		return fmt.Errorf("change password: verify password: %w", err)
	}
	if !ok {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, account.ID, ErrInvalidCurrentPassword, nil)
		return ErrInvalidCurrentPassword
	}

	if len(newPassword) < e.config.Password.MinLength {
		return ErrPasswordPolicy
	}
	if newPassword == currentPassword {
		return ErrSamePassword
	}

	hash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("change password: hash password: %w", err)
	}
	if err := e.store.SetPasswordHash(ctx, account.ID, hash); err != nil {
		return fmt.Errorf("change password: store hash: %w", err)
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, account.ID, nil, nil)
	return nil
}

func (e *Engine) resetFailed(ctx context.Context, accountID string, cause error) error {
	e.metricInc(MetricPasswordResetFailure)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, false, accountID, cause, nil)
	return cause
}
