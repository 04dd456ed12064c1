package authflow

import (
	"context"
	"errors"
	"fmt"
)

// Register creates an unverified credentials account. Email conflicts with
// a verified account return [ErrEmailTaken]; conflicts with an account that
// never finished verification return [ErrEmailTakenUnverified] so the
// caller can offer an OTP resend instead. No session token is issued:
// verification comes first.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*Account, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	email := NormalizeEmail(req.Email)
	if req.Username == "" || email == "" {
		return nil, ErrMissingField
	}
	if len(req.Password) < e.config.Password.MinLength {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{"email": email, "reason": "password_policy"}
		})
		return nil, ErrPasswordPolicy
	}

	existing, err := e.store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		conflict := ErrEmailTaken
		if !existing.EmailVerified {
			conflict = ErrEmailTakenUnverified
		}
		e.metricInc(MetricRegisterDuplicate)
		e.emitAudit(ctx, auditEventRegisterDuplicate, false, existing.ID, conflict, func() map[string]string {
			return map[string]string{"email": email}
		})
		return nil, conflict
	case !errors.Is(err, ErrAccountNotFound):
		return nil, fmt.Errorf("register: lookup email: %w", err)
	}

	if _, err := e.store.FindByUsername(ctx, req.Username); err == nil {
		e.metricInc(MetricRegisterDuplicate)
		e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", ErrUsernameTaken, func() map[string]string {
			return map[string]string{"username": req.Username}
		})
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("register: lookup username: %w", err)
	}

	hash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("register: hash password: %w", err)
	}

	account, err := e.store.Create(ctx, NewAccount{
		Username:      req.Username,
		Email:         email,
		PasswordHash:  hash,
		Provider:      ProviderCredentials,
		EmailVerified: false,
	})
	if err != nil {
		// Unique constraints are the backstop for races between the
		// lookups above and this insert.
		if errors.Is(err, ErrEmailTaken) || errors.Is(err, ErrUsernameTaken) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", err, nil)
			return nil, err
		}
		return nil, fmt.Errorf("register: create account: %w", err)
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, account.ID, nil, func() map[string]string {
		return map[string]string{"email": email}
	})
	return account, nil
}
