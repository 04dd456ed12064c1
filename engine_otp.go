package authflow

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authflow/internal"
	"github.com/MrEthical07/authflow/mail"
)

// SendOTP generates a fresh verification code for an unverified account,
// stores it with its expiry, and mails it. A new request always replaces
// any code still pending. The email is sent only after the code is
// durably stored, so a delivered code is always redeemable until it
// expires or is replaced.
func (e *Engine) SendOTP(ctx context.Context, email string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	email = NormalizeEmail(email)

	if err := e.checkLimiter(ctx, e.otpLimiter, email); err != nil {
		e.metricInc(MetricRateLimitHit)
		e.emitRateLimit(ctx, "otp", func() map[string]string {
			return map[string]string{"email": email}
		})
		return ErrOTPRateLimited
	}

	account, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("send otp: lookup email: %w", err)
	}
	if account.EmailVerified {
		return ErrAlreadyVerified
	}

	code, err := internal.NewOTP(e.config.OTP.Digits)
	if err != nil {
		return fmt.Errorf("send otp: generate code: %w", err)
	}

	expiry := time.Now().Add(e.config.OTP.TTL)
	if err := e.store.SetOTP(ctx, account.ID, code, expiry); err != nil {
		return fmt.Errorf("send otp: store code: %w", err)
	}

	e.incrementLimiter(ctx, e.otpLimiter, email)

	body, err := mail.OTPBody(e.config.App.Name, account.Username, code, e.config.OTP.TTL)
	if err != nil {
		return fmt.Errorf("send otp: render mail: %w", err)
	}
	if err := e.mailer.Send(ctx, account.Email, e.config.App.Name+" verification code", body); err != nil {
		return fmt.Errorf("send otp: deliver mail: %w", err)
	}

	e.metricInc(MetricOTPRequest)
	e.emitAudit(ctx, auditEventOTPRequest, true, account.ID, nil, func() map[string]string {
		return map[string]string{"email": email}
	})
	return nil
}

// ValidateOTP redeems a verification code. On success the account is
// marked verified and the code cleared in one conditional store write,
// so two concurrent redemptions of the same code cannot both succeed.
func (e *Engine) ValidateOTP(ctx context.Context, email, code string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	email = NormalizeEmail(email)

	account, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("validate otp: lookup email: %w", err)
	}
	if account.OTP == "" {
		return e.otpFailed(ctx, account, ErrNoPendingOTP)
	}
	if time.Now().After(account.OTPExpiry) {
		return e.otpFailed(ctx, account, ErrOTPExpired)
	}
	if subtle.ConstantTimeCompare([]byte(account.OTP), []byte(code)) != 1 {
		return e.otpFailed(ctx, account, ErrOTPMismatch)
	}

	ok, err := e.store.ConsumeOTP(ctx, account.ID, code)
	if err != nil {
		return fmt.Errorf("validate otp: consume code: %w", err)
	}
	if !ok {
		// Lost the race: someone consumed or replaced the code between
		// the lookup and the conditional write.
		return e.otpFailed(ctx, account, ErrNoPendingOTP)
	}

	e.metricInc(MetricOTPValidateSuccess)
	e.emitAudit(ctx, auditEventOTPValidateSuccess, true, account.ID, nil, func() map[string]string {
		return map[string]string{"email": email}
	})
	return nil
}

func (e *Engine) otpFailed(ctx context.Context, account *Account, cause error) error {
	e.metricInc(MetricOTPValidateFailure)
	e.emitAudit(ctx, auditEventOTPValidateFailure, false, account.ID, cause, nil)
	return cause
}
