package authflow

import (
	"context"
	"time"
)

const (
	auditEventRegisterSuccess       = "register_success"
	auditEventRegisterFailure       = "register_failure"
	auditEventRegisterDuplicate     = "register_duplicate"
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventLoginRateLimited      = "login_rate_limited"
	auditEventOAuthLogin            = "oauth_login"
	auditEventOAuthAccountCreated   = "oauth_account_created"
	auditEventRefreshSuccess        = "refresh_success"
	auditEventRefreshInvalid        = "refresh_invalid"
	auditEventOTPRequest            = "otp_request"
	auditEventOTPValidateSuccess    = "otp_validate_success"
	auditEventOTPValidateFailure    = "otp_validate_failure"
	auditEventPasswordResetRequest  = "password_reset_request"
	auditEventPasswordResetConfirm  = "password_reset_confirm"
	auditEventPasswordChangeSuccess = "password_change_success"
	auditEventPasswordChangeFailure = "password_change_failure"
	auditEventAccountDeleted        = "account_deleted"
	auditEventRateLimitTriggered    = "rate_limit_triggered"
)

// emitAudit builds and dispatches one audit event. The metadata closure is
// only invoked when auditing is enabled.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	opErr error,
	metadata func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		AccountID: accountID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, flow string, metadata func() map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: auditEventRateLimitTriggered,
		IP:        clientIPFromContext(ctx),
		Success:   false,
		Metadata:  map[string]string{"flow": flow},
	}
	if metadata != nil {
		for k, v := range metadata() {
			event.Metadata[k] = v
		}
	}

	e.audit.Emit(ctx, event)
}
