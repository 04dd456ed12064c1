package authflow

import (
	"context"
	"errors"

	"github.com/MrEthical07/authflow/jwt"
	"github.com/MrEthical07/authflow/password"
)

// Engine orchestrates every account-lifecycle flow. Configure it through
// [Builder] and treat it as immutable afterwards.
type Engine struct {
	config       Config
	store        AccountStore
	mailer       Mailer
	tokens       *jwt.Manager
	passwordHash *password.Argon2

	loginLimiter *flowLimiter
	otpLimiter   *flowLimiter
	resetLimiter *flowLimiter

	audit   *auditDispatcher
	metrics *Metrics

	providers []ProviderInfo
}

// Close flushes and stops the audit dispatcher. Safe on a nil engine.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all flow counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// Providers lists the OAuth providers enabled in configuration, in config
// order.
func (e *Engine) Providers() []ProviderInfo {
	if e == nil {
		return nil
	}
	out := make([]ProviderInfo, len(e.providers))
	copy(out, e.providers)
	return out
}

// VerifyAccess validates a session token and returns its claims. Used by
// the boundary's session middleware.
func (e *Engine) VerifyAccess(token string) (*jwt.Claims, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.tokens.VerifyAccess(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyReset validates a password-reset token and returns its claims.
func (e *Engine) VerifyReset(token string) (*jwt.Claims, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.tokens.VerifyReset(token)
	if err != nil {
		return nil, ErrResetInvalid
	}
	return claims, nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.store != nil && e.tokens != nil && e.passwordHash != nil
}

// checkLimiter fails open when the limiter backend is down: only a real
// over-budget verdict blocks the flow.
func (e *Engine) checkLimiter(ctx context.Context, l *flowLimiter, identifier string) error {
	err := l.Check(ctx, identifier, clientIPFromContext(ctx))
	if errors.Is(err, errRateLimited) {
		return err
	}
	return nil
}

func (e *Engine) incrementLimiter(ctx context.Context, l *flowLimiter, identifier string) {
	// Counter bookkeeping never surfaces to the caller.
	_ = l.Increment(ctx, identifier, clientIPFromContext(ctx))
}
