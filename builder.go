package authflow

import (
	"errors"

	"github.com/MrEthical07/authflow/jwt"
	"github.com/MrEthical07/authflow/password"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine] from its collaborators. Redis is optional;
// without it the flow throttles are disabled.
type Builder struct {
	config Config
	store  AccountStore
	mailer Mailer
	redis  redis.UniversalClient
	sink   AuditSink

	built bool
}

// New starts a builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the account persistence backend. Required.
func (b *Builder) WithStore(store AccountStore) *Builder {
	b.store = store
	return b
}

// WithMailer sets the notification gateway. Required.
func (b *Builder) WithMailer(mailer Mailer) *Builder {
	b.mailer = mailer
	return b
}

// WithRedis enables the login/OTP/reset throttles on the given client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink routes audit events to sink instead of discarding them.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the engine. A builder can
// only be used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.built = true

	if b.store == nil {
		return nil, errors.New("account store is required")
	}
	if b.mailer == nil {
		return nil, errors.New("mailer is required")
	}
	if err := validateConfig(b.config); err != nil {
		return nil, err
	}

	tokens, err := jwt.NewManager(jwt.Config{
		AccessSecret:   b.config.JWT.AccessSecret,
		RefreshSecret:  b.config.JWT.RefreshSecret,
		AccessTTL:      b.config.JWT.AccessTTL,
		ShortAccessTTL: b.config.JWT.ShortAccessTTL,
		RefreshTTL:     b.config.JWT.RefreshTTL,
		ResetTTL:       b.config.JWT.ResetTTL,
		Issuer:         b.config.JWT.Issuer,
		Leeway:         b.config.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:      b.config.Password.Memory,
		Time:        b.config.Password.Time,
		Parallelism: b.config.Password.Parallelism,
		SaltLength:  b.config.Password.SaltLength,
		KeyLength:   b.config.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:       b.config,
		store:        b.store,
		mailer:       b.mailer,
		tokens:       tokens,
		passwordHash: hasher,
		audit:        newAuditDispatcher(b.config.Audit, b.sink),
		metrics:      NewMetrics(b.config.Metrics),
	}

	if b.redis != nil && b.config.RateLimit.Enabled {
		rl := b.config.RateLimit
		e.loginLimiter = newFlowLimiter(b.redis, "afl", rl.MaxLoginAttempts, rl.LoginCooldown, rl.EnableIPThrottle)
		e.otpLimiter = newFlowLimiter(b.redis, "afo", rl.MaxOTPRequests, rl.OTPCooldown, rl.EnableIPThrottle)
		e.resetLimiter = newFlowLimiter(b.redis, "afr", rl.MaxResetRequests, rl.ResetCooldown, rl.EnableIPThrottle)
	}

	for _, p := range b.config.Providers {
		if p.Enabled {
			e.providers = append(e.providers, ProviderInfo{
				Name:  string(p.Name),
				Label: p.Label,
			})
		}
	}

	return e, nil
}
