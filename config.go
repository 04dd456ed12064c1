package authflow

import (
	"bytes"
	"errors"
	"time"
)

// Config carries every engine tunable. Zero values are not usable directly;
// start from [DefaultConfig] and override.
type Config struct {
	App           AppConfig
	JWT           JWTConfig
	Password      PasswordConfig
	OTP           OTPConfig
	PasswordReset PasswordResetConfig
	RateLimit     RateLimitConfig
	Providers     []ProviderConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

// AppConfig names the application in outbound email and points reset links
// at the frontend.
type AppConfig struct {
	Name         string
	ResetBaseURL string
}

// JWTConfig configures the token issuer. Access and refresh secrets must
// differ: a refresh token must never verify on the access path or vice
// versa.
type JWTConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	// AccessTTL is the default session lifetime. ShortAccessTTL is used
	// when the caller asks for a short-lived session instead.
	AccessTTL      time.Duration
	ShortAccessTTL time.Duration
	RefreshTTL     time.Duration
	// ResetTTL bounds password-reset tokens.
	ResetTTL time.Duration
	Issuer   string
	Leeway   time.Duration
}

// PasswordConfig holds the argon2id parameters plus the policy minimum.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

// OTPConfig controls verification code shape and lifetime.
type OTPConfig struct {
	Digits int
	TTL    time.Duration
}

// PasswordResetConfig controls the reset-token window stored on the record.
type PasswordResetConfig struct {
	TTL time.Duration
}

// RateLimitConfig tunes the Redis-backed flow throttles. The limiters only
// run when the engine is built with a Redis client.
type RateLimitConfig struct {
	Enabled          bool
	EnableIPThrottle bool

	MaxLoginAttempts int
	LoginCooldown    time.Duration

	MaxOTPRequests int
	OTPCooldown    time.Duration

	MaxResetRequests int
	ResetCooldown    time.Duration
}

// ProviderConfig statically describes one OAuth provider. The enabled set
// is fixed at startup; there is no runtime strategy registration.
type ProviderConfig struct {
	Name         Provider
	Label        string
	Enabled      bool
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Scopes       []string
}

// AuditConfig controls the buffered audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the baseline configuration: 7-day sessions (1 hour
// when short-lived is requested), 7-day refresh, 1-hour reset tokens,
// 6-digit OTP valid for 5 minutes, argon2id at 64MB/3/2.
func DefaultConfig() Config {
	return Config{
		App: AppConfig{
			Name: "authflow",
		},
		JWT: JWTConfig{
			AccessTTL:      7 * 24 * time.Hour,
			ShortAccessTTL: time.Hour,
			RefreshTTL:     7 * 24 * time.Hour,
			ResetTTL:       time.Hour,
			Issuer:         "authflow",
			Leeway:         30 * time.Second,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   8,
		},
		OTP: OTPConfig{
			Digits: 6,
			TTL:    5 * time.Minute,
		},
		PasswordReset: PasswordResetConfig{
			TTL: time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled:          true,
			EnableIPThrottle: true,
			MaxLoginAttempts: 10,
			LoginCooldown:    15 * time.Minute,
			MaxOTPRequests:   5,
			OTPCooldown:      15 * time.Minute,
			MaxResetRequests: 5,
			ResetCooldown:    15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSecret = append([]byte(nil), cfg.JWT.AccessSecret...)
	out.JWT.RefreshSecret = append([]byte(nil), cfg.JWT.RefreshSecret...)
	out.Providers = append([]ProviderConfig(nil), cfg.Providers...)
	for i, p := range out.Providers {
		out.Providers[i].Scopes = append([]string(nil), p.Scopes...)
	}
	return out
}

func validateConfig(cfg Config) error {
	if len(cfg.JWT.AccessSecret) < 32 {
		return errors.New("jwt access secret must be at least 32 bytes")
	}
	if len(cfg.JWT.RefreshSecret) < 32 {
		return errors.New("jwt refresh secret must be at least 32 bytes")
	}
	if bytes.Equal(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret) {
		return errors.New("jwt access and refresh secrets must differ")
	}
	if cfg.JWT.AccessTTL <= 0 || cfg.JWT.RefreshTTL <= 0 || cfg.JWT.ResetTTL <= 0 {
		return errors.New("jwt TTLs must be positive")
	}
	if cfg.JWT.ShortAccessTTL <= 0 || cfg.JWT.ShortAccessTTL > cfg.JWT.AccessTTL {
		return errors.New("short access TTL must be positive and no longer than the default")
	}
	if cfg.OTP.Digits < 6 || cfg.OTP.Digits > 10 {
		return errors.New("otp digits must be between 6 and 10")
	}
	if cfg.OTP.TTL <= 0 {
		return errors.New("otp TTL must be positive")
	}
	if cfg.PasswordReset.TTL <= 0 {
		return errors.New("password reset TTL must be positive")
	}
	if cfg.Password.MinLength < 8 {
		return errors.New("password minimum length must be at least 8")
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.MaxLoginAttempts <= 0 || cfg.RateLimit.MaxOTPRequests <= 0 || cfg.RateLimit.MaxResetRequests <= 0 {
			return errors.New("rate limit attempt budgets must be positive")
		}
		if cfg.RateLimit.LoginCooldown <= 0 || cfg.RateLimit.OTPCooldown <= 0 || cfg.RateLimit.ResetCooldown <= 0 {
			return errors.New("rate limit cooldowns must be positive")
		}
	}
	seen := map[Provider]bool{}
	for _, p := range cfg.Providers {
		if !p.Name.External() {
			return errors.New("provider config must name an external provider")
		}
		if seen[p.Name] {
			return errors.New("duplicate provider config: " + string(p.Name))
		}
		seen[p.Name] = true
		if p.Enabled && (p.ClientID == "" || p.ClientSecret == "") {
			return errors.New("enabled provider missing client credentials: " + string(p.Name))
		}
	}
	return nil
}
