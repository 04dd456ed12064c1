// Command authflowd serves the auth API over HTTP. Storage, redis, and
// SMTP are all optional: without a database DSN it runs on the
// in-memory store, without redis the throttles are off, and without
// SMTP the mails go to the log.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/httpapi"
	"github.com/MrEthical07/authflow/mail"
	"github.com/MrEthical07/authflow/memstore"
	"github.com/MrEthical07/authflow/pgstore"
)

type serviceConfig struct {
	Addr        string `env:"ADDR" envDefault:":8080"`
	Env         string `env:"APP_ENV" envDefault:"development"`
	AppName     string `env:"APP_NAME" envDefault:"authflow"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	DatabaseDSN string `env:"DATABASE_DSN"`
	RedisURL    string `env:"REDIS_URL"`

	JWTSecret        string `env:"JWT_SECRET,required"`
	JWTRefreshSecret string `env:"JWT_REFRESH_SECRET,required"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	OAuthRedirectBase  string `env:"OAUTH_REDIRECT_BASE" envDefault:"http://localhost:8080"`
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	_ = godotenv.Load()

	var sc serviceConfig
	if err := env.Parse(&sc); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := buildStore(ctx, log, sc)
	if err != nil {
		return err
	}
	defer closeStore()

	cfg := authflow.DefaultConfig()
	cfg.App.Name = sc.AppName
	cfg.App.ResetBaseURL = sc.FrontendURL + "/reset-password"
	cfg.JWT.AccessSecret = []byte(sc.JWTSecret)
	cfg.JWT.RefreshSecret = []byte(sc.JWTRefreshSecret)
	cfg.Providers = providerConfigs(sc)

	builder := authflow.New().
		WithConfig(cfg).
		WithStore(store).
		WithMailer(buildMailer(log, sc)).
		WithAuditSink(authflow.NewJSONWriterSink(os.Stdout))

	if sc.RedisURL != "" {
		opts, err := redis.ParseURL(sc.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		builder = builder.WithRedis(client)
	} else {
		log.Warn("redis not configured, flow throttles disabled")
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	api := httpapi.New(engine, log, httpapi.Config{
		SecureCookies:         sc.Env == "production",
		OAuthCallbackRedirect: sc.FrontendURL,
	}, cfg.Providers)

	srv := &http.Server{
		Addr:              sc.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", sc.Addr, "env", sc.Env)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func buildStore(ctx context.Context, log *slog.Logger, sc serviceConfig) (authflow.AccountStore, func(), error) {
	if sc.DatabaseDSN == "" {
		log.Warn("database not configured, using in-memory store")
		return memstore.New(), func() {}, nil
	}
	store, err := pgstore.Connect(ctx, sc.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

func buildMailer(log *slog.Logger, sc serviceConfig) authflow.Mailer {
	if sc.SMTPHost == "" {
		log.Warn("smtp not configured, mails go to the log")
		return mail.NewLogger(log)
	}
	mailer, err := mail.NewSMTP(mail.SMTPConfig{
		Host:     sc.SMTPHost,
		Port:     sc.SMTPPort,
		Username: sc.SMTPUsername,
		Password: sc.SMTPPassword,
		From:     sc.SMTPFrom,
	})
	if err != nil {
		log.Warn("smtp misconfigured, mails go to the log", "err", err)
		return mail.NewLogger(log)
	}
	return mailer
}

func providerConfigs(sc serviceConfig) []authflow.ProviderConfig {
	var providers []authflow.ProviderConfig
	if sc.GoogleClientID != "" {
		providers = append(providers, authflow.ProviderConfig{
			Name:         authflow.ProviderGoogle,
			Label:        "Google",
			Enabled:      true,
			ClientID:     sc.GoogleClientID,
			ClientSecret: sc.GoogleClientSecret,
			RedirectURL:  sc.OAuthRedirectBase + "/api/auth/google/callback",
			AuthURL:      "https://accounts.google.com/o/oauth2/auth",
			TokenURL:     "https://oauth2.googleapis.com/token",
			UserInfoURL:  "https://www.googleapis.com/oauth2/v2/userinfo",
			Scopes:       []string{"openid", "email", "profile"},
		})
	}
	if sc.GitHubClientID != "" {
		providers = append(providers, authflow.ProviderConfig{
			Name:         authflow.ProviderGitHub,
			Label:        "GitHub",
			Enabled:      true,
			ClientID:     sc.GitHubClientID,
			ClientSecret: sc.GitHubClientSecret,
			RedirectURL:  sc.OAuthRedirectBase + "/api/auth/github/callback",
			AuthURL:      "https://github.com/login/oauth/authorize",
			TokenURL:     "https://github.com/login/oauth/access_token",
			UserInfoURL:  "https://api.github.com/user",
			Scopes:       []string{"read:user", "user:email"},
		})
	}
	return providers
}
