// Package httpapi exposes the auth engine over HTTP: JSON handlers, the
// session cookie contract, and the OAuth redirect dance.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrEthical07/authflow"
)

// Config carries boundary-level settings; engine behavior lives in the
// engine's own config.
type Config struct {
	// SecureCookies marks cookies Secure. Leave false only for local
	// development over plain HTTP.
	SecureCookies bool
	// OAuthCallbackRedirect is where the browser lands after a
	// completed provider login, typically the frontend root.
	OAuthCallbackRedirect string
}

// API is the HTTP boundary over one engine.
type API struct {
	engine *authflow.Engine
	log    *slog.Logger
	cfg    Config
	oauth  map[authflow.Provider]*oauthProvider
}

// New builds the boundary. providers holds the engine-side OAuth
// configuration used to construct the oauth2 clients.
func New(engine *authflow.Engine, log *slog.Logger, cfg Config, providers []authflow.ProviderConfig) *API {
	if log == nil {
		log = slog.Default()
	}
	return &API{
		engine: engine,
		log:    log,
		cfg:    cfg,
		oauth:  buildOAuthProviders(providers),
	}
}

// Router assembles all routes under /api/auth plus /api/user/me.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(a.clientIP)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", a.handleRegister)
		r.Post("/login", a.handleLogin)
		r.Post("/logout", a.handleLogout)
		r.Post("/refresh", a.handleRefresh)
		r.Post("/send-otp", a.handleSendOTP)
		r.Put("/validate-otp", a.handleValidateOTP)
		r.Post("/reset-password", a.handleResetPasswordRequest)
		r.Put("/update-password", a.handleUpdatePassword)
		r.Get("/providers", a.handleProviders)
		r.Get("/{provider}", a.handleOAuthStart)
		r.Get("/{provider}/callback", a.handleOAuthCallback)

		r.Group(func(r chi.Router) {
			r.Use(a.requireSession)
			r.Put("/change-password", a.handleChangePassword)
			r.Delete("/delete", a.handleDeleteAccount)
		})
	})

	r.Route("/api/user", func(r chi.Router) {
		r.Use(a.requireSession)
		r.Get("/me", a.handleMe)
	})

	return r
}
