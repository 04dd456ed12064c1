package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/internal"
)

// oauthProvider pairs an oauth2 client config with the userinfo
// endpoint its tokens unlock.
type oauthProvider struct {
	name        authflow.Provider
	config      *oauth2.Config
	userInfoURL string
}

func buildOAuthProviders(configs []authflow.ProviderConfig) map[authflow.Provider]*oauthProvider {
	providers := make(map[authflow.Provider]*oauthProvider, len(configs))
	for _, pc := range configs {
		if !pc.Enabled {
			continue
		}
		name := authflow.Provider(pc.Name)
		providers[name] = &oauthProvider{
			name: name,
			config: &oauth2.Config{
				ClientID:     pc.ClientID,
				ClientSecret: pc.ClientSecret,
				RedirectURL:  pc.RedirectURL,
				Scopes:       pc.Scopes,
				Endpoint: oauth2.Endpoint{
					AuthURL:  pc.AuthURL,
					TokenURL: pc.TokenURL,
				},
			},
			userInfoURL: pc.UserInfoURL,
		}
	}
	return providers
}

func (a *API) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	provider, ok := a.oauth[authflow.Provider(chi.URLParam(r, "provider"))]
	if !ok {
		http.NotFound(w, r)
		return
	}

	state, err := internal.NewStateToken()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.setStateCookie(w, state)
	http.Redirect(w, r, provider.config.AuthCodeURL(state), http.StatusFound)
}

func (a *API) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider, ok := a.oauth[authflow.Provider(chi.URLParam(r, "provider"))]
	if !ok {
		http.NotFound(w, r)
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		a.clearStateCookie(w)
		a.writeBadRequest(w, "AUTH_002", "OAuth state mismatch.")
		return
	}
	a.clearStateCookie(w)

	code := r.URL.Query().Get("code")
	if code == "" {
		a.writeBadRequest(w, "AUTH_002", "Missing authorization code.")
		return
	}

	token, err := provider.config.Exchange(r.Context(), code)
	if err != nil {
		a.log.Error("oauth exchange failed", "provider", provider.name, "err", err)
		a.writeBadRequest(w, "AUTH_002", "Provider sign-in failed.")
		return
	}

	profile, err := provider.fetchProfile(r.Context(), token)
	if err != nil {
		a.log.Error("oauth userinfo failed", "provider", provider.name, "err", err)
		a.writeBadRequest(w, "AUTH_002", "Provider sign-in failed.")
		return
	}

	session, _, err := a.engine.OAuthCallback(r.Context(), profile)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	a.setSessionCookies(w, session)
	http.Redirect(w, r, a.cfg.OAuthCallbackRedirect, http.StatusFound)
}

// fetchProfile pulls the provider's userinfo document and extracts the
// fields the engine needs. Providers disagree on field names, so every
// common spelling is tried.
func (p *oauthProvider) fetchProfile(ctx context.Context, token *oauth2.Token) (authflow.ProviderProfile, error) {
	client := p.config.Client(ctx, token)
	resp, err := client.Get(p.userInfoURL)
	if err != nil {
		return authflow.ProviderProfile{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return authflow.ProviderProfile{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return authflow.ProviderProfile{}, fmt.Errorf("read userinfo: %w", err)
	}

	var raw struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Login    string `json:"login"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return authflow.ProviderProfile{}, fmt.Errorf("decode userinfo: %w", err)
	}

	username := raw.Username
	if username == "" {
		username = raw.Login
	}
	if username == "" {
		username = raw.Name
	}

	return authflow.ProviderProfile{
		Provider: p.name,
		Email:    raw.Email,
		Username: username,
	}, nil
}
