package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/memstore"
)

type stubMailer struct {
	mu   sync.Mutex
	sent int
}

func (m *stubMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent++
	return nil
}

type testAPI struct {
	*API
	store  *memstore.Store
	router http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	cfg := authflow.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("test-access-secret-0123456789abcdef")
	cfg.JWT.RefreshSecret = []byte("test-refresh-secret-0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.KeyLength = 16

	store := memstore.New()
	engine, err := authflow.New().
		WithConfig(cfg).
		WithStore(store).
		WithMailer(&stubMailer{}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	api := New(engine, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{OAuthCallbackRedirect: "/"}, nil)
	return &testAPI{API: api, store: store, router: api.Router()}
}

func (ta *testAPI) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v\nbody: %s", err, rec.Body.String())
	}
	return env
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// register + verify through the API, returning nothing; the store holds
// the state.
func (ta *testAPI) registerVerified(t *testing.T, username, email, password string) {
	t.Helper()

	rec := ta.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": username, "email": email, "password": password,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = ta.do(t, http.MethodPost, "/api/auth/send-otp", map[string]string{"email": email})
	if rec.Code != http.StatusCreated {
		t.Fatalf("send-otp status = %d: %s", rec.Code, rec.Body.String())
	}

	account, err := ta.store.FindByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("FindByEmail failed: %v", err)
	}
	rec = ta.do(t, http.MethodPut, "/api/auth/validate-otp", map[string]string{
		"email": email, "otp": account.OTP,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("validate-otp status = %d: %s", rec.Code, rec.Body.String())
	}
}

func (ta *testAPI) login(t *testing.T, email, password string) []*http.Cookie {
	t.Helper()

	rec := ta.do(t, http.MethodPost, "/api/auth/login", map[string]any{
		"email": email, "password": password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}
	return rec.Result().Cookies()
}

func TestRegisterEndpoint(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "correct horse",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Error("success must be true")
	}

	// Missing email.
	rec = ta.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "bob", "password": "correct horse",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing email status = %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Error == nil || env.Error.Code != "AUTH_007" {
		t.Errorf("error = %+v, want AUTH_007", env.Error)
	}

	// Missing username.
	rec = ta.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "bob@example.com", "password": "correct horse",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing username status = %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Error == nil || env.Error.Code != "AUTH_007" {
		t.Errorf("error = %+v, want AUTH_007", env.Error)
	}
}

func TestRegisterUnverifiedConflictHintsOTP(t *testing.T) {
	ta := newTestAPI(t)

	ta.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "correct horse",
	})

	rec := ta.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "alice2", "email": "alice@example.com", "password": "correct horse",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Error == nil || env.Error.Code != "AUTH_012" {
		t.Fatalf("error = %+v, want AUTH_012", env.Error)
	}
	data, _ := env.Data.(map[string]any)
	if data["otpRedirect"] != true {
		t.Errorf("data = %v, want otpRedirect hint", env.Data)
	}
}

func TestLoginSetsSessionCookies(t *testing.T) {
	ta := newTestAPI(t)
	ta.registerVerified(t, "alice", "alice@example.com", "correct horse")

	rec := ta.do(t, http.MethodPost, "/api/auth/login", map[string]any{
		"email": "alice@example.com", "password": "correct horse", "rememberMe": true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	session := cookieByName(rec, sessionCookieName)
	if session == nil || session.Value == "" {
		t.Fatal("session cookie not set")
	}
	if !session.HttpOnly || session.SameSite != http.SameSiteStrictMode || session.Path != "/" {
		t.Errorf("session cookie attributes = %+v", session)
	}
	if refresh := cookieByName(rec, refreshCookieName); refresh == nil || refresh.Value == "" {
		t.Fatal("refresh cookie not set")
	}
}

func TestLoginErrorCodes(t *testing.T) {
	ta := newTestAPI(t)
	ta.registerVerified(t, "alice", "alice@example.com", "correct horse")

	cases := []struct {
		email, password string
		status          int
		code            string
	}{
		{"ghost@example.com", "whatever!!", http.StatusNotFound, "AUTH_017"},
		{"alice@example.com", "wrong password", http.StatusUnauthorized, "AUTH_003"},
	}
	for _, tc := range cases {
		rec := ta.do(t, http.MethodPost, "/api/auth/login", map[string]string{
			"email": tc.email, "password": tc.password,
		})
		if rec.Code != tc.status {
			t.Errorf("%s: status = %d, want %d", tc.email, rec.Code, tc.status)
		}
		if env := decodeEnvelope(t, rec); env.Error == nil || env.Error.Code != tc.code {
			t.Errorf("%s: error = %+v, want %s", tc.email, env.Error, tc.code)
		}
	}

	// Unverified account.
	ta.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "bob", "email": "bob@example.com", "password": "correct horse",
	})
	rec := ta.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "bob@example.com", "password": "correct horse",
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("unverified status = %d, want 403", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Error == nil || env.Error.Code != "AUTH_006" {
		t.Errorf("unverified error = %+v, want AUTH_006", env.Error)
	}
}

func TestMeRequiresSession(t *testing.T) {
	ta := newTestAPI(t)
	ta.registerVerified(t, "alice", "alice@example.com", "correct horse")

	rec := ta.do(t, http.MethodGet, "/api/user/me", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", rec.Code)
	}

	cookies := ta.login(t, "alice@example.com", "correct horse")
	rec = ta.do(t, http.MethodGet, "/api/user/me", nil, cookies...)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	data, _ := env.Data.(map[string]any)
	user, _ := data["user"].(map[string]any)
	if user["username"] != "alice" || user["emailVerified"] != true {
		t.Errorf("user = %v", user)
	}
}

func TestMeAcceptsBearerToken(t *testing.T) {
	ta := newTestAPI(t)
	ta.registerVerified(t, "alice", "alice@example.com", "correct horse")

	rec := ta.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "alice@example.com", "password": "correct horse",
	})
	env := decodeEnvelope(t, rec)
	data, _ := env.Data.(map[string]any)
	token, _ := data["accessToken"].(string)
	if token == "" {
		t.Fatal("login response missing accessToken")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/user/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec2 := httptest.NewRecorder()
	ta.router.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Fatalf("bearer status = %d: %s", rec2.Code, rec2.Body.String())
	}
}

func TestRefreshEndpoint(t *testing.T) {
	ta := newTestAPI(t)
	ta.registerVerified(t, "alice", "alice@example.com", "correct horse")
	cookies := ta.login(t, "alice@example.com", "correct horse")

	rec := ta.do(t, http.MethodPost, "/api/auth/refresh", nil, cookies...)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if session := cookieByName(rec, sessionCookieName); session == nil || session.Value == "" {
		t.Fatal("refresh must re-set the session cookie")
	}

	// Without the refresh cookie.
	rec = ta.do(t, http.MethodPost, "/api/auth/refresh", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("no cookie status = %d, want 403", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Error == nil || env.Error.Code != "JWT_002" {
		t.Errorf("error = %+v, want JWT_002", env.Error)
	}
}

func TestLogoutClearsCookies(t *testing.T) {
	ta := newTestAPI(t)
	ta.registerVerified(t, "alice", "alice@example.com", "correct horse")
	cookies := ta.login(t, "alice@example.com", "correct horse")

	rec := ta.do(t, http.MethodPost, "/api/auth/logout", nil, cookies...)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	session := cookieByName(rec, sessionCookieName)
	if session == nil || session.MaxAge >= 0 {
		t.Error("session cookie not expired")
	}
	refresh := cookieByName(rec, refreshCookieName)
	if refresh == nil || refresh.MaxAge >= 0 {
		t.Error("refresh cookie not expired")
	}
}

func TestPasswordResetFlow(t *testing.T) {
	ta := newTestAPI(t)
	ta.registerVerified(t, "alice", "alice@example.com", "correct horse")

	rec := ta.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{
		"email": "alice@example.com",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("reset-password status = %d: %s", rec.Code, rec.Body.String())
	}
	reset := cookieByName(rec, resetCookieName)
	if reset == nil || reset.Value == "" {
		t.Fatal("reset cookie not set")
	}
	if reset.Path != "/api/auth/update-password" {
		t.Errorf("reset cookie path = %q", reset.Path)
	}

	rec = ta.do(t, http.MethodPut, "/api/auth/update-password", map[string]string{
		"newPassword": "battery staple",
	}, reset)
	if rec.Code != http.StatusCreated {
		t.Fatalf("update-password status = %d: %s", rec.Code, rec.Body.String())
	}
	if cleared := cookieByName(rec, resetCookieName); cleared == nil || cleared.MaxAge >= 0 {
		t.Error("reset cookie not cleared after use")
	}

	// New password works, replay of the cookie does not.
	ta.login(t, "alice@example.com", "battery staple")
	rec = ta.do(t, http.MethodPut, "/api/auth/update-password", map[string]string{
		"newPassword": "third password",
	}, reset)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("replay status = %d, want 401", rec.Code)
	}
}

func TestUpdatePasswordWithoutCookie(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodPut, "/api/auth/update-password", map[string]string{
		"newPassword": "battery staple",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Error == nil || env.Error.Code != "JWT_001" {
		t.Errorf("error = %+v, want JWT_001", env.Error)
	}
}

func TestChangePasswordEndpoint(t *testing.T) {
	ta := newTestAPI(t)
	ta.registerVerified(t, "alice", "alice@example.com", "correct horse")
	cookies := ta.login(t, "alice@example.com", "correct horse")

	rec := ta.do(t, http.MethodPut, "/api/auth/change-password", map[string]string{
		"currentPassword": "wrong password", "newPassword": "battery staple",
	}, cookies...)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("wrong current status = %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Error == nil || env.Error.Code != "AUTH_004" {
		t.Errorf("error = %+v, want AUTH_004", env.Error)
	}

	rec = ta.do(t, http.MethodPut, "/api/auth/change-password", map[string]string{
		"currentPassword": "correct horse", "newPassword": "battery staple",
	}, cookies...)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	ta.login(t, "alice@example.com", "battery staple")
}

func TestDeleteAccountEndpoint(t *testing.T) {
	ta := newTestAPI(t)
	ta.registerVerified(t, "alice", "alice@example.com", "correct horse")
	cookies := ta.login(t, "alice@example.com", "correct horse")

	rec := ta.do(t, http.MethodDelete, "/api/auth/delete", nil, cookies...)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if session := cookieByName(rec, sessionCookieName); session == nil || session.MaxAge >= 0 {
		t.Error("session cookie not cleared on delete")
	}

	rec = ta.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "alice@example.com", "password": "correct horse",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("deleted account login status = %d, want 404", rec.Code)
	}
}

func TestProvidersEndpoint(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodGet, "/api/auth/providers", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	data, _ := env.Data.(map[string]any)
	if _, ok := data["publicProviders"]; !ok {
		t.Errorf("data = %v, want publicProviders key", env.Data)
	}
}

func TestUnknownOAuthProvider(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodGet, "/api/auth/myspace", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestOAuthStartRedirects(t *testing.T) {
	engineStore := memstore.New()
	cfg := authflow.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("test-access-secret-0123456789abcdef")
	cfg.JWT.RefreshSecret = []byte("test-refresh-secret-0123456789abcdef")
	cfg.Providers = []authflow.ProviderConfig{{
		Name:         authflow.ProviderGoogle,
		Label:        "Google",
		Enabled:      true,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost/api/auth/google/callback",
		AuthURL:      "https://accounts.example.com/auth",
		TokenURL:     "https://accounts.example.com/token",
		UserInfoURL:  "https://accounts.example.com/userinfo",
		Scopes:       []string{"email"},
	}}

	engine, err := authflow.New().
		WithConfig(cfg).
		WithStore(engineStore).
		WithMailer(&stubMailer{}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	api := New(engine, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{OAuthCallbackRedirect: "/"}, cfg.Providers)
	router := api.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/auth/google", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	location := rec.Header().Get("Location")
	if !strings.HasPrefix(location, "https://accounts.example.com/auth") {
		t.Errorf("redirect = %q", location)
	}
	if !strings.Contains(location, "state=") || !strings.Contains(location, "client_id=client-id") {
		t.Errorf("redirect missing oauth params: %q", location)
	}

	state := cookieByName(rec, stateCookieName)
	if state == nil || state.Value == "" {
		t.Fatal("state cookie not set")
	}
	if !strings.Contains(location, state.Value) {
		t.Error("redirect state must match the cookie")
	}
}
