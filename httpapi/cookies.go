package httpapi

import (
	"net/http"
	"time"

	"github.com/MrEthical07/authflow"
)

const (
	sessionCookieName = "authflow_session"
	refreshCookieName = "authflow_refresh"
	resetCookieName   = "authflow_reset"
	stateCookieName   = "authflow_state"

	sessionCookieMaxAge = 7 * 24 * time.Hour
	resetCookieMaxAge   = time.Hour
	stateCookieMaxAge   = 10 * time.Minute
)

func (a *API) setSessionCookies(w http.ResponseWriter, session *authflow.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.AccessToken,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   a.cfg.SecureCookies,
		MaxAge:   int(sessionCookieMaxAge.Seconds()),
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    session.RefreshToken,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   a.cfg.SecureCookies,
		MaxAge:   int(sessionCookieMaxAge.Seconds()),
	})
}

func (a *API) clearSessionCookies(w http.ResponseWriter) {
	a.expireCookie(w, sessionCookieName, "/")
	a.expireCookie(w, refreshCookieName, "/")
}

// setResetCookie scopes the short-lived reset token to the
// update-password endpoint only.
func (a *API) setResetCookie(w http.ResponseWriter, accountID, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     resetCookieName,
		Value:    accountID + ":" + token,
		Path:     "/api/auth/update-password",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   a.cfg.SecureCookies,
		MaxAge:   int(resetCookieMaxAge.Seconds()),
	})
}

func (a *API) clearResetCookie(w http.ResponseWriter) {
	a.expireCookie(w, resetCookieName, "/api/auth/update-password")
}

func (a *API) setStateCookie(w http.ResponseWriter, state string) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/api/auth",
		HttpOnly: true,
		// Lax so the provider's redirect back still carries it.
		SameSite: http.SameSiteLaxMode,
		Secure:   a.cfg.SecureCookies,
		MaxAge:   int(stateCookieMaxAge.Seconds()),
	})
}

func (a *API) clearStateCookie(w http.ResponseWriter) {
	a.expireCookie(w, stateCookieName, "/api/auth")
}

func (a *API) expireCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   a.cfg.SecureCookies,
		MaxAge:   -1,
	})
}
