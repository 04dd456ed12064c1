package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/jwt"
)

type contextKey string

const claimsKey contextKey = "httpapi.claims"

// clientIP copies the remote address (already normalized by RealIP)
// into the engine's context slot so throttles and audit see it.
func (a *API) clientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if i := strings.LastIndexByte(ip, ':'); i > 0 && strings.Count(ip, ":") == 1 {
			ip = ip[:i]
		}
		next.ServeHTTP(w, r.WithContext(authflow.WithClientIP(r.Context(), ip)))
	})
}

// requireSession authenticates via the session cookie, falling back to
// a bearer token for non-browser clients.
func (a *API) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			a.writeUnauthorized(w)
			return
		}
		claims, err := a.engine.VerifyAccess(token)
		if err != nil {
			a.writeUnauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func (a *API) sessionAccountID(r *http.Request) string {
	claims, ok := r.Context().Value(claimsKey).(*jwt.Claims)
	if !ok {
		return ""
	}
	return claims.AccountID
}
