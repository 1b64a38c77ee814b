package auth

import (
	"context"
	"log/slog"
	"net/http"
)

// CookieName is the session cookie. It is HttpOnly, so page scripts never see
// the provider tokens even in sealed form.
const CookieName = "crewcrew_session"

// contextKey is unexported so only this package can read or write the
// session in a request context.
type contextKey string

const sessionKey contextKey = "session"

// Sessions reads the session cookie on every request, refreshing an expired
// Google token once, and stores the result in the request context.
//
// It never blocks a request: a missing or invalid cookie just means no OAuth
// session. An invalid cookie is cleared so the browser stops sending it.
func Sessions(m *SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(CookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			sess, reissued, err := m.Read(r.Context(), cookie.Value)
			if err != nil {
				m.logger.Debug("dropping session cookie", slog.String("error", err.Error()))
				ClearSessionCookie(w)
				next.ServeHTTP(w, r)
				return
			}
			if reissued != "" {
				SetSessionCookie(w, reissued)
			}

			ctx := context.WithValue(r.Context(), sessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns (nil, false) when the request has no OAuth session.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey).(*Session)
	return s, ok && s != nil
}

// RequireFreshSession sends degraded sessions back through the provider's
// login, which is the only way to clear RefreshAccessTokenError. Requests
// without an OAuth session pass through untouched.
func RequireFreshSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s, ok := SessionFromContext(r.Context()); ok && s.Degraded() {
			http.Redirect(w, r, "/auth/"+string(s.Provider)+"/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SetSessionCookie stores a token from SessionManager.Issue.
// Secure should be true in production (HTTPS only); it is left off for local dev.
func SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(SessionLifetime.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie tells the browser to delete the session cookie.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
