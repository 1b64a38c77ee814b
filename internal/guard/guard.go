// Package guard decides what a request may see given the session state.
//
// The decision is a pure function of (ready, loggedIn, path), so it is
// re-evaluated on every request and follows login state and path changes.
package guard

import (
	"log/slog"
	"net/http"
	"strings"
)

// Decision is the guard's verdict for one request.
type Decision int

const (
	// Placeholder: the session store has not finished loading.
	Placeholder Decision = iota
	// Redirect: nobody is logged in; send them to the login page.
	Redirect
	// Render: show the requested page.
	Render
)

func (d Decision) String() string {
	switch d {
	case Placeholder:
		return "placeholder"
	case Redirect:
		return "redirect"
	case Render:
		return "render"
	default:
		return "unknown"
	}
}

// LoginPath is where unauthenticated visitors are sent.
const LoginPath = "/login"

// publicPrefixes are reachable without a profile.
var publicPrefixes = []string{"/auth/", "/api/auth/", "/static/"}

var publicPaths = map[string]bool{
	LoginPath:      true,
	"/login/guest": true,
	"/healthz":     true,
}

// IsPublic reports whether path is open to logged-out visitors.
func IsPublic(path string) bool {
	if publicPaths[path] {
		return true
	}
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Evaluate applies the rules in order: not ready, then no profile on a
// non-public path, then render.
func Evaluate(ready, loggedIn bool, path string) Decision {
	if IsPublic(path) && path != LoginPath {
		return Render
	}
	if !ready {
		return Placeholder
	}
	if !loggedIn && path != LoginPath {
		return Redirect
	}
	return Render
}

// State is what the middleware needs from the session store.
type State interface {
	Ready() bool
	LoggedIn() bool
}

// Middleware enforces Evaluate on every request. Pages get a loading page or
// a 303 to /login; /api/* gets 503 or 401 JSON instead, since a redirect is
// useless to fetch().
func Middleware(state State, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := Evaluate(state.Ready(), state.LoggedIn(), r.URL.Path)
			api := strings.HasPrefix(r.URL.Path, "/api/")

			switch d {
			case Placeholder:
				if api {
					w.Header().Set("Retry-After", "1")
					writeJSON(w, http.StatusServiceUnavailable, "not_ready", "Session is still loading.")
					return
				}
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.Header().Set("Refresh", "1")
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(placeholderPage))
				return

			case Redirect:
				logger.Debug("guard: redirecting to login", slog.String("path", r.URL.Path))
				if api {
					writeJSON(w, http.StatusUnauthorized, "unauthorized", "Please log in.")
					return
				}
				http.Redirect(w, r, LoginPath, http.StatusSeeOther)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Both values are fixed strings above; no escaping needed.
	w.Write([]byte(`{"error":"` + kind + `","message":"` + message + `"}` + "\n"))
}

const placeholderPage = `<!doctype html>
<html><head><meta charset="utf-8"><title>CrewCrew</title></head>
<body><p class="loading">Loading…</p></body></html>
`
