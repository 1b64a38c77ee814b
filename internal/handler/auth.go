package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"github.com/sakif/crewcrew/internal/auth"
	"github.com/sakif/crewcrew/internal/service"
)

const stateCookie = "oauth_state"

// AuthHandler runs the OAuth sign-in flow for every configured provider.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin    → redirect the browser to the provider's consent page
//   - HandleCallback → exchange the code, seal the tokens into the session cookie
//   - HandleSignOut  → clear the session cookie
//   - HandleSession  → report the current OAuth session (never the tokens)
//
// The OAuth session lives only in the cookie. It is separate from the local
// profile; a sign-in starts a local session too when there is none, so the
// pages behind the guard open.
type AuthHandler struct {
	sessions *auth.SessionManager
	local    *service.SessionStore
	logger   *slog.Logger
}

func NewAuthHandler(sessions *auth.SessionManager, local *service.SessionStore, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, local: local, logger: logger}
}

func (h *AuthHandler) provider(w http.ResponseWriter, r *http.Request) (auth.Provider, bool) {
	name := auth.ProviderName(chi.URLParam(r, "provider"))
	p, ok := h.sessions.Provider(name)
	if !ok {
		http.Error(w, "unknown sign-in provider", http.StatusNotFound)
	}
	return p, ok
}

// HandleLogin redirects the user to the provider's authorization page.
//
// HTTP: GET /auth/{provider}/login
//
// CSRF PROTECTION VIA STATE:
// A random state is stored in a short-lived cookie and sent to the
// provider; HandleCallback checks the provider echoes the same value back.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w, r)
	if !ok {
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, p.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleCallback completes the sign-in.
//
// HTTP: GET /auth/{provider}/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for the provider's token bundle
//  3. Seal the bundle into the session cookie
//  4. Start a local session if there is none
//  5. Redirect to the office
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w, r)
	if !ok {
		return
	}

	// --- Step 1: Validate CSRF state ---
	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || r.URL.Query().Get("state") != c.Value {
		h.logger.Warn("auth callback: state mismatch", slog.String("provider", string(p.Name())))
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization",
			slog.String("provider", string(p.Name())),
			slog.String("error", errParam),
		)
		http.Redirect(w, r, service.LoginPath+"?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	// --- Step 2: Exchange code ---
	bundle, err := p.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: exchange failed",
			slog.String("provider", string(p.Name())),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusBadGateway)
		return
	}

	// --- Step 3: Issue the session cookie ---
	token, err := h.sessions.Issue(*bundle)
	if err != nil {
		h.logger.Error("auth callback: issuing session failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}
	auth.SetSessionCookie(w, token)

	// --- Step 4: Local session ---
	if !h.local.LoggedIn() && bundle.Account != "" {
		if _, err := h.local.Login(r.Context(), bundle.Account); err != nil {
			h.logger.Warn("auth callback: starting local session failed", slog.String("error", err.Error()))
		}
	}

	h.logger.Info("signed in",
		slog.String("provider", string(p.Name())),
		slog.String("account", bundle.Account),
	)
	http.Redirect(w, r, service.HomePath, http.StatusSeeOther)
}

// HandleSignOut clears the session cookie. The provider tokens go with it;
// the local profile is untouched.
//
// HTTP: POST /auth/signout
func (h *AuthHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}

type authSessionView struct {
	*auth.Session
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// HandleSession reports the OAuth session for page scripts: provider,
// account, error tag and expiry. An empty object means no session.
//
// HTTP: GET /api/auth/session
func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	s, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	v := authSessionView{Session: s}
	if exp := s.ExpiresAt(); !exp.IsZero() {
		v.ExpiresAt = &exp
	}
	writeJSON(w, http.StatusOK, v)
}
