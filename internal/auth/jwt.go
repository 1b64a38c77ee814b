// Package auth owns the OAuth session: provider logins, the signed session
// cookie that carries the provider token bundle, and the one-shot refresh of
// time-boxed tokens.
//
// SESSION FLOW:
//  1. User visits /auth/{provider}/login → redirected to the provider
//  2. The provider calls back /auth/{provider}/callback with a code
//  3. The code is exchanged for a TokenBundle
//  4. SessionManager.Issue seals the bundle into an HS256 JWT, stored in an
//     HttpOnly cookie
//  5. On later requests, Sessions middleware reads the cookie. If a Google
//     token has expired it is refreshed once and the cookie re-issued
//
// The JWT only proves the cookie came from this server. The tokens inside
// are encrypted (see seal.go), so the cookie is safe to hand to the browser.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "crewcrew"

	// SessionLifetime bounds the cookie, not the provider token inside it.
	SessionLifetime = 30 * 24 * time.Hour
)

// SessionManager issues and reads session tokens.
type SessionManager struct {
	secret    []byte
	sealer    *sealer
	providers map[ProviderName]Provider
	logger    *slog.Logger
	now       func() time.Time
}

// NewSessionManager needs a secret of at least 16 characters.
// Example: SESSION_SECRET=$(openssl rand -hex 32)
func NewSessionManager(secret string, logger *slog.Logger, providers ...Provider) (*SessionManager, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	s, err := newSealer([]byte(secret))
	if err != nil {
		return nil, err
	}
	m := &SessionManager{
		secret:    []byte(secret),
		sealer:    s,
		providers: make(map[ProviderName]Provider, len(providers)),
		logger:    logger,
		now:       time.Now,
	}
	for _, p := range providers {
		m.providers[p.Name()] = p
	}
	return m, nil
}

// Provider returns the configured provider with that name.
func (m *SessionManager) Provider(name ProviderName) (Provider, bool) {
	p, ok := m.providers[name]
	return p, ok
}

// claims is the JWT payload. Tok holds the sealed TokenBundle; Subject is the
// provider-tagged account for log lines.
type claims struct {
	Tok string `json:"tok"`
	jwt.RegisteredClaims
}

// Issue seals the bundle and signs a session token for it.
func (m *SessionManager) Issue(b TokenBundle) (string, error) {
	plain, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("auth: encoding bundle: %w", err)
	}
	sealed, err := m.sealer.seal(plain)
	if err != nil {
		return "", err
	}

	now := m.now()
	c := claims{
		Tok: sealed,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(b.Provider) + ":" + b.Account,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionLifetime)),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Read verifies raw and returns its session.
//
// An expired time-boxed token gets exactly one refresh attempt. Success or
// failure, the bundle changed, so Read also returns a re-issued token the
// caller must store in place of raw. reissued is "" when nothing changed.
//
// A failed refresh is not an error: the session comes back with Error set to
// RefreshAccessTokenError and no access token. A bundle already carrying the
// error tag is returned as is, without another attempt.
func (m *SessionManager) Read(ctx context.Context, raw string) (sess *Session, reissued string, err error) {
	b, err := m.parse(raw)
	if err != nil {
		return nil, "", err
	}

	if b.Error != "" || !b.Expired(m.now()) {
		return newSession(b), "", nil
	}

	b = m.refresh(ctx, b)
	reissued, err = m.Issue(b)
	if err != nil {
		return nil, "", err
	}
	return newSession(b), reissued, nil
}

func (m *SessionManager) refresh(ctx context.Context, b TokenBundle) TokenBundle {
	var err error
	if r, ok := m.providers[b.Provider].(Refresher); ok {
		var next TokenBundle
		if next, err = r.Refresh(ctx, b); err == nil {
			return next
		}
	} else {
		err = fmt.Errorf("auth: provider %q cannot refresh", b.Provider)
	}

	m.logger.Warn("access token refresh failed",
		slog.String("provider", string(b.Provider)),
		slog.String("error", err.Error()),
	)
	b.AccessToken = ""
	b.Error = RefreshAccessTokenError
	return b
}

// parse validates the JWT (signature, HS256 only, issuer, expiry) and opens
// the sealed bundle.
func (m *SessionManager) parse(raw string) (TokenBundle, error) {
	token, err := jwt.ParseWithClaims(
		raw,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenBundle{}, errors.New("auth: session expired")
		}
		return TokenBundle{}, fmt.Errorf("auth: invalid session: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid || c.Tok == "" {
		return TokenBundle{}, errors.New("auth: invalid session claims")
	}

	plain, err := m.sealer.open(c.Tok)
	if err != nil {
		return TokenBundle{}, err
	}
	var b TokenBundle
	if err := json.Unmarshal(plain, &b); err != nil {
		return TokenBundle{}, fmt.Errorf("auth: decoding bundle: %w", err)
	}
	return b, nil
}
