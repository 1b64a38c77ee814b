package auth

import "time"

// ProviderName tags which identity provider issued a token bundle.
type ProviderName string

const (
	ProviderGoogle ProviderName = "google"
	ProviderGitHub ProviderName = "github"
)

// RefreshAccessTokenError is the error tag set on a bundle whose refresh
// failed. Anything relying on a time-boxed token must check for it.
const RefreshAccessTokenError = "RefreshAccessTokenError"

// TokenBundle is what the session cookie carries for one provider login.
// It is never written anywhere else.
//
// ExpiresAt is unix seconds; zero means the token does not expire (GitHub).
type TokenBundle struct {
	Provider     ProviderName `json:"provider"`
	Account      string       `json:"account,omitempty"`
	AccessToken  string       `json:"access_token,omitempty"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	ExpiresAt    int64        `json:"expires_at,omitempty"`
	Error        string       `json:"error,omitempty"`
}

// Expired reports whether a time-boxed token is at or past its expiry.
func (b TokenBundle) Expired(now time.Time) bool {
	return b.ExpiresAt > 0 && now.Unix() >= b.ExpiresAt
}

// Session is the read-out handlers see for the current request.
type Session struct {
	Provider ProviderName `json:"provider"`
	Account  string       `json:"account,omitempty"`
	Error    string       `json:"error,omitempty"`

	accessToken string
	expiresAt   int64
}

func newSession(b TokenBundle) *Session {
	return &Session{
		Provider:    b.Provider,
		Account:     b.Account,
		Error:       b.Error,
		accessToken: b.AccessToken,
		expiresAt:   b.ExpiresAt,
	}
}

// GoogleAccessToken is empty unless this is a healthy Google session.
func (s *Session) GoogleAccessToken() string {
	if s == nil || s.Provider != ProviderGoogle {
		return ""
	}
	return s.accessToken
}

// GitHubAccessToken is empty unless this is a GitHub session.
func (s *Session) GitHubAccessToken() string {
	if s == nil || s.Provider != ProviderGitHub {
		return ""
	}
	return s.accessToken
}

// ExpiresAt is zero for non-expiring tokens.
func (s *Session) ExpiresAt() time.Time {
	if s == nil || s.expiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(s.expiresAt, 0)
}

// Degraded is true once a refresh has failed. The only way out is a new login.
func (s *Session) Degraded() bool {
	return s != nil && s.Error != ""
}
