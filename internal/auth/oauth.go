package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"golang.org/x/oauth2/github"
)

// Provider is one OAuth identity provider using the Authorization Code flow:
//  1. AuthURL sends the browser to the provider with a CSRF state value
//  2. the provider redirects back to the callback with a short-lived code
//  3. Exchange trades the code for tokens, server to server
type Provider interface {
	Name() ProviderName
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*TokenBundle, error)
}

// Refresher is implemented by providers whose access tokens expire.
type Refresher interface {
	Refresh(ctx context.Context, bundle TokenBundle) (TokenBundle, error)
}

// ErrNoRefreshToken means an expired bundle cannot be renewed.
var ErrNoRefreshToken = errors.New("auth: no refresh token")

// GitHubUser is the portion of the GitHub /user response we keep.
type GitHubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

// GitHubProvider issues non-expiring access tokens; there is nothing to refresh.
type GitHubProvider struct {
	config  *oauth2.Config
	userURL string
}

// NewGitHubProvider wraps an OAuth App's credentials.
// callbackURL must match the one registered with the app exactly,
// e.g. "http://localhost:3000/auth/github/callback".
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		userURL: "https://api.github.com/user",
	}
}

func (p *GitHubProvider) Name() ProviderName { return ProviderGitHub }

func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the code for a token and looks up the GitHub login so the
// session can show who is signed in.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*TokenBundle, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging GitHub code: %w", err)
	}

	// config.Client adds "Authorization: Bearer <token>" to every request.
	resp, err := p.config.Client(ctx, tok).Get(p.userURL)
	if err != nil {
		return nil, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: GitHub /user API returned status %d", resp.StatusCode)
	}

	var u GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("auth: decoding GitHub /user response: %w", err)
	}
	if u.ID == 0 {
		return nil, errors.New("auth: GitHub returned an invalid user (ID = 0)")
	}

	return &TokenBundle{
		Provider:    ProviderGitHub,
		Account:     u.Login,
		AccessToken: tok.AccessToken,
	}, nil
}

// GoogleProvider issues time-boxed access tokens. Offline access plus a
// forced consent prompt makes Google return a refresh token on every login.
type GoogleProvider struct {
	config *oauth2.Config
}

func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     googleEndpoint(endpoints.Google),
		},
	}
}

// googleEndpoint pins client credentials to the form body. Google's token
// endpoint accepts both styles, and this skips oauth2's auto-detect probe.
func googleEndpoint(e oauth2.Endpoint) oauth2.Endpoint {
	e.AuthStyle = oauth2.AuthStyleInParams
	return e
}

// WithTokenURL points the refresh and exchange calls somewhere else. Tests
// use it to aim at an httptest server.
func (p *GoogleProvider) WithTokenURL(tokenURL string) *GoogleProvider {
	cfg := *p.config
	cfg.Endpoint.TokenURL = tokenURL
	return &GoogleProvider{config: &cfg}
}

func (p *GoogleProvider) Name() ProviderName { return ProviderGoogle }

func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*TokenBundle, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging Google code: %w", err)
	}
	return bundleFromToken(ProviderGoogle, tok), nil
}

// Refresh performs one refresh_token grant: a form POST of client_id,
// client_secret, grant_type=refresh_token and refresh_token to the token
// endpoint. A rotated refresh token replaces the old one; otherwise the old
// one is kept.
func (p *GoogleProvider) Refresh(ctx context.Context, b TokenBundle) (TokenBundle, error) {
	if b.RefreshToken == "" {
		return b, ErrNoRefreshToken
	}

	// An empty access token makes the source consider the token invalid, so
	// Token() always goes to the network exactly once.
	src := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: b.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			return b, fmt.Errorf("auth: refreshing Google token: status %d: %w", rerr.Response.StatusCode, err)
		}
		return b, fmt.Errorf("auth: refreshing Google token: %w", err)
	}

	out := *bundleFromToken(ProviderGoogle, tok)
	out.Account = b.Account
	if out.RefreshToken == "" {
		out.RefreshToken = b.RefreshToken
	}
	return out, nil
}

func bundleFromToken(provider ProviderName, tok *oauth2.Token) *TokenBundle {
	b := &TokenBundle{
		Provider:     provider,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		b.ExpiresAt = tok.Expiry.Unix()
	} else if tok.ExpiresIn > 0 {
		b.ExpiresAt = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second).Unix()
	}
	return b
}
