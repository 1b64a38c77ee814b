// Package backend is the thin client for the CrewCrew REST backend.
//
// Every method is one HTTP call. Transport failures (and responses that are
// not JSON at all) come back as apperror.Upstream; application failures
// (success:false) come back as the Rejected/Failed variant of the method's
// result type with the server message untouched.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/sakif/crewcrew/internal/apperror"
	"github.com/sakif/crewcrew/internal/model"
)

// DefaultBaseURL is where the backend listens in local development.
const DefaultBaseURL = "http://localhost:8000"

// Client talks to the backend. resty.New installs a cookie jar, so the
// session cookie set by /api/auth/login rides along on later calls.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// New builds a Client. No request timeout is set; calls are bounded only by
// the caller's context.
func New(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetLogger(restyLogger{logger})
	return &Client{http: c, logger: logger}
}

// envelope is the common {success, message} wrapper. The backend also uses
// "detail" for framework-level errors and "error" on the demo endpoint.
type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Detail  any    `json:"detail"`
	Error   string `json:"error"`
}

func (e envelope) ok() bool { return e.Success != nil && *e.Success }

// text returns the first non-empty user-facing message.
func (e envelope) text() string {
	if e.Message != "" {
		return e.Message
	}
	if s, ok := e.Detail.(string); ok && s != "" {
		return s
	}
	return e.Error
}

// decode unmarshals body into v. Non-JSON bodies are upstream failures:
// they usually mean a proxy error page, not an application answer.
func decode(resp *resty.Response, v any) error {
	if err := json.Unmarshal(resp.Body(), v); err != nil {
		return apperror.Upstream(fmt.Errorf("decoding %s %s (%s): %w",
			resp.Request.Method, resp.Request.URL, resp.Status(), err))
	}
	return nil
}

func (c *Client) transportError(op string, err error) error {
	c.logger.Warn("backend call failed", slog.String("op", op), slog.String("error", err.Error()))
	return apperror.Upstream(fmt.Errorf("backend: %s: %w", op, err))
}

// Login posts credentials to /api/auth/login.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"username": username, "password": password}).
		Post("/api/auth/login")
	if err != nil {
		return nil, c.transportError("login", err)
	}

	var body struct {
		envelope
		UserID      *int64 `json:"user_id"`
		Username    string `json:"username"`
		UserName    string `json:"user_name"`
		CompanyName string `json:"company_name"`
		IsDemo      bool   `json:"is_demo"`
	}
	if err := decode(resp, &body); err != nil {
		return nil, err
	}

	if !resp.IsSuccess() || !body.ok() || body.UserID == nil {
		msg := body.text()
		if msg == "" {
			msg = "Login failed."
		}
		return LoginRejected{Message: msg}, nil
	}
	return LoginAccepted{
		UserID:      *body.UserID,
		Username:    body.Username,
		UserName:    body.UserName,
		CompanyName: body.CompanyName,
		IsDemo:      body.IsDemo,
		Message:     body.Message,
	}, nil
}

// CurrentUser fetches GET /api/user.
func (c *Client) CurrentUser(ctx context.Context) (*model.RemoteProfile, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/api/user")
	if err != nil {
		return nil, c.transportError("current user", err)
	}
	if resp.StatusCode() == 401 {
		return nil, apperror.Unauthorized("backend session expired")
	}
	if resp.IsError() {
		return nil, apperror.Upstream(fmt.Errorf("backend: current user: %s", resp.Status()))
	}

	var p model.RemoteProfile
	if err := decode(resp, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile sends PUT /api/users/me. A non-2xx answer is a validation
// failure carrying the server's message.
func (c *Client) UpdateProfile(ctx context.Context, u model.ProfileUpdate) error {
	resp, err := c.http.R().SetContext(ctx).SetBody(u).Put("/api/users/me")
	if err != nil {
		return c.transportError("update profile", err)
	}
	if resp.IsSuccess() {
		return nil
	}

	var body envelope
	if err := decode(resp, &body); err != nil {
		return err
	}
	msg := body.text()
	if msg == "" {
		msg = "Profile update failed."
	}
	return apperror.ValidationFailed("profile", msg)
}

// ShopItems fetches the catalog with the caller's balances.
func (c *Client) ShopItems(ctx context.Context) (*model.Catalog, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/api/shop/items")
	if err != nil {
		return nil, c.transportError("shop items", err)
	}
	if resp.IsError() {
		return nil, apperror.Upstream(fmt.Errorf("backend: shop items: %s", resp.Status()))
	}

	var cat model.Catalog
	if err := decode(resp, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Purchase buys one item through the kind's endpoint.
func (c *Client) Purchase(ctx context.Context, kind model.ItemKind, id int64) (PurchaseResult, error) {
	if !kind.Valid() {
		return nil, apperror.ValidationFailed("kind", fmt.Sprintf("unknown item kind %q", kind))
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"kind": string(kind),
			"id":   strconv.FormatInt(id, 10),
		}).
		Post("/api/shop/purchase/{kind}/{id}")
	if err != nil {
		return nil, c.transportError("purchase", err)
	}

	var body struct {
		envelope
		NewCoin *int `json:"new_coin"`
		NewRuby *int `json:"new_ruby"`
	}
	if err := decode(resp, &body); err != nil {
		return nil, err
	}

	balance := body.NewCoin
	if kind == model.KindPersonality {
		balance = body.NewRuby
	}
	if !resp.IsSuccess() || !body.ok() || balance == nil {
		msg := body.text()
		if msg == "" {
			msg = "Purchase failed."
		}
		return PurchaseRejected{Message: msg}, nil
	}
	return PurchaseSucceeded{Kind: kind, NewBalance: *balance, Message: body.Message}, nil
}

// PurchaseGadget is Purchase for a coin-priced item.
func (c *Client) PurchaseGadget(ctx context.Context, id int64) (PurchaseResult, error) {
	return c.Purchase(ctx, model.KindGadget, id)
}

// PurchasePersonality is Purchase for a ruby-priced item.
func (c *Client) PurchasePersonality(ctx context.Context, id int64) (PurchaseResult, error) {
	return c.Purchase(ctx, model.KindPersonality, id)
}

// CollaborationDemo runs the two-agent demo for a video URL.
func (c *Client) CollaborationDemo(ctx context.Context, youtubeURL string) (CollabResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"youtube_url": youtubeURL}).
		Post("/api/demo/collaboration")
	if err != nil {
		return nil, c.transportError("collaboration demo", err)
	}

	var body struct {
		envelope
		model.Collaboration
	}
	if err := decode(resp, &body); err != nil {
		return nil, err
	}
	if !resp.IsSuccess() || !body.ok() {
		msg := body.text()
		if msg == "" {
			msg = "Collaboration demo failed."
		}
		return CollabFailed{Message: msg}, nil
	}
	return CollabCompleted{Collaboration: body.Collaboration}, nil
}

// DailyReport fetches today's report.
func (c *Client) DailyReport(ctx context.Context) (*model.DailyReport, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/api/reports/daily")
	if err != nil {
		return nil, c.transportError("daily report", err)
	}
	if resp.StatusCode() == 404 {
		return nil, apperror.NotFound("daily report", "today")
	}
	if resp.IsError() {
		return nil, apperror.Upstream(fmt.Errorf("backend: daily report: %s", resp.Status()))
	}

	var r model.DailyReport
	if err := decode(resp, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// restyLogger routes resty's internal messages into slog.
type restyLogger struct{ l *slog.Logger }

func (r restyLogger) Errorf(format string, v ...any) { r.l.Error(fmt.Sprintf(format, v...)) }
func (r restyLogger) Warnf(format string, v ...any)  { r.l.Warn(fmt.Sprintf(format, v...)) }
func (r restyLogger) Debugf(format string, v ...any) { r.l.Debug(fmt.Sprintf(format, v...)) }
