package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/crewcrew/internal/backend"
	"github.com/sakif/crewcrew/internal/events"
	"github.com/sakif/crewcrew/internal/handler"
	"github.com/sakif/crewcrew/internal/repository/memory"
	"github.com/sakif/crewcrew/internal/sequence"
	"github.com/sakif/crewcrew/internal/service"
	"github.com/sakif/crewcrew/web"
)

// stubBackend answers backend paths from a table of canned JSON bodies.
type stubBackend struct {
	routes    map[string]stubResponse
	purchases atomic.Int32
}

type stubResponse struct {
	status int
	body   string
}

func (b *stubBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/shop/purchase/") {
		b.purchases.Add(1)
	}
	res, ok := b.routes[r.Method+" "+r.URL.Path]
	if !ok {
		res = stubResponse{http.StatusNotFound, `{"detail":"Not Found"}`}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(res.status)
	io.WriteString(w, res.body)
}

const acmeUser = `{"id":7,"company_name":"Acme","user_name":"Rin","job_title":null,"avatar_data":null,"coin":100,"ruby":3,"rank":"B","office_level":2}`

const catalog = `{
	"gadgets":[{"id":1,"name":"Desk","description":"","price":50,"owned":false},
	           {"id":2,"name":"Lamp","description":"","price":500,"owned":false},
	           {"id":3,"name":"Plant","description":"","price":10,"owned":true}],
	"personalities":[{"id":9,"name":"Calm","description":"","price":2,"owned":false}],
	"user_coin":100,"user_ruby":3}`

func defaultRoutes() map[string]stubResponse {
	return map[string]stubResponse{
		"GET /api/user":                   {200, acmeUser},
		"GET /api/shop/items":             {200, catalog},
		"POST /api/auth/login":            {200, `{"success":true,"user_id":7,"username":"rin","user_name":"Rin","company_name":"Acme","message":"Welcome"}`},
		"POST /api/shop/purchase/gadget/1": {200, `{"success":true,"message":"Bought Desk","new_coin":50}`},
		"GET /api/reports/daily":          {200, `{"date":"2026-10-18","completed_tasks":4,"exp_gained":120,"coin_earned":30}`},
	}
}

type fixture struct {
	router  http.Handler
	session *service.SessionStore
	toasts  *service.ToastService
	backend *stubBackend
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture wires real services against a stub backend, and mounts the
// handlers on a chi router so URL params resolve.
func newFixture(t *testing.T, routes map[string]stubResponse) *fixture {
	t.Helper()
	logger := discardLogger()

	stub := &stubBackend{routes: routes}
	ts := httptest.NewServer(stub)
	t.Cleanup(ts.Close)

	api := backend.New(ts.URL, logger)
	clock := sequence.NewManualClock(time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))
	bus := events.NewBus[events.CrewExpChanged]()

	session := service.NewSessionStore(memory.NewKV(), api, logger, time.Hour)
	require.NoError(t, session.Init(context.Background()))
	t.Cleanup(session.Close)

	crews := service.NewCrewService(memory.NewCrews(), bus, logger)
	toasts := service.NewToastService(bus, clock, logger)
	t.Cleanup(toasts.Close)
	shop := service.NewShopService(api, session, logger)
	profile := service.NewProfileService(api, session, logger)
	reports := service.NewReportService(api, session, clock, logger)
	t.Cleanup(reports.Dismiss)
	demo := service.NewDemoService(api, crews, clock, logger)
	t.Cleanup(demo.Dismiss)

	pages, err := handler.NewPageHandler(web.Templates(), session, shop, crews, nil, logger)
	require.NoError(t, err)
	sh := handler.NewSessionHandler(session, toasts, logger)
	ph := handler.NewProfileHandler(profile, logger)
	shopH := handler.NewShopHandler(shop, logger)
	ch := handler.NewCrewHandler(crews, logger)
	seq := handler.NewSequenceHandler(reports, demo, toasts, logger)

	r := chi.NewRouter()
	r.Get("/login", pages.HandleLogin)
	r.Post("/login", pages.HandleLoginSubmit)
	r.Post("/login/guest", pages.HandleGuestLogin)
	r.Post("/logout", pages.HandleLogout)
	r.Get("/", pages.HandleHome)
	r.Get("/mypage", pages.HandleMyPage)
	r.Get("/shop", pages.HandleShop)
	r.Get("/api/session", sh.HandleGet)
	r.Patch("/api/session", sh.HandlePatch)
	r.Post("/api/session/exp", sh.HandleAddExp)
	r.Post("/api/session/gold", sh.HandleAddGold)
	r.Get("/api/mypage", ph.HandleGet)
	r.Put("/api/mypage", ph.HandleUpdate)
	r.Get("/api/shop", shopH.HandleCatalog)
	r.Post("/api/shop/purchase/{kind}/{id}", shopH.HandlePurchase)
	r.Get("/api/crews", ch.HandleList)
	r.Post("/api/crews", ch.HandleHire)
	r.Delete("/api/crews/{id}", ch.HandleDismiss)
	r.Post("/api/crews/{id}/exp", ch.HandleGrantExp)
	r.Post("/api/reports/daily", seq.HandleStartReport)
	r.Get("/api/reports/daily", seq.HandleGetReport)
	r.Delete("/api/reports/daily", seq.HandleDismissReport)
	r.Get("/api/notifications", seq.HandleListNotifications)
	r.Delete("/api/notifications/{id}", seq.HandleDismissNotification)

	return &fixture{router: r, session: session, toasts: toasts, backend: stub}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func (f *fixture) form(path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), rr.Body.String())
	return v
}
