package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/sakif/crewcrew/internal/apperror"
	"github.com/sakif/crewcrew/internal/backend"
	"github.com/sakif/crewcrew/internal/model"
)

// Hand-written fakes for the backend interfaces. Each records how often it
// was called so tests can assert that a blocked action made no request.

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBackend struct {
	mu sync.Mutex

	loginResult backend.LoginResult
	loginErr    error

	user    *model.RemoteProfile
	userErr error
	// userGate, when set, blocks CurrentUser until it is closed.
	userGate chan struct{}

	catalog    *model.Catalog
	catalogErr error

	purchaseResult backend.PurchaseResult
	purchaseErr    error

	updateErr error
	updated   []model.ProfileUpdate

	report    *model.DailyReport
	reportErr error

	collab    backend.CollabResult
	collabErr error

	loginCalls    atomic.Int32
	userCalls     atomic.Int32
	catalogCalls  atomic.Int32
	purchaseCalls atomic.Int32
}

func (f *fakeBackend) Login(_ context.Context, _, _ string) (backend.LoginResult, error) {
	f.loginCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginResult, f.loginErr
}

func (f *fakeBackend) CurrentUser(ctx context.Context) (*model.RemoteProfile, error) {
	f.userCalls.Add(1)
	f.mu.Lock()
	gate := f.userGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, apperror.Upstream(ctx.Err())
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userErr != nil {
		return nil, f.userErr
	}
	if f.user == nil {
		return nil, apperror.Unauthorized("no user")
	}
	u := *f.user
	return &u, nil
}

func (f *fakeBackend) setUser(u *model.RemoteProfile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user = u
}

func (f *fakeBackend) ShopItems(context.Context) (*model.Catalog, error) {
	f.catalogCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.catalogErr != nil {
		return nil, f.catalogErr
	}
	c := *f.catalog
	return &c, nil
}

func (f *fakeBackend) Purchase(_ context.Context, _ model.ItemKind, _ int64) (backend.PurchaseResult, error) {
	f.purchaseCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.purchaseResult, f.purchaseErr
}

func (f *fakeBackend) UpdateProfile(_ context.Context, u model.ProfileUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, u)
	return f.updateErr
}

func (f *fakeBackend) DailyReport(context.Context) (*model.DailyReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.report, f.reportErr
}

func (f *fakeBackend) CollaborationDemo(context.Context, string) (backend.CollabResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.collab, f.collabErr
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }
