// Package service holds the front end's state orchestration: the session
// store, the shop purchase flow, the scripted report/demo/toast sequences,
// and the crew roster.
//
// THE LAYERS:
//
//	Handler (HTTP)  → parses requests, writes responses
//	Service         → session state, validation, orchestration
//	Backend client  → the external CrewCrew REST API (all business rules)
//	Repository      → local key-value storage and the crew table
//
// Services depend on small interfaces (UserAPI, ShopAPI, ...) declared next
// to the code that uses them, so tests pass hand-written fakes.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/crewcrew/internal/apperror"
	"github.com/sakif/crewcrew/internal/backend"
	"github.com/sakif/crewcrew/internal/model"
	"github.com/sakif/crewcrew/internal/progress"
	"github.com/sakif/crewcrew/internal/repository"
)

const (
	// StorageKey is the single local-storage slot holding the LocalProfile.
	StorageKey = "crewcrew_user"

	// Starting gold differs by login path. The guest grant is what the
	// name-only login has always given; members get the larger grant.
	GuestStartingGold  = 1000
	MemberStartingGold = 3000

	DefaultRefreshInterval = 30 * time.Second

	// Where the browser goes after each transition.
	HomePath  = "/"
	LoginPath = "/login"
)

// UserAPI is the part of the backend the session store uses.
type UserAPI interface {
	Login(ctx context.Context, username, password string) (backend.LoginResult, error)
	CurrentUser(ctx context.Context) (*model.RemoteProfile, error)
}

// LoginResult is what the login page needs. A failed login never comes back
// as an error; Message is safe to show as is.
type LoginResult struct {
	OK       bool
	Message  string
	Profile  *model.LocalProfile
	Redirect string
}

// SessionStore owns the identity and progress state for the one local user:
// the persisted LocalProfile and the mirrored RemoteProfile.
//
// CONCURRENCY:
// Handlers, the refresh ticker and login refreshes all touch the store. mu
// guards the fields; KV writes happen under mu so storage sees one writer.
// Remote refreshes are not ordered against local patches: whichever lands
// last wins. The only exception is logout, which bumps gen so that refreshes
// started before it are thrown away.
type SessionStore struct {
	kv       repository.KV
	api      UserAPI
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	mu     sync.RWMutex
	ready  bool
	local  *model.LocalProfile
	remote *model.RemoteProfile
	gen    uint64

	loopCtx context.Context
	cancel  context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
}

// NewSessionStore does not touch storage; call Init before serving.
// A non-positive interval means DefaultRefreshInterval.
func NewSessionStore(kv repository.KV, api UserAPI, logger *slog.Logger, interval time.Duration) *SessionStore {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &SessionStore{
		kv:       kv,
		api:      api,
		logger:   logger,
		interval: interval,
		now:      time.Now,
	}
}

// Init loads the persisted profile and marks the store ready. A value that
// does not parse is deleted and the session starts logged out. It then
// kicks off the first remote fetch and the periodic refresh loop.
func (s *SessionStore) Init(ctx context.Context) error {
	local, err := s.load(ctx)
	if err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.local = local
	s.ready = true
	s.loopCtx = loopCtx
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()
	go s.refreshLoop(loopCtx)

	if local != nil {
		s.logger.Info("session restored", slog.String("id", local.ID), slog.String("name", local.Name))
		s.goRefresh()
	}
	return nil
}

func (s *SessionStore) load(ctx context.Context) (*model.LocalProfile, error) {
	raw, err := s.kv.Get(ctx, StorageKey)
	if errors.Is(err, repository.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("service: reading %s: %w", StorageKey, err)
	}

	var p model.LocalProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil || p.ID == "" {
		s.logger.Warn("discarding corrupt stored profile", slog.String("key", StorageKey))
		if derr := s.kv.Delete(ctx, StorageKey); derr != nil {
			return nil, fmt.Errorf("service: deleting corrupt %s: %w", StorageKey, derr)
		}
		return nil, nil
	}
	return &p, nil
}

// refreshLoop re-fetches the remote profile every interval while someone is
// logged in. It exits when Close cancels ctx.
func (s *SessionStore) refreshLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.LoggedIn() {
				s.RefreshAPIUser(ctx)
			}
		}
	}
}

// goRefresh runs RefreshAPIUser in the background, tied to the loop's
// lifetime so Close waits for it.
func (s *SessionStore) goRefresh() {
	s.mu.Lock()
	ctx := s.loopCtx
	if ctx == nil || s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.RefreshAPIUser(ctx)
	}()
}

// Close stops the refresh loop and waits for in-flight refreshes.
// It is safe to call more than once.
func (s *SessionStore) Close() {
	s.mu.Lock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Login is the name-only guest login. No network call is made.
func (s *SessionStore) Login(ctx context.Context, name string) (*model.LocalProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "Please enter a name.")
	}

	p := &model.LocalProfile{
		ID:        xid.New().String(),
		Name:      name,
		Level:     1,
		Exp:       0,
		Gold:      GuestStartingGold,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persistLocked(ctx, p); err != nil {
		return nil, err
	}
	s.local = p
	s.remote = nil
	s.gen++

	s.logger.Info("guest logged in", slog.String("id", p.ID), slog.String("name", p.Name))
	return copyLocal(p), nil
}

// LoginWithCredentials checks the credentials with the backend and, on
// success, starts a member session and mirrors the remote profile.
//
// Failures come back as LoginResult{OK: false}: transport problems with the
// generic network message, backend rejections with the server's own words.
func (s *SessionStore) LoginWithCredentials(ctx context.Context, username, password string) LoginResult {
	res, err := s.api.Login(ctx, username, password)
	if err != nil {
		s.logger.Warn("credential login failed", slog.String("username", username), slog.String("error", err.Error()))
		return LoginResult{Message: apperror.GenericNetworkMessage}
	}

	accepted, ok := res.(backend.LoginAccepted)
	if !ok {
		msg := apperror.GenericNetworkMessage
		if rej, isRej := res.(backend.LoginRejected); isRej {
			msg = rej.Message
		}
		s.logger.Info("credential login rejected", slog.String("username", username))
		return LoginResult{Message: msg}
	}

	p := &model.LocalProfile{
		ID:        fmt.Sprintf("%d", accepted.UserID),
		Name:      accepted.DisplayName(username),
		Level:     1,
		Exp:       0,
		Gold:      MemberStartingGold,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	if err := s.persistLocked(ctx, p); err != nil {
		s.mu.Unlock()
		s.logger.Error("persisting profile failed", slog.String("error", err.Error()))
		return LoginResult{Message: "Could not save your session. Please try again."}
	}
	s.local = p
	s.remote = nil
	s.gen++
	s.mu.Unlock()

	s.logger.Info("member logged in", slog.String("id", p.ID), slog.String("name", p.Name))
	s.RefreshAPIUser(ctx)

	return LoginResult{OK: true, Message: accepted.Message, Profile: copyLocal(p), Redirect: HomePath}
}

// Logout removes the stored profile, forgets both profiles, and discards any
// refresh still in flight. The caller does a full navigation to Redirect.
func (s *SessionStore) Logout(ctx context.Context) (redirect string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, StorageKey); err != nil {
		return "", fmt.Errorf("service: deleting %s: %w", StorageKey, err)
	}
	s.local = nil
	s.remote = nil
	s.gen++

	s.logger.Info("logged out")
	return LoginPath, nil
}

// RefreshAPIUser replaces the remote profile with a fresh copy. Failures are
// logged and otherwise ignored; the previous value stays.
func (s *SessionStore) RefreshAPIUser(ctx context.Context) {
	s.mu.RLock()
	gen := s.gen
	s.mu.RUnlock()

	p, err := s.api.CurrentUser(ctx)
	if err != nil {
		s.logger.Warn("refreshing remote profile failed", slog.String("error", err.Error()))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.local == nil {
		s.logger.Debug("dropping stale remote profile")
		return
	}
	s.remote = p
}

// UpdateUser merges the non-nil patch fields into the local profile.
// Without a profile it does nothing. Level and exp are normalised after the
// merge, so patched experience past the threshold rolls into levels.
func (s *SessionStore) UpdateUser(ctx context.Context, patch model.ProfilePatch) error {
	return s.mutateLocal(ctx, func(p *model.LocalProfile) {
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.Level != nil {
			p.Level = *patch.Level
		}
		if patch.Exp != nil {
			p.Exp = *patch.Exp
		}
		if patch.Gold != nil {
			p.Gold = max(*patch.Gold, 0)
		}
		p.Level, p.Exp, _ = progress.Apply(p.Level, p.Exp, 0)
	})
}

// AddExp adds experience, rolling overflow into as many levels as it covers.
func (s *SessionStore) AddExp(ctx context.Context, amount int) (leveledUp bool, err error) {
	err = s.mutateLocal(ctx, func(p *model.LocalProfile) {
		p.Level, p.Exp, leveledUp = progress.Apply(p.Level, p.Exp, amount)
	})
	return leveledUp, err
}

// AddGold adds to the local balance; negative amounts subtract, clamped at 0.
func (s *SessionStore) AddGold(ctx context.Context, amount int) error {
	return s.mutateLocal(ctx, func(p *model.LocalProfile) {
		p.Gold = max(p.Gold+amount, 0)
	})
}

func (s *SessionStore) mutateLocal(ctx context.Context, fn func(p *model.LocalProfile)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.local == nil {
		return nil
	}

	next := *s.local
	fn(&next)
	if err := s.persistLocked(ctx, &next); err != nil {
		return err
	}
	s.local = &next
	return nil
}

func (s *SessionStore) persistLocked(ctx context.Context, p *model.LocalProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("service: encoding profile: %w", err)
	}
	if err := s.kv.Set(ctx, StorageKey, string(data)); err != nil {
		return fmt.Errorf("service: writing %s: %w", StorageKey, err)
	}
	return nil
}

// The coin and ruby mutators patch the in-memory remote profile only; the
// backend stays authoritative and the next refresh overwrites them.

func (s *SessionStore) AddCoin(n int) {
	s.mutateRemote(func(p *model.RemoteProfile) { p.Coin = max(p.Coin+n, 0) })
}

func (s *SessionStore) SubtractCoin(n int) { s.AddCoin(-n) }

func (s *SessionStore) AddRuby(n int) {
	s.mutateRemote(func(p *model.RemoteProfile) { p.Ruby = max(p.Ruby+n, 0) })
}

func (s *SessionStore) SubtractRuby(n int) { s.AddRuby(-n) }

// UpdateCoin overwrites the coin balance with an authoritative value.
func (s *SessionStore) UpdateCoin(n int) {
	s.mutateRemote(func(p *model.RemoteProfile) { p.Coin = max(n, 0) })
}

// UpdateRuby overwrites the ruby balance with an authoritative value.
func (s *SessionStore) UpdateRuby(n int) {
	s.mutateRemote(func(p *model.RemoteProfile) { p.Ruby = max(n, 0) })
}

func (s *SessionStore) mutateRemote(fn func(p *model.RemoteProfile)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remote == nil {
		return
	}
	next := *s.remote
	fn(&next)
	s.remote = &next
}

func (s *SessionStore) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

func (s *SessionStore) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.local != nil
}

// Local returns a copy of the local profile, or nil when logged out.
func (s *SessionStore) Local() *model.LocalProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyLocal(s.local)
}

// Remote returns a copy of the remote profile, or nil before the first
// successful fetch.
func (s *SessionStore) Remote() *model.RemoteProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.remote == nil {
		return nil
	}
	r := *s.remote
	return &r
}

func copyLocal(p *model.LocalProfile) *model.LocalProfile {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
