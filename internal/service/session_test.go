package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sakif/crewcrew/internal/apperror"
	"github.com/sakif/crewcrew/internal/backend"
	"github.com/sakif/crewcrew/internal/model"
	"github.com/sakif/crewcrew/internal/progress"
	"github.com/sakif/crewcrew/internal/repository"
	"github.com/sakif/crewcrew/internal/repository/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestStore(t *testing.T, api *fakeBackend) (*SessionStore, *memory.KV) {
	t.Helper()
	kv := memory.NewKV()
	s := NewSessionStore(kv, api, discardLogger(), time.Hour)
	t.Cleanup(s.Close)
	return s, kv
}

func acmeProfile(coin, ruby int) *model.RemoteProfile {
	return &model.RemoteProfile{ID: 7, CompanyName: "Acme", Coin: coin, Ruby: ruby, Rank: "C", OfficeLevel: 1}
}

func TestInit_EmptyStorage(t *testing.T) {
	api := &fakeBackend{}
	s, _ := newTestStore(t, api)

	assert.False(t, s.Ready())
	require.NoError(t, s.Init(context.Background()))
	assert.True(t, s.Ready())
	assert.False(t, s.LoggedIn())
	assert.Nil(t, s.Local())
	assert.Nil(t, s.Remote())
}

func TestInit_RestoresAndFetchesRemote(t *testing.T) {
	api := &fakeBackend{user: acmeProfile(500, 3)}
	s, kv := newTestStore(t, api)

	stored := model.LocalProfile{ID: "abc", Name: "Kim", Level: 2, Exp: 10, Gold: 900}
	data, _ := json.Marshal(stored)
	require.NoError(t, kv.Set(context.Background(), StorageKey, string(data)))

	require.NoError(t, s.Init(context.Background()))
	require.True(t, s.LoggedIn())
	assert.Equal(t, "Kim", s.Local().Name)

	assert.Eventually(t, func() bool { return s.Remote() != nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 500, s.Remote().Coin)
}

func TestInit_CorruptStorageIsDeleted(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"not json", "{not json"},
		{"no id", `{"name":"Kim"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, kv := newTestStore(t, &fakeBackend{})
			require.NoError(t, kv.Set(context.Background(), StorageKey, tt.value))

			require.NoError(t, s.Init(context.Background()))
			assert.True(t, s.Ready())
			assert.False(t, s.LoggedIn())

			_, err := kv.Get(context.Background(), StorageKey)
			assert.ErrorIs(t, err, repository.ErrKeyNotFound)
		})
	}
}

func TestLogin_Guest(t *testing.T) {
	api := &fakeBackend{}
	s, kv := newTestStore(t, api)
	require.NoError(t, s.Init(context.Background()))

	p, err := s.Login(context.Background(), "  Kim ")
	require.NoError(t, err)

	want := &model.LocalProfile{Name: "Kim", Level: 1, Exp: 0, Gold: GuestStartingGold}
	if diff := cmp.Diff(want, p, cmpopts.IgnoreFields(model.LocalProfile{}, "ID", "CreatedAt")); diff != "" {
		t.Errorf("Login() mismatch (-want +got):\n%s", diff)
	}
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, int32(0), api.loginCalls.Load()+api.userCalls.Load(), "guest login makes no network call")

	raw, err := kv.Get(context.Background(), StorageKey)
	require.NoError(t, err)
	var stored model.LocalProfile
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, p.ID, stored.ID)
}

func TestLogin_EmptyName(t *testing.T) {
	s, _ := newTestStore(t, &fakeBackend{})
	_, err := s.Login(context.Background(), "   ")
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.False(t, s.LoggedIn())
}

// Logging in twice keeps exactly one stored profile: the newest.
func TestLogin_ReplacesStoredProfile(t *testing.T) {
	s, kv := newTestStore(t, &fakeBackend{})
	_, err := s.Login(context.Background(), "first")
	require.NoError(t, err)
	second, err := s.Login(context.Background(), "second")
	require.NoError(t, err)

	raw, err := kv.Get(context.Background(), StorageKey)
	require.NoError(t, err)
	var stored model.LocalProfile
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, second.ID, stored.ID)
}

func TestLoginWithCredentials(t *testing.T) {
	tests := []struct {
		name        string
		result      backend.LoginResult
		err         error
		wantOK      bool
		wantMessage string
		wantName    string
	}{
		{
			name:     "prefers user_name",
			result:   backend.LoginAccepted{UserID: 7, Username: "kim", UserName: "Kim Lee"},
			wantOK:   true,
			wantName: "Kim Lee",
		},
		{
			name:     "falls back to username",
			result:   backend.LoginAccepted{UserID: 7, Username: "kim"},
			wantOK:   true,
			wantName: "kim",
		},
		{
			name:     "falls back to typed username",
			result:   backend.LoginAccepted{UserID: 7},
			wantOK:   true,
			wantName: "typed",
		},
		{
			name:        "server message passes through",
			result:      backend.LoginRejected{Message: "Wrong password, try again"},
			wantMessage: "Wrong password, try again",
		},
		{
			name:        "network failure is generic",
			err:         apperror.Upstream(errors.New("connection refused")),
			wantMessage: apperror.GenericNetworkMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeBackend{loginResult: tt.result, loginErr: tt.err, user: acmeProfile(100, 0)}
			s, _ := newTestStore(t, api)
			require.NoError(t, s.Init(context.Background()))

			res := s.LoginWithCredentials(context.Background(), "typed", "pw")
			assert.Equal(t, tt.wantOK, res.OK)
			if !tt.wantOK {
				assert.Equal(t, tt.wantMessage, res.Message)
				assert.Empty(t, res.Redirect, "failed login must not navigate")
				assert.False(t, s.LoggedIn())
				return
			}

			assert.Equal(t, HomePath, res.Redirect)
			assert.Equal(t, tt.wantName, s.Local().Name)
			assert.Equal(t, "7", s.Local().ID)
			assert.Equal(t, MemberStartingGold, s.Local().Gold)
			require.NotNil(t, s.Remote(), "login refreshes the remote profile")
			assert.Equal(t, 100, s.Remote().Coin)
		})
	}
}

func TestLogout(t *testing.T) {
	api := &fakeBackend{loginResult: backend.LoginAccepted{UserID: 1}, user: acmeProfile(10, 1)}
	s, kv := newTestStore(t, api)
	require.NoError(t, s.Init(context.Background()))
	require.True(t, s.LoginWithCredentials(context.Background(), "kim", "pw").OK)

	redirect, err := s.Logout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LoginPath, redirect)
	assert.False(t, s.LoggedIn())
	assert.Nil(t, s.Remote())

	_, err = kv.Get(context.Background(), StorageKey)
	assert.ErrorIs(t, err, repository.ErrKeyNotFound)
}

// A refresh that was already in flight when the user logged out must not
// bring the remote profile back.
func TestRefresh_InFlightDuringLogoutIsDiscarded(t *testing.T) {
	gate := make(chan struct{})
	api := &fakeBackend{user: acmeProfile(10, 1)}
	s, _ := newTestStore(t, api)
	require.NoError(t, s.Init(context.Background()))
	_, err := s.Login(context.Background(), "kim")
	require.NoError(t, err)

	api.mu.Lock()
	api.userGate = gate
	api.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.RefreshAPIUser(context.Background())
	}()
	require.Eventually(t, func() bool { return api.userCalls.Load() == 1 }, time.Second, time.Millisecond)

	_, err = s.Logout(context.Background())
	require.NoError(t, err)
	close(gate)
	<-done

	assert.Nil(t, s.Remote())
}

func TestRefresh_FailureKeepsPreviousValue(t *testing.T) {
	api := &fakeBackend{user: acmeProfile(10, 1)}
	s, _ := newTestStore(t, api)
	_, err := s.Login(context.Background(), "kim")
	require.NoError(t, err)

	s.RefreshAPIUser(context.Background())
	require.NotNil(t, s.Remote())

	api.mu.Lock()
	api.userErr = apperror.Upstream(errors.New("down"))
	api.mu.Unlock()

	s.RefreshAPIUser(context.Background())
	require.NotNil(t, s.Remote())
	assert.Equal(t, 10, s.Remote().Coin)
}

func TestRefreshLoop_TicksWhileLoggedIn(t *testing.T) {
	api := &fakeBackend{user: acmeProfile(10, 1)}
	kv := memory.NewKV()
	s := NewSessionStore(kv, api, discardLogger(), 10*time.Millisecond)
	require.NoError(t, s.Init(context.Background()))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), api.userCalls.Load(), "no refresh while logged out")

	_, err := s.Login(context.Background(), "kim")
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return api.userCalls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	s.Close()
	s.Close()
}

func TestAddExp(t *testing.T) {
	tests := []struct {
		name      string
		startLvl  int
		startExp  int
		amount    int
		wantLevel int
		wantExp   int
		wantUp    bool
	}{
		{"within level", 1, 0, 50, 1, 50, false},
		{"exact threshold", 1, 0, 100, 2, 0, true},
		{"multi-level jump", 1, 0, 250, 3, 0, true},
		{"ignored negative", 2, 10, -5, 2, 10, false},
		{"level above max is clamped", 200, 0, 1, progress.MaxLevel, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStore(t, &fakeBackend{})
			_, err := s.Login(context.Background(), "kim")
			require.NoError(t, err)
			require.NoError(t, s.UpdateUser(context.Background(), model.ProfilePatch{
				Level: intPtr(tt.startLvl), Exp: intPtr(tt.startExp),
			}))

			up, err := s.AddExp(context.Background(), tt.amount)
			require.NoError(t, err)
			assert.Equal(t, tt.wantUp, up)
			assert.Equal(t, tt.wantLevel, s.Local().Level)
			assert.Equal(t, tt.wantExp, s.Local().Exp)
		})
	}
}

func TestAddExp_HugeAmountKeepsInvariant(t *testing.T) {
	s, kv := newTestStore(t, &fakeBackend{})
	_, err := s.Login(context.Background(), "kim")
	require.NoError(t, err)
	require.NoError(t, s.UpdateUser(context.Background(), model.ProfilePatch{Exp: intPtr(50)}))

	up, err := s.AddExp(context.Background(), math.MaxInt)
	require.NoError(t, err)
	assert.True(t, up)

	local := s.Local()
	assert.GreaterOrEqual(t, local.Exp, 0)
	assert.Less(t, local.Exp, progress.Threshold(local.Level))

	raw, err := kv.Get(context.Background(), StorageKey)
	require.NoError(t, err)
	var stored model.LocalProfile
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, local.Level, stored.Level)
	assert.Equal(t, local.Exp, stored.Exp)
}

func TestUpdateUser_NormalisesLevelAndExp(t *testing.T) {
	tests := []struct {
		name      string
		patch     model.ProfilePatch
		wantLevel int
		wantExp   int
	}{
		{"exp past threshold rolls over", model.ProfilePatch{Level: intPtr(0), Exp: intPtr(5000)}, 9, 76},
		{"negative exp becomes zero", model.ProfilePatch{Exp: intPtr(-30)}, 1, 0},
		{"level below one becomes one", model.ProfilePatch{Level: intPtr(-4)}, 1, 0},
		{"level above max is clamped", model.ProfilePatch{Level: intPtr(500)}, progress.MaxLevel, 0},
		{"valid values kept", model.ProfilePatch{Level: intPtr(3), Exp: intPtr(200)}, 3, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStore(t, &fakeBackend{})
			_, err := s.Login(context.Background(), "kim")
			require.NoError(t, err)

			require.NoError(t, s.UpdateUser(context.Background(), tt.patch))
			local := s.Local()
			assert.Equal(t, tt.wantLevel, local.Level)
			assert.Equal(t, tt.wantExp, local.Exp)
			assert.Less(t, local.Exp, progress.Threshold(local.Level))
		})
	}
}

func TestLocalMutators_NoProfileIsNoop(t *testing.T) {
	s, kv := newTestStore(t, &fakeBackend{})
	require.NoError(t, s.UpdateUser(context.Background(), model.ProfilePatch{Name: strPtr("x")}))
	up, err := s.AddExp(context.Background(), 500)
	require.NoError(t, err)
	assert.False(t, up)
	require.NoError(t, s.AddGold(context.Background(), 10))

	assert.Nil(t, s.Local())
	_, err = kv.Get(context.Background(), StorageKey)
	assert.ErrorIs(t, err, repository.ErrKeyNotFound)
}

func TestAddGold_ClampsAtZero(t *testing.T) {
	s, _ := newTestStore(t, &fakeBackend{})
	_, err := s.Login(context.Background(), "kim")
	require.NoError(t, err)

	require.NoError(t, s.AddGold(context.Background(), -5000))
	assert.Equal(t, 0, s.Local().Gold)
	require.NoError(t, s.AddGold(context.Background(), 40))
	assert.Equal(t, 40, s.Local().Gold)
}

func TestCurrencyMutators(t *testing.T) {
	s, _ := newTestStore(t, &fakeBackend{user: acmeProfile(100, 5)})
	_, err := s.Login(context.Background(), "kim")
	require.NoError(t, err)

	s.AddCoin(10) // no remote yet: no-op
	assert.Nil(t, s.Remote())

	s.RefreshAPIUser(context.Background())
	s.AddCoin(10)
	s.SubtractCoin(500)
	assert.Equal(t, 0, s.Remote().Coin, "subtract clamps at zero")

	s.AddRuby(2)
	s.SubtractRuby(3)
	assert.Equal(t, 4, s.Remote().Ruby)

	s.UpdateCoin(25)
	assert.Equal(t, 25, s.Remote().Coin)
	s.UpdateRuby(-3)
	assert.Equal(t, 0, s.Remote().Ruby)
}

// Remote returns a copy; writing to it must not leak into the store.
func TestRemote_ReturnsCopy(t *testing.T) {
	s, _ := newTestStore(t, &fakeBackend{user: acmeProfile(100, 5)})
	_, err := s.Login(context.Background(), "kim")
	require.NoError(t, err)
	s.RefreshAPIUser(context.Background())

	r := s.Remote()
	r.Coin = 9999
	assert.Equal(t, 100, s.Remote().Coin)
}
