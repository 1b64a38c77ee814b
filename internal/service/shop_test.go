package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/crewcrew/internal/apperror"
	"github.com/sakif/crewcrew/internal/backend"
	"github.com/sakif/crewcrew/internal/model"
)

func testCatalog(coin, ruby int) *model.Catalog {
	return &model.Catalog{
		Gadgets: []model.Item{
			{ID: 1, Name: "Lamp", Price: 150},
			{ID: 2, Name: "Chair", Price: 100},
			{ID: 3, Name: "Desk", Price: 10, Owned: true},
		},
		Personalities: []model.Item{
			{ID: 10, Name: "Cheerful", Price: 5},
		},
		UserCoin: coin,
		UserRuby: ruby,
	}
}

// newShopFixture returns a shop whose session is logged in with a remote
// profile, and whose snapshot has been fetched once.
func newShopFixture(t *testing.T, api *fakeBackend) (*ShopService, *SessionStore) {
	t.Helper()
	store, _ := newTestStore(t, api)
	_, err := store.Login(context.Background(), "kim")
	require.NoError(t, err)
	store.RefreshAPIUser(context.Background())
	require.NotNil(t, store.Remote())

	shop := NewShopService(api, store, discardLogger())
	_, err = shop.Catalog(context.Background())
	require.NoError(t, err)
	return shop, store
}

func TestEligibility(t *testing.T) {
	api := &fakeBackend{catalog: testCatalog(100, 5), user: acmeProfile(100, 5)}
	shop, _ := newShopFixture(t, api)

	tests := []struct {
		name string
		kind model.ItemKind
		id   int64
		want Eligibility
	}{
		{"too expensive", model.KindGadget, 1, Eligibility{Reason: ReasonInsufficient}},
		{"exactly affordable", model.KindGadget, 2, Eligibility{Allowed: true}},
		{"owned", model.KindGadget, 3, Eligibility{Reason: ReasonOwned}},
		{"ruby priced", model.KindPersonality, 10, Eligibility{Allowed: true}},
		{"unknown", model.KindGadget, 99, Eligibility{Reason: ReasonUnknown}},
		{"wrong kind for id", model.KindPersonality, 1, Eligibility{Reason: ReasonUnknown}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shop.Eligibility(tt.kind, tt.id))
		})
	}
}

func TestEligibility_NoSnapshot(t *testing.T) {
	shop := NewShopService(&fakeBackend{}, nil, discardLogger())
	assert.False(t, shop.Eligibility(model.KindGadget, 1).Allowed)
}

// user_coin=100 and price=150: blocked, and the POST is never issued.
func TestPurchase_BlockedNeverPosts(t *testing.T) {
	api := &fakeBackend{catalog: testCatalog(100, 0), user: acmeProfile(100, 0)}
	shop, store := newShopFixture(t, api)

	tests := []struct {
		name    string
		kind    model.ItemKind
		id      int64
		wantErr error
	}{
		{"insufficient", model.KindGadget, 1, apperror.ErrInsufficientFunds},
		{"owned", model.KindGadget, 3, apperror.ErrConflict},
		{"unknown item", model.KindGadget, 99, apperror.ErrNotFound},
		{"unknown kind", "hat", 1, apperror.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := shop.Purchase(context.Background(), tt.kind, tt.id)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Equal(t, int32(0), api.purchaseCalls.Load())
	assert.Equal(t, 100, store.Remote().Coin)
}

// price=100 with 100 coin: the POST goes out and new_coin=0 lands as exactly 0.
func TestPurchase_SuccessOverwritesBalance(t *testing.T) {
	tests := []struct {
		name       string
		newBalance int
	}{
		{"drained to zero", 0},
		// 25 is not 100-100: proves the value is taken, not computed.
		{"server says 25", 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeBackend{catalog: testCatalog(100, 0), user: acmeProfile(100, 0)}
			shop, store := newShopFixture(t, api)

			// The profile re-fetch fails so the overwrite is what remains visible.
			api.mu.Lock()
			api.userErr = apperror.Upstream(errors.New("down"))
			api.purchaseResult = backend.PurchaseSucceeded{Kind: model.KindGadget, NewBalance: tt.newBalance, Message: "Bought"}
			api.mu.Unlock()
			catalogCallsBefore := api.catalogCalls.Load()

			out, err := shop.Purchase(context.Background(), model.KindGadget, 2)
			require.NoError(t, err)
			assert.True(t, out.OK)
			assert.Equal(t, "Bought", out.Message)
			assert.Equal(t, int32(1), api.purchaseCalls.Load())
			assert.Equal(t, tt.newBalance, store.Remote().Coin)
			assert.Equal(t, catalogCallsBefore+1, api.catalogCalls.Load(), "catalog re-fetched")
		})
	}
}

func TestPurchase_SuccessRefetchesProfile(t *testing.T) {
	api := &fakeBackend{catalog: testCatalog(100, 5), user: acmeProfile(100, 5)}
	shop, store := newShopFixture(t, api)

	api.mu.Lock()
	api.purchaseResult = backend.PurchaseSucceeded{Kind: model.KindPersonality, NewBalance: 0}
	api.user = acmeProfile(100, 0)
	owned := testCatalog(100, 0)
	owned.Personalities[0].Owned = true
	api.catalog = owned
	api.mu.Unlock()
	userCallsBefore := api.userCalls.Load()

	_, err := shop.Purchase(context.Background(), model.KindPersonality, 10)
	require.NoError(t, err)

	assert.Equal(t, userCallsBefore+1, api.userCalls.Load())
	assert.Equal(t, 0, store.Remote().Ruby)
	assert.Equal(t, Eligibility{Reason: ReasonOwned}, shop.Eligibility(model.KindPersonality, 10))
}

func TestPurchase_RejectedMutatesNothing(t *testing.T) {
	api := &fakeBackend{catalog: testCatalog(100, 0), user: acmeProfile(100, 0)}
	shop, store := newShopFixture(t, api)
	api.purchaseResult = backend.PurchaseRejected{Message: "Sold out today"}
	catalogCallsBefore := api.catalogCalls.Load()

	out, err := shop.Purchase(context.Background(), model.KindGadget, 2)
	require.NoError(t, err)
	assert.False(t, out.OK)
	assert.Equal(t, "Sold out today", out.Message)
	assert.Equal(t, 100, store.Remote().Coin)
	assert.Equal(t, catalogCallsBefore, api.catalogCalls.Load())
}

func TestPurchase_TransportFailure(t *testing.T) {
	api := &fakeBackend{catalog: testCatalog(100, 0), user: acmeProfile(100, 0)}
	shop, store := newShopFixture(t, api)
	api.purchaseErr = apperror.Upstream(errors.New("reset"))

	_, err := shop.Purchase(context.Background(), model.KindGadget, 2)
	assert.ErrorIs(t, err, apperror.ErrUpstream)
	assert.Equal(t, 100, store.Remote().Coin)
}
