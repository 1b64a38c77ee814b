package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/crewcrew/internal/apperror"
	"github.com/sakif/crewcrew/internal/backend"
	"github.com/sakif/crewcrew/internal/model"
)

// ShopAPI is the part of the backend the shop uses.
type ShopAPI interface {
	ShopItems(ctx context.Context) (*model.Catalog, error)
	Purchase(ctx context.Context, kind model.ItemKind, id int64) (backend.PurchaseResult, error)
}

// Eligibility says whether the buy button for an item is enabled.
type Eligibility struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Blocked reasons, shown next to a disabled button.
const (
	ReasonOwned        = "owned"
	ReasonInsufficient = "insufficient"
	ReasonUnknown      = "unknown"
)

// PurchaseOutcome is the shop page's view of one purchase attempt.
type PurchaseOutcome struct {
	OK         bool           `json:"ok"`
	Message    string         `json:"message"`
	Kind       model.ItemKind `json:"kind"`
	NewBalance int            `json:"newBalance,omitempty"`
}

// ShopService runs the purchase flow against the last catalog snapshot.
//
// The snapshot only drives the buy buttons. The backend is the sole judge of
// affordability when the purchase commits, and the flow never adjusts a
// balance by arithmetic: it takes the balance the backend reports.
type ShopService struct {
	api     ShopAPI
	session *SessionStore
	logger  *slog.Logger

	mu       sync.RWMutex
	snapshot *model.Catalog
}

func NewShopService(api ShopAPI, session *SessionStore, logger *slog.Logger) *ShopService {
	return &ShopService{api: api, session: session, logger: logger}
}

// Catalog fetches the catalog and keeps it as the current snapshot.
func (s *ShopService) Catalog(ctx context.Context) (*model.Catalog, error) {
	cat, err := s.api.ShopItems(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.snapshot = cat
	s.mu.Unlock()
	return cat, nil
}

// Snapshot returns the last fetched catalog, or nil before the first fetch.
func (s *ShopService) Snapshot() *model.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Eligibility is computed from the snapshot alone: an item is blocked when
// it is already owned or costs more than the balance of its currency.
func (s *ShopService) Eligibility(kind model.ItemKind, id int64) Eligibility {
	return eligibility(s.Snapshot(), kind, id)
}

func eligibility(cat *model.Catalog, kind model.ItemKind, id int64) Eligibility {
	item, ok := cat.Find(kind, id)
	switch {
	case !ok:
		return Eligibility{Reason: ReasonUnknown}
	case item.Owned:
		return Eligibility{Reason: ReasonOwned}
	case item.Price > cat.Balance(kind):
		return Eligibility{Reason: ReasonInsufficient}
	default:
		return Eligibility{Allowed: true}
	}
}

// Purchase buys one item.
//
//  1. A blocked item returns an error without any request.
//  2. The purchase endpoint for the item's kind is called.
//  3. On success the backend's new balance overwrites the session balance,
//     then the catalog and the remote profile are re-fetched together.
//  4. On a rejection the server's message is returned and nothing changes.
func (s *ShopService) Purchase(ctx context.Context, kind model.ItemKind, id int64) (PurchaseOutcome, error) {
	if !kind.Valid() {
		return PurchaseOutcome{}, apperror.ValidationFailed("kind", fmt.Sprintf("unknown item kind %q", kind))
	}

	cat := s.Snapshot()
	switch e := eligibility(cat, kind, id); e.Reason {
	case ReasonUnknown:
		return PurchaseOutcome{}, apperror.NotFound(string(kind), fmt.Sprint(id))
	case ReasonOwned:
		return PurchaseOutcome{}, apperror.Conflict("You already own this item.")
	case ReasonInsufficient:
		item, _ := cat.Find(kind, id)
		return PurchaseOutcome{}, apperror.InsufficientFunds(kind.Currency(), cat.Balance(kind), item.Price)
	}

	res, err := s.api.Purchase(ctx, kind, id)
	if err != nil {
		return PurchaseOutcome{}, err
	}

	switch r := res.(type) {
	case backend.PurchaseSucceeded:
		if kind == model.KindPersonality {
			s.session.UpdateRuby(r.NewBalance)
		} else {
			s.session.UpdateCoin(r.NewBalance)
		}
		s.logger.Info("purchase completed",
			slog.String("kind", string(kind)),
			slog.Int64("itemID", id),
			slog.Int("newBalance", r.NewBalance),
		)
		s.resync(ctx)
		return PurchaseOutcome{OK: true, Message: r.Message, Kind: kind, NewBalance: r.NewBalance}, nil

	case backend.PurchaseRejected:
		s.logger.Info("purchase rejected",
			slog.String("kind", string(kind)),
			slog.Int64("itemID", id),
			slog.String("message", r.Message),
		)
		return PurchaseOutcome{Message: r.Message, Kind: kind}, nil

	default:
		return PurchaseOutcome{}, fmt.Errorf("service: unexpected purchase result %T", res)
	}
}

// resync re-fetches the catalog and the remote profile concurrently so owned
// flags and balances agree again. A failed catalog fetch keeps the old
// snapshot; the profile refresh only ever logs.
func (s *ShopService) resync(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.Catalog(gctx)
		return err
	})
	g.Go(func() error {
		s.session.RefreshAPIUser(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn("catalog refresh after purchase failed", slog.String("error", err.Error()))
	}
}
