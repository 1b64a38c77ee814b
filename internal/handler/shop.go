package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/crewcrew/internal/apperror"
	"github.com/sakif/crewcrew/internal/model"
	"github.com/sakif/crewcrew/internal/service"
)

// shopItemView is one catalog entry with its buy-button state.
type shopItemView struct {
	model.Item
	Kind        model.ItemKind      `json:"kind"`
	Currency    string              `json:"currency"`
	Eligibility service.Eligibility `json:"eligibility"`
}

type shopView struct {
	Gadgets       []shopItemView `json:"gadgets"`
	Personalities []shopItemView `json:"personalities"`
	UserCoin      int            `json:"userCoin"`
	UserRuby      int            `json:"userRuby"`
}

func newShopView(shop *service.ShopService, cat *model.Catalog) *shopView {
	items := func(kind model.ItemKind, in []model.Item) []shopItemView {
		out := make([]shopItemView, 0, len(in))
		for _, it := range in {
			out = append(out, shopItemView{
				Item:        it,
				Kind:        kind,
				Currency:    kind.Currency(),
				Eligibility: shop.Eligibility(kind, it.ID),
			})
		}
		return out
	}
	return &shopView{
		Gadgets:       items(model.KindGadget, cat.Gadgets),
		Personalities: items(model.KindPersonality, cat.Personalities),
		UserCoin:      cat.UserCoin,
		UserRuby:      cat.UserRuby,
	}
}

// ShopHandler is the JSON side of the shop page.
type ShopHandler struct {
	shop   *service.ShopService
	logger *slog.Logger
}

func NewShopHandler(shop *service.ShopService, logger *slog.Logger) *ShopHandler {
	return &ShopHandler{shop: shop, logger: logger}
}

// HandleCatalog returns the catalog with eligibility for every item.
//
// HTTP: GET /api/shop
func (h *ShopHandler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	cat, err := h.shop.Catalog(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newShopView(h.shop, cat))
}

// HandlePurchase buys one item.
//
// HTTP: POST /api/shop/purchase/{kind}/{id}
//
// STATUS CODES:
//   - 200 {"ok":true,...}  the backend accepted; newBalance is authoritative
//   - 200 {"ok":false,...} the backend said no; message is the backend's
//   - 402/404/409          blocked before any request (funds, unknown, owned)
//   - 502                  the backend could not be reached
func (h *ShopHandler) HandlePurchase(w http.ResponseWriter, r *http.Request) {
	kind := model.ItemKind(chi.URLParam(r, "kind"))
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, h.logger, apperror.ValidationFailed("id", "Item id must be a number."))
		return
	}

	outcome, err := h.shop.Purchase(r.Context(), kind, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}
