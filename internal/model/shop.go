package model

// ItemKind selects the purchase endpoint and the currency an item is priced in.
type ItemKind string

const (
	KindGadget      ItemKind = "gadget"      // priced in coin
	KindPersonality ItemKind = "personality" // priced in ruby
)

// Valid reports whether k is one of the known kinds.
func (k ItemKind) Valid() bool {
	return k == KindGadget || k == KindPersonality
}

// Currency names the balance an item of this kind is paid from.
func (k ItemKind) Currency() string {
	if k == KindPersonality {
		return "ruby"
	}
	return "coin"
}

// Item is one entry of the shop catalog.
type Item struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int    `json:"price"`
	Owned       bool   `json:"owned"`
}

// Catalog is the GET /api/shop/items response.
type Catalog struct {
	Gadgets       []Item `json:"gadgets"`
	Personalities []Item `json:"personalities"`
	UserCoin      int    `json:"user_coin"`
	UserRuby      int    `json:"user_ruby"`
}

// Find returns the item of the given kind and id.
func (c *Catalog) Find(kind ItemKind, id int64) (Item, bool) {
	if c == nil {
		return Item{}, false
	}
	items := c.Gadgets
	if kind == KindPersonality {
		items = c.Personalities
	}
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// Balance returns the catalog's balance for the kind's currency.
func (c *Catalog) Balance(kind ItemKind) int {
	if c == nil {
		return 0
	}
	if kind == KindPersonality {
		return c.UserRuby
	}
	return c.UserCoin
}
