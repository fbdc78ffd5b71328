package model

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Item is a single-unit good offered or wished for on the market.
// The zero value is not a valid item. Items are comparable and usable
// as map keys; equality covers both fields.
type Item struct {
	Name  string // Display name (e.g., "bike")
	Price int64  // Price in cents
}

// NewItem builds an item from a name and a decimal price string.
func NewItem(name, price string) (Item, error) {
	cents, err := ParseAmount(price)
	if err != nil {
		return Item{}, err
	}
	return Item{Name: name, Price: cents}, nil
}

// Less reports whether i sorts before o in the total item order:
// lexicographic by name, ties broken by price ascending.
func (i Item) Less(o Item) bool {
	if i.Name != o.Name {
		return i.Name < o.Name
	}
	return i.Price < o.Price
}

// String renders the item in its canonical human-readable form,
// e.g. "Item[name: bike, price: $30.00]".
func (i Item) String() string {
	return fmt.Sprintf("Item[name: %s, price: $%s]", i.Name, FormatAmount(i.Price))
}

// PriceDecimal returns the price as a decimal value in currency units.
func (i Item) PriceDecimal() decimal.Decimal {
	return decimal.New(i.Price, -2)
}

// itemWire is the JSON representation of an Item. Prices cross the wire
// as decimal strings, never floats.
type itemWire struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

// MarshalJSON implements json.Marshaler.
func (i Item) MarshalJSON() ([]byte, error) {
	return json.Marshal(itemWire{Name: i.Name, Price: FormatAmount(i.Price)})
}

// UnmarshalJSON implements json.Unmarshaler.
func (i *Item) UnmarshalJSON(data []byte) error {
	var w itemWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Name == "" {
		return fmt.Errorf("item name is required")
	}
	cents, err := ParseAmount(w.Price)
	if err != nil {
		return fmt.Errorf("item price: %w", err)
	}
	i.Name = w.Name
	i.Price = cents
	return nil
}

// TraderRef is an opaque reference to a remote trader. Equality is by
// client name; the market holds refs but does not own the endpoints
// behind them.
type TraderRef struct {
	ClientName string `json:"client_name"`
}

// String returns the client name.
func (t TraderRef) String() string { return t.ClientName }

// Wish pairs an item with the trader who wants it. The item's price is
// the wisher's maximum acceptable price for that name.
type Wish struct {
	Item   Item      `json:"item"`
	Wisher TraderRef `json:"wisher"`
}

// Offer pairs a listed item with its seller.
type Offer struct {
	Item   Item      `json:"item"`
	Seller TraderRef `json:"seller"`
}

// SortItems sorts items in place by the total item order.
func SortItems(items []Item) {
	sort.Slice(items, func(a, b int) bool { return items[a].Less(items[b]) })
}
