package market

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oskarlind/tradingpost/internal/model"
)

// EmptyListing is returned by ListItems when nothing is for sale.
const EmptyListing = "no items for sale on the market"

// Account is a handle to a single bank account.
type Account interface {
	// Balance returns the current balance in cents.
	Balance(ctx context.Context) (int64, error)

	// Deposit adds a non-negative amount in cents.
	Deposit(ctx context.Context, cents int64) error

	// Withdraw removes a non-negative amount in cents. Fails on overdraft.
	Withdraw(ctx context.Context, cents int64) error
}

// Bank is the slice of the bank the engine consumes. The bank is the
// authority on funds; the engine never caches account state.
type Bank interface {
	// Account looks up a named account. A missing account is reported via
	// the ok result, not an error; errors are transport failures.
	Account(ctx context.Context, name string) (Account, bool, error)
}

// Notifier accepts callback messages for asynchronous delivery to traders.
// Implementations must not block; the engine calls Notify outside its
// mutex but on the request path.
type Notifier interface {
	Notify(trader model.TraderRef, message string)
}

// Settlement describes one completed purchase.
type Settlement struct {
	ID         uuid.UUID
	Item       model.Item
	Buyer      string
	Seller     string
	ExecutedAt time.Time
}

// SettlementHook observes completed purchases (e.g., the audit ledger).
// Called outside the engine mutex.
type SettlementHook func(Settlement)

// Stats is a point-in-time snapshot of engine counters.
type Stats struct {
	Traders       int   `json:"traders"`
	Offers        int   `json:"offers"`
	Wishes        int   `json:"wishes"`
	Settlements   int64 `json:"settlements"`
	WishesMatched int64 `json:"wishes_matched"`
}

// Engine is the marketplace coordination engine. See the package
// documentation for the locking model.
type Engine struct {
	bank     Bank
	notifier Notifier
	logger   *slog.Logger
	onSettle SettlementHook

	mu      sync.Mutex
	traders map[string]struct{}
	offers  map[model.Item]model.TraderRef
	wishes  map[model.Item]model.TraderRef

	settlements   int64
	wishesMatched int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithSettlementHook registers a hook invoked after each settlement.
func WithSettlementHook(hook SettlementHook) Option {
	return func(e *Engine) { e.onSettle = hook }
}

// NewEngine creates an engine backed by the given bank and notifier.
func NewEngine(bank Bank, notifier Notifier, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		bank:     bank,
		notifier: notifier,
		logger:   logger,
		traders:  make(map[string]struct{}),
		offers:   make(map[model.Item]model.TraderRef),
		wishes:   make(map[model.Item]model.TraderRef),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// notification is a callback captured under the mutex for later dispatch.
type notification struct {
	trader  model.TraderRef
	message string
}

func (e *Engine) dispatch(pending []notification) {
	for _, n := range pending {
		e.notifier.Notify(n.trader, n.message)
	}
}

// Register adds a trader name to the registered set.
func (e *Engine) Register(trader string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.traders[trader]; ok {
		return newError(CodeAlreadyRegistered, "trader %s already registered", trader)
	}
	e.traders[trader] = struct{}{}
	e.logger.Info("trader registered", "trader", trader)
	return nil
}

// Unregister removes a trader and evicts all of its offers and wishes.
// Eviction emits no callbacks: an unregistering trader abandons its
// outstanding business.
func (e *Engine) Unregister(trader string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.traders[trader]; !ok {
		return newError(CodeNotRegistered, "trader %s not registered", trader)
	}
	delete(e.traders, trader)

	for item, seller := range e.offers {
		if seller.ClientName == trader {
			delete(e.offers, item)
		}
	}
	for item, wisher := range e.wishes {
		if wisher.ClientName == trader {
			delete(e.wishes, item)
		}
	}

	e.logger.Info("trader unregistered", "trader", trader)
	return nil
}

// IsRegistered reports whether the trader name is currently registered.
func (e *Engine) IsRegistered(trader string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.traders[trader]
	return ok
}

// Sell lists an item for sale and sweeps the wish map for matches. Every
// wish with the same name and a maximum price at or above the listing
// price is removed and its wisher notified, in total item order. The
// offer stays listed regardless of matches.
func (e *Engine) Sell(ctx context.Context, item model.Item, seller model.TraderRef) error {
	e.mu.Lock()
	pending, err := e.sellLocked(ctx, item, seller)
	e.mu.Unlock()

	e.dispatch(pending)
	return err
}

func (e *Engine) sellLocked(ctx context.Context, item model.Item, seller model.TraderRef) ([]notification, error) {
	if _, ok := e.traders[seller.ClientName]; !ok {
		return nil, newError(CodeNotRegistered, "trader %s not registered", seller.ClientName)
	}
	if _, ok := e.offers[item]; ok {
		return nil, newError(CodeAlreadyListed, "%s already on the market", item)
	}

	_, ok, err := e.bank.Account(ctx, seller.ClientName)
	if err != nil {
		return nil, fmt.Errorf("look up seller account: %w", err)
	}
	if !ok {
		return nil, newError(CodeNoSellerAccount, "cannot sell %s: trader %s has no bank account", item, seller.ClientName)
	}

	e.offers[item] = seller
	e.logger.Info("item listed", "item", item.Name, "price", model.FormatAmount(item.Price), "seller", seller.ClientName)

	// Wish-match sweep, in total item order. Wishes are removed here,
	// before any callback fires, so a retrying wisher never sees the
	// old wish.
	var pending []notification
	for _, wished := range e.sortedWishItems() {
		if wished.Name != item.Name || item.Price > wished.Price {
			continue
		}
		wisher := e.wishes[wished]
		delete(e.wishes, wished)
		e.wishesMatched++
		pending = append(pending, notification{
			trader:  wisher,
			message: fmt.Sprintf("%s available on the market", item),
		})
		e.logger.Info("wish matched", "item", item.Name, "wisher", wisher.ClientName)
	}
	return pending, nil
}

// Buy purchases a listed item, transferring funds from the buyer's to the
// seller's bank account. The offer is removed before the withdrawal and
// restored if settlement cannot complete, so a failed purchase leaves the
// listing intact and the buyer whole.
func (e *Engine) Buy(ctx context.Context, item model.Item, buyer model.TraderRef) error {
	e.mu.Lock()
	pending, settled, err := e.buyLocked(ctx, item, buyer)
	e.mu.Unlock()

	if settled != nil && e.onSettle != nil {
		e.onSettle(*settled)
	}
	e.dispatch(pending)
	return err
}

func (e *Engine) buyLocked(ctx context.Context, item model.Item, buyer model.TraderRef) ([]notification, *Settlement, error) {
	if _, ok := e.traders[buyer.ClientName]; !ok {
		return nil, nil, newError(CodeNotRegistered, "trader %s not registered", buyer.ClientName)
	}
	seller, listed := e.offers[item]
	if !listed {
		return nil, nil, newError(CodeNotListed, "%s is not on the market", item)
	}

	buyerAcct, ok, err := e.bank.Account(ctx, buyer.ClientName)
	if err != nil {
		return nil, nil, fmt.Errorf("look up buyer account: %w", err)
	}
	if !ok {
		return nil, nil, newError(CodeNoBuyerAccount, "cannot buy %s: trader %s has no bank account", item, buyer.ClientName)
	}
	sellerAcct, ok, err := e.bank.Account(ctx, seller.ClientName)
	if err != nil {
		return nil, nil, fmt.Errorf("look up seller account: %w", err)
	}
	if !ok {
		return nil, nil, newError(CodeNoSellerAccount, "cannot buy %s: seller %s has no bank account", item, seller.ClientName)
	}

	balance, err := buyerAcct.Balance(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("check buyer balance: %w", err)
	}
	if balance < item.Price {
		return nil, nil, newError(CodeInsufficientFunds, "trader %s cannot afford %s", buyer.ClientName, item)
	}

	// Settlement: remove the offer first, then move funds, compensating
	// on failure. The mutex stays held throughout, so no concurrent buy
	// can observe the offer in either direction mid-settlement.
	delete(e.offers, item)

	if err := buyerAcct.Withdraw(ctx, item.Price); err != nil {
		e.offers[item] = seller
		return nil, nil, err
	}

	if err := sellerAcct.Deposit(ctx, item.Price); err != nil {
		if refundErr := buyerAcct.Deposit(ctx, item.Price); refundErr != nil {
			e.logger.Error("settlement compensation failed, funds withdrawn but not refunded",
				"item", item.Name,
				"buyer", buyer.ClientName,
				"amount", model.FormatAmount(item.Price),
				"error", refundErr,
			)
		}
		e.offers[item] = seller
		return nil, nil, err
	}

	e.settlements++
	e.logger.Info("item sold",
		"item", item.Name,
		"price", model.FormatAmount(item.Price),
		"seller", seller.ClientName,
		"buyer", buyer.ClientName,
	)

	settled := &Settlement{
		ID:         uuid.New(),
		Item:       item,
		Buyer:      buyer.ClientName,
		Seller:     seller.ClientName,
		ExecutedAt: time.Now().UTC(),
	}

	pending := []notification{{
		trader:  seller,
		message: fmt.Sprintf("%s has been sold", item),
	}}
	return pending, settled, nil
}

// Wish records a trader's interest in an item name at a maximum price.
// Wishes match only on future Sell calls; an offer already listed when
// the wish is posted does not fire a callback.
func (e *Engine) Wish(item model.Item, wisher model.TraderRef) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.traders[wisher.ClientName]; !ok {
		return newError(CodeNotRegistered, "trader %s not registered", wisher.ClientName)
	}
	for wished, owner := range e.wishes {
		if wished.Name == item.Name && owner.ClientName == wisher.ClientName {
			return newError(CodeDuplicateWish, "trader %s already wishes for %s", wisher.ClientName, item.Name)
		}
	}
	if _, ok := e.wishes[item]; ok {
		return newError(CodeWishConflict, "%s is already wished for", item)
	}

	e.wishes[item] = wisher
	e.logger.Info("wish recorded", "item", item.Name, "max_price", model.FormatAmount(item.Price), "wisher", wisher.ClientName)
	return nil
}

// ListItems returns the current offers in total item order, along with a
// human-readable listing. The listing uses one line per item, or the
// EmptyListing sentinel when nothing is for sale.
func (e *Engine) ListItems() (string, []model.Offer) {
	e.mu.Lock()
	defer e.mu.Unlock()

	items := e.sortedOfferItems()
	if len(items) == 0 {
		return EmptyListing, nil
	}

	offers := make([]model.Offer, 0, len(items))
	lines := make([]string, 0, len(items))
	for _, item := range items {
		offers = append(offers, model.Offer{Item: item, Seller: e.offers[item]})
		lines = append(lines, item.String())
	}
	return strings.Join(lines, "\n"), offers
}

// Stats returns current engine counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Traders:       len(e.traders),
		Offers:        len(e.offers),
		Wishes:        len(e.wishes),
		Settlements:   e.settlements,
		WishesMatched: e.wishesMatched,
	}
}

// sortedOfferItems returns offer keys in total item order. Caller holds mu.
func (e *Engine) sortedOfferItems() []model.Item {
	items := make([]model.Item, 0, len(e.offers))
	for item := range e.offers {
		items = append(items, item)
	}
	sort.Slice(items, func(a, b int) bool { return items[a].Less(items[b]) })
	return items
}

// sortedWishItems returns wish keys in total item order. Caller holds mu.
func (e *Engine) sortedWishItems() []model.Item {
	items := make([]model.Item, 0, len(e.wishes))
	for item := range e.wishes {
		items = append(items, item)
	}
	sort.Slice(items, func(a, b int) bool { return items[a].Less(items[b]) })
	return items
}
