// Package trader is the client side of the marketplace: typed access to
// the market and bank surfaces, plus the long-lived callback listener.
package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/oskarlind/tradingpost/internal/bank"
	"github.com/oskarlind/tradingpost/internal/bankclient"
	"github.com/oskarlind/tradingpost/internal/market"
	"github.com/oskarlind/tradingpost/internal/model"
	"github.com/oskarlind/tradingpost/internal/registry"
)

// Client is a trader's connection to one market and one bank, both
// resolved through the name service.
type Client struct {
	name           string
	marketEndpoint string
	rc             *resty.Client
	bank           *bankclient.Client
	logger         *slog.Logger
}

// Dial resolves the market and bank endpoints and builds a client for
// the named trader.
func Dial(ctx context.Context, registryURL, traderName, marketName, bankName string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reg := registry.NewClient(registryURL)
	marketEndpoint, err := reg.Lookup(ctx, marketName)
	if err != nil {
		return nil, fmt.Errorf("resolve market %q: %w", marketName, err)
	}
	bankEndpoint, err := reg.Lookup(ctx, bankName)
	if err != nil {
		return nil, fmt.Errorf("resolve bank %q: %w", bankName, err)
	}

	rc := resty.New().
		SetBaseURL(marketEndpoint).
		SetTimeout(15 * time.Second).
		SetHeader("Accept", "application/json")

	return &Client{
		name:           traderName,
		marketEndpoint: marketEndpoint,
		rc:             rc,
		bank:           bankclient.New(bankEndpoint, bankclient.WithLogger(logger)),
		logger:         logger,
	}, nil
}

// Name returns the trader's client name.
func (c *Client) Name() string { return c.name }

// Bank returns the trader's bank client.
func (c *Client) Bank() *bankclient.Client { return c.bank }

// CallbackURL derives the WebSocket URL for this trader's callback
// attachment from the market endpoint.
func (c *Client) CallbackURL() (string, error) {
	u, err := url.Parse(c.marketEndpoint)
	if err != nil {
		return "", fmt.Errorf("parse market endpoint: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"trader": {c.name}}.Encode()
	return u.String(), nil
}

// Register registers the trader on the market.
func (c *Client) Register(ctx context.Context) error {
	return c.post(ctx, "/register", map[string]string{"trader": c.name})
}

// Unregister removes the trader from the market, evicting its offers
// and wishes.
func (c *Client) Unregister(ctx context.Context) error {
	return c.post(ctx, "/unregister", map[string]string{"trader": c.name})
}

// Sell lists an item for sale.
func (c *Client) Sell(ctx context.Context, item model.Item) error {
	return c.post(ctx, "/sell", itemPayload{Item: item, Trader: c.name})
}

// Buy purchases a listed item.
func (c *Client) Buy(ctx context.Context, item model.Item) error {
	return c.post(ctx, "/buy", itemPayload{Item: item, Trader: c.name})
}

// Wish records interest in an item name up to a maximum price.
func (c *Client) Wish(ctx context.Context, item model.Item) error {
	return c.post(ctx, "/wish", itemPayload{Item: item, Trader: c.name})
}

// ListItems fetches the current market listing.
func (c *Client) ListItems(ctx context.Context) (string, []model.Offer, error) {
	resp, err := c.rc.R().SetContext(ctx).Get("/items")
	if err != nil {
		return "", nil, fmt.Errorf("list items: %w", err)
	}
	if !resp.IsSuccess() {
		return "", nil, decodeError(resp)
	}

	var out struct {
		Listing string        `json:"listing"`
		Items   []model.Offer `json:"items"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", nil, fmt.Errorf("decode listing: %w", err)
	}
	return out.Listing, out.Items, nil
}

type itemPayload struct {
	Item   model.Item `json:"item"`
	Trader string     `json:"trader"`
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	resp, err := c.rc.R().SetContext(ctx).SetBody(body).Post(path)
	if err != nil {
		return fmt.Errorf("%s: %w", strings.TrimPrefix(path, "/"), err)
	}
	if resp.IsSuccess() {
		return nil
	}
	return decodeError(resp)
}

// marketCodes is the set of error codes minted by the market itself;
// everything else coded is a bank pass-through.
var marketCodes = map[string]struct{}{
	market.CodeAlreadyRegistered: {},
	market.CodeNotRegistered:     {},
	market.CodeAlreadyListed:     {},
	market.CodeNotListed:         {},
	market.CodeDuplicateWish:     {},
	market.CodeWishConflict:      {},
	market.CodeNoSellerAccount:   {},
	market.CodeNoBuyerAccount:    {},
	market.CodeInsufficientFunds: {},
}

// decodeError rebuilds a typed error from a non-2xx market response so
// callers can use errors.Is against market and bank sentinels.
func decodeError(resp *resty.Response) error {
	var wire struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body(), &wire); err == nil && wire.Code != "" {
		if _, ok := marketCodes[wire.Code]; ok {
			return &market.Error{Code: wire.Code, Message: wire.Error}
		}
		return bank.NewError(wire.Code, "%s", wire.Error)
	}
	return fmt.Errorf("market error: status %d", resp.StatusCode())
}
