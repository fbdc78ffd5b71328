// Package bankclient implements the market engine's Bank interface over
// the bank service's HTTP surface.
package bankclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/oskarlind/tradingpost/internal/bank"
	"github.com/oskarlind/tradingpost/internal/market"
	"github.com/oskarlind/tradingpost/internal/model"
)

// Client talks to the bank service. It implements market.Bank.
type Client struct {
	rc     *resty.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.rc.SetTimeout(d) }
}

// WithRetries sets the retry count and base wait for transport failures.
func WithRetries(count int, wait time.Duration) Option {
	return func(c *Client) {
		c.rc.SetRetryCount(count).SetRetryWaitTime(wait)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for the bank service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(250 * time.Millisecond).
		SetHeader("Accept", "application/json")

	c := &Client{rc: rc, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type accountResponse struct {
	Name    string `json:"name"`
	Balance string `json:"balance"`
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// Account looks up a named account. A 404 with the NoSuchAccount code is
// reported as absence, not an error.
func (c *Client) Account(ctx context.Context, name string) (market.Account, bool, error) {
	resp, err := c.rc.R().SetContext(ctx).Get("/accounts/" + name)
	if err != nil {
		return nil, false, fmt.Errorf("bank lookup %s: %w", name, err)
	}
	if resp.IsSuccess() {
		return &account{client: c, name: name}, true, nil
	}

	wireErr := decodeError(resp)
	var bankErr *bank.Error
	if errors.As(wireErr, &bankErr) && bankErr.Code == bank.CodeNoSuchAccount {
		return nil, false, nil
	}
	return nil, false, wireErr
}

// NewAccount opens an account at the bank.
func (c *Client) NewAccount(ctx context.Context, name string) error {
	resp, err := c.rc.R().SetContext(ctx).
		SetBody(map[string]string{"name": name}).
		Post("/accounts")
	if err != nil {
		return fmt.Errorf("bank new account %s: %w", name, err)
	}
	if resp.IsSuccess() {
		return nil
	}
	return decodeError(resp)
}

// DeleteAccount closes an account at the bank.
func (c *Client) DeleteAccount(ctx context.Context, name string) error {
	resp, err := c.rc.R().SetContext(ctx).Delete("/accounts/" + name)
	if err != nil {
		return fmt.Errorf("bank delete account %s: %w", name, err)
	}
	if resp.IsSuccess() {
		return nil
	}
	return decodeError(resp)
}

// account is a remote account handle. Every call goes to the bank; no
// state is cached client-side.
type account struct {
	client *Client
	name   string
}

func (a *account) Balance(ctx context.Context) (int64, error) {
	resp, err := a.client.rc.R().SetContext(ctx).Get("/accounts/" + a.name + "/balance")
	if err != nil {
		return 0, fmt.Errorf("bank balance %s: %w", a.name, err)
	}
	if !resp.IsSuccess() {
		return 0, decodeError(resp)
	}

	var out accountResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return 0, fmt.Errorf("decode balance response: %w", err)
	}
	cents, err := model.ParseAmount(out.Balance)
	if err != nil {
		return 0, fmt.Errorf("parse balance %q: %w", out.Balance, err)
	}
	return cents, nil
}

func (a *account) Deposit(ctx context.Context, cents int64) error {
	return a.transfer(ctx, "deposit", cents)
}

func (a *account) Withdraw(ctx context.Context, cents int64) error {
	return a.transfer(ctx, "withdraw", cents)
}

func (a *account) transfer(ctx context.Context, op string, cents int64) error {
	resp, err := a.client.rc.R().SetContext(ctx).
		SetBody(map[string]string{"amount": model.FormatAmount(cents)}).
		Post("/accounts/" + a.name + "/" + op)
	if err != nil {
		return fmt.Errorf("bank %s %s: %w", op, a.name, err)
	}
	if resp.IsSuccess() {
		return nil
	}
	return decodeError(resp)
}

// decodeError rebuilds a coded bank error from a non-2xx response, so
// callers can pass it through with errors.Is intact.
func decodeError(resp *resty.Response) error {
	var wire errorResponse
	if err := json.Unmarshal(resp.Body(), &wire); err == nil && wire.Code != "" {
		return bank.NewError(wire.Code, "%s", wire.Error)
	}
	return fmt.Errorf("bank error: status %d: %s", resp.StatusCode(), http.StatusText(resp.StatusCode()))
}
