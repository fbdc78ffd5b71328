package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrNotBound is returned by Lookup when a name has no binding.
var ErrNotBound = errors.New("name not bound")

// Client resolves and registers names against a registry service.
type Client struct {
	rc *resty.Client
}

// NewClient creates a client for the registry at baseURL.
func NewClient(baseURL string) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetHeader("Accept", "application/json")
	return &Client{rc: rc}
}

// Bind registers name -> endpoint, replacing any existing binding.
func (c *Client) Bind(ctx context.Context, name, endpoint string) error {
	resp, err := c.rc.R().SetContext(ctx).
		SetBody(map[string]string{"endpoint": endpoint}).
		Put("/names/" + name)
	if err != nil {
		return fmt.Errorf("bind %s: %w", name, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("bind %s: registry returned status %d", name, resp.StatusCode())
	}
	return nil
}

// Lookup resolves a name to its endpoint URL.
func (c *Client) Lookup(ctx context.Context, name string) (string, error) {
	resp, err := c.rc.R().SetContext(ctx).Get("/names/" + name)
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", name, err)
	}
	if resp.StatusCode() == 404 {
		return "", fmt.Errorf("lookup %s: %w", name, ErrNotBound)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("lookup %s: registry returned status %d", name, resp.StatusCode())
	}

	var b Binding
	if err := json.Unmarshal(resp.Body(), &b); err != nil {
		return "", fmt.Errorf("decode binding for %s: %w", name, err)
	}
	return b.Endpoint, nil
}

// Unbind removes a name binding. Unbinding an unknown name is not an
// error.
func (c *Client) Unbind(ctx context.Context, name string) error {
	resp, err := c.rc.R().SetContext(ctx).Delete("/names/" + name)
	if err != nil {
		return fmt.Errorf("unbind %s: %w", name, err)
	}
	if !resp.IsSuccess() && resp.StatusCode() != 404 {
		return fmt.Errorf("unbind %s: registry returned status %d", name, resp.StatusCode())
	}
	return nil
}
