package order

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"teapot/internal/models"
)

// HTTPClient talks to the remote order service
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient creates a client for the service at baseURL. A nil client
// means http.DefaultClient; no timeout is added beyond what the caller's
// context carries.
func NewHTTPClient(baseURL string, client *http.Client) *HTTPClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    client,
	}
}

// Place sends POST /order
func (c *HTTPClient) Place(ctx context.Context, o models.Order) ([]models.Order, error) {
	body, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order: %w", err)
	}

	resp, err := c.do(ctx, "place order", http.MethodPost, "/order", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	drain(resp)
	return nil, nil
}

// List sends GET /orders
func (c *HTTPClient) List(ctx context.Context) ([]models.Order, error) {
	resp, err := c.do(ctx, "list orders", http.MethodGet, "/orders", nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	var orders []models.Order
	if err := json.NewDecoder(resp.Body).Decode(&orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, nil
}

// Remove sends DELETE /order/{phone}; the remote service keys orders by phone number
func (c *HTTPClient) Remove(ctx context.Context, o models.Order) error {
	phone := o.DeliveryInfo.Phone
	if phone == "" {
		return fmt.Errorf("remove order: %w: no phone number", ErrNotFound)
	}

	resp, err := c.do(ctx, "remove order", http.MethodDelete, "/order/"+url.PathEscape(phone), nil)
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

func (c *HTTPClient) do(ctx context.Context, op, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drain(resp)
		netErr := &NetworkError{Op: op, Status: resp.StatusCode}
		if resp.StatusCode == http.StatusNotFound {
			netErr.Err = ErrNotFound
		}
		return nil, netErr
	}
	return resp, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
