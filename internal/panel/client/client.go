package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"comandero/internal/order/domain/dto"
)

// Client fetches order snapshots and full projections from the order service
// on behalf of an authenticated panel.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Snapshot returns the role/tenant-filtered order list, ordered newest first.
func (c *Client) Snapshot(ctx context.Context, status string) ([]dto.OrderView, error) {
	u := c.baseURL + "/orders"
	if status != "" {
		u += "?status=" + url.QueryEscape(status)
	}

	var views []dto.OrderView
	if err := c.get(ctx, u, &views); err != nil {
		return nil, err
	}
	return views, nil
}

// Order returns the full relational projection for one order.
func (c *Client) Order(ctx context.Context, id int64) (dto.OrderView, error) {
	var view dto.OrderView
	err := c.get(ctx, fmt.Sprintf("%s/orders/%d", c.baseURL, id), &view)
	return view, err
}

func (c *Client) get(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("order service returned %d for %s", resp.StatusCode, u)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
