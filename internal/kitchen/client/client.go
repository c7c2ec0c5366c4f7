package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"comandero/internal/order/domain/dto"
)

// Client talks to the unauthenticated kitchen endpoints of the order service.
type Client struct {
	baseURL      string
	restaurantID int64
	http         *http.Client
}

func New(baseURL string, restaurantID int64) *Client {
	return &Client{
		baseURL:      baseURL,
		restaurantID: restaurantID,
		http:         &http.Client{Timeout: 10 * time.Second},
	}
}

// Tickets fetches all pending dine-in/takeout tickets for the tenant.
func (c *Client) Tickets(ctx context.Context) ([]dto.OrderView, error) {
	u := fmt.Sprintf("%s/kitchen/orders?restaurant_id=%d", c.baseURL, c.restaurantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("kitchen snapshot returned %d", resp.StatusCode)
	}

	var tickets []dto.OrderView
	if err := json.NewDecoder(resp.Body).Decode(&tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

// MarkReady performs the kitchen surface's single legal transition.
func (c *Client) MarkReady(ctx context.Context, id int64) error {
	u := fmt.Sprintf("%s/kitchen/orders/%d/ready", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mark ready returned %d", resp.StatusCode)
	}
	return nil
}
