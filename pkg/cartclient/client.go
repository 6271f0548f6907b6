package cartclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mercadito/storefront-backend/pkg/logger"
)

const defaultTimeout = 15 * time.Second

type Config struct {
	// BaseURL is the storefront API root, e.g. http://localhost:8080
	BaseURL string

	// Timeout bounds each request. Zero means 15s.
	Timeout time.Duration

	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return ErrInvalidConfig
	}
	return nil
}

// API is the cart surface of the storefront backend.
type API interface {
	GetCart(ctx context.Context, clientID uint) ([]CartItem, error)
	GetSummary(ctx context.Context, clientID uint) (*CartSummary, error)
	InsertItem(ctx context.Context, clientID, productID uint, quantity int) (*CartItem, error)
	UpdateQuantity(ctx context.Context, cartID, productID uint, quantity int) (*QuantityUpdate, error)
	DeleteItem(ctx context.Context, cartID, productID uint) (*RemovedCartItem, error)
	ConvertCartToOrder(ctx context.Context, cartID uint) (*Order, error)
}

// Client calls the storefront cart endpoints over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
	}, nil
}

// GetCart returns the lines of clientID's open cart. An empty cart is an
// empty, non-nil slice.
func (c *Client) GetCart(ctx context.Context, clientID uint) ([]CartItem, error) {
	var items []CartItem
	if err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/carts/%d", clientID), nil, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []CartItem{}
	}
	return items, nil
}

func (c *Client) GetSummary(ctx context.Context, clientID uint) (*CartSummary, error) {
	var summary CartSummary
	if err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/carts/%d/summary", clientID), nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (c *Client) InsertItem(ctx context.Context, clientID, productID uint, quantity int) (*CartItem, error) {
	var item CartItem
	req := insertItemRequest{ClientID: clientID, ProductID: productID, Quantity: quantity}
	if err := c.doRequest(ctx, http.MethodPost, "/api/cart", req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateQuantity sets the quantity of a line. Zero removes the line and the
// result carries Removed instead of Item.
func (c *Client) UpdateQuantity(ctx context.Context, cartID, productID uint, quantity int) (*QuantityUpdate, error) {
	req := updateQuantityRequest{CartID: cartID, ProductID: productID, Quantity: quantity}

	if quantity == 0 {
		var removed RemovedCartItem
		if err := c.doRequest(ctx, http.MethodPut, "/api/cart", req, &removed); err != nil {
			return nil, err
		}
		return &QuantityUpdate{Removed: &removed}, nil
	}

	var item CartItem
	if err := c.doRequest(ctx, http.MethodPut, "/api/cart", req, &item); err != nil {
		return nil, err
	}
	return &QuantityUpdate{Item: &item}, nil
}

func (c *Client) DeleteItem(ctx context.Context, cartID, productID uint) (*RemovedCartItem, error) {
	var removed RemovedCartItem
	if err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/api/cart/%d/%d", cartID, productID), nil, &removed); err != nil {
		return nil, err
	}
	return &removed, nil
}

func (c *Client) ConvertCartToOrder(ctx context.Context, cartID uint) (*Order, error) {
	var order Order
	if err := c.doRequest(ctx, http.MethodPost, "/api/cart/convert", convertRequest{CartID: cartID}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		reqBody, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger.Debug("Cart API request", map[string]interface{}{
		"method": method,
		"path":   path,
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %w", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			apiErr.Code = errResp.Error
			apiErr.Message = errResp.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}

		logger.Debug("Cart API error response", map[string]interface{}{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
			"code":   apiErr.Code,
		})
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}
