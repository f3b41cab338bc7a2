package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"skills-backend/internal/shared/metrics"
	"skills-backend/internal/shared/telemetry"
)

var (
	ErrNotConfigured       = errors.New("payment provider not configured")
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrProviderRejected    = errors.New("payment provider rejected request")
)

// Provider creates hosted checkout and self-service portal links.
type Provider interface {
	CreateCheckout(ctx context.Context, accountID int64, email string) (string, error)
	CreatePortalSession(ctx context.Context, customerID string) (string, error)
}

// Client talks to the Paddle Billing API with a bearer API key.
type Client struct {
	baseURL    string
	priceID    string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey, priceID string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(priceID) == "" {
		return nil, fmt.Errorf("%w: PADDLE_API_KEY and PADDLE_PRICE_ID are required", ErrNotConfigured)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: strings.TrimSpace(apiKey), TokenType: "Bearer"})
	hc := oauth2.NewClient(context.Background(), src)
	hc.Timeout = timeout
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		priceID:    priceID,
		httpClient: hc,
	}, nil
}

type checkoutRequest struct {
	Items      []checkoutItem    `json:"items"`
	Customer   *checkoutCustomer `json:"customer,omitempty"`
	CustomData map[string]string `json:"custom_data"`
}

type checkoutItem struct {
	PriceID  string `json:"price_id"`
	Quantity int    `json:"quantity"`
}

type checkoutCustomer struct {
	Email string `json:"email"`
}

type providerError struct {
	Error struct {
		Code   string `json:"code"`
		Detail string `json:"detail"`
	} `json:"error"`
}

func (c *Client) CreateCheckout(ctx context.Context, accountID int64, email string) (string, error) {
	payload := checkoutRequest{
		Items:      []checkoutItem{{PriceID: c.priceID, Quantity: 1}},
		CustomData: map[string]string{"account_id": strconv.FormatInt(accountID, 10)},
	}
	if email != "" {
		payload.Customer = &checkoutCustomer{Email: email}
	}

	var out struct {
		Data struct {
			Checkout struct {
				URL string `json:"url"`
			} `json:"checkout"`
		} `json:"data"`
	}
	if err := c.post(ctx, "transactions", "/transactions", payload, &out); err != nil {
		return "", err
	}
	if out.Data.Checkout.URL == "" {
		return "", fmt.Errorf("%w: response missing checkout url", ErrProviderRejected)
	}
	return out.Data.Checkout.URL, nil
}

func (c *Client) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	var out struct {
		Data struct {
			URLs struct {
				General struct {
					Overview string `json:"overview"`
				} `json:"general"`
			} `json:"urls"`
		} `json:"data"`
	}
	path := "/customers/" + url.PathEscape(customerID) + "/portal-sessions"
	if err := c.post(ctx, "portal_sessions", path, map[string]any{}, &out); err != nil {
		return "", err
	}
	if out.Data.URLs.General.Overview == "" {
		return "", fmt.Errorf("%w: response missing portal url", ErrProviderRejected)
	}
	return out.Data.URLs.General.Overview, nil
}

func (c *Client) post(ctx context.Context, endpoint, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordProviderCall(endpoint, "unavailable")
		telemetry.Error("billing.provider.unreachable", map[string]any{"endpoint": endpoint, "error": err.Error()})
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		metrics.RecordProviderCall(endpoint, "unavailable")
		return fmt.Errorf("%w: read body: %v", ErrProviderUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.RecordProviderCall(endpoint, "rejected")
		var perr providerError
		_ = json.Unmarshal(raw, &perr)
		telemetry.Error("billing.provider.rejected", map[string]any{
			"endpoint": endpoint,
			"status":   resp.StatusCode,
			"code":     perr.Error.Code,
			"detail":   perr.Error.Detail,
		})
		detail := perr.Error.Detail
		if detail == "" {
			detail = resp.Status
		}
		return fmt.Errorf("%w: %s", ErrProviderRejected, detail)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		metrics.RecordProviderCall(endpoint, "rejected")
		return fmt.Errorf("%w: decode response: %v", ErrProviderRejected, err)
	}
	metrics.RecordProviderCall(endpoint, "ok")
	return nil
}

var _ Provider = (*Client)(nil)
