package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is one dollar rate as published by dolarapi.
type Quote struct {
	House     string          `json:"casa"`
	Name      string          `json:"nombre"`
	Buy       decimal.Decimal `json:"compra"`
	Sell      decimal.Decimal `json:"venta"`
	UpdatedAt time.Time       `json:"fechaActualizacion"`
}

// Client talks to a dolarapi compatible endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Quotes(ctx context.Context) ([]Quote, error) {
	var quotes []Quote
	if err := c.get(ctx, "/dolares", &quotes); err != nil {
		return nil, err
	}

	return quotes, nil
}

func (c *Client) Quote(ctx context.Context, house string) (*Quote, error) {
	var q Quote
	if err := c.get(ctx, "/dolares/"+url.PathEscape(house), &q); err != nil {
		return nil, err
	}

	return &q, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrUnknownHouse
	case resp.StatusCode != http.StatusOK:
		slog.Warn("dolarapi returned an error", "path", path, "status", resp.StatusCode)
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}
