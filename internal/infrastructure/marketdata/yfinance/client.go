package yfinance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/jmanzanog/instrument-registry/internal/domain"
	"github.com/jmanzanog/instrument-registry/internal/infrastructure/marketdata"
)

const (
	defaultBaseURL = "http://localhost:8000"
	quotePath      = "/api/v1/quote"
	quoteBatchPath = "/api/v1/quote/batch"
)

// Client talks to the yfinance Market Data Service, a small REST service
// that serves Yahoo Finance quotes by ticker symbol.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ marketdata.QuoteProvider = (*Client)(nil)

func NewClient() *Client {
	return NewClientWithBaseURL(defaultBaseURL)
}

// NewClientWithBaseURL creates a client for a service deployed elsewhere.
func NewClientWithBaseURL(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewClientWithHTTPClient creates a client with a custom HTTP client (for testing).
func NewClientWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

type quoteResponse struct {
	Symbol   string `json:"symbol"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
	Time     string `json:"time"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type quoteBatchRequest struct {
	Symbols []string `json:"symbols"`
}

type quoteBatchResponse struct {
	Results []quoteResponse   `json:"results"`
	Errors  []quoteBatchError `json:"errors"`
}

type quoteBatchError struct {
	Symbol string `json:"symbol"`
	Error  string `json:"error"`
}

// GetQuote retrieves the current quote for a single symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*marketdata.QuoteResult, error) {
	reqURL := fmt.Sprintf("%s%s/%s", c.baseURL, quotePath, url.PathEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer closeBody(resp, reqURL)

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("no quote found for symbol: %s", symbol)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var quoteResp quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quoteResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if quoteResp.Price == "" {
		return nil, fmt.Errorf("quote request returned no price data for symbol: %s", symbol)
	}
	return toQuote(quoteResp)
}

// GetQuoteBatch retrieves quotes for several symbols in one request.
func (c *Client) GetQuoteBatch(ctx context.Context, symbols []string) []marketdata.QuoteBatchResult {
	if len(symbols) == 0 {
		return []marketdata.QuoteBatchResult{}
	}

	batchResp, err := c.postQuoteBatch(ctx, symbols)
	if err != nil {
		return failAll(symbols, err)
	}

	results := make([]marketdata.QuoteBatchResult, 0, len(symbols))
	for _, qr := range batchResp.Results {
		quote, err := toQuote(qr)
		results = append(results, marketdata.QuoteBatchResult{
			Symbol: qr.Symbol,
			Quote:  quote,
			Error:  err,
		})
	}
	for _, e := range batchResp.Errors {
		results = append(results, marketdata.QuoteBatchResult{
			Symbol: e.Symbol,
			Error:  fmt.Errorf("%s", e.Error),
		})
	}
	return results
}

func (c *Client) postQuoteBatch(ctx context.Context, symbols []string) (*quoteBatchResponse, error) {
	jsonBody, err := json.Marshal(quoteBatchRequest{Symbols: symbols})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqURL := c.baseURL + quoteBatchPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer closeBody(resp, reqURL)

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var batchResp quoteBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&batchResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &batchResp, nil
}

func toQuote(qr quoteResponse) (*marketdata.QuoteResult, error) {
	price, err := domain.NewDecimalFromString(qr.Price)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price %q: %w", qr.Price, err)
	}
	return &marketdata.QuoteResult{
		Symbol:   qr.Symbol,
		Price:    price,
		Currency: qr.Currency,
		Time:     qr.Time,
	}, nil
}

func failAll(symbols []string, err error) []marketdata.QuoteBatchResult {
	results := make([]marketdata.QuoteBatchResult, 0, len(symbols))
	for _, symbol := range symbols {
		results = append(results, marketdata.QuoteBatchResult{Symbol: symbol, Error: err})
	}
	return results
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var errResp errorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Detail != "" {
		return fmt.Errorf("API error: %s", errResp.Detail)
	}
	return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
}

func closeBody(resp *http.Response, reqURL string) {
	if closeErr := resp.Body.Close(); closeErr != nil {
		slog.Warn("failed to close response body", "error", closeErr, "url", reqURL)
	}
}
