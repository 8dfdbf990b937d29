// Package ticketmaster implements provider.Provider against the Ticketmaster
// Discovery API (v2 events search).
package ticketmaster

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/sakif/soundscape/internal/provider"
)

const (
	// DefaultBaseURL is the Discovery API events search endpoint.
	DefaultBaseURL = "https://app.ticketmaster.com/discovery/v2/events.json"

	defaultTimeout = 10 * time.Second

	// bodySnippet bounds how much of an error body ends up in logs.
	bodySnippet = 512
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ticketmaster: unexpected status %d: %s", e.Code, e.Body)
}

// Config configures a Client.
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client calls the Discovery API. It is safe for concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ provider.Provider = (*Client)(nil)

func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func (c *Client) Name() string { return "ticketmaster" }

// SearchEvents queries music events. Keyword and City are sent only when
// non-blank; Size is clamped to provider.MaxPageSize.
func (c *Client) SearchEvents(ctx context.Context, params provider.SearchParams) (*provider.Page, error) {
	if c.apiKey == "" {
		return nil, provider.ErrNotConfigured
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("ticketmaster: parsing base url: %w", err)
	}

	size := params.Size
	if size <= 0 || size > provider.MaxPageSize {
		size = provider.MaxPageSize
	}

	q := u.Query()
	q.Set("apikey", c.apiKey)
	q.Set("classificationName", "music")
	q.Set("size", strconv.Itoa(size))
	q.Set("sort", "date,asc")
	if params.Page > 0 {
		q.Set("page", strconv.Itoa(params.Page))
	}
	if kw := strings.TrimSpace(params.Keyword); kw != "" {
		q.Set("keyword", kw)
	}
	if city := strings.TrimSpace(params.City); city != "" {
		q.Set("city", city)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("ticketmaster: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ticketmaster: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, bodySnippet))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("ticketmaster: decoding response: %w", err)
	}

	page := &provider.Page{
		Number:     sr.Page.Number,
		TotalPages: sr.Page.TotalPages,
	}
	page.Events = mapEvents(sr.Embedded.Events)
	return page, nil
}
