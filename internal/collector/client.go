/*
Package collector submits tracked events to the remote search collector.

Each call posts exactly one event to

	POST {endpoint}/v4/collections/{collection}:trackEvent

and normalizes the outcome: a 2xx response yields the raw JSON body, anything
else yields an *UnauthorizedDomainError (403) or a *ConfigurationError. There
is no retry here; redelivery is driven by the tracker's flush.
*/
package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/khanglvm/search-tracker/internal/version"
)

// Event types with a dedicated identifier field.
const (
	typeRedirect       = "redirect"
	typePromotionClick = "promotion_click"
)

// DefaultTimeout applies when Config.Timeout is zero and no HTTPClient is given.
const DefaultTimeout = 10 * time.Second

// Config describes the collector endpoint.
type Config struct {
	// Endpoint is the base URL, e.g. https://search.example.com.
	Endpoint string

	// Collection is the collection name events are recorded against.
	Collection string

	// AccountID is sent in the Account-Id header.
	AccountID string

	// Timeout bounds each request. Ignored when HTTPClient is set.
	Timeout time.Duration

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Payload carries the per-event fields besides query id and type.
type Payload struct {
	// ID is the tracked value; it is sent under IdentifierField(eventType).
	ID string

	// Metadata is sent as-is when non-empty.
	Metadata map[string]any
}

// Client posts events to the collector.
type Client struct {
	url       string
	accountID string
	http      *http.Client
}

// NewClient creates a collector client.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		url:       TrackEventURL(cfg.Endpoint, cfg.Collection),
		accountID: cfg.AccountID,
		http:      httpClient,
	}
}

// TrackEventURL builds the trackEvent URL for a collection.
func TrackEventURL(endpoint, collection string) string {
	return fmt.Sprintf("%s/v4/collections/%s:trackEvent",
		strings.TrimRight(endpoint, "/"), url.PathEscape(collection))
}

// IdentifierField returns the body field that carries the tracked value.
func IdentifierField(eventType string) string {
	switch eventType {
	case typeRedirect:
		return "redirect_id"
	case typePromotionClick:
		return "banner_id"
	default:
		return "result_id"
	}
}

// TrackEvent submits one event and returns the response body on success.
func (c *Client) TrackEvent(ctx context.Context, queryID, eventType string, payload Payload) (json.RawMessage, error) {
	body := map[string]any{
		"query_id":                 queryID,
		"type":                     eventType,
		IdentifierField(eventType): payload.ID,
	}
	if len(payload.Metadata) > 0 {
		body["metadata"] = payload.Metadata
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Account-Id", c.accountID)
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send event: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newStatusError(resp.StatusCode, respBody)
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil, nil
	}
	if !json.Valid(respBody) {
		return nil, fmt.Errorf("failed to parse response: invalid JSON")
	}

	return json.RawMessage(respBody), nil
}
