// Package heygen talks to the HeyGen streaming avatar REST API: it exchanges
// the server-held API key for short-lived session tokens and drives the
// session control plane. Media transport stays in the browser SDK.
package heygen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the public HeyGen API endpoint.
const DefaultBaseURL = "https://api.heygen.com"

var (
	// ErrMissingAPIKey is returned when no API key is configured.
	ErrMissingAPIKey = errors.New("missing HEYGEN_API_KEY")

	// ErrNoToken is returned when the vendor response carries no token.
	ErrNoToken = errors.New("failed to create token")
)

// TokenError reports a create_token response without a token. Raw holds the
// vendor's body for diagnosis.
type TokenError struct {
	Status int
	Raw    json.RawMessage
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("%s: status %d", ErrNoToken, e.Status)
}

// Is makes errors.Is(err, ErrNoToken) match.
func (e *TokenError) Is(target error) bool {
	return target == ErrNoToken
}

// APIError is a non-2xx response from a streaming endpoint.
type APIError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("heygen %s: status %d: %s", e.Endpoint, e.Status, e.Body)
}

// Client calls the HeyGen API with the server-held key.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient returns a Client. An empty baseURL uses DefaultBaseURL and a nil
// httpClient gets a 15s timeout.
func NewClient(apiKey, baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// BaseURL returns the API root the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// HTTPClient returns the underlying HTTP client.
func (c *Client) HTTPClient() *http.Client { return c.http }

// CreateToken exchanges the API key for a streaming session token.
func (c *Client) CreateToken(ctx context.Context) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/streaming.create_token", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("create token: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("create token: read body: %w", err)
	}

	var body struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", fmt.Errorf("create token: decode body: %w", err)
	}
	if body.Data.Token == "" {
		return "", &TokenError{Status: resp.StatusCode, Raw: json.RawMessage(raw)}
	}
	return body.Data.Token, nil
}

// postJSON sends in as JSON to path with the session token as bearer and
// decodes the "data" member of the response into out (if non-nil).
func postJSON(ctx context.Context, hc *http.Client, baseURL, token, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("heygen %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("heygen %s: read body: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Endpoint: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("heygen %s: decode body: %w", path, err)
	}
	if len(envelope.Data) == 0 {
		return fmt.Errorf("heygen %s: response has no data", path)
	}
	return json.Unmarshal(envelope.Data, out)
}
