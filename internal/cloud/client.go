// Package cloud is a minimal REST client for the Cyberwave API covering
// the calls the edge boot sequence makes.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"edgecore/internal/twin"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	apiPrefix      = "/api/v1"
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 512
	maxListPages   = 100
)

// APIError is a non-2xx response from the API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Alert is raised against a twin when its driver cannot be provisioned.
type Alert struct {
	TwinUUID    string `json:"twin_uuid"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	AlertType   string `json:"alert_type"`
}

// Client talks to the API with a bearer token. Requests are traced as
// children of the caller's span.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func New(baseURL, token string, opts ...Option) *Client {
	hc := &http.Client{
		Timeout:   defaultTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    hc,
		log:     slog.With("component", "cloud"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ValidateToken checks the token by listing workspaces.
func (c *Client) ValidateToken(ctx context.Context) error {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/workspaces", nil, &out); err != nil {
		return fmt.Errorf("validate token: %w", err)
	}
	return nil
}

// RegisterEdge creates (or refreshes) the edge record for fingerprint.
func (c *Client) RegisterEdge(ctx context.Context, fingerprint string) error {
	var out map[string]any
	body := map[string]string{"fingerprint": fingerprint}
	if err := c.do(ctx, http.MethodPost, "/edges", body, &out); err != nil {
		return fmt.Errorf("register edge: %w", err)
	}
	if len(out) == 0 {
		return fmt.Errorf("register edge: empty response")
	}
	return nil
}

// ListTwins lists twins in an environment. Both plain arrays and
// paginated {"results": [...], "next": ...} responses are accepted; next
// links are followed. Items that do not parse as twins are logged and
// skipped.
func (c *Client) ListTwins(ctx context.Context, environmentUUID string) ([]twin.Twin, error) {
	path := "/twins?" + url.Values{"environment_uuid": {environmentUUID}}.Encode()

	var (
		twins []twin.Twin
		index int
	)
	for page := 0; path != ""; page++ {
		if page == maxListPages {
			c.log.Warn("Twin listing truncated.", "pages", page, "twins", len(twins))
			break
		}
		var raw json.RawMessage
		if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
			return nil, fmt.Errorf("list twins: %w", err)
		}
		docs, next, err := decodeList(raw)
		if err != nil {
			return nil, fmt.Errorf("list twins: %w", err)
		}
		for _, doc := range docs {
			t, err := twin.ParseTwin(doc)
			if err != nil {
				c.log.Warn("Skipping malformed twin in listing.", "index", index, "err", err)
			} else {
				twins = append(twins, t)
			}
			index++
		}

		path, err = c.nextPath(next)
		if err != nil {
			c.log.Warn("Not following twin page link.", "next", next, "err", err)
			break
		}
	}
	return twins, nil
}

// nextPath converts a pagination link into a path relative to the API
// prefix. Links to another origin are refused so the token stays with
// the configured API.
func (c *Client) nextPath(next string) (string, error) {
	if next == "" {
		return "", nil
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(next)
	if err != nil {
		return "", err
	}
	if u.IsAbs() && (u.Scheme != base.Scheme || u.Host != base.Host) {
		return "", fmt.Errorf("link leaves %s", base.Host)
	}
	rest, ok := strings.CutPrefix(u.Path, base.Path+apiPrefix)
	if !ok || rest == "" {
		return "", fmt.Errorf("link outside %s", apiPrefix)
	}
	if u.RawQuery != "" {
		rest += "?" + u.RawQuery
	}
	return rest, nil
}

// GetAsset fetches an asset by uuid.
func (c *Client) GetAsset(ctx context.Context, assetUUID string) (twin.Asset, error) {
	var doc map[string]any
	if err := c.do(ctx, http.MethodGet, "/assets/"+url.PathEscape(assetUUID), nil, &doc); err != nil {
		return twin.Asset{}, fmt.Errorf("get asset: %w", err)
	}
	a, err := twin.ParseAsset(doc)
	if err != nil {
		return twin.Asset{}, fmt.Errorf("get asset %s: %w", assetUUID, err)
	}
	return a, nil
}

// CreateAlert raises an alert.
func (c *Client) CreateAlert(ctx context.Context, alert Alert) error {
	if err := c.do(ctx, http.MethodPost, "/alerts", alert, nil); err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			Method:     method,
			Path:       apiPrefix + path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeJSON keeps numbers as json.Number so integers beyond float64
// precision survive into snapshots unchanged.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func decodeList(raw json.RawMessage) ([]map[string]any, string, error) {
	var list []map[string]any
	if err := decodeJSON(raw, &list); err == nil {
		return list, "", nil
	}
	var page struct {
		Results []map[string]any `json:"results"`
		Next    *string          `json:"next"`
	}
	if err := decodeJSON(raw, &page); err != nil {
		return nil, "", fmt.Errorf("decode list: %w", err)
	}
	var next string
	if page.Next != nil {
		next = *page.Next
	}
	return page.Results, next, nil
}
