// Package remote implements store.Executor over the statement-over-HTTP protocol
// spoken by hosted SQLite engines (libsql / Turso style endpoints).
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/Zerofisher/megatable/pkg/store"
)

const (
	DefaultTimeout  = 30 * time.Second
	MaxResponseBody = 64 << 20 // 64MB
	maxErrorBody    = 512
)

// Config holds the settings needed to reach the engine.
type Config struct {
	// URL of the engine. libsql:// and ws(s):// schemes are rewritten to http(s)://.
	URL string

	// Token is sent as a bearer credential.
	Token string

	// Timeout per round-trip. Defaults to DefaultTimeout if <= 0.
	Timeout time.Duration

	// RateLimit caps statements per second. 0 means unlimited.
	RateLimit float64

	// HTTPClient overrides the default client (Timeout is then ignored).
	HTTPClient *http.Client
}

// Client is the HTTP-facing row store gateway.
// It is safe for concurrent use and reuses one http.Client for its lifetime.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	limiter  *rate.Limiter
}

// New creates a new Client. It fails with *store.ConfigurationError when the
// endpoint or the credential is missing.
func New(cfg Config) (*Client, error) {
	var missing []string
	if cfg.URL == "" {
		missing = append(missing, "database url")
	}
	if cfg.Token == "" {
		missing = append(missing, "auth token")
	}
	if len(missing) > 0 {
		return nil, &store.ConfigurationError{Missing: missing}
	}

	endpoint, err := NormalizeURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	c := &Client{
		endpoint: endpoint,
		token:    cfg.Token,
		http:     httpClient,
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c, nil
}

// NormalizeURL rewrites native wire schemes to the HTTP(S) scheme the engine also
// accepts, so the gateway only ever needs plain stateless HTTP requests.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse database url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "libsql", "wss", "https":
		u.Scheme = "https"
	case "ws", "http":
		u.Scheme = "http"
	default:
		return "", fmt.Errorf("unsupported database url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("database url %q has no host", raw)
	}
	return u.String(), nil
}

// Endpoint returns the normalized endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Execute sends one statement and returns its rows keyed by column name.
func (c *Client) Execute(ctx context.Context, sql string, args ...any) (*store.Result, error) {
	return c.execute(ctx, sql, args)
}

func (c *Client) execute(ctx context.Context, sql string, args []any) (*store.Result, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	if args == nil {
		args = []any{}
	}
	body, err := json.Marshal(store.Request{
		Statements: []store.Statement{{Q: sql, Params: args}},
	})
	if err != nil {
		return nil, fmt.Errorf("encode statement: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &store.TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &store.TransportError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(text)),
		}
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, MaxResponseBody))
	dec.UseNumber()
	var results []store.StatementResult
	if err := dec.Decode(&results); err != nil {
		return nil, &store.TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	if len(results) == 0 {
		return nil, &store.TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("empty response"),
		}
	}

	first := results[0]
	if first.Error != nil {
		return nil, &store.RemoteQueryError{Message: first.Error.Message}
	}
	if first.Results == nil {
		return &store.Result{}, nil
	}
	return first.Results.Result(), nil
}
