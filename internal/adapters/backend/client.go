// Package backend is the REST client for the console's backend API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/target/mmk-console/internal/errors"
	"github.com/target/mmk-console/internal/observability/metrics"
	"github.com/target/mmk-console/internal/ports"
	"golang.org/x/net/publicsuffix"
)

// DefaultBaseURL is used when Config.BaseURL is empty.
const DefaultBaseURL = "http://localhost:5000/api"

const maxErrorBody = 64 << 10

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Transport is the base RoundTripper wrapped by the Authenticator. Defaults to http.DefaultTransport.
	Transport http.RoundTripper
	// CookieJar keeps backend cookies between calls. Only enable it for
	// single-user processes such as the CLI.
	CookieJar bool
	Logger    *slog.Logger
	Metrics   *metrics.Recorder
}

// Client talks JSON to the backend. All methods authenticate with the token
// source found on ctx (see ports.WithTokenSource) or the client's default source.
type Client struct {
	base    *url.URL
	http    *http.Client
	auth    *Authenticator
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// NewClient validates cfg and builds a Client without a default token source.
func NewClient(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q must be http or https", raw)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	auth := &Authenticator{Base: cfg.Transport}
	hc := &http.Client{Transport: auth, Timeout: cfg.Timeout}
	if cfg.CookieJar {
		jar, jerr := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if jerr != nil {
			return nil, fmt.Errorf("cookie jar: %w", jerr)
		}
		hc.Jar = jar
	}

	return &Client{
		base:    base,
		http:    hc,
		auth:    auth,
		logger:  logger.With("component", "backend"),
		metrics: cfg.Metrics,
	}, nil
}

// WithTokenSource returns a Client sharing configuration whose default token
// source is ts.
func (c *Client) WithTokenSource(ts ports.TokenSource) *Client {
	auth := &Authenticator{Source: ts, Base: c.auth.Base}
	hc := *c.http
	hc.Transport = auth
	return &Client{base: c.base, http: &hc, auth: auth, logger: c.logger, metrics: c.metrics}
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string { return c.base.String() }

func (c *Client) endpoint(path string) string {
	return c.base.String() + "/" + strings.TrimLeft(path, "/")
}

// do sends a JSON request and decodes a 2xx body into out (if non-nil).
// Non-2xx responses are mapped with apperrors.FromStatus.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.BackendCall(method, 0, time.Since(start))
		c.logger.DebugContext(ctx, "backend request failed", "method", method, "path", path, "error", err)
		return apperrors.MapTransportError(err)
	}
	defer resp.Body.Close()
	c.metrics.BackendCall(method, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(ctx, resp, method, path)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.Wrapf(err, apperrors.ErrCodeTransport, "Unexpected response from backend")
	}
	return nil
}

func (c *Client) statusError(ctx context.Context, resp *http.Response, method, path string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var eb errorBody
	_ = json.Unmarshal(raw, &eb)

	c.logger.DebugContext(ctx, "backend returned error",
		"method", method, "path", path, "status", resp.StatusCode, "message", eb.text())
	return apperrors.FromStatus(resp.StatusCode, eb.text())
}
