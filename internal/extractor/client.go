package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/KeremKalyoncu/grabkit/internal/pool"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (iPad; CPU OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1",
}

// RandomUserAgent returns one of the rotated desktop/mobile browser agents
func RandomUserAgent() string {
	return userAgents[rand.Intn(len(userAgents))]
}

// StatusError is returned when an upstream answers with a non-2xx status
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// ClientConfig configures the upstream HTTP client
type ClientConfig struct {
	// Timeout bounds every single call, body read included
	Timeout time.Duration
	// MaxBodyBytes caps how much of a page is read
	MaxBodyBytes int64
	// Overrides maps an upstream host to a replacement base URL
	Overrides map[string]string
	Transport http.RoundTripper
}

// Client performs bounded requests against third-party scraping targets
type Client struct {
	http       *http.Client
	noRedirect *http.Client
	timeout    time.Duration
	maxBody    int64
	overrides  map[string]string
}

// NewClient creates an upstream client
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 8 << 20
	}
	transport := cfg.Transport
	if transport == nil {
		transport = pool.NewTransport()
	}

	return &Client{
		http:       pool.NewHTTPClient(transport, 0),
		noRedirect: pool.NewNoRedirectClient(transport, 0),
		timeout:    cfg.Timeout,
		maxBody:    cfg.MaxBodyBytes,
		overrides:  cfg.Overrides,
	}
}

func (c *Client) rewrite(rawURL string) string {
	if len(c.overrides) == 0 {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	base, ok := c.overrides[u.Host]
	if !ok {
		return rawURL
	}
	b, err := url.Parse(base)
	if err != nil {
		return rawURL
	}
	u.Scheme = b.Scheme
	u.Host = b.Host
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader, header http.Header) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.rewrite(rawURL), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", RandomUserAgent())
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range header {
		req.Header[k] = v
	}
	return req, nil
}

// fetch sends the request and reads the body inside the per-call deadline
func (c *Client) fetch(ctx context.Context, method, rawURL string, body io.Reader, header http.Header) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, method, rawURL, body, header)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	return io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
}

// GetText fetches a page as a string
func (c *Client) GetText(ctx context.Context, rawURL string, header http.Header) (string, error) {
	b, err := c.fetch(ctx, http.MethodGet, rawURL, nil, header)
	return string(b), err
}

// GetJSON fetches and decodes a JSON document
func (c *Client) GetJSON(ctx context.Context, rawURL string, header http.Header, v interface{}) error {
	h := cloneHeader(header)
	if h.Get("Accept") == "" {
		h.Set("Accept", "application/json")
	}
	b, err := c.fetch(ctx, http.MethodGet, rawURL, nil, h)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("invalid JSON response: %w", err)
	}
	return nil
}

// PostForm submits a urlencoded form and returns the body as a string
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, header http.Header) (string, error) {
	h := cloneHeader(header)
	h.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	b, err := c.fetch(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()), h)
	return string(b), err
}

// PostFormJSON submits a urlencoded form and decodes a JSON answer
func (c *Client) PostFormJSON(ctx context.Context, rawURL string, form url.Values, header http.Header, v interface{}) error {
	h := cloneHeader(header)
	h.Set("Accept", "application/json, text/plain, */*")
	body, err := c.PostForm(ctx, rawURL, form, h)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("invalid JSON response: %w", err)
	}
	return nil
}

// Location performs one request without following redirects and returns the
// absolute redirect target, or "" when the response is not a redirect
func (c *Client) Location(ctx context.Context, rawURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, rawURL, nil, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.noRedirect.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	loc := resp.Header.Get("Location")
	if resp.StatusCode < 300 || resp.StatusCode > 399 || loc == "" {
		return "", nil
	}
	target, err := resp.Request.URL.Parse(loc)
	if err != nil {
		return "", err
	}
	return target.String(), nil
}

func cloneHeader(h http.Header) http.Header {
	if h == nil {
		return http.Header{}
	}
	return h.Clone()
}
