package pool

import (
	"net"
	"net/http"
	"time"
)

// NewTransport returns a pooled transport shared by all upstream scrapers.
// Per-call deadlines come from the request context, not the transport.
func NewTransport() *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ForceAttemptHTTP2:     true,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// NewHTTPClient builds a client on transport with an overall timeout.
// A zero timeout leaves the bound to the caller's context (used for streaming).
func NewHTTPClient(transport http.RoundTripper, timeout time.Duration) *http.Client {
	return &http.Client{Transport: transport, Timeout: timeout}
}

// NewNoRedirectClient returns a client that hands back 3xx responses untouched
func NewNoRedirectClient(transport http.RoundTripper, timeout time.Duration) *http.Client {
	c := NewHTTPClient(transport, timeout)
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c
}
