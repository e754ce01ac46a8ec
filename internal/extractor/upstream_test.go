package extractor

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// fakeUpstreams starts one test server per host and returns a client whose
// requests to those hosts land on the servers
func fakeUpstreams(t *testing.T, hosts map[string]http.Handler) *Client {
	t.Helper()

	overrides := make(map[string]string, len(hosts))
	for host, h := range hosts {
		srv := httptest.NewServer(h)
		t.Cleanup(srv.Close)
		overrides[host] = srv.URL
	}

	return NewClient(ClientConfig{
		Timeout:   2 * time.Second,
		Overrides: overrides,
	})
}

func status(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	})
}

func body(contentType, payload string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(payload))
	})
}
