package handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/KeremKalyoncu/grabkit/internal/errors"
	"github.com/KeremKalyoncu/grabkit/internal/extractor"
	"github.com/KeremKalyoncu/grabkit/internal/metrics"
	"github.com/KeremKalyoncu/grabkit/internal/middleware"
)

const (
	maxFilenameLength = 120
	maxProxyRedirects = 10
)

var errHostNotAllowed = errors.New("URL host is not allowed")

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileHandler relays third-party media through this server so browsers
// can download it without CORS restrictions
type FileHandler struct {
	client        *http.Client
	timeout       time.Duration
	publicBaseURL string
	metrics       *metrics.Metrics
	logger        *zap.Logger

	allowPrivate bool
	lookup       func(ctx context.Context, host string) ([]net.IPAddr, error)
}

// NewFileHandler creates a file proxy handler
func NewFileHandler(client *http.Client, timeout time.Duration, publicBaseURL string, m *metrics.Metrics, logger *zap.Logger) *FileHandler {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = http.DefaultClient
	}
	h := &FileHandler{
		timeout:       timeout,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		metrics:       m,
		logger:        logger,
		lookup:        net.DefaultResolver.LookupIPAddr,
	}

	// every redirect hop is checked like the first request
	guarded := *client
	guarded.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxProxyRedirects {
			return fmt.Errorf("stopped after %d redirects", maxProxyRedirects)
		}
		return h.checkHost(req.Context(), req.URL.Hostname())
	}
	h.client = &guarded
	return h
}

// WithPrivateHosts lets the proxy reach loopback and private addresses.
// Only local development and tests should enable it.
func (h *FileHandler) WithPrivateHosts(allow bool) *FileHandler {
	h.allowPrivate = allow
	return h
}

// checkHost rejects hosts that resolve to loopback, private, link-local or
// unspecified addresses
func (h *FileHandler) checkHost(ctx context.Context, host string) error {
	if h.allowPrivate {
		return nil
	}
	if host == "" {
		return errHostNotAllowed
	}

	var ips []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	} else {
		addrs, err := h.lookup(ctx, host)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", host, err)
		}
		for _, a := range addrs {
			ips = append(ips, a.IP)
		}
	}
	if len(ips) == 0 {
		return errHostNotAllowed
	}

	for _, ip := range ips {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
			ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsInterfaceLocalMulticast() {
			return errHostNotAllowed
		}
	}
	return nil
}

// Download streams ?url= to the client as an attachment. GET /file/download
func (h *FileHandler) Download(c *fiber.Ctx) error {
	rawURL := strings.TrimSpace(c.Query("url"))
	if rawURL == "" {
		return apperrors.ErrInvalidRequest.WithMessage("URL parameter is required")
	}
	if !middleware.IsHTTPURL(rawURL) {
		return apperrors.ErrInvalidURL.WithMessage("Invalid URL format")
	}

	filename := sanitizeFilename(c.Query("filename"))
	if filename == "" {
		filename = fmt.Sprintf("video_%d.mp4", time.Now().Unix())
	}

	// detached from the request; the stream writer outlives the handler
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return apperrors.ErrInvalidURL.WithMessage("Invalid URL format")
	}
	if err := h.checkHost(ctx, req.URL.Hostname()); err != nil {
		cancel()
		h.logger.Warn("Proxy target rejected", zap.String("host", req.URL.Host), zap.Error(err))
		return apperrors.ErrInvalidURL.WithMessage("URL host is not allowed")
	}
	req.Header.Set("User-Agent", extractor.RandomUserAgent())
	req.Header.Set("Referer", "https://www.tiktok.com/")
	req.Header.Set("Accept", "*/*")

	resp, err := h.client.Do(req)
	if err != nil {
		cancel()
		if errors.Is(err, errHostNotAllowed) {
			h.logger.Warn("Proxy redirect rejected", zap.String("host", req.URL.Host))
			return apperrors.ErrInvalidURL.WithMessage("URL host is not allowed")
		}
		h.logger.Warn("Proxy fetch failed", zap.String("host", req.URL.Host), zap.Error(err))
		return apperrors.ErrUpstreamUnavailable.WithMessage("Failed to fetch media").WithCause(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		cancel()
		switch resp.StatusCode {
		case http.StatusForbidden, http.StatusGone:
			return apperrors.ErrURLExpired
		case http.StatusNotFound:
			return apperrors.ErrNotFound.WithMessage("Media not found")
		}
		return apperrors.ErrUpstreamUnavailable.WithMessage("Upstream returned status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")

	host := req.URL.Host
	middleware.StreamReader(c, resp.Body, cancel, func(written int64, err error) {
		if h.metrics != nil && written > 0 {
			h.metrics.ProxiedBytes.Add(uint64(written))
		}
		if err != nil {
			h.logger.Warn("Proxy stream ended early",
				zap.String("host", host),
				zap.Int64("written", written),
				zap.Error(err),
			)
		}
	})
	return nil
}

type directRequest struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// Direct returns the proxy link for a media URL. POST /file/direct
func (h *FileHandler) Direct(c *fiber.Ctx) error {
	var req directRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.ErrInvalidRequest.WithCause(err)
	}
	if err := middleware.ValidateMediaURL(req.URL); err != nil {
		return err
	}

	filename := sanitizeFilename(req.Filename)
	if filename == "" {
		filename = fmt.Sprintf("video_%d.mp4", time.Now().Unix())
	}

	q := url.Values{}
	q.Set("url", strings.TrimSpace(req.URL))
	q.Set("filename", filename)

	return c.JSON(fiber.Map{
		"success":  true,
		"proxyUrl": h.publicBaseURL + "/file/download?" + q.Encode(),
		"filename": filename,
	})
}

// sanitizeFilename keeps a header-safe base name
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return ""
	}
	if len(name) > maxFilenameLength {
		name = name[len(name)-maxFilenameLength:]
	}
	if !strings.Contains(name, ".") {
		name += ".mp4"
	}
	return name
}
