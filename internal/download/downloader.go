package download

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/purell"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent mimics a desktop browser; some CDNs reject Go's default agent.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Downloader fetches images and stores them on disk.
type Downloader struct {
	client    *resty.Client
	base      *url.URL
	limiter   *rate.Limiter
	logger    *slog.Logger
	timeout   time.Duration
	userAgent string
	proxyAddr string
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(dl *Downloader) {
		if d > 0 {
			dl.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(dl *Downloader) {
		if ua != "" {
			dl.userAgent = ua
		}
	}
}

// WithRateLimit allows at most perSecond requests per second.
// A non-positive value disables throttling.
func WithRateLimit(perSecond float64) Option {
	return func(dl *Downloader) {
		if perSecond > 0 {
			dl.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithProxy routes requests through the SOCKS5 proxy at addr ("host:port").
func WithProxy(addr string) Option {
	return func(dl *Downloader) {
		dl.proxyAddr = addr
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(dl *Downloader) {
		if logger != nil {
			dl.logger = logger
		}
	}
}

// New creates a Downloader that resolves relative URLs against baseURL.
func New(baseURL string, opts ...Option) (*Downloader, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	dl := &Downloader{
		base:      base,
		logger:    slog.Default(),
		timeout:   DefaultTimeout,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(dl)
	}

	client := resty.New()
	client.SetTimeout(dl.timeout)
	client.SetHeader("User-Agent", dl.userAgent)
	client.SetHeader("Accept", "image/avif,image/webp,image/*,*/*;q=0.8")

	if dl.proxyAddr != "" {
		transport, err := socksTransport(dl.proxyAddr)
		if err != nil {
			return nil, err
		}
		client.SetTransport(transport)
	}
	dl.client = client

	return dl, nil
}

// Resolve turns a possibly relative image URL into a normalized absolute one.
func (d *Downloader) Resolve(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", ErrEmptyURL
	}
	ref, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid image url %q: %w", rawURL, err)
	}
	return purell.NormalizeURL(d.base.ResolveReference(ref), purell.FlagsSafe), nil
}

// Download fetches rawURL and writes the body to target, creating parent
// directories. It returns the number of bytes written.
func (d *Downloader) Download(ctx context.Context, rawURL, target string) (int64, error) {
	u, err := d.Resolve(rawURL)
	if err != nil {
		return 0, err
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}

	resp, err := d.client.R().SetContext(ctx).Get(u)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch %s: %w", u, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusNotFound:
		return 0, fmt.Errorf("%s: %w", u, ErrNotFound)
	case code < 200 || code > 299:
		return 0, fmt.Errorf("%s: %w: %d", u, ErrUnexpectedStatus, code)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return 0, fmt.Errorf("failed to create image directory: %w", err)
	}
	body := resp.Body()
	if err := os.WriteFile(target, body, 0o600); err != nil {
		return 0, fmt.Errorf("failed to write image: %w", err)
	}

	d.logger.Debug("image downloaded", "url", u, "path", target, "bytes", len(body))
	return int64(len(body)), nil
}

// socksTransport builds an HTTP transport dialing through a SOCKS5 proxy.
func socksTransport(addr string) (*http.Transport, error) {
	if !isValidProxyAddress(addr) {
		return nil, ErrInvalidProxyAddress
	}

	dialer, err := proxy.SOCKS5("tcp", addr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	transport := &http.Transport{
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
	}
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		transport.DialContext = cd.DialContext
	} else {
		transport.DialContext = func(_ context.Context, network, address string) (net.Conn, error) {
			return dialer.Dial(network, address)
		}
	}
	return transport, nil
}

// isValidProxyAddress checks for "host:port" with a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" || strings.Contains(host, "/") {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}
