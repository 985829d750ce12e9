package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	xproxy "golang.org/x/net/proxy"
)

// ErrNoProxies is returned when the pool is empty.
var ErrNoProxies = errors.New("no working proxies available")

const (
	defaultMaxRetries = 5
	defaultBaseDelay  = 2 * time.Second
	defaultMaxDelay   = 30 * time.Second
)

// RotatingTransport is an http.RoundTripper that sends every request through
// the best proxy of a Pool, retrying on proxy failures with exponential backoff.
type RotatingTransport struct {
	pool       *Pool
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	logger     *slog.Logger

	mu         sync.Mutex
	transports map[string]http.RoundTripper
}

// NewRotatingTransport wires a pool; maxRetries below 1 uses 5.
func NewRotatingTransport(pool *Pool, maxRetries int, logger *slog.Logger) *RotatingTransport {
	if maxRetries < 1 {
		maxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RotatingTransport{
		pool:       pool,
		maxRetries: maxRetries,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
		logger:     logger.With("component", "proxy"),
		transports: make(map[string]http.RoundTripper),
	}
}

// IsProxyFailure reports whether status indicates a blocked or overloaded proxy.
func IsProxyFailure(status int) bool {
	switch status {
	case http.StatusForbidden, http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func accepted(status int) bool {
	return status < http.StatusBadRequest || status == http.StatusNotFound
}

// RoundTrip tries up to maxRetries proxies. A 404 counts as success since it
// says nothing about the proxy. When all attempts return a failing status the
// last response is handed back so callers can inspect it.
func (t *RotatingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	var (
		lastResp *http.Response
		lastErr  error
	)

	for attempt := 1; attempt <= t.maxRetries; attempt++ {
		proxyAddr, ok := t.pool.Best()
		if !ok {
			return nil, ErrNoProxies
		}
		rt, err := t.transportFor(proxyAddr)
		if err != nil {
			t.pool.MarkFailure(proxyAddr)
			lastErr = err
			continue
		}

		attemptReq, err := cloneRequest(req)
		if err != nil {
			return nil, err
		}
		resp, err := rt.RoundTrip(attemptReq)
		switch {
		case err != nil:
			t.pool.MarkFailure(proxyAddr)
			t.logger.Debug("proxy request failed", "proxy", proxyAddr, "attempt", attempt, "error", err)
			lastErr = err
		case accepted(resp.StatusCode):
			t.pool.MarkSuccess(proxyAddr)
			if lastResp != nil {
				drain(lastResp)
			}
			return resp, nil
		default:
			t.pool.MarkFailure(proxyAddr)
			t.logger.Debug("proxy returned failing status", "proxy", proxyAddr, "attempt", attempt,
				"status", resp.StatusCode, "blocked", IsProxyFailure(resp.StatusCode))
			if lastResp != nil {
				drain(lastResp)
			}
			lastResp = resp
		}

		if attempt == t.maxRetries || req.Body != nil && req.GetBody == nil {
			break
		}
		if err := sleepContext(ctx, t.backoff(attempt)); err != nil {
			if lastResp != nil {
				drain(lastResp)
			}
			return nil, err
		}
	}

	t.logger.Warn("all proxy retries exhausted", "url", req.URL.Redacted(), "retries", t.maxRetries)
	if lastResp != nil {
		return lastResp, nil
	}
	if lastErr == nil {
		lastErr = ErrNoProxies
	}
	return nil, fmt.Errorf("proxy retries exhausted: %w", lastErr)
}

// backoff is base*2^(attempt-1) capped at maxDelay.
func (t *RotatingTransport) backoff(attempt int) time.Duration {
	d := t.baseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= t.maxDelay {
			return t.maxDelay
		}
	}
	if d > t.maxDelay {
		return t.maxDelay
	}
	return d
}

func (t *RotatingTransport) transportFor(proxyAddr string) (http.RoundTripper, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rt, ok := t.transports[proxyAddr]; ok {
		return rt, nil
	}
	rt, err := NewTransport(proxyAddr)
	if err != nil {
		return nil, err
	}
	t.transports[proxyAddr] = rt
	return rt, nil
}

// NewTransport builds a transport for one proxy. Addresses without scheme
// are HTTP proxies; socks5:// and socks5h:// use a SOCKS5 dialer.
func NewTransport(proxyAddr string) (*http.Transport, error) {
	u, err := ParseProxyURL(proxyAddr)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "socks5", "socks5h":
		var auth *xproxy.Auth
		if u.User != nil {
			password, _ := u.User.Password()
			auth = &xproxy.Auth{User: u.User.Username(), Password: password}
		}
		return NewSOCKS5Transport(u.Host, auth)
	case "http", "https":
		return &http.Transport{
			Proxy:               http.ProxyURL(u),
			DialContext:         (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			IdleConnTimeout:     30 * time.Second,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
}

// NewSOCKS5Transport returns a transport dialing through the SOCKS5 server at addr.
func NewSOCKS5Transport(addr string, auth *xproxy.Auth) (*http.Transport, error) {
	dialer, err := xproxy.SOCKS5("tcp", addr, auth, xproxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("create socks5 dialer for %s: %w", addr, err)
	}
	contextDialer, ok := dialer.(xproxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("socks5 dialer for %s does not support contexts", addr)
	}
	return &http.Transport{
		DialContext:         contextDialer.DialContext,
		TLSHandshakeTimeout: 30 * time.Second,
		IdleConnTimeout:     90 * time.Second,
	}, nil
}

// ParseProxyURL accepts host:port, scheme://host:port and URLs with credentials.
func ParseProxyURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse proxy %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("proxy %q has no host", raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	return u, nil
}

func cloneRequest(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		clone.Body = body
	}
	return clone, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
