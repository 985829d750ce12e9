package proxy

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"OnionHarvester/internal/logging"
)

func TestPoolMarksFailedAndResets(t *testing.T) {
	t.Parallel()

	pool := NewPool([]string{"a:1", "b:2", "a:1", " "})
	if pool.Len() != 2 {
		t.Fatalf("expected 2 proxies, got %d", pool.Len())
	}

	for i := 0; i < 10; i++ {
		pool.MarkFailure("a:1")
	}
	if pool.Snapshot().Failed != 0 {
		t.Fatalf("ten requests must not be enough to mark a proxy failed")
	}
	pool.MarkFailure("a:1")
	stats := pool.Snapshot()
	if stats.Failed != 1 || !stats.Details[0].Failed || stats.Working != 1 {
		t.Fatalf("expected a:1 to be failed, got %+v", stats)
	}

	for i := 0; i < 11; i++ {
		pool.MarkFailure("b:2")
	}
	if pool.Snapshot().Failed != 2 {
		t.Fatalf("expected both proxies failed")
	}
	if _, ok := pool.Best(); !ok {
		t.Fatalf("failed set must reset when every proxy failed")
	}
	if pool.Snapshot().Failed != 0 {
		t.Fatalf("failed set was not cleared")
	}

	pool.MarkSuccess("a:1")
	if pool.Snapshot().Details[0].Success != 1 {
		t.Fatalf("success not recorded")
	}
}

func TestPoolBestPrefersRestedHighSuccess(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 10, 12, 12, 0, 0, 0, time.UTC)
	pool := NewPool([]string{"busy:1", "rested:2"})
	pool.now = func() time.Time { return now }

	pool.MarkSuccess("busy:1")
	pool.MarkSuccess("busy:1")

	pool.now = func() time.Time { return now.Add(-10 * time.Hour) }
	pool.MarkSuccess("rested:2")
	pool.MarkFailure("rested:2")
	pool.now = func() time.Time { return now }

	best, ok := pool.Best()
	if !ok || best != "rested:2" {
		t.Fatalf("expected rested proxy, got %q", best)
	}

	fresh := NewPool([]string{"used:1", "new:2"})
	fresh.MarkFailure("used:1")
	if best, _ := fresh.Best(); best != "new:2" {
		t.Fatalf("untried proxy should win over a failing one, got %q", best)
	}
}

func TestPoolEmpty(t *testing.T) {
	t.Parallel()

	if _, ok := NewPool(nil).Best(); ok {
		t.Fatalf("empty pool must not return a proxy")
	}
}

func newProxyServer(t *testing.T, status int, hits *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte("via " + r.URL.Host))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRotatingTransportRetriesNextProxy(t *testing.T) {
	t.Parallel()

	var badHits, goodHits int32
	bad := newProxyServer(t, http.StatusTooManyRequests, &badHits)
	good := newProxyServer(t, http.StatusOK, &goodHits)

	pool := NewPool([]string{bad.URL, good.URL})
	rt := NewRotatingTransport(pool, 3, logging.Discard())
	rt.baseDelay = time.Millisecond

	client := &http.Client{Transport: rt}
	resp, err := client.Get("http://paste.test/raw/abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK || string(body) != "via paste.test" {
		t.Fatalf("unexpected response %d %q", resp.StatusCode, body)
	}
	if atomic.LoadInt32(&badHits) != 1 || atomic.LoadInt32(&goodHits) != 1 {
		t.Fatalf("unexpected hits bad=%d good=%d", badHits, goodHits)
	}
	stats := pool.Snapshot()
	if stats.Details[0].Failures != 1 || stats.Details[1].Success != 1 {
		t.Fatalf("unexpected stats %+v", stats.Details)
	}
}

func TestRotatingTransportNotFoundIsSuccess(t *testing.T) {
	t.Parallel()

	var hits int32
	server := newProxyServer(t, http.StatusNotFound, &hits)
	pool := NewPool([]string{server.URL})
	rt := NewRotatingTransport(pool, 5, logging.Discard())
	rt.baseDelay = time.Millisecond

	resp, err := (&http.Client{Transport: rt}).Get("http://paste.test/raw/missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound || hits != 1 {
		t.Fatalf("404 must not be retried: status=%d hits=%d", resp.StatusCode, hits)
	}
	if pool.Snapshot().Details[0].Success != 1 {
		t.Fatalf("404 must count as proxy success")
	}
}

func TestRotatingTransportExhausted(t *testing.T) {
	t.Parallel()

	var hits int32
	server := newProxyServer(t, http.StatusServiceUnavailable, &hits)
	rt := NewRotatingTransport(NewPool([]string{server.URL}), 3, logging.Discard())
	rt.baseDelay = time.Millisecond

	resp, err := (&http.Client{Transport: rt}).Get("http://paste.test/raw/x")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable || hits != 3 {
		t.Fatalf("expected last 503 after 3 attempts, got %d after %d", resp.StatusCode, hits)
	}

	empty := NewRotatingTransport(NewPool(nil), 3, logging.Discard())
	if _, err := (&http.Client{Transport: empty}).Get("http://paste.test/raw/x"); err == nil {
		t.Fatalf("expected error without proxies")
	}
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	rt := NewRotatingTransport(NewPool(nil), 0, logging.Discard())
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second, 30 * time.Second}
	for i, w := range want {
		if got := rt.backoff(i + 1); got != w {
			t.Errorf("backoff(%d) = %s, want %s", i+1, got, w)
		}
	}
	if rt.maxRetries != defaultMaxRetries {
		t.Fatalf("expected default retries, got %d", rt.maxRetries)
	}
}

func TestParseProxyURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		scheme string
	}{
		{"1.2.3.4:8080", "http"},
		{"socks5://user:pw@10.0.0.1:1080", "socks5"},
		{"HTTPS://proxy.example:443", "https"},
	}
	for _, tt := range tests {
		u, err := ParseProxyURL(tt.in)
		if err != nil {
			t.Fatalf("parse %q: %v", tt.in, err)
		}
		if u.Scheme != tt.scheme {
			t.Errorf("%q: scheme %s, want %s", tt.in, u.Scheme, tt.scheme)
		}
	}
	if _, err := NewTransport("ftp://1.2.3.4:21"); err == nil {
		t.Fatalf("expected unsupported scheme error")
	}
	if _, err := NewTransport("socks5://127.0.0.1:9050"); err != nil {
		t.Fatalf("socks5 transport: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "proxies.txt")
	content := "# list\n1.2.3.4:8080\n\n  socks5://5.6.7.8:1080  \n#5.5.5.5:1\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[0] != "1.2.3.4:8080" || got[1] != "socks5://5.6.7.8:1080" {
		t.Fatalf("unexpected proxies %v", got)
	}
}

func TestCheckerKeepsWorkingProxies(t *testing.T) {
	t.Parallel()

	var okHits, badHits int32
	ok := newProxyServer(t, http.StatusOK, &okHits)
	bad := newProxyServer(t, http.StatusForbidden, &badHits)

	checker := Checker{TestURL: "http://check.test/ip", Workers: 2, Timeout: 5 * time.Second, Logger: logging.Discard()}
	got, err := checker.Check(context.Background(), []string{bad.URL, ok.URL, "127.0.0.1:1"})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(got) != 1 || got[0] != ok.URL {
		t.Fatalf("unexpected working proxies %v", got)
	}
}
