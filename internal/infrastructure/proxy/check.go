package proxy

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// LoadFile reads proxies, one per line. Blank lines and lines starting with
// # are skipped.
func LoadFile(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // proxy list path is chosen by the operator
	if err != nil {
		return nil, fmt.Errorf("open proxy list: %w", err)
	}
	defer f.Close()

	var proxies []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		proxies = append(proxies, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read proxy list: %w", err)
	}
	return proxies, nil
}

// Checker probes proxies concurrently against a test URL.
type Checker struct {
	TestURL string
	Workers int
	Timeout time.Duration
	Logger  *slog.Logger
}

// Check returns the proxies that answered the test URL with 200, in input order.
func (c Checker) Check(ctx context.Context, proxies []string) ([]string, error) {
	workers := c.Workers
	if workers <= 0 {
		workers = 20
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	working := make([]bool, len(proxies))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range proxies {
		g.Go(func() error {
			working[i] = probe(gctx, p, c.TestURL, timeout)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(proxies))
	for i, ok := range working {
		if ok {
			out = append(out, proxies[i])
		}
	}
	logger.Info("proxy check complete", "component", "proxy", "tested", len(proxies), "working", len(out))
	return out, nil
}

func probe(ctx context.Context, proxyAddr, testURL string, timeout time.Duration) bool {
	transport, err := NewTransport(proxyAddr)
	if err != nil {
		return false
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{Transport: transport, Timeout: timeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, testURL, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode == http.StatusOK
}
