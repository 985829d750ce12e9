// Package pastebin lists and downloads pastes from a pastebin-style site.
package pastebin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"OnionHarvester/internal/domain"
)

const maxBodyBytes = 8 << 20

// FetchKind classifies a failed fetch.
type FetchKind string

const (
	KindRateLimited FetchKind = "rate_limited"
	KindNotFound    FetchKind = "not_found"
	KindTransient   FetchKind = "transient"
)

// FetchError describes a failed request for one paste or listing page.
type FetchError struct {
	Op     string
	Key    string
	Kind   FetchKind
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Op, e.Key, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a FetchError of the given kind.
func IsKind(err error, kind FetchKind) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == kind
}

func kindForStatus(status int) FetchKind {
	switch status {
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusNotFound, http.StatusGone:
		return KindNotFound
	default:
		return KindTransient
	}
}

// Client issues requests against the site with a fixed User-Agent.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
}

// NewClient wires an HTTP client; a nil client gets a 20s timeout.
func NewClient(httpClient *http.Client, baseURL, userAgent string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{
		http:      httpClient,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		userAgent: userAgent,
	}
}

func (c *Client) get(ctx context.Context, op, key, pageURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &FetchError{Op: op, Key: key, Kind: KindTransient, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &FetchError{Op: op, Key: key, Kind: kindForStatus(resp.StatusCode), Status: resp.StatusCode}
	}
	return resp, nil
}

func (c *Client) fetchDocument(ctx context.Context, op, key, pageURL string) (*goquery.Document, error) {
	resp, err := c.get(ctx, op, key, pageURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", domain.ErrParse, op, key, err)
	}
	return doc, nil
}

func (c *Client) fetchText(ctx context.Context, op, key, pageURL string) (string, error) {
	resp, err := c.get(ctx, op, key, pageURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &FetchError{Op: op, Key: key, Kind: KindTransient, Err: err}
	}
	return string(body), nil
}
