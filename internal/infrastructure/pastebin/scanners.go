package pastebin

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"OnionHarvester/internal/scanner"
)

const defaultSearchPages = 5

var pasteKeyExpr = regexp.MustCompile(`^[A-Za-z0-9]{2,16}$`)

// Site pages that look like paste keys in search result markup.
var reservedPaths = map[string]struct{}{
	"archive": {}, "login": {}, "signup": {}, "trends": {}, "tools": {},
	"faq": {}, "languages": {}, "contact": {}, "pro": {}, "search": {},
	"doc_api": {}, "night_mode": {}, "dmca": {}, "privacy": {},
}

// ArchiveScanner lists the keys shown on the public archive page.
type ArchiveScanner struct {
	client *Client
}

// NewArchiveScanner wires a site client.
func NewArchiveScanner(client *Client) *ArchiveScanner {
	return &ArchiveScanner{client: client}
}

// Name identifies the strategy inside the registry.
func (a *ArchiveScanner) Name() string {
	return "archive"
}

// Scan returns archive keys in page order.
func (a *ArchiveScanner) Scan(ctx context.Context, req scanner.Request) ([]string, error) {
	pageURL := req.URL
	if pageURL == "" {
		pageURL = a.client.baseURL + "/archive"
	}

	doc, err := a.client.fetchDocument(ctx, "list archive", req.SourceName, pageURL)
	if err != nil {
		return nil, err
	}
	return collectKeys(doc.Find("table.archive-table tr td:nth-child(1) a"), req.Limit), nil
}

// SearchScanner pages through site search results for each configured term.
type SearchScanner struct {
	client *Client
	logger *slog.Logger
}

// NewSearchScanner wires a site client.
func NewSearchScanner(client *Client, logger *slog.Logger) *SearchScanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchScanner{client: client, logger: logger.With("component", "pastebin")}
}

// Name identifies the strategy inside the registry.
func (s *SearchScanner) Name() string {
	return "search"
}

// Scan queries every term, page by page, until a page yields no new key, a
// page fails, or options["maxPages"] pages were read. A failed page ends the
// term and a rate limited page ends the whole scan; Scan fails only when
// nothing was collected at all.
func (s *SearchScanner) Scan(ctx context.Context, req scanner.Request) ([]string, error) {
	if len(req.Terms) == 0 {
		return nil, fmt.Errorf("no search terms provided for source %s", req.SourceName)
	}
	searchURL := req.URL
	if searchURL == "" {
		searchURL = s.client.baseURL + "/search"
	}
	maxPages := defaultSearchPages
	if v, err := strconv.Atoi(req.Options["maxPages"]); err == nil && v > 0 {
		maxPages = v
	}

	var (
		keys    []string
		seen    = map[string]struct{}{}
		lastErr error
	)
terms:
	for _, term := range req.Terms {
		for page := 1; page <= maxPages; page++ {
			if req.Limit > 0 && len(keys) >= req.Limit {
				return keys, nil
			}
			pageURL, err := buildSearchURL(searchURL, term, page)
			if err != nil {
				return nil, err
			}

			doc, err := s.client.fetchDocument(ctx, "search", term, pageURL)
			if err != nil {
				if ctx.Err() != nil {
					return keys, ctx.Err()
				}
				lastErr = err
				if IsKind(err, KindRateLimited) {
					s.logger.Warn("search rate limited, ending scan", "term", term, "page", page, "error", err)
					break terms
				}
				s.logger.Warn("search page failed", "term", term, "page", page, "error", err)
				break
			}

			fresh := 0
			for _, key := range searchKeys(doc) {
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				keys = append(keys, key)
				fresh++
			}
			s.logger.Debug("search page read", "term", term, "page", page, "keys", fresh)
			if fresh == 0 {
				break
			}
		}
	}

	if len(keys) == 0 && lastErr != nil {
		return nil, lastErr
	}
	if req.Limit > 0 && len(keys) > req.Limit {
		keys = keys[:req.Limit]
	}
	return keys, nil
}

func searchKeys(doc *goquery.Document) []string {
	var keys []string
	doc.Find("a[href^='/']").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if len(href) < 2 || len(href) > 10 {
			return
		}
		if key, ok := keyFromHref(href); ok {
			keys = append(keys, key)
		}
	})
	return keys
}

func collectKeys(links *goquery.Selection, limit int) []string {
	var keys []string
	seen := map[string]struct{}{}
	links.EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		key, ok := keyFromHref(href)
		if !ok {
			return true
		}
		if _, dup := seen[key]; dup {
			return true
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
		return limit <= 0 || len(keys) < limit
	})
	return keys
}

func keyFromHref(href string) (string, bool) {
	key := strings.Trim(strings.TrimSpace(href), "/")
	if !pasteKeyExpr.MatchString(key) {
		return "", false
	}
	if _, reserved := reservedPaths[strings.ToLower(key)]; reserved {
		return "", false
	}
	return key, true
}

func buildSearchURL(base, term string, page int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid search url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("q", term)
	query.Set("page", strconv.Itoa(page))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
