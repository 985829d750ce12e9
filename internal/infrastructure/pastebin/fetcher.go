package pastebin

import (
	"context"
	"net/url"
	"strings"

	"OnionHarvester/internal/domain"
	"OnionHarvester/internal/ports"
)

// Fetcher downloads raw paste text and the paste page metadata.
type Fetcher struct {
	client *Client
}

var _ ports.PasteFetcher = (*Fetcher)(nil)

// NewFetcher builds a fetcher on top of client.
func NewFetcher(client *Client) *Fetcher {
	return &Fetcher{client: client}
}

// SourceURL is the public page of a paste, used as the record key.
func (f *Fetcher) SourceURL(key string) string {
	return f.client.baseURL + "/" + url.PathEscape(key)
}

// FetchRaw returns the plain text body of a paste.
func (f *Fetcher) FetchRaw(ctx context.Context, key string) (string, error) {
	return f.client.fetchText(ctx, "fetch raw", key, f.client.baseURL+"/raw/"+url.PathEscape(key))
}

// FetchMeta reads the title and posting date from the paste page. Missing
// values are left empty; an unparseable date leaves Posted zero.
func (f *Fetcher) FetchMeta(ctx context.Context, key string) (domain.PasteMeta, error) {
	doc, err := f.client.fetchDocument(ctx, "fetch meta", key, f.SourceURL(key))
	if err != nil {
		return domain.PasteMeta{}, err
	}

	meta := domain.PasteMeta{
		Title: strings.TrimSpace(doc.Find(".info-top .paste-title").First().Text()),
	}
	if raw, ok := doc.Find(".date span").First().Attr("title"); ok {
		if posted, ok := domain.ParseTimestamp(raw); ok {
			meta.Posted = posted
		}
	}
	return meta, nil
}
