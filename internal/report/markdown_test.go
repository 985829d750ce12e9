package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"OnionHarvester/internal/domain"
)

const (
	validV3   = "http://aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaam2dqd.onion"
	invalidV3 = "http://aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.onion"
	legacyV2  = "http://3g2upl4pq6kufc4m.onion"
)

func sampleRecords() []domain.PasteRecord {
	ts := domain.NewTimestamp(time.Date(2025, 10, 12, 0, 0, 0, 0, time.UTC))
	return []domain.PasteRecord{
		{
			SourceURL: "https://paste.test/a", SourceTitle: "a",
			PasteTimestamp: ts, CrawledTimestamp: ts,
			Addresses: []domain.AnnotatedAddress{
				{Address: validV3, Classification: &domain.Classification{Category: domain.CategorySearchEngine, Confidence: 0.8}},
				{Address: legacyV2},
			},
		},
		{
			SourceURL: "https://paste.test/b", SourceTitle: "b",
			PasteTimestamp: ts, CrawledTimestamp: ts,
			Addresses: []domain.AnnotatedAddress{
				{Address: validV3, Classification: &domain.Classification{Category: domain.CategorySearchEngine, Confidence: 0.8}},
				{Address: invalidV3, Classification: &domain.Classification{Category: domain.CategoryForum, Confidence: 0.6}},
				{Address: "http://short.onion"},
			},
		},
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	s := Summarize(sampleRecords(), time.Now())
	if s.TotalPastes != 2 || s.TotalLinks != 5 || s.UniqueLinks != 4 {
		t.Fatalf("unexpected totals %+v", s.Stats)
	}
	if s.V3 != 2 || s.V3Valid != 1 || s.V2 != 1 || s.OtherVersions != 1 {
		t.Fatalf("unexpected versions v3=%d valid=%d v2=%d other=%d", s.V3, s.V3Valid, s.V2, s.OtherVersions)
	}
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewMarkdownWriter(&buf)
	if err := w.Write(Summarize(sampleRecords(), time.Date(2025, 10, 13, 8, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"# Onion Harvest Statistics",
		"2025-10-13 08:00:00 UTC",
		"## Onion Versions",
		"Search Engine",
		"```mermaid",
		"pie",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestMarkdownWriterEmptyDataset(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := NewMarkdownWriter(&buf).Write(Summarize(nil, time.Now())); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if strings.Contains(buf.String(), "mermaid") {
		t.Fatalf("empty dataset must not render a chart")
	}
	if !strings.Contains(buf.String(), "No classified links.") {
		t.Fatalf("expected empty category notice:\n%s", buf.String())
	}
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	w := NewMarkdownWriter(&bytes.Buffer{})
	if got := w.DisplayName(domain.CategoryTechnicalService); got != "Technical Service" {
		t.Fatalf("unexpected display name %q", got)
	}
}
