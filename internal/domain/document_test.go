package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDocumentRoundTrip(t *testing.T) {
	t.Parallel()

	original := NewDataset(nil)
	original.Merge(testURL, "first", ts(1), NewTimestamp(time.Date(2025, 10, 12, 3, 4, 5, 123456789, time.UTC)), []AnnotatedAddress{
		{Address: addrA, Classification: &Classification{Category: CategoryForum, Confidence: 0.75, Description: "a forum"}},
		{Address: addrB},
	})
	original.Merge("https://pastebin.com/second", "second", ts(4), ts(5), Annotate([]Address{addrC}))

	data, err := MarshalDataset(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"onion_links"`, `"crawledTimeStamp"`, `"pasteDateTimestamp"`, `"sourcePasteUrl"`, `"sourcePasteTitle"`, `"onionLinks"`, `"onionLink"`} {
		if !strings.Contains(string(data), key) {
			t.Fatalf("document lacks key %s:\n%s", key, data)
		}
	}

	loaded, err := UnmarshalDataset(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	want := original.Snapshot()
	got := loaded.Snapshot()
	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(got))
	}
	for i := range want {
		w, g := want[i], got[i]
		if w.SourceURL != g.SourceURL || w.SourceTitle != g.SourceTitle {
			t.Fatalf("record %d mismatch: %+v vs %+v", i, w, g)
		}
		if !w.PasteTimestamp.Equal(g.PasteTimestamp) || !w.CrawledTimestamp.Equal(g.CrawledTimestamp) {
			t.Fatalf("record %d timestamps mismatch: %s/%s vs %s/%s", i, w.PasteTimestamp, w.CrawledTimestamp, g.PasteTimestamp, g.CrawledTimestamp)
		}
		if len(w.Addresses) != len(g.Addresses) {
			t.Fatalf("record %d address count mismatch", i)
		}
		for j := range w.Addresses {
			wa, ga := w.Addresses[j], g.Addresses[j]
			if wa.Address != ga.Address {
				t.Fatalf("address mismatch: %s vs %s", wa.Address, ga.Address)
			}
			if (wa.Classification == nil) != (ga.Classification == nil) {
				t.Fatalf("classification presence mismatch for %s", wa.Address)
			}
			if wa.Classification != nil && *wa.Classification != *ga.Classification {
				t.Fatalf("classification mismatch: %+v vs %+v", wa.Classification, ga.Classification)
			}
		}
	}

	again, err := MarshalDataset(loaded)
	if err != nil {
		t.Fatalf("marshal again: %v", err)
	}
	if string(again) != string(data) {
		t.Fatalf("second serialization differs:\n%s\n---\n%s", data, again)
	}
}

func TestUnmarshalCorruptDocument(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"syntax":      `{"onion_links": [`,
		"wrong shape": `[1,2,3]`,
		"no url":      `{"onion_links":[{"sourcePasteTitle":"x","onionLinks":[]}]}`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := UnmarshalDataset([]byte(input))
			if !errors.Is(err, ErrCorruptDocument) {
				t.Fatalf("expected ErrCorruptDocument, got %v", err)
			}
		})
	}
}

func TestUnmarshalEmptyDocument(t *testing.T) {
	t.Parallel()

	d, err := UnmarshalDataset([]byte("  \n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Len() != 0 {
		t.Fatalf("expected empty dataset")
	}
}

func TestUnmarshalLegacyTimestamps(t *testing.T) {
	t.Parallel()

	input := `{"onion_links":[{
		"crawledTimeStamp":"2025-10-12T15:10:21.123456",
		"pasteDateTimestamp":"some free text date",
		"sourcePasteUrl":"https://pastebin.com/x",
		"sourcePasteTitle":"legacy",
		"onionLinks":[{"onionLink":"http://abcdefghijklmnop.onion"}]}]}`

	d, err := UnmarshalDataset([]byte(input))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	record, ok := d.Lookup("https://pastebin.com/x")
	if !ok {
		t.Fatalf("record missing")
	}
	want := time.Date(2025, 10, 12, 15, 10, 21, 123456000, time.UTC)
	if !record.CrawledTimestamp.Time.Equal(want) {
		t.Fatalf("crawled: want %s, got %s", want, record.CrawledTimestamp.Time)
	}
	if got := record.PasteTimestamp.String(); got != "some free text date" {
		t.Fatalf("raw paste date not preserved: %q", got)
	}

	data, err := MarshalDataset(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"some free text date"`) {
		t.Fatalf("raw date lost on save:\n%s", data)
	}
}

func TestParseTimestampPasteDate(t *testing.T) {
	t.Parallel()

	got, ok := ParseTimestamp("Sunday 12th of October 2025 03:10:21 PM UTC")
	if !ok {
		t.Fatalf("expected paste date to parse")
	}
	want := time.Date(2025, 10, 12, 15, 10, 21, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("want %s, got %s", want, got)
	}

	if _, ok := ParseTimestamp("not a date"); ok {
		t.Fatalf("garbage must not parse")
	}
}

func TestParseTimestampZoneAbbreviations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  time.Time
	}{
		{"Sunday 12th of October 2025 03:10:21 PM CDT", time.Date(2025, 10, 12, 20, 10, 21, 0, time.UTC)},
		{"Sunday 12th of October 2025 03:10:21 PM EST", time.Date(2025, 10, 12, 20, 10, 21, 0, time.UTC)},
		{"Sunday 12th of October 2025 03:10:21 PM PDT", time.Date(2025, 10, 12, 22, 10, 21, 0, time.UTC)},
		{"Sunday 12th of October 2025 03:10:21 PM GMT", time.Date(2025, 10, 12, 15, 10, 21, 0, time.UTC)},
		{"Sunday 12th of October 2025 03:10:21 PM -0500", time.Date(2025, 10, 12, 20, 10, 21, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, ok := ParseTimestamp(tt.input)
		if !ok {
			t.Fatalf("%q: expected to parse", tt.input)
		}
		if !got.Equal(tt.want) {
			t.Fatalf("%q: want %s, got %s", tt.input, tt.want, got)
		}
	}

	if _, ok := ParseTimestamp("Sunday 12th of October 2025 03:10:21 PM XYZ"); ok {
		t.Fatalf("an unknown zone must not be read as UTC")
	}
}

func TestLegacyTimestampsRoundTripVerbatim(t *testing.T) {
	t.Parallel()

	input := `{"onion_links":[{
		"crawledTimeStamp":"2025-10-12T15:10:21.123456",
		"pasteDateTimestamp":"Sunday 12th of October 2025 03:10:21 PM CDT",
		"sourcePasteUrl":"https://pastebin.com/a",
		"sourcePasteTitle":"legacy",
		"onionLinks":[{"onionLink":"http://abcdefghijklmnop.onion"}]},{
		"crawledTimeStamp":"",
		"pasteDateTimestamp":null,
		"sourcePasteUrl":"https://pastebin.com/b",
		"sourcePasteTitle":"empty",
		"onionLinks":[{"onionLink":"http://qrstuvwxyz234567.onion"}]}]}`

	d, err := UnmarshalDataset([]byte(input))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	a, ok := d.Lookup("https://pastebin.com/a")
	if !ok {
		t.Fatalf("record a missing")
	}
	if want := time.Date(2025, 10, 12, 20, 10, 21, 0, time.UTC); !a.PasteTimestamp.Time.Equal(want) {
		t.Fatalf("paste date: want %s, got %s", want, a.PasteTimestamp.Time)
	}
	b, ok := d.Lookup("https://pastebin.com/b")
	if !ok {
		t.Fatalf("record b missing")
	}
	if !b.CrawledTimestamp.IsZero() || b.CrawledTimestamp.String() != "" {
		t.Fatalf("empty timestamp must stay empty, got %q", b.CrawledTimestamp)
	}

	data, err := MarshalDataset(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{
		`"2025-10-12T15:10:21.123456"`,
		`"Sunday 12th of October 2025 03:10:21 PM CDT"`,
		`"crawledTimeStamp": ""`,
		`"pasteDateTimestamp": null`,
	} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("%s rewritten on save:\n%s", want, data)
		}
	}
	if strings.Contains(string(data), "0001-01-01") {
		t.Fatalf("empty timestamp saved as zero time:\n%s", data)
	}
}
