package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Timestamp is a point in time as persisted in the dataset document.
// It is written as RFC 3339 in UTC. A loaded value whose canonical form
// differs from the stored text (legacy formats, free text, empty or null)
// keeps its original encoding so that a load/save cycle never rewrites it.
type Timestamp struct {
	time.Time
	raw json.RawMessage
}

// NewTimestamp converts t to a UTC timestamp without monotonic reading.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Round(0)}
}

// Equal reports whether two timestamps denote the same instant. Values
// without a parsed instant compare by their text.
func (t Timestamp) Equal(other Timestamp) bool {
	if !t.IsZero() && !other.IsZero() {
		return t.Time.Equal(other.Time)
	}
	return t.IsZero() == other.IsZero() && t.String() == other.String()
}

func (t Timestamp) String() string {
	if t.raw != nil {
		var text string
		if err := json.Unmarshal(t.raw, &text); err != nil {
			return string(t.raw)
		}
		return text
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.raw != nil {
		return t.raw, nil
	}
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	ts := Timestamp{}
	if parsed, ok := ParseTimestamp(text); ok {
		ts = NewTimestamp(parsed)
	}
	canonical, err := json.Marshal(ts.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return err
	}
	if ts.IsZero() || !bytes.Equal(canonical, bytes.TrimSpace(data)) {
		ts.raw = append(json.RawMessage(nil), bytes.TrimSpace(data)...)
	}
	*t = ts
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// pasteDateLayouts cover the human readable dates shown on paste pages,
// e.g. "Sunday 12th of October 2025 03:10:21 PM CDT" once the ordinal is
// removed and the zone abbreviation is replaced by its offset.
var pasteDateLayouts = []string{
	"Monday 2 of January 2006 03:04:05 PM -0700",
	"Monday 2 of January 2006 03:04:05 PM",
	"Jan 2, 2006",
	"January 2, 2006",
}

// zoneOffsets maps the abbreviations paste sites print to their UTC offset
// in hours. time.Parse only knows the abbreviation of the local zone and
// reads every other one as +0000.
var zoneOffsets = map[string]int{
	"UTC": 0,
	"GMT": 0,
	"EST": -5,
	"EDT": -4,
	"CST": -6,
	"CDT": -5,
	"MST": -7,
	"MDT": -6,
	"PST": -8,
	"PDT": -7,
}

var (
	ordinalSuffix = regexp.MustCompile(`\b(\d{1,2})(st|nd|rd|th)\b`)
	trailingZone  = regexp.MustCompile(`\s([A-Za-z]{3,5})$`)
)

// ParseTimestamp accepts RFC 3339, ISO 8601 without a zone (read as UTC) and
// the long date format used on paste pages. A paste date with an unknown
// zone abbreviation is rejected rather than guessed.
func ParseTimestamp(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, text); err == nil {
			return parsed.UTC(), true
		}
	}
	cleaned, ok := numericZone(ordinalSuffix.ReplaceAllString(text, "$1"))
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range pasteDateLayouts {
		if parsed, err := time.Parse(layout, cleaned); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

// numericZone replaces a trailing zone abbreviation with a numeric offset.
func numericZone(text string) (string, bool) {
	m := trailingZone.FindStringSubmatchIndex(text)
	if m == nil {
		return text, true
	}
	zone := strings.ToUpper(text[m[2]:m[3]])
	hours, ok := zoneOffsets[zone]
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s %+03d00", text[:m[0]], hours), true
}
