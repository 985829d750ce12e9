package domain

import (
	"sync"
	"time"
)

// PasteRecord holds the addresses discovered in one source document.
type PasteRecord struct {
	CrawledTimestamp Timestamp          `json:"crawledTimeStamp"`
	PasteTimestamp   Timestamp          `json:"pasteDateTimestamp"`
	SourceURL        string             `json:"sourcePasteUrl"`
	SourceTitle      string             `json:"sourcePasteTitle"`
	Addresses        []AnnotatedAddress `json:"onionLinks"`
}

// Has reports whether the record already lists addr.
func (r *PasteRecord) Has(addr Address) bool {
	for _, existing := range r.Addresses {
		if existing.Address == addr {
			return true
		}
	}
	return false
}

func (r PasteRecord) clone() PasteRecord {
	out := r
	out.Addresses = make([]AnnotatedAddress, len(r.Addresses))
	for i, a := range r.Addresses {
		out.Addresses[i] = a
		if a.Classification != nil {
			c := *a.Classification
			out.Addresses[i].Classification = &c
		}
	}
	return out
}

// MergeResult describes what a merge changed.
type MergeResult struct {
	Created bool
	Added   []AnnotatedAddress
}

// Dataset is the ordered collection of paste records keyed by source URL.
// Mutations come from a single harvest goroutine; reads may happen concurrently.
type Dataset struct {
	mu      sync.RWMutex
	records []PasteRecord
	index   map[string]int
}

// NewDataset builds a dataset from records. Later records with a source URL
// already seen are folded into the first one through Merge.
func NewDataset(records []PasteRecord) *Dataset {
	d := &Dataset{index: make(map[string]int, len(records))}
	for _, r := range records {
		if _, ok := d.index[r.SourceURL]; ok {
			d.mergeLocked(r.SourceURL, r.SourceTitle, r.PasteTimestamp, r.CrawledTimestamp, r.Addresses)
			continue
		}
		r = r.clone()
		r.Addresses = dedupeAnnotated(r.Addresses)
		d.index[r.SourceURL] = len(d.records)
		d.records = append(d.records, r)
	}
	return d
}

// Merge folds addresses discovered at sourceURL into the dataset.
//
// An empty batch is a no-op. For an existing record only unseen addresses are
// appended and its crawl timestamp keeps the first-seen value. Otherwise a new
// record is created. Within one batch the earliest entry per address wins.
func (d *Dataset) Merge(sourceURL, sourceTitle string, pasteTS, crawledTS Timestamp, addresses []AnnotatedAddress) MergeResult {
	if len(addresses) == 0 {
		return MergeResult{}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mergeLocked(sourceURL, sourceTitle, pasteTS, crawledTS, addresses)
}

func (d *Dataset) mergeLocked(sourceURL, sourceTitle string, pasteTS, crawledTS Timestamp, addresses []AnnotatedAddress) MergeResult {
	if len(addresses) == 0 {
		return MergeResult{}
	}
	if d.index == nil {
		d.index = make(map[string]int)
	}

	batch := dedupeAnnotated(addresses)
	if i, ok := d.index[sourceURL]; ok {
		record := &d.records[i]
		var added []AnnotatedAddress
		for _, a := range batch {
			if record.Has(a.Address) {
				continue
			}
			added = append(added, a)
		}
		record.Addresses = append(record.Addresses, added...)
		return MergeResult{Added: added}
	}

	d.index[sourceURL] = len(d.records)
	d.records = append(d.records, PasteRecord{
		SourceURL:        sourceURL,
		SourceTitle:      sourceTitle,
		PasteTimestamp:   pasteTS,
		CrawledTimestamp: crawledTS,
		Addresses:        batch,
	})
	return MergeResult{Created: true, Added: append([]AnnotatedAddress(nil), batch...)}
}

// Lookup returns a copy of the record stored for sourceURL.
func (d *Dataset) Lookup(sourceURL string) (PasteRecord, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i, ok := d.index[sourceURL]
	if !ok {
		return PasteRecord{}, false
	}
	return d.records[i].clone(), true
}

// Classification returns the first classification recorded for addr anywhere
// in the dataset.
func (d *Dataset) Classification(addr Address) (Classification, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, r := range d.records {
		for _, a := range r.Addresses {
			if a.Address == addr && a.Classification != nil {
				return *a.Classification, true
			}
		}
	}
	return Classification{}, false
}

// Snapshot returns a deep copy of all records in insertion order.
func (d *Dataset) Snapshot() []PasteRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]PasteRecord, len(d.records))
	for i, r := range d.records {
		out[i] = r.clone()
	}
	return out
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.records)
}

func dedupeAnnotated(addresses []AnnotatedAddress) []AnnotatedAddress {
	seen := make(map[Address]struct{}, len(addresses))
	out := make([]AnnotatedAddress, 0, len(addresses))
	for _, a := range addresses {
		if _, ok := seen[a.Address]; ok {
			continue
		}
		seen[a.Address] = struct{}{}
		out = append(out, a)
	}
	return out
}

// PasteMeta is the metadata shown on a paste page. Posted is zero when the
// page did not carry a parseable date.
type PasteMeta struct {
	Title  string
	Posted time.Time
}
