package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrCorruptDocument marks a persisted dataset that could not be decoded.
	ErrCorruptDocument = errors.New("dataset document is corrupt")
	// ErrParse marks malformed HTML or JSON returned by a collaborator.
	ErrParse = errors.New("parse failure")
	// ErrClassification marks a failed classification request.
	ErrClassification = errors.New("classification failure")
)

// Document is the persisted form of a dataset.
type Document struct {
	OnionLinks []PasteRecord `json:"onion_links"`
}

// EncodeDataset writes the dataset as an indented JSON document.
func EncodeDataset(w io.Writer, d *Dataset) error {
	doc := Document{OnionLinks: d.Snapshot()}
	for i := range doc.OnionLinks {
		if doc.OnionLinks[i].Addresses == nil {
			doc.OnionLinks[i].Addresses = []AnnotatedAddress{}
		}
	}
	if doc.OnionLinks == nil {
		doc.OnionLinks = []PasteRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	return nil
}

// MarshalDataset returns the JSON document for d.
func MarshalDataset(d *Dataset) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeDataset(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalDataset decodes a JSON document. Empty input yields an empty dataset.
func UnmarshalDataset(data []byte) (*Dataset, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return NewDataset(nil), nil
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	for i, r := range doc.OnionLinks {
		if r.SourceURL == "" {
			return nil, fmt.Errorf("%w: record %d has no source url", ErrCorruptDocument, i)
		}
	}
	return NewDataset(doc.OnionLinks), nil
}
