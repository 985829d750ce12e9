package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"OnionHarvester/internal/domain"
	"OnionHarvester/internal/ports"
)

// FileStore keeps the dataset as one JSON document on disk.
type FileStore struct {
	path   string
	logger *slog.Logger
}

var _ ports.DatasetStore = (*FileStore)(nil)

// NewFileStore stores the document at path.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, logger: logger.With("component", "storage", "driver", "file")}
}

// Check creates the parent directory and probes that it is writable.
func (s *FileStore) Check(_ context.Context) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create data directory %s: %w", dir, err)
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("data directory %s is not writable: %w", dir, err)
	}
	name := probe.Name()
	_ = probe.Close()
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("remove probe file: %w", err)
	}
	return nil
}

// Load reads the document. A missing file is an empty dataset; an undecodable
// one is reported with domain.ErrCorruptDocument.
func (s *FileStore) Load(_ context.Context) (*domain.Dataset, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("no dataset on disk yet", "path", s.path)
		return domain.NewDataset(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", s.path, err)
	}

	ds, err := domain.UnmarshalDataset(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.path, err)
	}
	s.logger.Debug("dataset loaded", "path", s.path, "records", ds.Len())
	return ds, nil
}

// Save replaces the document atomically: the new content is written to a
// temporary file in the same directory, synced and renamed over the old one.
func (s *FileStore) Save(_ context.Context, ds *domain.Dataset) error {
	data, err := domain.MarshalDataset(ds)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create data directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace dataset %s: %w", s.path, err)
	}
	committed = true
	syncDir(dir)

	s.logger.Debug("dataset saved", "path", s.path, "records", ds.Len(), "bytes", len(data))
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}

// syncDir flushes the rename to disk where the platform allows it.
func syncDir(dir string) {
	d, err := os.Open(dir) //nolint:gosec // directory of the configured data file
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
