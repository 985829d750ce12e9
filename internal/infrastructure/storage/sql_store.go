package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver

	"OnionHarvester/internal/config"
	"OnionHarvester/internal/domain"
	"OnionHarvester/internal/ports"
)

const documentsTable = "harvest_documents"

const createDocumentsTable = `CREATE TABLE IF NOT EXISTS harvest_documents (
	name TEXT PRIMARY KEY,
	document TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// SQLStore keeps the dataset document as a single row keyed by name, in
// sqlite or postgres.
type SQLStore struct {
	db     *sql.DB
	driver string
	name   string
	sq     squirrel.StatementBuilderType
	logger *slog.Logger
}

var _ ports.DatasetStore = (*SQLStore)(nil)

// OpenSQL opens a database for driver config.DriverSQLite or config.DriverPostgres.
func OpenSQL(driver, dsn, name string, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	builder := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

	switch driver {
	case config.DriverSQLite:
		if path := sqlitePath(dsn); path != "" && path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?mode=rwc"
		}
	case config.DriverPostgres:
		builder = builder.PlaceholderFormat(squirrel.Dollar)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownStorageDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == config.DriverSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(time.Hour)
	}

	return &SQLStore{
		db:     db,
		driver: driver,
		name:   name,
		sq:     builder,
		logger: logger.With("component", "storage", "driver", driver),
	}, nil
}

// Check pings the database and creates the documents table.
func (s *SQLStore) Check(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", s.driver, err)
	}
	if _, err := s.db.ExecContext(ctx, createDocumentsTable); err != nil {
		return fmt.Errorf("create %s table: %w", documentsTable, err)
	}
	return nil
}

// Load returns the stored dataset, or an empty one when no row exists yet.
func (s *SQLStore) Load(ctx context.Context) (*domain.Dataset, error) {
	query, args, err := s.sq.Select("document").
		From(documentsTable).
		Where(squirrel.Eq{"name": s.name}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var document string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Info("no dataset stored yet", "name", s.name)
		return domain.NewDataset(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("select document %s: %w", s.name, err)
	}

	ds, err := domain.UnmarshalDataset([]byte(document))
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", s.name, err)
	}
	return ds, nil
}

// Save upserts the whole document inside a transaction.
func (s *SQLStore) Save(ctx context.Context, ds *domain.Dataset) error {
	data, err := domain.MarshalDataset(ds)
	if err != nil {
		return err
	}

	query, args, err := s.sq.Insert(documentsTable).
		Columns("name", "document", "updated_at").
		Values(s.name, string(data), time.Now().UTC()).
		Suffix("ON CONFLICT (name) DO UPDATE SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("upsert document %s: %w", s.name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit document %s: %w", s.name, err)
	}

	s.logger.Debug("dataset saved", "name", s.name, "records", ds.Len(), "bytes", len(data))
	return nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func sqlitePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	return path
}

// Open builds the store selected by cfg.Driver.
func Open(cfg config.StorageConfig, logger *slog.Logger) (ports.DatasetStore, error) {
	switch cfg.Driver {
	case config.DriverFile:
		return NewFileStore(cfg.Path, logger), nil
	case config.DriverSQLite, config.DriverPostgres:
		return OpenSQL(cfg.Driver, cfg.DSN, cfg.Name, logger)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownStorageDriver, cfg.Driver)
	}
}
