package pastebin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"OnionHarvester/internal/config"
	"OnionHarvester/internal/ports"
	"OnionHarvester/internal/scanner"
)

// StrategySource implements ListingSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	sources  []config.SourceConfig
	maxKeys  int
	logger   *slog.Logger
}

var _ ports.ListingSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined sources.
// maxKeys caps the keys returned per call; zero means no cap.
func NewStrategySource(reg *scanner.Registry, sources []config.SourceConfig, maxKeys int, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sources:  sources,
		maxKeys:  maxKeys,
		logger:   log,
	}
}

// ListKeys runs every configured source and returns the union of their keys,
// first occurrence order. A failing source is logged and skipped; an error is
// returned only when every source failed.
func (s *StrategySource) ListKeys(ctx context.Context) ([]string, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	s.debug("list keys", "sources", len(s.sources))

	var (
		keys   []string
		seen   = map[string]struct{}{}
		failed int
		errs   []error
	)
	for _, src := range s.sources {
		if err := ctx.Err(); err != nil {
			return keys, err
		}
		strategy, err := s.registry.Resolve(src.Strategy)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.Name, err)
		}

		req := scanner.Request{
			SourceName: src.Name,
			URL:        src.URL,
			Terms:      src.Terms,
			Limit:      s.maxKeys,
			Options:    src.Options,
		}

		results, err := strategy.Scan(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return keys, ctx.Err()
			}
			failed++
			errs = append(errs, fmt.Errorf("scan source %s: %w", src.Name, err))
			if s.logger != nil {
				s.logger.Warn("listing source failed", "source", src.Name, "strategy", src.Strategy, "error", err)
			}
			continue
		}

		for _, key := range results {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
		s.debug("source produced keys", "source", src.Name, "count", len(results))
	}

	if failed > 0 && failed == len(s.sources) {
		return nil, errors.Join(errs...)
	}
	if s.maxKeys > 0 && len(keys) > s.maxKeys {
		keys = keys[:s.maxKeys]
	}

	s.debug("strategy source done", "total_keys", len(keys))
	return keys, nil
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
