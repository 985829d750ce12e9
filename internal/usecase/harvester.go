package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"OnionHarvester/internal/domain"
	"OnionHarvester/internal/ports"
)

// ErrCycleInProgress is returned when a cycle is triggered while another runs.
var ErrCycleInProgress = errors.New("harvest cycle already in progress")

const defaultSaveTimeout = 30 * time.Second

// HarvesterDeps wires all driven adapters into the harvest driver.
type HarvesterDeps struct {
	Source    ports.ListingSource
	Fetcher   ports.PasteFetcher
	Annotator ports.Annotator
	Store     ports.DatasetStore
	Notifier  ports.Notifier
	Dataset   *domain.Dataset
	// Delay is the pause between two consecutive pastes.
	Delay       time.Duration
	SaveTimeout time.Duration
	Logger      *slog.Logger
}

// Discovery lists the addresses a single paste contributed in one cycle.
type Discovery struct {
	SourceURL string
	Title     string
	Created   bool
	Added     []domain.AnnotatedAddress
}

// CycleReport summarizes one harvest cycle.
type CycleReport struct {
	Started     time.Time   `json:"started"`
	Finished    time.Time   `json:"finished"`
	Keys        int         `json:"keys"`
	Processed   int         `json:"processed"`
	Failed      int         `json:"failed"`
	NewRecords  int         `json:"newRecords"`
	NewAddrs    int         `json:"newAddresses"`
	Interrupted bool        `json:"interrupted"`
	Saved       bool        `json:"saved"`
	Discoveries []Discovery `json:"-"`
}

// Harvester implements the harvest driver: listing, fetching, annotation and
// merging into the in-memory dataset, plus persistence at the end of a cycle.
type Harvester struct {
	source      ports.ListingSource
	fetcher     ports.PasteFetcher
	annotator   ports.Annotator
	store       ports.DatasetStore
	notifier    ports.Notifier
	dataset     *domain.Dataset
	delay       time.Duration
	saveTimeout time.Duration
	logger      *slog.Logger

	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	cycleMu sync.Mutex

	reportMu sync.RWMutex
	last     *CycleReport
}

// NewHarvester constructs the harvest driver.
func NewHarvester(deps HarvesterDeps) *Harvester {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dataset := deps.Dataset
	if dataset == nil {
		dataset = domain.NewDataset(nil)
	}
	saveTimeout := deps.SaveTimeout
	if saveTimeout <= 0 {
		saveTimeout = defaultSaveTimeout
	}
	return &Harvester{
		source:      deps.Source,
		fetcher:     deps.Fetcher,
		annotator:   deps.Annotator,
		store:       deps.Store,
		notifier:    deps.Notifier,
		dataset:     dataset,
		delay:       deps.Delay,
		saveTimeout: saveTimeout,
		logger:      logger.With("component", "harvester"),
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// Dataset exposes the in-memory dataset for read-only consumers.
func (h *Harvester) Dataset() *domain.Dataset {
	return h.dataset
}

// LastReport returns the report of the most recent finished cycle.
func (h *Harvester) LastReport() (CycleReport, bool) {
	h.reportMu.RLock()
	defer h.reportMu.RUnlock()
	if h.last == nil {
		return CycleReport{}, false
	}
	return *h.last, true
}

// Cycle runs one full harvest cycle and persists the dataset. An overlapping
// call returns ErrCycleInProgress immediately. The save uses a context that
// survives cancellation of ctx, so an interrupted cycle still writes the
// consistent in-memory state.
func (h *Harvester) Cycle(ctx context.Context) (CycleReport, error) {
	if !h.cycleMu.TryLock() {
		h.logger.Warn("skipping overlapping harvest cycle")
		return CycleReport{}, ErrCycleInProgress
	}
	defer h.cycleMu.Unlock()

	report, err := h.HarvestListing(ctx)
	if err != nil && !report.Interrupted {
		h.logger.Error("harvest listing failed", "error", err)
		return report, err
	}

	if h.store != nil {
		if err := h.Save(ctx); err != nil {
			h.logger.Error("save dataset failed", "error", err)
			return report, err
		}
		report.Saved = true
	}
	h.remember(report)

	h.logger.Info("harvest cycle finished",
		"keys", report.Keys,
		"processed", report.Processed,
		"failed", report.Failed,
		"new_records", report.NewRecords,
		"new_addresses", report.NewAddrs,
		"interrupted", report.Interrupted,
		"duration", report.Finished.Sub(report.Started).Round(time.Millisecond),
	)

	if h.notifier != nil && report.NewAddrs > 0 && ctx.Err() == nil {
		if err := h.notifier.PublishDigest(ctx, BuildDigest(report)); err != nil {
			h.logger.Warn("publish digest failed", "error", err)
		}
	}
	return report, nil
}

// Save writes the whole dataset to the store. Cancellation of ctx does not
// abort the write; it is bounded by the save timeout instead.
func (h *Harvester) Save(ctx context.Context) error {
	if h.store == nil {
		return nil
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.saveTimeout)
	defer cancel()
	if err := h.store.Save(saveCtx, h.dataset); err != nil {
		return fmt.Errorf("save dataset: %w", err)
	}
	return nil
}

// HarvestListing collects keys from the listing source and harvests each one
// sequentially, pausing between pastes. A failing paste is logged and skipped.
// Cancellation stops the loop after the current paste and marks the report
// interrupted.
func (h *Harvester) HarvestListing(ctx context.Context) (CycleReport, error) {
	report := CycleReport{Started: h.now()}
	if h.source == nil {
		report.Finished = report.Started
		return report, errors.New("listing source is not configured")
	}

	keys, err := h.source.ListKeys(ctx)
	if err != nil {
		if ctx.Err() != nil {
			report.Interrupted = true
			report.Finished = h.now()
			return report, ctx.Err()
		}
		report.Finished = h.now()
		return report, fmt.Errorf("list keys: %w", err)
	}
	report.Keys = len(keys)
	h.logger.Info("harvest cycle started", "keys", len(keys))

	for i, key := range keys {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}
		if i > 0 {
			if err := h.sleep(ctx, h.delay); err != nil {
				report.Interrupted = true
				break
			}
		}

		discovery, err := h.harvest(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				report.Interrupted = true
				break
			}
			report.Failed++
			continue
		}
		report.Processed++
		if len(discovery.Added) == 0 {
			continue
		}
		if discovery.Created {
			report.NewRecords++
		}
		report.NewAddrs += len(discovery.Added)
		report.Discoveries = append(report.Discoveries, discovery)
	}

	report.Finished = h.now()
	if report.Interrupted {
		return report, ctx.Err()
	}
	return report, nil
}

// HarvestOne fetches a single paste and merges its addresses. It returns the
// number of addresses new to the dataset.
func (h *Harvester) HarvestOne(ctx context.Context, key string) (int, error) {
	discovery, err := h.harvest(ctx, key)
	if err != nil {
		return 0, err
	}
	return len(discovery.Added), nil
}

// KeyResult is the outcome of harvesting one explicitly requested paste.
type KeyResult struct {
	Key   string
	Added int
	Err   error
}

// HarvestKeys harvests the given pastes in order, pausing between two
// consecutive pastes like a listing cycle does, and saves the dataset once at
// the end. Cancellation stops after the current paste; keys not reached get
// no result. An overlapping cycle makes it return ErrCycleInProgress.
func (h *Harvester) HarvestKeys(ctx context.Context, keys []string) ([]KeyResult, error) {
	if !h.cycleMu.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer h.cycleMu.Unlock()

	results := make([]KeyResult, 0, len(keys))
	for i, key := range keys {
		if i > 0 {
			if err := h.sleep(ctx, h.delay); err != nil {
				break
			}
		}
		added, err := h.HarvestOne(ctx, key)
		if err != nil && ctx.Err() != nil {
			break
		}
		results = append(results, KeyResult{Key: key, Added: added, Err: err})
	}

	if err := h.Save(ctx); err != nil {
		h.logger.Error("save dataset failed", "error", err)
		return results, err
	}
	return results, ctx.Err()
}

func (h *Harvester) harvest(ctx context.Context, key string) (Discovery, error) {
	log := h.logger.With("key", key)

	text, err := h.fetcher.FetchRaw(ctx, key)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("fetch failed, skipping paste", "op", "fetch raw", "error", err)
		}
		return Discovery{}, fmt.Errorf("fetch raw %s: %w", key, err)
	}
	crawled := h.now()

	var annotated []domain.AnnotatedAddress
	if h.annotator != nil {
		annotated = h.annotator.Annotate(ctx, text, h.dataset.Classification)
	}
	if err := ctx.Err(); err != nil {
		return Discovery{}, err
	}

	sourceURL := h.fetcher.SourceURL(key)
	if len(annotated) == 0 {
		log.Debug("no onion addresses in paste")
		return Discovery{SourceURL: sourceURL}, nil
	}

	meta, err := h.fetcher.FetchMeta(ctx, key)
	if err != nil {
		if ctx.Err() != nil {
			return Discovery{}, ctx.Err()
		}
		log.Warn("paste metadata unavailable, using fallback", "op", "fetch meta", "error", err)
		meta = domain.PasteMeta{}
	}
	title := strings.TrimSpace(meta.Title)
	if title == "" {
		title = fallbackTitle(key)
	}
	posted := meta.Posted
	if posted.IsZero() {
		posted = crawled
	}

	result := h.dataset.Merge(sourceURL, title, domain.NewTimestamp(posted), domain.NewTimestamp(crawled), annotated)
	log.Info("paste harvested",
		"addresses", len(annotated),
		"new", len(result.Added),
		"created", result.Created,
	)
	return Discovery{
		SourceURL: sourceURL,
		Title:     title,
		Created:   result.Created,
		Added:     result.Added,
	}, nil
}

func (h *Harvester) remember(report CycleReport) {
	h.reportMu.Lock()
	defer h.reportMu.Unlock()
	report.Discoveries = nil
	h.last = &report
}

func fallbackTitle(key string) string {
	return "Paste " + key
}

// LoadDataset reads the stored dataset. Any load failure, including a corrupt
// document, is logged at error level and yields an empty dataset.
func LoadDataset(ctx context.Context, store ports.DatasetStore, logger *slog.Logger) *domain.Dataset {
	if logger == nil {
		logger = slog.Default()
	}
	ds, err := store.Load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrCorruptDocument) {
			logger.Error("stored dataset is corrupt, starting empty", "error", err)
		} else {
			logger.Error("stored dataset unreadable, starting empty", "error", err)
		}
		return domain.NewDataset(nil)
	}
	return ds
}

// BuildDigest renders the new addresses of a cycle as a plain text message.
func BuildDigest(report CycleReport) string {
	if report.NewAddrs == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Onion harvest: %d new address(es) from %d paste(s)\n", report.NewAddrs, len(report.Discoveries))
	for _, d := range report.Discoveries {
		fmt.Fprintf(&b, "\n%s\n%s\n", d.Title, d.SourceURL)
		for _, a := range d.Added {
			if a.Classification != nil && a.Classification.Category != domain.CategoryUnknown {
				fmt.Fprintf(&b, "- %s [%s %.2f]\n", a.Address, a.Classification.Category, a.Classification.Confidence)
				continue
			}
			fmt.Fprintf(&b, "- %s\n", a.Address)
		}
	}
	return b.String()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
