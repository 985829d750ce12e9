package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"OnionHarvester/internal/config"
	"OnionHarvester/internal/domain"
	"OnionHarvester/internal/enhance"
	"OnionHarvester/internal/infrastructure/httpapi"
	"OnionHarvester/internal/infrastructure/llm"
	"OnionHarvester/internal/infrastructure/pastebin"
	"OnionHarvester/internal/infrastructure/proxy"
	"OnionHarvester/internal/infrastructure/scheduler"
	"OnionHarvester/internal/infrastructure/storage"
	"OnionHarvester/internal/infrastructure/telegram"
	"OnionHarvester/internal/infrastructure/tor"
	"OnionHarvester/internal/logging"
	"OnionHarvester/internal/ports"
	"OnionHarvester/internal/scanner"
	"OnionHarvester/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	store     ports.DatasetStore
	harvester *usecase.Harvester
	fetcher   *pastebin.Fetcher
	proxies   *proxy.Pool
	tor       *tor.Gateway
}

// OpenDataset opens and checks the configured store, then loads the dataset.
// An unusable store is fatal; an unreadable document yields an empty dataset.
func OpenDataset(ctx context.Context, cfg config.Config, logger *slog.Logger) (ports.DatasetStore, *domain.Dataset, error) {
	store, err := storage.Open(cfg.Storage, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	if err := store.Check(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("storage not usable: %w", err)
	}
	return store, usecase.LoadDataset(ctx, store, logger), nil
}

// New builds a runnable application: storage, transport, listing sources,
// the annotation pipeline and the harvest driver. Embedded Tor is started here.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.NewWithFormat(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	store, dataset, err := OpenDataset(ctx, cfg, baseLogger)
	if err != nil {
		return nil, err
	}
	a.store = store

	httpClient, err := a.buildHTTPClient(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	client := pastebin.NewClient(httpClient, cfg.Harvest.BaseURL, cfg.Harvest.UserAgent)
	registry := scanner.NewRegistry(
		pastebin.NewArchiveScanner(client),
		pastebin.NewSearchScanner(client, baseLogger.With("component", "scanner.search")),
	)
	source := pastebin.NewStrategySource(registry, cfg.Sources, cfg.Harvest.MaxKeysPerCycle, baseLogger.With("component", "source"))
	a.fetcher = pastebin.NewFetcher(client)

	var enhancer enhance.Enhancer = enhance.Disabled{}
	if cfg.LLM.Enabled() {
		enhancer = enhance.NewLLM(llm.NewClient(cfg.LLM, nil), baseLogger)
	} else {
		baseLogger.Info("llm enhancement disabled, using the pattern matcher only")
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	a.harvester = usecase.NewHarvester(usecase.HarvesterDeps{
		Source:    source,
		Fetcher:   a.fetcher,
		Annotator: enhance.NewPipeline(enhancer, baseLogger),
		Store:     store,
		Notifier:  notifier,
		Dataset:   dataset,
		Delay:     cfg.Harvest.Delay,
		Logger:    baseLogger,
	})
	return a, nil
}

// Harvester exposes the harvest driver.
func (a *Application) Harvester() *usecase.Harvester {
	return a.harvester
}

// RunOnce performs a single harvest cycle.
func (a *Application) RunOnce(ctx context.Context) (usecase.CycleReport, error) {
	return a.harvester.Cycle(ctx)
}

// HarvestKeys harvests the given pastes with the configured delay between
// them and saves the dataset once.
func (a *Application) HarvestKeys(ctx context.Context, keys []string) ([]usecase.KeyResult, error) {
	return a.harvester.HarvestKeys(ctx, keys)
}

// RunForever runs a cycle immediately and then on every interval until ctx
// is cancelled. The status API is served alongside when configured. On
// shutdown the running cycle stops after its current paste and saves.
func (a *Application) RunForever(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	driver := scheduler.NewIntervalScheduler(a.cfg.Harvest.Interval)
	sched := usecase.NewScheduler(driver, a.harvester, a.logger)
	if err := sched.Start(gctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("harvester running", "interval", a.cfg.Harvest.Interval, "delay", a.cfg.Harvest.Delay)

	var api *httpapi.Server
	if a.cfg.API.Listen != "" {
		api = httpapi.NewServer(httpapi.Options{
			Listen:    a.cfg.API.Listen,
			State:     a.harvester,
			SourceURL: a.fetcher.SourceURL,
			Proxies:   a.proxies,
			Logger:    a.logger,
		})
		g.Go(func() error {
			if err := api.ListenAndServe(); err != nil {
				return fmt.Errorf("status api: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		var errs []error
		if api != nil {
			errs = append(errs, api.Shutdown(stopCtx))
		}
		errs = append(errs, sched.Stop(stopCtx))
		return errors.Join(errs...)
	})

	return g.Wait()
}

// Close releases the store and stops an embedded Tor daemon.
func (a *Application) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.tor != nil {
		errs = append(errs, a.tor.Stop())
	}
	return errors.Join(errs...)
}

// buildHTTPClient selects the outbound route for paste site traffic: rotating
// proxies, Tor, or a direct connection.
func (a *Application) buildHTTPClient(ctx context.Context) (*http.Client, error) {
	timeout := a.cfg.Harvest.Timeout

	switch {
	case a.cfg.Proxy.Enabled:
		list, err := a.loadProxies(ctx)
		if err != nil {
			return nil, err
		}
		a.proxies = proxy.NewPool(list)
		rt := proxy.NewRotatingTransport(a.proxies, a.cfg.Proxy.MaxRetries, a.logger)
		a.logger.Info("proxy rotation enabled", "proxies", len(list), "maxRetries", a.cfg.Proxy.MaxRetries)
		return &http.Client{Transport: rt, Timeout: proxyClientTimeout(timeout, a.cfg.Proxy.MaxRetries)}, nil

	case a.cfg.Tor.Enabled:
		gw, err := tor.NewGateway(tor.Options{
			Embedded:       a.cfg.Tor.Embedded,
			SocksAddr:      a.cfg.Tor.SocksAddr,
			StartupTimeout: a.cfg.Tor.StartupTimeout,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		if err := gw.Start(ctx); err != nil {
			return nil, err
		}
		a.tor = gw
		transport, err := gw.Transport()
		if err != nil {
			return nil, err
		}
		return &http.Client{Transport: transport, Timeout: timeout}, nil

	default:
		return &http.Client{Timeout: timeout}, nil
	}
}

func (a *Application) loadProxies(ctx context.Context) ([]string, error) {
	list := append([]string(nil), a.cfg.Proxy.Proxies...)
	if a.cfg.Proxy.File != "" {
		fromFile, err := proxy.LoadFile(a.cfg.Proxy.File)
		if err != nil {
			return nil, err
		}
		list = append(list, fromFile...)
	}
	if len(list) == 0 {
		return nil, config.ErrNoProxies
	}
	if !a.cfg.Proxy.CheckOnStart {
		return list, nil
	}

	working, err := proxy.Checker{
		TestURL: a.cfg.Proxy.TestURL,
		Workers: a.cfg.Proxy.CheckWorkers,
		Logger:  a.logger,
	}.Check(ctx, list)
	if err != nil {
		return nil, fmt.Errorf("check proxies: %w", err)
	}
	if len(working) == 0 {
		return nil, fmt.Errorf("%w: none of %d proxies passed the check", config.ErrNoProxies, len(list))
	}
	return working, nil
}

// proxyClientTimeout leaves room for every retry and its backoff.
func proxyClientTimeout(perRequest time.Duration, retries int) time.Duration {
	if retries < 1 {
		retries = 1
	}
	return time.Duration(retries) * (perRequest + 30*time.Second)
}
