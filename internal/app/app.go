// Package app wires configuration into a ready tracker. Both binaries
// build on it.
package app

import (
	"context"
	"errors"
	"fmt"

	"go-hiring-tracker/internal/browser"
	"go-hiring-tracker/internal/config"
	"go-hiring-tracker/internal/gate"
	"go-hiring-tracker/internal/lock"
	"go-hiring-tracker/internal/metrics"
	"go-hiring-tracker/internal/notify"
	"go-hiring-tracker/internal/region"
	"go-hiring-tracker/internal/scraper"
	"go-hiring-tracker/internal/scraper/attrax"
	"go-hiring-tracker/internal/scraper/greenhouse"
	"go-hiring-tracker/internal/snapshot"
	"go-hiring-tracker/internal/tracker"

	"go.uber.org/zap"
)

type App struct {
	Config   *config.Config
	Tracker  *tracker.Tracker
	Store    snapshot.Store
	Metrics  *metrics.Metrics
	Regions  region.Regions
	Notifier *notify.TelegramNotifier
	Log      *zap.Logger

	closers []func() error
}

// New builds every dependency named by cfg. Extra reporters receive each
// result after the notifier.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, reporters ...tracker.Reporter) (*App, error) {
	a := &App{
		Config:  cfg,
		Metrics: metrics.New(),
		Regions: region.Regions(cfg.Regions),
		Log:     log,
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, a.fail(err)
	}
	a.Store = store

	locker, err := a.openLocker(ctx)
	if err != nil {
		return nil, a.fail(err)
	}

	sources, err := a.sources()
	if err != nil {
		return nil, a.fail(err)
	}

	if cfg.Telegram.Enabled() {
		n, err := notify.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID, a.Regions, log)
		if err != nil {
			return nil, a.fail(err)
		}
		a.Notifier = n
		reporters = append([]tracker.Reporter{n}, reporters...)
		log.Info("🤖 Telegram notifier initialized")
	} else {
		log.Info("Telegram not configured, notifications disabled")
	}

	a.Tracker = tracker.New(sources, store, locker, tracker.Options{
		Gate: gate.Options{
			Threshold:       cfg.Completeness.Threshold,
			MaxAttempts:     cfg.Completeness.MaxAttempts,
			Backoff:         cfg.Completeness.Backoff,
			RequireLocation: cfg.Completeness.RequireLocation,
		},
		Policy:         cfg.CommitPolicy(),
		CommitDegraded: cfg.CommitDegraded,
		RunBudget:      cfg.RunBudget,
	}, a.Metrics, log, reporters...)

	return a, nil
}

func (a *App) openStore(ctx context.Context) (snapshot.Store, error) {
	switch a.Config.Store.Driver {
	case "postgres":
		pg, err := snapshot.ConnectPostgres(ctx, a.Config.Store.DatabaseURL, a.Log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { pg.Close(); return nil })
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		a.Log.Info("🐘 snapshot store: postgres")
		return pg, nil
	default:
		fs, err := snapshot.NewFileStore(a.Config.Store.Dir, a.Log)
		if err != nil {
			return nil, err
		}
		a.Log.Info("💾 snapshot store: files", zap.String("dir", a.Config.Store.Dir))
		return fs, nil
	}
}

func (a *App) openLocker(ctx context.Context) (lock.Locker, error) {
	switch a.Config.Lock.Driver {
	case "redis":
		client, err := lock.ConnectRedis(ctx, a.Config.Lock.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		a.Log.Info("🔒 lock: redis", zap.Duration("ttl", a.Config.Lock.TTL))
		return lock.NewRedisLocker(client, a.Config.Lock.TTL), nil
	default:
		a.Log.Info("🔒 lock: files", zap.String("dir", a.Config.Lock.Dir))
		return lock.NewFileLocker(a.Config.Lock.Dir)
	}
}

func (a *App) sources() (scraper.Registry, error) {
	cfg := a.Config

	cookies, err := browser.LoadCookies(cfg.Browser.CookiesFile)
	if err != nil {
		return nil, err
	}
	launcher := browser.NewLauncher(browser.Options{
		Headless: *cfg.Browser.Headless,
		Cookies:  cookies,
	}, a.Log)
	shots := browser.NewScreenshotDebugger(cfg.Browser.ScreenshotDir, a.Log)

	return scraper.NewRegistry(
		attrax.NewAttraxScraper(launcher, shots, attrax.Options{
			Selectors:     cfg.Browser.Selectors,
			NavTimeout:    cfg.Browser.NavTimeout,
			DetailTimeout: cfg.Browser.DetailTimeout,
			PageSettle:    cfg.Browser.PageSettle,
			MaxPages:      cfg.Browser.MaxPages,
			Denylist:      cfg.BreadcrumbDenylist,
		}, a.Log),
		greenhouse.NewGreenhouseScraper(cfg.Greenhouse.Timeout, a.Log),
	), nil
}

func (a *App) fail(err error) error {
	return errors.Join(fmt.Errorf("init: %w", err), a.Close())
}

// Close releases connections opened by New.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
