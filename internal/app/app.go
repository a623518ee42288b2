// Package app wires modwatch's components together: config, logging,
// storage, the portal client, the detector, the fanout and the poller.
package app

import (
	"context"
	"fmt"
	"time"

	"modwatch/internal/adapters/telegram"
	"modwatch/internal/config"
	"modwatch/internal/detector"
	"modwatch/internal/fanout"
	"modwatch/internal/feed"
	"modwatch/internal/poller"
	"modwatch/internal/storage"
	"modwatch/pkg/logx"
)

type App struct {
	cfgm  *config.Manager
	logs  *logx.Service
	log   logx.Logger
	store *storage.Store
	poll  *poller.Service

	watchCancel context.CancelFunc
	watchDone   chan struct{}
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, logSvc.Logger().With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	feedTimeout, err := config.ParseDurationOrDefault("feed.timeout", cfg.Feed.Timeout, 15*time.Second)
	if err != nil {
		return nil, err
	}
	retryMax := cfg.Feed.RetryMax
	if retryMax <= 0 {
		retryMax = 2
	}
	portal := feed.New(feed.Config{
		BaseURL:   cfg.Feed.BaseURL,
		AssetsURL: cfg.Feed.AssetsURL,
		Timeout:   feedTimeout,
		RetryMax:  uint64(retryMax),
	}, logSvc.Logger().With(logx.String("comp", "feed")))

	httpTimeout, err := config.ParseDurationOrDefault("telegram.http_timeout", cfg.Telegram.HTTPTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	sender, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		HTTPTimeout: httpTimeout,
	}, logSvc.Logger().With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	det := detector.New(portal, store, cfg.Poller.PageSize,
		logSvc.Logger().With(logx.String("comp", "detector")))

	sendTimeout, err := config.ParseDurationOrDefault("fanout.send_timeout", cfg.Fanout.SendTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	fan := fanout.New(fanout.Config{
		RatePerSec:  cfg.Fanout.RatePerSec,
		SendTimeout: sendTimeout,
		LinkBase:    cfg.Feed.BaseURL,
	}, store, sender, portal, logSvc.Logger().With(logx.String("comp", "fanout")))

	interval, err := config.ParseDurationOrDefault("poller.interval", cfg.Poller.Interval, poller.DefaultInterval)
	if err != nil {
		return nil, err
	}
	poll := poller.New(interval, det, fan,
		logSvc.Logger().With(logx.String("comp", "poller")))

	return &App{
		cfgm:  cfgm,
		logs:  logSvc,
		log:   log,
		store: store,
		poll:  poll,
	}, nil
}

// Store exposes the registry/snapshot handle for the command layer
// (setChannel, subscriptions, autocomplete listings).
func (a *App) Store() *storage.Store { return a.store }

func (a *App) Start(ctx context.Context) error {
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if cfg.Poller.PageSize < 0 {
			return fmt.Errorf("poller.page_size must be >= 0")
		}
		for _, f := range []struct{ path, raw string }{
			{"poller.interval", cfg.Poller.Interval},
			{"fanout.send_timeout", cfg.Fanout.SendTimeout},
			{"feed.timeout", cfg.Feed.Timeout},
			{"storage.busy_timeout", cfg.Storage.BusyTimeout},
			{"telegram.http_timeout", cfg.Telegram.HTTPTimeout},
		} {
			if _, err := config.ParseDurationField(f.path, f.raw); err != nil {
				return err
			}
		}
		return nil
	})
	// Logging is the hot-reloadable part; cadence or token changes need
	// a restart and are only validated here.
	a.cfgm.OnApply(func(cfg *config.Config) {
		a.logs.Apply(logx.Config{
			Level:   cfg.Logging.Level,
			Console: cfg.Logging.Console,
			File: logx.FileConfig{
				Enabled: cfg.Logging.File.Enabled,
				Path:    cfg.Logging.File.Path,
			},
		})
	})

	watchCtx, cancel := context.WithCancel(ctx)
	a.watchCancel = cancel
	a.watchDone = make(chan struct{})
	go func() {
		defer close(a.watchDone)
		if err := a.cfgm.Watch(watchCtx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	return a.poll.Start(ctx)
}

func (a *App) Stop(ctx context.Context) error {
	a.poll.Stop(ctx)

	if a.watchCancel != nil {
		a.watchCancel()
		select {
		case <-a.watchDone:
		case <-ctx.Done():
		}
	}

	err := a.store.Close()
	_ = a.logs.Close()
	return err
}
