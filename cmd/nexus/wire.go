package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/nexus-canvas/internal/adapters/driven/codec"
	configfile "github.com/custodia-labs/nexus-canvas/internal/adapters/driven/config/file"
	"github.com/custodia-labs/nexus-canvas/internal/adapters/driven/config/validate"
	"github.com/custodia-labs/nexus-canvas/internal/adapters/driven/metrics"
	"github.com/custodia-labs/nexus-canvas/internal/adapters/driven/scheduler"
	"github.com/custodia-labs/nexus-canvas/internal/adapters/driven/storage/file"
	"github.com/custodia-labs/nexus-canvas/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/nexus-canvas/internal/adapters/driven/storage/queue"
	"github.com/custodia-labs/nexus-canvas/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/nexus-canvas/internal/adapters/driving/cli"
	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
	"github.com/custodia-labs/nexus-canvas/internal/core/ports/driven"
	"github.com/custodia-labs/nexus-canvas/internal/core/ports/driving"
	"github.com/custodia-labs/nexus-canvas/internal/core/services"
	"github.com/custodia-labs/nexus-canvas/internal/logger"
)

const metricsNamespace = "nexus"

// wire builds the services for the parsed global flags.
func wire(opts cli.Options) (*cli.Services, error) {
	configStore, err := configfile.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return nil, err
	}
	settingsService := services.NewSettingsService(configStore, validate.New())

	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	if opts.DataDir != "" {
		settings.Storage.DataDir = opts.DataDir
	}
	if err := settingsService.Validate(); err != nil {
		logger.Warn("invalid settings, using defaults where needed: %v", err)
	}

	b, err := openBackend(settings.Storage)
	if err != nil {
		return nil, err
	}
	return b.services(settings, settingsService)
}

// backend is an opened project store and what is needed to release it.
type backend struct {
	store   driven.ProjectStore
	watcher cli.ProjectWatcher
	closers []func(ctx context.Context) error
}

func openBackend(cfg domain.StorageSettings) (*backend, error) {
	b := &backend{}
	switch cfg.Backend {
	case domain.StorageMemory:
		b.store = memory.NewProjectStore()

	case domain.StorageSQLite:
		db, err := sqlite.NewStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		logger.Debug("storage: sqlite at %s", db.Path())
		b.store = db.ProjectStore()
		b.closers = append(b.closers, func(context.Context) error { return db.Close() })

	default:
		files, err := file.NewStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening file store: %w", err)
		}
		logger.Debug("storage: files in %s", files.Dir())
		b.store = files
		b.watcher = files
	}

	if cfg.WriteBehind && cfg.Backend != domain.StorageMemory {
		q := queue.New(b.store, queue.DefaultConfig())
		b.store = q
		// Flush before the underlying store closes.
		b.closers = append([]func(context.Context) error{q.Close}, b.closers...)
	}
	return b, nil
}

func (b *backend) services(settings *domain.AppSettings, settingsService driving.SettingsService) (*cli.Services, error) {
	historyCodec, err := codec.New(settings.History.Codec)
	if err != nil {
		logger.Warn("history compaction disabled: %v", err)
		historyCodec = nil
	}
	sched := scheduler.New()
	collector := metrics.NewCollector(metricsNamespace)

	closers := b.closers
	closers = append(closers, func(context.Context) error {
		sched.Stop()
		if z, ok := historyCodec.(*codec.Zstd); ok {
			z.Close()
		}
		return nil
	})

	canvasSettings := settings.Canvas
	store := b.store
	return &cli.Services{
		Projects: services.NewProjectService(store, canvasSettings),
		Settings: settingsService,
		NewCanvas: func() driving.CanvasService {
			return services.NewCanvas(canvasSettings, store, sched, historyCodec, collector)
		},
		Watcher: b.watcher,
		Metrics: collector.Handler(),
		Close: func(ctx context.Context) error {
			var errs []error
			for _, c := range closers {
				errs = append(errs, c(ctx))
			}
			return errors.Join(errs...)
		},
	}, nil
}
