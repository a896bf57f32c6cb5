// Package app wires configuration, storage, the event bus and the record
// manager into one object that front ends receive explicitly.
package app

import (
	"context"
	"fmt"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/idilsaglam/tasklist/internal/config"
	"github.com/idilsaglam/tasklist/internal/events"
	"github.com/idilsaglam/tasklist/internal/manager"
	"github.com/idilsaglam/tasklist/internal/store"
	"github.com/idilsaglam/tasklist/internal/store/badgerkv"
	"github.com/idilsaglam/tasklist/internal/store/rediskv"
	"github.com/idilsaglam/tasklist/internal/validate"
)

type App struct {
	Config  config.Config
	Logger  *log.Logger
	Bus     *events.Bus
	Gateway *store.Gateway
	Records *store.RecordStore
	Manager *manager.Manager
}

// New builds an App. A backend that cannot be opened does not fail New: the
// gateway falls back to memory and publishes storage-unavailable, which
// the subscribe funcs get to see because they run before the probe.
func New(ctx context.Context, cfg config.Config, logger *log.Logger, subscribe ...func(*events.Bus)) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	bus := events.NewBus(logger)
	for _, fn := range subscribe {
		fn(bus)
	}

	backend, err := OpenBackend(cfg, logger)
	if err != nil {
		backend = store.Unavailable(err)
	}
	gw := store.New(ctx, backend, store.Options{Quota: cfg.Quota, Bus: bus, Logger: logger})
	records := store.NewRecordStore(gw, cfg.Key)
	v := validate.New(validate.WithRules(validate.Rules{MaxLength: cfg.MaxLength}))
	m := manager.New(records, manager.Options{Validator: v, Bus: bus, Logger: logger})

	return &App{
		Config:  cfg,
		Logger:  logger,
		Bus:     bus,
		Gateway: gw,
		Records: records,
		Manager: m,
	}, nil
}

// OpenBackend opens the storage engine cfg names.
func OpenBackend(cfg config.Config, logger log.FieldLogger) (store.Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return store.NewMemory(), nil
	case config.BackendRedis:
		b, err := rediskv.Dial(cfg.RedisURL, "")
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		return b, nil
	case config.BackendBadger:
		dir := cfg.Path
		if dir == "" {
			d, err := config.Dir()
			if err != nil {
				return nil, err
			}
			dir = filepath.Join(d, "badger")
		}
		return badgerkv.Open(dir, logger)
	case config.BackendFile, "":
		path := cfg.Path
		if path == "" {
			p, err := store.DefaultPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		return store.NewFile(path), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// Start loads the stored list.
func (a *App) Start(ctx context.Context) error {
	return a.Manager.Initialize(ctx)
}

// Durable reports whether changes survive the process.
func (a *App) Durable() bool {
	return a.Gateway.Available() && a.Config.Backend != config.BackendMemory
}

func (a *App) Close() error {
	a.Manager.Close()
	return a.Gateway.Close()
}
