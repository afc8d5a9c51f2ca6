// Package main is the schedulerd entry point: a cobra-driven CLI that
// either runs the scheduler as a long-lived daemon (serve) or performs a
// single control operation against the same Store a running daemon uses
// (schedule-all, next-slot, custom-date, custom-interval, custom-window,
// redistribute, retry-failed, reschedule-from-today, overdue-list,
// overdue-reschedule, overdue-post-now, backup),
// mirroring how cli.RootCmd wires one shared set of services behind many
// cobra subcommands.
package main

import (
	"fmt"

	"github.com/castline/scheduler/internal/clock"
	"github.com/castline/scheduler/internal/config"
	"github.com/castline/scheduler/internal/dispatcher"
	"github.com/castline/scheduler/internal/lock"
	"github.com/castline/scheduler/internal/logging"
	"github.com/castline/scheduler/internal/media"
	"github.com/castline/scheduler/internal/monitor"
	"github.com/castline/scheduler/internal/publisher"
	"github.com/castline/scheduler/internal/session"
	"github.com/castline/scheduler/internal/store"
	"github.com/rs/zerolog"
)

// app bundles every wired component a subcommand needs. Built once per
// process invocation by newApp.
type app struct {
	cfg config.Config
	log zerolog.Logger

	st      store.Store
	media   media.Store
	locker  lock.Locker
	acl     *publisher.StoreACL
	pub     *publisher.RateLimitedAdapter
	disp    *dispatcher.Dispatcher
	mon     *monitor.Monitor
	clk     clock.Clock
	session *session.Manager
}

// newApp loads configuration and constructs every component, the way
// cli.runServer builds its RabbitMQ/CouchDB/JWT services before handing
// them to the HTTP layer.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logging.New(cfg.LogFormat, cfg.LogLevel)

	clk := clock.New(cfg.Timezone)

	pg, err := store.Open(cfg.DatabaseURL, cfg.Publisher.PoolSize, logging.Component(log, "store"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	mediaStore, err := media.NewLocalStore(cfg.UploadsDir)
	if err != nil {
		return nil, fmt.Errorf("open media store: %w", err)
	}

	locker, err := newLocker(cfg.RedisURL, logging.Component(log, "lock"))
	if err != nil {
		return nil, fmt.Errorf("open locker: %w", err)
	}

	acl := publisher.NewStoreACL(pg)
	transport := publisher.NewLoggingTransport(logging.Component(log, "transport"))
	pub := publisher.NewRateLimitedAdapter(transport, float64(cfg.Publisher.PoolSize), cfg.Publisher.PoolSize)

	disp := dispatcher.New(pg, pub, acl, mediaStore, clk, cfg.Dispatcher, cfg.Publisher.PoolSize, logging.Component(log, "dispatcher"))
	mon := monitor.New(pg, disp, pub, mediaStore, clk, locker, cfg.Monitor, logging.Component(log, "monitor"))

	sessCache, err := store.OpenSessionCache(cfg.UploadsDir + "/sessions.bolt")
	if err != nil {
		return nil, fmt.Errorf("open session cache: %w", err)
	}
	sessMgr := session.NewManager(pg, sessCache, logging.Component(log, "session"))

	return &app{
		cfg:     cfg,
		log:     log,
		st:      pg,
		media:   mediaStore,
		locker:  locker,
		acl:     acl,
		pub:     pub,
		disp:    disp,
		mon:     mon,
		clk:     clk,
		session: sessMgr,
	}, nil
}

// newLocker picks a RedisLocker when a Redis URL is configured, falling
// back to NoopLocker for a single-process deployment (internal/lock's
// own fallback convention).
func newLocker(redisURL string, log zerolog.Logger) (lock.Locker, error) {
	if redisURL == "" {
		log.Warn().Msg("no redis url configured, monitor jobs will not be cross-process safe")
		return lock.NoopLocker{}, nil
	}
	l, err := lock.NewRedisLocker(redisURL)
	if err != nil {
		return nil, err
	}
	return l, nil
}
