package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"imposter/internal/config"
	"imposter/internal/db"
	"imposter/internal/events"
	"imposter/internal/game"
	"imposter/internal/metrics"
	"imposter/internal/relay"
	"imposter/internal/rooms"
	"imposter/internal/words"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ManagerOptions translates service settings into room manager options.
func ManagerOptions(cfg config.Config) rooms.Options {
	opts := rooms.DefaultOptions()
	opts.MaxRooms = cfg.MaxRooms
	opts.CodeLength = cfg.CodeLength
	opts.Rules = game.Rules{
		MaxPlayers:    cfg.MaxPlayers,
		AllowSelfVote: cfg.AllowSelfVote,
		AutoResolve:   cfg.AutoResolve,
	}
	opts.InactivityTimeout = cfg.InactivityTimeout
	opts.StaleTTL = cfg.StaleTTL
	opts.VotingTimeout = cfg.VotingTimeout
	opts.SweepInterval = cfg.SweepInterval
	return opts
}

// loadCatalog prefers the database word lists, seeding them from the
// embedded set on first start, and falls back to the embedded set.
func (s *Server) loadCatalog(ctx context.Context, database *db.DB) (*words.Catalog, error) {
	if database == nil {
		return words.Default()
	}
	defaults, err := words.DefaultCategories()
	if err != nil {
		return nil, err
	}
	if _, err := database.SeedCatalog(ctx, defaults); err != nil {
		s.log.Warn().Err(err).Msg("seeding word catalog failed, using embedded words")
		return words.Default()
	}
	cats, err := database.Categories(ctx)
	if err != nil || len(cats) == 0 {
		s.log.Warn().Err(err).Msg("loading word catalog failed, using embedded words")
		return words.Default()
	}
	return words.NewCatalog(cats, nil)
}

// watchRooms consumes room lifecycle events: closed rooms release their
// presence counts and, with a relay configured, opened rooms are mirrored.
func (s *Server) watchRooms(ctx context.Context, bus *events.Bus, mirror chan<- events.RoomEvent) {
	if mirror != nil {
		defer close(mirror)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-bus.Rooms:
			if ev.Kind == events.RoomClosed {
				s.Hub.Forget(ev.Code)
			}
			if mirror != nil {
				select {
				case mirror <- ev:
				default:
					s.log.Warn().Str("room", ev.Code).Msg("relay backlog full, event dropped")
				}
			}
		}
	}
}

func Run(ctx context.Context, cfg config.Config, version string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.New(reg)

	bus := events.NewBus()
	opts := ManagerOptions(cfg)
	opts.Metrics = rec
	opts.Bus = bus
	manager := rooms.NewManager(opts)

	srv := New(manager, nil)
	srv.Metrics = rec
	srv.Origins = cfg.AllowedOrigins
	srv.Version = version

	// Optional database connection
	if cfg.DatabaseURL != "" {
		dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		database, err := db.Connect(dbCtx, cfg.DatabaseURL)
		if err == nil {
			err = database.Migrate(dbCtx)
			if err != nil {
				database.Close()
			}
		}
		cancel()
		if err != nil {
			srv.log.Warn().Err(err).Msg("database unavailable, running with embedded words")
		} else {
			srv.DB = database
			defer database.Close()
		}
	} else {
		srv.log.Info().Msg("database url not set, running with embedded words")
	}

	catalog, err := srv.loadCatalog(ctx, srv.DB)
	if err != nil {
		return err
	}
	srv.Words = catalog

	var mirror chan events.RoomEvent
	if cfg.NatsURL != "" {
		rl, err := relay.Connect(cfg.NatsURL, cfg.NatsSubject)
		if err != nil {
			return err
		}
		defer rl.Close()
		mirror = make(chan events.RoomEvent, 64)
		go rl.Run(ctx, mirror, manager)
		srv.log.Info().Str("subject", cfg.NatsSubject).Msg("mirroring rooms to nats")
	}
	go srv.watchRooms(ctx, bus, mirror)
	go manager.Run(ctx)

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		srv.log.Info().Str("addr", cfg.Addr()).Str("version", version).Msg("listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		manager.Close()
		return err
	case <-ctx.Done():
	}

	srv.log.Info().Msg("shutting down")
	// closing the rooms ends every open stream so Shutdown can drain
	manager.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
