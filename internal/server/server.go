// Package server orchestrates all components: NATS client, optional Postgres journal, bridge,
// NATS call servers and the HTTP status endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/native-bridge/internal/config"
	"github.com/morezero/native-bridge/pkg/bootstrap"
	"github.com/morezero/native-bridge/pkg/bridge"
	"github.com/morezero/native-bridge/pkg/commsutil"
	"github.com/morezero/native-bridge/pkg/db"
	"github.com/morezero/native-bridge/pkg/engine"
	"github.com/morezero/native-bridge/pkg/engine/gojaengine"
	"github.com/morezero/native-bridge/pkg/journal"
	"github.com/morezero/native-bridge/pkg/metrics"
	"github.com/morezero/native-bridge/pkg/natsbridge"
)

const logPrefix = "server:server"

// Server is the native-bridge orchestrator.
type Server struct {
	cfg        *config.Config
	subjects   bootstrap.Subjects
	nc         *comms.Conn
	pool       *pgxpool.Pool
	pgRecorder *journal.PgRecorder
	metrics    *metrics.Metrics
	bridge     *bridge.Bridge
	inbound    *natsbridge.InboundServer
	outbound   *natsbridge.OutboundServer
	httpServer *http.Server
}

// Run starts the server, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	slog.SetDefault(newLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout))

	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Starting native-bridge (engine=%s)", logPrefix, cfg.Engine))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &Server{cfg: cfg}
	if err := s.start(ctx); err != nil {
		s.shutdown(context.Background())
		return err
	}

	slog.Info(fmt.Sprintf("%s - Native-bridge is ready", logPrefix))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	s.shutdown(shutdownCtx)

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

// start brings components up in dependency order. On error the caller runs shutdown, which
// tolerates partially started servers.
func (s *Server) start(ctx context.Context) error {
	cfg := s.cfg

	// Step 1: Load bootstrap config; environment overrides win
	bootstrapCfg, err := bootstrap.LoadBootstrapConfig(cfg.BootstrapFile)
	if err != nil {
		return fmt.Errorf("%s - failed to load bootstrap config: %w", logPrefix, err)
	}
	resolved := bootstrap.CreateResolvedBootstrap(bootstrapCfg.WithRelayTags(cfg.RelayTags))
	s.subjects = bootstrap.MergeBootstrapConfigs(bootstrapCfg, &bootstrap.BootstrapConfig{
		Subjects: bootstrap.Subjects{
			Inbound:  cfg.InboundSubject,
			Outbound: cfg.OutboundSubject,
			Script:   cfg.ScriptSubject,
			Journal:  cfg.JournalSubject,
		},
	}).Subjects
	slog.Info(fmt.Sprintf("%s - Bootstrap %s@%s", logPrefix, resolved.Name(), resolved.Version()))

	// Step 2: Connect to NATS
	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
	}
	s.nc = nc
	slog.Info(fmt.Sprintf("%s - Connected to NATS at %s", logPrefix, cfg.COMMSURL))

	// Step 3: Optional Postgres journal
	recorders := journal.MultiRecorder{journal.NewCommsRecorder(nc, &journal.CommsRecorderOpts{Subject: s.subjects.Journal})}
	if cfg.JournalEnabled() {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
		}
		s.pool = pool

		if cfg.RunMigrations {
			migrations, err := db.LoadMigrationFiles(cfg.MigrationPath)
			if err != nil {
				return fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
			}
			applied, err := db.RunMigrations(ctx, pool, migrations)
			if err != nil {
				return fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
			}
			slog.Info(fmt.Sprintf("%s - Applied %d migration(s)", logPrefix, len(applied)))
		}

		s.pgRecorder = journal.NewPgRecorder(db.NewCallStore(pool), nil)
		recorders = append(recorders, s.pgRecorder)
	}

	// Step 4: Script engine
	eng, err := s.newEngine()
	if err != nil {
		return err
	}

	// Step 5: Bridge
	s.metrics = metrics.New()
	b, err := bridge.New(bridge.Params{
		Engine:            eng,
		MaxWorkers:        cfg.WorkerMax,
		VersionConstraint: cfg.VersionConstraint,
		Metrics:           s.metrics,
		Journal:           recorders,
	})
	if err != nil {
		return fmt.Errorf("%s - failed to create bridge: %w", logPrefix, err)
	}
	s.bridge = b
	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("%s - failed to start bridge: %w", logPrefix, err)
	}

	// Step 6: Relay receivers
	for _, tag := range resolved.RelayTags() {
		relay := natsbridge.NewRelayReceiverOn(nc, tag, resolved.Relay(tag).Subject)
		if !b.Register(tag, relay) {
			return fmt.Errorf("%s - failed to register relay receiver %q", logPrefix, tag)
		}
		slog.Info(fmt.Sprintf("%s - Relaying %q to %s", logPrefix, tag, relay.Subject()))
	}

	// Step 7: Load the application script into the embedded engine
	if cfg.ScriptFile != "" {
		src, err := os.ReadFile(cfg.ScriptFile)
		if err != nil {
			return fmt.Errorf("%s - failed to read script %s: %w", logPrefix, cfg.ScriptFile, err)
		}
		if err := b.RunScript(ctx, string(src)); err != nil {
			return fmt.Errorf("%s - failed to run script %s: %w", logPrefix, cfg.ScriptFile, err)
		}
		slog.Info(fmt.Sprintf("%s - Loaded script %s", logPrefix, cfg.ScriptFile))
	}

	// Step 8: NATS call servers
	s.inbound = natsbridge.NewInboundServer(nc, s.subjects.Inbound, b)
	if err := s.inbound.Start(); err != nil {
		return err
	}
	s.outbound = natsbridge.NewOutboundServer(nc, s.subjects.Outbound, b)
	if err := s.outbound.Start(); err != nil {
		return err
	}

	// Step 9: HTTP status server
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: s.routes(),
	}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()
	return nil
}

func (s *Server) newEngine() (engine.Engine, error) {
	switch s.cfg.Engine {
	case config.EngineGoja:
		eng, err := gojaengine.New(&gojaengine.Options{Timeout: s.cfg.ScriptTimeout})
		if err != nil {
			return nil, fmt.Errorf("%s - failed to create goja engine: %w", logPrefix, err)
		}
		return eng, nil
	default:
		p := natsbridge.NewScriptPublisher(s.nc, s.subjects.Script)
		slog.Info(fmt.Sprintf("%s - Publishing script to %s", logPrefix, p.Subject()))
		return p, nil
	}
}

// shutdown stops components in reverse start order.
func (s *Server) shutdown(ctx context.Context) {
	if s.inbound != nil {
		if err := s.inbound.Stop(); err != nil {
			slog.Warn(fmt.Sprintf("%s - inbound stop: %v", logPrefix, err))
		}
	}
	if s.outbound != nil {
		if err := s.outbound.Stop(); err != nil {
			slog.Warn(fmt.Sprintf("%s - outbound stop: %v", logPrefix, err))
		}
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - HTTP shutdown: %v", logPrefix, err))
		}
	}
	if s.bridge != nil {
		if err := s.bridge.Close(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - bridge close: %v", logPrefix, err))
		}
	}
	if s.pgRecorder != nil {
		if err := s.pgRecorder.Close(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - journal close: %v", logPrefix, err))
		}
		if n := s.pgRecorder.Dropped(); n > 0 {
			slog.Warn(fmt.Sprintf("%s - journal dropped %d entries", logPrefix, n))
		}
	}
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			slog.Warn(fmt.Sprintf("%s - NATS drain: %v", logPrefix, err))
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}
