// Package server orchestrates all components: station listener, sessions,
// NATS client, DB, command ingress and the HTTP ops endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/morezero/ocpp-central-system/internal/config"
	"github.com/morezero/ocpp-central-system/pkg/bootstrap"
	"github.com/morezero/ocpp-central-system/pkg/catalog"
	"github.com/morezero/ocpp-central-system/pkg/commands"
	"github.com/morezero/ocpp-central-system/pkg/commsutil"
	"github.com/morezero/ocpp-central-system/pkg/csms"
	"github.com/morezero/ocpp-central-system/pkg/db"
	"github.com/morezero/ocpp-central-system/pkg/dispatcher"
	"github.com/morezero/ocpp-central-system/pkg/events"
	"github.com/morezero/ocpp-central-system/pkg/metrics"
	"github.com/morezero/ocpp-central-system/pkg/session"
	"github.com/morezero/ocpp-central-system/pkg/transport"
)

const logPrefix = "server:server"

const shutdownTimeout = 10 * time.Second

// stationDirectory lists connected stations. *session.Manager satisfies it.
type stationDirectory interface {
	Stations() []string
}

// pinger checks the database. *db.Repository satisfies it.
type pinger interface {
	Ping(ctx context.Context) error
}

// connStatus reports the NATS connection state. *comms.Conn satisfies it.
type connStatus interface {
	IsConnected() bool
}

// Server is the ocpp-central-system orchestrator.
type Server struct {
	cfg      *config.Config
	nc       *comms.Conn
	pool     *pgxpool.Pool
	stations stationDirectory
	database pinger
	comms    connStatus

	wsServer   *http.Server
	httpServer *http.Server
}

// Run starts the server, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	setupLogging(cfg.LogLevel)
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Starting ocpp-central-system", logPrefix))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &Server{cfg: cfg}
	defer s.closeConnections()

	// Step 1: Load seed config
	seed, err := bootstrap.LoadSeedConfig(cfg.SeedFile)
	if err != nil {
		return fmt.Errorf("%s - failed to load seed config: %w", logPrefix, err)
	}

	// Step 2: Connect to NATS
	var publisher events.EventPublisher = &events.NoOpPublisher{}
	if cfg.COMMSEnabled {
		nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
		if err != nil {
			return fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
		}
		s.nc, s.comms = nc, nc
		publisher = events.NewCommsPublisher(nc, &events.CommsPublisherOpts{SubjectPrefix: cfg.EventSubjectPrefix})
		slog.Info(fmt.Sprintf("%s - Connected to NATS at %s", logPrefix, cfg.COMMSURL))
	} else {
		slog.Info(fmt.Sprintf("%s - COMMS disabled, events and command ingress are off", logPrefix))
	}

	// Step 3: Open the store
	store, journalStore, err := s.openStore(ctx, seed)
	if err != nil {
		return err
	}

	// Step 4: Wire handlers, journal and sessions
	metrics.RegisterMetrics()
	journal := csms.NewJournal(journalStore, publisher, cfg.JournalQueue)
	defer journal.Close()

	cat := catalog.New()
	reg := dispatcher.NewRegistry(cat)
	csms.NewService(store, csms.Config{
		HeartbeatInterval:   cfg.HeartbeatInterval,
		AcceptUnknownTags:   cfg.AcceptUnknownTags,
		DataTransferVendors: cfg.DataTransferVendors,
	}).Register(reg)

	mgr := session.NewManager(reg, session.Config{
		CallTimeout:   cfg.CallTimeout,
		MaxIDAttempts: cfg.MaxIDAttempts,
		Observer:      journal,
	})
	s.stations = mgr

	// Step 5: Station listener
	ws, err := transport.NewServer(mgr, transport.Options{
		PathPrefix:         cfg.PathPrefix,
		SubprotocolRange:   cfg.SubprotocolRange,
		RequireSubprotocol: cfg.RequireSubprotocol,
		PingInterval:       cfg.PingInterval,
	})
	if err != nil {
		return fmt.Errorf("%s - failed to create station listener: %w", logPrefix, err)
	}
	s.wsServer = &http.Server{Addr: cfg.ListenAddr, Handler: ws}
	go func() {
		slog.Info(fmt.Sprintf("%s - Station listener on %s%s{stationId}", logPrefix, cfg.ListenAddr, cfg.PathPrefix))
		if err := s.wsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error(fmt.Sprintf("%s - station listener error: %v", logPrefix, err))
		}
	}()

	// Step 6: Command ingress
	var listener *commands.Listener
	if s.nc != nil {
		handler := commands.NewHandler(csms.NewCommands(mgr, cat), mgr)
		listener, err = commands.Listen(s.nc, cfg.CommandSubject, handler, cfg.CommandTimeout)
		if err != nil {
			_ = s.wsServer.Close()
			mgr.CloseAll()
			return err
		}
	}

	// Step 7: Start HTTP ops server
	httpAddr := cfg.OpsAddr()
	s.httpServer = &http.Server{Addr: httpAddr, Handler: s.opsHandler()}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP ops server listening on %s", logPrefix, httpAddr))
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	slog.Info(fmt.Sprintf("%s - Central system is ready", logPrefix))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	// Graceful shutdown: stop taking commands, then stations, then flush
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, shutdownTimeout)
	defer shutdownCancel()
	if listener != nil {
		if err := listener.Close(); err != nil {
			slog.Warn(fmt.Sprintf("%s - failed to unsubscribe commands: %v", logPrefix, err))
		}
	}
	_ = s.wsServer.Shutdown(shutdownCtx)
	mgr.CloseAll()
	_ = s.httpServer.Shutdown(shutdownCtx)

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

// openStore connects to PostgreSQL when DATABASE_URL is set and keeps state
// in memory otherwise. The seed config is applied to either.
func (s *Server) openStore(ctx context.Context, seed *bootstrap.SeedConfig) (csms.Store, csms.JournalStore, error) {
	if !s.cfg.PersistenceEnabled() {
		slog.Warn(fmt.Sprintf("%s - DATABASE_URL not set, keeping state in memory", logPrefix))
		mem := csms.NewMemoryStore()
		mem.Seed(seed)
		return mem, mem, nil
	}

	pool, err := db.NewPool(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
	}
	s.pool = pool

	if s.cfg.RunMigrations {
		files, err := db.LoadMigrationFiles(s.cfg.MigrationPath)
		if err != nil {
			return nil, nil, fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
		}
		if err := db.RunMigrations(ctx, pool, files); err != nil {
			return nil, nil, fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
		}
	} else if ok, err := db.SchemaApplied(ctx, pool); err == nil && !ok {
		slog.Warn(fmt.Sprintf("%s - schema not found; run 'centralsystem migrate up' or set RUN_MIGRATIONS=true", logPrefix))
	}

	if err := db.Seed(ctx, pool, seed); err != nil {
		return nil, nil, fmt.Errorf("%s - failed to seed: %w", logPrefix, err)
	}

	repo := db.NewRepository(pool)
	s.database = repo
	return repo, repo, nil
}

func (s *Server) closeConnections() {
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			s.nc.Close()
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

func setupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

// HealthOutput is the /health response.
type HealthOutput struct {
	Status    string       `json:"status"`
	Timestamp string       `json:"timestamp"`
	Stations  int          `json:"stations"`
	Checks    HealthChecks `json:"checks"`
}

// HealthChecks holds the individual dependency checks. Database is "memory"
// when no database is configured; Comms is "disabled" without NATS.
type HealthChecks struct {
	Database string `json:"database"`
	Comms    string `json:"comms"`
}

// Health checks the database and NATS connection.
func (s *Server) Health(ctx context.Context) *HealthOutput {
	out := &HealthOutput{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    HealthChecks{Database: "memory", Comms: "disabled"},
	}
	if s.stations != nil {
		out.Stations = len(s.stations.Stations())
	}
	if s.database != nil {
		out.Checks.Database = "ok"
		if err := s.database.Ping(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - database health check failed: %v", logPrefix, err))
			out.Checks.Database = "failed"
			out.Status = "unhealthy"
		}
	}
	if s.comms != nil {
		out.Checks.Comms = "ok"
		if !s.comms.IsConnected() {
			out.Checks.Comms = "failed"
			out.Status = "unhealthy"
		}
	}
	return out
}

func (s *Server) opsHandler() http.Handler {
	healthTimeout := s.cfg.HealthCheckTimeout
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		healthCtx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		h := s.Health(healthCtx)
		w.Header().Set("Content-Type", "application/json")
		if h.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(h)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})
	mux.HandleFunc("/stations", s.handleStations)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ids := []string{}
	if s.stations != nil {
		ids = append(ids, s.stations.Stations()...)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"stations": ids, "count": len(ids)})
}
