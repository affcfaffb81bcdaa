// Package runtime wires configuration into a running castforge daemon:
// telemetry, the episode pipeline, the library ledger, the optional
// message bus, and the HTTP surface.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/castforge/castforge/internal/bus"
	"github.com/castforge/castforge/internal/config"
	"github.com/castforge/castforge/internal/library"
	"github.com/castforge/castforge/internal/natsserver"
	"github.com/castforge/castforge/internal/service"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ledger      *library.Store
	busClient   *bus.Client
	episodeSvc  *service.Service
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	pipe, err := BuildOrchestrator(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	ledger, err := library.Open(ctx, r.cfg.Library, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open episode library: %w", err)
	}
	r.ledger = ledger
	defer func() {
		if err := r.ledger.Close(); err != nil {
			r.logger.Error("library close error", slog.String("error", err.Error()))
		}
	}()

	var embedded *natsserver.EmbeddedServer
	if r.cfg.Bus.Enabled {
		embedded, err = natsserver.Start(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("failed to start embedded bus: %w", err)
		}
		defer embedded.Shutdown()

		busCfg := r.cfg.Bus
		if embedded != nil {
			busCfg.Servers = []string{fmt.Sprintf("nats://localhost:%d", busCfg.Port)}
		}
		r.busClient, err = bus.Connect(ctx, busCfg, r.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to bus: %w", err)
		}
		defer r.busClient.Close()

		r.episodeSvc = service.New(ctx, r.busClient, r.ledger, pipe, r.logger)
		if err := r.episodeSvc.Start(); err != nil {
			return fmt.Errorf("failed to start episode service: %w", err)
		}
		defer r.episodeSvc.Close()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	mux.HandleFunc("/api/episodes", r.handleEpisodes)
	mux.Handle("/episodes/", http.StripPrefix("/episodes/",
		http.FileServer(http.Dir(r.cfg.Pipeline.OutputDir))))
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.Bool("bus", r.cfg.Bus.Enabled),
		slog.String("synthesis_mode", r.cfg.Synthesis.Mode))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	ready := r.ready.Load()
	if ready && r.cfg.Bus.Enabled {
		ready = r.busClient.Healthy() && r.episodeSvc.Healthy()
	}
	if ready {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

func (r *Runtime) handleEpisodes(w http.ResponseWriter, req *http.Request) {
	episodes, err := r.ledger.List(req.Context(), 100)
	if err != nil {
		r.logger.Error("library list failed", slog.String("error", err.Error()))
		http.Error(w, "library unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(episodes); err != nil {
		r.logger.Error("episode list encode failed", slog.String("error", err.Error()))
	}
}
