package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nisalabs/nisa-core/internal/bus"
	"github.com/nisalabs/nisa-core/internal/capture"
	"github.com/nisalabs/nisa-core/internal/completion"
	"github.com/nisalabs/nisa-core/internal/config"
	"github.com/nisalabs/nisa-core/internal/conversation"
	"github.com/nisalabs/nisa-core/internal/journal"
	"github.com/nisalabs/nisa-core/internal/natsserver"
	"github.com/nisalabs/nisa-core/internal/orchestrator"
	"github.com/nisalabs/nisa-core/internal/playback"
	"github.com/nisalabs/nisa-core/internal/synthesis"
)

// turnService is what the HTTP surface needs from the orchestrator service.
type turnService interface {
	Submit(utt conversation.Utterance) error
	Turns() []conversation.Turn
	Status() orchestrator.Status
	SessionID() string
}

// Runtime assembles the daemon: embedded bus, turn orchestrator, optional
// speech capture, journal, and the HTTP surface.
type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup

	natsServer *natsserver.EmbeddedServer
	busClient  *bus.Client
	store      *journal.Store
	turns      turnService
	orchSvc    *orchestrator.Service
	captureCtl *capture.Controller
	captureSvc *capture.Service
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings every service up, serves until ctx is cancelled, then shuts
// down in reverse order.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	ns, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("start embedded bus: %w", err)
	}
	r.natsServer = ns

	busCfg := r.cfg.Bus
	if busCfg.Embedded {
		busCfg.Servers = []string{fmt.Sprintf("nats://127.0.0.1:%d", busCfg.Port)}
	}
	busClient, err := bus.Connect(busCfg, r.logger)
	if err != nil {
		r.natsServer.Shutdown()
		return fmt.Errorf("connect to bus: %w", err)
	}
	r.busClient = busClient

	sessionID := uuid.NewString()

	store, err := journal.Open(ctx, r.cfg.Journal, sessionID, r.logger)
	if err != nil {
		r.teardown()
		return fmt.Errorf("open journal: %w", err)
	}
	r.store = store

	completer, err := completion.New(r.cfg.Completion)
	if err != nil {
		r.teardown()
		return fmt.Errorf("build completion backend: %w", err)
	}
	synth, err := synthesis.New(r.cfg.Synthesis)
	if err != nil {
		r.teardown()
		return fmt.Errorf("build synthesis backend: %w", err)
	}

	sink := playback.NewBusSink(busClient, sessionID, r.logger)
	orch := orchestrator.New(ctx, orchestrator.ConfigFrom(r.cfg), conversation.NewLog(), completer, synth, sink, r.logger)
	orch.SetRecorder(store)

	orchSvc := orchestrator.NewService(orch, busClient, sessionID, r.logger)
	if err := orchSvc.Start(); err != nil {
		orch.Close()
		r.teardown()
		return fmt.Errorf("start orchestrator: %w", err)
	}
	r.orchSvc = orchSvc
	r.turns = orchSvc

	if r.cfg.Capture.Enabled {
		recognizer, err := capture.NewRecognizer(r.cfg.Capture)
		if err != nil {
			r.teardown()
			return fmt.Errorf("build capture backend: %w", err)
		}
		ctl := capture.NewController(ctx, r.cfg.Capture, recognizer, orchSvc, r.logger)
		capSvc := capture.NewService(r.cfg.Capture, ctl, busClient)
		if err := capSvc.Start(); err != nil {
			ctl.Close()
			r.teardown()
			return fmt.Errorf("start capture: %w", err)
		}
		r.captureCtl = ctl
		r.captureSvc = capSvc
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}
	r.registerAPI(mux)

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
		slog.String("session_id", sessionID),
		slog.String("completion_mode", r.cfg.Completion.Mode),
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

	if r.captureSvc != nil {
		r.captureSvc.Close()
	}
	r.orchSvc.Close()
	r.teardown()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}
	return nil
}

// teardown releases bus and storage resources. Safe to call with partially
// initialized state.
func (r *Runtime) teardown() {
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Error("journal close error", slog.String("error", err.Error()))
		}
		r.store = nil
	}
	if r.busClient != nil {
		r.busClient.Close()
		r.busClient = nil
	}
	if r.natsServer != nil {
		r.natsServer.Shutdown()
		r.natsServer = nil
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	healthy := r.ready.Load() && r.busClient.Healthy() && r.orchSvc.Healthy()
	if r.captureSvc != nil {
		healthy = healthy && r.captureSvc.Healthy()
	}
	if healthy {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
