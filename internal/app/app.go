package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/order-composer/internal/backend"
	"github.com/xenking/order-composer/internal/composer"
	"github.com/xenking/order-composer/internal/gateway"
	"github.com/xenking/order-composer/internal/lookup"
	"github.com/xenking/order-composer/pkg/dialog"
	"github.com/xenking/order-composer/pkg/health"
	"github.com/xenking/order-composer/pkg/httpmiddleware"
	"github.com/xenking/order-composer/pkg/notify"
)

// Build assembles the full gateway handler tree: backend client,
// session, lookup adapter, health probes and middleware. It is the
// single wiring point: the process-wide dialog gate and notification
// sink are constructed here once and injected by reference into
// everything that needs them. The integration suite hosts the returned
// handler directly; Run serves it.
func Build(ctx context.Context, lg *zap.Logger, cfg *Config, tp trace.TracerProvider) (http.Handler, *health.Service) {
	client := backend.New(backend.Config{
		BaseURL:        cfg.Backend.URL,
		Token:          cfg.Backend.Token,
		Timeout:        cfg.Backend.Timeout,
		RetryMax:       cfg.Backend.RetryMax,
		RetryBackoff:   cfg.Backend.RetryBackoff,
		TracerProvider: tp,
	}, lg.Named("backend"))

	// Process-wide singletons, reset only at session boundaries.
	notices := notify.NewSink()
	gate := dialog.NewGate()

	session := composer.NewSession(client, notices, lg.Named("composer"))
	searcher := lookup.New(client, notices, lg.Named("lookup"))

	healthSvc := health.New(client.Ping, 5*time.Second)
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	handlers := gateway.NewHandlers(session, searcher, gate, notices, lg.Named("gateway"))

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	handlers.Register(mux)

	return httpmiddleware.Wrap(mux,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowCredentials: cfg.CORS.AllowCredentials,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.LogRequests(),
	), healthSvc
}

// Run builds the gateway, starts its HTTP server, and handles graceful
// shutdown.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr), zap.String("backend", cfg.Backend.URL))

	handler, healthSvc := Build(ctx, lg, cfg, m.TracerProvider())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           handler,
	}

	// Graceful shutdown: wait for context cancellation, drain, stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
