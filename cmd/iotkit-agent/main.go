// iotkit-agent exposes a Prometheus endpoint for one platform account:
// device counts by status plus the client's own request metrics.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/open-iot-service-platform/go-iotkit/iotkit"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	httpAddr := envOrDefault("IOTKIT_AGENT_HTTP_ADDR", ":8080")
	accountID := os.Getenv("IOTKIT_ACCOUNT_ID")
	if accountID == "" {
		log.Fatal().Msg("IOTKIT_ACCOUNT_ID is required")
	}

	cfg := iotkit.ConfigFromEnv()
	if cfg.Username == "" || cfg.Password == "" {
		log.Fatal().Msg("IOTKIT_USERNAME and IOTKIT_PASSWORD are required")
	}
	client, err := iotkit.NewClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("new client")
	}

	authCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := client.Authenticate(authCtx, cfg.Username, cfg.Password); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("authenticate")
	}
	cancel()

	account := client.Account(accountID, os.Getenv("IOTKIT_ACCOUNT_NAME"))
	collector := iotkit.NewDeviceCollector(account)

	registry := prometheus.NewRegistry()
	registry.MustRegister(iotkit.MetricsCollectors()...)
	registry.MustRegister(collector)
	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "iotkit_agent_build_info",
		Help: "Build information",
	}, func() float64 { return 1 }))

	httpMux := http.NewServeMux()
	httpMux.HandleFunc("/health", healthHandler(collector))
	httpMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// WriteTimeout leaves room for the collector's 10s inventory scrape.
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           httpMux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", httpAddr).Str("account", accountID).Msg("serving metrics")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http serve")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}

// healthHandler reports liveness tied to the device collector: once a
// scrape fails (stale token, unreachable platform) the agent answers
// 503 so an orchestrator can restart it.
func healthHandler(collector *iotkit.DeviceCollector) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if !collector.Healthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("degraded"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
