package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jzx17/procsim/internal/config"
	"github.com/jzx17/procsim/internal/logger"
	"github.com/jzx17/procsim/internal/metrics"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// startMetrics registers the exporter on a fresh registry and serves it on
// cfg.Addr until the returned stop function is called
func startMetrics(ctx context.Context, cfg config.MetricsConfig, log *logger.Logger) (*metrics.Exporter, func(), error) {
	reg := prom.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	exporter, err := metrics.NewExporter(cfg.Namespace, reg, metrics.Options{})
	if err != nil {
		return nil, nil, fmt.Errorf("registering metrics: %w", err)
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listening on %s: %w", cfg.Addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", err)
		}
	}()
	log.InfoCtx(ctx, "serving metrics", logger.F("addr", ln.Addr().String()))

	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("metrics server shutdown", err)
		}
	}
	return exporter, stop, nil
}
