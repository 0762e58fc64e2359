package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/authsession/internal/logging"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func bootstrapMetricsServer(addr string, health func(context.Context) error, l logging.Logger) *http.Server {
	ms := createMetricsServer(addr, health)

	go func() {
		l.Info(context.Background(), "metrics listening", "addr", addr)
		if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error(context.Background(), "metrics server error", "error", err)
		}
	}()

	return ms
}

func createMetricsServer(addr string, health func(context.Context) error) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		if err := health(ctx); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
}
