package common

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// ServeMetrics exposes the prometheus registry on the given port.
// The returned function shuts the listener down.
func ServeMetrics(port uint16) (shutdown func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return ServeHTTP(port, mux)
}

// ServeHTTP serves mux on the given port in a background goroutine and
// returns a function that gracefully stops the server.
func ServeHTTP(port uint16, mux http.Handler) (shutdown func()) {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		log.Infof("serving http on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Errorf("http server on %s failed", srv.Addr)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Infof("stopping http server on %s", srv.Addr)
		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Warnf("failed to stop http server on %s cleanly", srv.Addr)
		}
	}
}
