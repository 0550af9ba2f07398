package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/findelabs/proxima/internal/config"
	"github.com/findelabs/proxima/internal/logging"
	"github.com/findelabs/proxima/internal/metrics"
	"github.com/findelabs/proxima/internal/server"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// envOrDefault returns the process environment value for key, or def
// when unset or empty.
func envOrDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func main() {
	defaultPort := envOrDefault("LISTEN_PORT", "8080")
	defaultTimeout := envOrDefault("CONNECT_TIMEOUT", "60")

	var port int
	var timeoutSeconds int
	var configPath string

	flag.IntVar(&port, "port", atoiOrDefault(defaultPort, 8080), "listen port")
	flag.IntVar(&port, "p", atoiOrDefault(defaultPort, 8080), "listen port (shorthand)")
	flag.IntVar(&timeoutSeconds, "timeout", atoiOrDefault(defaultTimeout, 60), "HTTP server read/write timeout in seconds")
	flag.IntVar(&timeoutSeconds, "t", atoiOrDefault(defaultTimeout, 60), "HTTP server read/write timeout in seconds (shorthand)")
	flag.StringVar(&configPath, "config", "", "path to configuration file (required)")
	flag.StringVar(&configPath, "c", "", "path to configuration file (required, shorthand)")
	flag.Parse()

	if configPath == "" {
		fmt.Fprintln(os.Stderr, "proxima: --config/-c is required")
		os.Exit(2)
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	srv, err := server.New(configPath, collector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "proxima: failed to start: %v\n", err)
		os.Exit(1)
	}

	server.Version = version

	log, closer, err := logging.New(logging.Config{Level: "info", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "proxima: failed to init logging: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(log)
	if closer != nil {
		defer closer.Close()
	}

	watcher, err := config.NewWatcher(configPath)
	if err == nil {
		watcher.OnChange(func(*config.Config) {
			if err := srv.Reload(); err != nil {
				logging.Error("config watcher triggered reload but it failed", zap.Error(err))
			}
		})
		if err := watcher.Start(); err != nil {
			logging.Warn("config watcher failed to start", zap.Error(err))
		}
		defer watcher.Stop()
	} else {
		logging.Warn("config watcher unavailable", zap.Error(err))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/", srv.Handler())

	addr := ":" + strconv.Itoa(port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  time.Duration(timeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(timeoutSeconds) * time.Second,
	}

	logging.Info("starting proxima",
		zap.String("version", version),
		zap.String("build_time", buildTime),
		zap.String("addr", addr),
		zap.String("config", configPath),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logging.Error("server error", zap.Error(err))
		os.Exit(1)
	case <-sigCh:
		logging.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logging.Error("graceful shutdown failed", zap.Error(err))
		}
	}
}

func atoiOrDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
