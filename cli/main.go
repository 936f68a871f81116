package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := loadConfig()
	if err != nil {
		logrusLogger.Fatalf("error loading config: %v", err)
	}
	sampling := configureLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, sampling, logrusLogger)
	if err != nil {
		logrusLogger.Fatalf("error starting adminutils: %v", err)
	}
	defer a.close()

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           a.engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrusLogger.WithField("error", err.Error()).Warn("http shutdown failed")
		}
	}()

	logrusLogger.WithField("addr", cfg.Port).Info("adminutils listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logrusLogger.Fatal(err)
	}
}
