// Command mockapi serves an in-memory company-management backend for
// local development of the gateway.
package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"command-center/internal/config"
	"command-center/internal/logger"
	"command-center/internal/mockapi"
)

func main() {
	cfg, err := config.LoadMock()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat))

	service, err := mockapi.NewService(mockapi.Options{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	})
	if err != nil {
		slog.Error("failed to seed mock backend", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mockapi.NewHandler(service).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("mock backend starting", "addr", server.Addr, "password", mockapi.DefaultPassword)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	_ = server.Close()
	slog.Info("mock backend stopped")
}
