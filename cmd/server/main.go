package main

import (
	"context"
	"fmt"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/gochat-rooms/internal/metrics"
	"github.com/Tyrowin/gochat-rooms/internal/room"
	"github.com/Tyrowin/gochat-rooms/internal/router"
	"github.com/Tyrowin/gochat-rooms/internal/server"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "GoChat rooms server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// A missing .env is fine, the environment may be set another way.
	_ = godotenv.Load()

	cfg, err := server.NewConfigFromEnv()
	if err != nil {
		return exitConfig, err
	}
	server.SetConfig(cfg)
	applied := server.CurrentConfig()
	cfg = &applied

	log := logs.GetLoggerFromString(cfg.LogLevel)
	log.Info("Starting GoChat rooms server",
		"port", cfg.Port,
		"allowedOrigins", cfg.AllowedOrigins,
		"maxMessageSize", cfg.MaxMessageSize,
		"sendBufferSize", cfg.SendBufferSize,
		"shutdownTimeout", cfg.ShutdownTimeout)

	registry := room.NewRegistry(log)
	collector := metrics.NewCollector(registry, log)
	rt := router.New(registry, log, router.WithObserver(collector))

	hub := server.NewHub(rt, log)
	server.StartHub(hub)

	handlers := server.NewHandlers(*cfg, hub, registry, rt, collector, log)
	httpServer := server.CreateServer(cfg.Port, server.SetupRoutes(handlers))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.StartServer(httpServer, log)
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"gochat": func(ctx context.Context) error {
				log.Info("Graceful shutdown initiated")
				g, ctx := errgroup.WithContext(ctx)
				g.Go(func() error { return server.ShutdownServer(ctx, httpServer, log) })
				g.Go(func() error { return hub.Shutdown(ctx) })
				return g.Wait()
			},
		},
	)

	// A nil from the server means shutdown closed it; the exit code still
	// comes from the shutdown operation.
	if err := <-serveErr; err != nil {
		return exitRuntime, fmt.Errorf("http server: %w", err)
	}
	code := <-wait
	log.Info("Server exited", "code", code)
	if code != exitOK {
		return exitRuntime, fmt.Errorf("shutdown finished with code %d", code)
	}
	return exitOK, nil
}
