package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Tyrowin/roomchat/internal/identity"
	"github.com/Tyrowin/roomchat/internal/server"
	"github.com/Tyrowin/roomchat/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until a signal or a server error.
func run() error {
	// A missing .env file is fine; the environment may already be set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	config, err := server.NewConfigFromEnv()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	var stores server.Stores
	if config.BadgerPath != "" {
		db, err := store.OpenBadger(config.BadgerPath, log)
		if err != nil {
			return fmt.Errorf("database opening failed: %w", err)
		}
		defer func() {
			log.Info("closing BadgerDB")
			_ = db.Close()
		}()
		stores = server.Stores{Messages: db, Rooms: db, Profiles: db}
	} else {
		log.Warn("BADGER_PATH not set; history and rooms are kept in memory only")
		mem := store.NewMemoryStore()
		stores = server.Stores{Messages: mem, Rooms: mem, Profiles: mem}
	}

	verifier := identity.NewJWTVerifier([]byte(config.JWTSecret), config.JWTIssuer)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := server.New(*config, log, verifier, stores, reg)
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("chat core failed to start: %w", err)
	}

	httpServer := server.CreateServer(config.Port, app.Handler())

	errChan := make(chan error, 1)
	go func() {
		if err := server.StartServer(httpServer, log); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down gracefully")
	case err := <-errChan:
		_ = app.Shutdown(config.ShutdownTimeout)
		return err
	}

	if err := server.ShutdownServer(httpServer, config.ShutdownTimeout, log); err != nil {
		log.Warn("HTTP server did not stop cleanly", "error", err)
	}
	if err := app.Shutdown(config.ShutdownTimeout); err != nil {
		log.Warn("chat core did not stop cleanly", "error", err)
	}
	log.Info("program stopped cleanly")
	return nil
}
