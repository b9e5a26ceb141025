package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"vigil/internal/core/app"
	"vigil/internal/core/config"
	"vigil/internal/core/ports"
	"vigil/internal/realtime"
)

var (
	configPath = flag.String("config", "./vigil.toml", "Path to config file")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("vigil v%s\n", VERSION)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if *configPath == "./vigil.toml" && os.IsNotExist(err) {
			slog.Info("no config file, using defaults")
			cfg = config.Default()
		} else {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}

	application, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		os.Exit(1)
	}

	svc := application.AnalysisService()
	hub := realtime.NewHub()

	pipeline, err := realtime.NewPipeline(cfg, svc, storeOrNil(application), hub)
	if err != nil {
		slog.Error("failed to initialize pipeline", "error", err)
		os.Exit(1)
	}
	if err := pipeline.Start(); err != nil {
		slog.Error("failed to start watch roots", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: realtime.NewRouter(pipeline, svc, storeOrNil(application)),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("server shutdown incomplete", "error", err)
		}
		pipeline.Shutdown()
		return application.Close()
	})

	if err := g.Wait(); err != nil {
		slog.Error("exited with error", "error", err)
		os.Exit(1)
	}
}

// storeOrNil avoids handing a typed nil pointer to interface fields.
func storeOrNil(a *app.App) ports.HistoryStore {
	if a.Store == nil {
		return nil
	}
	return a.Store
}
