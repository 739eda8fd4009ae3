package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Visual-Illusions/NewU/internal/command"
	"github.com/Visual-Illusions/NewU/internal/config"
	"github.com/Visual-Illusions/NewU/internal/economy"
	"github.com/Visual-Illusions/NewU/internal/messages"
	"github.com/Visual-Illusions/NewU/internal/metrics"
	"github.com/Visual-Illusions/NewU/internal/persistence"
	"github.com/Visual-Illusions/NewU/internal/respawn"
	"github.com/Visual-Illusions/NewU/internal/station"
	"github.com/Visual-Illusions/NewU/internal/tracing"
	"github.com/Visual-Illusions/NewU/internal/transport/httpapi"
	"github.com/Visual-Illusions/NewU/internal/transport/ws"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the station service and host bridge",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		go func() {
			select {
			case sig := <-sigCh:
				slog.Info("shutting down", "signal", sig)
				cancel()
			case <-ctx.Done():
			}
		}()

		if err := run(ctx, cfg); err != nil {
			slog.Error("fatal", "err", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func run(ctx context.Context, cfg config.Settings) error {
	slog.Info("newu starting", "version", version, "log_level", cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir %s: %w", cfg.DataDir, err)
	}

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Enabled:  cfg.Tracing.Enabled,
		Exporter: cfg.Tracing.Exporter,
	})
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer tracing.Shutdown(context.Background(), shutdownTracing)

	collector, err := metrics.NewCollector(nil)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	store := persistence.NewFileStore(cfg.DataDir)
	if cfg.Backup.OnStart {
		if _, err := persistence.Backup(store.Path(), cfg.Backup.Dir, time.Now()); err != nil {
			slog.Warn("startup backup failed", "error", err)
		}
	}

	registry := station.NewRegistry(store, station.WithRecorder(collector))
	if err := registry.Load(); err != nil {
		// Whatever was recovered stays installed; the next save rewrites the file.
		slog.Error("station file damaged", "path", store.Path(), "error", err)
	}

	bank := messages.LoadBank(cfg.Messages.Path)

	opts := []respawn.Option{respawn.WithRecorder(collector)}
	if cfg.IsCharging() {
		backend, closeLedger, err := openLedger(ctx, cfg.Economy)
		if err != nil {
			return fmt.Errorf("opening economy backend: %w", err)
		}
		defer closeLedger()
		fees := economy.NewFeeCalculator(backend, cfg.ChargePercent())
		opts = append(opts, respawn.WithFees(fees, cfg.IsWaivable()))
		slog.Info("respawn charging enabled",
			"backend", cfg.Economy.Backend,
			"percent", cfg.Respawn.ChargePercent,
			"waivable", cfg.IsWaivable())
	}
	service := respawn.NewService(registry, bank, opts...)

	commands := command.NewHandler()
	command.RegisterAll(commands, registry, version)

	bridge := ws.NewServer(service, commands, ws.WithRecorder(collector))
	srv := &http.Server{
		Addr: cfg.ListenAddress,
		Handler: httpapi.NewHandler(httpapi.Deps{
			Stations: registry,
			Bridge:   bridge.Handler(),
			Metrics:  collector.Handler(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(bridge.Close)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()

	if saveErr := registry.Save(); saveErr != nil {
		slog.Error("final station save failed", "error", saveErr)
	} else {
		slog.Info("stations saved", "count", registry.Len())
	}

	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// openLedger opens the configured account backend.
func openLedger(ctx context.Context, cfg config.EconomyConfig) (economy.Backend, func(), error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		path := cfg.SQLitePath
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating ledger dir: %w", err)
		}
		l, err := economy.OpenSQLite(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("sqlite ledger opened", "path", path)
		return l, func() { _ = l.Close() }, nil
	case config.BackendPostgres:
		l, err := economy.OpenPostgres(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, nil, err
		}
		slog.Info("postgres ledger connected", "host", cfg.Database.Host, "db", cfg.Database.DBName)
		return l, l.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown economy backend %q", cfg.Backend)
	}
}
