package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"canvaslab/internal/canvas"
	"canvaslab/internal/config"
	"canvaslab/internal/httpapi"
	"canvaslab/internal/logging"
	"canvaslab/internal/middleware"
	"canvaslab/internal/room"
	"canvaslab/internal/session"
	"canvaslab/internal/store"
	"canvaslab/internal/sweeper"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "canvaslab:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logging.Init(cfg.Development); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	log := logging.L()
	defer log.Sync()

	st, err := store.New(cfg.DataDir, cfg.UploadsDir, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	limits := canvas.DefaultLimits()
	if cfg.MaxElements > 0 {
		limits.MaxElements = cfg.MaxElements
	}

	reg := room.NewRegistry(st, room.RegistryOptions{
		MaxRooms:           cfg.MaxRooms,
		MaxSessionsPerRoom: cfg.MaxRoomSessions,
		GracePeriod:        cfg.RoomGracePeriod,
		Limits:             limits,
		Log:                log,
	})
	writer := room.NewWriter(reg, st, cfg.SnapshotInterval, log)
	sw := sweeper.New(reg, st, cfg.RetentionHorizon(), log)
	ips := middleware.NewIPRateLimit(0, 0)
	ws := session.NewHandler(reg, ips, cfg.AllowedOrigins, log)
	api := httpapi.New(reg, st, sw, cfg.MaxImageBytes, cfg.AllowedOrigins, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(ws),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		writer.Run(ctx)
		return nil
	})
	g.Go(func() error {
		sw.Run(ctx)
		return nil
	})
	g.Go(func() error {
		ips.Run(ctx)
		return nil
	})
	g.Go(func() error {
		log.Info("server listening",
			zap.String("addr", cfg.Addr),
			zap.String("dataDir", cfg.DataDir),
			zap.Duration("snapshotInterval", cfg.SnapshotInterval))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http server shutdown", zap.Error(err))
		}
		// Rooms flush their final snapshots here; sessions are kicked
		// with a close frame as each room stops.
		reg.Shutdown(shutdownCtx)
		return nil
	})

	return g.Wait()
}
