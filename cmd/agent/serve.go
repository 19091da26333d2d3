package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/clipstudio/clipper-agent/internal/api"
	"github.com/clipstudio/clipper-agent/internal/backup"
	"github.com/clipstudio/clipper-agent/internal/config"
	"github.com/clipstudio/clipper-agent/internal/db"
	"github.com/clipstudio/clipper-agent/internal/logging"
	"github.com/clipstudio/clipper-agent/internal/media"
	"github.com/clipstudio/clipper-agent/internal/metadata"
	"github.com/clipstudio/clipper-agent/internal/studio"
	"github.com/clipstudio/clipper-agent/internal/transcode"
	"github.com/clipstudio/clipper-agent/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the clipper agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func serve() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.MediaDir(), 0755); err != nil {
		return fmt.Errorf("failed to create media dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting clipper agent", "version", config.Version, "data_dir", cfg.DataDir())

	// one agent per data dir
	lock := flock.New(filepath.Join(cfg.DataDir(), "agent.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire data dir lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another clipper agent is already using %s", cfg.DataDir())
	}
	defer lock.Unlock()

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := studio.NewRepository(database.Conn())

	deviceID, err := ensureDeviceID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Clipper Agent %s\n", config.Version)
	fmt.Printf("  API URL:    http://127.0.0.1:%d\n", cfg.Port())
	fmt.Printf("  Auth Token: %s\n", authToken)
	fmt.Printf("  Device ID:  %s\n", deviceID)
	fmt.Println()

	var cutter transcode.Cutter
	fc, err := transcode.New(transcode.Config{
		FFmpegPath:   cfg.FFmpegPath(),
		FFprobePath:  cfg.FFprobePath(),
		CutTimeout:   cfg.CutTimeout(),
		ProbeTimeout: cfg.ProbeTimeout(),
		Logger:       logging.WithComponent(logger, "transcode"),
	})
	if err != nil {
		logger.Warn("ffmpeg unavailable, cutting disabled", "error", err)
	} else {
		cutter = fc
	}

	clips := studio.NewClipStore(repo, logging.WithComponent(logger, "clips"))
	queue := studio.NewQueue(studio.QueueConfig{
		Repo:     repo,
		Cutter:   cutter,
		Clips:    clips,
		MediaDir: cfg.MediaDir(),
		Logger:   logging.WithComponent(logger, "queue"),
	})
	clips.BindSegments(queue)

	apiServer := api.NewServer(api.ServerConfig{
		Port:        cfg.Port(),
		Queue:       queue,
		Clips:       clips,
		Repository:  repo,
		Backup:      backup.NewService(repo, clips, logging.WithComponent(logger, "backup")),
		Metadata:    metadata.NewClient(logging.WithComponent(logger, "metadata")),
		MediaServer: media.NewServer(logging.WithComponent(logger, "media")),
		Logger:      logger,
		StartTime:   startTime,
		DeviceID:    deviceID,
		Version:     config.Version,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Queue:  queue,
			Clips:  clips,
			Logger: logging.WithComponent(logger, "tray"),
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func ensureDeviceID(repo studio.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "device_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	deviceID := uuid.NewString()
	if err := repo.SetConfig(ctx, "device_id", deviceID); err != nil {
		return "", err
	}
	return deviceID, nil
}

func ensureAuthToken(repo studio.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	token := uuid.NewString()
	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}
	return token, nil
}
