package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/user/ptyhost/internal/api"
	"github.com/user/ptyhost/internal/config"
	"github.com/user/ptyhost/internal/history"
	"github.com/user/ptyhost/internal/hub"
	"github.com/user/ptyhost/internal/profile"
	"github.com/user/ptyhost/internal/server"
	"github.com/user/ptyhost/internal/session"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var recorder *history.Recorder
	var repo *history.Repo
	if cfg.HistoryPath != "" {
		db, err := history.Open(ctx, cfg.HistoryPath)
		if err != nil {
			slog.Warn("history database unavailable, continuing without it", "path", cfg.HistoryPath, "error", err)
		} else {
			defer db.Close()
			repo = history.NewRepo(db.SQL())
			recorder = history.NewRecorder(db)
		}
	}

	profiles, err := profile.NewStore(cfg.ProfileDir)
	if err != nil {
		slog.Error("failed to load profiles", "dir", cfg.ProfileDir, "error", err)
		os.Exit(1)
	}

	var manager *session.Manager
	h := hub.New(cfg.Token, func(sessionID, data string) error {
		return manager.WriteInput(sessionID, data)
	})
	go h.Run(ctx)

	observers := []session.Observer{h}
	if recorder != nil {
		observers = append(observers, recorder)
	}
	manager = session.NewManager(session.Config{
		BufferCapacity: cfg.BufferCapacity,
		DefaultCols:    cfg.DefaultCols,
		DefaultRows:    cfg.DefaultRows,
	}, observers...)

	router := api.NewRouter(manager, profiles, repo, cfg.Token)
	srv := server.New(cfg, h, router)

	if cfg.PrintToken {
		fmt.Printf("\nptyhost running at http://localhost:%d?token=%s\n\n", cfg.Port, cfg.Token)
	} else {
		slog.Info("ptyhost running", "port", cfg.Port, "config", cfg.ConfigPath)
	}

	err = srv.Start(ctx)

	// Every child the server spawned dies with it.
	manager.Shutdown()

	if err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
