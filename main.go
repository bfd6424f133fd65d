package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/capsync/capsync/config"
	"github.com/capsync/capsync/db"
	"github.com/capsync/capsync/events"
	"github.com/capsync/capsync/jobs"
	"github.com/capsync/capsync/migrations"
	"github.com/capsync/capsync/playback"
	"github.com/capsync/capsync/scriptloader"
	"github.com/capsync/capsync/snippet"
	"github.com/capsync/capsync/subtitles"
	"github.com/capsync/capsync/utils"
)

func main() {

	if err := godotenv.Load(); err != nil {
		fmt.Println(err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.GetLogLevel(),
	}))
	slog.SetDefault(logger)

	store, err := db.NewSqliteStore(cfg.Capsync.DbPath)
	if err != nil {
		slog.Error("Failed to open database", slog.String("stack", err.Error()))
		os.Exit(1)
	}

	if err := store.ApplyMigrations(migrations.GetMigrations()); err != nil {
		slog.Error("Failed to apply migrations", slog.String("stack", err.Error()))
		os.Exit(1)
	}

	events.Init()

	httpClient := utils.NewHTTPClient()
	parser := snippet.NewParser(snippet.NewEvaluator())
	loader := subtitles.NewLoader(httpClient)
	scripts := scriptloader.NewLoader(httpClient)

	ps := playback.NewPlaybackSystem(store, loader, scripts)

	jobScheduler := jobs.SetupInBackground(cfg, store, ps, loader)

	if cfg.Capsync.BackgroundJobsEnabled {
		jobScheduler.StartAsync()
		slog.Info("Background jobs have started up in the background.")
	} else {
		slog.Info("Background jobs are disabled.")
	}

	router := RegisterRoutes(http.NewServeMux(), cfg, store, ps, parser, loader)

	slog.Info("capsync is running", slog.String("addr", cfg.Capsync.ListenAddr))

	if err := http.ListenAndServe(cfg.Capsync.ListenAddr, router); err != nil {
		slog.Error("Server exited", slog.String("stack", err.Error()))
		jobScheduler.Stop()
		os.Exit(1)
	}
}
