package jobs

import (
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/capsync/capsync/config"
	"github.com/capsync/capsync/db"
	"github.com/capsync/capsync/playback"
	"github.com/capsync/capsync/subtitles"
)

func SetupInBackground(cfg *config.Config, store db.Store, system *playback.PlaybackSystem, loader *subtitles.Loader) *gocron.Scheduler {
	s := gocron.NewScheduler(time.UTC)

	s.Every(cfg.Capsync.TrackRefreshMinutes).Minutes().Do(RefreshCachedTracks, cfg, store, loader)
	s.Every(5).Minutes().Do(ReapIdleSessions, cfg, system)

	slog.Info("Jobs scheduled. Scheduler not running yet.")

	return s
}

func ReapIdleSessions(cfg *config.Config, system *playback.PlaybackSystem) {
	maxIdle := time.Duration(cfg.Capsync.SessionIdleMinutes) * time.Minute
	if reaped := system.ReapIdle(maxIdle); reaped > 0 {
		slog.Info("Reaped idle playback sessions", slog.Int("count", reaped))
	}
}
