package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/gregdel/pushover"
	"golang.org/x/exp/rand"

	"github.com/capsync/capsync/config"
	"github.com/capsync/capsync/db"
	"github.com/capsync/capsync/subtitles"
)

// trackFailureAlertThreshold is how many consecutive refresh failures a
// cached track gets before someone is told about it.
const trackFailureAlertThreshold = 3

// RefreshCachedTracks re-fetches every cached subtitle file so the track
// cache tracks upstream edits. Fetches are jittered to avoid hammering a
// host that serves many tracks for the same embed.
func RefreshCachedTracks(cfg *config.Config, store db.Store, loader *subtitles.Loader) {
	tracks, err := store.ListCachedTracks()
	if err != nil {
		slog.Error("Failed to list cached tracks", slog.String("stack", err.Error()))
		return
	}

	for _, track := range tracks {
		time.Sleep(time.Duration(rand.Intn(2000)) * time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		body, err := loader.FetchRaw(ctx, track.URL)
		cancel()

		if err != nil {
			count, bumpErr := store.BumpTrackFailure(track.URL)
			if bumpErr != nil {
				slog.Error("Failed to record track failure",
					slog.String("url", track.URL),
					slog.String("stack", bumpErr.Error()))
				continue
			}
			slog.Warn("Cached track failed to refresh",
				slog.String("url", track.URL),
				slog.Int("failure_count", count))
			if count == trackFailureAlertThreshold {
				notifyTrackFailure(cfg, track.URL, count)
			}
			continue
		}

		track.Body = string(body)
		track.FetchedAt = time.Now()
		if err := store.UpsertCachedTrack(track); err != nil {
			slog.Error("Failed to update cached track",
				slog.String("url", track.URL),
				slog.String("stack", err.Error()))
		}
	}
}

func notifyTrackFailure(cfg *config.Config, url string, count int) {
	if cfg.Pushover.Token == "" || cfg.Pushover.Recipient == "" {
		return
	}
	app := pushover.New(cfg.Pushover.Token)
	recipient := pushover.NewRecipient(cfg.Pushover.Recipient)
	message := &pushover.Message{
		Title:    "A subtitle track has gone missing",
		Message:  "A cached captions file has failed to refresh repeatedly. The embed it belongs to is degrading to no captions.",
		URL:      url,
		URLTitle: "Broken track",
	}
	if _, err := app.SendMessage(message, recipient); err != nil {
		slog.Error("Failed to send track failure notification",
			slog.String("url", url),
			slog.Int("failure_count", count),
			slog.String("stack", err.Error()))
	}
}
