package playback

import (
	"context"
	"time"

	"github.com/capsync/capsync/snippet"
	"github.com/capsync/capsync/subtitles"
)

// MountConfig carries the parsed embed details a session needs: where the
// player script lives, the license key to stamp on it, and the subtitle
// tracks of the leading playlist item.
type MountConfig struct {
	PlayerSourceURL  string
	PlayerLicenseKey string
	Tracks           []snippet.Track
}

// Adapter is the boundary to the third-party player runtime. The controller
// only ever pushes seeks through it; everything else (time updates, caption
// track changes) flows the other way, into the session's event methods.
// Seek is fire-and-forget: there is no acknowledgement protocol, the next
// time update is the only confirmation the player acted on it.
type Adapter interface {
	Seek(seconds float64)
}

// TrackLoader is satisfied by subtitles.Loader. Sessions depend on the
// interface so tests can stall or fail track loads deterministically.
type TrackLoader interface {
	LoadFromURL(ctx context.Context, url string) ([]subtitles.Cue, error)
}

// NoActiveTrack is the ActiveTrack value when captions are off or the
// player reported a track outside the configured range.
const NoActiveTrack = -1

// SessionState is the JSON snapshot broadcast to caption list clients over
// the event stream whenever a session mutates.
type SessionState struct {
	SessionID          string    `json:"session_id"`
	EmbedID            string    `json:"embed_id"`
	CurrentTimeMs      int       `json:"current_time_ms"`
	ActiveTrack        int       `json:"active_track"`
	PendingSeekSeconds *float64  `json:"pending_seek_seconds,omitempty"`
	CueCount           int       `json:"cue_count"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// System is what the router and jobs bind against.
type System interface {
	Mount(ctx context.Context, embedID string, parsed MountConfig, adapter Adapter) (*Session, error)
	Get(sessionID string) (*Session, bool)
	Unmount(sessionID string) error
	Snapshot() []SessionState
	ReapIdle(maxIdle time.Duration) int
}
