package playback

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/capsync/capsync/snippet"
	"github.com/capsync/capsync/subtitles"
)

// seekLeadInMs nudges every seek slightly ahead of the cue start so the
// player lands just before the line is spoken. Inherited from the original
// player integration; the exact rationale is lost but the behaviour is
// depended upon.
const seekLeadInMs = 100

// Session is the single source of truth for one mounted player: the current
// playback clock, the active subtitle track and any pending seek. The player
// adapter and the caption list both read and write through it, never through
// each other.
type Session struct {
	ID      string
	EmbedID string

	adapter Adapter
	loader  TrackLoader
	tracks  []snippet.Track

	// onChange is set by the owning System and fans the new state out to
	// subscribed caption lists.
	onChange func(*Session)

	mu            sync.RWMutex
	currentTimeMs int
	activeTrack   int
	pendingSeek   *float64
	cues          []subtitles.Cue
	filter        FilterState
	startedAt     time.Time
	lastSeenAt    time.Time
}

func newSession(id, embedID string, cfg MountConfig, adapter Adapter, loader TrackLoader, onChange func(*Session)) *Session {
	now := time.Now()
	return &Session{
		ID:          id,
		EmbedID:     embedID,
		adapter:     adapter,
		loader:      loader,
		tracks:      cfg.Tracks,
		onChange:    onChange,
		activeTrack: NoActiveTrack,
		startedAt:   now,
		lastSeenAt:  now,
	}
}

// OnTimeUpdate stores the player's reported position, floored to
// milliseconds. Updates are last-write-wins at whatever cadence the player
// chooses; nothing is buffered or reordered. A pending seek is considered
// answered once the player reports time again.
func (s *Session) OnTimeUpdate(positionSeconds float64) {
	s.mu.Lock()
	s.currentTimeMs = int(math.Floor(positionSeconds * 1000))
	s.pendingSeek = nil
	s.lastSeenAt = time.Now()
	s.mu.Unlock()

	s.notify()
}

// OnCaptionsChanged translates the player's track indicator, which counts
// from 1 with 0 reserved for "captions off". That numbering is the player's
// protocol, not ours, so the translation lives here and nowhere else. A
// value outside the configured track range also clears the active track.
// Replacing the track resets the caption list's filter state and kicks off
// a fresh subtitle load.
func (s *Session) OnCaptionsChanged(ctx context.Context, track int) {
	s.mu.Lock()
	s.lastSeenAt = time.Now()

	idx := track - 1
	if track <= 0 || idx >= len(s.tracks) {
		s.activeTrack = NoActiveTrack
		s.cues = nil
		s.filter.Reset()
		s.mu.Unlock()
		s.notify()
		return
	}

	s.activeTrack = idx
	s.cues = nil
	s.filter.Reset()
	url := s.tracks[idx].File
	s.mu.Unlock()

	s.notify()

	go s.loadTrack(ctx, url)
}

func (s *Session) loadTrack(ctx context.Context, url string) {
	cues, err := s.loader.LoadFromURL(ctx, url)
	if err != nil {
		// A track that won't load degrades to "no captions" without
		// touching the player side of the session.
		slog.Error("Failed to load subtitle track",
			slog.String("session_id", s.ID),
			slog.String("url", url),
			slog.String("stack", err.Error()))
		cues = nil
	}

	s.mu.Lock()
	// Track switches are not transactionally coupled to fetches: a slow
	// fetch for a track that has since been switched away from must not
	// clobber the newer track's cues.
	if s.activeTrack == NoActiveTrack || s.tracks[s.activeTrack].File != url {
		s.mu.Unlock()
		return
	}
	s.cues = cues
	s.mu.Unlock()

	s.notify()
}

// RequestSeek records a pending seek slightly ahead of the cue start and
// pushes it to the player adapter. It returns the target in seconds, the
// unit the player speaks.
func (s *Session) RequestSeek(targetStartMs int) float64 {
	seconds := float64(targetStartMs+seekLeadInMs) / 1000

	s.mu.Lock()
	s.pendingSeek = &seconds
	s.lastSeenAt = time.Now()
	s.mu.Unlock()

	if s.adapter != nil {
		s.adapter.Seek(seconds)
	}

	s.notify()
	return seconds
}

// SetFilter updates the caption list's view state. The state belongs to the
// list alone and is wiped whenever the cue sequence is replaced.
func (s *Session) SetFilter(query string, autoScroll bool) {
	s.mu.Lock()
	s.filter.Query = query
	s.filter.AutoScroll = autoScroll
	s.mu.Unlock()
}

// Captions computes the caption list's current view: the filtered cue
// subset, which of those cues are active, and where auto-scroll should park
// the viewport.
func (s *Session) Captions() CaptionView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return buildCaptionView(s.cues, s.filter, s.currentTimeMs)
}

// CurrentTimeMs returns the most recently reported playback position.
func (s *Session) CurrentTimeMs() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentTimeMs
}

// ActiveTrack returns the zero-based active track index, or NoActiveTrack.
func (s *Session) ActiveTrack() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeTrack
}

// State is the broadcastable snapshot of the session.
func (s *Session) State() SessionState {
	return s.state()
}

func (s *Session) state() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := SessionState{
		SessionID:     s.ID,
		EmbedID:       s.EmbedID,
		CurrentTimeMs: s.currentTimeMs,
		ActiveTrack:   s.activeTrack,
		CueCount:      len(s.cues),
		UpdatedAt:     s.lastSeenAt,
	}
	if s.pendingSeek != nil {
		seek := *s.pendingSeek
		state.PendingSeekSeconds = &seek
	}
	return state
}

func (s *Session) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeenAt
}

func (s *Session) notify() {
	if s.onChange != nil {
		s.onChange(s)
	}
}
