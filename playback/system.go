package playback

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/r3labs/sse/v2"

	"github.com/capsync/capsync/db"
	"github.com/capsync/capsync/events"
	"github.com/capsync/capsync/models"
	"github.com/capsync/capsync/scriptloader"
	"github.com/capsync/capsync/shared"
)

// PlaybackSystem owns every mounted session. Mounting loads the player
// script, wires up a Session and opens its event stream; unmounting tears
// the stream down and commits a viewing history row. All mutation of shared
// playback state goes through the sessions this system hands out.
type PlaybackSystem struct {
	store   db.Store
	loader  TrackLoader
	scripts *scriptloader.Loader

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewPlaybackSystem(store db.Store, loader TrackLoader, scripts *scriptloader.Loader) *PlaybackSystem {
	return &PlaybackSystem{
		store:    store,
		loader:   loader,
		scripts:  scripts,
		sessions: make(map[string]*Session),
	}
}

func (ps *PlaybackSystem) Mount(ctx context.Context, embedID string, cfg MountConfig, adapter Adapter) (*Session, error) {
	// The script loader is idempotent per element id, so every session of
	// the same embed shares one fetch of the player script.
	elementID := fmt.Sprintf("jw-player-%s", embedID)
	if _, err := ps.scripts.Load(ctx, cfg.PlayerSourceURL, elementID, cfg.PlayerLicenseKey); err != nil {
		return nil, err
	}

	session := newSession(uuid.New().String(), embedID, cfg, adapter, ps.loader, ps.broadcast)

	ps.mu.Lock()
	ps.sessions[session.ID] = session
	ps.mu.Unlock()

	if events.Server != nil {
		events.Server.CreateStream(events.SessionStream(session.ID))
	}

	slog.Debug("Mounted playback session",
		slog.String("session_id", session.ID),
		slog.String("embed_id", embedID))

	ps.broadcast(session)

	return session, nil
}

func (ps *PlaybackSystem) Get(sessionID string) (*Session, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	session, ok := ps.sessions[sessionID]
	return session, ok
}

func (ps *PlaybackSystem) Unmount(sessionID string) error {
	ps.mu.Lock()
	session, ok := ps.sessions[sessionID]
	if !ok {
		ps.mu.Unlock()
		return fmt.Errorf("no session with id %s", sessionID)
	}
	delete(ps.sessions, sessionID)
	ps.mu.Unlock()

	if events.Server != nil {
		events.Server.RemoveStream(events.SessionStream(sessionID))
	}

	viewing := models.Viewing{
		SessionID:      session.ID,
		EmbedID:        session.EmbedID,
		StartedAt:      session.startedAt,
		EndedAt:        time.Now(),
		LastPositionMs: session.CurrentTimeMs(),
	}
	if err := ps.store.InsertViewing(viewing); err != nil {
		return fmt.Errorf("failed to record viewing history: %w", err)
	}

	slog.Debug("Unmounted playback session", slog.String("session_id", sessionID))

	return nil
}

func (ps *PlaybackSystem) Snapshot() []SessionState {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	states := make([]SessionState, 0, len(ps.sessions))
	for _, session := range ps.sessions {
		states = append(states, session.state())
	}
	return states
}

// ReapIdle unmounts sessions whose players have gone quiet. The reaper is
// how abandoned tabs stop holding streams open forever.
func (ps *PlaybackSystem) ReapIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	ps.mu.RLock()
	var stale []string
	for id, session := range ps.sessions {
		if session.idleSince().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	ps.mu.RUnlock()

	for _, id := range stale {
		if err := ps.Unmount(id); err != nil {
			slog.Error("Failed to reap idle session",
				slog.String("session_id", id),
				slog.String("stack", err.Error()))
		}
	}
	return len(stale)
}

// broadcast pings subscribed caption lists with the session's new state.
// Enough for clients to rehydrate themselves; no diffing.
func (ps *PlaybackSystem) broadcast(session *Session) {
	if events.Server == nil {
		return
	}
	jsonState, err := json.Marshal(session.state())
	if err != nil {
		return
	}
	events.Server.Publish(shared.STREAM_PLAYBACK, &sse.Event{Data: jsonState})
	events.Server.Publish(events.SessionStream(session.ID), &sse.Event{Data: jsonState})
}
