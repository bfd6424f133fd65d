package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capsync/capsync/snippet"
	"github.com/capsync/capsync/subtitles"
)

type stubLoader struct {
	mu   sync.Mutex
	cues map[string][]subtitles.Cue
	errs map[string]error
}

func (l *stubLoader) LoadFromURL(ctx context.Context, url string) ([]subtitles.Cue, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, ok := l.errs[url]; ok {
		return nil, err
	}
	return l.cues[url], nil
}

type recordingAdapter struct {
	mu    sync.Mutex
	seeks []float64
}

func (a *recordingAdapter) Seek(seconds float64) {
	a.mu.Lock()
	a.seeks = append(a.seeks, seconds)
	a.mu.Unlock()
}

func (a *recordingAdapter) recorded() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]float64{}, a.seeks...)
}

func twoTrackSession(loader TrackLoader, adapter Adapter) *Session {
	cfg := MountConfig{
		Tracks: []snippet.Track{
			{File: "https://vod.example.edu/english.vtt", Label: "English", Kind: "captions"},
			{File: "https://vod.example.edu/french.vtt", Label: "French", Kind: "captions"},
		},
	}
	return newSession("sess-1", "embed-1", cfg, adapter, loader, nil)
}

func TestOnTimeUpdate_FloorsToMilliseconds(t *testing.T) {
	s := twoTrackSession(&stubLoader{}, nil)

	s.OnTimeUpdate(1.2345)
	assert.Equal(t, 1234, s.CurrentTimeMs())

	s.OnTimeUpdate(2.9999)
	assert.Equal(t, 2999, s.CurrentTimeMs())

	s.OnTimeUpdate(0)
	assert.Equal(t, 0, s.CurrentTimeMs())
}

func TestOnTimeUpdate_AnswersPendingSeek(t *testing.T) {
	s := twoTrackSession(&stubLoader{}, nil)

	s.RequestSeek(5000)
	require.NotNil(t, s.State().PendingSeekSeconds)

	s.OnTimeUpdate(5.1)
	assert.Nil(t, s.State().PendingSeekSeconds)
}

func TestRequestSeek(t *testing.T) {
	adapter := &recordingAdapter{}
	s := twoTrackSession(&stubLoader{}, adapter)

	seconds := s.RequestSeek(5000)
	assert.InDelta(t, 5.1, seconds, 0.0001)

	seeks := adapter.recorded()
	require.Len(t, seeks, 1)
	assert.InDelta(t, 5.1, seeks[0], 0.0001)

	state := s.State()
	require.NotNil(t, state.PendingSeekSeconds)
	assert.InDelta(t, 5.1, *state.PendingSeekSeconds, 0.0001)
}

func TestRequestSeek_NoAdapter(t *testing.T) {
	s := twoTrackSession(&stubLoader{}, nil)

	assert.NotPanics(t, func() {
		s.RequestSeek(0)
	})
	assert.InDelta(t, 0.1, s.RequestSeek(0), 0.0001)
}

func TestOnCaptionsChanged_IndicatorMapping(t *testing.T) {
	loader := &stubLoader{cues: map[string][]subtitles.Cue{
		"https://vod.example.edu/english.vtt": {
			{Type: subtitles.TypeCue, StartMs: 0, EndMs: 1000, Text: "english"},
		},
		"https://vod.example.edu/french.vtt": {
			{Type: subtitles.TypeCue, StartMs: 0, EndMs: 1000, Text: "french"},
		},
	}}
	s := twoTrackSession(loader, nil)

	require.Equal(t, NoActiveTrack, s.ActiveTrack())

	// indicator 1 is the first configured track
	s.OnCaptionsChanged(context.Background(), 1)
	assert.Equal(t, 0, s.ActiveTrack())
	assert.Eventually(t, func() bool {
		return s.State().CueCount == 1
	}, time.Second, 10*time.Millisecond)

	s.OnCaptionsChanged(context.Background(), 2)
	assert.Equal(t, 1, s.ActiveTrack())

	// indicator 0 means captions off
	s.OnCaptionsChanged(context.Background(), 0)
	assert.Equal(t, NoActiveTrack, s.ActiveTrack())
	assert.Equal(t, 0, s.State().CueCount)

	// an indicator beyond the configured tracks also clears
	s.OnCaptionsChanged(context.Background(), 1)
	s.OnCaptionsChanged(context.Background(), 7)
	assert.Equal(t, NoActiveTrack, s.ActiveTrack())
}

func TestOnCaptionsChanged_ResetsFilter(t *testing.T) {
	loader := &stubLoader{cues: map[string][]subtitles.Cue{}}
	s := twoTrackSession(loader, nil)

	s.OnCaptionsChanged(context.Background(), 1)
	s.SetFilter("hello", true)
	require.Equal(t, FilterState{Query: "hello", AutoScroll: true}, s.Captions().Filter)

	s.OnCaptionsChanged(context.Background(), 2)
	assert.Equal(t, FilterState{}, s.Captions().Filter)
}

func TestLoadTrack_FailureDegradesToNoCaptions(t *testing.T) {
	loader := &stubLoader{errs: map[string]error{
		"https://vod.example.edu/english.vtt": errors.New("boom"),
	}}
	s := twoTrackSession(loader, nil)

	s.OnCaptionsChanged(context.Background(), 1)

	// the track stays selected even though the fetch failed
	assert.Eventually(t, func() bool {
		return s.ActiveTrack() == 0 && s.State().CueCount == 0
	}, time.Second, 10*time.Millisecond)
	assert.Empty(t, s.Captions().Cues)
}

func TestLoadTrack_StaleFetchDiscarded(t *testing.T) {
	english := "https://vod.example.edu/english.vtt"
	french := "https://vod.example.edu/french.vtt"

	loader := &stubLoader{cues: map[string][]subtitles.Cue{
		english: {{Type: subtitles.TypeCue, StartMs: 0, EndMs: 1000, Text: "english"}},
		french:  {{Type: subtitles.TypeCue, StartMs: 0, EndMs: 1000, Text: "french"}},
	}}
	s := twoTrackSession(loader, nil)

	s.OnCaptionsChanged(context.Background(), 2)
	require.Eventually(t, func() bool {
		return s.State().CueCount == 1
	}, time.Second, 10*time.Millisecond)

	// a fetch for the previous track resolving late must not clobber the
	// cues of the track the viewer switched to
	s.loadTrack(context.Background(), english)

	view := s.Captions()
	require.Len(t, view.Cues, 1)
	assert.Equal(t, "french", view.Cues[0].Text)
}

func TestSessionState(t *testing.T) {
	s := twoTrackSession(&stubLoader{}, nil)
	s.OnTimeUpdate(12.5)

	state := s.State()
	assert.Equal(t, "sess-1", state.SessionID)
	assert.Equal(t, "embed-1", state.EmbedID)
	assert.Equal(t, 12500, state.CurrentTimeMs)
	assert.Equal(t, NoActiveTrack, state.ActiveTrack)
	assert.False(t, state.UpdatedAt.IsZero())
}
