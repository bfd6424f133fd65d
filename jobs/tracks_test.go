package jobs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/capsync/capsync/config"
	"github.com/capsync/capsync/db"
	"github.com/capsync/capsync/migrations"
	"github.com/capsync/capsync/models"
	"github.com/capsync/capsync/subtitles"
)

func testStore(t *testing.T) db.Store {
	t.Helper()
	conn, err := sqlx.Connect("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() {
		conn.Close()
	})
	store := &db.SqliteStore{DB: conn}
	if err := store.ApplyMigrations(migrations.GetMigrations()); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestRefreshCachedTracks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/good.vtt" {
			w.Write([]byte("WEBVTT\n\n00:01.000 --> 00:02.000\nrefreshed\n"))
			return
		}
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	store := testStore(t)
	require.NoError(t, store.UpsertCachedTrack(models.CachedTrack{
		URL:     server.URL + "/good.vtt",
		EmbedID: "embed:1",
		Body:    "WEBVTT\n\nstale\n",
	}))
	require.NoError(t, store.UpsertCachedTrack(models.CachedTrack{
		URL:     server.URL + "/gone.vtt",
		EmbedID: "embed:1",
		Body:    "WEBVTT\n",
	}))

	// no pushover credentials configured, so a failure never tries to notify
	cfg := &config.Config{}

	RefreshCachedTracks(cfg, store, subtitles.NewLoader(server.Client()))

	good, err := store.GetCachedTrack(server.URL + "/good.vtt")
	require.NoError(t, err)
	assert.Contains(t, good.Body, "refreshed")
	assert.Equal(t, 0, good.FailureCount)

	gone, err := store.GetCachedTrack(server.URL + "/gone.vtt")
	require.NoError(t, err)
	assert.Equal(t, 1, gone.FailureCount)
	// the stale body is kept until a refresh succeeds
	assert.Equal(t, "WEBVTT\n", gone.Body)

	RefreshCachedTracks(cfg, store, subtitles.NewLoader(server.Client()))
	gone, err = store.GetCachedTrack(server.URL + "/gone.vtt")
	require.NoError(t, err)
	assert.Equal(t, 2, gone.FailureCount)
}

func TestRefreshCachedTracks_EmptyCache(t *testing.T) {
	store := testStore(t)

	assert.NotPanics(t, func() {
		RefreshCachedTracks(&config.Config{}, store, subtitles.NewLoader(nil))
	})
}
