package scriptloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakePlayerScript = "window.jwplayer = function() {};"

func TestLoad(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte(fakePlayerScript))
	}))
	defer server.Close()

	loader := NewLoader(server.Client())

	ep, err := loader.Load(context.Background(), server.URL, "jw-player", "K")
	require.NoError(t, err)
	assert.Equal(t, server.URL, ep.URL)
	assert.Equal(t, "K", ep.LicenseKey)
	assert.Equal(t, "jw-player", ep.ElementID)
	assert.NotEmpty(t, ep.Script)

	// a second load against the same element id reuses the first fetch
	again, err := loader.Load(context.Background(), server.URL, "jw-player", "K")
	require.NoError(t, err)
	assert.Same(t, ep, again)
	assert.Equal(t, int32(1), requests.Load())

	// a different element id fetches independently
	_, err = loader.Load(context.Background(), server.URL, "jw-player-2", "K")
	require.NoError(t, err)
	assert.Equal(t, int32(2), requests.Load())
}

func TestLoad_ConcurrentSameID(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte(fakePlayerScript))
	}))
	defer server.Close()

	loader := NewLoader(server.Client())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := loader.Load(context.Background(), server.URL, "jw-player", "K")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), requests.Load())
}

func TestLoad_MissingEntryPoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("console.log('not a player');"))
	}))
	defer server.Close()

	loader := NewLoader(server.Client())

	_, err := loader.Load(context.Background(), server.URL, "jw-player", "K")
	require.ErrorIs(t, err, ErrNoEntryPoint)
	assert.Contains(t, err.Error(), server.URL)
}

func TestLoad_FailureIsNotCached(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(fakePlayerScript))
	}))
	defer server.Close()

	loader := NewLoader(server.Client())

	_, err := loader.Load(context.Background(), server.URL, "jw-player", "K")
	require.Error(t, err)
	assert.Contains(t, err.Error(), server.URL)

	// the loader itself never retries, but the caller may
	failing.Store(false)
	ep, err := loader.Load(context.Background(), server.URL, "jw-player", "K")
	require.NoError(t, err)
	assert.NotNil(t, ep)
}
