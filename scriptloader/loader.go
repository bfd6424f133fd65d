package scriptloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/capsync/capsync/utils"
)

// ErrNoEntryPoint means the script loaded fine but never exposed the player
// entry point we were promised.
var ErrNoEntryPoint = errors.New("player entry point not found")

// entryPointMarker is the global the player script is expected to define.
const entryPointMarker = "jwplayer"

// EntryPoint is the handle a successful load resolves with: the verified
// script plus the license key already stamped onto it.
type EntryPoint struct {
	URL        string
	ElementID  string
	LicenseKey string
	Script     []byte
}

type call struct {
	done chan struct{}
	ep   *EntryPoint
	err  error
}

// Loader fetches player scripts exactly once per element id. Concurrent
// loads against the same id share a single fetch; distinct ids fetch
// independently even for the same URL. A failed load is forgotten so the
// caller can decide to retry, matching the no-automatic-retry contract.
type Loader struct {
	client *http.Client

	mu    sync.Mutex
	calls map[string]*call
}

func NewLoader(client *http.Client) *Loader {
	if client == nil {
		client = utils.NewHTTPClient()
	}
	return &Loader{
		client: client,
		calls:  make(map[string]*call),
	}
}

func (l *Loader) Load(ctx context.Context, scriptURL, elementID, licenseKey string) (*EntryPoint, error) {
	l.mu.Lock()
	if c, ok := l.calls[elementID]; ok {
		l.mu.Unlock()
		<-c.done
		return c.ep, c.err
	}
	c := &call{done: make(chan struct{})}
	l.calls[elementID] = c
	l.mu.Unlock()

	c.ep, c.err = l.fetch(ctx, scriptURL, elementID, licenseKey)
	close(c.done)

	if c.err != nil {
		l.mu.Lock()
		delete(l.calls, elementID)
		l.mu.Unlock()
	}

	return c.ep, c.err
}

func (l *Loader) fetch(ctx context.Context, scriptURL, elementID, licenseKey string) (*EntryPoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, scriptURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for player script at %s: %w", scriptURL, err)
	}

	res, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to load player script at %s: %w", scriptURL, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("unable to load player script at %s: unexpected status %s", scriptURL, res.Status)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to load player script at %s: %w", scriptURL, err)
	}

	if !bytes.Contains(body, []byte(entryPointMarker)) {
		return nil, fmt.Errorf("%w at %s", ErrNoEntryPoint, scriptURL)
	}

	return &EntryPoint{
		URL:        scriptURL,
		ElementID:  elementID,
		LicenseKey: licenseKey,
		Script:     body,
	}, nil
}
