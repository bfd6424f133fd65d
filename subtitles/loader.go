package subtitles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/capsync/capsync/utils"
)

// ErrFetch wraps every transport or status failure while downloading a
// subtitle file so callers can degrade to "no captions" without inspecting
// the underlying cause.
var ErrFetch = errors.New("subtitle fetch failed")

// Loader downloads subtitle files and parses them into cue sequences.
// Every call hits the network; memoisation lives in the track cache, not
// here, so a track switch always reflects the latest upstream file.
type Loader struct {
	client *http.Client
}

func NewLoader(client *http.Client) *Loader {
	if client == nil {
		client = utils.NewHTTPClient()
	}
	return &Loader{client: client}
}

func (l *Loader) LoadFromURL(ctx context.Context, url string) ([]Cue, error) {
	body, err := l.FetchRaw(ctx, url)
	if err != nil {
		return nil, err
	}
	return Parse(string(body)), nil
}

// FetchRaw returns the subtitle file body without parsing it, for callers
// that cache the original text.
func (l *Loader) FetchRaw(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request for %s: %v", ErrFetch, url, err)
	}

	res, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %v", ErrFetch, url, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: fetching %s: unexpected status %s", ErrFetch, url, res.Status)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrFetch, url, err)
	}

	return body, nil
}
