package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	hmacext "github.com/alexellis/hmac/v2"
	"github.com/cespare/xxhash/v2"
	"github.com/rs/cors"

	"github.com/capsync/capsync/config"
	"github.com/capsync/capsync/db"
	"github.com/capsync/capsync/events"
	"github.com/capsync/capsync/models"
	"github.com/capsync/capsync/playback"
	"github.com/capsync/capsync/shared"
	"github.com/capsync/capsync/snippet"
	"github.com/capsync/capsync/subtitles"
	"github.com/capsync/capsync/utils"
)

type registerEmbedRequest struct {
	Snippet    string `json:"snippet"`
	Width      string `json:"width,omitempty"`
	Height     string `json:"height,omitempty"`
	FontFamily string `json:"font_family,omitempty"`
	Responsive bool   `json:"responsive"`
}

type embedResponse struct {
	models.Embed
	Config snippet.PlayerConfig `json:"config"`
}

type mountSessionRequest struct {
	EmbedID string `json:"embed_id"`
}

type timeEventRequest struct {
	Position float64 `json:"position"`
}

type captionsEventRequest struct {
	Track int `json:"track"`
}

type pointerTravel struct {
	DownX int `json:"down_x"`
	DownY int `json:"down_y"`
	UpX   int `json:"up_x"`
	UpY   int `json:"up_y"`
}

type seekRequest struct {
	StartMs int            `json:"start_ms"`
	Pointer *pointerTravel `json:"pointer,omitempty"`
}

func renderJSONMessage(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.ResponseHTTP{
		Success: true,
		Data:    message,
	})
}

func renderJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func RegisterRoutes(mux *http.ServeMux, cfg *config.Config, store db.Store, ps *playback.PlaybackSystem, parser *snippet.Parser, loader *subtitles.Loader) http.Handler {

	events.Server.CreateStream(shared.STREAM_PLAYBACK)

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, "Welcome to capsync, the captions player sync service.\n")
	})

	mux.HandleFunc("GET /api", func(w http.ResponseWriter, r *http.Request) {
		renderJSONMessage(w, "This is the base of capsync's API")
	})

	mux.HandleFunc("POST /api/v1/embeds", func(w http.ResponseWriter, r *http.Request) {
		var req registerEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			renderJSONError(w, http.StatusBadRequest, "failed to decode request body")
			return
		}
		if strings.TrimSpace(req.Snippet) == "" {
			renderJSONError(w, http.StatusBadRequest, "no player embed code found")
			return
		}

		parsed, err := parser.Parse(req.Snippet)
		if err != nil {
			// "no player found" is a state the editor renders, not a crash
			renderJSONError(w, http.StatusUnprocessableEntity, snippet.ErrUnparseable.Error())
			return
		}

		configJSON, err := json.Marshal(parsed.Config)
		if err != nil {
			renderJSONError(w, http.StatusInternalServerError, "failed to encode player config")
			return
		}

		embed := models.Embed{
			ID:               generateEmbedID(req.Snippet),
			CreatedAt:        time.Now(),
			Snippet:          req.Snippet,
			PlayerSourceURL:  parsed.PlayerSourceURL,
			PlayerLicenseKey: parsed.PlayerLicenseKey,
			Config:           string(configJSON),
			Width:            req.Width,
			Height:           req.Height,
			FontFamily:       req.FontFamily,
			Responsive:       req.Responsive,
			PosterColours:    models.SerializedColours{},
		}

		if poster := posterURL(parsed); poster != "" {
			if _, _, colours, err := utils.ExtractPosterContent(nil, poster); err == nil {
				embed.PosterColours = models.SerializedColours(colours)
			} else {
				slog.Warn("Failed to extract poster colours",
					slog.String("poster", poster),
					slog.String("stack", err.Error()))
			}
		}

		if err := store.InsertEmbed(embed); err != nil {
			renderJSONError(w, http.StatusInternalServerError, "failed to save embed")
			return
		}

		go primeTrackCache(store, loader, embed.ID, parsed.Tracks())

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(embedResponse{Embed: embed, Config: parsed.Config})
	})

	mux.HandleFunc("GET /api/v1/embeds/{id}", func(w http.ResponseWriter, r *http.Request) {
		embed, err := store.GetEmbed(r.PathValue("id"))
		if err != nil {
			renderJSONError(w, http.StatusNotFound, "no embed with that id")
			return
		}
		var parsedConfig snippet.PlayerConfig
		if err := json.Unmarshal([]byte(embed.Config), &parsedConfig); err != nil {
			renderJSONError(w, http.StatusInternalServerError, "stored player config is corrupt")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(embedResponse{Embed: embed, Config: parsedConfig})
	})

	mux.HandleFunc("GET /api/v1/embeds/{id}/tracks", func(w http.ResponseWriter, r *http.Request) {
		embed, err := store.GetEmbed(r.PathValue("id"))
		if err != nil {
			renderJSONError(w, http.StatusNotFound, "no embed with that id")
			return
		}
		var parsedConfig snippet.PlayerConfig
		if err := json.Unmarshal([]byte(embed.Config), &parsedConfig); err != nil {
			renderJSONError(w, http.StatusInternalServerError, "stored player config is corrupt")
			return
		}
		tracks := snippet.ParsedEmbed{Config: parsedConfig}.Tracks()
		if tracks == nil {
			tracks = []snippet.Track{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tracks)
	})

	mux.HandleFunc("GET /api/v1/tracks", func(w http.ResponseWriter, r *http.Request) {
		url := r.URL.Query().Get("url")
		if url == "" {
			renderJSONError(w, http.StatusBadRequest, "a track url must be provided")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if cached, err := store.GetCachedTrack(url); err == nil && cached.Body != "" {
			json.NewEncoder(w).Encode(subtitles.Parse(cached.Body))
			return
		}
		cues, err := loader.LoadFromURL(r.Context(), url)
		if err != nil {
			// degrade to "no captions" rather than failing the caller
			slog.Warn("Failed to load subtitle track",
				slog.String("url", url),
				slog.String("stack", err.Error()))
			json.NewEncoder(w).Encode([]subtitles.Cue{})
			return
		}
		json.NewEncoder(w).Encode(cues)
	})

	mux.HandleFunc("POST /api/v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		var req mountSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			renderJSONError(w, http.StatusBadRequest, "failed to decode request body")
			return
		}
		embed, err := store.GetEmbed(req.EmbedID)
		if err != nil {
			renderJSONError(w, http.StatusNotFound, "no embed with that id")
			return
		}
		var parsedConfig snippet.PlayerConfig
		if err := json.Unmarshal([]byte(embed.Config), &parsedConfig); err != nil {
			renderJSONError(w, http.StatusInternalServerError, "stored player config is corrupt")
			return
		}
		mountCfg := playback.MountConfig{
			PlayerSourceURL:  embed.PlayerSourceURL,
			PlayerLicenseKey: embed.PlayerLicenseKey,
			Tracks:           snippet.ParsedEmbed{Config: parsedConfig}.Tracks(),
		}
		session, err := ps.Mount(r.Context(), embed.ID, mountCfg, nil)
		if err != nil {
			// the captions side can still render; only the player subtree failed
			slog.Error("Failed to load player script",
				slog.String("embed_id", embed.ID),
				slog.String("stack", err.Error()))
			renderJSONError(w, http.StatusBadGateway, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(session.State())
	})

	mux.HandleFunc("GET /api/v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ps.Snapshot())
	})

	mux.HandleFunc("DELETE /api/v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := ps.Unmount(r.PathValue("id")); err != nil {
			renderJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/v1/sessions/{id}/events/time", func(w http.ResponseWriter, r *http.Request) {
		session, ok := ps.Get(r.PathValue("id"))
		if !ok {
			renderJSONError(w, http.StatusNotFound, "no session with that id")
			return
		}
		body, ok := readSignedBody(w, r, cfg.Webhook.PlayerSecret)
		if !ok {
			return
		}
		var req timeEventRequest
		if err := json.Unmarshal(body, &req); err != nil {
			renderJSONError(w, http.StatusBadRequest, "failed to decode request body")
			return
		}
		session.OnTimeUpdate(req.Position)
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("POST /api/v1/sessions/{id}/events/captions", func(w http.ResponseWriter, r *http.Request) {
		session, ok := ps.Get(r.PathValue("id"))
		if !ok {
			renderJSONError(w, http.StatusNotFound, "no session with that id")
			return
		}
		body, ok := readSignedBody(w, r, cfg.Webhook.PlayerSecret)
		if !ok {
			return
		}
		var req captionsEventRequest
		if err := json.Unmarshal(body, &req); err != nil {
			renderJSONError(w, http.StatusBadRequest, "failed to decode request body")
			return
		}
		session.OnCaptionsChanged(context.Background(), req.Track)
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("POST /api/v1/sessions/{id}/seek", func(w http.ResponseWriter, r *http.Request) {
		session, ok := ps.Get(r.PathValue("id"))
		if !ok {
			renderJSONError(w, http.StatusNotFound, "no session with that id")
			return
		}
		var req seekRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			renderJSONError(w, http.StatusBadRequest, "failed to decode request body")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if req.Pointer != nil && !playback.IsClick(req.Pointer.DownX, req.Pointer.DownY, req.Pointer.UpX, req.Pointer.UpY) {
			// the pointer moved, so this was a text selection, not a click
			json.NewEncoder(w).Encode(map[string]bool{"suppressed": true})
			return
		}
		seconds := session.RequestSeek(req.StartMs)
		json.NewEncoder(w).Encode(map[string]float64{"seek_seconds": seconds})
	})

	mux.HandleFunc("GET /api/v1/sessions/{id}/captions", func(w http.ResponseWriter, r *http.Request) {
		session, ok := ps.Get(r.PathValue("id"))
		if !ok {
			renderJSONError(w, http.StatusNotFound, "no session with that id")
			return
		}
		query := r.URL.Query().Get("query")
		autoScroll := r.URL.Query().Get("auto_scroll") == "true"
		session.SetFilter(query, autoScroll)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(session.Captions())
	})

	mux.HandleFunc("GET /api/v1/history", func(w http.ResponseWriter, r *http.Request) {
		viewings, err := store.RecentViewings(7)
		if err != nil {
			renderJSONError(w, http.StatusInternalServerError, "failed to load viewing history")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(viewings)
	})

	mux.HandleFunc("/events", events.Server.ServeHTTP)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.Origins(),
		AllowedMethods: []string{"GET", "POST", "DELETE"},
		AllowedHeaders: []string{"Origin, Content-Type, Accept, X-Capsync-Signature"},
	})

	return c.Handler(mux)
}

// generateEmbedID derives a stable id from the snippet text so pasting the
// same embed twice lands on the same row.
func generateEmbedID(rawSnippet string) string {
	return fmt.Sprintf("embed:%d", xxhash.Sum64String(rawSnippet))
}

func posterURL(parsed snippet.ParsedEmbed) string {
	if len(parsed.Config.Playlist) == 0 {
		return ""
	}
	poster := parsed.Config.Playlist[0].Image
	if strings.HasPrefix(poster, "//") {
		poster = "https:" + poster
	}
	return poster
}

// readSignedBody reads the webhook body and, when a secret is configured,
// rejects anything whose signature doesn't check out.
func readSignedBody(w http.ResponseWriter, r *http.Request, secret string) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		renderJSONError(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	if secret == "" {
		return body, true
	}
	signature := r.Header.Get("X-Capsync-Signature")
	if signature == "" {
		renderJSONError(w, http.StatusUnauthorized, "no signature was provided")
		return nil, false
	}
	if err := hmacext.Validate(body, fmt.Sprintf("sha256=%s", signature), secret); err != nil {
		slog.With(slog.Any("error", err)).Error("Failed signature validation")
		renderJSONError(w, http.StatusUnauthorized, "signature failed validation")
		return nil, false
	}
	return body, true
}

// primeTrackCache pulls each subtitle track down once at registration time
// so the refresh job has something to keep warm.
func primeTrackCache(store db.Store, loader *subtitles.Loader, embedID string, tracks []snippet.Track) {
	for _, track := range tracks {
		if track.Kind != shared.TRACK_KIND_CAPTIONS {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		body, err := loader.FetchRaw(ctx, track.File)
		cancel()
		if err != nil {
			slog.Warn("Failed to prime track cache",
				slog.String("url", track.File),
				slog.String("stack", err.Error()))
			continue
		}
		cached := models.CachedTrack{
			URL:     track.File,
			EmbedID: embedID,
			Label:   track.Label,
			Kind:    track.Kind,
			Body:    string(body),
		}
		if err := store.UpsertCachedTrack(cached); err != nil {
			slog.Error("Failed to save cached track",
				slog.String("url", track.File),
				slog.String("stack", err.Error()))
		}
	}
}
