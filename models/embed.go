package models

import (
	"database/sql/driver"
	"errors"
	"strings"
	"time"
)

// SerializedColours is a custom DB extension type that stores a string
// slice as a comma separated value in the database.
// Example input: []string{"#020304", "#6581be"}
// Example DB value: #020304,#6581be
type SerializedColours []string

func (s SerializedColours) Value() (driver.Value, error) {
	return strings.Join(s, ","), nil
}

func (s *SerializedColours) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		if v == "" {
			*s = SerializedColours{}
			return nil
		}
		*s = SerializedColours(strings.Split(v, ","))
	case []byte:
		return s.Scan(string(v))
	default:
		return errors.New("incompatible type for SerializedColours")
	}
	return nil
}

// Embed is a registered block: the snippet the author pasted, what we
// parsed out of it, and the display attributes the host editor stores
// alongside it.
type Embed struct {
	ID               string            `db:"id" json:"id"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
	Snippet          string            `db:"snippet" json:"-"`
	PlayerSourceURL  string            `db:"player_source_url" json:"player_source_url"`
	PlayerLicenseKey string            `db:"player_license_key" json:"-"`
	Config           string            `db:"config" json:"-"` // PlayerConfig as JSON
	Width            string            `db:"width" json:"width,omitempty"`
	Height           string            `db:"height" json:"height,omitempty"`
	FontFamily       string            `db:"font_family" json:"font_family,omitempty"`
	Responsive       bool              `db:"responsive" json:"responsive"`
	PosterColours    SerializedColours `db:"poster_colours" json:"poster_colours"`
}

// CachedTrack is a subtitle file we have pulled down for an embed. The
// refresher job keeps it warm; FailureCount climbs when the upstream URL
// stops answering so repeated breakage can be surfaced.
type CachedTrack struct {
	URL          string    `db:"url" json:"url"`
	EmbedID      string    `db:"embed_id" json:"embed_id"`
	Label        string    `db:"label" json:"label"`
	Kind         string    `db:"kind" json:"kind"`
	Body         string    `db:"body" json:"-"`
	FetchedAt    time.Time `db:"fetched_at" json:"fetched_at"`
	FailureCount int       `db:"failure_count" json:"failure_count"`
}

// Viewing summarises a finished playback session for the history feed.
type Viewing struct {
	ID             int       `db:"id" json:"-"`
	SessionID      string    `db:"session_id" json:"session_id"`
	EmbedID        string    `db:"embed_id" json:"embed_id"`
	StartedAt      time.Time `db:"started_at" json:"started_at"`
	EndedAt        time.Time `db:"ended_at" json:"ended_at"`
	LastPositionMs int       `db:"last_position_ms" json:"last_position_ms"`
}
