package db

import (
	"embed"

	"github.com/capsync/capsync/models"
)

type Store interface {
	ApplyMigrations(migrations embed.FS) error
	InsertEmbed(embed models.Embed) error
	GetEmbed(id string) (models.Embed, error)
	RecentEmbeds(limit int) ([]models.Embed, error)
	UpsertCachedTrack(track models.CachedTrack) error
	GetCachedTrack(url string) (models.CachedTrack, error)
	ListCachedTracks() ([]models.CachedTrack, error)
	BumpTrackFailure(url string) (int, error)
	InsertViewing(viewing models.Viewing) error
	RecentViewings(limit int) ([]models.Viewing, error)
}
