package db

import (
	"embed"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/capsync/capsync/models"

	_ "modernc.org/sqlite"
)

type SqliteStore struct {
	DB *sqlx.DB
}

func NewSqliteStore(dsn string) (Store, error) {
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &SqliteStore{
		DB: db,
	}, nil
}

func (s *SqliteStore) ApplyMigrations(migrations embed.FS) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect(string(goose.DialectSQLite3)); err != nil {
		return err
	}

	if err := goose.Up(s.DB.DB, "."); err != nil {
		return err
	}

	return nil
}

func (s *SqliteStore) InsertEmbed(embed models.Embed) error {
	_, err := s.DB.NamedExec(`
	  INSERT INTO embeds
	  (id, created_at, snippet, player_source_url, player_license_key, config, width, height, font_family, responsive, poster_colours)
	  VALUES (:id, :created_at, :snippet, :player_source_url, :player_license_key, :config, :width, :height, :font_family, :responsive, :poster_colours)
	  ON CONFLICT (id) DO UPDATE SET
	  width = excluded.width,
	  height = excluded.height,
	  font_family = excluded.font_family,
	  responsive = excluded.responsive,
	  poster_colours = excluded.poster_colours`,
		embed)
	return err
}

func (s *SqliteStore) GetEmbed(id string) (models.Embed, error) {
	e := models.Embed{}
	err := s.DB.Get(&e, "SELECT * FROM embeds WHERE id = ?", id)
	return e, err
}

func (s *SqliteStore) RecentEmbeds(limit int) ([]models.Embed, error) {
	es := []models.Embed{}
	if limit <= 0 {
		return es, fmt.Errorf("must request at least one embed")
	}
	err := s.DB.Select(&es, "SELECT * FROM embeds ORDER BY created_at DESC LIMIT ?", limit)
	return es, err
}

func (s *SqliteStore) UpsertCachedTrack(track models.CachedTrack) error {
	if track.FetchedAt.IsZero() {
		track.FetchedAt = time.Now()
	}
	_, err := s.DB.NamedExec(`
	  INSERT INTO track_cache
	  (url, embed_id, label, kind, body, fetched_at, failure_count)
	  VALUES (:url, :embed_id, :label, :kind, :body, :fetched_at, 0)
	  ON CONFLICT (url) DO UPDATE SET
	  body = excluded.body,
	  fetched_at = excluded.fetched_at,
	  failure_count = 0`,
		track)
	return err
}

func (s *SqliteStore) GetCachedTrack(url string) (models.CachedTrack, error) {
	t := models.CachedTrack{}
	err := s.DB.Get(&t, "SELECT * FROM track_cache WHERE url = ?", url)
	return t, err
}

func (s *SqliteStore) ListCachedTracks() ([]models.CachedTrack, error) {
	ts := []models.CachedTrack{}
	err := s.DB.Select(&ts, "SELECT * FROM track_cache ORDER BY fetched_at ASC")
	return ts, err
}

func (s *SqliteStore) BumpTrackFailure(url string) (int, error) {
	_, err := s.DB.Exec(`
	  UPDATE track_cache
	  SET failure_count = failure_count + 1
	  WHERE url = ?`, url)
	if err != nil {
		return 0, err
	}
	var count int
	if err := s.DB.Get(&count, "SELECT failure_count FROM track_cache WHERE url = ?", url); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *SqliteStore) InsertViewing(viewing models.Viewing) error {
	_, err := s.DB.NamedExec(`
	  INSERT INTO viewing_history
	  (session_id, embed_id, started_at, ended_at, last_position_ms)
	  VALUES (:session_id, :embed_id, :started_at, :ended_at, :last_position_ms)`,
		viewing)
	return err
}

func (s *SqliteStore) RecentViewings(limit int) ([]models.Viewing, error) {
	vs := []models.Viewing{}
	if limit <= 0 {
		return vs, fmt.Errorf("must request at least one historical item")
	}
	err := s.DB.Select(&vs, "SELECT * FROM viewing_history ORDER BY ended_at DESC LIMIT ?", limit)
	return vs, err
}
