package music

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

func AutoMigrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS pgcrypto`); err != nil {
		log.Printf("music-service: migrate pgcrypto: %v", err)
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS playlists (
          id            uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          business_id   TEXT NOT NULL,
          name          TEXT NOT NULL,
          playlist_type TEXT NOT NULL DEFAULT 'ordered',
          auto_generated BOOLEAN NOT NULL DEFAULT FALSE,
          shuffle_include_new_uploads BOOLEAN NOT NULL DEFAULT TRUE,
          color_code    TEXT NOT NULL DEFAULT '',
          priority      INT NOT NULL DEFAULT 1,
          description   TEXT NOT NULL DEFAULT '',
          created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		log.Printf("music-service: migrate playlists: %v", err)
		return err
	}

	// One auto-generated shuffle playlist per business. Enforced here so
	// concurrent EnsureDefaultShufflePlaylist callers cannot create two.
	if _, err := pool.Exec(ctx, `
      CREATE UNIQUE INDEX IF NOT EXISTS idx_playlists_default_shuffle
      ON playlists(business_id)
      WHERE auto_generated AND playlist_type = 'shuffle'
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS tracks (
          id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          business_id TEXT NOT NULL,
          title       TEXT NOT NULL,
          artist      TEXT NOT NULL DEFAULT '',
          file_path   TEXT NOT NULL DEFAULT '',
          duration    INT NOT NULL DEFAULT 0 CHECK (duration >= 0),
          include_in_shuffle BOOLEAN NOT NULL DEFAULT TRUE,
          created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS playlist_tracks (
          playlist_id uuid NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
          track_id    uuid NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
          sort_order  INT NOT NULL,
          created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
          PRIMARY KEY (playlist_id, track_id)
      )
    `); err != nil {
		return err
	}

	// Cascade from playlists so deleting a playlist removes its schedules
	// and memberships in one statement.
	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS schedules (
          id            uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          business_id   TEXT NOT NULL,
          playlist_id   uuid NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
          schedule_date DATE,
          start_time    TEXT NOT NULL,
          end_time      TEXT NOT NULL,
          priority      INT NOT NULL DEFAULT 1,
          active        BOOLEAN NOT NULL DEFAULT TRUE,
          repeat_type   TEXT NOT NULL DEFAULT 'once',
          repeat_until  DATE,
          immediate_switch   BOOLEAN NOT NULL DEFAULT FALSE,
          loop_playlist      BOOLEAN NOT NULL DEFAULT FALSE,
          stop_when_complete BOOLEAN NOT NULL DEFAULT FALSE,
          created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE INDEX IF NOT EXISTS idx_schedules_business_date
      ON schedules(business_id, schedule_date)
    `); err != nil {
		return err
	}

	return nil
}
