package music

import (
	"context"
	"errors"
	"log"

	"github.com/jackc/pgx/v5"
)

const playlistColumns = `id, business_id, name, playlist_type, auto_generated,
	shuffle_include_new_uploads, color_code, priority, description, created_at`

func scanPlaylist(row pgx.Row) (Playlist, error) {
	var pl Playlist
	err := row.Scan(
		&pl.ID,
		&pl.BusinessID,
		&pl.Name,
		&pl.PlaylistType,
		&pl.AutoGenerated,
		&pl.ShuffleIncludeNewUploads,
		&pl.ColorCode,
		&pl.Priority,
		&pl.Description,
		&pl.CreatedAt,
	)
	return pl, err
}

// getPlaylist fetches one playlist scoped to the business. Returns
// pgx.ErrNoRows when it does not exist (or belongs to another tenant).
func (s *Server) getPlaylist(ctx context.Context, playlistID, businessID string) (Playlist, error) {
	return scanPlaylist(s.db.QueryRow(ctx, `
		SELECT `+playlistColumns+`
		FROM playlists
		WHERE id = $1 AND business_id = $2
	`, playlistID, businessID))
}

func (s *Server) findDefaultShufflePlaylist(ctx context.Context, businessID string) (Playlist, error) {
	return scanPlaylist(s.db.QueryRow(ctx, `
		SELECT `+playlistColumns+`
		FROM playlists
		WHERE business_id = $1 AND auto_generated AND playlist_type = 'shuffle'
	`, businessID))
}

// EnsureDefaultShufflePlaylist returns the business's auto-generated shuffle
// playlist, creating it if missing. Creation goes through the server-side
// procedure first; when that fails the row is inserted directly with fixed
// defaults. Both paths finish with a re-select, so concurrent callers
// converge on the single row the partial unique index allows.
func (s *Server) EnsureDefaultShufflePlaylist(ctx context.Context, businessID string) (Playlist, error) {
	pl, err := s.findDefaultShufflePlaylist(ctx, businessID)
	if err == nil {
		return pl, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Playlist{}, err
	}

	if _, err := s.db.Exec(ctx, `SELECT create_default_shuffle_playlist($1)`, businessID); err != nil {
		log.Printf("music-service: default shuffle procedure unavailable, inserting directly: %v", err)
		if _, err := s.db.Exec(ctx, `
			INSERT INTO playlists (business_id, name, playlist_type, auto_generated,
				shuffle_include_new_uploads, priority, color_code)
			VALUES ($1, $2, 'shuffle', TRUE, TRUE, 1, $3)
			ON CONFLICT DO NOTHING
		`, businessID, defaultShuffleName, defaultShuffleColor); err != nil {
			return Playlist{}, err
		}
	}

	return s.findDefaultShufflePlaylist(ctx, businessID)
}
