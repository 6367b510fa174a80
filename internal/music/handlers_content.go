package music

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// handlePlaylistContent resolves the concrete track order for playback.
// Ordered playlists return their membership rows by sort_order; shuffle
// playlists draw the eligibility set and permute it. Nothing is cached:
// every call re-fetches, and a shuffle playlist re-shuffles.
func (s *Server) handlePlaylistContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bizID := businessID(r)
	if bizID == "" {
		writeError(w, http.StatusUnauthorized, "missing business context")
		return
	}

	playlistID := pathID(r, "id")
	if playlistID == "" {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}

	content, err := s.LoadPlaylistContent(ctx, playlistID, bizID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	if err != nil {
		log.Printf("music-service: load playlist content: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, content)
}

// handleDefaultShuffleContent resolves content for the business's
// auto-generated shuffle playlist, creating it first if the business does
// not have one yet.
func (s *Server) handleDefaultShuffleContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bizID := businessID(r)
	if bizID == "" {
		writeError(w, http.StatusUnauthorized, "missing business context")
		return
	}

	pl, err := s.EnsureDefaultShufflePlaylist(ctx, bizID)
	if err != nil {
		log.Printf("music-service: default shuffle content ensure: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	content, err := s.LoadPlaylistContent(ctx, pl.ID, bizID)
	if err != nil {
		log.Printf("music-service: default shuffle content load: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, content)
}

// LoadPlaylistContent fetches a playlist and resolves its track order.
// Returns pgx.ErrNoRows when the playlist does not exist. An empty track
// list is a valid result, not an error.
func (s *Server) LoadPlaylistContent(ctx context.Context, playlistID, businessID string) (PlaylistContent, error) {
	pl, err := s.getPlaylist(ctx, playlistID, businessID)
	if err != nil {
		return PlaylistContent{}, err
	}

	var tracks []Track
	if pl.PlaylistType == playlistTypeShuffle {
		tracks, err = s.getShuffleTracks(ctx, playlistID, businessID)
		if err != nil {
			return PlaylistContent{}, err
		}
		shuffleTracks(tracks)
	} else {
		tracks, err = s.orderedTracks(ctx, playlistID)
		if err != nil {
			return PlaylistContent{}, err
		}
	}

	return PlaylistContent{Playlist: pl, Tracks: tracks}, nil
}

func (s *Server) orderedTracks(ctx context.Context, playlistID string) ([]Track, error) {
	rows, err := s.db.Query(ctx, `
		SELECT t.id, t.business_id, t.title, t.artist, t.file_path, t.duration,
		       t.include_in_shuffle, t.created_at, pt.sort_order
		FROM playlist_tracks pt
		JOIN tracks t ON t.id = pt.track_id
		WHERE pt.playlist_id = $1
		ORDER BY pt.sort_order ASC
	`, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tracks := []Track{}
	for rows.Next() {
		var tr Track
		if err := rows.Scan(
			&tr.ID,
			&tr.BusinessID,
			&tr.Title,
			&tr.Artist,
			&tr.FilePath,
			&tr.Duration,
			&tr.IncludeInShuffle,
			&tr.CreatedAt,
			&tr.SortOrder,
		); err != nil {
			return nil, err
		}
		tracks = append(tracks, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tracks, nil
}
