package music

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
)

const trackColumns = `id, business_id, title, artist, file_path, duration,
	include_in_shuffle, created_at`

func scanTrack(row pgx.Row) (Track, error) {
	var tr Track
	err := row.Scan(
		&tr.ID,
		&tr.BusinessID,
		&tr.Title,
		&tr.Artist,
		&tr.FilePath,
		&tr.Duration,
		&tr.IncludeInShuffle,
		&tr.CreatedAt,
	)
	return tr, err
}

func (s *Server) handleCreateTrack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bizID := businessID(r)
	if bizID == "" {
		writeError(w, http.StatusUnauthorized, "missing business context")
		return
	}

	var body struct {
		Title            string `json:"title"`
		Artist           string `json:"artist"`
		FilePath         string `json:"filePath"`
		Duration         int    `json:"duration"`
		IncludeInShuffle *bool  `json:"includeInShuffle"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	body.Title = strings.TrimSpace(body.Title)
	body.Artist = strings.TrimSpace(body.Artist)

	if body.Title == "" || len(body.Title) > 300 {
		writeError(w, http.StatusBadRequest, "title must be between 1 and 300 characters")
		return
	}
	if len(body.Artist) > 200 {
		writeError(w, http.StatusBadRequest, "artist is too long")
		return
	}
	if body.Duration < 0 {
		writeError(w, http.StatusBadRequest, "duration must be >= 0 seconds")
		return
	}

	includeInShuffle := true
	if body.IncludeInShuffle != nil {
		includeInShuffle = *body.IncludeInShuffle
	}

	tr, err := scanTrack(s.db.QueryRow(ctx, `
		INSERT INTO tracks (business_id, title, artist, file_path, duration, include_in_shuffle)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING `+trackColumns+`
	`, bizID, body.Title, body.Artist, body.FilePath, body.Duration, includeInShuffle))
	if err != nil {
		log.Printf("music-service: create track: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, "track.created", map[string]any{
		"track": tr,
	})

	writeJSON(w, http.StatusCreated, tr)
}

func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bizID := businessID(r)
	if bizID == "" {
		writeError(w, http.StatusUnauthorized, "missing business context")
		return
	}

	query := `
		SELECT ` + trackColumns + `
		FROM tracks
		WHERE business_id = $1
		ORDER BY title ASC`
	if r.URL.Query().Get("shuffle") == "true" {
		query = `
		SELECT ` + trackColumns + `
		FROM tracks
		WHERE business_id = $1 AND include_in_shuffle
		ORDER BY title ASC`
	}

	rows, err := s.db.Query(ctx, query, bizID)
	if err != nil {
		log.Printf("music-service: list tracks: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer rows.Close()

	tracks := []Track{}
	for rows.Next() {
		tr, err := scanTrack(rows)
		if err != nil {
			log.Printf("music-service: list tracks scan: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		tracks = append(tracks, tr)
	}
	if err := rows.Err(); err != nil {
		log.Printf("music-service: list tracks rows: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, tracks)
}

func (s *Server) handlePatchTrack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bizID := businessID(r)
	if bizID == "" {
		writeError(w, http.StatusUnauthorized, "missing business context")
		return
	}

	trackID := pathID(r, "id")
	if trackID == "" {
		writeError(w, http.StatusNotFound, "track not found")
		return
	}

	var body struct {
		Title            *string `json:"title"`
		Artist           *string `json:"artist"`
		FilePath         *string `json:"filePath"`
		Duration         *int    `json:"duration"`
		IncludeInShuffle *bool   `json:"includeInShuffle"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Printf("music-service: patch track begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(ctx)

	existing, err := scanTrack(tx.QueryRow(ctx, `
		SELECT `+trackColumns+`
		FROM tracks
		WHERE id = $1 AND business_id = $2
		FOR UPDATE
	`, trackID, bizID))
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "track not found")
		return
	}
	if err != nil {
		log.Printf("music-service: patch track fetch: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if body.Title != nil {
		title := strings.TrimSpace(*body.Title)
		if title == "" || len(title) > 300 {
			writeError(w, http.StatusBadRequest, "title must be between 1 and 300 characters")
			return
		}
		existing.Title = title
	}
	if body.Artist != nil {
		existing.Artist = strings.TrimSpace(*body.Artist)
	}
	if body.FilePath != nil {
		existing.FilePath = strings.TrimSpace(*body.FilePath)
	}
	if body.Duration != nil {
		if *body.Duration < 0 {
			writeError(w, http.StatusBadRequest, "duration must be >= 0 seconds")
			return
		}
		existing.Duration = *body.Duration
	}
	if body.IncludeInShuffle != nil {
		existing.IncludeInShuffle = *body.IncludeInShuffle
	}

	_, err = tx.Exec(ctx, `
		UPDATE tracks
		SET title = $2,
			artist = $3,
			file_path = $4,
			duration = $5,
			include_in_shuffle = $6
		WHERE id = $1
	`, existing.ID, existing.Title, existing.Artist, existing.FilePath,
		existing.Duration, existing.IncludeInShuffle)
	if err != nil {
		log.Printf("music-service: patch track update: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("music-service: patch track commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, "track.updated", map[string]any{
		"track": existing,
	})

	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) handleDeleteTrack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bizID := businessID(r)
	if bizID == "" {
		writeError(w, http.StatusUnauthorized, "missing business context")
		return
	}

	trackID := pathID(r, "id")
	if trackID == "" {
		writeError(w, http.StatusNotFound, "track not found")
		return
	}

	tag, err := s.db.Exec(ctx, `
		DELETE FROM tracks
		WHERE id = $1 AND business_id = $2
	`, trackID, bizID)
	if err != nil {
		log.Printf("music-service: delete track: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if tag.RowsAffected() == 0 {
		writeError(w, http.StatusNotFound, "track not found")
		return
	}

	s.publishEvent(ctx, "track.deleted", map[string]any{
		"trackId":    trackID,
		"businessId": bizID,
	})

	w.WriteHeader(http.StatusNoContent)
}

// handleAddPlaylistTrack appends a track to an ordered playlist's
// membership, taking the next sort_order.
func (s *Server) handleAddPlaylistTrack(w http.ResponseWriter, r *http.Request) {
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

	var body struct {
		TrackID string `json:"trackId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.TrackID == "" {
		writeError(w, http.StatusBadRequest, "trackId is required")
		return
	}

	pl, err := s.getPlaylist(ctx, playlistID, bizID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	if err != nil {
		log.Printf("music-service: add playlist track fetch playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if pl.PlaylistType != playlistTypeOrdered {
		writeError(w, http.StatusBadRequest, "shuffle playlists have no explicit track order")
		return
	}

	tr, err := scanTrack(s.db.QueryRow(ctx, `
		SELECT `+trackColumns+`
		FROM tracks
		WHERE id = $1 AND business_id = $2
	`, body.TrackID, bizID))
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "track not found")
		return
	}
	if err != nil {
		log.Printf("music-service: add playlist track fetch track: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	err = s.db.QueryRow(ctx, `
		INSERT INTO playlist_tracks (playlist_id, track_id, sort_order)
		VALUES (
			$1, $2,
			COALESCE((SELECT MAX(sort_order)+1 FROM playlist_tracks WHERE playlist_id = $1), 1)
		)
		RETURNING sort_order
	`, playlistID, body.TrackID).Scan(&tr.SortOrder)
	if err != nil {
		log.Printf("music-service: add playlist track insert: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, "playlist.track_added", map[string]any{
		"playlistId": playlistID,
		"track":      tr,
	})

	writeJSON(w, http.StatusCreated, tr)
}

// handleReplacePlaylistTracks replaces the playlist's full membership set in
// one transaction: delete-all, then reinsert with sort_order = position+1.
// This is the reorder operation.
func (s *Server) handleReplacePlaylistTracks(w http.ResponseWriter, r *http.Request) {
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

	var body struct {
		TrackIDs []string `json:"trackIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	seen := map[string]bool{}
	for _, id := range body.TrackIDs {
		if id == "" {
			writeError(w, http.StatusBadRequest, "trackIds must not contain empty ids")
			return
		}
		if seen[id] {
			writeError(w, http.StatusBadRequest, "trackIds must not contain duplicates")
			return
		}
		seen[id] = true
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Printf("music-service: replace playlist tracks begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(ctx)

	pl, err := scanPlaylist(tx.QueryRow(ctx, `
		SELECT `+playlistColumns+`
		FROM playlists
		WHERE id = $1 AND business_id = $2
		FOR UPDATE
	`, playlistID, bizID))
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	if err != nil {
		log.Printf("music-service: replace playlist tracks fetch: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if pl.PlaylistType != playlistTypeOrdered {
		writeError(w, http.StatusBadRequest, "shuffle playlists have no explicit track order")
		return
	}

	if len(body.TrackIDs) > 0 {
		var known int
		if err := tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM tracks
			WHERE business_id = $1 AND id = ANY($2)
		`, bizID, body.TrackIDs).Scan(&known); err != nil {
			log.Printf("music-service: replace playlist tracks verify: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		if known != len(body.TrackIDs) {
			writeError(w, http.StatusBadRequest, "trackIds reference unknown tracks")
			return
		}
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM playlist_tracks WHERE playlist_id = $1
	`, playlistID); err != nil {
		log.Printf("music-service: replace playlist tracks clear: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	for i, trackID := range body.TrackIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO playlist_tracks (playlist_id, track_id, sort_order)
			VALUES ($1, $2, $3)
		`, playlistID, trackID, i+1); err != nil {
			log.Printf("music-service: replace playlist tracks insert: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("music-service: replace playlist tracks commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, "playlist.reordered", map[string]any{
		"playlistId": playlistID,
		"trackIds":   body.TrackIDs,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"playlistId": playlistID,
		"count":      len(body.TrackIDs),
	})
}

func (s *Server) handleRemovePlaylistTrack(w http.ResponseWriter, r *http.Request) {
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
	trackID := pathID(r, "trackId")
	if trackID == "" {
		writeError(w, http.StatusNotFound, "track is not in playlist")
		return
	}

	if _, err := s.getPlaylist(ctx, playlistID, bizID); errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	} else if err != nil {
		log.Printf("music-service: remove playlist track fetch playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	tag, err := s.db.Exec(ctx, `
		DELETE FROM playlist_tracks
		WHERE playlist_id = $1 AND track_id = $2
	`, playlistID, trackID)
	if err != nil {
		log.Printf("music-service: remove playlist track: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if tag.RowsAffected() == 0 {
		writeError(w, http.StatusNotFound, "track is not in playlist")
		return
	}

	s.publishEvent(ctx, "playlist.track_removed", map[string]any{
		"playlistId": playlistID,
		"trackId":    trackID,
	})

	w.WriteHeader(http.StatusNoContent)
}
