package music

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
)

// handleCreatePlaylist creates a playlist scoped to the current business.
func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bizID := businessID(r)
	if bizID == "" {
		writeError(w, http.StatusUnauthorized, "missing business context")
		return
	}

	var body struct {
		Name                     string  `json:"name"`
		PlaylistType             *string `json:"playlistType"` // optional, default "ordered"
		ColorCode                string  `json:"colorCode"`
		Priority                 *int    `json:"priority"`
		Description              string  `json:"description"`
		ShuffleIncludeNewUploads *bool   `json:"shuffleIncludeNewUploads"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	body.Name = strings.TrimSpace(body.Name)
	body.Description = strings.TrimSpace(body.Description)

	if body.Name == "" || len(body.Name) > 200 {
		writeError(w, http.StatusBadRequest, "name must be between 1 and 200 characters")
		return
	}
	if len(body.Description) > 1000 {
		writeError(w, http.StatusBadRequest, "description is too long")
		return
	}

	playlistType := playlistTypeOrdered
	if body.PlaylistType != nil {
		pt := strings.ToLower(strings.TrimSpace(*body.PlaylistType))
		if pt != playlistTypeOrdered && pt != playlistTypeShuffle {
			writeError(w, http.StatusBadRequest, `invalid playlistType (must be "ordered" or "shuffle")`)
			return
		}
		playlistType = pt
	}

	priority := 1
	if body.Priority != nil {
		priority = clampPriority(*body.Priority)
	}

	shuffleNew := true
	if body.ShuffleIncludeNewUploads != nil {
		shuffleNew = *body.ShuffleIncludeNewUploads
	}

	pl, err := scanPlaylist(s.db.QueryRow(ctx, `
		INSERT INTO playlists (business_id, name, playlist_type, shuffle_include_new_uploads,
			color_code, priority, description)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING `+playlistColumns+`
	`, bizID, body.Name, playlistType, shuffleNew, body.ColorCode, priority, body.Description))
	if err != nil {
		log.Printf("music-service: create playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, "playlist.created", map[string]any{
		"playlist": pl,
		"userId":   currentUserID(r),
	})

	writeJSON(w, http.StatusCreated, pl)
}

func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bizID := businessID(r)
	if bizID == "" {
		writeError(w, http.StatusUnauthorized, "missing business context")
		return
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+playlistColumns+`
		FROM playlists
		WHERE business_id = $1
		ORDER BY created_at DESC
		LIMIT 200
	`, bizID)
	if err != nil {
		log.Printf("music-service: list playlists: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer rows.Close()

	playlists := []Playlist{}
	for rows.Next() {
		pl, err := scanPlaylist(rows)
		if err != nil {
			log.Printf("music-service: list playlists scan: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		playlists = append(playlists, pl)
	}
	if err := rows.Err(); err != nil {
		log.Printf("music-service: list playlists rows: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, playlists)
}

func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
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

	pl, err := s.getPlaylist(ctx, playlistID, bizID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	if err != nil {
		log.Printf("music-service: get playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, pl)
}

// handlePatchPlaylist updates playlist metadata. The auto_generated flag and
// playlist_type are immutable after creation.
func (s *Server) handlePatchPlaylist(w http.ResponseWriter, r *http.Request) {
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
		Name                     *string `json:"name"`
		Description              *string `json:"description"`
		ColorCode                *string `json:"colorCode"`
		Priority                 *int    `json:"priority"`
		ShuffleIncludeNewUploads *bool   `json:"shuffleIncludeNewUploads"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Printf("music-service: patch playlist begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(ctx)

	existing, err := scanPlaylist(tx.QueryRow(ctx, `
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
		log.Printf("music-service: patch playlist fetch: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" || len(name) > 200 {
			writeError(w, http.StatusBadRequest, "name must be between 1 and 200 characters")
			return
		}
		existing.Name = name
	}
	if body.Description != nil {
		desc := strings.TrimSpace(*body.Description)
		if len(desc) > 1000 {
			writeError(w, http.StatusBadRequest, "description is too long")
			return
		}
		existing.Description = desc
	}
	if body.ColorCode != nil {
		existing.ColorCode = strings.TrimSpace(*body.ColorCode)
	}
	if body.Priority != nil {
		existing.Priority = clampPriority(*body.Priority)
	}
	if body.ShuffleIncludeNewUploads != nil {
		existing.ShuffleIncludeNewUploads = *body.ShuffleIncludeNewUploads
	}

	_, err = tx.Exec(ctx, `
		UPDATE playlists
		SET name = $2,
			description = $3,
			color_code = $4,
			priority = $5,
			shuffle_include_new_uploads = $6
		WHERE id = $1
	`, existing.ID, existing.Name, existing.Description, existing.ColorCode,
		existing.Priority, existing.ShuffleIncludeNewUploads)
	if err != nil {
		log.Printf("music-service: patch playlist update: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("music-service: patch playlist commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, "playlist.updated", map[string]any{
		"playlist": existing,
	})

	writeJSON(w, http.StatusOK, existing)
}

// handleDeletePlaylist hard-deletes a playlist. Memberships and schedules go
// with it via FK cascade, so there is no partial-deletion state.
func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
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

	tag, err := s.db.Exec(ctx, `
		DELETE FROM playlists
		WHERE id = $1 AND business_id = $2
	`, playlistID, bizID)
	if err != nil {
		log.Printf("music-service: delete playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if tag.RowsAffected() == 0 {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}

	s.publishEvent(ctx, "playlist.deleted", map[string]any{
		"playlistId": playlistID,
		"businessId": bizID,
	})

	w.WriteHeader(http.StatusNoContent)
}

// handleEnsureDefaultShuffle lazily creates the business's auto-generated
// shuffle playlist and returns it. Idempotent.
func (s *Server) handleEnsureDefaultShuffle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bizID := businessID(r)
	if bizID == "" {
		writeError(w, http.StatusUnauthorized, "missing business context")
		return
	}

	pl, err := s.EnsureDefaultShufflePlaylist(ctx, bizID)
	if err != nil {
		log.Printf("music-service: ensure default shuffle: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, pl)
}

func clampPriority(p int) int {
	if p < 1 {
		return 1
	}
	if p > 10 {
		return 10
	}
	return p
}
