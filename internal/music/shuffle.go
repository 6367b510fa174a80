package music

import (
	"context"
	"log"
	"math/rand"

	"github.com/google/uuid"
)

// shuffleTracks permutes in place with Fisher–Yates, giving a uniformly
// random order. Slices of length <= 1 are returned as-is.
func shuffleTracks(ts []Track) {
	for i := len(ts) - 1; i >= 1; i-- {
		j := rand.Intn(i + 1)
		ts[i], ts[j] = ts[j], ts[i]
	}
}

// getShuffleTracks returns the shuffle-eligible set for a playlist. The
// server-side procedure is authoritative (it owns the eligibility rules);
// the direct query is a degraded substitute used only when the procedure
// call errors, never when it legitimately returns zero tracks.
func (s *Server) getShuffleTracks(ctx context.Context, playlistID, businessID string) ([]Track, error) {
	tracks, err := s.shuffleTracksFromProc(ctx, playlistID)
	if err == nil {
		return tracks, nil
	}
	log.Printf("music-service: shuffle procedure unavailable, using fallback: %v", err)
	return s.shuffleTracksFallback(ctx, businessID)
}

func (s *Server) shuffleTracksFromProc(ctx context.Context, playlistID string) ([]Track, error) {
	rows, err := s.db.Query(ctx, `SELECT * FROM get_shuffle_playlist_tracks($1)`, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	descs := rows.FieldDescriptions()
	fields := make([]string, len(descs))
	for i, d := range descs {
		fields[i] = string(d.Name)
	}

	var values [][]any
	for rows.Next() {
		v, err := rows.Values()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return normalizeTrackRows(fields, values), nil
}

func (s *Server) shuffleTracksFallback(ctx context.Context, businessID string) ([]Track, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, business_id, title, artist, file_path, duration, include_in_shuffle, created_at
		FROM tracks
		WHERE business_id = $1 AND include_in_shuffle
		ORDER BY title ASC
	`, businessID)
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

// normalizeTrackRows maps loosely-shaped remote track rows onto the
// canonical Track type. The procedure historically returns the identifier
// as track_id while direct queries use id; every remote-track path goes
// through here so the drift is handled in exactly one place.
func normalizeTrackRows(fields []string, rows [][]any) []Track {
	tracks := []Track{}
	for _, row := range rows {
		m := map[string]any{}
		for i, f := range fields {
			if i < len(row) {
				m[f] = row[i]
			}
		}

		id := m["track_id"]
		if id == nil {
			id = m["id"]
		}

		tracks = append(tracks, Track{
			ID:               asString(id),
			BusinessID:       asString(m["business_id"]),
			Title:            asString(m["title"]),
			Artist:           asString(m["artist"]),
			FilePath:         asString(m["file_path"]),
			Duration:         asInt(m["duration"]),
			IncludeInShuffle: asBool(m["include_in_shuffle"]),
		})
	}
	return tracks
}

// asString tolerates the types pgx hands back for text and uuid columns.
func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case [16]byte:
		return uuid.UUID(x).String()
	}
	return ""
}

func asInt(v any) int {
	switch x := v.(type) {
	case int:
		return x
	case int16:
		return int(x)
	case int32:
		return int(x)
	case int64:
		return int(x)
	case float64:
		return int(x)
	}
	return 0
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}
