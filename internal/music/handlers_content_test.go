package music

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

func playlistRow(id, bizID, name, playlistType string) func(dest ...any) error {
	return func(dest ...any) error {
		*dest[0].(*string) = id
		*dest[1].(*string) = bizID
		*dest[2].(*string) = name
		*dest[3].(*string) = playlistType
		*dest[4].(*bool) = false
		*dest[5].(*bool) = true
		*dest[6].(*string) = ""
		*dest[7].(*int) = 1
		*dest[8].(*string) = ""
		*dest[9].(*time.Time) = time.Now()
		return nil
	}
}

func getContent(t *testing.T, srv *Server, playlistID, bizID string) (int, PlaylistContent) {
	t.Helper()
	r := srv.Router()
	req := httptest.NewRequest("GET", "/playlists/"+playlistID+"/content", nil)
	if bizID != "" {
		req.Header.Set("X-Business-Id", bizID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var content PlaylistContent
	if w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), &content); err != nil {
			t.Fatalf("decode content: %v", err)
		}
	}
	return w.Code, content
}

func TestPlaylistContentErrors(t *testing.T) {
	t.Run("Missing Business Context", func(t *testing.T) {
		srv := NewServer(&MockDB{}, nil)
		code, _ := getContent(t, srv, testPlaylistID, "")
		if code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", code)
		}
	})

	t.Run("Playlist Not Found", func(t *testing.T) {
		mockDB := &MockDB{
			QueryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
				return &MockRow{ScanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
			},
		}
		srv := NewServer(mockDB, nil)
		code, _ := getContent(t, srv, testMissingID, "biz-1")
		if code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", code)
		}
	})

	t.Run("Both Shuffle Paths Fail", func(t *testing.T) {
		mockDB := &MockDB{
			QueryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
				return &MockRow{ScanFunc: playlistRow("pl-1", "biz-1", "Shuffle", "shuffle")}
			},
			QueryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
				return nil, errors.New("db down")
			},
		}
		srv := NewServer(mockDB, nil)
		code, _ := getContent(t, srv, testPlaylistID, "biz-1")
		if code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", code)
		}
	})
}

// An unchanged ordered playlist must resolve to the identical track order on
// every call.
func TestPlaylistContentOrderedDeterminism(t *testing.T) {
	now := time.Now()
	mockDB := &MockDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &MockRow{ScanFunc: playlistRow("pl-1", "biz-1", "Morning", "ordered")}
		},
		QueryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			if !strings.Contains(sql, "FROM playlist_tracks") {
				return nil, errors.New("unexpected query: " + sql)
			}
			return &MockRows{
				Data: [][]any{
					{"t1", "biz-1", "First", "A", "/1.mp3", 100, true, now, 1},
					{"t2", "biz-1", "Second", "B", "/2.mp3", 200, true, now, 2},
				},
				Idx: -1,
			}, nil
		},
	}
	srv := NewServer(mockDB, nil)

	for i := 0; i < 2; i++ {
		code, content := getContent(t, srv, testPlaylistID, "biz-1")
		if code != http.StatusOK {
			t.Fatalf("call %d: expected 200, got %d", i, code)
		}
		if content.Playlist.ID != "pl-1" {
			t.Errorf("call %d: expected playlist pl-1, got %s", i, content.Playlist.ID)
		}
		if len(content.Tracks) != 2 ||
			content.Tracks[0].ID != "t1" || content.Tracks[1].ID != "t2" {
			t.Errorf("call %d: expected [t1 t2], got %+v", i, content.Tracks)
		}
		if content.Tracks[0].SortOrder != 1 || content.Tracks[1].SortOrder != 2 {
			t.Errorf("call %d: sort orders not preserved: %+v", i, content.Tracks)
		}
	}
}

// The procedure's rows use track_id; the response must carry them as id.
func TestPlaylistContentShufflePrimarySource(t *testing.T) {
	mockDB := &MockDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &MockRow{ScanFunc: playlistRow("pl-1", "biz-1", "Shuffle", "shuffle")}
		},
		QueryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			if !strings.Contains(sql, "get_shuffle_playlist_tracks") {
				return nil, errors.New("fallback must not run when the procedure works")
			}
			return &MockRows{
				Fields: []string{"track_id", "title", "artist", "duration", "include_in_shuffle"},
				Data: [][]any{
					{"t1", "Song A", "A", int32(100), true},
					{"t2", "Song B", "B", int32(200), true},
					{"t3", "Song C", "C", int32(300), true},
				},
				Idx: -1,
			}, nil
		},
	}
	srv := NewServer(mockDB, nil)

	code, content := getContent(t, srv, testPlaylistID, "biz-1")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(content.Tracks) != 3 {
		t.Fatalf("expected 3 tracks, got %d", len(content.Tracks))
	}
	got := map[string]bool{}
	for _, tr := range content.Tracks {
		got[tr.ID] = true
	}
	for _, id := range []string{"t1", "t2", "t3"} {
		if !got[id] {
			t.Errorf("expected track %s in shuffled result, got %+v", id, content.Tracks)
		}
	}
}

// A failing procedure call degrades to the direct include_in_shuffle query;
// the request still succeeds.
func TestPlaylistContentShuffleFallback(t *testing.T) {
	now := time.Now()
	fallbackRan := false
	mockDB := &MockDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &MockRow{ScanFunc: playlistRow("pl-1", "biz-1", "Shuffle", "shuffle")}
		},
		QueryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			if strings.Contains(sql, "get_shuffle_playlist_tracks") {
				return nil, errors.New("function get_shuffle_playlist_tracks does not exist")
			}
			fallbackRan = true
			return &MockRows{
				Data: [][]any{
					{"t9", "biz-1", "Fallback Song", "A", "/9.mp3", 90, true, now},
				},
				Idx: -1,
			}, nil
		},
	}
	srv := NewServer(mockDB, nil)

	code, content := getContent(t, srv, testPlaylistID, "biz-1")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !fallbackRan {
		t.Fatalf("expected fallback query to run")
	}
	if len(content.Tracks) != 1 || content.Tracks[0].ID != "t9" {
		t.Errorf("expected fallback track t9, got %+v", content.Tracks)
	}
}

// A legitimately empty shuffle set is an empty playlist, not an error, and
// must not trigger the fallback.
func TestPlaylistContentShuffleEmptyIsNotError(t *testing.T) {
	mockDB := &MockDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &MockRow{ScanFunc: playlistRow("pl-1", "biz-1", "Shuffle", "shuffle")}
		},
		QueryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			if !strings.Contains(sql, "get_shuffle_playlist_tracks") {
				return nil, errors.New("fallback must not run for an empty procedure result")
			}
			return &MockRows{
				Fields: []string{"track_id", "title"},
				Idx:    -1,
			}, nil
		},
	}
	srv := NewServer(mockDB, nil)

	code, content := getContent(t, srv, testPlaylistID, "biz-1")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(content.Tracks) != 0 {
		t.Errorf("expected empty track list, got %+v", content.Tracks)
	}
}
