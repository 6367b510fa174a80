package music

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

// DB is the subset of pgxpool.Pool the handlers use. Satisfied by
// *pgxpool.Pool in production and by MockDB in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type Server struct {
	db  DB
	rdb *redis.Client

	// activeSchedules tracks the schedule the ticker last announced per
	// business, so an event fires only when the winner changes.
	mu              sync.Mutex
	activeSchedules map[string]string
}

func NewServer(db DB, rdb *redis.Client) *Server {
	return &Server{
		db:              db,
		rdb:             rdb,
		activeSchedules: map[string]string{},
	}
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Post("/playlists", s.handleCreatePlaylist)
		r.Get("/playlists", s.handleListPlaylists)
		r.Get("/playlists/{id}", s.handleGetPlaylist)
		r.Patch("/playlists/{id}", s.handlePatchPlaylist)
		r.Delete("/playlists/{id}", s.handleDeletePlaylist)

		r.Get("/playlists/{id}/content", s.handlePlaylistContent)
		r.Post("/playlists/default-shuffle", s.handleEnsureDefaultShuffle)
		r.Get("/playlists/default-shuffle/content", s.handleDefaultShuffleContent)

		r.Post("/playlists/{id}/tracks", s.handleAddPlaylistTrack)
		r.Put("/playlists/{id}/tracks", s.handleReplacePlaylistTracks)
		r.Delete("/playlists/{id}/tracks/{trackId}", s.handleRemovePlaylistTrack)

		r.Post("/tracks", s.handleCreateTrack)
		r.Get("/tracks", s.handleListTracks)
		r.Patch("/tracks/{id}", s.handlePatchTrack)
		r.Delete("/tracks/{id}", s.handleDeleteTrack)

		r.Post("/schedules", s.handleCreateSchedule)
		r.Get("/schedules", s.handleListSchedules)
		r.Patch("/schedules/{id}", s.handlePatchSchedule)
		r.Delete("/schedules/{id}", s.handleDeleteSchedule)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "music-service",
	})
}
