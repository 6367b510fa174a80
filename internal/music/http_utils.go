package music

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// businessID extracts the tenant scope set by the gateway. Every handler
// requires it; there is no ambient fallback.
func businessID(r *http.Request) string {
	return r.Header.Get("X-Business-Id")
}

func currentUserID(r *http.Request) string {
	return r.Header.Get("X-User-Id")
}

// pathID reads a uuid path parameter, returning "" for malformed values.
// A syntactically invalid uuid can never reference a row, and handing it to
// a uuid column would fail at encode time instead of returning no rows.
func pathID(r *http.Request, key string) string {
	id := chi.URLParam(r, key)
	if uuid.Validate(id) != nil {
		return ""
	}
	return id
}

// publishEvent sends a change event on the broadcast channel (best-effort;
// failures are logged, never surfaced to the caller).
func (s *Server) publishEvent(ctx context.Context, eventType string, payload any) {
	if s.rdb == nil {
		return
	}

	body := map[string]any{
		"eventId": uuid.NewString(),
		"type":    eventType,
		"payload": payload,
	}
	data, err := json.Marshal(body)
	if err != nil {
		log.Printf("music-service: marshal event: %v", err)
		return
	}
	if err := s.rdb.Publish(ctx, "broadcast", string(data)).Err(); err != nil {
		log.Printf("music-service: publish event: %v", err)
	}
}
