package music

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const scheduleColumns = `id, business_id, playlist_id, schedule_date::text,
	start_time, end_time, priority, active, repeat_type, repeat_until::text,
	immediate_switch, loop_playlist, stop_when_complete, created_at`

func scanSchedule(row pgx.Row) (Schedule, error) {
	var sc Schedule
	err := row.Scan(
		&sc.ID,
		&sc.BusinessID,
		&sc.PlaylistID,
		&sc.ScheduleDate,
		&sc.StartTime,
		&sc.EndTime,
		&sc.Priority,
		&sc.Active,
		&sc.RepeatType,
		&sc.RepeatUntil,
		&sc.ImmediateSwitch,
		&sc.LoopPlaylist,
		&sc.StopWhenComplete,
		&sc.CreatedAt,
	)
	return sc, err
}

func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func validRepeatType(s string) bool {
	switch s {
	case repeatOnce, repeatDaily, repeatWeekly, repeatMonthly:
		return true
	}
	return false
}

// validateScheduleWindow checks the fields every schedule write must carry.
// Returns a user-facing message, or "" when valid.
func validateScheduleWindow(sc Schedule) string {
	if sc.PlaylistID == "" {
		return "playlistId is required"
	}
	if sc.ScheduleDate == nil || *sc.ScheduleDate == "" {
		return "scheduleDate is required"
	}
	if !validDate(*sc.ScheduleDate) {
		return "scheduleDate must be YYYY-MM-DD"
	}
	start, ok := parseClock(sc.StartTime)
	if !ok {
		return "startTime must be HH:MM"
	}
	end, ok := parseClock(sc.EndTime)
	if !ok {
		return "endTime must be HH:MM"
	}
	if !start.Before(end) {
		return "startTime must be before endTime (windows do not cross midnight)"
	}
	if !validRepeatType(sc.RepeatType) {
		return `invalid repeatType (must be "once", "daily", "weekly" or "monthly")`
	}
	if sc.RepeatType != repeatOnce {
		if sc.RepeatUntil == nil || *sc.RepeatUntil == "" {
			return "repeatUntil is required for repeating schedules"
		}
		if !validDate(*sc.RepeatUntil) {
			return "repeatUntil must be YYYY-MM-DD"
		}
	}
	return ""
}

// lockSchedulesForDate loads all of the business's schedules on a date under
// FOR UPDATE, so the conflict set is computed atomically with the write that
// follows in the same transaction. The exclusion clause is only added when
// excludeID is set: id is a uuid column and "" is not encodable as one.
func lockSchedulesForDate(ctx context.Context, tx pgx.Tx, businessID, date, excludeID string) ([]Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE business_id = $1 AND schedule_date = $2
		FOR UPDATE`
	args := []any{businessID, date}
	if excludeID != "" {
		query = `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE business_id = $1 AND schedule_date = $2 AND id <> $3
		FOR UPDATE`
		args = append(args, excludeID)
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schedules := []Schedule{}
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return schedules, nil
}

// writeConflicts reports the conflict set as a non-fatal advisory: the
// caller proceeds by resubmitting with confirmConflicts=true.
func writeConflicts(w http.ResponseWriter, conflicts []Schedule) {
	writeJSON(w, http.StatusConflict, map[string]any{
		"error":     fmt.Sprintf("schedule conflicts with %d existing schedule(s)", len(conflicts)),
		"conflicts": conflicts,
	})
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bizID := businessID(r)
	if bizID == "" {
		writeError(w, http.StatusUnauthorized, "missing business context")
		return
	}

	var body struct {
		PlaylistID       string  `json:"playlistId"`
		ScheduleDate     string  `json:"scheduleDate"`
		StartTime        string  `json:"startTime"`
		EndTime          string  `json:"endTime"`
		Priority         *int    `json:"priority"`
		Active           *bool   `json:"active"`
		RepeatType       string  `json:"repeatType"`
		RepeatUntil      *string `json:"repeatUntil"`
		ImmediateSwitch  bool    `json:"immediateSwitch"`
		LoopPlaylist     bool    `json:"loopPlaylist"`
		StopWhenComplete bool    `json:"stopWhenComplete"`
		ConfirmConflicts bool    `json:"confirmConflicts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	candidate := Schedule{
		BusinessID:       bizID,
		PlaylistID:       strings.TrimSpace(body.PlaylistID),
		ScheduleDate:     &body.ScheduleDate,
		StartTime:        strings.TrimSpace(body.StartTime),
		EndTime:          strings.TrimSpace(body.EndTime),
		Priority:         1,
		Active:           true,
		RepeatType:       repeatOnce,
		RepeatUntil:      body.RepeatUntil,
		ImmediateSwitch:  body.ImmediateSwitch,
		LoopPlaylist:     body.LoopPlaylist,
		StopWhenComplete: body.StopWhenComplete,
	}
	if body.Priority != nil {
		candidate.Priority = clampPriority(*body.Priority)
	}
	if body.Active != nil {
		candidate.Active = *body.Active
	}
	if rt := strings.ToLower(strings.TrimSpace(body.RepeatType)); rt != "" {
		candidate.RepeatType = rt
	}

	if msg := validateScheduleWindow(candidate); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	candidate.StartTime = normalizeClock(candidate.StartTime)
	candidate.EndTime = normalizeClock(candidate.EndTime)

	if _, err := s.getPlaylist(ctx, candidate.PlaylistID, bizID); errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	} else if err != nil {
		log.Printf("music-service: create schedule fetch playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Printf("music-service: create schedule begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(ctx)

	existing, err := lockSchedulesForDate(ctx, tx, bizID, *candidate.ScheduleDate, "")
	if err != nil {
		log.Printf("music-service: create schedule lock date: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	conflicts := CheckConflicts(candidate, existing, "")
	if len(conflicts) > 0 && !body.ConfirmConflicts {
		writeConflicts(w, conflicts)
		return
	}

	created, err := scanSchedule(tx.QueryRow(ctx, `
		INSERT INTO schedules (business_id, playlist_id, schedule_date, start_time, end_time,
			priority, active, repeat_type, repeat_until,
			immediate_switch, loop_playlist, stop_when_complete)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING `+scheduleColumns+`
	`, bizID, candidate.PlaylistID, *candidate.ScheduleDate, candidate.StartTime,
		candidate.EndTime, candidate.Priority, candidate.Active, candidate.RepeatType,
		candidate.RepeatUntil, candidate.ImmediateSwitch, candidate.LoopPlaylist,
		candidate.StopWhenComplete))
	if err != nil {
		log.Printf("music-service: create schedule insert: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("music-service: create schedule commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, "schedule.created", map[string]any{
		"schedule": created,
		"userId":   currentUserID(r),
	})

	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bizID := businessID(r)
	if bizID == "" {
		writeError(w, http.StatusUnauthorized, "missing business context")
		return
	}

	date := r.URL.Query().Get("date")
	if date != "" && !validDate(date) {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	var (
		rows pgx.Rows
		err  error
	)
	if date != "" {
		rows, err = s.db.Query(ctx, `
			SELECT `+scheduleColumns+`
			FROM schedules
			WHERE business_id = $1 AND schedule_date = $2
			ORDER BY start_time ASC
		`, bizID, date)
	} else {
		rows, err = s.db.Query(ctx, `
			SELECT `+scheduleColumns+`
			FROM schedules
			WHERE business_id = $1
			ORDER BY schedule_date ASC NULLS LAST, start_time ASC
		`, bizID)
	}
	if err != nil {
		log.Printf("music-service: list schedules: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer rows.Close()

	schedules := []Schedule{}
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			log.Printf("music-service: list schedules scan: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		schedules = append(schedules, sc)
	}
	if err := rows.Err(); err != nil {
		log.Printf("music-service: list schedules rows: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, schedules)
}

// handlePatchSchedule edits a schedule. The row being edited is excluded
// from its own conflict set.
func (s *Server) handlePatchSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bizID := businessID(r)
	if bizID == "" {
		writeError(w, http.StatusUnauthorized, "missing business context")
		return
	}

	scheduleID := pathID(r, "id")
	if scheduleID == "" {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}

	var body struct {
		PlaylistID       *string `json:"playlistId"`
		ScheduleDate     *string `json:"scheduleDate"`
		StartTime        *string `json:"startTime"`
		EndTime          *string `json:"endTime"`
		Priority         *int    `json:"priority"`
		Active           *bool   `json:"active"`
		RepeatType       *string `json:"repeatType"`
		RepeatUntil      *string `json:"repeatUntil"`
		ImmediateSwitch  *bool   `json:"immediateSwitch"`
		LoopPlaylist     *bool   `json:"loopPlaylist"`
		StopWhenComplete *bool   `json:"stopWhenComplete"`
		ConfirmConflicts bool    `json:"confirmConflicts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Printf("music-service: patch schedule begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(ctx)

	existing, err := scanSchedule(tx.QueryRow(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedules
		WHERE id = $1 AND business_id = $2
		FOR UPDATE
	`, scheduleID, bizID))
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}
	if err != nil {
		log.Printf("music-service: patch schedule fetch: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if body.PlaylistID != nil {
		existing.PlaylistID = strings.TrimSpace(*body.PlaylistID)
	}
	if body.ScheduleDate != nil {
		existing.ScheduleDate = body.ScheduleDate
	}
	if body.StartTime != nil {
		existing.StartTime = strings.TrimSpace(*body.StartTime)
	}
	if body.EndTime != nil {
		existing.EndTime = strings.TrimSpace(*body.EndTime)
	}
	if body.Priority != nil {
		existing.Priority = clampPriority(*body.Priority)
	}
	if body.Active != nil {
		existing.Active = *body.Active
	}
	if body.RepeatType != nil {
		existing.RepeatType = strings.ToLower(strings.TrimSpace(*body.RepeatType))
	}
	if body.RepeatUntil != nil {
		existing.RepeatUntil = body.RepeatUntil
	}
	if body.ImmediateSwitch != nil {
		existing.ImmediateSwitch = *body.ImmediateSwitch
	}
	if body.LoopPlaylist != nil {
		existing.LoopPlaylist = *body.LoopPlaylist
	}
	if body.StopWhenComplete != nil {
		existing.StopWhenComplete = *body.StopWhenComplete
	}

	if msg := validateScheduleWindow(existing); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	existing.StartTime = normalizeClock(existing.StartTime)
	existing.EndTime = normalizeClock(existing.EndTime)

	if body.PlaylistID != nil {
		if _, err := s.getPlaylist(ctx, existing.PlaylistID, bizID); errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "playlist not found")
			return
		} else if err != nil {
			log.Printf("music-service: patch schedule fetch playlist: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
	}

	others, err := lockSchedulesForDate(ctx, tx, bizID, *existing.ScheduleDate, scheduleID)
	if err != nil {
		log.Printf("music-service: patch schedule lock date: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	conflicts := CheckConflicts(existing, others, scheduleID)
	if len(conflicts) > 0 && !body.ConfirmConflicts {
		writeConflicts(w, conflicts)
		return
	}

	_, err = tx.Exec(ctx, `
		UPDATE schedules
		SET playlist_id = $2,
			schedule_date = $3,
			start_time = $4,
			end_time = $5,
			priority = $6,
			active = $7,
			repeat_type = $8,
			repeat_until = $9,
			immediate_switch = $10,
			loop_playlist = $11,
			stop_when_complete = $12
		WHERE id = $1
	`, existing.ID, existing.PlaylistID, *existing.ScheduleDate, existing.StartTime,
		existing.EndTime, existing.Priority, existing.Active, existing.RepeatType,
		existing.RepeatUntil, existing.ImmediateSwitch, existing.LoopPlaylist,
		existing.StopWhenComplete)
	if err != nil {
		log.Printf("music-service: patch schedule update: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("music-service: patch schedule commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, "schedule.updated", map[string]any{
		"schedule": existing,
		"userId":   currentUserID(r),
	})

	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bizID := businessID(r)
	if bizID == "" {
		writeError(w, http.StatusUnauthorized, "missing business context")
		return
	}

	scheduleID := pathID(r, "id")
	if scheduleID == "" {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}

	tag, err := s.db.Exec(ctx, `
		DELETE FROM schedules
		WHERE id = $1 AND business_id = $2
	`, scheduleID, bizID)
	if err != nil {
		log.Printf("music-service: delete schedule: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if tag.RowsAffected() == 0 {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}

	s.publishEvent(ctx, "schedule.deleted", map[string]any{
		"scheduleId": scheduleID,
		"businessId": bizID,
		"userId":     currentUserID(r),
	})

	w.WriteHeader(http.StatusNoContent)
}
