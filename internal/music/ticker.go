package music

import (
	"context"
	"log"
	"time"
)

// StartTicker starts a background worker that watches the clock and
// announces which schedule is active for each business. The actual audio
// switch is the player's job; this only emits events.
func (s *Server) StartTicker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				s.checkActiveSchedules(ctx, time.Now())
			}
		}
	}()
}

// checkActiveSchedules finds, per business, the active schedules whose
// window contains now, and publishes a player.schedule_active event when the
// winner changes (or player.schedule_ended when the last window closes).
// Priority ties are not auto-resolved: the highest-priority, earliest-start
// row wins the announcement and the full candidate list rides along in the
// payload.
func (s *Server) checkActiveSchedules(ctx context.Context, now time.Time) {
	date := now.Format("2006-01-02")
	clock := now.Format("15:04")

	// "HH:MM" strings compare correctly as text.
	rows, err := s.db.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedules
		WHERE active
		  AND schedule_date = $1
		  AND start_time <= $2
		  AND end_time > $2
		ORDER BY business_id, priority DESC, start_time ASC
	`, date, clock)
	if err != nil {
		log.Printf("music-service: ticker query: %v", err)
		return
	}
	defer rows.Close()

	byBusiness := map[string][]Schedule{}
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			log.Printf("music-service: ticker scan: %v", err)
			return
		}
		byBusiness[sc.BusinessID] = append(byBusiness[sc.BusinessID], sc)
	}
	if err := rows.Err(); err != nil {
		log.Printf("music-service: ticker rows: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for bizID, candidates := range byBusiness {
		winner := candidates[0]
		if s.activeSchedules[bizID] == winner.ID {
			continue
		}
		s.activeSchedules[bizID] = winner.ID
		log.Printf("music-service: schedule %s active for business %s", winner.ID, bizID)
		s.publishEvent(ctx, "player.schedule_active", map[string]any{
			"businessId": bizID,
			"schedule":   winner,
			"candidates": candidates,
		})
	}

	for bizID, scheduleID := range s.activeSchedules {
		if _, stillActive := byBusiness[bizID]; stillActive {
			continue
		}
		delete(s.activeSchedules, bizID)
		s.publishEvent(ctx, "player.schedule_ended", map[string]any{
			"businessId": bizID,
			"scheduleId": scheduleID,
		})
	}
}
