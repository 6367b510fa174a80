package music

import (
	"time"
)

// parseClock parses an "HH:MM" wall-clock string onto time.Parse's fixed
// reference date so same-day windows compare as instants. Windows crossing
// midnight are not representable.
func parseClock(s string) (time.Time, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// normalizeClock rewrites a valid clock string into zero-padded "HH:MM".
// time.Parse accepts "9:00", but stored times are compared as text, so every
// persisted value must be in the canonical form. Invalid input is returned
// unchanged for the validator to report.
func normalizeClock(s string) string {
	t, ok := parseClock(s)
	if !ok {
		return s
	}
	return t.Format("15:04")
}

// CheckConflicts returns the subset of existing schedules whose time window
// overlaps the candidate's on the same calendar date. Half-open interval
// semantics: touching endpoints do not conflict. Rows without a concrete
// schedule_date, the row identified by excludeID, and rows whose times fail
// to parse are skipped. Pure; the caller decides what to do with the result.
func CheckConflicts(candidate Schedule, existing []Schedule, excludeID string) []Schedule {
	if candidate.ScheduleDate == nil {
		return nil
	}
	aStart, ok := parseClock(candidate.StartTime)
	if !ok {
		return nil
	}
	aEnd, ok := parseClock(candidate.EndTime)
	if !ok {
		return nil
	}

	var conflicts []Schedule
	for _, sc := range existing {
		if excludeID != "" && sc.ID == excludeID {
			continue
		}
		if sc.ScheduleDate == nil || *sc.ScheduleDate != *candidate.ScheduleDate {
			continue
		}
		bStart, ok := parseClock(sc.StartTime)
		if !ok {
			continue
		}
		bEnd, ok := parseClock(sc.EndTime)
		if !ok {
			continue
		}
		if aStart.Before(bEnd) && aEnd.After(bStart) {
			conflicts = append(conflicts, sc)
		}
	}
	return conflicts
}
