package music

import (
	"time"
)

// Playlist is a named collection of tracks owned by one business.
// Ordered playlists play their membership rows by sort_order; shuffle
// playlists draw from the business's eligibility set on every load.
type Playlist struct {
	ID                       string    `json:"id"`
	BusinessID               string    `json:"businessId"`
	Name                     string    `json:"name"`
	PlaylistType             string    `json:"playlistType"` // "ordered" | "shuffle"
	AutoGenerated            bool      `json:"autoGenerated"`
	ShuffleIncludeNewUploads bool      `json:"shuffleIncludeNewUploads"`
	ColorCode                string    `json:"colorCode"`
	Priority                 int       `json:"priority"`
	Description              string    `json:"description"`
	CreatedAt                time.Time `json:"createdAt"`
}

// Track belongs to exactly one business and may appear in any number of
// playlists via membership rows.
type Track struct {
	ID               string    `json:"id"`
	BusinessID       string    `json:"businessId"`
	Title            string    `json:"title"`
	Artist           string    `json:"artist"`
	FilePath         string    `json:"filePath"`
	Duration         int       `json:"duration"` // seconds
	IncludeInShuffle bool      `json:"includeInShuffle"`
	CreatedAt        time.Time `json:"createdAt"`

	// SortOrder is populated only when the track was loaded through an
	// ordered playlist's membership rows.
	SortOrder int `json:"sortOrder,omitempty"`
}

// Schedule assigns a playlist to a calendar date and same-day time window.
// StartTime/EndTime are "HH:MM" wall-clock strings; windows never cross
// midnight. ScheduleDate is nil for recurring-only template rows, which are
// excluded from conflict detection.
type Schedule struct {
	ID           string  `json:"id"`
	BusinessID   string  `json:"businessId"`
	PlaylistID   string  `json:"playlistId"`
	ScheduleDate *string `json:"scheduleDate"` // "YYYY-MM-DD"
	StartTime    string  `json:"startTime"`
	EndTime      string  `json:"endTime"`
	Priority     int     `json:"priority"` // 1..10, higher wins; ties are only warned about
	Active       bool    `json:"active"`

	RepeatType  string  `json:"repeatType"` // "once" | "daily" | "weekly" | "monthly"
	RepeatUntil *string `json:"repeatUntil,omitempty"`

	ImmediateSwitch  bool `json:"immediateSwitch"`
	LoopPlaylist     bool `json:"loopPlaylist"`
	StopWhenComplete bool `json:"stopWhenComplete"`

	CreatedAt time.Time `json:"createdAt"`
}

// PlaylistContent is the playback payload for one playlist: metadata plus
// the concrete track order to play.
type PlaylistContent struct {
	Playlist Playlist `json:"playlist"`
	Tracks   []Track  `json:"tracks"`
}

const (
	playlistTypeOrdered = "ordered"
	playlistTypeShuffle = "shuffle"
)

const (
	repeatOnce    = "once"
	repeatDaily   = "daily"
	repeatWeekly  = "weekly"
	repeatMonthly = "monthly"
)

const (
	defaultShuffleName  = "Default Shuffle"
	defaultShuffleColor = "#10B981"
)
