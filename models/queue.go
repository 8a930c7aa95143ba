package models

import (
	"time"
)

type QueueStatus string

const (
	StatusWaiting QueueStatus = "WAITING"
	StatusPlaying QueueStatus = "PLAYING"
	StatusDone    QueueStatus = "DONE"
	StatusError   QueueStatus = "ERROR"
)

// transitionSources lists, per target status, the statuses an entry may move from.
// WAITING -> DONE/ERROR is the recovery path for items the display skipped.
var transitionSources = map[QueueStatus][]QueueStatus{
	StatusPlaying: {StatusWaiting},
	StatusDone:    {StatusWaiting, StatusPlaying},
	StatusError:   {StatusWaiting, StatusPlaying},
}

func (s QueueStatus) Valid() bool {
	switch s {
	case StatusWaiting, StatusPlaying, StatusDone, StatusError:
		return true
	}
	return false
}

func (s QueueStatus) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Active entries count against the one-entry-per-attendee rule.
func (s QueueStatus) Active() bool {
	return s == StatusWaiting || s == StatusPlaying
}

func (s QueueStatus) CanTransitionTo(to QueueStatus) bool {
	for _, from := range transitionSources[to] {
		if from == s {
			return true
		}
	}
	return false
}

func AllowedSources(to QueueStatus) []QueueStatus {
	return transitionSources[to]
}

type QueueEntry struct {
	QueueID     string      `json:"queue_id"`
	UserID      string      `json:"user_id"`
	Name        string      `json:"name"`
	VideoURL    string      `json:"video_url"`
	Status      QueueStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	PlayedAt    *time.Time  `json:"played_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`

	// Seq is the store-assigned insertion sequence used to break createdAt ties.
	Seq int64 `json:"-"`
}

// Before orders entries by creation time, then insertion order.
func (e QueueEntry) Before(other QueueEntry) bool {
	if !e.CreatedAt.Equal(other.CreatedAt) {
		return e.CreatedAt.Before(other.CreatedAt)
	}
	return e.Seq < other.Seq
}

type PositionedEntry struct {
	QueueEntry
	Position          int `json:"position"`
	EstimatedWaitTime int `json:"estimated_wait_time"` // seconds
}

type QueueStats struct {
	QueueLength     int        `json:"queue_length"`
	TotalWaitTime   int        `json:"total_wait_time"`
	AverageWaitTime float64    `json:"average_wait_time"`
	OldestItemTime  *time.Time `json:"oldest_item_time"`
}
