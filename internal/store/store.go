package store

import (
	"context"
	"time"

	"checkin-system/models"
)

const DefaultChunkSize = 500

// AttendeeStore is the user directory. Get returns status.ErrAttendeeNotFound for unknown ids.
type AttendeeStore interface {
	Create(ctx context.Context, a *models.Attendee) error
	Get(ctx context.Context, userID string) (*models.Attendee, error)
	// Update overwrites profile fields; the check-in record is left untouched.
	Update(ctx context.Context, a *models.Attendee) error
	// List returns attendees ordered by id, starting after startAfter. limit <= 0 means all.
	List(ctx context.Context, limit int, startAfter string) ([]models.Attendee, error)
	// CheckedIn returns checked-in attendees, most recent check-in first.
	CheckedIn(ctx context.Context, limit int) ([]models.Attendee, error)
	RecordCheckin(ctx context.Context, userID string, rec models.CheckinRecord) error
	ResetCheckins(ctx context.Context, chunkSize int) (int, error)
	DeleteAll(ctx context.Context, chunkSize int) (int, error)
	Ping(ctx context.Context) error
}

// Admission is a candidate queue entry plus the rules it must pass, checked
// atomically by QueueStore.TryAdmit in this order: capacity, duplicate, media.
type Admission struct {
	Entry      models.QueueEntry
	MaxWaiting int
	MediaValid bool
}

// QueueStore holds playback queue entries.
type QueueStore interface {
	// TryAdmit inserts the entry as WAITING and returns its 1-based position, or
	// status.ErrQueueFull / ErrAlreadyQueued / ErrInvalidMedia without writing.
	TryAdmit(ctx context.Context, adm Admission) (int, error)
	Entry(ctx context.Context, queueID string) (*models.QueueEntry, error)
	// Waiting returns WAITING entries ordered by creation time, insertion order on ties.
	Waiting(ctx context.Context) ([]models.QueueEntry, error)
	CountWaiting(ctx context.Context) (int, error)
	// Transition moves an entry to `to` when its current status allows it, stamping at.
	Transition(ctx context.Context, queueID string, to models.QueueStatus, at time.Time) (*models.QueueEntry, error)
	Clear(ctx context.Context, chunkSize int) (int, error)
}

func chunks(ids []string, size int) [][]string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
