package services

import (
	"context"
	"errors"
	"time"

	"checkin-system/config"
	"checkin-system/internal/logging"
	"checkin-system/internal/notify"
	"checkin-system/internal/status"
	"checkin-system/internal/store"
	"checkin-system/internal/validation"
	"checkin-system/models"
	"checkin-system/monitoring"

	"github.com/google/uuid"
)

// QueueService admits VIP videos into the playback queue and drives their
// status through the display lifecycle.
type QueueService struct {
	queue     store.QueueStore
	publisher notify.Publisher
	monitor   *monitoring.Monitor

	maxLength     int
	videoDuration time.Duration
	chunkSize     int

	now   func() time.Time
	newID func() string
}

func NewQueueService(queue store.QueueStore, pub notify.Publisher, mon *monitoring.Monitor, cfg *config.Config) *QueueService {
	if pub == nil {
		pub = notify.Noop{}
	}
	return &QueueService{
		queue:         queue,
		publisher:     pub,
		monitor:       mon,
		maxLength:     cfg.MaxQueueLength,
		videoDuration: cfg.VideoDuration,
		chunkSize:     cfg.BulkChunkSize,
		now:           time.Now,
		newID:         uuid.NewString,
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *QueueService) WithClock(now func() time.Time) *QueueService {
	s.now = now
	return s
}

// Enqueue admits a new WAITING entry. Rejections, in rule order: QUEUE_FULL,
// ALREADY_IN_QUEUE, INVALID_VIDEO_URL.
func (s *QueueService) Enqueue(ctx context.Context, userID, name, videoURL string) (*models.PositionedEntry, error) {
	entry := models.QueueEntry{
		QueueID:   s.newID(),
		UserID:    userID,
		Name:      name,
		VideoURL:  videoURL,
		Status:    models.StatusWaiting,
		CreatedAt: s.now(),
	}

	position, err := s.queue.TryAdmit(ctx, store.Admission{
		Entry:      entry,
		MaxWaiting: s.maxLength,
		MediaValid: validation.IsMediaURL(videoURL),
	})
	if err != nil {
		s.monitor.TrackAdmission(resultLabel(err))
		if errors.Is(err, status.ErrQueueFull) {
			return nil, status.ErrQueueFull.WithMessage("Queue is full (max %d items)", s.maxLength)
		}
		return nil, err
	}

	s.monitor.TrackAdmission("queued")
	s.monitor.SetWaiting(position)
	logging.Info().
		Str("user_id", userID).
		Str("queue_id", entry.QueueID).
		Int("position", position).
		Msg("added to playback queue")

	positioned := s.positioned(entry, position)
	s.publish(ctx, notify.EntryEvent(notify.EventQueued, entry, position))
	return &positioned, nil
}

// ListWithPositions returns WAITING entries in playback order, positions from 1.
func (s *QueueService) ListWithPositions(ctx context.Context) ([]models.PositionedEntry, error) {
	waiting, err := s.queue.Waiting(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.PositionedEntry, len(waiting))
	for i, e := range waiting {
		out[i] = s.positioned(e, i+1)
	}
	return out, nil
}

// GetNextItem returns the head of the queue, or nil when nothing is waiting.
func (s *QueueService) GetNextItem(ctx context.Context) (*models.PositionedEntry, error) {
	waiting, err := s.queue.Waiting(ctx)
	if err != nil {
		return nil, err
	}
	if len(waiting) == 0 {
		return nil, nil
	}
	head := s.positioned(waiting[0], 1)
	return &head, nil
}

func (s *QueueService) MarkPlaying(ctx context.Context, queueID string) (*models.QueueEntry, error) {
	return s.transition(ctx, queueID, models.StatusPlaying, notify.EventPlaying)
}

func (s *QueueService) MarkDone(ctx context.Context, queueID string) (*models.QueueEntry, error) {
	return s.transition(ctx, queueID, models.StatusDone, notify.EventDone)
}

func (s *QueueService) MarkError(ctx context.Context, queueID string) (*models.QueueEntry, error) {
	return s.transition(ctx, queueID, models.StatusError, notify.EventError)
}

func (s *QueueService) transition(ctx context.Context, queueID string, to models.QueueStatus, event string) (*models.QueueEntry, error) {
	entry, err := s.queue.Transition(ctx, queueID, to, s.now())
	if err != nil {
		return nil, err
	}

	s.monitor.TrackTransition(string(to))
	logging.Info().Str("queue_id", queueID).Str("status", string(to)).Msg("queue item updated")
	s.publish(ctx, notify.EntryEvent(event, *entry, 0))
	return entry, nil
}

// Clear removes every entry regardless of status and returns how many were removed.
func (s *QueueService) Clear(ctx context.Context) (int, error) {
	n, err := s.queue.Clear(ctx, s.chunkSize)
	if err != nil {
		return n, err
	}
	s.monitor.SetWaiting(0)
	logging.Info().Int("items_cleared", n).Msg("playback queue cleared")
	s.publish(ctx, notify.DisplayEvent{Type: notify.EventCleared})
	return n, nil
}

func (s *QueueService) Length(ctx context.Context) (int, error) {
	return s.queue.CountWaiting(ctx)
}

func (s *QueueService) Stats(ctx context.Context) (*models.QueueStats, error) {
	waiting, err := s.queue.Waiting(ctx)
	if err != nil {
		return nil, err
	}

	perItem := int(s.videoDuration / time.Second)
	stats := &models.QueueStats{
		QueueLength:   len(waiting),
		TotalWaitTime: len(waiting) * perItem,
	}
	if len(waiting) > 0 {
		stats.AverageWaitTime = float64(stats.TotalWaitTime) / float64(len(waiting))
		oldest := waiting[0].CreatedAt
		stats.OldestItemTime = &oldest
	}
	return stats, nil
}

func (s *QueueService) positioned(e models.QueueEntry, position int) models.PositionedEntry {
	return models.PositionedEntry{
		QueueEntry:        e,
		Position:          position,
		EstimatedWaitTime: position * int(s.videoDuration/time.Second),
	}
}

func (s *QueueService) publish(ctx context.Context, ev notify.DisplayEvent) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		logging.Warn().Err(err).Str("type", ev.Type).Msg("display push failed")
	}
}
