package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkin-system/config"
	"checkin-system/internal/logging"
	"checkin-system/internal/recognition"
	"checkin-system/internal/status"
	"checkin-system/internal/store"
	"checkin-system/models"
	"checkin-system/monitoring"
)

// CheckinError reports the stage a failed check-in stopped in. It unwraps to
// the underlying status error.
type CheckinError struct {
	Stage models.CheckinStage
	Err   error
}

func (e *CheckinError) Error() string {
	return fmt.Sprintf("check-in failed while %s: %v", e.Stage, e.Err)
}

func (e *CheckinError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage recorded on a check-in failure, or "" for other errors.
func StageOf(err error) models.CheckinStage {
	var ce *CheckinError
	if errors.As(err, &ce) {
		return ce.Stage
	}
	return ""
}

// Enqueuer is the admission side of the playback queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, userID, name, videoURL string) (*models.PositionedEntry, error)
}

// AIRequest carries either a trusted identifier or an image to recognize.
// A supplied identifier wins over the image.
type AIRequest struct {
	UserID      string
	ImageBase64 string
	Confidence  *float64
}

type CheckinService struct {
	users      store.AttendeeStore
	queue      Enqueuer
	recognizer recognition.Recognizer
	logs       *SystemLogService
	monitor    *monitoring.Monitor

	cooldown     time.Duration
	defaultScore float64
	historyLimit int

	now func() time.Time
}

func NewCheckinService(
	users store.AttendeeStore,
	queue Enqueuer,
	recognizer recognition.Recognizer,
	logs *SystemLogService,
	mon *monitoring.Monitor,
	cfg *config.Config,
) *CheckinService {
	if logs == nil {
		logs = NewSystemLogService(nil)
	}
	return &CheckinService{
		users:        users,
		queue:        queue,
		recognizer:   recognizer,
		logs:         logs,
		monitor:      mon,
		cooldown:     cfg.CheckinCooldown,
		defaultScore: cfg.DefaultAIScore,
		historyLimit: cfg.HistoryLimit,
		now:          time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *CheckinService) WithClock(now func() time.Time) *CheckinService {
	s.now = now
	return s
}

// CheckinByIdentifier checks in a caller-identified attendee (QR scan or manual entry).
func (s *CheckinService) CheckinByIdentifier(ctx context.Context, userID string, method models.CheckinMethod) (*models.CheckinResult, error) {
	if userID == "" {
		return nil, s.fail(method, models.StageResolvingIdentity, status.ErrUserIDRequired)
	}
	if method != models.MethodQR && method != models.MethodManual {
		return nil, s.fail(method, models.StageResolvingIdentity,
			status.ErrValidation.WithMessage("unsupported check-in method %q", method))
	}
	return s.checkin(ctx, userID, method, nil, nil)
}

// CheckinByImageOrIdentifier is the AI check-in. A supplied identifier is
// trusted as-is; otherwise the image goes to the recognition service.
func (s *CheckinService) CheckinByImageOrIdentifier(ctx context.Context, req AIRequest) (*models.CheckinResult, error) {
	var (
		userID     string
		confidence float64
		rec        *models.Recognition
	)

	switch {
	case req.UserID != "":
		userID = req.UserID
		confidence = s.defaultScore
		if req.Confidence != nil {
			confidence = *req.Confidence
		}
		logging.Info().Str("user_id", userID).Float64("confidence", confidence).Msg("AI check-in with supplied identifier")

	case req.ImageBase64 != "":
		if s.recognizer == nil {
			return nil, s.fail(models.MethodAI, models.StageResolvingIdentity, status.ErrRecognitionDown)
		}
		start := s.now()
		r, err := s.recognizer.Recognize(ctx, req.ImageBase64)
		s.monitor.TrackRecognition(resultLabel(err), s.now().Sub(start))
		if err != nil {
			return nil, s.fail(models.MethodAI, models.StageResolvingIdentity, err)
		}
		rec = r
		userID = r.UserID
		confidence = r.Confidence

	default:
		return nil, s.fail(models.MethodAI, models.StageResolvingIdentity, status.ErrMissingParameters)
	}

	return s.checkin(ctx, userID, models.MethodAI, &confidence, rec)
}

func (s *CheckinService) checkin(
	ctx context.Context,
	userID string,
	method models.CheckinMethod,
	confidence *float64,
	rec *models.Recognition,
) (*models.CheckinResult, error) {
	attendee, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, s.fail(method, models.StageValidatingEligibility, err)
	}

	now := s.now()
	if err := s.eligible(attendee, now); err != nil {
		return nil, s.fail(method, models.StageValidatingEligibility, err)
	}

	record := models.CheckinRecord{At: now, Method: method}
	if err := s.users.RecordCheckin(ctx, userID, record); err != nil {
		return nil, s.fail(method, models.StageRecording, err)
	}
	attendee.Checkin = &record

	outcome := models.QueueOutcome{Status: models.QueueNotApplicable}
	if attendee.Queueable() {
		outcome = s.enqueue(ctx, attendee)
	}

	s.monitor.TrackCheckin(string(method), "success")
	logging.Info().
		Str("user_id", userID).
		Str("method", string(method)).
		Str("queue", string(outcome.Status)).
		Msg("check-in recorded")

	meta := map[string]any{"user_id": userID, "method": string(method), "queue": string(outcome.Status)}
	if confidence != nil {
		meta["confidence"] = *confidence
	}
	s.logs.Record(ctx, LevelInfo, "checkin", "check-in successful", meta)

	return &models.CheckinResult{
		Attendee:    *attendee,
		Method:      method,
		Confidence:  confidence,
		Recognition: rec,
		Queue:       outcome,
		Timestamp:   now,
	}, nil
}

// eligible applies the re-check-in cooldown. An attendee flagged as checked in
// without a recoverable timestamp stays blocked until an admin reset.
func (s *CheckinService) eligible(a *models.Attendee, now time.Time) error {
	if a.Checkin == nil {
		return nil
	}
	if !a.Checkin.HasTime() {
		return status.ErrAlreadyCheckedIn
	}
	if now.Sub(a.Checkin.At) < s.cooldown {
		return status.AlreadyCheckedIn(a.Checkin.MinutesSince(now))
	}
	return nil
}

// enqueue never fails the check-in; admission errors become a skipped outcome.
func (s *CheckinService) enqueue(ctx context.Context, a *models.Attendee) models.QueueOutcome {
	entry, err := s.queue.Enqueue(ctx, a.UserID, a.Name, a.VideoURL)
	if err != nil {
		code := status.CodeOf(err)
		reason := err.Error()
		var se *status.Error
		if errors.As(err, &se) {
			reason = se.Message
		}
		logging.Warn().Err(err).Str("user_id", a.UserID).Msg("check-in kept, playback queue admission skipped")
		return models.QueueSkip(code, reason)
	}
	return models.QueueOk(*entry)
}

// GetHistory lists checked-in attendees, most recent first.
func (s *CheckinService) GetHistory(ctx context.Context, limit int) ([]models.HistoryItem, error) {
	if limit <= 0 {
		limit = s.historyLimit
	}
	attendees, err := s.users.CheckedIn(ctx, limit)
	if err != nil {
		return nil, err
	}

	items := make([]models.HistoryItem, 0, len(attendees))
	for _, a := range attendees {
		item := models.HistoryItem{
			UserID: a.UserID,
			Name:   a.Name,
			Seat:   a.Seat,
			IsVIP:  a.IsVIP,
		}
		if a.Checkin != nil {
			item.Method = a.Checkin.Method
			if a.Checkin.HasTime() {
				at := a.Checkin.At
				item.CheckedInAt = &at
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *CheckinService) fail(method models.CheckinMethod, stage models.CheckinStage, err error) error {
	s.monitor.TrackCheckin(string(method), resultLabel(err))
	logging.Warn().Err(err).Str("method", string(method)).Str("stage", string(stage)).Msg("check-in failed")
	return &CheckinError{Stage: stage, Err: err}
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	if code := status.CodeOf(err); code != "" {
		return code
	}
	return "error"
}
