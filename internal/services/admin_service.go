package services

import (
	"context"
	"runtime"
	"time"

	"checkin-system/config"
	"checkin-system/internal/logging"
	"checkin-system/internal/recognition"
	"checkin-system/internal/store"
	"checkin-system/models"
)

type ResetCheckinsResult struct {
	ResetCount int `json:"reset_count"`
	TotalUsers int `json:"total_users"`
}

type ResetDataResult struct {
	QueueCleared int `json:"queue_cleared"`
	UsersDeleted int `json:"users_deleted"`
}

type SystemStats struct {
	Users      *models.AttendeeStats `json:"users"`
	Queue      *models.QueueStats    `json:"queue"`
	RecentLogs []models.SystemLog    `json:"recent_logs"`
	Timestamp  time.Time             `json:"timestamp"`
}

type HealthReport struct {
	Status    string             `json:"status"`
	Timestamp time.Time          `json:"timestamp"`
	Uptime    float64            `json:"uptime"`
	MemoryMB  float64            `json:"memory_mb"`
	Services  map[string]string  `json:"services"`
	AI        recognition.Health `json:"ai"`
}

type AdminService struct {
	users      store.AttendeeStore
	queue      *QueueService
	userSvc    *UserService
	recognizer recognition.Recognizer
	logs       *SystemLogService

	chunkSize int
	started   time.Time
	now       func() time.Time
}

func NewAdminService(
	users store.AttendeeStore,
	queue *QueueService,
	userSvc *UserService,
	recognizer recognition.Recognizer,
	logs *SystemLogService,
	cfg *config.Config,
) *AdminService {
	if logs == nil {
		logs = NewSystemLogService(nil)
	}
	return &AdminService{
		users:      users,
		queue:      queue,
		userSvc:    userSvc,
		recognizer: recognizer,
		logs:       logs,
		chunkSize:  cfg.BulkChunkSize,
		started:    time.Now(),
		now:        time.Now,
	}
}

func (s *AdminService) ClearQueue(ctx context.Context) (int, error) {
	n, err := s.queue.Clear(ctx)
	if err != nil {
		return n, err
	}
	s.logs.Record(ctx, LevelWarn, "admin", "queue cleared", map[string]any{"items_cleared": n})
	return n, nil
}

// ResetCheckins empties the queue, then clears every check-in record in chunks.
func (s *AdminService) ResetCheckins(ctx context.Context) (*ResetCheckinsResult, error) {
	if _, err := s.queue.Clear(ctx); err != nil {
		return nil, err
	}

	reset, err := s.users.ResetCheckins(ctx, s.chunkSize)
	if err != nil {
		return nil, err
	}

	all, err := s.users.List(ctx, 0, "")
	if err != nil {
		return nil, err
	}

	logging.Warn().Int("reset_count", reset).Msg("all check-ins reset")
	s.logs.Record(ctx, LevelWarn, "admin", "check-ins reset", map[string]any{"reset_count": reset})
	return &ResetCheckinsResult{ResetCount: reset, TotalUsers: len(all)}, nil
}

// ResetData empties the queue and deletes every attendee.
func (s *AdminService) ResetData(ctx context.Context) (*ResetDataResult, error) {
	cleared, err := s.queue.Clear(ctx)
	if err != nil {
		return nil, err
	}

	deleted, err := s.users.DeleteAll(ctx, s.chunkSize)
	if err != nil {
		return nil, err
	}

	logging.Warn().Int("queue_cleared", cleared).Int("users_deleted", deleted).Msg("all data reset")
	s.logs.Record(ctx, LevelWarn, "admin", "all data reset", map[string]any{
		"queue_cleared": cleared,
		"users_deleted": deleted,
	})
	return &ResetDataResult{QueueCleared: cleared, UsersDeleted: deleted}, nil
}

func (s *AdminService) Stats(ctx context.Context) (*SystemStats, error) {
	users, err := s.userSvc.Stats(ctx)
	if err != nil {
		return nil, err
	}
	queue, err := s.queue.Stats(ctx)
	if err != nil {
		return nil, err
	}
	logs, err := s.logs.Recent(ctx, 10, "")
	if err != nil {
		logging.Warn().Err(err).Msg("load recent system logs")
		logs = []models.SystemLog{}
	}

	return &SystemStats{Users: users, Queue: queue, RecentLogs: logs, Timestamp: s.now()}, nil
}

func (s *AdminService) Logs(ctx context.Context, limit int, level string) ([]models.SystemLog, error) {
	return s.logs.Recent(ctx, limit, level)
}

func (s *AdminService) Ping(ctx context.Context) error {
	return s.users.Ping(ctx)
}

// Health reports "ok" when the store answers; recognition being down only
// marks the ai service.
func (s *AdminService) Health(ctx context.Context) *HealthReport {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	report := &HealthReport{
		Status:    "ok",
		Timestamp: s.now(),
		Uptime:    time.Since(s.started).Seconds(),
		MemoryMB:  float64(mem.Alloc) / (1 << 20),
		Services:  map[string]string{"store": "ok", "ai": "unavailable"},
	}

	if err := s.users.Ping(ctx); err != nil {
		logging.Error().Err(err).Msg("store health check failed")
		report.Status = "degraded"
		report.Services["store"] = "unavailable"
	}

	if s.recognizer != nil {
		report.AI = s.recognizer.Health(ctx)
		if report.AI.Available {
			report.Services["ai"] = "ok"
		}
	}
	return report
}
