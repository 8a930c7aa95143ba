package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"checkin-system/internal/logging"
	"checkin-system/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

const systemLogsCollection = "system_logs"

const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// LogSink persists audit events.
type LogSink interface {
	Write(ctx context.Context, entry models.SystemLog) error
	Recent(ctx context.Context, limit int, level string) ([]models.SystemLog, error)
}

// SystemLogService records audit events best-effort: a failed write is logged
// and swallowed.
type SystemLogService struct {
	sink LogSink
	now  func() time.Time
}

func NewSystemLogService(sink LogSink) *SystemLogService {
	if sink == nil {
		sink = NewMemoryLogSink()
	}
	return &SystemLogService{sink: sink, now: time.Now}
}

func (s *SystemLogService) Record(ctx context.Context, level, component, message string, metadata map[string]any) {
	entry := models.SystemLog{
		Level:     level,
		Component: component,
		Message:   message,
		Metadata:  metadata,
		CreatedAt: s.now(),
	}
	if err := s.sink.Write(ctx, entry); err != nil {
		logging.Warn().Err(err).Str("component", component).Str("message", message).Msg("failed to write system log")
	}
}

func (s *SystemLogService) Recent(ctx context.Context, limit int, level string) ([]models.SystemLog, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.sink.Recent(ctx, limit, level)
}

// PocketBaseLogSink stores events in the system_logs collection.
type PocketBaseLogSink struct {
	app core.App
}

func NewPocketBaseLogSink(app core.App) *PocketBaseLogSink {
	return &PocketBaseLogSink{app: app}
}

func (p *PocketBaseLogSink) Write(ctx context.Context, entry models.SystemLog) error {
	collection, err := p.app.FindCollectionByNameOrId(systemLogsCollection)
	if err != nil {
		return fmt.Errorf("find %s collection: %w", systemLogsCollection, err)
	}

	record := core.NewRecord(collection)
	record.Set("level", entry.Level)
	record.Set("component", entry.Component)
	record.Set("message", entry.Message)
	if entry.Metadata != nil {
		record.Set("metadata", entry.Metadata)
	}

	if err := p.app.SaveWithContext(ctx, record); err != nil {
		return fmt.Errorf("save system log: %w", err)
	}
	return nil
}

func (p *PocketBaseLogSink) Recent(ctx context.Context, limit int, level string) ([]models.SystemLog, error) {
	filter := "id != ''"
	params := dbx.Params{}
	if level != "" {
		filter = "level = {:level}"
		params["level"] = level
	}

	records, err := p.app.FindRecordsByFilter(systemLogsCollection, filter, "-created", limit, 0, params)
	if err != nil {
		return nil, fmt.Errorf("query system logs: %w", err)
	}

	out := make([]models.SystemLog, 0, len(records))
	for _, r := range records {
		entry := models.SystemLog{
			ID:        r.Id,
			Level:     r.GetString("level"),
			Component: r.GetString("component"),
			Message:   r.GetString("message"),
			CreatedAt: r.GetDateTime("created").Time(),
		}
		var meta map[string]any
		if err := r.UnmarshalJSONField("metadata", &meta); err == nil && len(meta) > 0 {
			entry.Metadata = meta
		}
		out = append(out, entry)
	}
	return out, nil
}

// MemoryLogSink keeps the most recent events in process.
type MemoryLogSink struct {
	mu      sync.Mutex
	entries []models.SystemLog
	max     int
	seq     int
}

func NewMemoryLogSink() *MemoryLogSink {
	return &MemoryLogSink{max: 1000}
}

func (m *MemoryLogSink) Write(ctx context.Context, entry models.SystemLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	entry.ID = fmt.Sprintf("log_%06d", m.seq)
	m.entries = append(m.entries, entry)
	if len(m.entries) > m.max {
		m.entries = m.entries[len(m.entries)-m.max:]
	}
	return nil
}

func (m *MemoryLogSink) Recent(ctx context.Context, limit int, level string) ([]models.SystemLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.SystemLog, 0, limit)
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if level == "" || m.entries[i].Level == level {
			out = append(out, m.entries[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
