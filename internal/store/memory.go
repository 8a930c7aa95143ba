package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"checkin-system/internal/status"
	"checkin-system/models"
)

// Memory implements AttendeeStore and QueueStore in process. A single mutex
// serializes every call, which makes TryAdmit atomic.
type Memory struct {
	mu        sync.Mutex
	attendees map[string]models.Attendee
	entries   map[string]models.QueueEntry
	seq       int64
}

func NewMemory() *Memory {
	return &Memory{
		attendees: make(map[string]models.Attendee),
		entries:   make(map[string]models.QueueEntry),
	}
}

func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

func (m *Memory) Create(ctx context.Context, a *models.Attendee) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.attendees[a.UserID]; ok {
		return status.ErrAttendeeExists
	}
	m.attendees[a.UserID] = cloneAttendee(*a)
	return nil
}

func (m *Memory) Get(ctx context.Context, userID string) (*models.Attendee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.attendees[userID]
	if !ok {
		return nil, status.ErrAttendeeNotFound
	}
	out := cloneAttendee(a)
	return &out, nil
}

func (m *Memory) Update(ctx context.Context, a *models.Attendee) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.attendees[a.UserID]
	if !ok {
		return status.ErrAttendeeNotFound
	}
	next := cloneAttendee(*a)
	next.Checkin = cur.Checkin
	next.CreatedAt = cur.CreatedAt
	m.attendees[a.UserID] = next
	return nil
}

func (m *Memory) List(ctx context.Context, limit int, startAfter string) ([]models.Attendee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.attendees))
	for id := range m.attendees {
		if startAfter == "" || id > startAfter {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]models.Attendee, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneAttendee(m.attendees[id]))
	}
	return out, nil
}

func (m *Memory) CheckedIn(ctx context.Context, limit int) ([]models.Attendee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Attendee
	for _, a := range m.attendees {
		if a.Checkin != nil {
			out = append(out, cloneAttendee(a))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Checkin.At.Equal(out[j].Checkin.At) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Checkin.At.After(out[j].Checkin.At)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) RecordCheckin(ctx context.Context, userID string, rec models.CheckinRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.attendees[userID]
	if !ok {
		return status.ErrAttendeeNotFound
	}
	a.Checkin = &rec
	m.attendees[userID] = a
	return nil
}

func (m *Memory) ResetCheckins(ctx context.Context, chunkSize int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for id, a := range m.attendees {
		if a.Checkin != nil {
			a.Checkin = nil
			m.attendees[id] = a
			count++
		}
	}
	return count, nil
}

func (m *Memory) DeleteAll(ctx context.Context, chunkSize int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := len(m.attendees)
	m.attendees = make(map[string]models.Attendee)
	return count, nil
}

func (m *Memory) TryAdmit(ctx context.Context, adm Admission) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	waiting := 0
	for _, e := range m.entries {
		if e.Status == models.StatusWaiting {
			waiting++
		}
	}
	if waiting >= adm.MaxWaiting {
		return 0, status.ErrQueueFull
	}
	for _, e := range m.entries {
		if e.UserID == adm.Entry.UserID && e.Status.Active() {
			return 0, status.ErrAlreadyQueued
		}
	}
	if !adm.MediaValid {
		return 0, status.ErrInvalidMedia
	}

	m.seq++
	entry := adm.Entry
	entry.Status = models.StatusWaiting
	entry.Seq = m.seq
	m.entries[entry.QueueID] = entry
	return waiting + 1, nil
}

func (m *Memory) Entry(ctx context.Context, queueID string) (*models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[queueID]
	if !ok {
		return nil, status.ErrQueueEntryNotFound
	}
	return &e, nil
}

func (m *Memory) Waiting(ctx context.Context) ([]models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.QueueEntry
	for _, e := range m.entries {
		if e.Status == models.StatusWaiting {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (m *Memory) CountWaiting(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, e := range m.entries {
		if e.Status == models.StatusWaiting {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Transition(ctx context.Context, queueID string, to models.QueueStatus, at time.Time) (*models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[queueID]
	if !ok {
		return nil, status.ErrQueueEntryNotFound
	}
	if !e.Status.CanTransitionTo(to) {
		return nil, status.InvalidTransition(string(e.Status), string(to))
	}

	e.Status = to
	stamp := at
	if to == models.StatusPlaying {
		e.PlayedAt = &stamp
	} else {
		e.CompletedAt = &stamp
	}
	m.entries[queueID] = e
	return &e, nil
}

func (m *Memory) Clear(ctx context.Context, chunkSize int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := len(m.entries)
	m.entries = make(map[string]models.QueueEntry)
	return count, nil
}

func cloneAttendee(a models.Attendee) models.Attendee {
	if a.Checkin != nil {
		rec := *a.Checkin
		a.Checkin = &rec
	}
	return a
}
