package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"checkin-system/internal/status"
	"checkin-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func admission(userID string, createdAt time.Time, max int) Admission {
	return Admission{
		Entry: models.QueueEntry{
			QueueID:   "q-" + userID,
			UserID:    userID,
			Name:      userID,
			VideoURL:  "https://cdn.example.com/" + userID + ".mp4",
			CreatedAt: createdAt,
		},
		MaxWaiting: max,
		MediaValid: true,
	}
}

func TestMemory_TryAdmitPositions(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now()

	for i := 1; i <= 3; i++ {
		pos, err := m.TryAdmit(ctx, admission(fmt.Sprintf("VIP_%03d", i), now, 10))
		require.NoError(t, err)
		assert.Equal(t, i, pos)
	}

	n, err := m.CountWaiting(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMemory_TryAdmitRuleOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now()

	_, err := m.TryAdmit(ctx, admission("VIP_001", now, 1))
	require.NoError(t, err)

	// full wins over duplicate and bad media
	dup := admission("VIP_001", now, 1)
	dup.MediaValid = false
	_, err = m.TryAdmit(ctx, dup)
	assert.ErrorIs(t, err, status.ErrQueueFull)

	// duplicate wins over bad media
	_, err = m.TryAdmit(ctx, Admission{Entry: dup.Entry, MaxWaiting: 5, MediaValid: false})
	assert.ErrorIs(t, err, status.ErrAlreadyQueued)

	bad := admission("VIP_002", now, 5)
	bad.MediaValid = false
	_, err = m.TryAdmit(ctx, bad)
	assert.ErrorIs(t, err, status.ErrInvalidMedia)

	n, _ := m.CountWaiting(ctx)
	assert.Equal(t, 1, n)
}

func TestMemory_DuplicateWhilePlaying(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now()

	_, err := m.TryAdmit(ctx, admission("VIP_001", now, 10))
	require.NoError(t, err)
	_, err = m.Transition(ctx, "q-VIP_001", models.StatusPlaying, now)
	require.NoError(t, err)

	second := admission("VIP_001", now, 10)
	second.Entry.QueueID = "q-second"
	_, err = m.TryAdmit(ctx, second)
	assert.ErrorIs(t, err, status.ErrAlreadyQueued)

	_, err = m.Transition(ctx, "q-VIP_001", models.StatusDone, now)
	require.NoError(t, err)

	pos, err := m.TryAdmit(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
}

func TestMemory_ConcurrentAdmissionsNeverExceedCapacity(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = m.TryAdmit(ctx, admission(fmt.Sprintf("VIP_%03d", i), now, 10))
		}(i)
	}
	wg.Wait()

	n, err := m.CountWaiting(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestMemory_WaitingOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Now()

	_, _ = m.TryAdmit(ctx, admission("VIP_003", base.Add(2*time.Second), 10))
	_, _ = m.TryAdmit(ctx, admission("VIP_001", base, 10))
	_, _ = m.TryAdmit(ctx, admission("VIP_002", base, 10))

	waiting, err := m.Waiting(ctx)
	require.NoError(t, err)
	require.Len(t, waiting, 3)
	assert.Equal(t, "VIP_001", waiting[0].UserID)
	assert.Equal(t, "VIP_002", waiting[1].UserID)
	assert.Equal(t, "VIP_003", waiting[2].UserID)
}

func TestMemory_Transition(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now()

	_, err := m.TryAdmit(ctx, admission("VIP_001", now, 10))
	require.NoError(t, err)

	e, err := m.Transition(ctx, "q-VIP_001", models.StatusPlaying, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPlaying, e.Status)
	require.NotNil(t, e.PlayedAt)
	assert.Nil(t, e.CompletedAt)

	e, err = m.Transition(ctx, "q-VIP_001", models.StatusDone, now.Add(2*time.Second))
	require.NoError(t, err)
	require.NotNil(t, e.CompletedAt)

	_, err = m.Transition(ctx, "q-VIP_001", models.StatusError, now)
	assert.ErrorIs(t, err, status.ErrInvalidTransition)

	_, err = m.Transition(ctx, "missing", models.StatusDone, now)
	assert.ErrorIs(t, err, status.ErrQueueEntryNotFound)
}

func TestMemory_Clear(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now()

	_, _ = m.TryAdmit(ctx, admission("VIP_001", now, 10))
	_, _ = m.TryAdmit(ctx, admission("VIP_002", now, 10))
	_, _ = m.Transition(ctx, "q-VIP_002", models.StatusDone, now)

	n, err := m.Clear(ctx, DefaultChunkSize)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	waiting, _ := m.Waiting(ctx)
	assert.Empty(t, waiting)
}

func TestMemory_AttendeeLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now()

	a := &models.Attendee{UserID: "VIP_001", Name: "Ada", IsVIP: true, CreatedAt: now}
	require.NoError(t, m.Create(ctx, a))
	assert.ErrorIs(t, m.Create(ctx, a), status.ErrAttendeeExists)

	_, err := m.Get(ctx, "VIP_404")
	assert.ErrorIs(t, err, status.ErrAttendeeNotFound)

	require.NoError(t, m.RecordCheckin(ctx, "VIP_001", models.CheckinRecord{At: now, Method: models.MethodQR}))

	// profile updates keep the check-in record
	require.NoError(t, m.Update(ctx, &models.Attendee{UserID: "VIP_001", Name: "Ada L."}))
	got, err := m.Get(ctx, "VIP_001")
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", got.Name)
	require.NotNil(t, got.Checkin)
	assert.Equal(t, models.MethodQR, got.Checkin.Method)

	n, err := m.ResetCheckins(ctx, DefaultChunkSize)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, _ = m.Get(ctx, "VIP_001")
	assert.False(t, got.CheckedIn())
}

func TestMemory_ListAndCheckedIn(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now()

	for _, id := range []string{"GUEST_001", "VIP_002", "STAFF_001", "VIP_001"} {
		require.NoError(t, m.Create(ctx, &models.Attendee{UserID: id, Name: id}))
	}

	page, err := m.List(ctx, 2, "")
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "GUEST_001", page[0].UserID)
	assert.Equal(t, "STAFF_001", page[1].UserID)

	page, err = m.List(ctx, 2, "STAFF_001")
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "VIP_001", page[0].UserID)

	_ = m.RecordCheckin(ctx, "VIP_001", models.CheckinRecord{At: now.Add(-time.Minute), Method: models.MethodQR})
	_ = m.RecordCheckin(ctx, "GUEST_001", models.CheckinRecord{At: now, Method: models.MethodManual})

	history, err := m.CheckedIn(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "GUEST_001", history[0].UserID)
	assert.Equal(t, "VIP_001", history[1].UserID)

	n, err := m.DeleteAll(ctx, DefaultChunkSize)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestChunks(t *testing.T) {
	ids := make([]string, 1203)
	for i := range ids {
		ids[i] = fmt.Sprint(i)
	}

	parts := chunks(ids, 500)
	require.Len(t, parts, 3)
	assert.Len(t, parts[0], 500)
	assert.Len(t, parts[2], 203)
	assert.Empty(t, chunks(nil, 500))
	assert.Len(t, chunks(ids[:10], 0), 1)
}
