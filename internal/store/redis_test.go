package store

import (
	"context"
	"testing"
	"time"

	"checkin-system/internal/status"
	"checkin-system/models"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var createdAt = time.UnixMilli(1767225600000).UTC()

func setupTestRedisStore() (*Redis, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	return NewRedis(db), mock
}

func admitKeys(queueID string) []string {
	return []string{keyQueueWaiting, keyQueueActive, entryKey(queueID), keyQueueAll, keyQueueSeq}
}

func testAdmission() Admission {
	return Admission{
		Entry: models.QueueEntry{
			QueueID:   "q-1",
			UserID:    "VIP_001",
			Name:      "Ada",
			VideoURL:  "https://cdn.example.com/v.mp4",
			CreatedAt: createdAt,
		},
		MaxWaiting: 10,
		MediaValid: true,
	}
}

func TestRedis_TryAdmit_Success(t *testing.T) {
	s, mock := setupTestRedisStore()
	defer mock.ClearExpect()

	mock.ExpectEval(admitScript, admitKeys("q-1"),
		"10", "VIP_001", "q-1", "Ada", "https://cdn.example.com/v.mp4", "1767225600000", "1",
	).SetVal([]interface{}{int64(3), int64(17)})

	pos, err := s.TryAdmit(context.Background(), testAdmission())

	require.NoError(t, err)
	assert.Equal(t, 3, pos)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_TryAdmit_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		reply int64
		want  error
	}{
		{"queue full", -1, status.ErrQueueFull},
		{"already queued", -2, status.ErrAlreadyQueued},
		{"invalid media", -3, status.ErrInvalidMedia},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := setupTestRedisStore()
			defer mock.ClearExpect()

			mock.ExpectEval(admitScript, admitKeys("q-1"),
				"10", "VIP_001", "q-1", "Ada", "https://cdn.example.com/v.mp4", "1767225600000", "1",
			).SetVal([]interface{}{tt.reply, int64(10)})

			_, err := s.TryAdmit(context.Background(), testAdmission())

			assert.ErrorIs(t, err, tt.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRedis_TryAdmit_PassesMediaFlag(t *testing.T) {
	s, mock := setupTestRedisStore()
	defer mock.ClearExpect()

	adm := testAdmission()
	adm.MediaValid = false

	mock.ExpectEval(admitScript, admitKeys("q-1"),
		"10", "VIP_001", "q-1", "Ada", "https://cdn.example.com/v.mp4", "1767225600000", "0",
	).SetVal([]interface{}{int64(-3), int64(0)})

	_, err := s.TryAdmit(context.Background(), adm)

	assert.ErrorIs(t, err, status.ErrInvalidMedia)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_Transition_Success(t *testing.T) {
	s, mock := setupTestRedisStore()
	defer mock.ClearExpect()

	at := time.UnixMilli(1767225630000).UTC()
	mock.ExpectEval(transitionScript,
		[]string{entryKey("q-1"), keyQueueWaiting, keyQueueActive},
		"PLAYING", "played_at", "1767225630000", "WAITING", "q-1",
	).SetVal([]interface{}{int64(1), "WAITING"})
	mock.ExpectHGetAll(entryKey("q-1")).SetVal(map[string]string{
		"queue_id":   "q-1",
		"user_id":    "VIP_001",
		"name":       "Ada",
		"video_url":  "https://cdn.example.com/v.mp4",
		"status":     "PLAYING",
		"created_at": "1767225600000",
		"played_at":  "1767225630000",
		"seq":        "4",
	})

	e, err := s.Transition(context.Background(), "q-1", models.StatusPlaying, at)

	require.NoError(t, err)
	assert.Equal(t, models.StatusPlaying, e.Status)
	assert.Equal(t, int64(4), e.Seq)
	require.NotNil(t, e.PlayedAt)
	assert.True(t, at.Equal(*e.PlayedAt))
	assert.Nil(t, e.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_Transition_FromTerminal(t *testing.T) {
	s, mock := setupTestRedisStore()
	defer mock.ClearExpect()

	mock.ExpectEval(transitionScript,
		[]string{entryKey("q-1"), keyQueueWaiting, keyQueueActive},
		"ERROR", "completed_at", "1767225630000", "WAITING,PLAYING", "q-1",
	).SetVal([]interface{}{int64(-2), "DONE"})

	_, err := s.Transition(context.Background(), "q-1", models.StatusError, time.UnixMilli(1767225630000))

	assert.ErrorIs(t, err, status.ErrInvalidTransition)
	assert.Equal(t, status.KindInvalidTransition, status.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_Transition_NotFound(t *testing.T) {
	s, mock := setupTestRedisStore()
	defer mock.ClearExpect()

	mock.ExpectEval(transitionScript,
		[]string{entryKey("missing"), keyQueueWaiting, keyQueueActive},
		"DONE", "completed_at", "1767225630000", "WAITING,PLAYING", "missing",
	).SetVal([]interface{}{int64(-1), ""})

	_, err := s.Transition(context.Background(), "missing", models.StatusDone, time.UnixMilli(1767225630000))

	assert.ErrorIs(t, err, status.ErrQueueEntryNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_CountWaiting(t *testing.T) {
	s, mock := setupTestRedisStore()
	defer mock.ClearExpect()

	mock.ExpectZCard(keyQueueWaiting).SetVal(7)

	n, err := s.CountWaiting(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_ClearEmptyQueue(t *testing.T) {
	s, mock := setupTestRedisStore()
	defer mock.ClearExpect()

	mock.ExpectSMembers(keyQueueAll).SetVal([]string{})

	n, err := s.Clear(context.Background(), DefaultChunkSize)

	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_ClearRemovesOnlySnapshotEntries(t *testing.T) {
	s, mock := setupTestRedisStore()
	defer mock.ClearExpect()

	mock.ExpectSMembers(keyQueueAll).SetVal([]string{"q-1", "q-2", "q-3"})
	mock.ExpectEval(clearChunkScript,
		[]string{keyQueueWaiting, keyQueueActive, keyQueueAll, entryKey("q-1"), entryKey("q-2")},
		"q-1", "q-2",
	).SetVal(int64(2))
	mock.ExpectEval(clearChunkScript,
		[]string{keyQueueWaiting, keyQueueActive, keyQueueAll, entryKey("q-3")},
		"q-3",
	).SetVal(int64(1))

	n, err := s.Clear(context.Background(), 2)

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	// the index keys are never dropped wholesale
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_GetAttendee(t *testing.T) {
	s, mock := setupTestRedisStore()
	defer mock.ClearExpect()

	mock.ExpectHGetAll(attendeeKey("VIP_001")).SetVal(map[string]string{
		"user_id":           "VIP_001",
		"name":              "Ada",
		"is_vip":            "1",
		"seat":              "A01",
		"video_url":         "https://cdn.example.com/v.mp4",
		"created_at":        "1767225600000",
		"checked_in":        "1",
		"checked_in_at":     "1767225660000",
		"checked_in_method": "QR",
	})

	a, err := s.Get(context.Background(), "VIP_001")

	require.NoError(t, err)
	assert.True(t, a.IsVIP)
	assert.Equal(t, "A01", a.Seat)
	require.NotNil(t, a.Checkin)
	assert.Equal(t, models.MethodQR, a.Checkin.Method)
	assert.Equal(t, int64(1767225660000), a.Checkin.At.UnixMilli())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_GetAttendee_CheckedInWithoutTimestamp(t *testing.T) {
	s, mock := setupTestRedisStore()
	defer mock.ClearExpect()

	mock.ExpectHGetAll(attendeeKey("VIP_002")).SetVal(map[string]string{
		"user_id":           "VIP_002",
		"checked_in":        "1",
		"checked_in_at":     "garbage",
		"checked_in_method": "MANUAL",
	})

	a, err := s.Get(context.Background(), "VIP_002")

	require.NoError(t, err)
	require.True(t, a.CheckedIn())
	assert.False(t, a.Checkin.HasTime())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_GetAttendee_NotFound(t *testing.T) {
	s, mock := setupTestRedisStore()
	defer mock.ClearExpect()

	mock.ExpectHGetAll(attendeeKey("VIP_404")).SetVal(map[string]string{})

	_, err := s.Get(context.Background(), "VIP_404")

	assert.ErrorIs(t, err, status.ErrAttendeeNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_CreateAttendee_Exists(t *testing.T) {
	s, mock := setupTestRedisStore()
	defer mock.ClearExpect()

	a := &models.Attendee{UserID: "VIP_001", Name: "Ada", IsVIP: true, CreatedAt: createdAt}
	args := append([]interface{}{"0", "VIP_001"}, profileFields(a, true)...)
	mock.ExpectEval(putAttendeeScript, []string{attendeeKey("VIP_001"), keyAttendeeIndex}, args...).SetVal(int64(0))

	err := s.Create(context.Background(), a)

	assert.ErrorIs(t, err, status.ErrAttendeeExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_RecordCheckin(t *testing.T) {
	s, mock := setupTestRedisStore()
	defer mock.ClearExpect()

	at := time.UnixMilli(1767225660000)
	mock.ExpectEval(recordCheckinScript, []string{attendeeKey("VIP_001"), keyCheckedIn},
		"VIP_001", "1767225660000", "QR").SetVal(int64(1))
	mock.ExpectEval(recordCheckinScript, []string{attendeeKey("VIP_404"), keyCheckedIn},
		"VIP_404", "1767225660000", "QR").SetVal(int64(0))

	err := s.RecordCheckin(context.Background(), "VIP_001", models.CheckinRecord{At: at, Method: models.MethodQR})
	assert.NoError(t, err)

	err = s.RecordCheckin(context.Background(), "VIP_404", models.CheckinRecord{At: at, Method: models.MethodQR})
	assert.ErrorIs(t, err, status.ErrAttendeeNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
