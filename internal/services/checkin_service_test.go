package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"checkin-system/config"
	"checkin-system/internal/notify"
	"checkin-system/internal/recognition"
	"checkin-system/internal/status"
	"checkin-system/internal/store"
	"checkin-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, ev notify.DisplayEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

type mockRecognizer struct {
	mock.Mock
}

func (m *mockRecognizer) Recognize(ctx context.Context, img string) (*models.Recognition, error) {
	args := m.Called(ctx, img)
	rec, _ := args.Get(0).(*models.Recognition)
	return rec, args.Error(1)
}

func (m *mockRecognizer) Health(ctx context.Context) recognition.Health {
	args := m.Called(ctx)
	return args.Get(0).(recognition.Health)
}

func testConfig() *config.Config {
	return &config.Config{
		MaxQueueLength:  10,
		CheckinCooldown: 5 * time.Minute,
		VideoDuration:   30 * time.Second,
		HistoryLimit:    50,
		BulkChunkSize:   500,
		DefaultAIScore:  0.95,
	}
}

type checkinFixture struct {
	store   *store.Memory
	queue   *QueueService
	checkin *CheckinService
	clock   *fakeClock
	pub     *mockPublisher
	ai      *mockRecognizer
}

func setupCheckinFixture(t *testing.T) *checkinFixture {
	t.Helper()

	clock := &fakeClock{t: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	mem := store.NewMemory()
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)
	ai := &mockRecognizer{}

	cfg := testConfig()
	queue := NewQueueService(mem, pub, nil, cfg).WithClock(clock.Now)
	checkin := NewCheckinService(mem, queue, ai, nil, nil, cfg).WithClock(clock.Now)

	return &checkinFixture{store: mem, queue: queue, checkin: checkin, clock: clock, pub: pub, ai: ai}
}

func (f *checkinFixture) addAttendee(t *testing.T, a models.Attendee) {
	t.Helper()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = f.clock.Now()
	}
	require.NoError(t, f.store.Create(context.Background(), &a))
}

func vip(n int) models.Attendee {
	id := fmt.Sprintf("VIP_%03d", n)
	return models.Attendee{
		UserID:   id,
		Name:     "Guest of Honour " + id,
		IsVIP:    true,
		Seat:     fmt.Sprintf("A%02d", n),
		VideoURL: fmt.Sprintf("https://cdn.example.com/%s.mp4", id),
	}
}

func TestCheckinService_FirstCheckinSucceeds(t *testing.T) {
	f := setupCheckinFixture(t)
	ctx := context.Background()
	f.addAttendee(t, models.Attendee{UserID: "GUEST_001", Name: "Alice"})

	result, err := f.checkin.CheckinByIdentifier(ctx, "GUEST_001", models.MethodQR)
	require.NoError(t, err)

	assert.Equal(t, "GUEST_001", result.Attendee.UserID)
	assert.Equal(t, models.MethodQR, result.Method)
	assert.Equal(t, models.QueueNotApplicable, result.Queue.Status)
	assert.Nil(t, result.Confidence)

	stored, err := f.store.Get(ctx, "GUEST_001")
	require.NoError(t, err)
	require.NotNil(t, stored.Checkin)
	assert.Equal(t, f.clock.Now(), stored.Checkin.At)
	assert.Equal(t, models.MethodQR, stored.Checkin.Method)
}

func TestCheckinService_CooldownWindow(t *testing.T) {
	f := setupCheckinFixture(t)
	ctx := context.Background()
	f.addAttendee(t, models.Attendee{UserID: "GUEST_001", Name: "Alice"})

	_, err := f.checkin.CheckinByIdentifier(ctx, "GUEST_001", models.MethodQR)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	_, err = f.checkin.CheckinByIdentifier(ctx, "GUEST_001", models.MethodManual)
	require.Error(t, err)
	assert.ErrorIs(t, err, status.ErrAlreadyCheckedIn)
	assert.Equal(t, models.StageValidatingEligibility, StageOf(err))

	var se *status.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 2, se.Details["minutes_ago"])
	assert.Contains(t, se.Message, "2 minutes ago")

	f.clock.Advance(4 * time.Minute)
	result, err := f.checkin.CheckinByIdentifier(ctx, "GUEST_001", models.MethodManual)
	require.NoError(t, err)
	assert.Equal(t, models.MethodManual, result.Method)
}

func TestCheckinService_SubMinuteCooldown(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	mem := store.NewMemory()
	cfg := testConfig()
	cfg.CheckinCooldown = 90 * time.Second
	svc := NewCheckinService(mem, nil, nil, nil, nil, cfg).WithClock(clock.Now)

	ctx := context.Background()
	require.NoError(t, mem.Create(ctx, &models.Attendee{UserID: "GUEST_001", Name: "Alice", CreatedAt: clock.Now()}))

	_, err := svc.CheckinByIdentifier(ctx, "GUEST_001", models.MethodQR)
	require.NoError(t, err)

	clock.Advance(80 * time.Second)
	_, err = svc.CheckinByIdentifier(ctx, "GUEST_001", models.MethodQR)
	require.ErrorIs(t, err, status.ErrAlreadyCheckedIn)
	var se *status.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Details["minutes_ago"])

	clock.Advance(10 * time.Second)
	_, err = svc.CheckinByIdentifier(ctx, "GUEST_001", models.MethodQR)
	assert.NoError(t, err)
}

func TestCheckinService_CheckedInWithoutTimestampStaysBlocked(t *testing.T) {
	f := setupCheckinFixture(t)
	ctx := context.Background()
	f.addAttendee(t, models.Attendee{UserID: "STAFF_001", Name: "Bob"})
	require.NoError(t, f.store.RecordCheckin(ctx, "STAFF_001", models.CheckinRecord{Method: models.MethodQR}))

	f.clock.Advance(24 * time.Hour)
	_, err := f.checkin.CheckinByIdentifier(ctx, "STAFF_001", models.MethodQR)
	assert.ErrorIs(t, err, status.ErrAlreadyCheckedIn)
}

func TestCheckinService_VIPIsQueued(t *testing.T) {
	f := setupCheckinFixture(t)
	ctx := context.Background()
	f.addAttendee(t, vip(1))

	result, err := f.checkin.CheckinByIdentifier(ctx, "VIP_001", models.MethodQR)
	require.NoError(t, err)

	require.True(t, result.Queue.Admitted())
	assert.Equal(t, 1, result.Queue.Entry.Position)
	assert.Equal(t, 30, result.Queue.Entry.EstimatedWaitTime)
	assert.Equal(t, models.StatusWaiting, result.Queue.Entry.Status)
	assert.Equal(t, "https://cdn.example.com/VIP_001.mp4", result.Queue.Entry.VideoURL)

	f.pub.AssertCalled(t, "Publish", mock.Anything, mock.MatchedBy(func(ev notify.DisplayEvent) bool {
		return ev.Type == notify.EventQueued && ev.UserID == "VIP_001" && ev.Position == 1
	}))
}

func TestCheckinService_FullQueueKeepsCheckin(t *testing.T) {
	f := setupCheckinFixture(t)
	ctx := context.Background()
	for i := 1; i <= 11; i++ {
		f.addAttendee(t, vip(i))
	}

	for i := 1; i <= 10; i++ {
		result, err := f.checkin.CheckinByIdentifier(ctx, fmt.Sprintf("VIP_%03d", i), models.MethodQR)
		require.NoError(t, err)
		require.True(t, result.Queue.Admitted())
		assert.Equal(t, i, result.Queue.Entry.Position)
	}

	result, err := f.checkin.CheckinByIdentifier(ctx, "VIP_011", models.MethodQR)
	require.NoError(t, err)
	assert.Equal(t, models.QueueSkipped, result.Queue.Status)
	assert.Equal(t, "QUEUE_FULL", result.Queue.Code)
	assert.Equal(t, "Queue is full (max 10 items)", result.Queue.Reason)

	stored, err := f.store.Get(ctx, "VIP_011")
	require.NoError(t, err)
	assert.True(t, stored.CheckedIn())

	n, err := f.queue.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestCheckinService_InvalidVideoURLSkipsQueue(t *testing.T) {
	f := setupCheckinFixture(t)
	ctx := context.Background()
	a := vip(2)
	a.VideoURL = "not a url"
	f.addAttendee(t, a)

	result, err := f.checkin.CheckinByIdentifier(ctx, "VIP_002", models.MethodManual)
	require.NoError(t, err)
	assert.Equal(t, models.QueueSkipped, result.Queue.Status)
	assert.Equal(t, "INVALID_VIDEO_URL", result.Queue.Code)
}

func TestCheckinService_VIPWithoutVideoIsNotQueued(t *testing.T) {
	f := setupCheckinFixture(t)
	ctx := context.Background()
	a := vip(3)
	a.VideoURL = ""
	f.addAttendee(t, a)

	result, err := f.checkin.CheckinByIdentifier(ctx, "VIP_003", models.MethodQR)
	require.NoError(t, err)
	assert.Equal(t, models.QueueNotApplicable, result.Queue.Status)
}

func TestCheckinService_UnknownAttendeeMutatesNothing(t *testing.T) {
	f := setupCheckinFixture(t)
	ctx := context.Background()
	f.addAttendee(t, vip(1))

	_, err := f.checkin.CheckinByIdentifier(ctx, "UNKNOWN_999", models.MethodQR)
	require.Error(t, err)
	assert.ErrorIs(t, err, status.ErrAttendeeNotFound)
	assert.Equal(t, models.StageValidatingEligibility, StageOf(err))

	n, err := f.queue.Length(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	history, err := f.checkin.GetHistory(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
	f.pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestCheckinService_IdentifierValidation(t *testing.T) {
	f := setupCheckinFixture(t)
	ctx := context.Background()

	_, err := f.checkin.CheckinByIdentifier(ctx, "", models.MethodQR)
	assert.ErrorIs(t, err, status.ErrUserIDRequired)
	assert.Equal(t, models.StageResolvingIdentity, StageOf(err))

	_, err = f.checkin.CheckinByIdentifier(ctx, "GUEST_001", models.MethodAI)
	assert.ErrorIs(t, err, status.ErrValidation)
}

func TestCheckinService_AIWithSuppliedIdentifier(t *testing.T) {
	f := setupCheckinFixture(t)
	ctx := context.Background()
	f.addAttendee(t, models.Attendee{UserID: "GUEST_002", Name: "Carol"})

	result, err := f.checkin.CheckinByImageOrIdentifier(ctx, AIRequest{UserID: "GUEST_002", ImageBase64: "ignored"})
	require.NoError(t, err)

	assert.Equal(t, models.MethodAI, result.Method)
	require.NotNil(t, result.Confidence)
	assert.InDelta(t, 0.95, *result.Confidence, 1e-9)
	assert.Nil(t, result.Recognition)
	f.ai.AssertNotCalled(t, "Recognize", mock.Anything, mock.Anything)
}

func TestCheckinService_AIWithImage(t *testing.T) {
	f := setupCheckinFixture(t)
	ctx := context.Background()
	f.addAttendee(t, vip(4))

	f.ai.On("Recognize", mock.Anything, "base64-image").Return(&models.Recognition{
		UserID:     "VIP_004",
		Name:       "Guest of Honour VIP_004",
		Confidence: 0.87,
	}, nil).Once()

	result, err := f.checkin.CheckinByImageOrIdentifier(ctx, AIRequest{ImageBase64: "base64-image"})
	require.NoError(t, err)

	require.NotNil(t, result.Recognition)
	assert.Equal(t, "VIP_004", result.Recognition.UserID)
	assert.InDelta(t, 0.87, *result.Confidence, 1e-9)
	assert.True(t, result.Queue.Admitted())
	f.ai.AssertExpectations(t)
}

func TestCheckinService_AIRecognitionFailure(t *testing.T) {
	f := setupCheckinFixture(t)
	ctx := context.Background()

	f.ai.On("Recognize", mock.Anything, "blurry").Return(nil, status.ErrFaceNotFound).Once()

	_, err := f.checkin.CheckinByImageOrIdentifier(ctx, AIRequest{ImageBase64: "blurry"})
	assert.ErrorIs(t, err, status.ErrFaceNotFound)
	assert.Equal(t, models.StageResolvingIdentity, StageOf(err))

	_, err = f.checkin.CheckinByImageOrIdentifier(ctx, AIRequest{})
	assert.ErrorIs(t, err, status.ErrMissingParameters)
}

func TestCheckinService_AIWithoutRecognizer(t *testing.T) {
	mem := store.NewMemory()
	cfg := testConfig()
	svc := NewCheckinService(mem, NewQueueService(mem, nil, nil, cfg), nil, nil, nil, cfg)

	_, err := svc.CheckinByImageOrIdentifier(context.Background(), AIRequest{ImageBase64: "img"})
	assert.ErrorIs(t, err, status.ErrRecognitionDown)
}

func TestCheckinService_GetHistory(t *testing.T) {
	f := setupCheckinFixture(t)
	ctx := context.Background()
	f.addAttendee(t, models.Attendee{UserID: "GUEST_001", Name: "Alice"})
	f.addAttendee(t, models.Attendee{UserID: "GUEST_002", Name: "Bob"})
	f.addAttendee(t, models.Attendee{UserID: "GUEST_003", Name: "Never"})

	_, err := f.checkin.CheckinByIdentifier(ctx, "GUEST_001", models.MethodQR)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.checkin.CheckinByIdentifier(ctx, "GUEST_002", models.MethodManual)
	require.NoError(t, err)

	history, err := f.checkin.GetHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "GUEST_002", history[0].UserID)
	assert.Equal(t, models.MethodManual, history[0].Method)
	assert.Equal(t, "GUEST_001", history[1].UserID)
	require.NotNil(t, history[1].CheckedInAt)

	history, err = f.checkin.GetHistory(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestCheckinService_RecordsSystemLog(t *testing.T) {
	mem := store.NewMemory()
	cfg := testConfig()
	logs := NewSystemLogService(NewMemoryLogSink())
	svc := NewCheckinService(mem, NewQueueService(mem, nil, nil, cfg), nil, logs, nil, cfg)
	ctx := context.Background()

	require.NoError(t, mem.Create(ctx, &models.Attendee{UserID: "GUEST_001", Name: "Alice"}))
	_, err := svc.CheckinByIdentifier(ctx, "GUEST_001", models.MethodQR)
	require.NoError(t, err)

	entries, err := logs.Recent(ctx, 10, LevelInfo)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "checkin", entries[0].Component)
	assert.Equal(t, "GUEST_001", entries[0].Metadata["user_id"])
}
