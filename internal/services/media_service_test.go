package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"checkin-system/internal/status"
	"checkin-system/internal/store"
	"checkin-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockObjectStore struct {
	mock.Mock
}

func (m *mockObjectStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	args := m.Called(ctx, key, size, contentType)
	return args.String(0), args.Error(1)
}

func (m *mockObjectStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func setupTestMediaService(t *testing.T) (*MediaService, *mockObjectStore, *store.Memory) {
	t.Helper()

	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.Create(ctx, &models.Attendee{UserID: "VIP_001", Name: "One", IsVIP: true}))
	require.NoError(t, mem.Create(ctx, &models.Attendee{UserID: "GUEST_001", Name: "Two"}))

	objects := &mockObjectStore{}
	return NewMediaService(objects, NewUserService(mem, mem, nil)), objects, mem
}

func TestMediaService_UploadVideo(t *testing.T) {
	svc, objects, mem := setupTestMediaService(t)
	ctx := context.Background()

	objects.On("Put", mock.Anything, "videos/VIP_001/intro.mp4", int64(5), "video/mp4").
		Return("http://localhost:9000/checkin-media/videos/VIP_001/intro.mp4", nil).Once()

	a, err := svc.Upload(ctx, MediaVideo, Upload{
		UserID:      "VIP_001",
		Filename:    "../../intro.mp4",
		ContentType: "video/mp4",
		Size:        5,
		Body:        strings.NewReader("video"),
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/checkin-media/videos/VIP_001/intro.mp4", a.VideoURL)

	stored, err := mem.Get(ctx, "VIP_001")
	require.NoError(t, err)
	assert.Equal(t, a.VideoURL, stored.VideoURL)
	objects.AssertExpectations(t)
}

func TestMediaService_UploadImage(t *testing.T) {
	svc, objects, _ := setupTestMediaService(t)

	objects.On("Put", mock.Anything, "images/VIP_001/face.jpg", int64(3), "image/jpeg").
		Return("http://cdn/images/VIP_001/face.jpg", nil).Once()

	a, err := svc.Upload(context.Background(), MediaImage, Upload{
		UserID:      "VIP_001",
		Filename:    "face.jpg",
		ContentType: "image/jpeg",
		Size:        3,
		Body:        strings.NewReader("img"),
	})
	require.NoError(t, err)
	assert.Equal(t, "http://cdn/images/VIP_001/face.jpg", a.ImageURL)
}

func TestMediaService_Rejections(t *testing.T) {
	svc, objects, _ := setupTestMediaService(t)
	ctx := context.Background()
	body := func() io.Reader { return strings.NewReader("x") }

	_, err := svc.Upload(ctx, MediaVideo, Upload{UserID: "GUEST_001", Size: 1, Body: body()})
	assert.ErrorIs(t, err, status.ErrNotVIP)

	_, err = svc.Upload(ctx, MediaVideo, Upload{UserID: "VIP_404", Size: 1, Body: body()})
	assert.ErrorIs(t, err, status.ErrAttendeeNotFound)

	_, err = svc.Upload(ctx, MediaVideo, Upload{UserID: "VIP_001"})
	assert.ErrorIs(t, err, status.ErrMissingFile)

	_, err = svc.Upload(ctx, MediaVideo, Upload{Size: 1, Body: body()})
	assert.ErrorIs(t, err, status.ErrUserIDRequired)

	objects.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMediaService_StoreFailure(t *testing.T) {
	svc, objects, _ := setupTestMediaService(t)

	objects.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("bucket unavailable")).Once()

	_, err := svc.Upload(context.Background(), MediaVideo, Upload{
		UserID: "VIP_001", Filename: "a.mp4", Size: 1, Body: strings.NewReader("x"),
	})
	assert.ErrorIs(t, err, status.ErrMediaUpload)
}
