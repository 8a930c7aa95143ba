package services

import (
	"context"
	"io"

	"checkin-system/internal/logging"
	"checkin-system/internal/media"
	"checkin-system/internal/status"
	"checkin-system/models"
)

const (
	MediaVideo = "video"
	MediaImage = "image"
)

// Upload is one file received from a multipart form.
type Upload struct {
	UserID      string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type MediaService struct {
	store media.Store
	users *UserService
}

func NewMediaService(store media.Store, users *UserService) *MediaService {
	return &MediaService{store: store, users: users}
}

// Upload stores a VIP's video or image and saves the public URL on the attendee.
func (s *MediaService) Upload(ctx context.Context, kind string, up Upload) (*models.Attendee, error) {
	if up.UserID == "" {
		return nil, status.ErrUserIDRequired
	}
	if up.Body == nil || up.Size == 0 {
		return nil, status.ErrMissingFile
	}

	attendee, err := s.users.Get(ctx, up.UserID)
	if err != nil {
		return nil, err
	}
	if !attendee.IsVIP {
		return nil, status.ErrNotVIP
	}

	prefix := "images"
	if kind == MediaVideo {
		prefix = "videos"
	}
	key := media.ObjectKey(prefix, up.UserID, up.Filename)

	url, err := s.store.Put(ctx, key, up.Body, up.Size, up.ContentType)
	if err != nil {
		return nil, status.ErrMediaUpload.Wrap(err)
	}

	updated, err := s.users.SetMedia(ctx, up.UserID, kind, url)
	if err != nil {
		return nil, err
	}

	logging.Info().Str("user_id", up.UserID).Str("kind", kind).Str("key", key).Msg("media uploaded")
	return updated, nil
}
