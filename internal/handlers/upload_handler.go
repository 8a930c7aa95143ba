package handlers

import (
	"net/http"
	"strings"

	"checkin-system/internal/services"
	"checkin-system/internal/status"

	"github.com/pocketbase/pocketbase/core"
)

const (
	maxVideoSize = 100 << 20
	maxImageSize = 10 << 20
)

type UploadHandler struct {
	media *services.MediaService
}

func NewUploadHandler(media *services.MediaService) *UploadHandler {
	return &UploadHandler{media: media}
}

func (h *UploadHandler) Video(e *core.RequestEvent) error {
	return h.upload(e, services.MediaVideo, "video/", maxVideoSize, "Video uploaded successfully")
}

func (h *UploadHandler) Image(e *core.RequestEvent) error {
	return h.upload(e, services.MediaImage, "image/", maxImageSize, "Image uploaded successfully")
}

func (h *UploadHandler) upload(e *core.RequestEvent, kind, mimePrefix string, limit int64, message string) error {
	e.Request.Body = http.MaxBytesReader(e.Response, e.Request.Body, limit)

	file, header, err := e.Request.FormFile("file")
	if err != nil {
		return Fail(e, status.ErrMissingFile)
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, mimePrefix) {
		return Fail(e, status.ErrValidation.WithMessage("file must be of type %s*", mimePrefix))
	}

	user, err := h.media.Upload(e.Request.Context(), kind, services.Upload{
		UserID:      strings.TrimSpace(e.Request.FormValue("user_id")),
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		return Fail(e, err)
	}

	url := user.ImageURL
	if kind == services.MediaVideo {
		url = user.VideoURL
	}
	return OK(e, message, map[string]any{"user_id": user.UserID, "url": url, "user": user})
}
