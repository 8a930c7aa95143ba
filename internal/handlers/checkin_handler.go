package handlers

import (
	"errors"
	"strconv"
	"strings"

	"checkin-system/internal/services"
	"checkin-system/internal/status"
	"checkin-system/internal/validation"
	"checkin-system/models"

	"github.com/pocketbase/pocketbase/core"
)

type CheckinHandler struct {
	checkin *services.CheckinService
}

func NewCheckinHandler(checkin *services.CheckinService) *CheckinHandler {
	return &CheckinHandler{checkin: checkin}
}

// An empty id passes validation so the service reports USERID_REQUIRED.
type qrRequest struct {
	UserID string `json:"user_id" validate:"omitempty,attendee_id"`
}

// Staff may type any identifier; unknown ones fail with USER_NOT_FOUND.
type manualRequest struct {
	UserID string `json:"user_id"`
}

type aiRequest struct {
	UserID      string   `json:"user_id" validate:"omitempty,attendee_id"`
	ImageBase64 string   `json:"image_base64" validate:"omitempty,min=100"`
	Confidence  *float64 `json:"confidence" validate:"omitempty,min=0,max=1"`
}

type historyQuery struct {
	Limit int `json:"limit" validate:"min=1,max=100"`
}

func (h *CheckinHandler) QR(e *core.RequestEvent) error {
	var req qrRequest
	if err := e.BindBody(&req); err != nil {
		return badBody(e, err)
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if err := validation.ValidateStruct(req); err != nil {
		return Fail(e, err)
	}
	return h.byIdentifier(e, req.UserID, models.MethodQR)
}

func (h *CheckinHandler) Manual(e *core.RequestEvent) error {
	var req manualRequest
	if err := e.BindBody(&req); err != nil {
		return badBody(e, err)
	}
	return h.byIdentifier(e, strings.TrimSpace(req.UserID), models.MethodManual)
}

func (h *CheckinHandler) byIdentifier(e *core.RequestEvent, userID string, method models.CheckinMethod) error {
	result, err := h.checkin.CheckinByIdentifier(e.Request.Context(), userID, method)
	if err != nil {
		return failCheckin(e, err)
	}
	return OK(e, "Check-in successful via "+string(method), result)
}

func (h *CheckinHandler) AI(e *core.RequestEvent) error {
	var req aiRequest
	if err := e.BindBody(&req); err != nil {
		return badBody(e, err)
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if err := validation.ValidateStruct(req); err != nil {
		return Fail(e, err)
	}

	result, err := h.checkin.CheckinByImageOrIdentifier(e.Request.Context(), services.AIRequest{
		UserID:      req.UserID,
		ImageBase64: req.ImageBase64,
		Confidence:  req.Confidence,
	})
	if err != nil {
		return failCheckin(e, err)
	}
	return OK(e, "Check-in successful via AI", result)
}

func (h *CheckinHandler) History(e *core.RequestEvent) error {
	var q historyQuery
	if raw := e.Request.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Fail(e, validation.Failed([]validation.FieldError{
				{Field: "limit", Tag: "number", Message: "must be an integer"},
			}, "limit must be an integer"))
		}
		q.Limit = n
		if err := validation.ValidateStruct(q); err != nil {
			return Fail(e, err)
		}
	}

	items, err := h.checkin.GetHistory(e.Request.Context(), q.Limit)
	if err != nil {
		return Fail(e, err)
	}
	return OK(e, "Check-in history retrieved", map[string]any{
		"history": items,
		"count":   len(items),
	})
}

// failCheckin adds the stage the attempt stopped in to the error details.
func failCheckin(e *core.RequestEvent, err error) error {
	var se *status.Error
	if stage := services.StageOf(err); stage != "" && errors.As(err, &se) {
		return Fail(e, se.WithDetail("stage", string(stage)))
	}
	return Fail(e, err)
}
