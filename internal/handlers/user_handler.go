package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"checkin-system/internal/services"

	"github.com/pocketbase/pocketbase/core"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// List pages through attendees ordered by id. ?limit=&start_after=
func (h *UserHandler) List(e *core.RequestEvent) error {
	q := e.Request.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	users, err := h.users.List(e.Request.Context(), limit, q.Get("start_after"))
	if err != nil {
		return Fail(e, err)
	}

	data := map[string]any{"users": users, "count": len(users)}
	if limit > 0 && len(users) == limit {
		data["next_start_after"] = users[len(users)-1].UserID
	}
	return OK(e, "Users retrieved", data)
}

func (h *UserHandler) VIPs(e *core.RequestEvent) error {
	vips, err := h.users.VIPs(e.Request.Context())
	if err != nil {
		return Fail(e, err)
	}
	return OK(e, "VIP users retrieved", map[string]any{"users": vips, "count": len(vips)})
}

func (h *UserHandler) Summaries(e *core.RequestEvent) error {
	list, err := h.users.Summaries(e.Request.Context())
	if err != nil {
		return Fail(e, err)
	}
	return OK(e, "User list retrieved", map[string]any{"users": list, "count": len(list)})
}

func (h *UserHandler) Stats(e *core.RequestEvent) error {
	stats, err := h.users.Stats(e.Request.Context())
	if err != nil {
		return Fail(e, err)
	}
	return OK(e, "Statistics retrieved", stats)
}

func (h *UserHandler) Get(e *core.RequestEvent) error {
	user, err := h.users.Get(e.Request.Context(), e.Request.PathValue("userId"))
	if err != nil {
		return Fail(e, err)
	}
	return OK(e, "User found", user)
}

func (h *UserHandler) Create(e *core.RequestEvent) error {
	var req services.CreateUserRequest
	if err := e.BindBody(&req); err != nil {
		return badBody(e, err)
	}

	user, err := h.users.Create(e.Request.Context(), req)
	if err != nil {
		return Fail(e, err)
	}
	return Created(e, "User created successfully", user)
}

// QRCode renders the attendee id as a PNG badge for the QR check-in kiosk.
func (h *UserHandler) QRCode(e *core.RequestEvent) error {
	user, err := h.users.Get(e.Request.Context(), e.Request.PathValue("userId"))
	if err != nil {
		return Fail(e, err)
	}

	png, err := qrcode.Encode(user.UserID, qrcode.Medium, qrSize)
	if err != nil {
		return Fail(e, err)
	}

	e.Response.Header().Set("Cache-Control", "public, max-age=86400")
	e.Response.Header().Set("Content-Disposition", `inline; filename="`+strings.ToLower(user.UserID)+`.png"`)
	return e.Blob(http.StatusOK, "image/png", png)
}
