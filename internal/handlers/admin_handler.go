package handlers

import (
	"net/http"
	"strconv"
	"time"

	"checkin-system/internal/services"

	"github.com/pocketbase/pocketbase/core"
)

type AdminHandler struct {
	admin *services.AdminService
}

func NewAdminHandler(admin *services.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

func (h *AdminHandler) ClearQueue(e *core.RequestEvent) error {
	n, err := h.admin.ClearQueue(e.Request.Context())
	if err != nil {
		return Fail(e, err)
	}
	return OK(e, "Queue cleared successfully", map[string]any{"items_cleared": n})
}

func (h *AdminHandler) ResetCheckins(e *core.RequestEvent) error {
	result, err := h.admin.ResetCheckins(e.Request.Context())
	if err != nil {
		return Fail(e, err)
	}
	return OK(e, "All check-ins reset successfully", result)
}

func (h *AdminHandler) ResetData(e *core.RequestEvent) error {
	result, err := h.admin.ResetData(e.Request.Context())
	if err != nil {
		return Fail(e, err)
	}
	return OK(e, "All data reset successfully", result)
}

func (h *AdminHandler) Stats(e *core.RequestEvent) error {
	stats, err := h.admin.Stats(e.Request.Context())
	if err != nil {
		return Fail(e, err)
	}
	return OK(e, "System statistics retrieved", stats)
}

// Logs lists recent system logs. ?limit=&level=
func (h *AdminHandler) Logs(e *core.RequestEvent) error {
	q := e.Request.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	logs, err := h.admin.Logs(e.Request.Context(), limit, q.Get("level"))
	if err != nil {
		return Fail(e, err)
	}
	return OK(e, "System logs retrieved", map[string]any{"logs": logs, "count": len(logs)})
}

func (h *AdminHandler) Health(e *core.RequestEvent) error {
	return OK(e, "Health check completed", h.admin.Health(e.Request.Context()))
}

// Liveness answers the public /health probe from the store alone.
func (h *AdminHandler) Liveness(e *core.RequestEvent) error {
	if err := h.admin.Ping(e.Request.Context()); err != nil {
		return e.JSON(http.StatusServiceUnavailable, map[string]any{
			"status":    "unhealthy",
			"error":     err.Error(),
			"timestamp": time.Now(),
		})
	}
	return e.JSON(http.StatusOK, map[string]any{"status": "healthy", "timestamp": time.Now()})
}
