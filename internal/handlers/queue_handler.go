package handlers

import (
	"context"

	"checkin-system/internal/services"
	"checkin-system/internal/status"
	"checkin-system/models"

	"github.com/pocketbase/pocketbase/core"
)

type QueueHandler struct {
	queue *services.QueueService
}

func NewQueueHandler(queue *services.QueueService) *QueueHandler {
	return &QueueHandler{queue: queue}
}

func (h *QueueHandler) List(e *core.RequestEvent) error {
	items, err := h.queue.ListWithPositions(e.Request.Context())
	if err != nil {
		return Fail(e, err)
	}
	return OK(e, "Queue retrieved", map[string]any{
		"queue": items,
		"count": len(items),
	})
}

func (h *QueueHandler) Next(e *core.RequestEvent) error {
	next, err := h.queue.GetNextItem(e.Request.Context())
	if err != nil {
		return Fail(e, err)
	}
	if next == nil {
		return OK(e, "Queue is empty", nil)
	}
	return OK(e, "Next item retrieved", next)
}

func (h *QueueHandler) Stats(e *core.RequestEvent) error {
	stats, err := h.queue.Stats(e.Request.Context())
	if err != nil {
		return Fail(e, err)
	}
	return OK(e, "Queue statistics retrieved", stats)
}

func (h *QueueHandler) MarkPlaying(e *core.RequestEvent) error {
	return h.transition(e, h.queue.MarkPlaying, "Marked as playing")
}

func (h *QueueHandler) MarkDone(e *core.RequestEvent) error {
	return h.transition(e, h.queue.MarkDone, "Marked as done")
}

func (h *QueueHandler) MarkError(e *core.RequestEvent) error {
	return h.transition(e, h.queue.MarkError, "Marked as error")
}

func (h *QueueHandler) transition(
	e *core.RequestEvent,
	apply func(ctx context.Context, queueID string) (*models.QueueEntry, error),
	message string,
) error {
	queueID := e.Request.PathValue("queueId")
	if queueID == "" {
		return Fail(e, status.ErrQueueEntryNotFound)
	}

	entry, err := apply(e.Request.Context(), queueID)
	if err != nil {
		return Fail(e, err)
	}
	return OK(e, message, entry)
}
