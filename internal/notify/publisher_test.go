package notify

import (
	"context"
	"testing"
	"time"

	"checkin-system/models"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryEvent(t *testing.T) {
	e := models.QueueEntry{
		QueueID:   "q-1",
		UserID:    "VIP_001",
		Name:      "Ada",
		VideoURL:  "https://cdn.example.com/v.mp4",
		Status:    models.StatusWaiting,
		CreatedAt: time.Now(),
	}

	ev := EntryEvent(EventQueued, e, 2)

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "queue_added", got["type"])
	assert.Equal(t, "q-1", got["queue_id"])
	assert.Equal(t, "WAITING", got["status"])
	assert.EqualValues(t, 2, got["position"])
}

func TestClearedEventOmitsEntryFields(t *testing.T) {
	raw, err := json.Marshal(DisplayEvent{Type: EventCleared})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"queue_cleared"}`, string(raw))
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), DisplayEvent{Type: EventDone}))
}
