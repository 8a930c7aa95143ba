// Package notify pushes playback queue changes to the venue display.
package notify

import (
	"context"
	"fmt"

	"checkin-system/internal/logging"
	"checkin-system/models"

	pubnub "github.com/pubnub/go/v7"
)

const (
	EventQueued  = "queue_added"
	EventPlaying = "queue_playing"
	EventDone    = "queue_done"
	EventError   = "queue_error"
	EventCleared = "queue_cleared"
)

type DisplayEvent struct {
	Type     string             `json:"type"`
	QueueID  string             `json:"queue_id,omitempty"`
	UserID   string             `json:"user_id,omitempty"`
	Name     string             `json:"name,omitempty"`
	VideoURL string             `json:"video_url,omitempty"`
	Status   models.QueueStatus `json:"status,omitempty"`
	Position int                `json:"position,omitempty"`
}

// EntryEvent builds a display event for a queue entry.
func EntryEvent(kind string, e models.QueueEntry, position int) DisplayEvent {
	return DisplayEvent{
		Type:     kind,
		QueueID:  e.QueueID,
		UserID:   e.UserID,
		Name:     e.Name,
		VideoURL: e.VideoURL,
		Status:   e.Status,
		Position: position,
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev DisplayEvent) error
}

type PubNubConfig struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
	UserID       string
	Channel      string
}

type PubNub struct {
	pn      *pubnub.PubNub
	channel string
}

func NewPubNub(cfg PubNubConfig) *PubNub {
	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.UserID))
	pnCfg.PublishKey = cfg.PublishKey
	pnCfg.SubscribeKey = cfg.SubscribeKey
	pnCfg.SecretKey = cfg.SecretKey

	return &PubNub{
		pn:      pubnub.NewPubNub(pnCfg),
		channel: cfg.Channel,
	}
}

func (p *PubNub) Publish(ctx context.Context, ev DisplayEvent) error {
	_, st, err := p.pn.Publish().
		Channel(p.channel).
		Message(ev).
		Execute()
	if err != nil {
		return fmt.Errorf("publish %s to %s (status %d): %w", ev.Type, p.channel, st.StatusCode, err)
	}
	return nil
}

// Noop drops every event. Used when no PubNub keys are configured.
type Noop struct{}

func (Noop) Publish(ctx context.Context, ev DisplayEvent) error {
	logging.Debug().Str("type", ev.Type).Str("queue_id", ev.QueueID).Msg("display event dropped, no publisher configured")
	return nil
}
