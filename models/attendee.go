package models

import (
	"encoding/json"
	"strings"
	"time"
)

type CheckinMethod string

const (
	MethodAI     CheckinMethod = "AI"
	MethodQR     CheckinMethod = "QR"
	MethodManual CheckinMethod = "MANUAL"
)

func (m CheckinMethod) Valid() bool {
	switch m {
	case MethodAI, MethodQR, MethodManual:
		return true
	}
	return false
}

type Category string

const (
	CategoryVIP   Category = "VIP"
	CategoryStaff Category = "STAFF"
	CategoryGuest Category = "GUEST"
)

// CheckinRecord is present on an attendee only once they have checked in.
// A zero At means the timestamp could not be recovered from storage.
type CheckinRecord struct {
	At     time.Time     `json:"at"`
	Method CheckinMethod `json:"method"`
}

func (r CheckinRecord) HasTime() bool {
	return !r.At.IsZero()
}

// MinutesSince returns whole minutes elapsed between the check-in and now,
// floored on milliseconds.
func (r CheckinRecord) MinutesSince(now time.Time) int {
	ms := now.Sub(r.At).Milliseconds()
	minutes := ms / 60000
	if ms < 0 && ms%60000 != 0 {
		minutes--
	}
	return int(minutes)
}

type Attendee struct {
	UserID    string         `json:"user_id"`
	Name      string         `json:"name"`
	IsVIP     bool           `json:"is_vip"`
	Seat      string         `json:"seat,omitempty"`
	ImageURL  string         `json:"image_url,omitempty"`
	VideoURL  string         `json:"video_url,omitempty"`
	Email     string         `json:"email,omitempty"`
	Phone     string         `json:"phone,omitempty"`
	House     string         `json:"house,omitempty"`
	Checkin   *CheckinRecord `json:"-"`
	CreatedAt time.Time      `json:"created_at"`
}

func (a *Attendee) CheckedIn() bool {
	return a.Checkin != nil
}

// Queueable reports whether a check-in should hand the attendee's video to the playback queue.
func (a *Attendee) Queueable() bool {
	return a.IsVIP && a.VideoURL != ""
}

func (a *Attendee) Category() Category {
	prefix, _, _ := strings.Cut(a.UserID, "_")
	return Category(prefix)
}

func (a Attendee) MarshalJSON() ([]byte, error) {
	type plain Attendee
	out := struct {
		plain
		CheckedIn       bool          `json:"checked_in"`
		CheckedInAt     *time.Time    `json:"checked_in_at"`
		CheckedInMethod CheckinMethod `json:"checked_in_method,omitempty"`
	}{plain: plain(a)}

	if a.Checkin != nil {
		out.CheckedIn = true
		out.CheckedInMethod = a.Checkin.Method
		if a.Checkin.HasTime() {
			at := a.Checkin.At
			out.CheckedInAt = &at
		}
	}
	return json.Marshal(out)
}

type AttendeeStats struct {
	TotalUsers     int    `json:"total_users"`
	TotalCheckedIn int    `json:"total_checked_in"`
	TotalVIPs      int    `json:"total_vips"`
	VIPsCheckedIn  int    `json:"vips_checked_in"`
	QueueLength    int    `json:"queue_length"`
	CheckinRate    string `json:"checkin_rate"`
}
