package models

import (
	"time"
)

// CheckinStage names the step of a check-in attempt. A failed attempt reports the
// stage it stopped in.
type CheckinStage string

const (
	StageResolvingIdentity     CheckinStage = "RESOLVING_IDENTITY"
	StageValidatingEligibility CheckinStage = "VALIDATING_ELIGIBILITY"
	StageRecording             CheckinStage = "RECORDING"
	StageEnqueuing             CheckinStage = "ENQUEUING"
	StageComplete              CheckinStage = "COMPLETE"
)

type QueueOutcomeStatus string

const (
	QueueNotApplicable QueueOutcomeStatus = "not_applicable"
	QueueAdmitted      QueueOutcomeStatus = "queued"
	QueueSkipped       QueueOutcomeStatus = "skipped"
)

// QueueOutcome is the secondary result of a check-in. Admission failures land
// here instead of failing the check-in.
type QueueOutcome struct {
	Status QueueOutcomeStatus `json:"status"`
	Entry  *PositionedEntry   `json:"entry,omitempty"`
	Code   string             `json:"code,omitempty"`
	Reason string             `json:"reason,omitempty"`
}

func QueueOk(entry PositionedEntry) QueueOutcome {
	return QueueOutcome{Status: QueueAdmitted, Entry: &entry}
}

func QueueSkip(code, reason string) QueueOutcome {
	return QueueOutcome{Status: QueueSkipped, Code: code, Reason: reason}
}

func (o QueueOutcome) Admitted() bool {
	return o.Status == QueueAdmitted && o.Entry != nil
}

type Recognition struct {
	UserID          string  `json:"user_id"`
	Name            string  `json:"name"`
	Confidence      float64 `json:"confidence"`
	House           string  `json:"house,omitempty"`
	DetectedFaces   int     `json:"detected_faces"`
	RecognizedFaces int     `json:"recognized_faces"`
	ProcessingTime  int64   `json:"processing_time_ms"`
}

type CheckinResult struct {
	Attendee    Attendee      `json:"user"`
	Method      CheckinMethod `json:"checkin_method"`
	Confidence  *float64      `json:"confidence,omitempty"`
	Recognition *Recognition  `json:"ai_recognition,omitempty"`
	Queue       QueueOutcome  `json:"queue"`
	Timestamp   time.Time     `json:"timestamp"`
}

type HistoryItem struct {
	UserID      string        `json:"user_id"`
	Name        string        `json:"name"`
	Seat        string        `json:"seat,omitempty"`
	IsVIP       bool          `json:"is_vip"`
	Method      CheckinMethod `json:"method"`
	CheckedInAt *time.Time    `json:"checked_in_at"`
}

type SystemLog struct {
	ID        string         `json:"id"`
	Level     string         `json:"level"`
	Component string         `json:"component"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type ImportResult struct {
	Total   int           `json:"total"`
	Created int           `json:"created"`
	Updated int           `json:"updated"`
	Skipped int           `json:"skipped"`
	Errors  []ImportError `json:"errors"`
}

type ImportError struct {
	Line  int    `json:"line,omitempty"`
	Index *int   `json:"index,omitempty"`
	Error string `json:"error"`
}
