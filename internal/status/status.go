package status

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindInvalidInput
	KindServiceUnavailable
	KindInvalidTransition
	KindUnauthorized
	KindForbidden
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidInput:
		return "invalid_input"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindRateLimited:
		return "rate_limited"
	}
	return "internal"
}

// Error is a business-rule failure with a machine readable code.
// Two errors with the same code match under errors.Is.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithMessage returns a copy carrying a more specific message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

func (e *Error) WithDetail(key string, value any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

// KindOf reports the kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

func CodeOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

var (
	ErrAttendeeNotFound   = New(KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrQueueEntryNotFound = New(KindNotFound, "QUEUE_ITEM_NOT_FOUND", "queue item not found")

	ErrAlreadyCheckedIn = New(KindConflict, "ALREADY_CHECKED_IN", "user already checked in")
	ErrQueueFull        = New(KindConflict, "QUEUE_FULL", "queue is full")
	ErrAlreadyQueued    = New(KindConflict, "ALREADY_IN_QUEUE", "user already in queue")
	ErrAttendeeExists   = New(KindConflict, "USER_EXISTS", "user already exists")

	ErrInvalidMedia      = New(KindInvalidInput, "INVALID_VIDEO_URL", "invalid video URL")
	ErrUserIDRequired    = New(KindInvalidInput, "USERID_REQUIRED", "user ID is required")
	ErrMissingParameters = New(KindInvalidInput, "MISSING_PARAMETERS", "either user_id or image_base64 is required")
	ErrFaceNotFound      = New(KindInvalidInput, "FACE_NOT_FOUND", "no faces recognized in the image")
	ErrValidation        = New(KindInvalidInput, "VALIDATION_ERROR", "validation failed")
	ErrNotVIP            = New(KindInvalidInput, "NOT_VIP", "only VIPs can upload media")
	ErrMissingFile       = New(KindInvalidInput, "MISSING_FILE", "file is required")
	ErrInvalidImport     = New(KindInvalidInput, "INVALID_IMPORT", "import payload is empty or invalid")
	ErrInvalidStatus     = New(KindInvalidInput, "INVALID_STATUS", "invalid queue status")

	ErrRecognitionDown     = New(KindServiceUnavailable, "AI_SERVICE_DOWN", "AI recognition service is not available")
	ErrRecognitionTimeout  = New(KindServiceUnavailable, "AI_SERVICE_TIMEOUT", "AI recognition service timeout")
	ErrRecognitionNotReady = New(KindServiceUnavailable, "AI_SERVICE_NOT_READY", "AI model or database not loaded")
	ErrRecognitionFailed   = New(KindServiceUnavailable, "AI_SERVICE_ERROR", "AI recognition failed")
	ErrMediaUpload         = New(KindServiceUnavailable, "UPLOAD_FAILED", "media upload failed")

	ErrInvalidTransition = New(KindInvalidTransition, "INVALID_TRANSITION", "invalid queue status transition")

	ErrInvalidCredentials = New(KindUnauthorized, "INVALID_CREDENTIALS", "invalid username or password")
	ErrInvalidToken       = New(KindUnauthorized, "INVALID_TOKEN", "invalid token")
	ErrTokenExpired       = New(KindUnauthorized, "TOKEN_EXPIRED", "token expired")
	ErrForbidden          = New(KindForbidden, "FORBIDDEN", "insufficient permissions")

	ErrRateLimited = New(KindRateLimited, "RATE_LIMITED", "too many requests, please try again later")
)

// AlreadyCheckedIn reports a re-check-in inside the cooldown window.
func AlreadyCheckedIn(minutesAgo int) *Error {
	return ErrAlreadyCheckedIn.
		WithMessage("already checked in %d minutes ago", minutesAgo).
		WithDetail("minutes_ago", minutesAgo)
}

func InvalidTransition(from, to string) *Error {
	return ErrInvalidTransition.
		WithMessage("cannot move queue item from %s to %s", from, to).
		WithDetail("from", from).
		WithDetail("to", to)
}
