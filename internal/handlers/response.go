package handlers

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"checkin-system/internal/logging"
	"checkin-system/internal/status"

	"github.com/pocketbase/pocketbase/core"
)

type Envelope struct {
	Success   bool       `json:"success"`
	Message   string     `json:"message,omitempty"`
	Data      any        `json:"data"`
	Error     *ErrorBody `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

var hideInternal atomic.Bool

// HideInternalErrors replaces the message of unexpected errors with a generic one.
func HideInternalErrors(hide bool) {
	hideInternal.Store(hide)
}

func OK(e *core.RequestEvent, message string, data any) error {
	return e.JSON(http.StatusOK, Envelope{Success: true, Message: message, Data: data, Timestamp: time.Now()})
}

func Created(e *core.RequestEvent, message string, data any) error {
	return e.JSON(http.StatusCreated, Envelope{Success: true, Message: message, Data: data, Timestamp: time.Now()})
}

// Fail writes err as a failure envelope with the HTTP status of its kind.
func Fail(e *core.RequestEvent, err error) error {
	var se *status.Error
	if !errors.As(err, &se) {
		logging.Error().Err(err).Str("path", e.Request.URL.Path).Msg("unhandled request error")
		msg := err.Error()
		if hideInternal.Load() {
			msg = "Internal Server Error"
		}
		return e.JSON(http.StatusInternalServerError, Envelope{
			Error:     &ErrorBody{Code: "INTERNAL_ERROR", Message: msg},
			Timestamp: time.Now(),
		})
	}

	code := HTTPStatus(se.Kind)
	if code >= http.StatusInternalServerError {
		logging.Error().Err(err).Str("path", e.Request.URL.Path).Msg("request failed")
	}
	return e.JSON(code, Envelope{
		Message:   se.Message,
		Error:     &ErrorBody{Code: se.Code, Message: se.Message, Details: se.Details},
		Timestamp: time.Now(),
	})
}

func HTTPStatus(kind status.Kind) int {
	switch kind {
	case status.KindNotFound:
		return http.StatusNotFound
	case status.KindConflict, status.KindInvalidTransition:
		return http.StatusConflict
	case status.KindInvalidInput:
		return http.StatusBadRequest
	case status.KindServiceUnavailable:
		return http.StatusServiceUnavailable
	case status.KindUnauthorized:
		return http.StatusUnauthorized
	case status.KindForbidden:
		return http.StatusForbidden
	case status.KindRateLimited:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

func badBody(e *core.RequestEvent, err error) error {
	return Fail(e, status.ErrValidation.WithMessage("invalid request body").Wrap(err))
}
