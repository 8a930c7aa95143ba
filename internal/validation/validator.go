package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"checkin-system/internal/status"

	"github.com/go-playground/validator/v10"
)

var (
	attendeeIDPattern = regexp.MustCompile(`^(VIP|STAFF|GUEST)_\d{3}$`)
	seatPattern       = regexp.MustCompile(`^[A-Z]\d{1,2}$`)
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

var tagMessages = map[string]string{
	"required":    "is required",
	"attendee_id": "must follow format VIP_001, STAFF_001 or GUEST_001",
	"seat":        "must follow format A12, B5",
	"email":       "must be a valid email address",
	"http_url":    "must be a valid http or https URL",
	"oneof":       "must be one of",
	"numeric":     "must contain digits only",
}

// FieldError describes one failed constraint, keyed by the JSON field name.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})

		_ = validate.RegisterValidation("attendee_id", func(fl validator.FieldLevel) bool {
			return attendeeIDPattern.MatchString(fl.Field().String())
		})
		_ = validate.RegisterValidation("seat", func(fl validator.FieldLevel) bool {
			return seatPattern.MatchString(fl.Field().String())
		})
	})

	return validate
}

func IsAttendeeID(id string) bool {
	return attendeeIDPattern.MatchString(id)
}

// IsMediaURL reports whether raw is an absolute http or https URL.
func IsMediaURL(raw string) bool {
	if raw == "" {
		return false
	}
	return GetValidator().Var(raw, "http_url") == nil
}

// ValidateStruct returns nil or a VALIDATION_ERROR carrying per-field details.
func ValidateStruct(s any) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return status.ErrValidation.Wrap(err)
	}

	fields := make([]FieldError, 0, len(verrs))
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		f := FieldError{Field: fe.Field(), Tag: fe.Tag(), Message: messageFor(fe)}
		fields = append(fields, f)
		messages = append(messages, fmt.Sprintf("%s %s", f.Field, f.Message))
	}

	return Failed(fields, strings.Join(messages, "; "))
}

// Failed builds a VALIDATION_ERROR from field errors collected by hand.
func Failed(fields []FieldError, message string) error {
	return status.ErrValidation.
		WithMessage("%s", message).
		WithDetail("fields", fields)
}

func messageFor(fe validator.FieldError) string {
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}

	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("must be at least %s%s", fe.Param(), unit)
	case "max":
		return fmt.Sprintf("must be at most %s%s", fe.Param(), unit)
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	}
	if msg, ok := tagMessages[fe.Tag()]; ok {
		return msg
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
