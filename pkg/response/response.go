package response

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Response struct {
	ResponseError `json:"error,omitzero"`
}

type ResponseError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Error Codes
type ErrCode string

var (
	FAILED_REQUEST       ErrCode = "REQUEST_FAILED"
	BAD_REQUEST          ErrCode = "FAILED_TO_DECODE"
	VALIDATION_FAILED    ErrCode = "VALIDATION_FAILED"
	NOT_FOUND            ErrCode = "NOT_FOUND"
	LOCKED               ErrCode = "LOCKED"
	SCHEDULE_CONFLICT    ErrCode = "SCHEDULE_CONFLICT"
	TEACHER_NOT_APPROVED ErrCode = "TEACHER_NOT_APPROVED"
)

var (
	ErrBadRequest         = errors.New("bad request")
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("resource not found")
	ErrLocked             = errors.New("resource is locked")
	ErrScheduleConflict   = errors.New("schedule conflict")
	ErrTeacherNotApproved = errors.New("teacher is not approved")
)

// FieldError names the request field that failed validation.
type FieldError struct {
	Field  string
	Reason string
	Err    error
}

func (e *FieldError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrValidation, e.Err}
	}
	return []error{ErrValidation}
}

func Invalid(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}

// ConflictError carries the first existing booking that overlaps the proposed one.
// BookingID is empty when the overlap was reported by the storage constraint.
type ConflictError struct {
	BookingID string
	Start     time.Time
	End       time.Time
}

func (e *ConflictError) Error() string {
	if e.BookingID == "" {
		return ErrScheduleConflict.Error()
	}
	return fmt.Sprintf("%s with booking %s [%s, %s)",
		ErrScheduleConflict, e.BookingID,
		e.Start.UTC().Format(time.RFC3339), e.End.UTC().Format(time.RFC3339),
	)
}

func (e *ConflictError) Unwrap() error {
	return ErrScheduleConflict
}

func Error(code, msg string) Response {
	return Response{
		ResponseError: ResponseError{
			Code:    code,
			Message: msg,
		},
	}
}

func FieldInvalid(field, reason string) Response {
	return Response{
		ResponseError: ResponseError{
			Code:    string(VALIDATION_FAILED),
			Message: fmt.Sprintf("field '%s' %s", field, reason),
			Fields:  map[string]string{field: reason},
		},
	}
}

func ValidationError(errs validator.ValidationErrors) Response {
	var errMsg []string
	fields := make(map[string]string, len(errs))

	for _, err := range errs {
		var reason string

		switch err.ActualTag() {
		case "required", "required_without", "required_with":
			reason = "is required"
		case "min":
			reason = fmt.Sprintf("must be at least %s characters long", err.Param())
		case "max":
			reason = fmt.Sprintf("must be at most %s characters long", err.Param())
		case "oneof":
			reason = fmt.Sprintf("must be one of [%s]", err.Param())
		case "uuid":
			reason = "must be a valid uuid"
		default:
			reason = "is invalid"
		}

		fields[err.Field()] = reason
		errMsg = append(errMsg, fmt.Sprintf("field '%s' %s", err.Field(), reason))
	}

	return Response{
		ResponseError: ResponseError{
			Code:    string(VALIDATION_FAILED),
			Message: strings.Join(errMsg, ", "),
			Fields:  fields,
		},
	}
}
