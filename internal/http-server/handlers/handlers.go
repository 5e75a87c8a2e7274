// Package handlers holds what the per-endpoint handler packages share:
// mapping service errors onto HTTP statuses and reading list queries.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"schedule-service/api"
	"schedule-service/pkg/response"
	"schedule-service/pkg/sl"
)

type ConflictResponse struct {
	response.Response
	Conflict *api.ConflictResponse `json:"conflict,omitempty"`
}

// Fail writes the error response matching err. failMsg is used for
// unexpected errors only.
func Fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error, failMsg string) {
	var (
		validationErrs validator.ValidationErrors
		fieldErr       *response.FieldError
		conflictErr    *response.ConflictError
	)

	switch {
	case errors.As(err, &validationErrs):
		log.Error("invalid request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(validationErrs))

	case errors.As(err, &fieldErr):
		log.Error("invalid request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.FieldInvalid(fieldErr.Field, fieldErr.Reason))

	case errors.As(err, &conflictErr):
		log.Error("schedule conflict", sl.Err(err))
		resp := ConflictResponse{
			Response: response.Error(string(response.SCHEDULE_CONFLICT), "teacher already has a session in this time range"),
		}
		if conflictErr.BookingID != "" {
			resp.Conflict = &api.ConflictResponse{
				BookingID: conflictErr.BookingID,
				Start:     conflictErr.Start.UTC(),
				End:       conflictErr.End.UTC(),
			}
		}
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, resp)

	case errors.Is(err, response.ErrLocked):
		log.Error("resource is locked", sl.Err(err))
		render.Status(r, http.StatusLocked)
		render.JSON(w, r, response.Error(string(response.LOCKED), "resource is locked, retry later"))

	case errors.Is(err, response.ErrTeacherNotApproved):
		log.Error("teacher is not approved", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error(string(response.TEACHER_NOT_APPROVED), "teacher is not approved or inactive"))

	case errors.Is(err, response.ErrNotFound):
		log.Error("resource not found", sl.Err(err))
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error(string(response.NOT_FOUND), "resource not found"))

	default:
		log.Error(failMsg, sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), failMsg))
	}
}

// DecodeFailed answers a body that is not valid JSON.
func DecodeFailed(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	log.Error("Failed to decode request body", sl.Err(err))
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
}

func ListQuery(r *http.Request) api.BookingListQuery {
	q := r.URL.Query()

	return api.BookingListQuery{
		TeacherID:      q.Get("teacher_id"),
		BatchName:      q.Get("batch_name"),
		Subject:        q.Get("subject"),
		Mode:           q.Get("mode"),
		From:           q.Get("from"),
		To:             q.Get("to"),
		IncludeDeleted: q.Get("include_deleted"),
		Page:           q.Get("page"),
		Limit:          q.Get("limit"),
	}
}
