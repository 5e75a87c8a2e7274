package bookings

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"schedule-service/api"
	"schedule-service/internal/http-server/handlers"
	"schedule-service/internal/models"
	"schedule-service/pkg/response"
)

type TeacherBookingsGetter interface {
	ParseFilter(q api.BookingListQuery) (models.BookingFilter, error)
	TeacherBookings(ctx context.Context, teacherID string, filter models.BookingFilter) (*api.BookingListResponse, error)
}

type Response struct {
	response.Response
	*api.BookingListResponse
}

func New(log *slog.Logger, getter TeacherBookingsGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.teachers.bookings.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		teacherID := chi.URLParam(r, "id")

		q := handlers.ListQuery(r)
		q.TeacherID = ""

		filter, err := getter.ParseFilter(q)
		if err != nil {
			handlers.Fail(w, r, log, err, "invalid query")
			return
		}

		list, err := getter.TeacherBookings(r.Context(), teacherID, filter)
		if err != nil {
			handlers.Fail(w, r, log, err, "failed to list teacher bookings")
			return
		}

		log.Info("Teacher bookings retrieved",
			slog.String("teacher_id", teacherID),
			slog.Int("count", len(list.Items)),
		)
		render.JSON(w, r, Response{BookingListResponse: list})
	}
}
