package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"schedule-service/api"
	"schedule-service/internal/http-server/handlers"
	"schedule-service/pkg/response"
)

type TeacherLister interface {
	ListTeachers(ctx context.Context) ([]api.TeacherResponse, error)
}

type Response struct {
	response.Response
	Teachers []api.TeacherResponse `json:"teachers"`
}

// New lists the teachers that can currently take bookings.
func New(log *slog.Logger, lister TeacherLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.teachers.list.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		teachers, err := lister.ListTeachers(r.Context())
		if err != nil {
			handlers.Fail(w, r, log, err, "failed to list teachers")
			return
		}

		log.Info("Teachers retrieved", slog.Int("count", len(teachers)))
		render.JSON(w, r, Response{Teachers: teachers})
	}
}
