package delete

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"schedule-service/internal/http-server/handlers"
	"schedule-service/pkg/response"
)

type BookingDeleter interface {
	DeleteBooking(ctx context.Context, id string) error
}

func New(log *slog.Logger, deleter BookingDeleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.delete.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")
		if id == "" {
			log.Error("id is empty")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "id is required"))
			return
		}

		if err := deleter.DeleteBooking(r.Context(), id); err != nil {
			handlers.Fail(w, r, log, err, "failed to delete booking")
			return
		}

		log.Info("Booking deleted", slog.String("id", id))
		w.WriteHeader(http.StatusNoContent)
	}
}
