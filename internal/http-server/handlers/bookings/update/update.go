package update

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"schedule-service/api"
	"schedule-service/internal/http-server/handlers"
	"schedule-service/pkg/response"
)

type BookingUpdater interface {
	UpdateBooking(ctx context.Context, id string, req *api.BookingUpdateRequest) (*api.BookingResponse, error)
}

type Response struct {
	response.Response
	Booking *api.BookingResponse `json:"booking,omitempty"`
}

func New(log *slog.Logger, updater BookingUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.update.New"

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

		var req api.BookingUpdateRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			handlers.DecodeFailed(w, r, log, err)
			return
		}

		if err := api.Validate(&req); err != nil {
			handlers.Fail(w, r, log, err, "invalid request")
			return
		}

		booking, err := updater.UpdateBooking(r.Context(), id, &req)
		if err != nil {
			handlers.Fail(w, r, log, err, "failed to update booking")
			return
		}

		log.Info("Booking updated", slog.String("id", booking.ID))
		render.JSON(w, r, Response{Booking: booking})
	}
}
