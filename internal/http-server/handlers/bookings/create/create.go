package create

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

type BookingCreator interface {
	CreateBooking(ctx context.Context, req *api.BookingCreateRequest) (*api.BookingResponse, error)
}

type Request struct {
	api.BookingCreateRequest
}

type Response struct {
	response.Response
	Booking *api.BookingResponse `json:"booking,omitempty"`
}

func New(log *slog.Logger, creator BookingCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.create.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			handlers.DecodeFailed(w, r, log, err)
			return
		}

		log.Info("Request body decoded", slog.Any("request", req))

		if err := api.Validate(&req.BookingCreateRequest); err != nil {
			handlers.Fail(w, r, log, err, "invalid request")
			return
		}

		booking, err := creator.CreateBooking(r.Context(), &req.BookingCreateRequest)
		if err != nil {
			handlers.Fail(w, r, log, err, "failed to create booking")
			return
		}

		log.Info("Booking created", slog.String("id", booking.ID))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{Booking: booking})
	}
}
