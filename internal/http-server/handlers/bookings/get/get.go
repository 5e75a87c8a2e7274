package get

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

type BookingGetter interface {
	GetBooking(ctx context.Context, id string) (*api.BookingResponse, error)
	ParseFilter(q api.BookingListQuery) (models.BookingFilter, error)
	ListBookings(ctx context.Context, filter models.BookingFilter) (*api.BookingListResponse, error)
}

type Response struct {
	response.Response
	Booking *api.BookingResponse `json:"booking,omitempty"`
}

type ListResponse struct {
	response.Response
	*api.BookingListResponse
}

// New serves GET /bookings/{id} and, without an id, the filtered listing.
func New(log *slog.Logger, getter BookingGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.get.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if id := chi.URLParam(r, "id"); id != "" {
			booking, err := getter.GetBooking(r.Context(), id)
			if err != nil {
				handlers.Fail(w, r, log, err, "failed to get booking")
				return
			}

			log.Info("Booking retrieved", slog.String("id", booking.ID))
			render.JSON(w, r, Response{Booking: booking})
			return
		}

		filter, err := getter.ParseFilter(handlers.ListQuery(r))
		if err != nil {
			handlers.Fail(w, r, log, err, "invalid query")
			return
		}

		list, err := getter.ListBookings(r.Context(), filter)
		if err != nil {
			handlers.Fail(w, r, log, err, "failed to list bookings")
			return
		}

		log.Info("Bookings retrieved", slog.Int("count", len(list.Items)), slog.Int("total", list.Total))
		render.JSON(w, r, ListResponse{BookingListResponse: list})
	}
}
