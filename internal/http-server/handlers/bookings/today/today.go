package today

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"schedule-service/api"
	"schedule-service/internal/http-server/handlers"
	"schedule-service/internal/models"
	"schedule-service/pkg/response"
)

type TodayLister interface {
	ParseFilter(q api.BookingListQuery) (models.BookingFilter, error)
	TodaysBookings(ctx context.Context, page, limit int) (*api.BookingListResponse, error)
}

type Response struct {
	response.Response
	*api.BookingListResponse
}

func New(log *slog.Logger, lister TodayLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.today.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		q := r.URL.Query()

		paging, err := lister.ParseFilter(api.BookingListQuery{
			Page:  q.Get("page"),
			Limit: q.Get("limit"),
		})
		if err != nil {
			handlers.Fail(w, r, log, err, "invalid query")
			return
		}

		list, err := lister.TodaysBookings(r.Context(), paging.Page, paging.Limit)
		if err != nil {
			handlers.Fail(w, r, log, err, "failed to list today's bookings")
			return
		}

		log.Info("Today's bookings retrieved", slog.Int("count", len(list.Items)))
		render.JSON(w, r, Response{BookingListResponse: list})
	}
}
