package service

import (
	"strconv"
	"strings"
	"time"

	"schedule-service/api"
	"schedule-service/internal/models"
	"schedule-service/pkg/response"
)

// ParseFilter turns list query parameters into a BookingFilter. A bare date
// in from selects the start of that day, in to the end of it.
func (s *Service) ParseFilter(q api.BookingListQuery) (models.BookingFilter, error) {
	var (
		filter models.BookingFilter
		err    error
	)

	filter.TeacherID = trimmed(&q.TeacherID)
	filter.BatchName = trimmed(&q.BatchName)
	filter.Subject = trimmed(&q.Subject)

	if m := strings.TrimSpace(q.Mode); m != "" {
		mode, err := parseMode(m)
		if err != nil {
			return models.BookingFilter{}, err
		}
		filter.Mode = &mode
	}

	if filter.From, err = s.boundary("from", q.From, false); err != nil {
		return models.BookingFilter{}, err
	}
	if filter.To, err = s.boundary("to", q.To, true); err != nil {
		return models.BookingFilter{}, err
	}

	if v := strings.TrimSpace(q.IncludeDeleted); v != "" {
		if filter.IncludeDeleted, err = strconv.ParseBool(v); err != nil {
			return models.BookingFilter{}, response.Invalid("include_deleted", "must be a boolean")
		}
	}

	if filter.Page, err = positive("page", q.Page); err != nil {
		return models.BookingFilter{}, err
	}
	if filter.Limit, err = positive("limit", q.Limit); err != nil {
		return models.BookingFilter{}, err
	}

	return filter, nil
}

func (s *Service) boundary(field, value string, endOfDay bool) (*time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil, nil
	}

	if d, err := time.ParseInLocation("2006-01-02", v, s.norm.Location()); err == nil {
		from, to := s.norm.DayBounds(d)
		if endOfDay {
			return &to, nil
		}
		return &from, nil
	}

	t, err := s.norm.ParseDateTime(v)
	if err != nil {
		return nil, response.Invalid(field, "must be a date or datetime")
	}

	return &t, nil
}

func positive(field, value string) (int, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, response.Invalid(field, "must be a positive integer")
	}

	return n, nil
}
