package schedule

import (
	"fmt"
	"time"

	"schedule-service/internal/models"
)

// Interval is a half-open span [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func NewInterval(start, end time.Time) (Interval, error) {
	if !start.Before(end) {
		return Interval{}, fmt.Errorf("%w: end %s is not after start %s",
			ErrInvalidTimeFormat, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	return Interval{Start: start.UTC(), End: end.UTC()}, nil
}

func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

func BookingInterval(b models.Booking) Interval {
	return Interval{Start: b.Start, End: b.End}
}

// FindConflict returns the earliest active booking overlapping proposed, skipping
// excludeID, or nil. Candidates are not assumed to be prefiltered or sorted.
func FindConflict(proposed Interval, existing []models.Booking, excludeID string) *models.Booking {
	var first *models.Booking

	for i := range existing {
		b := &existing[i]
		if b.IsDeleted || (excludeID != "" && b.ID == excludeID) {
			continue
		}
		if !proposed.Overlaps(BookingInterval(*b)) {
			continue
		}
		if first == nil || b.Start.Before(first.Start) {
			first = b
		}
	}

	return first
}
