package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestNormalizerInstant(t *testing.T) {
	n := NewNormalizer(mustLoad(t, "Asia/Kolkata"))
	want := time.Date(2025, 10, 15, 8, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		date    string
		clock   string
		want    time.Time
		wantErr bool
	}{
		{name: "12h padded", date: "2025-10-15", clock: "02:00 PM", want: want},
		{name: "12h unpadded lower", date: "2025-10-15", clock: "2:00pm", want: want},
		{name: "24h", date: "2025-10-15", clock: "14:00", want: want},
		{name: "24h seconds", date: "2025-10-15", clock: "14:00:00", want: want},
		{name: "surrounding spaces", date: " 2025-10-15 ", clock: " 02:00 PM ", want: want},
		{name: "midnight", date: "2025-10-15", clock: "12:00 AM", want: time.Date(2025, 10, 14, 18, 30, 0, 0, time.UTC)},
		{name: "bad date", date: "15/10/2025", clock: "02:00 PM", wantErr: true},
		{name: "bad clock", date: "2025-10-15", clock: "25:00", wantErr: true},
		{name: "13 PM", date: "2025-10-15", clock: "13:00 PM", wantErr: true},
		{name: "empty clock", date: "2025-10-15", clock: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Instant(tt.date, tt.clock)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTimeFormat)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestNormalizerParseDateTime(t *testing.T) {
	n := NewNormalizer(mustLoad(t, "Asia/Kolkata"))
	want := time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "utc", value: "2025-10-15T09:00:00Z"},
		{name: "ist offset", value: "2025-10-15T14:30:00+05:30"},
		{name: "negative offset", value: "2025-10-15T05:00:00-04:00"},
		{name: "local seconds", value: "2025-10-15T14:30:00"},
		{name: "local minutes", value: "2025-10-15T14:30"},
		{name: "local space", value: "2025-10-15 14:30"},
		{name: "garbage", value: "tomorrow", wantErr: true},
		{name: "date only", value: "2025-10-15", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.ParseDateTime(tt.value)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTimeFormat)
				return
			}
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %s want %s", got, want)
		})
	}
}

func TestNormalizerIgnoresProcessTimezone(t *testing.T) {
	saved := time.Local
	defer func() { time.Local = saved }()

	n := NewNormalizer(mustLoad(t, "Asia/Kolkata"))

	time.Local = mustLoad(t, "America/New_York")
	a, err := n.Instant("2025-10-15", "09:00 AM")
	require.NoError(t, err)

	time.Local = mustLoad(t, "Asia/Tokyo")
	b, err := n.Instant("2025-10-15", "09:00 AM")
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
}

func TestNormalizerRange(t *testing.T) {
	n := NewNormalizer(mustLoad(t, "Asia/Kolkata"))

	tests := []struct {
		name      string
		in        RangeInput
		wantStart time.Time
		wantEnd   time.Time
		wantErr   bool
		wantField string
	}{
		{
			name:      "split form",
			in:        RangeInput{Date: "2025-10-15", StartTime: "02:30 PM", EndTime: "03:30 PM"},
			wantStart: time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC),
		},
		{
			name:      "cross midnight with end date",
			in:        RangeInput{Date: "2025-10-15", EndDate: "2025-10-16", StartTime: "11:00 PM", EndTime: "01:00 AM"},
			wantStart: time.Date(2025, 10, 15, 17, 30, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, 10, 15, 19, 30, 0, 0, time.UTC),
		},
		{
			name:      "combined form",
			in:        RangeInput{Start: "2025-10-15T09:00:00Z", End: "2025-10-15T10:00:00Z"},
			wantStart: time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC),
		},
		{
			name:    "cross midnight without end date",
			in:        RangeInput{Date: "2025-10-15", StartTime: "11:00 PM", EndTime: "01:00 AM"},
			wantErr:   true,
			wantField: "end_time",
		},
		{
			name:    "equal ends",
			in:        RangeInput{Start: "2025-10-15T09:00:00Z", End: "2025-10-15T14:30:00+05:30"},
			wantErr:   true,
			wantField: "end",
		},
		{
			name:    "missing end",
			in:        RangeInput{Start: "2025-10-15T09:00:00Z"},
			wantErr:   true,
			wantField: "end",
		},
		{
			name:      "bad end date",
			in:        RangeInput{Date: "2025-10-15", EndDate: "16-10-2025", StartTime: "11:00 PM", EndTime: "01:00 AM"},
			wantErr:   true,
			wantField: "end_date",
		},
		{
			name:      "bad start time",
			in:        RangeInput{Date: "2025-10-15", StartTime: "noon", EndTime: "01:00 PM"},
			wantErr:   true,
			wantField: "start_time",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Range(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTimeFormat)
				var fe *FieldError
				require.ErrorAs(t, err, &fe)
				assert.Equal(t, tt.wantField, fe.Field)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.wantStart.Equal(got.Start), "start %s", got.Start)
			assert.True(t, tt.wantEnd.Equal(got.End), "end %s", got.End)
		})
	}
}

func TestNormalizerDayBoundsAndDisplay(t *testing.T) {
	n := NewNormalizer(mustLoad(t, "Asia/Kolkata"))

	// 20:00Z on the 15th is already the 16th in Kolkata.
	from, to := n.DayBounds(time.Date(2025, 10, 15, 20, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 10, 15, 18, 30, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 10, 16, 18, 30, 0, 0, time.UTC), to)

	d := n.Display(time.Date(2025, 10, 15, 8, 30, 0, 0, time.UTC))
	assert.Equal(t, "2025-10-15T14:00:00+05:30", d.DateTime)
	assert.Equal(t, "2025-10-15", d.Date)
	assert.Equal(t, "02:00 PM", d.Clock)
	assert.Equal(t, "14:00:00", d.Clock24)
}
