package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"schedule-service/internal/models"
	"schedule-service/internal/schedule"
	"schedule-service/pkg/response"
)

const (
	teacherT  = "6f1c1d7e-2f3a-4b5c-8d9e-0a1b2c3d4e5f"
	teacherT2 = "7a2d2e8f-3a4b-4c6d-9e0f-1b2c3d4e5f60"
	teacherU  = "8b3e3f90-4b5c-4d7e-8f10-2c3d4e5f6071"
	teacherX  = "9c4f4001-5c6d-4e8f-9021-3d4e5f607182"
)

// memStore mimics the Postgres store. With guard set it enforces the
// per-teacher exclusion constraint like bookings_no_overlap.
type memStore struct {
	mu       sync.Mutex
	bookings map[string]models.Booking
	guard    bool
	onList   func()
	now      time.Time
}

func newMemStore() *memStore {
	return &memStore{
		bookings: map[string]models.Booking{},
		guard:    true,
		now:      time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) violates(b models.Booking) bool {
	if !m.guard {
		return false
	}
	iv := schedule.BookingInterval(b)
	for _, other := range m.bookings {
		if other.ID == b.ID || other.IsDeleted || other.TeacherID != b.TeacherID {
			continue
		}
		if iv.Overlaps(schedule.BookingInterval(other)) {
			return true
		}
	}
	return false
}

func (m *memStore) CreateBooking(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.violates(*b) {
		return &response.ConflictError{}
	}
	b.CreatedAt, b.UpdatedAt = m.now, m.now
	m.bookings[b.ID] = *b
	return nil
}

func (m *memStore) GetBooking(_ context.Context, id string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, response.ErrNotFound
	}
	return &b, nil
}

func (m *memStore) ListTeacherBookings(_ context.Context, teacherID string, from, to time.Time) ([]models.Booking, error) {
	if m.onList != nil {
		m.onList()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Booking
	for _, b := range m.bookings {
		if b.TeacherID == teacherID && !b.IsDeleted && b.Start.Before(to) && b.End.After(from) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) ListBookings(_ context.Context, f models.BookingFilter) ([]models.Booking, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	contains := func(s string, sub *string) bool {
		return sub == nil || strings.Contains(strings.ToLower(s), strings.ToLower(*sub))
	}

	var matched []models.Booking
	for _, b := range m.bookings {
		switch {
		case b.IsDeleted && !f.IncludeDeleted,
			f.TeacherID != nil && b.TeacherID != *f.TeacherID,
			f.Mode != nil && b.Mode != *f.Mode,
			!contains(b.BatchName, f.BatchName),
			!contains(b.Subject, f.Subject),
			f.From != nil && b.Start.Before(*f.From),
			f.To != nil && !b.Start.Before(*f.To):
			continue
		}
		matched = append(matched, b)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Start.Equal(matched[j].Start) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].Start.Before(matched[j].Start)
	})

	total := len(matched)
	lo := (f.Page - 1) * f.Limit
	if lo > total {
		lo = total
	}
	hi := lo + f.Limit
	if hi > total {
		hi = total
	}
	return matched[lo:hi], total, nil
}

func (m *memStore) UpdateBooking(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.bookings[b.ID]
	if !ok || cur.IsDeleted {
		return response.ErrNotFound
	}
	if m.violates(*b) {
		return &response.ConflictError{}
	}
	b.UpdatedAt = m.now.Add(time.Hour)
	m.bookings[b.ID] = *b
	return nil
}

func (m *memStore) SoftDeleteBooking(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok || b.IsDeleted {
		return response.ErrNotFound
	}
	b.IsDeleted = true
	m.bookings[id] = b
	return nil
}

func (m *memStore) active() []models.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Booking
	for _, b := range m.bookings {
		if !b.IsDeleted {
			out = append(out, b)
		}
	}
	return out
}

type memDirectory struct {
	teachers map[string]models.Teacher
}

func newMemDirectory() *memDirectory {
	return &memDirectory{teachers: map[string]models.Teacher{
		teacherT:  {ID: teacherT, Name: "Asha", Email: "asha@example.test", IsApproved: true, IsActive: true},
		teacherT2: {ID: teacherT2, Name: "Bilal", Email: "bilal@example.test", IsApproved: true, IsActive: true},
		teacherU:  {ID: teacherU, Name: "Chen", Email: "chen@example.test", IsApproved: false, IsActive: true},
		teacherX:  {ID: teacherX, Name: "Dana", Email: "dana@example.test", IsApproved: true, IsActive: false},
	}}
}

func (d *memDirectory) GetTeacher(_ context.Context, id string) (*models.Teacher, error) {
	t, ok := d.teachers[id]
	if !ok {
		return nil, response.ErrNotFound
	}
	return &t, nil
}

func (d *memDirectory) ListActiveTeachers(_ context.Context) ([]models.Teacher, error) {
	var out []models.Teacher
	for _, t := range d.teachers {
		if t.CanTakeBookings() {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// memLocker is a non-blocking per-key mutex, like SETNX.
type memLocker struct {
	mu      sync.Mutex
	held    map[string]string
	seq     int
	denyAll bool
}

func newMemLocker() *memLocker {
	return &memLocker{held: map[string]string{}}
}

func (l *memLocker) Lock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.denyAll {
		return "", false, nil
	}
	if _, ok := l.held[key]; ok {
		return "", false, nil
	}
	l.seq++
	token := strconv.Itoa(l.seq)
	l.held[key] = token
	return token, true, nil
}

func (l *memLocker) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

// openLocker grants every request, leaving only the store guard.
type openLocker struct{}

func (openLocker) Lock(context.Context, string, time.Duration) (string, bool, error) {
	return "t", true, nil
}

func (openLocker) Unlock(context.Context, string, string) error { return nil }

type memAudit struct {
	mu      sync.Mutex
	entries []models.AuditEntry
	err     error
}

func (a *memAudit) RecordAudit(_ context.Context, e models.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, e)
	return nil
}

var errAuditDown = errors.New("audit table unavailable")

type fixture struct {
	svc   *Service
	store *memStore
	dir   *memDirectory
	lock  *memLocker
	audit *memAudit
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	f := &fixture{
		store: newMemStore(),
		dir:   newMemDirectory(),
		lock:  newMemLocker(),
		audit: &memAudit{},
	}

	f.svc = NewService(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		f.store,
		f.dir,
		f.lock,
		f.audit,
		schedule.NewNormalizer(loc),
		Options{
			LockTTL:         5 * time.Second,
			LockWait:        2 * time.Second,
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
	)

	return f
}

// staleReadStore runs afterRead once, right after a booking has been read and
// before the caller sees it, so the caller holds an outdated copy.
type staleReadStore struct {
	*memStore
	afterRead func()
}

func (s *staleReadStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	b, err := s.memStore.GetBooking(ctx, id)

	if hook := s.afterRead; hook != nil {
		s.afterRead = nil
		hook()
	}

	return b, err
}
