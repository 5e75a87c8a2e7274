package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"schedule-service/api"
	"schedule-service/internal/lock"
	"schedule-service/internal/models"
	"schedule-service/internal/schedule"
	"schedule-service/pkg/response"
	"schedule-service/pkg/sl"
)

const maxUpdateAttempts = 3

var errReassigned = errors.New("booking moved to another teacher")

type Store interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListTeacherBookings(ctx context.Context, teacherID string, from, to time.Time) ([]models.Booking, error)
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)
	UpdateBooking(ctx context.Context, booking *models.Booking) error
	SoftDeleteBooking(ctx context.Context, id string) error
}

type TeacherDirectory interface {
	GetTeacher(ctx context.Context, id string) (*models.Teacher, error)
	ListActiveTeachers(ctx context.Context) ([]models.Teacher, error)
}

type AuditRecorder interface {
	RecordAudit(ctx context.Context, entry models.AuditEntry) error
}

type Options struct {
	LockTTL         time.Duration
	LockWait        time.Duration
	DefaultPageSize int
	MaxPageSize     int
}

type Service struct {
	log      *slog.Logger
	store    Store
	teachers TeacherDirectory
	locker   lock.Locker
	audit    AuditRecorder
	norm     schedule.Normalizer
	opts     Options
	now      func() time.Time
}

func NewService(
	log *slog.Logger,
	store Store,
	teachers TeacherDirectory,
	locker lock.Locker,
	audit AuditRecorder,
	norm schedule.Normalizer,
	opts Options,
) *Service {
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = 20
	}
	if opts.MaxPageSize < opts.DefaultPageSize {
		opts.MaxPageSize = opts.DefaultPageSize
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Second
	}

	return &Service{
		log:      log,
		store:    store,
		teachers: teachers,
		locker:   locker,
		audit:    audit,
		norm:     norm,
		opts:     opts,
		now:      time.Now,
	}
}

// Bookings

func (s *Service) CreateBooking(ctx context.Context, req *api.BookingCreateRequest) (*api.BookingResponse, error) {
	const op = "service.CreateBooking"

	teacherID, err := required("teacher_id", req.TeacherID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	batchName, err := required("batch_name", req.BatchName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	subject, err := required("subject", req.Subject)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	mode := models.ModeOffline
	if strings.TrimSpace(req.Mode) != "" {
		if mode, err = parseMode(req.Mode); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := s.checkTeacher(ctx, teacherID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	iv, err := s.normalize(schedule.RangeInput{
		Date:      req.Date,
		EndDate:   req.EndDate,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Start:     req.Start,
		End:       req.End,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	booking := &models.Booking{
		ID:        uuid.NewString(),
		TeacherID: teacherID,
		BatchName: batchName,
		Subject:   subject,
		Start:     iv.Start,
		End:       iv.End,
		Mode:      mode,
		Room:      roomFor(mode, req.Room),
	}

	err = s.withTeacherLock(ctx, teacherID, func() error {
		if err := s.ensureFree(ctx, teacherID, iv, ""); err != nil {
			return err
		}

		return s.store.CreateBooking(ctx, booking)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.record(ctx, models.AuditBookingCreated, nil, booking)

	resp := s.toResponse(*booking)
	return &resp, nil
}

func (s *Service) GetBooking(ctx context.Context, id string) (*api.BookingResponse, error) {
	const op = "service.GetBooking"

	booking, err := s.activeBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp := s.toResponse(*booking)
	return &resp, nil
}

// UpdateBooking applies the changed fields under the lock of the booking's
// teacher, and of the new teacher on reassignment, re-reading the booking
// once the lock is held so concurrent updates never write a stale copy.
func (s *Service) UpdateBooking(ctx context.Context, id string, req *api.BookingUpdateRequest) (*api.BookingResponse, error) {
	const op = "service.UpdateBooking"

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		snapshot, err := s.activeBooking(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		keys := []string{snapshot.TeacherID}
		if req.TeacherID != nil {
			if next := strings.TrimSpace(*req.TeacherID); next != "" && next != snapshot.TeacherID {
				keys = append(keys, next)
			}
		}

		var current, updated *models.Booking

		err = s.withTeacherLocks(ctx, keys, func() error {
			if current, err = s.activeBooking(ctx, id); err != nil {
				return err
			}
			if current.TeacherID != snapshot.TeacherID {
				return errReassigned
			}

			if updated, err = s.applyUpdate(ctx, current, req); err != nil {
				return err
			}

			return s.store.UpdateBooking(ctx, updated)
		})
		if errors.Is(err, errReassigned) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		s.record(ctx, models.AuditBookingUpdated, current, updated)

		resp := s.toResponse(*updated)
		return &resp, nil
	}

	return nil, fmt.Errorf("%s: booking %s keeps changing teacher: %w", op, id, response.ErrLocked)
}

// applyUpdate builds the new state of current from req and, when the teacher
// or the time range changes, checks it against the teacher's other bookings.
// The caller must hold the teacher locks.
func (s *Service) applyUpdate(ctx context.Context, current *models.Booking, req *api.BookingUpdateRequest) (*models.Booking, error) {
	var err error

	updated := *current

	if req.BatchName != nil {
		if updated.BatchName, err = required("batch_name", *req.BatchName); err != nil {
			return nil, err
		}
	}
	if req.Subject != nil {
		if updated.Subject, err = required("subject", *req.Subject); err != nil {
			return nil, err
		}
	}
	if req.Mode != nil {
		if updated.Mode, err = parseMode(*req.Mode); err != nil {
			return nil, err
		}
	}
	if req.Room != nil {
		updated.Room = req.Room
	}
	updated.Room = roomFor(updated.Mode, updated.Room)

	teacherChanged := false
	if req.TeacherID != nil {
		if updated.TeacherID, err = required("teacher_id", *req.TeacherID); err != nil {
			return nil, err
		}
		teacherChanged = updated.TeacherID != current.TeacherID
	}

	if teacherChanged {
		if err := s.checkTeacher(ctx, updated.TeacherID); err != nil {
			return nil, err
		}
	}

	timeChanged := req.ChangesTime()
	if timeChanged {
		iv, err := s.rangeForUpdate(current, req)
		if err != nil {
			return nil, err
		}
		updated.Start, updated.End = iv.Start, iv.End
	}

	if teacherChanged || timeChanged {
		if err := s.ensureFree(ctx, updated.TeacherID, schedule.BookingInterval(updated), updated.ID); err != nil {
			return nil, err
		}
	}

	return &updated, nil
}

func (s *Service) DeleteBooking(ctx context.Context, id string) error {
	const op = "service.DeleteBooking"

	current, err := s.activeBooking(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.store.SoftDeleteBooking(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	deleted := *current
	deleted.IsDeleted = true

	s.record(ctx, models.AuditBookingDeleted, current, &deleted)

	return nil
}

func (s *Service) ListBookings(ctx context.Context, filter models.BookingFilter) (*api.BookingListResponse, error) {
	const op = "service.ListBookings"

	filter.TeacherID = trimmed(filter.TeacherID)
	filter.BatchName = trimmed(filter.BatchName)
	filter.Subject = trimmed(filter.Subject)

	if filter.Mode != nil && !filter.Mode.Valid() {
		return nil, fmt.Errorf("%s: %w", op, response.Invalid("mode", "must be one of [online offline]"))
	}
	if filter.TeacherID != nil && uuid.Validate(*filter.TeacherID) != nil {
		return nil, fmt.Errorf("%s: %w", op, response.Invalid("teacher_id", "must be a valid uuid"))
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, fmt.Errorf("%s: %w", op, response.Invalid("to", "must be after from"))
	}

	filter.Page, filter.Limit = s.paging(filter.Page, filter.Limit)

	bookings, total, err := s.store.ListBookings(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	items := make([]api.BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, s.toResponse(b))
	}

	return &api.BookingListResponse{
		Items:      items,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages(total, filter.Limit),
	}, nil
}

// TodaysBookings lists bookings starting on the current business-timezone day.
func (s *Service) TodaysBookings(ctx context.Context, page, limit int) (*api.BookingListResponse, error) {
	const op = "service.TodaysBookings"

	from, to := s.norm.DayBounds(s.now())

	resp, err := s.ListBookings(ctx, models.BookingFilter{
		From:  &from,
		To:    &to,
		Page:  page,
		Limit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return resp, nil
}

func (s *Service) TeacherBookings(ctx context.Context, teacherID string, filter models.BookingFilter) (*api.BookingListResponse, error) {
	const op = "service.TeacherBookings"

	if uuid.Validate(teacherID) != nil {
		return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	if _, err := s.teachers.GetTeacher(ctx, teacherID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	filter.TeacherID = &teacherID

	resp, err := s.ListBookings(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return resp, nil
}

// Teachers

func (s *Service) ListTeachers(ctx context.Context) ([]api.TeacherResponse, error) {
	const op = "service.ListTeachers"

	teachers, err := s.teachers.ListActiveTeachers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]api.TeacherResponse, 0, len(teachers))
	for _, t := range teachers {
		result = append(result, api.TeacherResponse{
			ID:    t.ID,
			Name:  t.Name,
			Email: t.Email,
		})
	}

	return result, nil
}

// helpers

func (s *Service) activeBooking(ctx context.Context, id string) (*models.Booking, error) {
	if uuid.Validate(id) != nil {
		return nil, response.ErrNotFound
	}

	booking, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.IsDeleted {
		return nil, response.ErrNotFound
	}

	return booking, nil
}

func (s *Service) checkTeacher(ctx context.Context, teacherID string) error {
	if uuid.Validate(teacherID) != nil {
		return response.Invalid("teacher_id", "must be a valid uuid")
	}

	teacher, err := s.teachers.GetTeacher(ctx, teacherID)
	if err != nil {
		return fmt.Errorf("teacher %s: %w", teacherID, err)
	}
	if !teacher.CanTakeBookings() {
		return fmt.Errorf("teacher %s: %w", teacherID, response.ErrTeacherNotApproved)
	}

	return nil
}

func (s *Service) normalize(in schedule.RangeInput) (schedule.Interval, error) {
	iv, err := s.norm.Range(in)
	if err != nil {
		var fe *schedule.FieldError
		if errors.As(err, &fe) {
			return schedule.Interval{}, &response.FieldError{Field: fe.Field, Reason: fe.Reason, Err: schedule.ErrInvalidTimeFormat}
		}
		return schedule.Interval{}, &response.FieldError{Field: "start", Reason: err.Error(), Err: schedule.ErrInvalidTimeFormat}
	}

	return iv, nil
}

// rangeForUpdate fills the parts of the time range missing from req with the
// current values, expressed in the business timezone.
func (s *Service) rangeForUpdate(current *models.Booking, req *api.BookingUpdateRequest) (schedule.Interval, error) {
	combined := req.Start != nil || req.End != nil
	split := req.Date != nil || req.EndDate != nil || req.StartTime != nil || req.EndTime != nil

	if combined && split {
		return schedule.Interval{}, response.Invalid("start", "cannot be combined with date, start_time or end_time")
	}

	if combined {
		in := schedule.RangeInput{
			Start: current.Start.Format(time.RFC3339Nano),
			End:   current.End.Format(time.RFC3339Nano),
		}
		if req.Start != nil {
			in.Start = *req.Start
		}
		if req.End != nil {
			in.End = *req.End
		}
		return s.normalize(in)
	}

	start := s.norm.Display(current.Start)
	end := s.norm.Display(current.End)

	in := schedule.RangeInput{
		Date:      start.Date,
		EndDate:   end.Date,
		StartTime: start.Clock24,
		EndTime:   end.Clock24,
	}
	if req.Date != nil {
		in.Date = *req.Date
		in.EndDate = shiftDate(start.Date, end.Date, *req.Date)
	}
	if req.EndDate != nil {
		in.EndDate = *req.EndDate
	}
	if req.StartTime != nil {
		in.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		in.EndTime = *req.EndTime
	}

	return s.normalize(in)
}

// shiftDate moves the end date by as many days as the start date moves, so a
// session that crosses midnight keeps its length. Unparseable input yields ""
// and is reported by the normalizer.
func shiftDate(startDate, endDate, newStartDate string) string {
	const layout = "2006-01-02"

	from, err := time.Parse(layout, startDate)
	if err != nil {
		return ""
	}
	to, err := time.Parse(layout, endDate)
	if err != nil {
		return ""
	}
	moved, err := time.Parse(layout, strings.TrimSpace(newStartDate))
	if err != nil {
		return ""
	}

	days := int(to.Sub(from).Hours() / 24)

	return moved.AddDate(0, 0, days).Format(layout)
}

// ensureFree runs the overlap check against the teacher's active bookings.
// Candidates are prefiltered by business-timezone days; the predicate itself
// does not rely on the prefilter.
func (s *Service) ensureFree(ctx context.Context, teacherID string, iv schedule.Interval, excludeID string) error {
	from, _ := s.norm.DayBounds(iv.Start)
	_, to := s.norm.DayBounds(iv.End)

	existing, err := s.store.ListTeacherBookings(ctx, teacherID, from, to)
	if err != nil {
		return err
	}

	if conflict := schedule.FindConflict(iv, existing, excludeID); conflict != nil {
		return &response.ConflictError{
			BookingID: conflict.ID,
			Start:     conflict.Start,
			End:       conflict.End,
		}
	}

	return nil
}

// withTeacherLock serializes conflict check and write per teacher.
func (s *Service) withTeacherLock(ctx context.Context, teacherID string, fn func() error) error {
	return s.withTeacherLocks(ctx, []string{teacherID}, fn)
}

// withTeacherLocks takes the locks of all teachers in a fixed order and runs fn
// while holding them.
func (s *Service) withTeacherLocks(ctx context.Context, teacherIDs []string, fn func() error) error {
	keys := make([]string, 0, len(teacherIDs))
	for _, id := range teacherIDs {
		keys = append(keys, "teacher:"+id)
	}
	slices.Sort(keys)
	keys = slices.Compact(keys)

	for _, key := range keys {
		key := key
		release, err := lock.Acquire(ctx, s.locker, key, s.opts.LockTTL, s.opts.LockWait)
		if err != nil {
			return err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.log.Warn("failed to release teacher lock", slog.String("key", key), sl.Err(err))
			}
		}()
	}

	return fn()
}

// record writes an audit entry. Failures are logged and never fail the request.
func (s *Service) record(ctx context.Context, action models.AuditAction, before, after *models.Booking) {
	if s.audit == nil {
		return
	}

	actor := ActorFrom(ctx)

	target := after
	if target == nil {
		target = before
	}

	entry := models.AuditEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		TargetType: "booking",
		TargetID:   target.ID,
		Before:     before,
		After:      after,
	}

	if err := s.audit.RecordAudit(context.WithoutCancel(ctx), entry); err != nil {
		s.log.Error("failed to save audit log",
			slog.String("action", string(action)),
			slog.String("booking_id", target.ID),
			sl.Err(err),
		)
	}
}

func (s *Service) paging(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.opts.DefaultPageSize
	}
	if limit > s.opts.MaxPageSize {
		limit = s.opts.MaxPageSize
	}

	return page, limit
}

func totalPages(total, limit int) int {
	if total == 0 {
		return 0
	}

	return (total + limit - 1) / limit
}

func (s *Service) toResponse(b models.Booking) api.BookingResponse {
	start := s.norm.Display(b.Start)
	end := s.norm.Display(b.End)

	return api.BookingResponse{
		ID:         b.ID,
		TeacherID:  b.TeacherID,
		BatchName:  b.BatchName,
		Subject:    b.Subject,
		Start:      b.Start.UTC(),
		End:        b.End.UTC(),
		StartLocal: start.DateTime,
		EndLocal:   end.DateTime,
		Date:       start.Date,
		StartTime:  start.Clock,
		EndTime:    end.Clock,
		Mode:       string(b.Mode),
		Room:       b.Room,
		IsDeleted:  b.IsDeleted,
		CreatedAt:  b.CreatedAt.UTC(),
		UpdatedAt:  b.UpdatedAt.UTC(),
	}
}

func required(field, value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", response.Invalid(field, "is required")
	}

	return v, nil
}

func parseMode(value string) (models.BookingMode, error) {
	mode := models.BookingMode(strings.ToLower(strings.TrimSpace(value)))
	if !mode.Valid() {
		return "", response.Invalid("mode", "must be one of [online offline]")
	}

	return mode, nil
}

// roomFor drops the room of online sessions and blank rooms.
func roomFor(mode models.BookingMode, room *string) *string {
	if mode == models.ModeOnline || room == nil {
		return nil
	}

	r := strings.TrimSpace(*room)
	if r == "" {
		return nil
	}

	return &r
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}

	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}

	return &t
}
