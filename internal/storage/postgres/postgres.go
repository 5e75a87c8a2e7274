package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"schedule-service/internal/models"
	"schedule-service/pkg/response"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	codeExclusionViolation  = "23P01"
	codeForeignKeyViolation = "23503"

	overlapConstraint = "bookings_no_overlap"
)

const bookingColumns = `id, teacher_id, batch_name, subject, start_at, end_at, mode, room, is_deleted, created_at, updated_at`

type Storage struct {
	db *sqlx.DB
}

func New(storagePath string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sqlx.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

// Migrate applies the embedded goose migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	const op = "storage.postgres.Migrate"

	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := goose.UpContext(ctx, s.db.DB, "migrations"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

// #### teachers ####

func (s *Storage) GetTeacher(ctx context.Context, id string) (*models.Teacher, error) {
	const op = "storage.postgres.GetTeacher"

	var teacher models.Teacher

	err := s.db.GetContext(ctx, &teacher,
		`SELECT id, name, email, is_approved, is_active FROM teachers WHERE id=$1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &teacher, nil
}

func (s *Storage) ListActiveTeachers(ctx context.Context) ([]models.Teacher, error) {
	const op = "storage.postgres.ListActiveTeachers"

	var teachers []models.Teacher

	err := s.db.SelectContext(ctx, &teachers,
		`SELECT id, name, email, is_approved, is_active
		FROM teachers
		WHERE is_approved=TRUE AND is_active=TRUE
		ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return teachers, nil
}

// #### bookings ####

func (s *Storage) CreateBooking(ctx context.Context, b *models.Booking) error {
	const op = "storage.postgres.CreateBooking"

	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO bookings
		(id, teacher_id, batch_name, subject, start_at, end_at, mode, room, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE)
		RETURNING created_at, updated_at`,
		b.ID,
		b.TeacherID,
		b.BatchName,
		b.Subject,
		b.Start,
		b.End,
		string(b.Mode),
		b.Room,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, translate(err))
	}

	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()

	return nil
}

// GetBooking returns the booking whether or not it is soft-deleted.
func (s *Storage) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	const op = "storage.postgres.GetBooking"

	var b models.Booking

	err := s.db.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	toUTC(&b)

	return &b, nil
}

// ListTeacherBookings returns the teacher's active bookings touching [from, to).
func (s *Storage) ListTeacherBookings(ctx context.Context, teacherID string, from, to time.Time) ([]models.Booking, error) {
	const op = "storage.postgres.ListTeacherBookings"

	var bookings []models.Booking

	err := s.db.SelectContext(ctx, &bookings,
		`SELECT `+bookingColumns+`
		FROM bookings
		WHERE teacher_id=$1
		AND is_deleted=FALSE
		AND start_at < $3
		AND end_at > $2
		ORDER BY start_at`,
		teacherID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for i := range bookings {
		toUTC(&bookings[i])
	}

	return bookings, nil
}

func (s *Storage) ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	const op = "storage.postgres.ListBookings"

	where, args := buildBookingFilter(filter)

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT count(*) FROM bookings`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	bookings := make([]models.Booking, 0, filter.Limit)
	if total == 0 {
		return bookings, 0, nil
	}

	offset := (filter.Page - 1) * filter.Limit
	query := fmt.Sprintf(`SELECT %s FROM bookings%s ORDER BY start_at, id LIMIT $%d OFFSET $%d`,
		bookingColumns, where, len(args)+1, len(args)+2)

	if err := s.db.SelectContext(ctx, &bookings, query, append(args, filter.Limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	for i := range bookings {
		toUTC(&bookings[i])
	}

	return bookings, total, nil
}

func (s *Storage) UpdateBooking(ctx context.Context, b *models.Booking) error {
	const op = "storage.postgres.UpdateBooking"

	err := s.db.QueryRowxContext(ctx,
		`UPDATE bookings
		SET teacher_id=$2, batch_name=$3, subject=$4, start_at=$5, end_at=$6, mode=$7, room=$8, updated_at=now()
		WHERE id=$1 AND is_deleted=FALSE
		RETURNING updated_at`,
		b.ID,
		b.TeacherID,
		b.BatchName,
		b.Subject,
		b.Start,
		b.End,
		string(b.Mode),
		b.Room,
	).Scan(&b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, translate(err))
	}

	b.UpdatedAt = b.UpdatedAt.UTC()

	return nil
}

func (s *Storage) SoftDeleteBooking(ctx context.Context, id string) error {
	const op = "storage.postgres.SoftDeleteBooking"

	res, err := s.db.ExecContext(ctx,
		`UPDATE bookings SET is_deleted=TRUE, updated_at=now() WHERE id=$1 AND is_deleted=FALSE`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

// #### audit ####

func (s *Storage) RecordAudit(ctx context.Context, entry models.AuditEntry) error {
	const op = "storage.postgres.RecordAudit"

	before, err := snapshot(entry.Before)
	if err != nil {
		return fmt.Errorf("%s: before: %w", op, err)
	}

	after, err := snapshot(entry.After)
	if err != nil {
		return fmt.Errorf("%s: after: %w", op, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_log
		(actor_id, actor_role, action, target_type, target_id, before, after)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ActorID,
		entry.ActorRole,
		string(entry.Action),
		entry.TargetType,
		entry.TargetID,
		before,
		after,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// snapshot is passed as text so the driver does not send it as bytea.
func snapshot(b *models.Booking) (sql.NullString, error) {
	if b == nil {
		return sql.NullString{}, nil
	}

	raw, err := json.Marshal(map[string]any{
		"id":         b.ID,
		"teacher_id": b.TeacherID,
		"batch_name": b.BatchName,
		"subject":    b.Subject,
		"start":      b.Start.UTC(),
		"end":        b.End.UTC(),
		"mode":       b.Mode,
		"room":       b.Room,
		"is_deleted": b.IsDeleted,
	})
	if err != nil {
		return sql.NullString{}, err
	}

	return sql.NullString{String: string(raw), Valid: true}, nil
}

// buildBookingFilter renders the WHERE clause shared by the count and page queries.
func buildBookingFilter(f models.BookingFilter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if !f.IncludeDeleted {
		conds = append(conds, "is_deleted=FALSE")
	}
	if f.TeacherID != nil {
		add("teacher_id=$%d", *f.TeacherID)
	}
	if f.BatchName != nil {
		add(`batch_name ILIKE '%%' || $%d || '%%' ESCAPE '\'`, escapeLike(*f.BatchName))
	}
	if f.Subject != nil {
		add(`subject ILIKE '%%' || $%d || '%%' ESCAPE '\'`, escapeLike(*f.Subject))
	}
	if f.Mode != nil {
		add("mode=$%d", string(*f.Mode))
	}
	if f.From != nil {
		add("start_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("start_at < $%d", *f.To)
	}

	if len(conds) == 0 {
		return "", args
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// translate maps constraint violations onto the service error taxonomy.
func translate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code {
	case codeExclusionViolation:
		if pqErr.Constraint == "" || pqErr.Constraint == overlapConstraint {
			return &response.ConflictError{}
		}
	case codeForeignKeyViolation:
		return fmt.Errorf("%s: %w", pqErr.Constraint, response.ErrNotFound)
	}

	return err
}

func toUTC(b *models.Booking) {
	b.Start = b.Start.UTC()
	b.End = b.End.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
}
