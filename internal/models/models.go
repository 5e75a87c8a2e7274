package models

import "time"

type BookingMode string

const (
	ModeOnline  BookingMode = "online"
	ModeOffline BookingMode = "offline"
)

func (m BookingMode) Valid() bool {
	return m == ModeOnline || m == ModeOffline
}

type Booking struct {
	ID        string      `db:"id"`
	TeacherID string      `db:"teacher_id"`
	BatchName string      `db:"batch_name"`
	Subject   string      `db:"subject"`
	Start     time.Time   `db:"start_at"`
	End       time.Time   `db:"end_at"`
	Mode      BookingMode `db:"mode"`
	Room      *string     `db:"room"`
	IsDeleted bool        `db:"is_deleted"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

type Teacher struct {
	ID         string `db:"id"`
	Name       string `db:"name"`
	Email      string `db:"email"`
	IsApproved bool   `db:"is_approved"`
	IsActive   bool   `db:"is_active"`
}

// CanTakeBookings reports whether new sessions may be scheduled for the teacher.
func (t Teacher) CanTakeBookings() bool {
	return t.IsApproved && t.IsActive
}

type BookingFilter struct {
	TeacherID      *string
	BatchName      *string
	Subject        *string
	Mode           *BookingMode
	From           *time.Time
	To             *time.Time
	IncludeDeleted bool
	Page           int
	Limit          int
}

type AuditAction string

const (
	AuditBookingCreated AuditAction = "booking.create"
	AuditBookingUpdated AuditAction = "booking.update"
	AuditBookingDeleted AuditAction = "booking.delete"
)

type Actor struct {
	ID   string
	Role string
}

type AuditEntry struct {
	ActorID    string      `db:"actor_id"`
	ActorRole  string      `db:"actor_role"`
	Action     AuditAction `db:"action"`
	TargetType string      `db:"target_type"`
	TargetID   string      `db:"target_id"`
	Before     *Booking    `db:"-"`
	After      *Booking    `db:"-"`
}
