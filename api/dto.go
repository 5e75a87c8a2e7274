package api

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// BookingCreateRequest accepts either date + start_time + end_time
// (end_date only for sessions past midnight) or start + end datetimes.
type BookingCreateRequest struct {
	TeacherID string  `json:"teacher_id" validate:"required,uuid"`
	BatchName string  `json:"batch_name" validate:"required,max=200"`
	Subject   string  `json:"subject" validate:"required,max=200"`
	Date      string  `json:"date,omitempty" validate:"required_without=Start"`
	EndDate   string  `json:"end_date,omitempty" validate:"excluded_without=Date"`
	StartTime string  `json:"start_time,omitempty" validate:"required_with=Date"`
	EndTime   string  `json:"end_time,omitempty" validate:"required_with=Date"`
	Start     string  `json:"start,omitempty" validate:"required_without=Date,excluded_with=Date"`
	End       string  `json:"end,omitempty" validate:"required_with=Start"`
	Mode      string  `json:"mode,omitempty"`
	Room      *string `json:"room,omitempty" validate:"omitempty,max=100"`
}

// BookingUpdateRequest carries only the fields being changed.
type BookingUpdateRequest struct {
	TeacherID *string `json:"teacher_id,omitempty" validate:"omitempty,uuid"`
	BatchName *string `json:"batch_name,omitempty" validate:"omitempty,max=200"`
	Subject   *string `json:"subject,omitempty" validate:"omitempty,max=200"`
	Date      *string `json:"date,omitempty"`
	EndDate   *string `json:"end_date,omitempty"`
	StartTime *string `json:"start_time,omitempty"`
	EndTime   *string `json:"end_time,omitempty"`
	Start     *string `json:"start,omitempty"`
	End       *string `json:"end,omitempty"`
	Mode      *string `json:"mode,omitempty"`
	Room      *string `json:"room,omitempty" validate:"omitempty,max=100"`
}

func (r *BookingUpdateRequest) ChangesTime() bool {
	return r.Date != nil || r.EndDate != nil || r.StartTime != nil || r.EndTime != nil || r.Start != nil || r.End != nil
}

// BookingListQuery is the raw query string of the list endpoints.
// Dates without an offset are read in the business timezone.
type BookingListQuery struct {
	TeacherID      string
	BatchName      string
	Subject        string
	Mode           string
	From           string
	To             string
	IncludeDeleted string
	Page           string
	Limit          string
}

type BookingResponse struct {
	ID         string    `json:"id"`
	TeacherID  string    `json:"teacher_id"`
	BatchName  string    `json:"batch_name"`
	Subject    string    `json:"subject"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	StartLocal string    `json:"start_local"`
	EndLocal   string    `json:"end_local"`
	Date       string    `json:"date"`
	StartTime  string    `json:"start_time"`
	EndTime    string    `json:"end_time"`
	Mode       string    `json:"mode"`
	Room       *string   `json:"room,omitempty"`
	IsDeleted  bool      `json:"is_deleted"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type BookingListResponse struct {
	Items      []BookingResponse `json:"items"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
}

type ConflictResponse struct {
	BookingID string    `json:"booking_id,omitempty"`
	Start     time.Time `json:"start,omitzero"`
	End       time.Time `json:"end,omitzero"`
}

type TeacherResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

// Validate checks the request shape. Field names in the returned
// validator.ValidationErrors are the json names.
func Validate(req any) error {
	return validate.Struct(req)
}
