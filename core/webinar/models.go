package webinar

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

// Webinar is a scheduled one-to-many live broadcast with open registration.
type Webinar struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	InstructorID string     `json:"instructor_id"`
	StartTime    time.Time  `json:"start_time"` // UTC
	EndTime      time.Time  `json:"end_time"`   // UTC; always after StartTime
	Price        float64    `json:"price,omitempty"`
	AttendeeIDs  []string   `json:"attendee_ids"` // unique
	RecordingURL string     `json:"recording_url,omitempty"`
	ReminderSent bool       `json:"reminder_sent"`
	QuizID       string     `json:"quiz_id,omitempty"`
	Feedback     []Feedback `json:"feedback,omitempty"` // at most one entry per student
	CreatedAt    time.Time  `json:"created_at"`         // UTC
	UpdatedAt    time.Time  `json:"updated_at"`         // UTC
}

func (w *Webinar) HasAttendee(userID string) bool {
	for _, id := range w.AttendeeIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (w *Webinar) HasFeedbackFrom(studentID string) bool {
	for _, f := range w.Feedback {
		if f.StudentID == studentID {
			return true
		}
	}
	return false
}

type Feedback struct {
	StudentID string `json:"student_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

// QuizScore records a student's score on a webinar's quiz.
type QuizScore struct {
	WebinarID string `json:"webinar_id"`
	StudentID string `json:"student_id"`
	Score     int    `json:"score"` // percentage
}

// NewWebinar contains information needed to create or update a Webinar.
type NewWebinar struct {
	Title        string    `json:"title" validate:"required"`
	Description  string    `json:"description"`
	InstructorID string    `json:"instructor_id" validate:"required"`
	StartTime    time.Time `json:"start_time" validate:"required"`
	EndTime      time.Time `json:"end_time" validate:"required"`
	Price        float64   `json:"price" validate:"omitempty,gte=0"`
	QuizID       string    `json:"quiz_id"`
}

func (nw *NewWebinar) Validate(validate *validator.Validate) error {
	nw.Title = core.CleanString(nw.Title)
	nw.Description = core.CleanString(nw.Description)

	if err := validate.Struct(nw); err != nil {
		return err
	}
	if !nw.EndTime.After(nw.StartTime) {
		return core.NewValidationError(nil,
			core.FieldError{Field: "end_time", Error: "end time must be after start time"})
	}
	return nil
}

// NewFeedback is a student's one-off rating of a webinar.
type NewFeedback struct {
	Rating  int    `json:"rating" validate:"required,rating"`
	Comment string `json:"comment"`
}

func (nf *NewFeedback) Validate(validate *validator.Validate) error {
	nf.Comment = core.CleanString(nf.Comment)
	return validate.Struct(nf)
}
