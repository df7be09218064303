package session

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
	StatusRejected  Status = "rejected"
)

// Terminal reports whether no further operation may move the session out of this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled || s == StatusRejected
}

const (
	// ConflictWindow is the minimum spacing between a party's scheduled sessions.
	ConflictWindow = time.Hour

	// CompletionLag is how long after its start time a scheduled session is
	// treated as completed. This is a read-time derivation; it is never persisted.
	CompletionLag = 30 * time.Minute
)

// Session is a 1-on-1 coaching slot between exactly one student and one instructor.
type Session struct {
	ID            string    `json:"id"`
	StudentID     string    `json:"student_id"`
	InstructorID  string    `json:"instructor_id"`
	StartTime     time.Time `json:"start_time"` // UTC
	Status        Status    `json:"status"`
	RequestedByID string    `json:"requested_by_id"`
	ReminderSent  bool      `json:"reminder_sent"`
	Rating        int       `json:"rating,omitempty"` // 1..5; 0 = not rated yet
	Feedback      string    `json:"feedback,omitempty"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
}

// EffectiveStatus derives the status the session should be treated as having at
// read time: a scheduled session whose start time passed more than CompletionLag
// ago reads as completed.
func (s *Session) EffectiveStatus(now time.Time) Status {
	if s.Status == StatusScheduled && now.After(s.StartTime.Add(CompletionLag)) {
		return StatusCompleted
	}
	return s.Status
}

// HasParty reports whether id is the student or the instructor.
func (s *Session) HasParty(id string) bool {
	return id == s.StudentID || id == s.InstructorID
}

// OtherParty returns the id of the party that is not `id`.
func (s *Session) OtherParty(id string) string {
	if id == s.StudentID {
		return s.InstructorID
	}
	return s.StudentID
}

func (s *Session) IsRated() bool { return s.Rating != 0 }

// NewSession contains information needed to request a new Session.
type NewSession struct {
	StudentID     string    `json:"student_id" validate:"required"`
	InstructorID  string    `json:"instructor_id" validate:"required"`
	StartTime     time.Time `json:"start_time" validate:"required"`
	RequestedByID string    `json:"requested_by_id" validate:"required"`
}

func (ns *NewSession) Validate(validate *validator.Validate, now time.Time) error {
	if err := validate.Struct(ns); err != nil {
		return err
	}
	if ns.RequestedByID != ns.StudentID && ns.RequestedByID != ns.InstructorID {
		return core.NewValidationError(nil,
			core.FieldError{Field: "requested_by_id", Error: "requester must be the student or the instructor"})
	}
	if ns.StartTime.Before(now) {
		return core.NewValidationError(nil,
			core.FieldError{Field: "start_time", Error: "start time cannot be in the past"})
	}
	return nil
}

// NewFeedback is a student's one-off rating of a completed session.
type NewFeedback struct {
	Rating  int    `json:"rating" validate:"required,rating"`
	Comment string `json:"comment"`
}

func (nf *NewFeedback) Validate(validate *validator.Validate) error {
	nf.Comment = core.CleanString(nf.Comment)
	return validate.Struct(nf)
}

// Buckets groups a user's sessions the way the front-end lists them.
type Buckets struct {
	Pending  []Session `json:"pending"`  // awaiting action; soonest first
	Upcoming []Session `json:"upcoming"` // scheduled and still in the future; soonest first
	Past     []Session `json:"past"`     // terminal or elapsed; most recent first
}
