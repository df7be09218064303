package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

// Difficulties
const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

// Module content types
const (
	ModuleTypeText  = "text"
	ModuleTypeVideo = "video"
)

// Assignment statuses
const (
	AssignmentPending   = "pending"
	AssignmentSubmitted = "submitted"
	AssignmentGraded    = "graded"
)

type Course struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	InstructorID string    `json:"instructor_id"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Modules      []Module  `json:"modules"`
	QuizID       string    `json:"quiz_id,omitempty"`
	Rating       float64   `json:"rating"`
	TotalRatings int       `json:"total_ratings"`
	Price        float64   `json:"price,omitempty"`
	Category     string    `json:"category"`
	Difficulty   string    `json:"difficulty"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

type Module struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Type            string `json:"type"` // text | video
	Content         string `json:"content"`
	DurationMinutes int    `json:"duration_minutes"`
}

type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

type Question struct {
	Text               string   `json:"text"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correct_answer_index"`
}

// Progress tracks one student's advancement through one course.
type Progress struct {
	CourseID           string   `json:"course_id"`
	StudentID          string   `json:"student_id"`
	CompletedModules   []string `json:"completed_modules"`
	QuizScore          *int     `json:"quiz_score"` // percentage; nil until taken
	AssignmentStatus   string   `json:"assignment_status"`
	Rating             int      `json:"rating,omitempty"`
	CompletionNotified bool     `json:"completion_notified"`
	CertificateIssued  bool     `json:"certificate_issued"`
}

// NewCourse carries course + quiz data for create/update; on update, empty IDs
// mean "create" and set IDs mean "edit in place".
type NewCourse struct {
	ID           string      `json:"id"`
	Title        string      `json:"title" validate:"required"`
	Description  string      `json:"description"`
	InstructorID string      `json:"instructor_id" validate:"required"`
	ThumbnailURL string      `json:"thumbnail_url"`
	Modules      []NewModule `json:"modules" validate:"dive"`
	Quiz         NewQuiz     `json:"quiz"`
	Price        float64     `json:"price" validate:"omitempty,gte=0"`
	Category     string      `json:"category" validate:"required"`
	Difficulty   string      `json:"difficulty" validate:"required,oneof=beginner intermediate advanced"`
}

type NewModule struct {
	Title           string `json:"title" validate:"required"`
	Type            string `json:"type" validate:"required,oneof=text video"`
	Content         string `json:"content"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=0"`
}

type NewQuiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title" validate:"required"`
	Questions []Question `json:"questions"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Category = core.CleanString(nc.Category)
	return validate.Struct(nc)
}

// NewEnrollment carries the contact details collected when a student enrolls.
type NewEnrollment struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
	Address     string `json:"address" validate:"required"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	ne.PhoneNumber = core.CleanString(ne.PhoneNumber)
	ne.Address = core.CleanString(ne.Address)
	return validate.Struct(ne)
}
