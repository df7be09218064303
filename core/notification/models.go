package notification

import "time"

// Notification types
const (
	TypeSystem       = "system"
	TypeCourse       = "course"
	TypeCertificate  = "certificate"
	TypeSession      = "session"
	TypeAnnouncement = "announcement"
)

// Links are named front-end destinations a notification may point at.
const (
	LinkSessions = "sessions"
	LinkLive     = "live"
	LinkCourses  = "courses"
)

type Notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	Read        bool      `json:"read"`
	Type        string    `json:"type"`
	Link        string    `json:"link,omitempty"`
}
