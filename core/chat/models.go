package chat

import "time"

// Message is a single entry in the community chat room.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Timestamp time.Time `json:"timestamp"` // UTC
	Text      string    `json:"text"`
}
