package model

import "time"

// Event kinds recorded in the kiosk journal.
const (
	EventCheckIn    = "checkin"
	EventRejected   = "rejected"
	EventRegistered = "registered"
	EventSession    = "session"
)

// Event is one entry of the local kiosk journal.
type Event struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Student   string    `json:"student,omitempty"`
	Shift     string    `json:"shift,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
