package models

import (
	"time"

	"github.com/google/uuid"
)

// CallStatus is the call disposition of an attendee for BOOK_A_CALL sessions.
type CallStatus string

const (
	CallPending    CallStatus = "PENDING"
	CallInProgress CallStatus = "InProgress"
	CallCompleted  CallStatus = "COMPLETED"
)

// Valid reports whether s is a known call status.
func (s CallStatus) Valid() bool {
	return s == CallPending || s == CallInProgress || s == CallCompleted
}

// Attendee is a prospect identified by email. One attendee may hold
// attendances in many sessions; the record is created lazily on first
// registration and shared after that.
type Attendee struct {
	ID         uuid.UUID  `json:"id"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	CallStatus CallStatus `json:"call_status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
