package models

import (
	"time"

	"github.com/google/uuid"
)

// CtaType is the call-to-action a session is configured for. It decides which
// nominal funnel stages are meaningful for the session.
type CtaType string

const (
	CtaBookACall CtaType = "BOOK_A_CALL"
	CtaBuyNow    CtaType = "BUY_NOW"
)

// Valid reports whether t is a known CTA type.
func (t CtaType) Valid() bool {
	return t == CtaBookACall || t == CtaBuyNow
}

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	StatusScheduled   SessionStatus = "SCHEDULED"
	StatusWaitingRoom SessionStatus = "WAITING_ROOM"
	StatusLive        SessionStatus = "LIVE"
	StatusEnded       SessionStatus = "ENDED"
	StatusCancelled   SessionStatus = "CANCELLED"
)

// Valid reports whether s is a known lifecycle status.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusWaitingRoom, StatusLive, StatusEnded, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition may leave s.
func (s SessionStatus) Terminal() bool {
	return s == StatusEnded || s == StatusCancelled
}

// Session is one scheduled webinar with its CTA configuration and lifecycle state.
type Session struct {
	ID          uuid.UUID     `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	StartsAt    time.Time     `json:"starts_at"`
	CtaType     CtaType       `json:"cta_type"`
	CtaLabel    string        `json:"cta_label"`
	Tags        []string      `json:"tags"`
	AssistantID *string       `json:"assistant_id,omitempty"`
	PriceRef    *string       `json:"price_ref,omitempty"`
	Status      SessionStatus `json:"status"`
	PresenterID uuid.UUID     `json:"presenter_id"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
