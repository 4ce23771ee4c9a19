package models

import (
	"time"

	"github.com/google/uuid"
)

// FunnelStage is a named position an attendee occupies in a session's sales
// pipeline. ADDED_TO_CART and BREAKOUT_ROOM share one storage slot; which
// label applies is decided by the session's CTA type (see internal/funnel).
type FunnelStage string

const (
	StageRegistered   FunnelStage = "REGISTERED"
	StageAttended     FunnelStage = "ATTENDED"
	StageAddedToCart  FunnelStage = "ADDED_TO_CART"
	StageFollowUp     FunnelStage = "FOLLOW_UP"
	StageBreakoutRoom FunnelStage = "BREAKOUT_ROOM"
	StageConverted    FunnelStage = "CONVERTED"
)

// AllStages lists every nominal stage in funnel order.
var AllStages = []FunnelStage{
	StageRegistered,
	StageAttended,
	StageAddedToCart,
	StageFollowUp,
	StageBreakoutRoom,
	StageConverted,
}

// Valid reports whether s is a known funnel stage.
func (s FunnelStage) Valid() bool {
	for _, known := range AllStages {
		if s == known {
			return true
		}
	}
	return false
}

// Attendance is the unique funnel record of one attendee within one session.
// Exactly one row exists per (attendee, session) pair; the stage is
// overwritten in place on promotion and the row is never deleted.
type Attendance struct {
	ID         uuid.UUID   `json:"id"`
	AttendeeID uuid.UUID   `json:"attendee_id"`
	SessionID  uuid.UUID   `json:"session_id"`
	Stage      FunnelStage `json:"stage"`
	JoinedAt   time.Time   `json:"joined_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	// Attendee is populated on reads that join the attendee row.
	Attendee *Attendee `json:"attendee,omitempty"`
}
