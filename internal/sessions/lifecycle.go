package sessions

import (
	"github.com/lumen-webinar/backend/internal/models"
	"github.com/lumen-webinar/backend/pkg/apperr"
)

// transitions lists the statuses a session may move to from each state.
// ENDED and CANCELLED are terminal. Moves are monotonic: going backward or
// re-entering a terminal state is rejected, never silently ignored.
var transitions = map[models.SessionStatus][]models.SessionStatus{
	models.StatusScheduled:   {models.StatusWaitingRoom, models.StatusLive, models.StatusCancelled},
	models.StatusWaitingRoom: {models.StatusLive, models.StatusCancelled},
	models.StatusLive:        {models.StatusEnded, models.StatusCancelled},
	models.StatusEnded:       {},
	models.StatusCancelled:   {},
}

// CanTransition reports whether from → to is a legal lifecycle move.
func CanTransition(from, to models.SessionStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AllowedFrom returns every status that may legally move to target. Used to
// build the store-level guard for the conditional update.
func AllowedFrom(target models.SessionStatus) []models.SessionStatus {
	var from []models.SessionStatus
	for state, allowed := range transitions {
		for _, to := range allowed {
			if to == target {
				from = append(from, state)
				break
			}
		}
	}
	return from
}

// checkTransition returns a descriptive InvalidTransitionError for an illegal
// move, or nil when the move is legal.
func checkTransition(from, to models.SessionStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	reason := "transition not allowed"
	switch {
	case from == to:
		reason = "session is already in this state"
	case from.Terminal():
		reason = "session has reached a terminal state"
	}
	return &apperr.InvalidTransitionError{From: string(from), To: string(to), Reason: reason}
}
