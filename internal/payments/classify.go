package payments

import (
	"encoding/json"

	"github.com/google/uuid"
)

// EventTypeCheckoutCompleted is the only event type that moves the funnel.
const EventTypeCheckoutCompleted = "checkout.session.completed"

// relevantEventTypes is the fixed allow-list of subscription/checkout
// lifecycle events. Anything else is acknowledged and dropped before
// classification.
var relevantEventTypes = map[string]bool{
	"invoice.created":               true,
	"invoice.finalized":             true,
	"invoice.paid":                  true,
	EventTypeCheckoutCompleted:      true,
	"customer.subscription.created": true,
	"customer.subscription.updated": true,
	"customer.subscription.deleted": true,
}

// Event is the provider's webhook envelope, parsed only after the signature
// over the raw body has been verified.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// eventObject is the slice of the event payload classification needs.
type eventObject struct {
	Metadata map[string]string `json:"metadata"`
}

// ClassKind tags a classified event.
type ClassKind int

const (
	// KindIgnored: event type outside the allow-list, or unusable payload.
	KindIgnored ClassKind = iota
	// KindPlatform: a platform-level subscription event for the billing sink.
	KindPlatform
	// KindConnectedConversion: a checkout completed on a connected account
	// with an attendee/session reference; promotes the attendance.
	KindConnectedConversion
	// KindConnectedOther: any other connected-account event; acknowledged
	// with no side effect.
	KindConnectedOther
)

// ClassifiedEvent is the strongly-typed outcome of classification. Downstream
// logic dispatches on Kind and never re-reads raw metadata.
type ClassifiedEvent struct {
	Kind       ClassKind
	EventID    string
	EventType  string
	AttendeeID uuid.UUID // set for KindConnectedConversion
	SessionID  uuid.UUID // set for KindConnectedConversion
}

// Classify maps a verified event onto the typed variant the dispatcher acts
// on. Connected-account events are recognized by their metadata markers; for
// those, only a checkout completion carrying a parseable attendee/session
// pair becomes a conversion — every other sub-type is ConnectedOther.
func Classify(evt Event) ClassifiedEvent {
	out := ClassifiedEvent{Kind: KindIgnored, EventID: evt.ID, EventType: evt.Type}
	if !relevantEventTypes[evt.Type] {
		return out
	}

	var obj eventObject
	if err := json.Unmarshal(evt.Data.Object, &obj); err != nil {
		return out
	}

	connected := obj.Metadata["connectedAccountPayments"] != "" ||
		obj.Metadata["connectedAccountSubscriptions"] != ""
	if !connected {
		out.Kind = KindPlatform
		return out
	}

	if evt.Type == EventTypeCheckoutCompleted {
		attendeeID, aErr := uuid.Parse(obj.Metadata["attendeeId"])
		sessionID, sErr := uuid.Parse(obj.Metadata["sessionId"])
		if aErr == nil && sErr == nil {
			out.Kind = KindConnectedConversion
			out.AttendeeID = attendeeID
			out.SessionID = sessionID
			return out
		}
	}
	out.Kind = KindConnectedOther
	return out
}
