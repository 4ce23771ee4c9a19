package realtime

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type publishedSignal struct {
	sessionID uuid.UUID
	kind      SignalKind
}

type fakeTransport struct {
	published     []publishedSignal
	handlers      map[uuid.UUID]func(kind SignalKind, payload []byte)
	cancelled     int
	subscribeErrs int // fail this many SubscribeSession calls first
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: make(map[uuid.UUID]func(kind SignalKind, payload []byte))}
}

func (f *fakeTransport) PublishSessionSignal(sessionID uuid.UUID, kind SignalKind, _ []byte) error {
	f.published = append(f.published, publishedSignal{sessionID, kind})
	return nil
}

func (f *fakeTransport) SubscribeSession(sessionID uuid.UUID, handler func(kind SignalKind, payload []byte)) (func(), error) {
	if f.subscribeErrs > 0 {
		f.subscribeErrs--
		return nil, errors.New("transport down")
	}
	f.handlers[sessionID] = handler
	return func() {
		f.cancelled++
		delete(f.handlers, sessionID)
	}, nil
}

func testClient(hub *Hub, sessionID uuid.UUID, role string) *Client {
	attendeeID := uuid.New()
	return &Client{
		ID:         role + ":" + attendeeID.String(),
		SessionID:  sessionID,
		AttendeeID: attendeeID,
		Role:       role,
		hub:        hub,
		send:       make(chan Signal, 8),
	}
}

func TestHubRegisterStartsAndStopsSubscription(t *testing.T) {
	transport := newFakeTransport()
	hub := NewHub(zap.NewNop(), transport, transport)
	sessionID := uuid.New()

	c1 := testClient(hub, sessionID, roleViewer)
	c2 := testClient(hub, sessionID, roleViewer)
	hub.Register(c1)
	hub.Register(c2)

	if len(transport.handlers) != 1 {
		t.Errorf("subscriptions = %d, want 1 for the whole topic", len(transport.handlers))
	}
	if hub.AudienceCount(sessionID) != 2 {
		t.Errorf("audience = %d, want 2", hub.AudienceCount(sessionID))
	}

	hub.Unregister(c1)
	if transport.cancelled != 0 {
		t.Error("subscription cancelled while clients remain")
	}
	hub.Unregister(c2)
	if transport.cancelled != 1 {
		t.Errorf("cancelled = %d, want 1 after last client left", transport.cancelled)
	}
	if hub.AudienceCount(sessionID) != 0 {
		t.Errorf("audience = %d, want 0", hub.AudienceCount(sessionID))
	}
}

func TestHubSubscribeRetriedOnNextJoin(t *testing.T) {
	transport := newFakeTransport()
	transport.subscribeErrs = 1
	hub := NewHub(zap.NewNop(), transport, transport)
	sessionID := uuid.New()

	first := testClient(hub, sessionID, roleViewer)
	hub.Register(first)
	if len(transport.handlers) != 0 {
		t.Fatal("subscription recorded despite transport failure")
	}
	// The client still joined the local topic.
	if hub.AudienceCount(sessionID) != 1 {
		t.Errorf("audience = %d, want 1", hub.AudienceCount(sessionID))
	}

	second := testClient(hub, sessionID, roleViewer)
	hub.Register(second)
	if len(transport.handlers) != 1 {
		t.Fatalf("subscriptions = %d, want 1 after retry", len(transport.handlers))
	}

	// Cross-instance fan-in reaches everyone once the retry succeeded.
	transport.handlers[sessionID](SignalStartLive, []byte(`{"status":"LIVE"}`))
	for _, c := range []*Client{first, second} {
		select {
		case sig := <-c.send:
			if sig.Kind != SignalStartLive {
				t.Errorf("kind = %s, want start_live", sig.Kind)
			}
		default:
			t.Errorf("client %s received nothing", c.ID)
		}
	}
}

func TestHubJoinHandlerOncePerViewer(t *testing.T) {
	transport := newFakeTransport()
	hub := NewHub(zap.NewNop(), transport, transport)
	sessionID := uuid.New()

	var joins []uuid.UUID
	hub.SetJoinHandler(func(_, attendeeID uuid.UUID) {
		joins = append(joins, attendeeID)
	})

	viewer := testClient(hub, sessionID, roleViewer)
	hub.Register(viewer)
	hub.Register(viewer) // reconnect with the same client ID
	host := testClient(hub, sessionID, roleHost)
	hub.Register(host)

	if len(joins) != 1 {
		t.Fatalf("join handler calls = %d, want 1", len(joins))
	}
	if joins[0] != viewer.AttendeeID {
		t.Errorf("joined attendee = %s, want %s", joins[0], viewer.AttendeeID)
	}
}

func TestHubBroadcastToSession(t *testing.T) {
	transport := newFakeTransport()
	hub := NewHub(zap.NewNop(), transport, transport)
	sessionID := uuid.New()
	otherID := uuid.New()

	member := testClient(hub, sessionID, roleViewer)
	outsider := testClient(hub, otherID, roleViewer)
	hub.Register(member)
	hub.Register(outsider)

	hub.BroadcastToSession(sessionID, SignalOpenCtaDialog, map[string]string{"label": "Buy now"})

	select {
	case sig := <-member.send:
		if sig.Kind != SignalOpenCtaDialog {
			t.Errorf("kind = %s, want open_cta_dialog", sig.Kind)
		}
	default:
		t.Fatal("member received nothing")
	}
	select {
	case sig := <-outsider.send:
		t.Errorf("outsider received %s", sig.Kind)
	default:
	}
}

func TestHubBroadcastAndPublish(t *testing.T) {
	transport := newFakeTransport()
	hub := NewHub(zap.NewNop(), transport, transport)
	sessionID := uuid.New()

	member := testClient(hub, sessionID, roleViewer)
	hub.Register(member)

	hub.BroadcastToSessionAndPublish(sessionID, SignalStartLive, map[string]string{"status": "LIVE"})

	if len(transport.published) != 1 || transport.published[0].kind != SignalStartLive {
		t.Errorf("published = %+v, want one start_live", transport.published)
	}
	select {
	case sig := <-member.send:
		if sig.Kind != SignalStartLive {
			t.Errorf("kind = %s, want start_live", sig.Kind)
		}
	default:
		t.Fatal("member received nothing locally")
	}
}

func TestHubSlowConsumerDrops(t *testing.T) {
	transport := newFakeTransport()
	hub := NewHub(zap.NewNop(), transport, transport)
	sessionID := uuid.New()

	slow := testClient(hub, sessionID, roleViewer)
	slow.send = make(chan Signal, 1)
	hub.Register(slow)

	// Second signal overflows the buffer and must be dropped, not block.
	hub.BroadcastToSession(sessionID, SignalSessionStatus, nil)
	hub.BroadcastToSession(sessionID, SignalSessionStatus, nil)

	if got := len(slow.send); got != 1 {
		t.Errorf("buffered signals = %d, want 1", got)
	}
}

func TestHubRedisFanIn(t *testing.T) {
	transport := newFakeTransport()
	hub := NewHub(zap.NewNop(), transport, transport)
	sessionID := uuid.New()

	member := testClient(hub, sessionID, roleViewer)
	hub.Register(member)

	// A signal arriving from another instance is broadcast locally.
	handler := transport.handlers[sessionID]
	if handler == nil {
		t.Fatal("no subscription handler registered")
	}
	handler(SignalOpenCtaDialog, []byte(`{"label":"Book a call"}`))

	select {
	case sig := <-member.send:
		if sig.Kind != SignalOpenCtaDialog {
			t.Errorf("kind = %s, want open_cta_dialog", sig.Kind)
		}
	default:
		t.Fatal("member received nothing")
	}
}
