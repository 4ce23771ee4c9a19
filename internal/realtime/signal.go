package realtime

// SignalKind names a control signal on a session's topic. Kinds are open:
// hosts may publish custom kinds, and consumers ignore kinds they do not know.
type SignalKind string

const (
	// SignalOpenCtaDialog tells viewers to open the session's CTA dialog.
	SignalOpenCtaDialog SignalKind = "open_cta_dialog"
	// SignalStartLive tells viewers the stream went live.
	SignalStartLive SignalKind = "start_live"
	// SignalSessionStatus carries any other lifecycle change.
	SignalSessionStatus SignalKind = "session_status"
)

// Channel roles as carried in admission tokens.
const (
	roleViewer = "viewer"
	roleHost   = "host"
)
