package embodiment

// SessionState is the per-backend session lifecycle state. It is owned by
// the [Session] that drives the backend.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionConnecting
	SessionConnected
	// SessionStreamReady means all media required by the active mode has
	// arrived from the embodiment participant.
	SessionStreamReady
	SessionDisconnecting
	SessionError
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionConnecting:
		return "connecting"
	case SessionConnected:
		return "connected"
	case SessionStreamReady:
		return "stream_ready"
	case SessionDisconnecting:
		return "disconnecting"
	case SessionError:
		return "error"
	}
	return "unknown"
}

func (s SessionState) IsLive() bool {
	return s == SessionConnected || s == SessionStreamReady
}
