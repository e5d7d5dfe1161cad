package orchestration

// State is the conversation-level state. It is owned by the [Orchestrator]
// and mutated only on its event loop; listeners observe it read-only through
// the state-changed callback.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConfiguring
	StateReady
	StateListening
	StateProcessing
	StateSpeaking
	StateExecutingFunction
	StateDisconnecting
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConfiguring:
		return "configuring"
	case StateReady:
		return "ready"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	case StateExecutingFunction:
		return "executing_function"
	case StateDisconnecting:
		return "disconnecting"
	case StateError:
		return "error"
	}
	return "unknown"
}

// IsActive reports whether a conversation is in full swing.
func (s State) IsActive() bool {
	switch s {
	case StateReady, StateListening, StateProcessing, StateSpeaking, StateExecutingFunction:
		return true
	}
	return false
}

// CanListen reports whether user speech may start a listening phase.
func (s State) CanListen() bool {
	return s == StateReady || s == StateListening
}

// IsConnected reports whether the conversation holds a live model session.
func (s State) IsConnected() bool {
	switch s {
	case StateIdle, StateConnecting, StateError, StateDisconnecting:
		return false
	}
	return true
}
