package orchestration

import "testing"

func TestStatePredicates(t *testing.T) {
	active := map[State]bool{
		StateReady:             true,
		StateListening:         true,
		StateProcessing:        true,
		StateSpeaking:          true,
		StateExecutingFunction: true,
	}
	canListen := map[State]bool{
		StateReady:     true,
		StateListening: true,
	}
	disconnected := map[State]bool{
		StateIdle:          true,
		StateConnecting:    true,
		StateDisconnecting: true,
		StateError:         true,
	}

	all := []State{
		StateIdle, StateConnecting, StateConfiguring, StateReady,
		StateListening, StateProcessing, StateSpeaking,
		StateExecutingFunction, StateDisconnecting, StateError,
	}
	for _, state := range all {
		if got := state.IsActive(); got != active[state] {
			t.Errorf("%s.IsActive() = %v, want %v", state, got, active[state])
		}
		if got := state.CanListen(); got != canListen[state] {
			t.Errorf("%s.CanListen() = %v, want %v", state, got, canListen[state])
		}
		if got := state.IsConnected(); got != !disconnected[state] {
			t.Errorf("%s.IsConnected() = %v, want %v", state, got, !disconnected[state])
		}
		if state.String() == "" || state.String() == "unknown" {
			t.Errorf("missing String() for state %d", int(state))
		}
	}
}
