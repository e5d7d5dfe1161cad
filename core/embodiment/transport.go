package embodiment

import (
	"sync"

	"github.com/google/uuid"
)

// Convention selects the wire framing for an outgoing command. The direct
// socket expects a `type` field plus a unique `event_id`; the room broadcast
// channel expects an `event_type` field and no id. The two are not
// interchangeable: the remote backend silently ignores commands framed for
// the other channel.
type Convention int

const (
	// ConventionAuto lets the dispatcher pick whichever channel is connected,
	// preferring the direct socket.
	ConventionAuto Convention = iota
	ConventionDirect
	ConventionBroadcast
)

// Command is an outbound protocol message. It exists only between enqueue
// and dispatch.
type Command struct {
	Kind       string
	Payload    map[string]any
	Preference Convention
}

// commandChannel is one of the two wire channels a command can leave on.
type commandChannel interface {
	Connected() bool
	SendJSON(payload map[string]any) error
}

// Dispatcher serializes outgoing commands onto whichever channel is actually
// connected, not merely configured. All sends are fire-and-forget: delivery
// failure is logged, never retried.
type Dispatcher struct {
	mu sync.Mutex

	direct    commandChannel
	broadcast commandChannel

	// preferBroadcast routes ConventionAuto commands over the broadcast
	// channel first; set for managed-mode backends.
	preferBroadcast bool
}

func newDispatcher(preferBroadcast bool) *Dispatcher {
	return &Dispatcher{preferBroadcast: preferBroadcast}
}

func (d *Dispatcher) setDirect(ch commandChannel) {
	d.mu.Lock()
	d.direct = ch
	d.mu.Unlock()
}

func (d *Dispatcher) setBroadcast(ch commandChannel) {
	d.mu.Lock()
	d.broadcast = ch
	d.mu.Unlock()
}

func (d *Dispatcher) channels() (direct, broadcast commandChannel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.direct, d.broadcast
}

// DirectConnected reports whether the direct socket is currently usable.
// True realtime audio requires it.
func (d *Dispatcher) DirectConnected() bool {
	direct, _ := d.channels()
	return direct != nil && direct.Connected()
}

// Send frames and dispatches one command. Returns false if no usable
// channel accepted it.
func (d *Dispatcher) Send(cmd Command) bool {
	direct, broadcast := d.channels()

	directUp := direct != nil && direct.Connected()
	broadcastUp := broadcast != nil && broadcast.Connected()

	pick := cmd.Preference
	if pick == ConventionAuto {
		switch {
		case d.preferBroadcast && broadcastUp:
			pick = ConventionBroadcast
		case directUp:
			pick = ConventionDirect
		case broadcastUp:
			pick = ConventionBroadcast
		default:
			logger.Warn("dropping command, no connected channel", "kind", cmd.Kind)
			return false
		}
	}

	switch pick {
	case ConventionDirect:
		if !directUp {
			logger.Warn("dropping direct command, socket not connected", "kind", cmd.Kind)
			return false
		}
		if err := direct.SendJSON(frameDirect(cmd)); err != nil {
			logger.Warn("failed to send direct command", "kind", cmd.Kind, "error", err)
			return false
		}
	case ConventionBroadcast:
		if !broadcastUp {
			logger.Warn("dropping broadcast command, room not connected", "kind", cmd.Kind)
			return false
		}
		if err := broadcast.SendJSON(frameBroadcast(cmd)); err != nil {
			logger.Warn("failed to send broadcast command", "kind", cmd.Kind, "error", err)
			return false
		}
	}

	return true
}

// frameDirect applies convention A: `type` plus a fresh `event_id`.
func frameDirect(cmd Command) map[string]any {
	payload := make(map[string]any, len(cmd.Payload)+2)
	for k, v := range cmd.Payload {
		payload[k] = v
	}
	payload["type"] = cmd.Kind
	payload["event_id"] = uuid.NewString()
	return payload
}

// frameBroadcast applies convention B: `event_type`, no id.
func frameBroadcast(cmd Command) map[string]any {
	payload := make(map[string]any, len(cmd.Payload)+1)
	for k, v := range cmd.Payload {
		payload[k] = v
	}
	payload["event_type"] = cmd.Kind
	return payload
}
