package embodiment

import "testing"

type fakeChannel struct {
	connected bool
	sent      []map[string]any
	sendErr   error
}

func (c *fakeChannel) Connected() bool { return c.connected }

func (c *fakeChannel) SendJSON(payload map[string]any) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, payload)
	return nil
}

func TestDispatcherPrefersConnectedDirectSocket(t *testing.T) {
	direct := &fakeChannel{connected: true}
	broadcast := &fakeChannel{connected: true}
	dispatcher := newDispatcher(false)
	dispatcher.setDirect(direct)
	dispatcher.setBroadcast(broadcast)

	if !dispatcher.Send(Command{Kind: "speak_text", Payload: map[string]any{"text": "hi"}}) {
		t.Fatalf("expected send to succeed")
	}

	if len(direct.sent) != 1 || len(broadcast.sent) != 0 {
		t.Fatalf("expected direct delivery, got direct=%d broadcast=%d",
			len(direct.sent), len(broadcast.sent))
	}

	payload := direct.sent[0]
	if payload["type"] != "speak_text" {
		t.Fatalf("direct framing must carry `type`, got %v", payload)
	}
	if id, ok := payload["event_id"].(string); !ok || id == "" {
		t.Fatalf("direct framing must carry a non-empty `event_id`, got %v", payload)
	}
	if _, ok := payload["event_type"]; ok {
		t.Fatalf("direct framing must not carry `event_type`, got %v", payload)
	}
	if payload["text"] != "hi" {
		t.Fatalf("payload fields must survive framing, got %v", payload)
	}
}

func TestDispatcherFallsBackToBroadcast(t *testing.T) {
	direct := &fakeChannel{connected: false}
	broadcast := &fakeChannel{connected: true}
	dispatcher := newDispatcher(false)
	dispatcher.setDirect(direct)
	dispatcher.setBroadcast(broadcast)

	if !dispatcher.Send(Command{Kind: "interrupt"}) {
		t.Fatalf("expected fallback send to succeed")
	}

	if len(broadcast.sent) != 1 {
		t.Fatalf("expected broadcast delivery, got %d", len(broadcast.sent))
	}
	payload := broadcast.sent[0]
	if payload["event_type"] != "interrupt" {
		t.Fatalf("broadcast framing must carry `event_type`, got %v", payload)
	}
	if _, ok := payload["event_id"]; ok {
		t.Fatalf("broadcast framing must not carry an event id, got %v", payload)
	}
	if _, ok := payload["type"]; ok {
		t.Fatalf("broadcast framing must not carry `type`, got %v", payload)
	}
}

func TestDispatcherTracksConnectivityNotConfiguration(t *testing.T) {
	// A configured but disconnected socket must not be picked.
	direct := &fakeChannel{connected: false}
	dispatcher := newDispatcher(false)
	dispatcher.setDirect(direct)

	if dispatcher.Send(Command{Kind: "ping"}) {
		t.Fatalf("expected send to fail with no connected channel")
	}
	if dispatcher.DirectConnected() {
		t.Fatalf("expected direct reported unavailable while disconnected")
	}

	direct.connected = true
	if !dispatcher.Send(Command{Kind: "ping"}) {
		t.Fatalf("expected send to succeed once socket connects")
	}
	if !dispatcher.DirectConnected() {
		t.Fatalf("expected direct reported available once connected")
	}
}

func TestDispatcherHonorsExplicitPreference(t *testing.T) {
	direct := &fakeChannel{connected: true}
	broadcast := &fakeChannel{connected: true}
	dispatcher := newDispatcher(false)
	dispatcher.setDirect(direct)
	dispatcher.setBroadcast(broadcast)

	if !dispatcher.Send(Command{Kind: "speak_text", Preference: ConventionBroadcast}) {
		t.Fatalf("expected broadcast-preferred send to succeed")
	}
	if len(broadcast.sent) != 1 || len(direct.sent) != 0 {
		t.Fatalf("expected explicit broadcast preference honored")
	}

	// An explicit direct preference over a dead socket is dropped, never
	// re-framed onto the other channel.
	direct.connected = false
	if dispatcher.Send(Command{Kind: "speech_audio", Preference: ConventionDirect}) {
		t.Fatalf("expected direct-only command dropped while socket down")
	}
	if len(broadcast.sent) != 1 {
		t.Fatalf("direct-only command must not fall back to broadcast")
	}
}

func TestDispatcherManagedModePrefersBroadcast(t *testing.T) {
	direct := &fakeChannel{connected: true}
	broadcast := &fakeChannel{connected: true}
	dispatcher := newDispatcher(true)
	dispatcher.setDirect(direct)
	dispatcher.setBroadcast(broadcast)

	dispatcher.Send(Command{Kind: "speak_text"})
	if len(broadcast.sent) != 1 || len(direct.sent) != 0 {
		t.Fatalf("expected managed mode to route over broadcast first")
	}
}
