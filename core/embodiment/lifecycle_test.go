package embodiment

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type sessionRecorder struct {
	mu            sync.Mutex
	states        []SessionState
	streamReady   int
	videoReady    int
	errors        []error
	backendErrors []string
}

func (r *sessionRecorder) callbacks() SessionCallbacks {
	return SessionCallbacks{
		OnStateChanged: func(state SessionState) {
			r.mu.Lock()
			r.states = append(r.states, state)
			r.mu.Unlock()
		},
		OnStreamReady: func() {
			r.mu.Lock()
			r.streamReady++
			r.mu.Unlock()
		},
		OnVideoReady: func() {
			r.mu.Lock()
			r.videoReady++
			r.mu.Unlock()
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errors = append(r.errors, err)
			r.mu.Unlock()
		},
		OnBackendError: func(message string) {
			r.mu.Lock()
			r.backendErrors = append(r.backendErrors, message)
			r.mu.Unlock()
		},
	}
}

func restOnlyDescriptor() Descriptor {
	return Descriptor{
		Name: "test-backend",
		Bootstrap: func(context.Context, SessionContext, string) (*Credentials, error) {
			// No room, no socket: degraded REST-only mode.
			return &Credentials{}, nil
		},
	}
}

func TestSessionRestOnlyModeReachesStreamReady(t *testing.T) {
	recorder := &sessionRecorder{}
	session := NewSession(restOnlyDescriptor(), SessionContext{}, recorder.callbacks(),
		WithKeepAliveInterval(10*time.Millisecond))

	if err := session.Start(context.Background(), "embodiment-1"); err != nil {
		t.Fatalf("expected degraded start to succeed: %v", err)
	}

	// No media is required, so the session is immediately stream-ready.
	if got := session.State(); got != SessionStreamReady {
		t.Fatalf("expected stream-ready, got %s", got)
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if recorder.streamReady != 1 {
		t.Fatalf("expected one stream-ready notification, got %d", recorder.streamReady)
	}

	want := []SessionState{SessionConnecting, SessionConnected, SessionStreamReady}
	if len(recorder.states) != len(want) {
		t.Fatalf("state sequence %v, want %v", recorder.states, want)
	}
	for i := range want {
		if recorder.states[i] != want[i] {
			t.Fatalf("state sequence %v, want %v", recorder.states, want)
		}
	}
}

func TestSessionStartRejectedWhileLive(t *testing.T) {
	session := NewSession(restOnlyDescriptor(), SessionContext{}, SessionCallbacks{})

	if err := session.Start(context.Background(), "embodiment-1"); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if err := session.Start(context.Background(), "embodiment-1"); err == nil {
		t.Fatalf("expected start rejected while session live")
	}
}

func TestSessionBootstrapFailureEntersError(t *testing.T) {
	recorder := &sessionRecorder{}
	descriptor := Descriptor{
		Name: "test-backend",
		Bootstrap: func(context.Context, SessionContext, string) (*Credentials, error) {
			return nil, fmt.Errorf("backend unavailable")
		},
	}
	session := NewSession(descriptor, SessionContext{}, recorder.callbacks())

	if err := session.Start(context.Background(), "embodiment-1"); err == nil {
		t.Fatalf("expected start to fail")
	}
	if got := session.State(); got != SessionError {
		t.Fatalf("expected error state, got %s", got)
	}

	recorder.mu.Lock()
	errCount := len(recorder.errors)
	recorder.mu.Unlock()
	if errCount != 1 {
		t.Fatalf("expected one error notification, got %d", errCount)
	}

	// Error is recoverable via an explicit restart.
	session.descriptor.Bootstrap = restOnlyDescriptor().Bootstrap
	if err := session.Start(context.Background(), "embodiment-1"); err != nil {
		t.Fatalf("expected restart from error to succeed: %v", err)
	}
}

func TestSessionStopAlwaysEndsIdle(t *testing.T) {
	session := NewSession(restOnlyDescriptor(), SessionContext{}, SessionCallbacks{})

	if err := session.Start(context.Background(), "embodiment-1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	session.Stop(context.Background())
	if got := session.State(); got != SessionIdle {
		t.Fatalf("expected idle after stop, got %s", got)
	}

	// Stop on Idle is a no-op.
	session.Stop(context.Background())
	if got := session.State(); got != SessionIdle {
		t.Fatalf("expected idle after repeated stop, got %s", got)
	}

	// A fully stopped session can be started again.
	if err := session.Start(context.Background(), "embodiment-1"); err != nil {
		t.Fatalf("expected restart after stop to succeed: %v", err)
	}
}

func TestSessionStartSupersededByStopStaysIdle(t *testing.T) {
	recorder := &sessionRecorder{}
	session := NewSession(restOnlyDescriptor(), SessionContext{}, recorder.callbacks())

	// Reproduce a Start whose channels are already installed when a Stop
	// lands: take the epoch that Start would carry, tear down, then run the
	// completion with the stale epoch.
	session.mu.Lock()
	session.epoch++
	epoch := session.epoch
	session.mu.Unlock()
	session.setState(SessionConnecting)

	session.Stop(context.Background())

	if err := session.completeStart(epoch); err == nil {
		t.Fatalf("expected superseded start completion to be rejected")
	}
	if got := session.State(); got != SessionIdle {
		t.Fatalf("expected idle after superseded start, got %s", got)
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if last := recorder.states[len(recorder.states)-1]; last != SessionIdle {
		t.Fatalf("expected idle as the final observed state, got %v", recorder.states)
	}
}

// countingChannel is a channel fake safe to share with the keep-alive
// goroutine.
type countingChannel struct {
	mu   sync.Mutex
	sent int
}

func (c *countingChannel) Connected() bool { return true }

func (c *countingChannel) SendJSON(map[string]any) error {
	c.mu.Lock()
	c.sent++
	c.mu.Unlock()
	return nil
}

func (c *countingChannel) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent
}

func TestSessionKeepAliveIsNoopAfterStop(t *testing.T) {
	interval := 5 * time.Millisecond
	session := NewSession(restOnlyDescriptor(), SessionContext{}, SessionCallbacks{},
		WithKeepAliveInterval(interval))

	if err := session.Start(context.Background(), "embodiment-1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	channel := &countingChannel{}
	session.dispatcher.setDirect(channel)

	deadline := time.Now().Add(2 * time.Second)
	for channel.sentCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if channel.sentCount() == 0 {
		t.Fatalf("expected keep-alive sends while the session is live")
	}

	session.Stop(context.Background())
	// Let any tick already past the liveness check drain, then re-attach the
	// channel so a tick that outlived the stop would be visible as a send.
	time.Sleep(2 * interval)
	session.dispatcher.setDirect(channel)
	sent := channel.sentCount()

	time.Sleep(5 * interval)
	if got := channel.sentCount(); got != sent {
		t.Fatalf("keep-alive fired after teardown: %d sends, want %d", got, sent)
	}
	if got := session.State(); got != SessionIdle {
		t.Fatalf("expected idle after stop, got %s", got)
	}
}

func TestSessionMediaReadinessGatesStreamReady(t *testing.T) {
	recorder := &sessionRecorder{}
	descriptor := restOnlyDescriptor()
	descriptor.RequiresAudioTrack = true
	descriptor.RequiresVideoTrack = true
	session := NewSession(descriptor, SessionContext{}, recorder.callbacks())

	if err := session.Start(context.Background(), "embodiment-1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if got := session.State(); got != SessionConnected {
		t.Fatalf("expected connected while media pending, got %s", got)
	}

	session.markMediaReady("audio")
	if got := session.State(); got != SessionConnected {
		t.Fatalf("expected connected with audio only, got %s", got)
	}

	session.markMediaReady("video")
	if got := session.State(); got != SessionStreamReady {
		t.Fatalf("expected stream-ready with all media, got %s", got)
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if recorder.videoReady != 1 {
		t.Fatalf("expected one video-ready notification, got %d", recorder.videoReady)
	}
	if recorder.streamReady != 1 {
		t.Fatalf("expected one stream-ready notification, got %d", recorder.streamReady)
	}
}

func TestSessionUnexpectedDisconnectFails(t *testing.T) {
	recorder := &sessionRecorder{}
	session := NewSession(restOnlyDescriptor(), SessionContext{}, recorder.callbacks())

	if err := session.Start(context.Background(), "embodiment-1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	epoch := session.epoch
	session.roomCallbacks(epoch).onDisconnected()

	if got := session.State(); got != SessionError {
		t.Fatalf("expected error after unexpected disconnect, got %s", got)
	}
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.errors) != 1 {
		t.Fatalf("expected one error notification, got %d", len(recorder.errors))
	}
}

func TestSessionStaleCallbacksIgnoredAfterStop(t *testing.T) {
	recorder := &sessionRecorder{}
	session := NewSession(restOnlyDescriptor(), SessionContext{}, recorder.callbacks())

	if err := session.Start(context.Background(), "embodiment-1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	staleCallbacks := session.roomCallbacks(session.epoch)
	session.Stop(context.Background())

	staleCallbacks.onDisconnected()

	if got := session.State(); got != SessionIdle {
		t.Fatalf("expected stale disconnect ignored after stop, got %s", got)
	}
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.errors) != 0 {
		t.Fatalf("expected no error from stale callback, got %v", recorder.errors)
	}
}

func TestHandleBackendEventRouting(t *testing.T) {
	var speakStarts, speakEnds, userSpeech int
	backendErrors := []string{}
	session := NewSession(restOnlyDescriptor(), SessionContext{}, SessionCallbacks{
		OnSpeakStarted:       func() { speakStarts++ },
		OnSpeakEnded:         func() { speakEnds++ },
		OnUserSpeechDetected: func() { userSpeech++ },
		OnBackendError:       func(message string) { backendErrors = append(backendErrors, message) },
	})

	session.handleBackendEvent(eventSpeakingStarted, nil)
	session.handleBackendEvent(eventSpeakingStopped, nil)
	session.handleBackendEvent(eventUserSpeechDetected, nil)
	session.handleBackendEvent(eventBackendError, []byte(`{"message":"render crashed"}`))
	session.handleBackendEvent("some.future.event", nil)

	if speakStarts != 1 || speakEnds != 1 || userSpeech != 1 {
		t.Fatalf("unexpected routing counts: starts=%d ends=%d speech=%d",
			speakStarts, speakEnds, userSpeech)
	}
	if len(backendErrors) != 1 || backendErrors[0] != "render crashed" {
		t.Fatalf("unexpected backend errors: %v", backendErrors)
	}
}

func TestSessionStateLiveness(t *testing.T) {
	live := map[SessionState]bool{
		SessionConnected:   true,
		SessionStreamReady: true,
	}
	all := []SessionState{
		SessionIdle, SessionConnecting, SessionConnected,
		SessionStreamReady, SessionDisconnecting, SessionError,
	}
	for _, state := range all {
		if got := state.IsLive(); got != live[state] {
			t.Errorf("%s.IsLive() = %v, want %v", state, got, live[state])
		}
	}
}
