package embodiment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
)

const defaultKeepAliveInterval = 15 * time.Second

// SessionCallbacks is the bundle of notifications a session delivers while
// it runs. All callbacks are invoked without the session lock held.
type SessionCallbacks struct {
	OnStateChanged func(SessionState)
	// OnStreamReady fires once all media required by the descriptor has
	// arrived from the embodiment participant.
	OnStreamReady func()
	// OnVideoReady fires when the avatar video track is subscribed.
	OnVideoReady func()

	OnSpeakStarted func()
	OnSpeakEnded   func()
	// OnUserSpeechDetected is the backend-side barge-in signal.
	OnUserSpeechDetected func()

	OnParticipantJoined func(identity string)
	OnParticipantLeft   func(identity string)

	// OnError reports transport-level failures; the session is already in
	// the Error state when it fires.
	OnError func(err error)
	// OnBackendError reports an error the backend itself announced. The
	// session stays live; the caller decides whether to keep using it.
	OnBackendError func(message string)
}

// Session drives one embodiment backend through its lifecycle: bootstrap,
// media-room and companion-socket connection, keep-alive, and teardown. The
// same state machine serves every backend; the [Descriptor] carries the
// differences.
type Session struct {
	mu sync.Mutex

	descriptor Descriptor
	sessionCtx SessionContext
	callbacks  SessionCallbacks

	keepAliveInterval time.Duration

	state      SessionState
	creds      *Credentials
	socket     *directSocket
	room       *roomClient
	dispatcher *Dispatcher

	keepAliveStop chan struct{}

	audioReady bool
	videoReady bool

	// epoch increments on every Start/Stop so async completions and stale
	// timers from a previous run are ignored.
	epoch int
}

type SessionOption func(*Session)

func WithKeepAliveInterval(interval time.Duration) SessionOption {
	return func(s *Session) {
		if interval > 0 {
			s.keepAliveInterval = interval
		}
	}
}

func NewSession(descriptor Descriptor, sessionCtx SessionContext, callbacks SessionCallbacks, opts ...SessionOption) *Session {
	s := &Session{
		descriptor:        descriptor,
		sessionCtx:        sessionCtx,
		callbacks:         callbacks,
		keepAliveInterval: defaultKeepAliveInterval,
		state:             SessionIdle,
		dispatcher:        newDispatcher(descriptor.Mode == ModeManaged),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatcher returns the command dispatcher bound to this session's
// channels.
func (s *Session) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// SessionID returns the backend session id, empty before bootstrap.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creds == nil {
		return ""
	}
	return s.creds.SessionID
}

// Mode reports the operating mode the session was described with.
func (s *Session) Mode() Mode {
	return s.descriptor.Mode
}

// DirectAudioAvailable reports whether realtime audio frames can reach the
// backend right now.
func (s *Session) DirectAudioAvailable() bool {
	return s.dispatcher.DirectConnected()
}

// Start bootstraps the session and connects whatever channels the
// credentials offer. Valid from Idle or Error only. Room and socket are
// independently optional; with neither, the session still reaches Connected
// in a degraded REST-only mode.
func (s *Session) Start(ctx context.Context, embodimentID string) error {
	ctx, span := tracer.Start(ctx, "start embodiment session")
	defer span.End()

	s.mu.Lock()
	if s.state != SessionIdle && s.state != SessionError {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot start session from state %s", state)
	}
	s.epoch++
	epoch := s.epoch
	s.audioReady = false
	s.videoReady = false
	s.creds = nil
	s.mu.Unlock()
	s.setState(SessionConnecting)

	creds, err := s.descriptor.bootstrap(ctx, s.sessionCtx, embodimentID)
	if err != nil {
		err = fmt.Errorf("embodiment bootstrap failed: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.failFromEpoch(epoch, err)
		return err
	}

	if stale := s.installCredentials(epoch, creds); stale {
		return fmt.Errorf("session superseded during bootstrap")
	}

	if creds.RoomURL != "" {
		room, err := connectRoom(creds.RoomURL, creds.RoomToken,
			s.descriptor.isEmbodimentParticipant, s.roomCallbacks(epoch))
		if err != nil {
			err = fmt.Errorf("embodiment room connection failed: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.failFromEpoch(epoch, err)
			return err
		}
		s.mu.Lock()
		stale := s.epoch != epoch
		if stale {
			s.mu.Unlock()
			room.Disconnect()
			return fmt.Errorf("session superseded during room connection")
		}
		s.room = room
		s.mu.Unlock()
		s.dispatcher.setBroadcast(room)
	}

	if creds.SocketURL != "" {
		socket, err := dialDirectSocket(creds.SocketURL, s.socketCallbacks(epoch))
		if err != nil {
			// The room alone can carry managed-mode commands; a missing
			// socket only degrades direct audio.
			logger.Warn("companion socket unavailable", "error", err)
			span.AddEvent("companion socket unavailable")
		} else {
			s.mu.Lock()
			stale := s.epoch != epoch
			if stale {
				s.mu.Unlock()
				socket.Close()
				return fmt.Errorf("session superseded during socket connection")
			}
			s.socket = socket
			s.mu.Unlock()
			s.dispatcher.setDirect(socket)
		}
	}

	return s.completeStart(epoch)
}

// completeStart is the tail of Start. A Stop that lands after the channels
// were installed has already torn them down; the stale completion must not
// resurrect the session.
func (s *Session) completeStart(epoch int) error {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return fmt.Errorf("session superseded during connection")
	}
	s.mu.Unlock()

	s.setState(SessionConnected)
	s.startKeepAlive(epoch)
	s.checkMediaReady()
	return nil
}

// Stop tears the session down: keep-alive cancelled, socket closed, room
// disconnected, best-effort external teardown. It always ends in Idle.
func (s *Session) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.state == SessionIdle || s.state == SessionDisconnecting {
		s.mu.Unlock()
		return
	}
	s.epoch++
	socket := s.socket
	room := s.room
	creds := s.creds
	s.socket = nil
	s.room = nil
	keepAliveStop := s.keepAliveStop
	s.keepAliveStop = nil
	s.mu.Unlock()

	s.setState(SessionDisconnecting)

	if keepAliveStop != nil {
		close(keepAliveStop)
	}
	s.dispatcher.setDirect(nil)
	s.dispatcher.setBroadcast(nil)
	if socket != nil {
		socket.Close()
	}
	if room != nil {
		room.Disconnect()
	}
	if creds != nil && creds.SessionID != "" {
		if err := s.sessionCtx.StopEmbodimentSession(ctx, creds.SessionID); err != nil {
			logger.Warn("embodiment teardown call failed", "error", err)
		}
	}

	s.setState(SessionIdle)
}

func (s *Session) installCredentials(epoch int, creds *Credentials) (stale bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return true
	}
	s.creds = creds
	return false
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	onStateChanged := s.callbacks.OnStateChanged
	s.mu.Unlock()

	if onStateChanged != nil {
		onStateChanged(state)
	}
}

// fail moves to Error and surfaces the cause. Unexpected disconnection is an
// error, never a silent reset, so the user can be told.
func (s *Session) fail(err error) {
	s.mu.Lock()
	keepAliveStop := s.keepAliveStop
	s.keepAliveStop = nil
	s.mu.Unlock()

	if keepAliveStop != nil {
		close(keepAliveStop)
	}

	s.setState(SessionError)
	if s.callbacks.OnError != nil {
		s.callbacks.OnError(err)
	}
}

func (s *Session) failFromEpoch(epoch int, err error) {
	s.mu.Lock()
	stale := s.epoch != epoch
	s.mu.Unlock()
	if stale {
		return
	}
	s.fail(err)
}

func (s *Session) startKeepAlive(epoch int) {
	stop := make(chan struct{})

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.keepAliveStop = stop
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(s.keepAliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if !s.State().IsLive() {
					// Stale tick after teardown; guarded no-op.
					return
				}
				// Failures are assumed transient; the next interval tries
				// again.
				s.dispatcher.Send(keepAliveCommand())
			}
		}
	}()
}

func (s *Session) checkMediaReady() {
	s.mu.Lock()
	if s.state != SessionConnected {
		s.mu.Unlock()
		return
	}
	ready := (!s.descriptor.RequiresAudioTrack || s.audioReady) &&
		(!s.descriptor.RequiresVideoTrack || s.videoReady)
	onStreamReady := s.callbacks.OnStreamReady
	s.mu.Unlock()

	if !ready {
		return
	}
	s.setState(SessionStreamReady)
	if onStreamReady != nil {
		onStreamReady()
	}
}

func (s *Session) markMediaReady(kind string) {
	s.mu.Lock()
	switch kind {
	case "audio":
		s.audioReady = true
	case "video":
		s.videoReady = true
	}
	videoReady := s.videoReady
	onVideoReady := s.callbacks.OnVideoReady
	s.mu.Unlock()

	if kind == "video" && videoReady && onVideoReady != nil {
		onVideoReady()
	}
	s.checkMediaReady()
}

func (s *Session) roomCallbacks(epoch int) roomCallbacks {
	return roomCallbacks{
		onTrackSubscribed: func(kind string) {
			if s.epochCurrent(epoch) {
				s.markMediaReady(kind)
			}
		},
		onDataPacket: func(kind string, raw []byte) {
			if s.epochCurrent(epoch) {
				s.handleBackendEvent(kind, raw)
			}
		},
		onParticipantJoined: func(identity string) {
			if s.epochCurrent(epoch) && s.callbacks.OnParticipantJoined != nil {
				s.callbacks.OnParticipantJoined(identity)
			}
		},
		onParticipantLeft: func(identity string) {
			if s.epochCurrent(epoch) && s.callbacks.OnParticipantLeft != nil {
				s.callbacks.OnParticipantLeft(identity)
			}
		},
		onDisconnected: func() {
			if !s.epochCurrent(epoch) {
				return
			}
			if s.State().IsLive() {
				s.fail(fmt.Errorf("media room disconnected unexpectedly"))
			}
		},
	}
}

func (s *Session) socketCallbacks(epoch int) socketCallbacks {
	return socketCallbacks{
		onEvent: func(kind string, raw []byte) {
			if s.epochCurrent(epoch) {
				s.handleBackendEvent(kind, raw)
			}
		},
		onClosed: func(err error) {
			if !s.epochCurrent(epoch) {
				return
			}
			s.dispatcher.setDirect(nil)
			if err != nil && s.State().IsLive() {
				s.fail(fmt.Errorf("companion socket closed unexpectedly: %w", err))
			}
		},
	}
}

func (s *Session) epochCurrent(epoch int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch == epoch
}

func (s *Session) handleBackendEvent(kind string, raw []byte) {
	switch kind {
	case eventSpeakingStarted:
		if s.callbacks.OnSpeakStarted != nil {
			s.callbacks.OnSpeakStarted()
		}
	case eventSpeakingStopped:
		if s.callbacks.OnSpeakEnded != nil {
			s.callbacks.OnSpeakEnded()
		}
	case eventUserSpeechDetected:
		if s.callbacks.OnUserSpeechDetected != nil {
			s.callbacks.OnUserSpeechDetected()
		}
	case eventBackendError:
		var parsed struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &parsed); err != nil {
			logger.Warn("failed to unmarshal backend error event", "error", err)
			return
		}
		if s.callbacks.OnBackendError != nil {
			s.callbacks.OnBackendError(parsed.Message)
		}
	default:
		logger.Debug("ignoring unknown backend event", "kind", kind)
	}
}
