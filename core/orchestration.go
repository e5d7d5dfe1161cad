// Package orchestration drives one end-to-end voice conversation: it routes
// speech-model events and local voice activity into a single state machine,
// streams response audio and text to the active embodiment backend, and
// arbitrates barge-in across all producers.
package orchestration

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/embodielabs/presence-core/core/audio"
	"github.com/embodielabs/presence-core/core/embodiment"
	"github.com/embodielabs/presence-core/core/events"
	"github.com/embodielabs/presence-core/core/speechmodel"
	"github.com/embodielabs/presence-core/core/vad"
)

const defaultStopGraceDelay = 300 * time.Millisecond

type Orchestrator struct {
	mu    sync.Mutex
	state State

	runtime   *conversationRuntime
	closeOnce sync.Once

	baseContext        context.Context
	orchestrateOptions OrchestrateOptions

	link speechmodel.Link

	embodimentDescriptor *embodiment.Descriptor
	embodimentSessionCtx embodiment.SessionContext
	embodimentID         string
	session              *embodiment.Session

	vadClient   LocalVAD
	audioInput  audio.InputDevice
	audioOutput audio.OutputDevice

	tools        []Tool
	instructions string
	voice        string

	assembler   *frameAssembler
	batcher     *textBatcher
	transcripts transcripts
	bargeIn     *bargeInCoordinator

	// Loop-owned flags. avatarSpeaking gates echo suppression;
	// backendDisabled latches after a backend-reported error for the rest of
	// the conversation; localPlayback marks the fallback audio path engaged.
	avatarSpeaking  bool
	backendDisabled bool
	localPlayback   bool
	errorReported   bool
	capturing       bool

	debounceInterval  time.Duration
	minStreamDuration time.Duration
	stopGraceDelay    time.Duration
	interruptCooldown time.Duration
	encoding          audio.EncodingInfo
}

func New(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		state:             StateIdle,
		runtime:           newConversationRuntime(),
		baseContext:       context.Background(),
		stopGraceDelay:    defaultStopGraceDelay,
		interruptCooldown: defaultInterruptCooldown,
		encoding:          audio.GetDefaultEncodingInfo(),
	}

	for _, opt := range opts {
		opt(o)
	}

	o.bargeIn = newBargeInCoordinator(o.interruptCooldown)
	o.batcher = newTextBatcher(o.debounceInterval, func(text string) {
		o.enqueueRun(func() { o.flushUtterance(text) })
	})
	o.assembler = newFrameAssembler(o.encoding, frameAssemblerCallbacks{
		onFrame: func(streamID string, frame []byte) {
			if dispatcher := o.dispatcher(); dispatcher != nil {
				dispatcher.Send(embodiment.SpeechAudioCommand(streamID, frame))
			}
		},
		onStreamEnd: func(streamID string) {
			if dispatcher := o.dispatcher(); dispatcher != nil {
				dispatcher.Send(embodiment.SpeechAudioEndCommand(streamID))
			}
		},
	})
	if o.minStreamDuration > 0 {
		o.assembler.minStreamDuration = o.minStreamDuration
	}

	if o.embodimentDescriptor != nil {
		o.session = embodiment.NewSession(
			*o.embodimentDescriptor,
			o.embodimentSessionCtx,
			o.sessionCallbacks(),
		)
	}

	return o
}

// Orchestrate starts the conversation loop and registers listener callbacks.
// Call it at most once per orchestrator; ctx cancellation closes the
// orchestrator.
func (o *Orchestrator) Orchestrate(ctx context.Context, opts ...OrchestrateOption) {
	if o.runtime.isClosed() {
		logger.Warn("orchestrator already closed, skipping Orchestrate")
		return
	}

	o.orchestrateOptions = OrchestrateOptions{}
	for _, opt := range opts {
		opt(&o.orchestrateOptions)
	}

	o.baseContext = ctx
	if started := o.runtime.start(o.processQueuedEvent); started {
		go func() {
			<-ctx.Done()
			o.Close()
		}()
	}
}

func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.runtime.end()
		o.runtime.awaitCompletion()

		o.stopListening()
		if o.link != nil {
			if err := o.link.Close(); err != nil {
				logger.Warn("failed to close speech-model link", "error", err)
			}
		}
		if o.session != nil {
			// Close often runs because baseContext was cancelled; the
			// teardown call still needs a live context to reach the backend.
			teardownCtx, cancel := o.teardownContext()
			o.session.Stop(teardownCtx)
			cancel()
		}

		o.mu.Lock()
		o.state = StateIdle
		o.mu.Unlock()
	})
}

// teardownContext detaches from the conversation context so backend teardown
// can still complete after that context is cancelled.
func (o *Orchestrator) teardownContext() (context.Context, context.CancelFunc) {
	base := o.baseContext
	if base == nil {
		base = context.Background()
	}
	return context.WithTimeout(context.WithoutCancel(base), 5*time.Second)
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Start begins a conversation. Valid only from Idle or Error.
func (o *Orchestrator) Start() error {
	if o.runtime.isClosed() {
		return fmt.Errorf("orchestrator closed")
	}
	if o.link == nil {
		return fmt.Errorf("no speech model configured")
	}

	if state := o.State(); state != StateIdle && state != StateError {
		return fmt.Errorf("cannot start conversation from %s", state)
	}

	o.enqueueRun(o.handleStart)
	return nil
}

// Stop ends the conversation. Calling on Idle is a no-op; teardown errors
// are swallowed and the orchestrator always ends Idle.
func (o *Orchestrator) Stop(reason string) {
	if o.State() == StateIdle {
		return
	}
	if !o.enqueueRun(func() { o.handleStop(reason) }) {
		return
	}
}

func (o *Orchestrator) Transcripts() (user, assistant string) {
	return o.transcripts.User(), o.transcripts.Assistant()
}

func (o *Orchestrator) enqueueRun(run func()) bool {
	return o.runtime.enqueue(queuedEvent{run: run})
}

func (o *Orchestrator) processQueuedEvent(item queuedEvent) {
	if item.run != nil {
		item.run()
		return
	}
	if item.event != nil {
		o.routeModelEvent(item.event)
	}
}

func (o *Orchestrator) setState(next State) {
	o.mu.Lock()
	previous := o.state
	if previous == next {
		o.mu.Unlock()
		return
	}
	o.state = next
	o.mu.Unlock()

	logger.Debug("conversation state changed",
		"from", previous.String(), "to", next.String())
	if o.orchestrateOptions.onStateChanged != nil {
		o.orchestrateOptions.onStateChanged(previous, next)
	}
}

func (o *Orchestrator) handleStart() {
	if state := o.State(); state != StateIdle && state != StateError {
		logger.Warn("ignoring start", "state", state.String())
		return
	}

	o.transcripts.Clear()
	o.assembler.Clear()
	o.batcher.Interrupt()
	o.bargeIn.Cancel()
	o.avatarSpeaking = false
	o.backendDisabled = false
	o.localPlayback = false
	o.errorReported = false

	o.setState(StateConnecting)

	ctx := o.baseContext
	go func() {
		ctx, span := tracer.Start(ctx, "start conversation")
		defer span.End()

		if o.session != nil {
			if err := o.session.Start(ctx, o.embodimentID); err != nil {
				err = fmt.Errorf("failed to start embodiment session: %w", err)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				o.enqueueRun(func() { o.enterError(err) })
				return
			}
		}

		if err := o.link.Connect(ctx, speechmodel.Callbacks{
			OnEvent: func(event events.Event) {
				o.runtime.enqueue(queuedEvent{event: event})
			},
		}); err != nil {
			err = fmt.Errorf("failed to connect speech model: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.enqueueRun(func() { o.enterError(err) })
		}
	}()
}

func (o *Orchestrator) handleStop(reason string) {
	state := o.State()
	if state == StateIdle || state == StateDisconnecting {
		return
	}

	logger.Info("stopping conversation", "reason", reason)
	o.setState(StateDisconnecting)

	o.stopListening()
	o.assembler.Clear()
	o.batcher.Interrupt()
	o.bargeIn.Cancel()
	o.transcripts.DropResponse()

	dispatcher := o.dispatcher()
	go func() {
		if o.link != nil {
			if err := o.link.Close(); err != nil {
				logger.Warn("failed to close speech-model link", "error", err)
			}
		}

		// Grace period so the backend can drain in-flight speech before the
		// neutral reset.
		time.Sleep(o.stopGraceDelay)
		if dispatcher != nil {
			dispatcher.Send(embodiment.NeutralCommand())
		}
		if o.session != nil {
			teardownCtx, cancel := o.teardownContext()
			o.session.Stop(teardownCtx)
			cancel()
		}
		if o.audioOutput != nil {
			if err := o.audioOutput.StopPlayback(); err != nil {
				logger.Debug("failed to stop local playback", "error", err)
			}
		}

		if !o.enqueueRun(func() { o.setState(StateIdle) }) {
			o.mu.Lock()
			o.state = StateIdle
			o.mu.Unlock()
		}
	}()
}

func (o *Orchestrator) routeModelEvent(event events.Event) {
	switch event := event.(type) {
	case events.SessionCreated:
		if o.State() != StateConnecting {
			logger.Warn("unexpected session.created", "state", o.State().String())
			return
		}
		o.setState(StateConfiguring)
		go func() {
			if err := o.link.ConfigureSession(speechmodel.SessionConfig{
				Instructions:    o.instructions,
				Voice:           o.voice,
				Tools:           o.toolDefinitions(),
				InputSampleRate: o.encoding.SampleRate,
			}); err != nil {
				o.enqueueRun(func() {
					o.enterError(fmt.Errorf("failed to configure model session: %w", err))
				})
			}
		}()

	case events.SessionUpdated:
		if o.State() != StateConfiguring {
			return
		}
		o.setState(StateReady)
		o.startListening()

	case events.SpeechStarted:
		o.handleRemoteSpeechStarted()

	case events.SpeechStopped:
		if o.State() == StateListening {
			o.setState(StateProcessing)
		}

	case events.UserTranscript:
		if o.avatarSpeaking {
			// Self-echo from the embodiment's audio loop.
			logger.Debug("dropping transcript while avatar speaking")
			return
		}
		o.transcripts.AppendUser(event.Transcript)
		if o.orchestrateOptions.onTranscript != nil {
			o.orchestrateOptions.onTranscript(event.Transcript, true)
		}

	case events.TextDelta:
		o.markResponding()
		o.transcripts.AppendResponseDelta(event.Delta)
		o.batcher.AddDelta(event.Delta)

	case events.TextDone:
		o.batcher.ForceFlush()

	case events.AudioDelta:
		o.markResponding()
		o.forwardResponseAudio(event.Audio)

	case events.AudioDone:
		if !o.useLocalAudio() {
			o.assembler.Complete()
		}

	case events.ResponseDone:
		o.batcher.ForceFlush()
		if text := o.transcripts.FinishResponse(); text != "" {
			if o.orchestrateOptions.onTranscript != nil {
				o.orchestrateOptions.onTranscript(text, false)
			}
		}
		if state := o.State(); state == StateSpeaking || state == StateExecutingFunction || state == StateProcessing {
			o.setState(StateReady)
		}

	case events.FunctionCallDone:
		o.handleFunctionCall(event)

	case events.ModelError:
		o.enterError(fmt.Errorf("speech model error: %s", event.Message))

	default:
		logger.Debug("unhandled model event", "kind", string(event.Kind()))
	}
}

// markResponding moves Processing into Speaking on the first output delta of
// a response. Backend speak-started notifications force Speaking as well,
// whichever arrives first.
func (o *Orchestrator) markResponding() {
	if o.State() == StateProcessing {
		o.setState(StateSpeaking)
	}
}

func (o *Orchestrator) handleRemoteSpeechStarted() {
	if o.avatarSpeaking {
		// The model hears the embodiment through the shared audio loop; its
		// speech-start is not the user.
		return
	}
	switch o.State() {
	case StateSpeaking:
		o.performBargeIn()
		o.setState(StateListening)
	case StateReady, StateListening:
		o.setState(StateListening)
	}
}

func (o *Orchestrator) handleLocalSpeechStarted() {
	switch o.State() {
	case StateSpeaking:
		o.performBargeIn()
		o.setState(StateListening)
	case StateReady, StateListening:
		o.setState(StateListening)
	}
}

func (o *Orchestrator) handleLocalSpeechEnded() {
	if o.State() == StateListening {
		o.setState(StateProcessing)
	}
}

// performBargeIn cancels all in-flight output. Order matters: claim the
// guard, drop buffered output without end signals, interrupt the backend,
// then cancel the model response.
func (o *Orchestrator) performBargeIn() {
	if !o.bargeIn.TryBegin() {
		return
	}

	o.assembler.Clear()
	o.batcher.Interrupt()
	o.transcripts.DropResponse()
	if o.localPlayback && o.audioOutput != nil {
		o.audioOutput.ClearBuffer()
	}

	if dispatcher := o.dispatcher(); dispatcher != nil {
		dispatcher.Send(embodiment.InterruptCommand())
	}
	go func() {
		if err := o.link.CancelResponse(); err != nil {
			logger.Warn("failed to cancel model response", "error", err)
		}
	}()

	o.bargeIn.Release()
}

func (o *Orchestrator) handleFunctionCall(call events.FunctionCallDone) {
	if isGestureCall(call.Name) {
		// Fire-and-forget embodiment side effect; no state change.
		if dispatcher := o.dispatcher(); dispatcher != nil {
			dispatcher.Send(embodiment.GestureCommand(gestureName(call.Name)))
		}
		go func() {
			if err := o.link.SubmitFunctionResult(call.CallID, `{"status":"performed"}`); err != nil {
				logger.Warn("failed to submit gesture result", "error", err)
			}
		}()
		return
	}

	o.setState(StateExecutingFunction)
	go func() {
		output, err := o.callTool(o.baseContext, call.Name, call.Arguments)
		o.enqueueRun(func() { o.finishFunctionCall(call.CallID, output, err) })
	}()
}

func (o *Orchestrator) finishFunctionCall(callID, output string, callErr error) {
	if callErr != nil {
		output = fmt.Sprintf(`{"error":%q}`, callErr.Error())
	}
	go func() {
		if err := o.link.SubmitFunctionResult(callID, output); err != nil {
			logger.Warn("failed to submit function result", "error", err)
		}
	}()
	if o.State() == StateExecutingFunction {
		o.setState(StateReady)
	}
}

func (o *Orchestrator) enterError(err error) {
	state := o.State()
	if state == StateIdle || state == StateDisconnecting {
		logger.Warn("error outside active conversation", "error", err)
		return
	}

	o.setState(StateError)
	o.stopListening()
	o.assembler.Clear()
	o.batcher.Interrupt()
	o.bargeIn.Cancel()

	if !o.errorReported {
		o.errorReported = true
		if o.orchestrateOptions.onError != nil {
			o.orchestrateOptions.onError(err)
		}
	}
}

// handleBackendError disables the embodiment backend for the rest of the
// conversation and, when local playback is configured, re-routes response
// audio to it.
func (o *Orchestrator) handleBackendError(message string) {
	o.backendDisabled = true
	o.avatarSpeaking = false
	if o.audioOutput != nil && !o.localPlayback {
		o.localPlayback = true
		go func() {
			if err := o.audioOutput.StartPlayback(o.baseContext); err != nil {
				logger.Warn("failed to start fallback playback", "error", err)
			}
		}()
	}
	if o.orchestrateOptions.onAvatarError != nil {
		o.orchestrateOptions.onAvatarError(message)
	}
}

func (o *Orchestrator) forwardResponseAudio(chunk []byte) {
	if o.useLocalAudio() {
		if o.audioOutput != nil {
			if err := o.audioOutput.SendAudio(chunk); err != nil {
				logger.Debug("failed to queue local audio", "error", err)
			}
		}
		return
	}
	o.assembler.AddDelta(chunk)
}

func (o *Orchestrator) useLocalAudio() bool {
	if o.localPlayback || o.backendDisabled {
		return true
	}
	return o.session == nil || !o.session.DirectAudioAvailable()
}

// dispatcher returns the active command dispatcher, or nil when no backend
// is usable.
func (o *Orchestrator) dispatcher() *embodiment.Dispatcher {
	if o.session == nil || o.backendDisabled {
		return nil
	}
	return o.session.Dispatcher()
}

func (o *Orchestrator) flushUtterance(text string) {
	dispatcher := o.dispatcher()
	if dispatcher == nil || o.session.Mode() != embodiment.ModeManaged {
		return
	}
	dispatcher.Send(embodiment.SpeakTextCommand(text))
}

func (o *Orchestrator) sessionCallbacks() embodiment.SessionCallbacks {
	return embodiment.SessionCallbacks{
		OnSpeakStarted: func() {
			o.enqueueRun(func() {
				o.avatarSpeaking = true
				if o.State().IsActive() {
					o.setState(StateSpeaking)
				}
			})
		},
		OnSpeakEnded: func() {
			o.enqueueRun(func() {
				o.avatarSpeaking = false
				if o.State() == StateSpeaking {
					o.setState(StateReady)
				}
			})
		},
		OnUserSpeechDetected: func() {
			o.enqueueRun(o.handleLocalSpeechStarted)
		},
		OnVideoReady: func() {
			o.enqueueRun(func() {
				if o.orchestrateOptions.onAvatarVideoReady != nil {
					o.orchestrateOptions.onAvatarVideoReady()
				}
			})
		},
		OnError: func(err error) {
			o.enqueueRun(func() { o.enterError(err) })
		},
		OnBackendError: func(message string) {
			o.enqueueRun(func() { o.handleBackendError(message) })
		},
	}
}

func (o *Orchestrator) startListening() {
	if o.capturing {
		return
	}

	if o.vadClient != nil {
		if err := o.vadClient.Listen(o.baseContext,
			vad.WithEncodingInfo(o.encoding),
			vad.WithSpeechStartedCallback(func() {
				o.enqueueRun(o.handleLocalSpeechStarted)
			}),
			vad.WithSpeechEndedCallback(func() {
				o.enqueueRun(o.handleLocalSpeechEnded)
			}),
			vad.WithInterimTranscriptCallback(func(transcript string) {
				if o.orchestrateOptions.onInterimTranscript != nil {
					o.orchestrateOptions.onInterimTranscript(transcript)
				}
			}),
		); err != nil {
			logger.Warn("failed to start local voice-activity detection", "error", err)
		}
	}

	if o.audioInput != nil {
		if err := o.audioInput.StartCapture(o.baseContext, o.onMicrophoneAudio); err != nil {
			o.enterError(fmt.Errorf("failed to start audio capture: %w", err))
			return
		}
	}
	o.capturing = true
}

func (o *Orchestrator) stopListening() {
	if !o.capturing {
		return
	}
	o.capturing = false

	if o.audioInput != nil {
		if err := o.audioInput.StopCapture(); err != nil {
			logger.Debug("failed to stop audio capture", "error", err)
		}
	}
	if o.vadClient != nil {
		if err := o.vadClient.StopStream(); err != nil {
			logger.Debug("failed to stop voice-activity stream", "error", err)
		}
	}
}

// onMicrophoneAudio runs on the capture device's thread. The link and VAD
// clients guard their own writes; no loop marshaling needed here.
func (o *Orchestrator) onMicrophoneAudio(chunk []byte) {
	if !o.State().IsActive() {
		return
	}

	if o.orchestrateOptions.onAudioLevel != nil {
		o.orchestrateOptions.onAudioLevel(computeAudioLevel(chunk))
	}

	if err := o.link.AppendAudio(chunk); err != nil {
		logger.Debug("failed to forward microphone audio", "error", err)
	}
	if o.vadClient != nil {
		if err := o.vadClient.SendAudio(chunk); err != nil {
			logger.Debug("failed to forward audio to vad", "error", err)
		}
	}
}

// computeAudioLevel returns the RMS level of a PCM16LE mono chunk in [0, 1].
func computeAudioLevel(chunk []byte) float64 {
	sampleCount := len(chunk) / 2
	if sampleCount == 0 {
		return 0
	}

	var sum float64
	for i := 0; i+1 < len(chunk); i += 2 {
		sample := float64(int16(binary.LittleEndian.Uint16(chunk[i:])))
		sum += sample * sample
	}
	return math.Sqrt(sum/float64(sampleCount)) / math.MaxInt16
}

func isGestureCall(name string) bool {
	return strings.HasPrefix(name, gestureToolPrefix) && name != gestureToolPrefix
}

func gestureName(name string) string {
	return strings.TrimPrefix(name, gestureToolPrefix)
}
