package orchestration

import (
	"context"
	"time"

	"github.com/embodielabs/presence-core/core/audio"
	"github.com/embodielabs/presence-core/core/embodiment"
	"github.com/embodielabs/presence-core/core/speechmodel"
	"github.com/embodielabs/presence-core/core/vad"
)

type OrchestratorOption func(*Orchestrator)

func WithSpeechModel(link speechmodel.Link) OrchestratorOption {
	return func(o *Orchestrator) {
		o.link = link
	}
}

// WithEmbodiment selects the backend the conversation drives. The session is
// owned by the orchestrator and started/stopped with the conversation.
func WithEmbodiment(descriptor embodiment.Descriptor, sessionCtx embodiment.SessionContext, embodimentID string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.embodimentDescriptor = &descriptor
		o.embodimentSessionCtx = sessionCtx
		o.embodimentID = embodimentID
	}
}

type LocalVAD interface {
	Listen(ctx context.Context, opts ...vad.ListenOption) error
	SendAudio(audio []byte) error
	StopStream() error
}

// WithLocalVAD enables local voice-activity detection alongside the model's
// own turn detection. Optional; model-side detection alone is supported.
func WithLocalVAD(client LocalVAD) OrchestratorOption {
	return func(o *Orchestrator) {
		o.vadClient = client
	}
}

func WithAudioInput(device audio.InputDevice) OrchestratorOption {
	return func(o *Orchestrator) {
		o.audioInput = device
	}
}

// WithAudioOutput configures local playback, used as the fallback speech
// path when the embodiment backend reports an error mid-conversation.
func WithAudioOutput(device audio.OutputDevice) OrchestratorOption {
	return func(o *Orchestrator) {
		o.audioOutput = device
	}
}

func WithTools(tools ...Tool) OrchestratorOption {
	return func(o *Orchestrator) {
		o.tools = append(o.tools, tools...)
	}
}

func WithInstructions(instructions string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.instructions = instructions
	}
}

func WithVoice(voice string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.voice = voice
	}
}

func WithDebounceInterval(interval time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.debounceInterval = interval
	}
}

func WithMinStreamDuration(duration time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.minStreamDuration = duration
	}
}

func WithStopGraceDelay(delay time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.stopGraceDelay = delay
	}
}

func WithInterruptCooldown(cooldown time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.interruptCooldown = cooldown
	}
}

type OrchestrateOptions struct {
	onStateChanged      func(previous, current State)
	onTranscript        func(text string, isUser bool)
	onInterimTranscript func(text string)
	onError             func(err error)
	onAudioLevel        func(level float64)
	onAvatarVideoReady  func()
	onAvatarError       func(message string)
}

type OrchestrateOption func(*OrchestrateOptions)

func WithStateChangedCallback(callback func(previous, current State)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onStateChanged = callback
	}
}

func WithTranscriptCallback(callback func(text string, isUser bool)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onTranscript = callback
	}
}

func WithInterimTranscriptCallback(callback func(text string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onInterimTranscript = callback
	}
}

func WithErrorCallback(callback func(err error)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onError = callback
	}
}

func WithAudioLevelCallback(callback func(level float64)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onAudioLevel = callback
	}
}

func WithAvatarVideoReadyCallback(callback func()) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onAvatarVideoReady = callback
	}
}

func WithAvatarErrorCallback(callback func(message string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onAvatarError = callback
	}
}
