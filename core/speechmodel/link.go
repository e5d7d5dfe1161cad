// Package speechmodel defines the contract between the orchestrator and a
// realtime speech model. Implementations live in vendor subpackages.
package speechmodel

import (
	"context"

	"github.com/embodielabs/presence-core/core/events"
)

// Callbacks delivers the model's event stream. OnEvent receives every
// recognized event in arrival order; implementations drop unrecognized wire
// events after logging them.
type Callbacks struct {
	OnEvent func(event events.Event)
}

// ToolDefinition describes one function the model may call. Parameters is a
// JSON-schema document for the argument object.
type ToolDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters"`
}

// SessionConfig is the model-side session configuration sent once the
// session is created.
type SessionConfig struct {
	Instructions string
	Voice        string
	Tools        []ToolDefinition
	// InputSampleRate is the PCM sample rate of appended audio; zero means
	// the implementation default.
	InputSampleRate int
}

// Link is a live connection to a realtime speech model.
type Link interface {
	// Connect opens the connection and starts delivering events. Call once.
	Connect(ctx context.Context, callbacks Callbacks) error

	// ConfigureSession sends instructions, voice, and tool schemas.
	ConfigureSession(config SessionConfig) error

	// AppendAudio streams one chunk of user microphone audio to the model.
	AppendAudio(audio []byte) error

	// SubmitFunctionResult returns a function-call result and asks the model
	// to continue the response.
	SubmitFunctionResult(callID, output string) error

	// CancelResponse interrupts the in-flight model response.
	CancelResponse() error

	Close() error
}
