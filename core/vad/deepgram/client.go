// Package deepgram provides a voice-activity detection client backed by
// Deepgram's streaming listen API. Speech-start and speech-end events drive
// barge-in; transcripts are a side product used for interim captions.
package deepgram

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/embodielabs/presence-core/core/vad"
)

type Client struct {
	connMu sync.Mutex
	conn   *websocket.Conn

	lastMsgTs time.Time

	unendedSegment        bool
	accumulatedTranscript string
}

func NewClient() *Client {
	return &Client{}
}

type listenCallbacks struct {
	interimTranscriptionCallback func(transcript string)
	transcriptionCallback        func(transcript string)

	startSpeechCallback func()
	endSpeechCallback   func()
}

type websocketConfig struct {
	shouldDetectSpeechStart            bool
	shouldEnhanceSpeechEndingDetection bool
	shouldRequestInterimResults        bool
}

// newCallbackConfig normalizes listen options into always-callable callbacks
// and the websocket feature flags they imply.
func newCallbackConfig(options vad.ListenOptions) (listenCallbacks, websocketConfig) {
	wsConfig := websocketConfig{
		shouldDetectSpeechStart: options.SpeechStartedCallback != nil,
		shouldEnhanceSpeechEndingDetection: options.TranscriptCallback != nil ||
			options.SpeechEndedCallback != nil,
		shouldRequestInterimResults: options.InterimTranscriptCallback != nil,
	}

	callbacks := listenCallbacks{
		interimTranscriptionCallback: options.InterimTranscriptCallback,
		transcriptionCallback:        options.TranscriptCallback,
		startSpeechCallback:          options.SpeechStartedCallback,
		endSpeechCallback:            options.SpeechEndedCallback,
	}
	if callbacks.interimTranscriptionCallback == nil {
		callbacks.interimTranscriptionCallback = func(string) {}
	}
	if callbacks.transcriptionCallback == nil {
		callbacks.transcriptionCallback = func(string) {}
	}
	if callbacks.startSpeechCallback == nil {
		callbacks.startSpeechCallback = func() {}
	}
	if callbacks.endSpeechCallback == nil {
		callbacks.endSpeechCallback = func() {}
	}

	return callbacks, wsConfig
}
