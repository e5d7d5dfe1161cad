// Package vad defines the contract for local voice-activity detection over
// the microphone stream. Detection runs alongside the speech model's own
// turn detection and feeds the orchestrator's barge-in path.
package vad

import "github.com/embodielabs/presence-core/core/audio"

type ListenOptions struct {
	InterimTranscriptCallback func(transcript string)
	TranscriptCallback        func(transcript string)

	SpeechStartedCallback func()
	SpeechEndedCallback   func()

	EncodingInfo audio.EncodingInfo
}

type ListenOption func(*ListenOptions)

func WithTranscriptCallback(callback func(transcript string)) ListenOption {
	return func(o *ListenOptions) {
		o.TranscriptCallback = callback
	}
}

func WithInterimTranscriptCallback(callback func(transcript string)) ListenOption {
	return func(o *ListenOptions) {
		o.InterimTranscriptCallback = callback
	}
}

func WithSpeechStartedCallback(callback func()) ListenOption {
	return func(o *ListenOptions) {
		o.SpeechStartedCallback = callback
	}
}

func WithSpeechEndedCallback(callback func()) ListenOption {
	return func(o *ListenOptions) {
		o.SpeechEndedCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) ListenOption {
	return func(o *ListenOptions) {
		o.EncodingInfo = encodingInfo
	}
}
