package openairt

import (
	"encoding/base64"
	"encoding/json"
	"log"

	"github.com/embodielabs/presence-core/core/events"
)

type serverEvent struct {
	Type string `json:"type"`

	Session struct {
		ID string `json:"id"`
	} `json:"session"`

	Response struct {
		ID string `json:"id"`
	} `json:"response"`

	Delta      string `json:"delta"`
	Transcript string `json:"transcript"`

	Name      string `json:"name"`
	CallID    string `json:"call_id"`
	Arguments string `json:"arguments"`

	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// parseServerEvent maps one wire message to a typed event. Unknown and
// malformed messages are dropped after logging so one odd frame cannot stall
// the stream.
func parseServerEvent(msg []byte) (events.Event, bool) {
	var wire serverEvent
	if err := json.Unmarshal(msg, &wire); err != nil {
		log.Println("Failed to parse realtime model event", "error", err)
		return nil, false
	}

	switch wire.Type {
	case "session.created":
		return events.NewSessionCreated(wire.Session.ID), true
	case "session.updated":
		return events.NewSessionUpdated(), true
	case "input_audio_buffer.speech_started":
		return events.NewSpeechStarted(), true
	case "input_audio_buffer.speech_stopped":
		return events.NewSpeechStopped(), true
	case "conversation.item.input_audio_transcription.completed":
		return events.NewUserTranscript(wire.Transcript), true
	case "response.audio_transcript.delta", "response.text.delta":
		return events.NewTextDelta(wire.Delta), true
	case "response.audio_transcript.done":
		return events.NewTextDone(wire.Transcript), true
	case "response.text.done":
		return events.NewTextDone(wire.Transcript), true
	case "response.audio.delta":
		audio, err := base64.StdEncoding.DecodeString(wire.Delta)
		if err != nil {
			log.Println("Failed to decode response audio chunk", "error", err)
			return nil, false
		}
		return events.NewAudioDelta(audio), true
	case "response.audio.done":
		return events.NewAudioDone(), true
	case "response.done":
		return events.NewResponseDone(wire.Response.ID), true
	case "response.function_call_arguments.done":
		return events.NewFunctionCallDone(wire.Name, wire.CallID, wire.Arguments), true
	case "error":
		return events.NewModelError(wire.Error.Code, wire.Error.Message), true
	default:
		return nil, false
	}
}

func transportErrorEvent(err error) events.Event {
	return events.NewModelError("transport_closed", err.Error())
}
