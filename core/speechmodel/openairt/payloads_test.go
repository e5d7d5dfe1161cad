package openairt

import (
	"encoding/base64"
	"testing"

	"github.com/embodielabs/presence-core/core/speechmodel"
)

func TestSessionUpdatePayloadIncludesConfiguredFields(t *testing.T) {
	payload := sessionUpdatePayload(speechmodel.SessionConfig{
		Instructions: "be brief",
		Voice:        "alloy",
		Tools: []speechmodel.ToolDefinition{
			{Name: "current_time", Description: "Returns the time"},
		},
	})

	if payload["type"] != "session.update" {
		t.Fatalf("unexpected type %v", payload["type"])
	}
	if id, ok := payload["event_id"].(string); !ok || id == "" {
		t.Fatalf("expected non-empty event_id")
	}

	session := payload["session"].(map[string]any)
	if session["instructions"] != "be brief" || session["voice"] != "alloy" {
		t.Fatalf("unexpected session fields %v", session)
	}
	tools := session["tools"].([]map[string]any)
	if len(tools) != 1 || tools[0]["name"] != "current_time" || tools[0]["type"] != "function" {
		t.Fatalf("unexpected tools %v", tools)
	}
}

func TestSessionUpdatePayloadOmitsEmptyFields(t *testing.T) {
	payload := sessionUpdatePayload(speechmodel.SessionConfig{})
	session := payload["session"].(map[string]any)

	for _, field := range []string{"instructions", "voice", "tools"} {
		if _, ok := session[field]; ok {
			t.Fatalf("expected %q omitted when unset", field)
		}
	}
}

func TestAudioAppendPayloadEncodesBase64(t *testing.T) {
	pcm := []byte{0x10, 0x20, 0x30}
	payload := audioAppendPayload(pcm)

	if payload["type"] != "input_audio_buffer.append" {
		t.Fatalf("unexpected type %v", payload["type"])
	}
	if payload["audio"] != base64.StdEncoding.EncodeToString(pcm) {
		t.Fatalf("unexpected audio encoding %v", payload["audio"])
	}
}
