package openairt

import (
	"encoding/base64"

	"github.com/google/uuid"

	"github.com/embodielabs/presence-core/core/speechmodel"
)

func sessionUpdatePayload(config speechmodel.SessionConfig) map[string]any {
	session := map[string]any{
		"modalities":         []string{"text", "audio"},
		"input_audio_format": "pcm16",
		"input_audio_transcription": map[string]any{
			"model": "whisper-1",
		},
		"turn_detection": map[string]any{
			"type": "server_vad",
		},
	}
	if config.Instructions != "" {
		session["instructions"] = config.Instructions
	}
	if config.Voice != "" {
		session["voice"] = config.Voice
	}
	if len(config.Tools) > 0 {
		tools := make([]map[string]any, 0, len(config.Tools))
		for _, tool := range config.Tools {
			tools = append(tools, map[string]any{
				"type":        "function",
				"name":        tool.Name,
				"description": tool.Description,
				"parameters":  tool.Parameters,
			})
		}
		session["tools"] = tools
	}

	return map[string]any{
		"type":     "session.update",
		"event_id": uuid.NewString(),
		"session":  session,
	}
}

func audioAppendPayload(audio []byte) map[string]any {
	return map[string]any{
		"type":  "input_audio_buffer.append",
		"audio": base64.StdEncoding.EncodeToString(audio),
	}
}

func functionOutputPayload(callID, output string) map[string]any {
	return map[string]any{
		"type":     "conversation.item.create",
		"event_id": uuid.NewString(),
		"item": map[string]any{
			"type":    "function_call_output",
			"call_id": callID,
			"output":  output,
		},
	}
}

func responseCreatePayload() map[string]any {
	return map[string]any{
		"type":     "response.create",
		"event_id": uuid.NewString(),
	}
}

func responseCancelPayload() map[string]any {
	return map[string]any{
		"type":     "response.cancel",
		"event_id": uuid.NewString(),
	}
}
