package embodiment

import "encoding/base64"

// Wire command kinds understood by embodiment backends.
const (
	CommandSpeechAudio    = "speech_audio"
	CommandSpeechAudioEnd = "speech_audio_end"
	CommandSpeakText      = "speak_text"
	CommandInterrupt      = "interrupt"
	CommandGesture        = "gesture"
	CommandNeutral        = "neutral"
	commandKeepAlive      = "ping"
)

// Backend event kinds arriving over either channel.
const (
	eventSpeakingStarted    = "speaking_started"
	eventSpeakingStopped    = "speaking_stopped"
	eventUserSpeechDetected = "user_speech_detected"
	eventBackendError       = "error"
)

// SpeechAudioCommand carries one fixed-duration audio frame of an utterance
// stream. The payload is base64 little-endian 16-bit PCM, mono.
func SpeechAudioCommand(streamID string, frame []byte) Command {
	return Command{
		Kind: CommandSpeechAudio,
		Payload: map[string]any{
			"stream_id": streamID,
			"audio":     base64.StdEncoding.EncodeToString(frame),
		},
	}
}

// SpeechAudioEndCommand terminates an utterance stream.
func SpeechAudioEndCommand(streamID string) Command {
	return Command{
		Kind:    CommandSpeechAudioEnd,
		Payload: map[string]any{"stream_id": streamID},
	}
}

// SpeakTextCommand asks a managed backend to synthesize and speak text.
func SpeakTextCommand(text string) Command {
	return Command{
		Kind:       CommandSpeakText,
		Payload:    map[string]any{"text": text},
		Preference: ConventionBroadcast,
	}
}

// InterruptCommand cancels whatever the backend is currently speaking.
func InterruptCommand() Command {
	return Command{Kind: CommandInterrupt}
}

// GestureCommand triggers a named gesture or motion.
func GestureCommand(name string) Command {
	return Command{
		Kind:    CommandGesture,
		Payload: map[string]any{"name": name},
	}
}

// NeutralCommand resets the embodiment to its neutral pose/expression.
func NeutralCommand() Command {
	return Command{Kind: CommandNeutral}
}

func keepAliveCommand() Command {
	return Command{Kind: commandKeepAlive}
}
