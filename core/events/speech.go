package events

const (
	KindSpeechStarted Kind = "speech.started"
	KindSpeechStopped Kind = "speech.stopped"
)

// SpeechStarted reports that the model's server-side voice-activity
// detection heard the user start speaking.
type SpeechStarted struct{ Base }

func (e SpeechStarted) String() string { return "Speech Started" }

func NewSpeechStarted() SpeechStarted {
	return SpeechStarted{Base: NewBase(KindSpeechStarted)}
}

type SpeechStopped struct{ Base }

func (e SpeechStopped) String() string { return "Speech Stopped" }

func NewSpeechStopped() SpeechStopped {
	return SpeechStopped{Base: NewBase(KindSpeechStopped)}
}
