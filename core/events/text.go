package events

const (
	KindTextDelta      Kind = "text.delta"
	KindTextDone       Kind = "text.done"
	KindUserTranscript Kind = "transcript.user"
)

type TextDelta struct {
	Base
	Delta string
}

func (e TextDelta) String() string { return e.Delta }

func NewTextDelta(delta string) TextDelta {
	return TextDelta{Base: NewBase(KindTextDelta), Delta: delta}
}

type TextDone struct {
	Base
	Text string
}

func (e TextDone) String() string { return e.Text }

func NewTextDone(text string) TextDone {
	return TextDone{Base: NewBase(KindTextDone), Text: text}
}

// UserTranscript carries the finalized transcription of a completed user
// utterance, as transcribed by the model side.
type UserTranscript struct {
	Base
	Transcript string
}

func (e UserTranscript) String() string { return e.Transcript }

func NewUserTranscript(transcript string) UserTranscript {
	return UserTranscript{Base: NewBase(KindUserTranscript), Transcript: transcript}
}
