package events

const (
	KindAudioDelta Kind = "audio.delta"
	KindAudioDone  Kind = "audio.done"
)

// AudioDelta carries one decoded chunk of response audio. The payload is
// little-endian 16-bit signed PCM, mono; chunk sizes follow whatever the
// model emitted and carry no framing guarantees.
type AudioDelta struct {
	Base
	Audio []byte
}

func (e AudioDelta) String() string { return "Audio Delta" }

func NewAudioDelta(audio []byte) AudioDelta {
	return AudioDelta{Base: NewBase(KindAudioDelta), Audio: audio}
}

type AudioDone struct{ Base }

func (e AudioDone) String() string { return "Audio Done" }

func NewAudioDone() AudioDone {
	return AudioDone{Base: NewBase(KindAudioDone)}
}
