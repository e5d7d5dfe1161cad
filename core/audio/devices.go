package audio

import "context"

// InputDevice captures microphone audio and hands raw chunks to a single
// listener. Chunk sizes are device-driven; callers needing fixed frames must
// re-slice downstream.
type InputDevice interface {
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
	EncodingInfo() EncodingInfo
}

// OutputDevice plays response audio locally. It is the fallback speech path
// when no embodiment backend can take the audio stream.
type OutputDevice interface {
	StartPlayback(ctx context.Context) error
	StopPlayback() error
	SendAudio(audio []byte) error
	ClearBuffer()
	AwaitMark() error
	EncodingInfo() EncodingInfo
}
