package orchestration

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/embodielabs/presence-core/core/audio"
)

const (
	defaultFrameDuration     = 20 * time.Millisecond
	defaultMinStreamDuration = 300 * time.Millisecond
)

type frameAssemblerCallbacks struct {
	// onFrame receives every assembled frame. All frames except possibly the
	// last one of a stream have exactly frameSize bytes.
	onFrame func(streamID string, frame []byte)
	// onStreamEnd receives the end signal, after any silence padding.
	onStreamEnd func(streamID string)
}

// frameAssembler re-chunks arbitrarily sized audio deltas into fixed-duration
// frames grouped under one stream id. Remainders stay buffered until a full
// frame accumulates or the stream completes; streams shorter than the minimum
// duration are padded with silence frames before the end signal, because the
// remote lip-sync engine ignores end signals for streams below its threshold.
type frameAssembler struct {
	mu sync.Mutex

	encodingInfo      audio.EncodingInfo
	frameDuration     time.Duration
	minStreamDuration time.Duration
	callbacks         frameAssemblerCallbacks

	streamID      string
	buffer        []byte
	framesEmitted int
	bytesEmitted  int
	paddingBytes  int
}

func newFrameAssembler(encodingInfo audio.EncodingInfo, callbacks frameAssemblerCallbacks) *frameAssembler {
	return &frameAssembler{
		encodingInfo:      encodingInfo,
		frameDuration:     defaultFrameDuration,
		minStreamDuration: defaultMinStreamDuration,
		callbacks:         callbacks,
	}
}

func (a *frameAssembler) frameSize() int {
	return a.encodingInfo.BytesFor(a.frameDuration)
}

// AddDelta buffers one audio delta and emits every full frame it completes.
// The first delta of a new utterance mints a fresh stream id.
func (a *frameAssembler) AddDelta(delta []byte) {
	a.mu.Lock()
	if a.streamID == "" {
		a.streamID = uuid.NewString()
		a.framesEmitted = 0
		a.bytesEmitted = 0
		a.paddingBytes = 0
	}
	streamID := a.streamID

	a.buffer = append(a.buffer, delta...)

	frameSize := a.frameSize()
	var frames [][]byte
	for len(a.buffer) >= frameSize {
		frame := make([]byte, frameSize)
		copy(frame, a.buffer[:frameSize])
		a.buffer = a.buffer[frameSize:]
		a.framesEmitted++
		a.bytesEmitted += frameSize
		frames = append(frames, frame)
	}
	onFrame := a.callbacks.onFrame
	a.mu.Unlock()

	if onFrame != nil {
		for _, frame := range frames {
			onFrame(streamID, frame)
		}
	}
}

// Complete flushes any buffered remainder as a terminal short frame, pads the
// stream with silence up to the minimum duration, and emits the end signal.
// Calling Complete without ever receiving a delta is a no-op.
func (a *frameAssembler) Complete() {
	a.mu.Lock()
	if a.streamID == "" {
		a.mu.Unlock()
		return
	}
	streamID := a.streamID

	var frames [][]byte
	if len(a.buffer) > 0 {
		frame := make([]byte, len(a.buffer))
		copy(frame, a.buffer)
		a.buffer = nil
		a.framesEmitted++
		a.bytesEmitted += len(frame)
		frames = append(frames, frame)
	}

	frameSize := a.frameSize()
	silence := a.encodingInfo.SilenceValue()
	for a.encodingInfo.Duration(a.bytesEmitted+a.paddingBytes) < a.minStreamDuration {
		frame := make([]byte, frameSize)
		for i := range frame {
			frame[i] = silence
		}
		a.paddingBytes += frameSize
		a.framesEmitted++
		frames = append(frames, frame)
	}

	a.streamID = ""
	a.buffer = nil
	onFrame := a.callbacks.onFrame
	onStreamEnd := a.callbacks.onStreamEnd
	a.mu.Unlock()

	if onFrame != nil {
		for _, frame := range frames {
			onFrame(streamID, frame)
		}
	}
	if onStreamEnd != nil {
		onStreamEnd(streamID)
	}
}

// Clear discards buffered audio and forgets the open stream without emitting
// anything. An interrupted stream must not receive a dangling end signal.
func (a *frameAssembler) Clear() {
	a.mu.Lock()
	a.streamID = ""
	a.buffer = nil
	a.framesEmitted = 0
	a.bytesEmitted = 0
	a.paddingBytes = 0
	a.mu.Unlock()
}

func (a *frameAssembler) StreamID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.streamID
}

func (a *frameAssembler) BufferedBytes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffer)
}

// Stats returns diagnostic counters for the current or just-finished stream.
func (a *frameAssembler) Stats() (frames, bytes, padding int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.framesEmitted, a.bytesEmitted, a.paddingBytes
}
