package orchestration

import (
	"bytes"
	"testing"
	"time"

	"github.com/embodielabs/presence-core/core/audio"
)

type recordedFrame struct {
	streamID string
	frame    []byte
}

type frameRecorder struct {
	frames []recordedFrame
	ends   []string
}

func (r *frameRecorder) callbacks() frameAssemblerCallbacks {
	return frameAssemblerCallbacks{
		onFrame: func(streamID string, frame []byte) {
			r.frames = append(r.frames, recordedFrame{streamID: streamID, frame: frame})
		},
		onStreamEnd: func(streamID string) {
			r.ends = append(r.ends, streamID)
		},
	}
}

func TestFrameAssemblerSlicesExactFrames(t *testing.T) {
	recorder := &frameRecorder{}
	assembler := newFrameAssembler(audio.GetDefaultEncodingInfo(), recorder.callbacks())
	frameSize := assembler.frameSize()
	if frameSize != 960 {
		t.Fatalf("expected 960-byte frames at 24kHz/20ms, got %d", frameSize)
	}

	for range 50 {
		assembler.AddDelta(make([]byte, 100))
	}
	if len(recorder.frames) != 5 {
		t.Fatalf("expected 5 full frames from 5000 bytes, got %d", len(recorder.frames))
	}
	for i, emitted := range recorder.frames {
		if len(emitted.frame) != frameSize {
			t.Fatalf("frame %d has %d bytes, want %d", i, len(emitted.frame), frameSize)
		}
	}
	if got := assembler.BufferedBytes(); got != 200 {
		t.Fatalf("expected 200 bytes buffered, got %d", got)
	}

	assembler.Complete()
	if len(recorder.frames) < 6 {
		t.Fatalf("expected terminal frame on complete")
	}
	if got := len(recorder.frames[5].frame); got != 200 {
		t.Fatalf("expected 200-byte terminal frame, got %d", got)
	}
}

func TestFrameAssemblerEmittedBytesMatchInput(t *testing.T) {
	recorder := &frameRecorder{}
	assembler := newFrameAssembler(audio.GetDefaultEncodingInfo(), recorder.callbacks())

	sizes := []int{1, 959, 960, 961, 3000, 17}
	total := 0
	for _, size := range sizes {
		assembler.AddDelta(make([]byte, size))
		total += size
	}
	assembler.Complete()

	_, bytesEmitted, padding := assembler.Stats()
	emitted := 0
	for _, f := range recorder.frames {
		emitted += len(f.frame)
	}
	if emitted != total+padding {
		t.Fatalf("emitted %d bytes, want input %d plus padding %d", emitted, total, padding)
	}
	if bytesEmitted != total {
		t.Fatalf("counted %d payload bytes, want %d", bytesEmitted, total)
	}
}

func TestFrameAssemblerPadsShortStreams(t *testing.T) {
	recorder := &frameRecorder{}
	encoding := audio.GetDefaultEncodingInfo()
	assembler := newFrameAssembler(encoding, recorder.callbacks())

	// 40ms of audio, well under the 300ms minimum.
	assembler.AddDelta(make([]byte, 2*assembler.frameSize()))
	assembler.Complete()

	if len(recorder.ends) != 1 {
		t.Fatalf("expected exactly one end signal, got %d", len(recorder.ends))
	}

	total := 0
	for _, f := range recorder.frames {
		total += len(f.frame)
	}
	if encoding.Duration(total) < 300*time.Millisecond {
		t.Fatalf("emitted %v of audio, want at least the 300ms minimum", encoding.Duration(total))
	}

	_, _, padding := assembler.Stats()
	if padding == 0 {
		t.Fatalf("expected silence padding on a short stream")
	}
	for _, f := range recorder.frames[2:] {
		if !bytes.Equal(f.frame, make([]byte, len(f.frame))) {
			t.Fatalf("padding frame contains non-silence bytes")
		}
	}
}

func TestFrameAssemblerEndSignalFollowsAllFrames(t *testing.T) {
	order := []string{}
	assembler := newFrameAssembler(audio.GetDefaultEncodingInfo(), frameAssemblerCallbacks{
		onFrame:     func(string, []byte) { order = append(order, "frame") },
		onStreamEnd: func(string) { order = append(order, "end") },
	})

	assembler.AddDelta(make([]byte, 500))
	assembler.Complete()

	if len(order) == 0 || order[len(order)-1] != "end" {
		t.Fatalf("expected end signal last, got %v", order)
	}
	for _, entry := range order[:len(order)-1] {
		if entry != "frame" {
			t.Fatalf("unexpected entry before end signal: %v", order)
		}
	}
}

func TestFrameAssemblerCompleteWithoutDeltasIsNoop(t *testing.T) {
	recorder := &frameRecorder{}
	assembler := newFrameAssembler(audio.GetDefaultEncodingInfo(), recorder.callbacks())

	assembler.Complete()

	if len(recorder.frames) != 0 || len(recorder.ends) != 0 {
		t.Fatalf("expected nothing emitted, got %d frames and %d ends",
			len(recorder.frames), len(recorder.ends))
	}
}

func TestFrameAssemblerClearEmitsNothing(t *testing.T) {
	recorder := &frameRecorder{}
	assembler := newFrameAssembler(audio.GetDefaultEncodingInfo(), recorder.callbacks())

	// Two full frames out of an expected ten, then an interrupt.
	assembler.AddDelta(make([]byte, 2*assembler.frameSize()+100))
	if len(recorder.frames) != 2 {
		t.Fatalf("expected 2 frames before interrupt, got %d", len(recorder.frames))
	}

	assembler.Clear()

	if len(recorder.ends) != 0 {
		t.Fatalf("clear must not emit an end signal")
	}
	if got := assembler.BufferedBytes(); got != 0 {
		t.Fatalf("expected zero buffered bytes after clear, got %d", got)
	}
	if id := assembler.StreamID(); id != "" {
		t.Fatalf("expected no stream id after clear, got %q", id)
	}
}

func TestFrameAssemblerMintsNewStreamPerUtterance(t *testing.T) {
	recorder := &frameRecorder{}
	assembler := newFrameAssembler(audio.GetDefaultEncodingInfo(), recorder.callbacks())

	assembler.AddDelta(make([]byte, 1000))
	first := recorder.frames[0].streamID
	assembler.Complete()

	assembler.AddDelta(make([]byte, 1000))
	second := assembler.StreamID()

	if first == "" || second == "" || first == second {
		t.Fatalf("expected distinct stream ids per utterance, got %q and %q", first, second)
	}
}
