//go:build cgo

package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/embodielabs/presence-core/core/audio"
)

// playbackClient renders queued PCM on the default output device. It is the
// fallback path used when avatar-side playback is unavailable, so it must
// tolerate being started and stopped repeatedly within one conversation.
type playbackClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device

	mu sync.Mutex

	// queueMu guards pending and marks together; marks index into pending.
	queueMu sync.Mutex
	pending []byte
	marks   []playbackMark
}

// playbackMark fires its callback once every byte queued before it has been
// handed to the device.
type playbackMark struct {
	name     string
	offset   int
	callback func(string)
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	format := malgo.FormatS16
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = uint32(audio.DefaultSampleRate)
	config.Playback.Format = format
	config.Playback.Channels = 1
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = config.SampleRate / 10
	config.Periods = 4

	c.audioContext = audioContext
	bytesPerFrame := malgo.SampleSizeInBytes(format)

	device, err := malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(output, _ []byte, frameCount uint32) {
			c.fill(output, int(frameCount)*bytesPerFrame)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	c.device = device
	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}
	if c.device.IsStarted() {
		return nil
	}
	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}
	return nil
}

func (c *playbackClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}
	if !c.device.IsStarted() {
		return nil
	}
	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}
	c.ClearBuffer()
	return nil
}

func (c *playbackClient) SendAudio(pcm []byte) error {
	c.mu.Lock()
	device := c.device
	c.mu.Unlock()
	if device == nil {
		return fmt.Errorf("device not initialized")
	}
	if !device.IsStarted() {
		return fmt.Errorf("device not started")
	}

	c.queueMu.Lock()
	c.pending = append(c.pending, pcm...)
	c.queueMu.Unlock()
	return nil
}

// ClearBuffer drops queued audio and pending marks without firing them. Used
// on barge-in, where mark callbacks for discarded speech must not run.
func (c *playbackClient) ClearBuffer() {
	c.queueMu.Lock()
	c.pending = nil
	c.marks = nil
	c.queueMu.Unlock()
}

func (c *playbackClient) Mark(name string, callback func(string)) error {
	c.queueMu.Lock()
	c.marks = append(c.marks, playbackMark{
		name:     name,
		offset:   len(c.pending),
		callback: callback,
	})
	c.queueMu.Unlock()
	return nil
}

// AwaitMark blocks until everything queued before the call has been played.
func (c *playbackClient) AwaitMark() error {
	done := make(chan struct{})
	if err := c.Mark("", func(string) { close(done) }); err != nil {
		return err
	}
	<-done
	return nil
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}
	c.device.Uninit()
	c.device = nil
	return nil
}

// fill runs on the device thread. Output buffers are zeroed by malgo, so an
// underrun plays silence rather than stale samples.
func (c *playbackClient) fill(output []byte, need int) {
	c.queueMu.Lock()
	n := copy(output, c.pending)
	c.pending = c.pending[n:]
	fired := c.advanceMarks(n)
	c.queueMu.Unlock()

	if len(fired) > 0 {
		go func() {
			for _, mark := range fired {
				mark.callback(mark.name)
			}
		}()
	}
}

// advanceMarks shifts mark offsets by the consumed byte count and returns the
// marks that were passed. Caller holds queueMu.
func (c *playbackClient) advanceMarks(consumed int) []playbackMark {
	var fired []playbackMark
	kept := c.marks[:0]
	for _, mark := range c.marks {
		if mark.offset <= consumed {
			fired = append(fired, mark)
			continue
		}
		mark.offset -= consumed
		kept = append(kept, mark)
	}
	c.marks = kept
	return fired
}
