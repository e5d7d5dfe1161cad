//go:build cgo

package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/embodielabs/presence-core/core/audio"
)

// capturePeriodFrames keeps capture periods at 20ms so mic chunks line up
// with the model link's expected frame cadence.
const capturePeriodFrames = audio.DefaultSampleRate / 50

type captureClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device

	mu sync.Mutex

	// callbackMu guards onAudio separately from mu; the device data callback
	// must never contend with Start/Stop holding mu.
	callbackMu sync.Mutex
	onAudio    func(pcm []byte)
}

func (c *captureClient) Init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	format := malgo.FormatS16
	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = uint32(audio.DefaultSampleRate)
	config.Capture.Format = format
	config.Capture.Channels = 1
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	config.PeriodSizeInFrames = capturePeriodFrames
	config.Periods = 3

	c.audioContext = audioContext
	bytesPerFrame := malgo.SampleSizeInBytes(format)

	device, err := malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if n == 0 || len(input) < n {
				return
			}
			c.deliver(input[:n])
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}
	c.device = device
	return nil
}

// deliver copies the device-owned buffer before handing it off; malgo reuses
// the input slice across callbacks.
func (c *captureClient) deliver(input []byte) {
	c.callbackMu.Lock()
	onAudio := c.onAudio
	c.callbackMu.Unlock()
	if onAudio == nil {
		return
	}
	pcm := make([]byte, len(input))
	copy(pcm, input)
	onAudio(pcm)
}

func (c *captureClient) Start(onAudio func(pcm []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}
	if c.device.IsStarted() {
		return nil
	}

	c.setOnAudio(onAudio)
	if err := c.device.Start(); err != nil {
		c.setOnAudio(nil)
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	return nil
}

func (c *captureClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}
	if !c.device.IsStarted() {
		return nil
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}
	c.setOnAudio(nil)
	return nil
}

func (c *captureClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	c.setOnAudio(nil)
	return nil
}

func (c *captureClient) setOnAudio(onAudio func(pcm []byte)) {
	c.callbackMu.Lock()
	c.onAudio = onAudio
	c.callbackMu.Unlock()
}
