package miniaudio

import (
	"fmt"
	"sync"

	"github.com/evkarin/switchboard/core/audio"
	"github.com/gen2brain/malgo"
)

type renderClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig

	pending []byte

	mu      sync.Mutex
	audioMu sync.Mutex
}

func (c *renderClient) Init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sampleRate := uint32(audio.DefaultSampleRate)
	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.config = malgo.DefaultDeviceConfig(malgo.Playback)
	c.config.SampleRate = sampleRate
	c.config.Playback.Format = format
	c.config.Playback.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PeriodSizeInFrames = sampleRate / 10 // ~100ms of audio
	c.config.Periods = 4

	c.audioContext = audioContext

	var err error
	if c.device, err = malgo.InitDevice(
		c.audioContext.Context,
		c.config,
		malgo.DeviceCallbacks{Data: c.fillOutput(bytesPerFrame)},
	); err != nil {
		return fmt.Errorf("failed to initialize render device: %w", err)
	}

	return nil
}

// fillOutput drains the pending buffer into the device callback, padding with
// silence when the buffer runs dry so the device keeps running between
// replies.
func (c *renderClient) fillOutput(bytesPerFrame int) func(pOutput, _ []byte, frameCount uint32) {
	return func(pOutput, _ []byte, frameCount uint32) {
		n := int(frameCount) * bytesPerFrame

		c.audioMu.Lock()
		consumed := min(n, len(c.pending))
		copy(pOutput, c.pending[:consumed])
		c.pending = c.pending[consumed:]
		c.audioMu.Unlock()

		for i := consumed; i < n && i < len(pOutput); i++ {
			pOutput[i] = 0
		}
	}
}

func (c *renderClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start render device: %w", err)
	}

	return nil
}

func (c *renderClient) SendAudio(chunk []byte) error {
	c.audioMu.Lock()
	c.pending = append(c.pending, chunk...)
	c.audioMu.Unlock()
	return nil
}

// ClearBuffer drops any audio not yet handed to the device. Interruption
// latency is therefore bounded by the device period, not by how much of the
// reply was already synthesized.
func (c *renderClient) ClearBuffer() {
	c.audioMu.Lock()
	c.pending = nil
	c.audioMu.Unlock()
}

func (c *renderClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ClearBuffer()
	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	return nil
}
