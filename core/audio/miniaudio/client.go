package miniaudio

import (
	"context"
	"fmt"

	"github.com/evkarin/switchboard/core/audio"
	"github.com/gen2brain/malgo"
)

// Client bundles a capture and a render device backed by miniaudio. It is the
// default device backend for a handset wired straight into the machine
// running the engine.
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext

	renderClient
	captureClient
}

func NewClient() (*Client, error) {
	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize miniaudio context: %w", err)
	}

	client := Client{audioContext: audioCtx}

	if err := client.renderClient.Init(audioCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize render client: %w", err)
	}
	if err := client.renderClient.Start(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start render device: %w", err)
	}

	if err := client.captureClient.Init(audioCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}

	return &client, nil
}

func (c *Client) StartCapture(_ context.Context, onAudio func(audio []byte)) error {
	return c.captureClient.Start(onAudio)
}

func (c *Client) StopCapture() error {
	return c.captureClient.Stop()
}

func (c *Client) Close() error {
	captureErr := c.captureClient.Uninit()
	renderErr := c.renderClient.Uninit()

	if c.audioContext != nil {
		_ = c.audioContext.Uninit()
		c.audioContext.Free()
		c.audioContext = nil
	}

	if captureErr != nil {
		return captureErr
	}
	return renderErr
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Format:     audio.EncodingLinear16,
	}
}
