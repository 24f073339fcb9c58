package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"sync"

	"github.com/evkarin/switchboard/core/audio"
	"github.com/gordonklaus/portaudio"
)

// Client is an alternate device backend built on PortAudio. It drives one
// full-duplex default stream; render writes are chopped into buffer-sized
// slices so an interrupt never waits on more than one buffer.
type Client struct {
	bufferSize int
	stream     *portaudio.Stream

	leftover   []byte
	leftoverMu sync.Mutex

	in  []int16
	out []int16
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	in := make([]int16, bufferSize)
	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 1, audio.DefaultSampleRate, bufferSize, in, out)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio stream: %w", err)
	}

	return &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
		out:        out,
	}, nil
}

func (c *Client) StartCapture(ctx context.Context, onAudio func(audio []byte)) error {
	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start portaudio stream: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if err := c.stream.Read(); err != nil {
					log.Printf("Failed to read from portaudio stream: %v", err)
					continue
				}

				audioBuffer := bytes.Buffer{}
				_ = binary.Write(&audioBuffer, binary.LittleEndian, c.in)
				onAudio(audioBuffer.Bytes())
			}
		}
	}()

	return nil
}

func (c *Client) StopCapture() error {
	if err := c.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop portaudio stream: %w", err)
	}
	return nil
}

func (c *Client) SendAudio(chunk []byte) error {
	bufferBytes := c.bufferSize * 2

	c.leftoverMu.Lock()
	chunk = append(c.leftover, chunk...)
	c.leftover = nil
	c.leftoverMu.Unlock()

	for len(chunk) >= bufferBytes {
		_ = binary.Read(bytes.NewBuffer(chunk[:bufferBytes]), binary.LittleEndian, c.out)
		if err := c.stream.Write(); err != nil {
			return fmt.Errorf("failed to write to portaudio stream: %w", err)
		}
		chunk = chunk[bufferBytes:]
	}

	c.leftoverMu.Lock()
	c.leftover = append(c.leftover, chunk...)
	c.leftoverMu.Unlock()

	return nil
}

func (c *Client) ClearBuffer() {
	c.leftoverMu.Lock()
	c.leftover = nil
	c.leftoverMu.Unlock()
}

func (c *Client) Close() error {
	err := c.stream.Close()
	if terminateErr := portaudio.Terminate(); err == nil {
		err = terminateErr
	}
	return err
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Format:     audio.EncodingLinear16,
	}
}
