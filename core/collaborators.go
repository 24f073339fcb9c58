package dialog

import (
	"context"

	"github.com/evkarin/switchboard/core/audio"
	"github.com/evkarin/switchboard/core/speechtotext"
)

// SpeechToText is the transcription collaborator contract.
type SpeechToText interface {
	Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error
	SendAudio(chunk []byte) error
	Close(ctx context.Context) error
}

// AudioClient is the capture/render device collaborator contract.
type AudioClient interface {
	StartCapture(ctx context.Context, onAudio func(chunk []byte)) error
	StopCapture() error
	SendAudio(chunk []byte) error
	ClearBuffer()
	EncodingInfo() audio.EncodingInfo
	Close() error
}

// speechToTextFacade absorbs optional wiring: every method is a no-op when
// no client is configured.
type speechToTextFacade struct {
	client SpeechToText
}

func (f *speechToTextFacade) transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	if f.client == nil {
		return nil
	}
	return f.client.Transcribe(ctx, opts...)
}

func (f *speechToTextFacade) sendAudio(chunk []byte) error {
	if f.client == nil {
		return nil
	}
	return f.client.SendAudio(chunk)
}

func (f *speechToTextFacade) close(ctx context.Context) error {
	if f.client == nil {
		return nil
	}
	return f.client.Close(ctx)
}

// renderFacade narrows the audio client to the render path, absorbing
// optional wiring the same way.
type renderFacade struct {
	client AudioClient
}

func (f renderFacade) SendAudio(chunk []byte) error {
	if f.client == nil {
		return nil
	}
	return f.client.SendAudio(chunk)
}

func (f renderFacade) ClearBuffer() {
	if f.client != nil {
		f.client.ClearBuffer()
	}
}
