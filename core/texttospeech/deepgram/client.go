package deepgram

import (
	"github.com/evkarin/switchboard/core/audio"
)

type Voice string

const (
	VoiceAsteria Voice = "aura-2-asteria-en"
	VoiceThalia  Voice = "aura-2-thalia-en"
	VoiceOrion   Voice = "aura-2-orion-en"
)

// TextToSpeechClient opens streaming synthesis requests against Deepgram's
// speak websocket.
type TextToSpeechClient struct {
	voice        Voice
	encodingInfo audio.EncodingInfo
}

type ClientOption func(*TextToSpeechClient)

func WithVoice(voice Voice) ClientOption {
	return func(c *TextToSpeechClient) { c.voice = voice }
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) ClientOption {
	return func(c *TextToSpeechClient) {
		if !encodingInfo.IsZero() {
			c.encodingInfo = encodingInfo
		}
	}
}

func NewTextToSpeechClient(opts ...ClientOption) *TextToSpeechClient {
	client := &TextToSpeechClient{
		voice:        VoiceAsteria,
		encodingInfo: audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}
