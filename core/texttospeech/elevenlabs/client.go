package elevenlabs

import (
	"github.com/evkarin/switchboard/core/audio"
)

// TextToSpeechClient opens streaming synthesis requests against the
// ElevenLabs stream-input websocket.
type TextToSpeechClient struct {
	apiKey  string
	voiceID string
	modelID string

	stability       float64
	similarityBoost float64

	encodingInfo audio.EncodingInfo
}

type ClientOption func(*TextToSpeechClient)

func WithVoiceID(voiceID string) ClientOption {
	return func(c *TextToSpeechClient) { c.voiceID = voiceID }
}

func WithModelID(modelID string) ClientOption {
	return func(c *TextToSpeechClient) { c.modelID = modelID }
}

func WithVoiceSettings(stability, similarityBoost float64) ClientOption {
	return func(c *TextToSpeechClient) {
		c.stability = stability
		c.similarityBoost = similarityBoost
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) ClientOption {
	return func(c *TextToSpeechClient) {
		if !encodingInfo.IsZero() {
			c.encodingInfo = encodingInfo
		}
	}
}

func NewTextToSpeechClient(apiKey string, opts ...ClientOption) *TextToSpeechClient {
	client := &TextToSpeechClient{
		apiKey:          apiKey,
		voiceID:         "21m00Tcm4TlvDq8ikWAM",
		modelID:         "eleven_turbo_v2_5",
		stability:       0.5,
		similarityBoost: 0.8,
		encodingInfo:    audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}
