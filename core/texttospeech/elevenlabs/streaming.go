package elevenlabs

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/evkarin/switchboard/core/audio"
	"github.com/evkarin/switchboard/core/texttospeech"
	"github.com/gorilla/websocket"
)

type speechStream struct {
	ws   *websocket.Conn
	wsMu sync.Mutex

	options texttospeech.SynthesisOptions

	stateMu      sync.Mutex
	textComplete bool
	cancelled    bool
	closed       bool
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type outboundMessage struct {
	Text                 string         `json:"text"`
	VoiceSettings        *voiceSettings `json:"voice_settings,omitempty"`
	TryTriggerGeneration bool           `json:"try_trigger_generation,omitempty"`
}

type inboundMessage struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Error   string `json:"error"`
}

func (c *TextToSpeechClient) NewSpeechStream(ctx context.Context, opts ...texttospeech.SynthesisOption) (texttospeech.SpeechStream, error) {
	stream := &speechStream{
		options: texttospeech.SynthesisOptions{
			AudioChunkCallback:  func([]byte) {},
			SpeechEndedCallback: func() {},
			ErrorCallback:       func(error) {},
			EncodingInfo:        c.encodingInfo,
		},
	}

	for _, opt := range opts {
		opt(&stream.options)
	}

	outputFormat, err := convertEncoding(stream.options.EncodingInfo)
	if err != nil {
		return nil, fmt.Errorf("invalid encoding: %w", err)
	}

	streamURL := fmt.Sprintf(
		"wss://api.elevenlabs.io/v1/text-to-speech/%s/stream-input?model_id=%s&output_format=%s",
		c.voiceID, c.modelID, outputFormat,
	)
	ws, _, err := websocket.DefaultDialer.Dial(streamURL, http.Header{"xi-api-key": {c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to elevenlabs: %w", err)
	}
	stream.ws = ws

	// Beginning-of-stream message carries the voice settings; the single
	// space is the protocol's way of priming the stream without speaking.
	if err := stream.send(outboundMessage{
		Text:          " ",
		VoiceSettings: &voiceSettings{Stability: c.stability, SimilarityBoost: c.similarityBoost},
	}); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("failed to send stream settings to elevenlabs: %w", err)
	}

	go stream.processIncomingMessages(ctx)

	return stream, nil
}

func convertEncoding(encodingInfo audio.EncodingInfo) (string, error) {
	switch encodingInfo.Format {
	case audio.EncodingLinear16:
		return fmt.Sprintf("pcm_%d", encodingInfo.SampleRate), nil
	case audio.EncodingMulaw:
		if encodingInfo.SampleRate != audio.PhoneLineSampleRate {
			return "", fmt.Errorf("unsupported sample rate for mulaw encoding")
		}
		return "ulaw_8000", nil
	}
	return "", fmt.Errorf("unsupported encoding %q", encodingInfo.Format.Name())
}

func (r *speechStream) processIncomingMessages(context.Context) {
	for {
		_, msg, err := r.ws.ReadMessage()
		if err != nil {
			r.stateMu.Lock()
			finished := r.closed || r.cancelled
			r.stateMu.Unlock()

			if !finished {
				log.Printf("ElevenLabs websocket read error: %v", err)
				r.options.ErrorCallback(err)
				_ = r.Close()
			}
			return
		}

		var parsedMsg inboundMessage
		if err := sonic.Unmarshal(msg, &parsedMsg); err != nil {
			continue
		}

		if parsedMsg.Error != "" {
			r.options.ErrorCallback(fmt.Errorf("elevenlabs synthesis error: %s", parsedMsg.Error))
			_ = r.Close()
			return
		}

		if parsedMsg.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(parsedMsg.Audio)
			if err != nil {
				log.Printf("Failed to decode elevenlabs audio chunk: %v", err)
				continue
			}
			r.options.AudioChunkCallback(chunk)
		}

		if parsedMsg.IsFinal {
			r.options.SpeechEndedCallback()
			_ = r.Close()
			return
		}
	}
}

func (r *speechStream) SendText(text string) error {
	r.stateMu.Lock()
	if r.closed {
		r.stateMu.Unlock()
		return fmt.Errorf("speech stream closed")
	} else if r.cancelled {
		r.stateMu.Unlock()
		return fmt.Errorf("speech stream cancelled")
	} else if r.textComplete {
		r.stateMu.Unlock()
		return fmt.Errorf("speech stream text already completed")
	}
	r.stateMu.Unlock()

	if err := r.send(outboundMessage{Text: text, TryTriggerGeneration: true}); err != nil {
		return fmt.Errorf("failed to send text to elevenlabs: %w", err)
	}
	return nil
}

func (r *speechStream) EndOfText() error {
	r.stateMu.Lock()
	if r.closed || r.cancelled || r.textComplete {
		r.stateMu.Unlock()
		return nil
	}
	r.textComplete = true
	r.stateMu.Unlock()

	// End-of-stream is signalled with an empty text message.
	if err := r.send(outboundMessage{Text: ""}); err != nil {
		return fmt.Errorf("failed to end elevenlabs stream: %w", err)
	}
	return nil
}

func (r *speechStream) Cancel() error {
	r.stateMu.Lock()
	if r.closed || r.cancelled {
		r.stateMu.Unlock()
		return nil
	}
	r.cancelled = true
	r.stateMu.Unlock()

	return r.Close()
}

func (r *speechStream) Close() error {
	r.stateMu.Lock()
	if r.closed {
		r.stateMu.Unlock()
		return nil
	}
	r.closed = true
	r.stateMu.Unlock()

	r.wsMu.Lock()
	defer r.wsMu.Unlock()
	if err := r.ws.Close(); err != nil {
		return fmt.Errorf("failed to close elevenlabs websocket: %w", err)
	}
	return nil
}

func (r *speechStream) send(msg outboundMessage) error {
	payload, err := sonic.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	r.wsMu.Lock()
	defer r.wsMu.Unlock()
	return r.ws.WriteMessage(websocket.TextMessage, payload)
}
