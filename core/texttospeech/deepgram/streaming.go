package deepgram

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
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

	ws, err := connectWebsocket(c.voice, stream.options.EncodingInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open websocket: %w", err)
	}
	stream.ws = ws

	go stream.processIncomingMessages(ctx)

	return stream, nil
}

func connectWebsocket(voice Voice, encodingInfo audio.EncodingInfo) (*websocket.Conn, error) {
	apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
	if !ok {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	urlValues := url.Values{}
	urlValues.Set("encoding", encodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(encodingInfo.SampleRate))
	urlValues.Set("model", string(voice))
	urlValues.Set("container", "none")

	conn, _, err := websocket.DefaultDialer.Dial(
		(&url.URL{
			Scheme: "wss",
			Host:   "api.deepgram.com", Path: "/v1/speak",
			RawQuery: urlValues.Encode(),
		}).String(),
		http.Header{"Authorization": {"token " + apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

type controlMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func (r *speechStream) processIncomingMessages(context.Context) {
	for {
		msgType, msg, err := r.ws.ReadMessage()
		if err != nil {
			r.stateMu.Lock()
			finished := r.closed || r.cancelled
			r.stateMu.Unlock()

			if !finished {
				if err.Error() != "websocket: close 1000 (normal)" {
					log.Printf("Deepgram speak websocket read error: %v", err)
				}
				r.options.ErrorCallback(err)
				_ = r.Close()
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			r.options.AudioChunkCallback(msg)

		case websocket.TextMessage:
			var parsedMsg struct {
				Type string `json:"type"`
			}
			if err := sonic.Unmarshal(msg, &parsedMsg); err != nil {
				continue
			}

			if parsedMsg.Type == "Flushed" {
				r.stateMu.Lock()
				done := r.textComplete && !r.cancelled
				r.stateMu.Unlock()

				if done {
					r.options.SpeechEndedCallback()
					_ = r.Close()
					return
				}
			}
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

	if err := r.sendControlMessage(controlMessage{Type: "Speak", Text: text}); err != nil {
		return fmt.Errorf("failed to send text to deepgram: %w", err)
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

	if err := r.sendControlMessage(controlMessage{Type: "Flush"}); err != nil {
		return fmt.Errorf("failed to flush deepgram stream: %w", err)
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

	if err := r.sendControlMessage(controlMessage{Type: "Clear"}); err != nil {
		_ = r.Close()
		return fmt.Errorf("failed to clear deepgram stream: %w", err)
	}
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

	_ = r.sendControlMessage(controlMessage{Type: "Close"})

	r.wsMu.Lock()
	defer r.wsMu.Unlock()
	if err := r.ws.Close(); err != nil {
		return fmt.Errorf("failed to close deepgram websocket: %w", err)
	}
	return nil
}

func (r *speechStream) sendControlMessage(msg controlMessage) error {
	payload, err := sonic.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal control message: %w", err)
	}

	r.wsMu.Lock()
	defer r.wsMu.Unlock()
	return r.ws.WriteMessage(websocket.TextMessage, payload)
}
