package deepgram

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/evkarin/switchboard/core/audio"
	"github.com/evkarin/switchboard/core/speechtotext"
	"github.com/evkarin/switchboard/internal/utils"
	"github.com/gorilla/websocket"
)

func (s *TranscriptionClient) Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	options := &speechtotext.TranscriptionOptions{EncodingInfo: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(options)
	}

	encoding, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		return fmt.Errorf("invalid encoding: %w", err)
	}

	conn, err := connectWebsocket(connectionOptions{
		sampleRate: encoding.SampleRate,
		encoding:   encoding.Format.Name(),

		detectSpeechStart: options.SpeechStartedCallback != nil,
		interimResults:    options.InterimTranscriptCallback != nil,
	})
	if err != nil {
		return fmt.Errorf("failed to open websocket: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	go s.readAndProcessMessages(ctx, conn, *options)

	return nil
}

type connectionOptions struct {
	sampleRate int
	encoding   string

	detectSpeechStart bool
	interimResults    bool
}

func connectWebsocket(options connectionOptions) (*websocket.Conn, error) {
	apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
	if !ok {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	listenUrl, _ := url.Parse("wss://api.deepgram.com/v1/listen")
	queryParams := listenUrl.Query()
	queryParams.Set("encoding", options.encoding)
	queryParams.Set("sample_rate", strconv.Itoa(options.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", "nova-3")
	queryParams.Set("language", "en-US")
	queryParams.Set("smart_format", "true")
	queryParams.Set("interim_results", "true")
	queryParams.Set("utterance_end_ms", "1000")
	queryParams.Set("endpointing", "300")
	if options.detectSpeechStart {
		queryParams.Set("vad_events", "true")
	}

	listenUrl.RawQuery = queryParams.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(listenUrl.String(),
		http.Header{"Authorization": {"Token " + apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, err
}

func (s *TranscriptionClient) SendAudio(chunk []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("transcription stream not connected")
	}

	s.lastAudioSent = utils.Ptr(time.Now())
	if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (s *TranscriptionClient) sendKeepAlive() {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return
	}

	if err := s.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: "KeepAlive"}); err != nil {
		log.Printf("Failed to write keep-alive to deepgram client: %v", err)
	}
}

func (s *TranscriptionClient) Close(context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return nil
	}

	if err := s.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		return fmt.Errorf("failed to close deepgram stream: %w", err)
	}
	return nil
}

func (s *TranscriptionClient) readAndProcessMessages(ctx context.Context, conn *websocket.Conn, options speechtotext.TranscriptionOptions) {
	keepAliveCtx, keepAliveCancel := context.WithCancel(ctx)
	defer keepAliveCancel()

	go s.keepConnectionWarm(keepAliveCtx)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			s.connMu.Lock()
			s.conn = nil
			s.connMu.Unlock()
			conn.Close()

			if err.Error() == "websocket: close 1000 (normal)" {
				err = nil
			} else {
				log.Printf("Failed to read deepgram websocket message: %v", err)
			}
			if options.DisconnectCallback != nil {
				options.DisconnectCallback(err)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			s.processMessage(msg, options)
		}
	}
}

// keepConnectionWarm sends periodic keep-alives whenever no audio has gone out
// recently, so Deepgram does not drop the socket while capture is muted.
func (s *TranscriptionClient) keepConnectionWarm(ctx context.Context) {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.connMu.Lock()
			idle := s.lastAudioSent == nil || time.Since(*s.lastAudioSent) > 3*time.Second
			s.connMu.Unlock()
			if idle {
				s.sendKeepAlive()
			}
		}
	}
}

func (s *TranscriptionClient) processMessage(msg []byte, options speechtotext.TranscriptionOptions) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := sonic.Unmarshal(msg, &parsedMsg); err != nil {
		log.Printf("Failed to unmarshal deepgram message: %v", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := sonic.Unmarshal(msg, &msgResp); err != nil {
			log.Printf("Failed to unmarshal deepgram transcript message: %v", err)
			return
		}
		if len(msgResp.Channel.Alternatives) == 0 {
			return
		}

		transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		if len(transcript) == 0 {
			return
		}

		if msgResp.IsFinal {
			s.accumulatedTranscript = strings.TrimSpace(s.accumulatedTranscript + " " + transcript)
			if options.TranscriptCallback != nil {
				options.TranscriptCallback(transcript)
			}
			if msgResp.SpeechFinal {
				s.onSpeechEnded(options)
			}
		} else if options.InterimTranscriptCallback != nil {
			options.InterimTranscriptCallback(transcript)
		}

	case api.TypeUtteranceEndResponse:
		var msgResp api.UtteranceEndResponse
		if err := sonic.Unmarshal(msg, &msgResp); err != nil {
			log.Printf("Failed to unmarshal deepgram utterance-end message: %v", err)
			return
		}
		s.onSpeechEnded(options)

	case api.TypeSpeechStartedResponse:
		var msgResp api.SpeechStartedResponse
		if err := sonic.Unmarshal(msg, &msgResp); err != nil {
			log.Printf("Failed to unmarshal deepgram speech-started message: %v", err)
			return
		}
		if options.SpeechStartedCallback != nil {
			options.SpeechStartedCallback()
		}
	}
}

func (s *TranscriptionClient) onSpeechEnded(options speechtotext.TranscriptionOptions) {
	s.accumulatedTranscript = ""
	if options.SpeechEndedCallback != nil {
		options.SpeechEndedCallback()
	}
}
