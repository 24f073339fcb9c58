package deepgram

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// TranscriptionClient streams audio to Deepgram's live-listen websocket and
// reports transcripts through the configured callbacks.
type TranscriptionClient struct {
	conn   *websocket.Conn
	connMu sync.Mutex

	lastAudioSent *time.Time

	accumulatedTranscript string
}

func NewTranscriptionClient() *TranscriptionClient {
	return &TranscriptionClient{}
}
