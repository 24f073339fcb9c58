package dialog

import (
	"context"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/evkarin/switchboard/core/audio"
	"github.com/evkarin/switchboard/core/llms"
	"github.com/evkarin/switchboard/core/speechtotext"
	"github.com/evkarin/switchboard/core/texttospeech"
)

func waitFor(t *testing.T, timeout time.Duration, condition func() bool, description string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", description)
}

// stubStream scripts one language-generation stream: emit chunks, then
// either finish, fail, or block until the context is cancelled.
type stubStream struct {
	chunks []string
	err    error
	block  bool
}

func (s stubStream) Chunks(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, chunk := range s.chunks {
			if !yield(chunk, nil) {
				return
			}
		}
		if s.block {
			<-ctx.Done()
			yield("", ctx.Err())
			return
		}
		if s.err != nil {
			yield("", s.err)
		}
	}
}

type stubLLM struct {
	mu       sync.Mutex
	scripts  []stubStream
	fallback stubStream
	prompts  [][]llms.Message
}

func (s *stubLLM) PromptWithStream(ctx context.Context, messages []llms.Message, opts ...llms.PromptOption) llms.Stream {
	s.mu.Lock()
	defer s.mu.Unlock()

	prompt := make([]llms.Message, len(messages))
	copy(prompt, messages)
	s.prompts = append(s.prompts, prompt)

	if len(s.scripts) > 0 {
		script := s.scripts[0]
		s.scripts = s.scripts[1:]
		return script
	}
	return s.fallback
}

func (s *stubLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func (s *stubLLM) lastPrompt() []llms.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.prompts) == 0 {
		return nil
	}
	return s.prompts[len(s.prompts)-1]
}

// stubSpeechStream is one scripted synthesis stream. In automatic mode,
// EndOfText immediately emits a single chunk and the ended signal; in manual
// mode the test drives emit and complete itself.
type stubSpeechStream struct {
	mu        sync.Mutex
	options   texttospeech.SynthesisOptions
	manual    bool
	texts     []string
	ended     bool
	cancelled bool
	closed    bool
}

func (s *stubSpeechStream) SendText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return nil
}

func (s *stubSpeechStream) EndOfText() error {
	s.mu.Lock()
	manual := s.manual
	s.ended = true
	s.mu.Unlock()

	if !manual {
		s.emit(make([]byte, 320))
		s.complete()
	}
	return nil
}

func (s *stubSpeechStream) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
	return nil
}

func (s *stubSpeechStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSpeechStream) emit(chunk []byte) {
	if s.options.AudioChunkCallback != nil {
		s.options.AudioChunkCallback(chunk)
	}
}

func (s *stubSpeechStream) complete() {
	if s.options.SpeechEndedCallback != nil {
		s.options.SpeechEndedCallback()
	}
}

func (s *stubSpeechStream) fail(err error) {
	if s.options.ErrorCallback != nil {
		s.options.ErrorCallback(err)
	}
}

func (s *stubSpeechStream) wasCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

func (s *stubSpeechStream) sentText() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

type stubSynthesizer struct {
	mu      sync.Mutex
	manual  bool
	failure error
	streams []*stubSpeechStream
}

func (s *stubSynthesizer) NewSpeechStream(ctx context.Context, opts ...texttospeech.SynthesisOption) (texttospeech.SpeechStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failure != nil {
		return nil, s.failure
	}

	options := texttospeech.SynthesisOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	stream := &stubSpeechStream{options: options, manual: s.manual}
	s.streams = append(s.streams, stream)
	return stream, nil
}

func (s *stubSynthesizer) streamCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

func (s *stubSynthesizer) stream(i int) *stubSpeechStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streams[i]
}

type stubTranscriber struct {
	mu        sync.Mutex
	options   speechtotext.TranscriptionOptions
	connected bool
	closes    int
	audio     [][]byte
	failure   error
}

func (s *stubTranscriber) Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failure != nil {
		return s.failure
	}

	options := speechtotext.TranscriptionOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	s.options = options
	s.connected = true
	return nil
}

func (s *stubTranscriber) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = append(s.audio, chunk)
	return nil
}

func (s *stubTranscriber) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.closes++
	return nil
}

func (s *stubTranscriber) isConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *stubTranscriber) audioChunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.audio)
}

// final injects a final transcript fragment as if recognized.
func (s *stubTranscriber) final(text string) {
	s.mu.Lock()
	callback := s.options.TranscriptCallback
	s.mu.Unlock()
	if callback != nil {
		callback(text)
	}
}

// drop simulates the transcription connection being lost.
func (s *stubTranscriber) drop(err error) {
	s.mu.Lock()
	s.connected = false
	callback := s.options.DisconnectCallback
	s.mu.Unlock()
	if callback != nil {
		callback(err)
	}
}

func (s *stubTranscriber) interim(text string) {
	s.mu.Lock()
	callback := s.options.InterimTranscriptCallback
	s.mu.Unlock()
	if callback != nil {
		callback(text)
	}
}

type stubAudioClient struct {
	mu      sync.Mutex
	onAudio func([]byte)
	sent    [][]byte
	clears  int
	stopped bool
}

func (s *stubAudioClient) StartCapture(_ context.Context, onAudio func(chunk []byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAudio = onAudio
	return nil
}

func (s *stubAudioClient) StopCapture() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *stubAudioClient) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, chunk)
	return nil
}

func (s *stubAudioClient) ClearBuffer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
}

func (s *stubAudioClient) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

func (s *stubAudioClient) Close() error { return nil }

func (s *stubAudioClient) capture(chunk []byte) {
	s.mu.Lock()
	onAudio := s.onAudio
	s.mu.Unlock()
	if onAudio != nil {
		onAudio(chunk)
	}
}

func (s *stubAudioClient) rendered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *stubAudioClient) cleared() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clears
}

func (s *stubAudioClient) lastRendered() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return nil
	}
	return s.sent[len(s.sent)-1]
}
