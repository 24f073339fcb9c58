package dialog

import (
	"context"
	"strings"
	"sync"
	"time"
)

// SegmenterConfig tunes when an accumulating utterance is considered
// complete. The defaults come from listening tests on a real handset; none
// of them are load-bearing beyond that.
type SegmenterConfig struct {
	// SilenceThreshold is how long the user has to stay quiet after a final
	// fragment before the utterance commits.
	SilenceThreshold time.Duration
	// PollInterval is how often the silence watcher wakes up. Silence is
	// detected by polling so it fires even when no new events arrive at all.
	PollInterval time.Duration
	// EarlyCommitWords commits immediately once a final fragment ends with
	// that many words, without waiting out the silence threshold. Zero
	// disables early commit.
	EarlyCommitWords int
	// SpeculativeWords seeds a speculative generation once an interim
	// fragment reaches that many words. Zero disables speculation.
	SpeculativeWords int
}

func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		SilenceThreshold: 1200 * time.Millisecond,
		PollInterval:     100 * time.Millisecond,
		EarlyCommitWords: 5,
		SpeculativeWords: 5,
	}
}

// segmenter turns the transcript event stream into commit decisions. It owns
// the pending utterance accumulator; the orchestrator resets it once the
// utterance is consumed.
type segmenter struct {
	config SegmenterConfig

	// onCommit delivers the full utterance exactly once per silence episode.
	onCommit func(utterance string)
	// onSpeculative delivers interim text worth generating ahead for.
	onSpeculative func(text string)

	mu           sync.Mutex
	pending      []string
	interim      string
	lastSpeechAt time.Time
	committed    bool
	speculated   bool
}

func newSegmenter(config SegmenterConfig, onCommit, onSpeculative func(string)) *segmenter {
	return &segmenter{
		config:        config,
		onCommit:      onCommit,
		onSpeculative: onSpeculative,
		committed:     true,
	}
}

// observe folds one transcript event into the accumulator. Final fragments
// may trigger an immediate commit on terminal punctuation or length; interim
// fragments never commit.
func (s *segmenter) observe(event TranscriptEvent) {
	text := strings.TrimSpace(event.Text)
	if text == "" {
		return
	}

	s.mu.Lock()

	if !event.IsFinal {
		s.interim = text
		if s.onSpeculative != nil && !s.speculated && s.config.SpeculativeWords > 0 &&
			len(strings.Fields(text)) >= s.config.SpeculativeWords {
			s.speculated = true
			s.mu.Unlock()
			s.onSpeculative(text)
			return
		}
		s.mu.Unlock()
		return
	}

	s.pending = append(s.pending, text)
	s.interim = ""
	s.lastSpeechAt = event.Timestamp
	s.committed = false

	if s.shouldCommitEarly(strings.Join(s.pending, " ")) {
		s.commitLocked()
		return
	}
	s.mu.Unlock()
}

// shouldCommitEarly reports whether the accumulated text can commit without
// waiting for silence.
func (s *segmenter) shouldCommitEarly(text string) bool {
	if text == "" {
		return false
	}
	switch text[len(text)-1] {
	case '.', '?', '!':
		return true
	}
	return s.config.EarlyCommitWords > 0 && len(strings.Fields(text)) >= s.config.EarlyCommitWords
}

// watch runs the periodic silence check until ctx is cancelled.
func (s *segmenter) watch(ctx context.Context) {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkSilence(time.Now())
		}
	}
}

// checkSilence commits the pending utterance when the silence threshold has
// elapsed. It fires at most once per silence episode: new speech resets the
// episode via observe.
func (s *segmenter) checkSilence(now time.Time) {
	s.mu.Lock()
	if s.committed || len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	if now.Sub(s.lastSpeechAt) <= s.config.SilenceThreshold {
		s.mu.Unlock()
		return
	}
	s.commitLocked()
}

// commitLocked consumes the accumulator and invokes onCommit with the lock
// released. Callers must hold s.mu; it is unlocked on return.
func (s *segmenter) commitLocked() {
	utterance := strings.Join(s.pending, " ")
	s.pending = nil
	s.interim = ""
	s.committed = true
	s.speculated = false
	s.mu.Unlock()

	if s.onCommit != nil {
		s.onCommit(utterance)
	}
}

// currentTranscript is the displayable text accumulated so far, including
// the live interim tail.
func (s *segmenter) currentTranscript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	parts := s.pending
	if s.interim != "" {
		parts = append(parts[:len(parts):len(parts)], s.interim)
	}
	return strings.Join(parts, " ")
}

func (s *segmenter) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	s.interim = ""
	s.committed = true
	s.speculated = false
}
