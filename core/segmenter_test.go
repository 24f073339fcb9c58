package dialog

import (
	"sync"
	"testing"
	"time"
)

type commitRecorder struct {
	mu          sync.Mutex
	commits     []string
	speculative []string
}

func (r *commitRecorder) onCommit(utterance string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, utterance)
}

func (r *commitRecorder) onSpeculative(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.speculative = append(r.speculative, text)
}

func (r *commitRecorder) committed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commits...)
}

func (r *commitRecorder) speculated() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.speculative...)
}

func testSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		SilenceThreshold: 500 * time.Millisecond,
		PollInterval:     50 * time.Millisecond,
		EarlyCommitWords: 5,
		SpeculativeWords: 5,
	}
}

func TestSegmenterCommitsOnceAfterSilence(t *testing.T) {
	recorder := commitRecorder{}
	s := newSegmenter(testSegmenterConfig(), recorder.onCommit, recorder.onSpeculative)

	start := time.Now()
	s.observe(TranscriptEvent{Text: "hello", IsFinal: true, Timestamp: start})
	s.observe(TranscriptEvent{Text: "there", IsFinal: true, Timestamp: start.Add(200 * time.Millisecond)})

	s.checkSilence(start.Add(400 * time.Millisecond))
	if commits := recorder.committed(); len(commits) != 0 {
		t.Fatalf("expected no commit before threshold, got %v", commits)
	}

	s.checkSilence(start.Add(800 * time.Millisecond))
	s.checkSilence(start.Add(900 * time.Millisecond))
	s.checkSilence(start.Add(2 * time.Second))

	commits := recorder.committed()
	if len(commits) != 1 {
		t.Fatalf("expected exactly one commit, got %d (%v)", len(commits), commits)
	}
	if commits[0] != "hello there" {
		t.Fatalf("expected concatenated utterance, got %q", commits[0])
	}
}

func TestSegmenterNewSpeechSupersedesPendingCommit(t *testing.T) {
	recorder := commitRecorder{}
	s := newSegmenter(testSegmenterConfig(), recorder.onCommit, recorder.onSpeculative)

	start := time.Now()
	s.observe(TranscriptEvent{Text: "hold on", IsFinal: true, Timestamp: start})
	// New speech arrives before the threshold elapses; the old deadline must
	// not fire.
	s.observe(TranscriptEvent{Text: "one second", IsFinal: true, Timestamp: start.Add(400 * time.Millisecond)})

	s.checkSilence(start.Add(600 * time.Millisecond))
	if commits := recorder.committed(); len(commits) != 0 {
		t.Fatalf("expected superseded deadline not to fire, got %v", commits)
	}

	s.checkSilence(start.Add(1100 * time.Millisecond))
	commits := recorder.committed()
	if len(commits) != 1 || commits[0] != "hold on one second" {
		t.Fatalf("expected one commit with full text, got %v", commits)
	}
}

func TestSegmenterEarlyCommitOnPunctuation(t *testing.T) {
	recorder := commitRecorder{}
	s := newSegmenter(testSegmenterConfig(), recorder.onCommit, recorder.onSpeculative)

	s.observe(TranscriptEvent{Text: "how are you?", IsFinal: true, Timestamp: time.Now()})

	commits := recorder.committed()
	if len(commits) != 1 || commits[0] != "how are you?" {
		t.Fatalf("expected immediate commit on terminal punctuation, got %v", commits)
	}
}

func TestSegmenterEarlyCommitOnWordCount(t *testing.T) {
	recorder := commitRecorder{}
	s := newSegmenter(testSegmenterConfig(), recorder.onCommit, recorder.onSpeculative)

	s.observe(TranscriptEvent{Text: "What is your favorite color", IsFinal: true, Timestamp: time.Now()})

	commits := recorder.committed()
	if len(commits) != 1 || commits[0] != "What is your favorite color" {
		t.Fatalf("expected early commit at the word threshold, got %v", commits)
	}
}

func TestSegmenterInterimNeverCommits(t *testing.T) {
	recorder := commitRecorder{}
	s := newSegmenter(testSegmenterConfig(), recorder.onCommit, recorder.onSpeculative)

	start := time.Now()
	s.observe(TranscriptEvent{Text: "this is quite a long interim sentence.", IsFinal: false, Timestamp: start})
	s.checkSilence(start.Add(5 * time.Second))

	if commits := recorder.committed(); len(commits) != 0 {
		t.Fatalf("expected interim fragments never to commit, got %v", commits)
	}
	if speculated := recorder.speculated(); len(speculated) != 1 {
		t.Fatalf("expected interim text to seed speculation once, got %v", speculated)
	}
}

func TestSegmenterSpeculatesOncePerUtterance(t *testing.T) {
	recorder := commitRecorder{}
	s := newSegmenter(testSegmenterConfig(), recorder.onCommit, recorder.onSpeculative)

	s.observe(TranscriptEvent{Text: "what should we have for dinner", IsFinal: false, Timestamp: time.Now()})
	s.observe(TranscriptEvent{Text: "what should we have for dinner tonight", IsFinal: false, Timestamp: time.Now()})

	if speculated := recorder.speculated(); len(speculated) != 1 {
		t.Fatalf("expected a single speculation seed, got %v", speculated)
	}
}

func TestSegmenterCurrentTranscriptIncludesInterim(t *testing.T) {
	s := newSegmenter(testSegmenterConfig(), nil, nil)

	s.observe(TranscriptEvent{Text: "first part", IsFinal: true, Timestamp: time.Now()})
	s.observe(TranscriptEvent{Text: "and then", IsFinal: false, Timestamp: time.Now()})

	if got := s.currentTranscript(); got != "first part and then" {
		t.Fatalf("expected combined transcript, got %q", got)
	}

	s.reset()
	if got := s.currentTranscript(); got != "" {
		t.Fatalf("expected empty transcript after reset, got %q", got)
	}
}
