package dialog

import (
	"time"

	"github.com/evkarin/switchboard/core/trigger"
)

// TranscriptEvent is one normalized recognition result from the
// speech-to-text collaborator. Immutable once created.
type TranscriptEvent struct {
	Text      string
	IsFinal   bool
	Timestamp time.Time
}

type eventKind int

const (
	eventTranscript eventKind = iota
	eventCommit
	eventSpeculative
	eventGenerationDone
	eventPlaybackDone
	eventTrigger
	eventTranscriberLost
)

// engineEvent is the only thing that flows through the orchestrator queue.
// All shared-state mutation happens on the single goroutine draining it,
// even though the I/O that produces events is concurrent.
type engineEvent struct {
	kind eventKind

	transcript TranscriptEvent
	utterance  string
	task       *GenerationTask
	session    *PlaybackSession
	trigger    trigger.Event
	err        error
}

const eventQueueCapacity = 32
