package dialog

import "fmt"

// State is the single source of truth for what the conversation is doing.
// Every transition goes through Orchestrator.transitionTo under one lock;
// there are deliberately no boolean side-flags to fall out of sync with it.
type State int

const (
	// StateIdle: no conversation; the line is on the hook or torn down.
	StateIdle State = iota
	// StateListening: accumulating the user's utterance.
	StateListening
	// StateGenerating: a reply is being composed for a committed utterance.
	StateGenerating
	// StateSpeaking: a reply is being synthesized and rendered.
	StateSpeaking
	// StateInterrupted: playback was cut short by a barge-in; a new
	// generation for the interrupting utterance is about to start.
	StateInterrupted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateGenerating:
		return "generating"
	case StateSpeaking:
		return "speaking"
	case StateInterrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// validTransitions holds the edges of the conversation state machine.
// Teardown to StateIdle is allowed from anywhere and is not listed.
var validTransitions = map[State][]State{
	StateIdle:        {StateListening},
	StateListening:   {StateGenerating, StateSpeaking},
	StateGenerating:  {StateSpeaking, StateGenerating, StateListening},
	StateSpeaking:    {StateInterrupted, StateListening},
	StateInterrupted: {StateGenerating},
}

func transitionAllowed(from, to State) bool {
	if to == StateIdle {
		return true
	}
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
