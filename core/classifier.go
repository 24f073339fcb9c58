package dialog

import (
	"strings"
	"time"
)

// ClassifierConfig tunes barge-in detection. The word lists and timing
// windows were tuned by ear against a live microphone; expect to retune them
// for a different room or language mix.
type ClassifierConfig struct {
	// MinWords rejects shorter fragments as probable noise or echo.
	MinWords int
	// SubstantiveWords accepts any fragment at least this long even without
	// a marker word.
	SubstantiveWords int
	// PlaybackGrace swallows fragments arriving right after playback starts,
	// which are usually the microphone picking up the system's own voice.
	PlaybackGrace time.Duration
	// GenerationGrace swallows fragments arriving right after generation
	// starts, which are usually the tail of the utterance being answered.
	GenerationGrace time.Duration
	// Markers are phrase prefixes that signal interruption intent.
	Markers []string
	// Interrogatives are leading words that mark a fragment as a question.
	Interrogatives []string
}

func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		MinWords:         2,
		SubstantiveWords: 4,
		PlaybackGrace:    time.Second,
		GenerationGrace:  5 * time.Second,
		Markers: []string{
			"wait", "stop", "hold on", "excuse me", "sorry", "actually",
			"let me", "but", "however", "i need", "i want", "can you",
			"what about", "i think", "no", "yes but", "hang on",
			"shut up", "quiet", "enough", "okay stop", "okay shut",
			"attends", "attendez", "arrête", "arrêtez", "pardon", "excusez-moi",
			"désolé", "désolée", "en fait", "laisse-moi", "laissez-moi",
			"mais", "cependant", "j'ai besoin", "je veux", "pouvez-vous",
			"et alors", "je pense", "non", "oui mais", "moment", "un moment",
		},
		Interrogatives: []string{
			"what", "why", "how", "when", "where", "who",
			"qu'est-ce", "pourquoi", "comment", "quand", "où", "qui",
			"que", "quoi", "quel", "quelle", "quels", "quelles",
		},
	}
}

// classifier decides whether a transcript fragment heard during playback is
// an intentional barge-in. It is a heuristic: false positives interrupt
// prematurely, false negatives talk over the user, and both are accepted
// trade-offs.
type classifier struct {
	config ClassifierConfig

	now func() time.Time
}

func newClassifier(config ClassifierConfig) *classifier {
	return &classifier{config: config, now: time.Now}
}

// interruptionContext carries the timing the grace windows are measured
// against.
type interruptionContext struct {
	sessionActive   bool
	playbackStart   time.Time
	generationStart time.Time
}

func (c *classifier) isInterruption(fragment string, isFinal bool, ictx interruptionContext) bool {
	if !ictx.sessionActive || !isFinal {
		return false
	}

	fragment = strings.ToLower(strings.TrimSpace(fragment))
	words := strings.Fields(fragment)
	if len(words) < c.config.MinWords {
		return false
	}

	now := c.now()
	if !ictx.playbackStart.IsZero() && now.Sub(ictx.playbackStart) < c.config.PlaybackGrace {
		return false
	}
	if !ictx.generationStart.IsZero() && now.Sub(ictx.generationStart) < c.config.GenerationGrace {
		return false
	}

	for _, marker := range c.config.Markers {
		if strings.HasPrefix(fragment, marker) {
			return true
		}
	}
	for _, interrogative := range c.config.Interrogatives {
		if words[0] == interrogative {
			return true
		}
	}
	return len(words) >= c.config.SubstantiveWords
}
