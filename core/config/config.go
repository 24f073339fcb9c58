// Package config loads the agent personality from a JSON file, falling back
// to built-in defaults when the file is missing or malformed.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
	"github.com/jinzhu/copier"
)

type Personality struct {
	Name          string        `json:"name"`
	SystemMessage string        `json:"system_message"`
	Greeting      string        `json:"greeting,omitempty"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
	Style         Style         `json:"conversation_style"`
}

type VoiceSettings struct {
	VoiceID         string  `json:"voice_id,omitempty"`
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type Style struct {
	MaxResponseLength          int      `json:"max_response_length"`
	Temperature                float32  `json:"temperature"`
	InterruptionAcknowledgment string   `json:"interruption_acknowledgment"`
	ThinkingSounds             []string `json:"thinking_sounds"`
}

func DefaultPersonality() Personality {
	return Personality{
		Name:          "Assistant",
		SystemMessage: "You are a helpful AI assistant engaged in voice conversation.",
		Greeting:      "Hello?",
		VoiceSettings: VoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			UseSpeakerBoost: true,
		},
		Style: Style{
			MaxResponseLength:          150,
			Temperature:                0.7,
			InterruptionAcknowledgment: "Yes?",
			ThinkingSounds:             []string{"Hmm...", "Let me think..."},
		},
	}
}

// Loader reads and writes the personality file under a config directory.
type Loader struct {
	dir         string
	personality Personality
}

func NewLoader(dir string) *Loader {
	loader := &Loader{dir: dir}
	loader.Reload()
	return loader
}

func (l *Loader) personalityPath() string {
	return filepath.Join(l.dir, "personality.json")
}

// Reload re-reads the personality file. A missing or malformed file leaves
// the defaults in place rather than failing the call.
func (l *Loader) Reload() {
	l.personality = DefaultPersonality()

	data, err := os.ReadFile(l.personalityPath())
	if err != nil {
		return
	}
	loaded := DefaultPersonality()
	if err := sonic.Unmarshal(data, &loaded); err != nil {
		return
	}
	l.personality = loaded
}

// Personality returns a deep copy so callers can mutate their view without
// affecting the loader.
func (l *Loader) Personality() Personality {
	copied := Personality{}
	if err := copier.CopyWithOption(&copied, &l.personality, copier.Option{DeepCopy: true}); err != nil {
		return l.personality
	}
	return copied
}

// Update merges the given personality over the current one and persists it.
func (l *Loader) Update(updates Personality) error {
	if err := copier.CopyWithOption(&l.personality, &updates, copier.Option{IgnoreEmpty: true, DeepCopy: true}); err != nil {
		return fmt.Errorf("failed to merge personality updates: %w", err)
	}
	return l.save()
}

func (l *Loader) save() error {
	data, err := sonic.MarshalIndent(l.personality, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode personality: %w", err)
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(l.personalityPath(), data, 0o644); err != nil {
		return fmt.Errorf("failed to write personality: %w", err)
	}
	return nil
}
