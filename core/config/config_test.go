package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoaderDefaultsWhenFileMissing(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "nope"))

	personality := loader.Personality()
	if personality.Name != "Assistant" {
		t.Fatalf("expected default name, got %q", personality.Name)
	}
	if personality.Style.MaxResponseLength != 150 {
		t.Fatalf("expected default response length, got %d", personality.Style.MaxResponseLength)
	}
}

func TestLoaderDefaultsWhenFileMalformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "personality.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader(dir)
	if got := loader.Personality().SystemMessage; got == "" {
		t.Fatalf("expected default system message, got empty")
	}
}

func TestLoaderReadsFile(t *testing.T) {
	dir := t.TempDir()
	payload := `{"name": "Operator", "conversation_style": {"temperature": 0.2}}`
	if err := os.WriteFile(filepath.Join(dir, "personality.json"), []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader(dir)
	personality := loader.Personality()
	if personality.Name != "Operator" {
		t.Fatalf("expected configured name, got %q", personality.Name)
	}
	if personality.Style.Temperature != 0.2 {
		t.Fatalf("expected configured temperature, got %v", personality.Style.Temperature)
	}
}

func TestLoaderUpdatePersists(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader(dir)

	if err := loader.Update(Personality{Name: "Concierge"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	reloaded := NewLoader(dir)
	if got := reloaded.Personality().Name; got != "Concierge" {
		t.Fatalf("expected persisted name, got %q", got)
	}
	// Fields absent from the update keep their previous values.
	if got := reloaded.Personality().Style.InterruptionAcknowledgment; got != "Yes?" {
		t.Fatalf("expected untouched acknowledgment, got %q", got)
	}
}

func TestPersonalityDeepCopy(t *testing.T) {
	loader := NewLoader(t.TempDir())

	first := loader.Personality()
	first.Style.ThinkingSounds[0] = "mutated"

	if got := loader.Personality().Style.ThinkingSounds[0]; got == "mutated" {
		t.Fatalf("caller mutation leaked into loader state")
	}
}
