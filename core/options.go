package dialog

import (
	"time"

	"github.com/evkarin/switchboard/core/config"
	"github.com/evkarin/switchboard/core/llms"
	"github.com/evkarin/switchboard/core/trigger"
)

type OrchestratorOption func(*Orchestrator)

// WithSpeechToText wires the transcription collaborator. Without one the
// engine runs but hears nothing.
func WithSpeechToText(client SpeechToText) OrchestratorOption {
	return func(o *Orchestrator) { o.speechToText.client = client }
}

// WithTextToSpeech wires the synthesis collaborator.
func WithTextToSpeech(client SpeechSynthesizer) OrchestratorOption {
	return func(o *Orchestrator) { o.tts = client }
}

// WithLLM wires the language-generation collaborator.
func WithLLM(client llms.StreamingClient) OrchestratorOption {
	return func(o *Orchestrator) { o.llm = client }
}

// WithAudioClient wires the capture/render device.
func WithAudioClient(client AudioClient) OrchestratorOption {
	return func(o *Orchestrator) { o.audioClient = client }
}

// WithTriggerSource wires the hardware trigger surface (hook switch and
// dial).
func WithTriggerSource(source trigger.Source) OrchestratorOption {
	return func(o *Orchestrator) { o.triggers = source }
}

// WithSummarizer wires an optional structured-output collaborator that
// produces a call summary after teardown.
func WithSummarizer(client llms.StructuredClient) OrchestratorOption {
	return func(o *Orchestrator) { o.summarizer = client }
}

// WithPersonality applies a loaded personality: system prompt, greeting, and
// reply style.
func WithPersonality(personality config.Personality) OrchestratorOption {
	return func(o *Orchestrator) {
		if personality.SystemMessage != "" {
			o.generatorConfig.Instructions = personality.SystemMessage
		}
		if personality.Greeting != "" {
			o.greeting = personality.Greeting
		}
		if personality.Style.MaxResponseLength > 0 {
			o.generatorConfig.MaxTokens = personality.Style.MaxResponseLength
		}
		if personality.Style.Temperature != 0 {
			o.generatorConfig.Temperature = personality.Style.Temperature
		}
	}
}

func WithGreeting(greeting string) OrchestratorOption {
	return func(o *Orchestrator) { o.greeting = greeting }
}

func WithInstructions(instructions string) OrchestratorOption {
	return func(o *Orchestrator) { o.generatorConfig.Instructions = instructions }
}

func WithSegmenterConfig(config SegmenterConfig) OrchestratorOption {
	return func(o *Orchestrator) { o.segmenterConfig = config }
}

func WithGeneratorConfig(config GeneratorConfig) OrchestratorOption {
	return func(o *Orchestrator) {
		instructions := o.generatorConfig.Instructions
		o.generatorConfig = config
		if config.Instructions == "" {
			o.generatorConfig.Instructions = instructions
		}
	}
}

func WithClassifierConfig(config ClassifierConfig) OrchestratorOption {
	return func(o *Orchestrator) { o.classifierConfig = config }
}

// WithoutTones disables call-progress tones (dial tone, thinking ticks).
func WithoutTones() OrchestratorOption {
	return func(o *Orchestrator) { o.tonesEnabled = false }
}

// WithStrictStateChecks makes invalid state transitions panic instead of
// being logged and ignored. Meant for development and tests.
func WithStrictStateChecks() OrchestratorOption {
	return func(o *Orchestrator) { o.strict = true }
}

// WithReconnectPolicy tunes transcription reconnection after a dropped
// connection.
func WithReconnectPolicy(attempts int, backoff time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.reconnectAttempts = attempts
		o.reconnectBackoff = backoff
	}
}

// WithStateChangeCallback reports every state transition. Callbacks run on
// the engine goroutine and must not call mutating orchestrator methods
// synchronously.
func WithStateChangeCallback(callback func(State)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onStateChange = callback }
}

// WithTranscriptCallback reports every normalized transcript event.
func WithTranscriptCallback(callback func(TranscriptEvent)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onTranscript = callback }
}

// WithReplyCallback reports every reply as it starts being spoken.
func WithReplyCallback(callback func(string)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onReply = callback }
}

// WithDigitCallback reports dialed digits while a conversation is up.
func WithDigitCallback(callback func(int)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onDigit = callback }
}

// WithSummaryCallback receives the call summary after teardown, when a
// summarizer is wired.
func WithSummaryCallback(callback func(CallSummary)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onSummary = callback }
}
