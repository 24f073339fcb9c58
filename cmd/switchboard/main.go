// Command switchboard runs the spoken-dialogue engine against the machine's
// audio devices, with a console that stands in for the phone hardware:
// press p to pick up, dial a digit to start talking, h to hang up.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	dialog "github.com/evkarin/switchboard/core"
	"github.com/evkarin/switchboard/core/audio/miniaudio"
	"github.com/evkarin/switchboard/core/config"
	"github.com/evkarin/switchboard/core/llms"
	"github.com/evkarin/switchboard/core/llms/gemini"
	"github.com/evkarin/switchboard/core/llms/openai"
	deepgramstt "github.com/evkarin/switchboard/core/speechtotext/deepgram"
	deepgramtts "github.com/evkarin/switchboard/core/texttospeech/deepgram"
	"github.com/evkarin/switchboard/core/texttospeech/elevenlabs"
	"github.com/evkarin/switchboard/core/trigger"
)

func main() {
	configDir := flag.String("config", "config", "directory holding personality.json")
	flag.Parse()

	if err := run(*configDir); err != nil {
		log.Fatal(err)
	}
}

func run(configDir string) error {
	personality := config.NewLoader(configDir).Personality()

	llm, summarizer, err := buildLanguageClients()
	if err != nil {
		return err
	}
	synthesizer, err := buildSynthesizer(personality)
	if err != nil {
		return err
	}

	audioClient, err := miniaudio.NewClient()
	if err != nil {
		return fmt.Errorf("failed to initialize audio devices: %w", err)
	}
	defer audioClient.Close()

	feed := trigger.NewFeed()
	events := make(chan consoleEvent, 64)
	// Engine callbacks must never block on the console.
	emit := func(kind consoleEventKind, text string) {
		select {
		case events <- consoleEvent{kind: kind, text: text}:
		default:
		}
	}

	opts := []dialog.OrchestratorOption{
		dialog.WithSpeechToText(deepgramstt.NewTranscriptionClient()),
		dialog.WithTextToSpeech(synthesizer),
		dialog.WithLLM(llm),
		dialog.WithAudioClient(audioClient),
		dialog.WithTriggerSource(feed),
		dialog.WithPersonality(personality),
		dialog.WithStateChangeCallback(func(state dialog.State) {
			emit(eventState, state.String())
		}),
		dialog.WithTranscriptCallback(func(event dialog.TranscriptEvent) {
			if event.IsFinal {
				emit(eventFinal, event.Text)
				return
			}
			emit(eventInterim, event.Text)
		}),
		dialog.WithReplyCallback(func(reply string) {
			emit(eventReply, reply)
		}),
		dialog.WithDigitCallback(func(digit int) {
			emit(eventDigit, fmt.Sprintf("%d", digit))
		}),
	}
	if summarizer != nil {
		opts = append(opts,
			dialog.WithSummarizer(summarizer),
			dialog.WithSummaryCallback(func(summary dialog.CallSummary) {
				emit(eventSummary, summary.Summary)
			}),
		)
	}

	orchestrator := dialog.NewOrchestrator(opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := orchestrator.Run(ctx); err != nil {
		return fmt.Errorf("failed to start orchestrator: %w", err)
	}
	defer orchestrator.Close()

	program := tea.NewProgram(
		newConsoleModel(orchestrator, feed, events),
		tea.WithAltScreen(),
	)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("console failed: %w", err)
	}
	return nil
}

func buildLanguageClients() (llms.StreamingClient, llms.StructuredClient, error) {
	if apiKey, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
		client := gemini.NewClient(apiKey)
		return client, client, nil
	}
	if apiKey, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
		return openai.NewClient(apiKey), nil, nil
	}
	return nil, nil, fmt.Errorf("no language model configured: set GEMINI_API_KEY or OPENAI_API_KEY")
}

func buildSynthesizer(personality config.Personality) (dialog.SpeechSynthesizer, error) {
	if apiKey, ok := os.LookupEnv("ELEVENLABS_API_KEY"); ok {
		opts := []elevenlabs.ClientOption{
			elevenlabs.WithVoiceSettings(personality.VoiceSettings.Stability, personality.VoiceSettings.SimilarityBoost),
		}
		if personality.VoiceSettings.VoiceID != "" {
			opts = append(opts, elevenlabs.WithVoiceID(personality.VoiceSettings.VoiceID))
		}
		return elevenlabs.NewTextToSpeechClient(apiKey, opts...), nil
	}
	if _, ok := os.LookupEnv("DEEPGRAM_API_KEY"); ok {
		return deepgramtts.NewTextToSpeechClient(), nil
	}
	return nil, fmt.Errorf("no speech synthesizer configured: set ELEVENLABS_API_KEY or DEEPGRAM_API_KEY")
}
