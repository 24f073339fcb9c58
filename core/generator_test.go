package dialog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/evkarin/switchboard/core/llms"
)

func testGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Deadline:    2 * time.Second,
		CancelGrace: 200 * time.Millisecond,
		Apology:     "Sorry, say that again?",
	}
}

func TestGeneratorAccumulatesStream(t *testing.T) {
	llm := &stubLLM{fallback: stubStream{chunks: []string{"Blue,", " like the sky."}}}
	g := newGenerator(llm, testGeneratorConfig())

	history := []llms.Message{llms.NewMessage(llms.RoleAssistant, "Hello?")}
	task := g.generate(context.Background(), history, "what is your favorite color", false)

	<-task.Done()
	if task.State() != TaskCompleted {
		t.Fatalf("expected completed task, got %s", task.State())
	}
	if task.Result() != "Blue, like the sky." {
		t.Fatalf("expected accumulated result, got %q", task.Result())
	}

	prompt := llm.lastPrompt()
	if len(prompt) != 2 {
		t.Fatalf("expected history plus utterance in prompt, got %d messages", len(prompt))
	}
	if prompt[1].Role != llms.RoleUser || prompt[1].Content != "what is your favorite color" {
		t.Fatalf("expected utterance as trailing user message, got %+v", prompt[1])
	}
}

func TestGeneratorScratchCopyLeavesHistoryAlone(t *testing.T) {
	llm := &stubLLM{fallback: stubStream{chunks: []string{"ok"}}}
	g := newGenerator(llm, testGeneratorConfig())

	history := []llms.Message{llms.NewMessage(llms.RoleUser, "hi")}
	task := g.generate(context.Background(), history, "another thing", false)
	<-task.Done()

	if len(history) != 1 {
		t.Fatalf("expected caller history untouched, got %d messages", len(history))
	}
}

func TestGeneratorSecondTaskCancelsFirst(t *testing.T) {
	llm := &stubLLM{scripts: []stubStream{
		{block: true},
		{chunks: []string{"second answer"}},
	}}
	g := newGenerator(llm, testGeneratorConfig())

	first := g.generate(context.Background(), nil, "first question", false)
	second := g.generate(context.Background(), nil, "second question", false)

	<-first.Done()
	<-second.Done()

	if first.State() != TaskCancelled {
		t.Fatalf("expected first task cancelled, got %s", first.State())
	}
	if second.State() != TaskCompleted || second.Result() != "second answer" {
		t.Fatalf("expected second task to complete, got %s %q", second.State(), second.Result())
	}
	if g.isCurrent(first) {
		t.Fatalf("expected a cancelled task to lose the generation slot")
	}
	if !g.isCurrent(second) {
		t.Fatalf("expected the new task to own the generation slot")
	}
}

func TestGeneratorAdoptedSpeculativeTaskCompletes(t *testing.T) {
	llm := &stubLLM{fallback: stubStream{chunks: []string{"Spaghetti sounds great."}}}
	g := newGenerator(llm, testGeneratorConfig())

	task := g.generate(context.Background(), nil, "what should we eat tonight", true)
	// A matching commit adopts the task while the run goroutine may still
	// be starting; the flag flip must not disturb it.
	task.Speculative = false

	<-task.Done()
	if task.State() != TaskCompleted {
		t.Fatalf("expected the adopted task to complete, got %s", task.State())
	}
	if task.Result() != "Spaghetti sounds great." {
		t.Fatalf("expected the speculative result kept, got %q", task.Result())
	}
}

func TestGeneratorFailureFallsBackToApology(t *testing.T) {
	llm := &stubLLM{fallback: stubStream{err: errors.New("boom")}}
	g := newGenerator(llm, testGeneratorConfig())

	task := g.generate(context.Background(), nil, "hello there friend", false)
	<-task.Done()

	if task.State() != TaskFailed {
		t.Fatalf("expected failed task, got %s", task.State())
	}
	if task.Result() != "Sorry, say that again?" {
		t.Fatalf("expected apology fallback, got %q", task.Result())
	}
	if task.Err() == nil {
		t.Fatalf("expected the underlying error to be kept")
	}
}

func TestGeneratorDeadlineFailsOver(t *testing.T) {
	config := testGeneratorConfig()
	config.Deadline = 50 * time.Millisecond
	llm := &stubLLM{fallback: stubStream{block: true}}
	g := newGenerator(llm, config)

	task := g.generate(context.Background(), nil, "slow question", false)

	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("expected the deadline to end the task")
	}
	if task.State() != TaskFailed {
		t.Fatalf("expected failed task on deadline, got %s", task.State())
	}
	if task.Result() != config.Apology {
		t.Fatalf("expected apology on deadline, got %q", task.Result())
	}
}

func TestGeneratorCancelBeatsResult(t *testing.T) {
	llm := &stubLLM{fallback: stubStream{block: true}}
	g := newGenerator(llm, testGeneratorConfig())

	task := g.generate(context.Background(), nil, "never mind", false)
	task.Cancel()
	<-task.Done()

	if task.State() != TaskCancelled {
		t.Fatalf("expected cancelled task, got %s", task.State())
	}
}

func TestGeneratorWithoutClientFailsImmediately(t *testing.T) {
	g := newGenerator(nil, testGeneratorConfig())

	task := g.generate(context.Background(), nil, "anyone there", false)
	<-task.Done()

	if task.State() != TaskFailed || task.Result() != "Sorry, say that again?" {
		t.Fatalf("expected immediate apology without a client, got %s %q", task.State(), task.Result())
	}
}
