package dialog

import (
	"context"
	"errors"
	"testing"

	"github.com/evkarin/switchboard/core/llms"
)

type stubStructured struct {
	summary CallSummary
	err     error
	prompts [][]llms.Message
}

func (s *stubStructured) PromptWithStructure(ctx context.Context, messages []llms.Message, out any, opts ...llms.PromptOption) error {
	s.prompts = append(s.prompts, messages)
	if s.err != nil {
		return s.err
	}
	if target, ok := out.(*CallSummary); ok {
		*target = s.summary
	}
	return nil
}

func TestSummarizeCall(t *testing.T) {
	client := &stubStructured{summary: CallSummary{
		Summary:   "Talked about dinner plans.",
		Topics:    []string{"dinner"},
		Sentiment: "positive",
	}}
	history := []llms.Message{
		llms.NewMessage(llms.RoleUser, "what should we eat tonight"),
		llms.NewMessage(llms.RoleAssistant, "Spaghetti sounds great."),
	}

	summary, err := summarizeCall(context.Background(), client, history)
	if err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	if summary.Summary != "Talked about dinner plans." || summary.Sentiment != "positive" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(client.prompts) != 1 || len(client.prompts[0]) != 3 {
		t.Fatalf("expected transcript plus instruction in prompt, got %v", client.prompts)
	}
}

func TestSummarizeCallRequiresTranscript(t *testing.T) {
	if _, err := summarizeCall(context.Background(), &stubStructured{}, nil); err == nil {
		t.Fatalf("expected an error on empty transcript")
	}
	if _, err := summarizeCall(context.Background(), nil, []llms.Message{llms.NewMessage(llms.RoleUser, "hi")}); err == nil {
		t.Fatalf("expected an error without a client")
	}
}

func TestSummarizeCallPropagatesFailure(t *testing.T) {
	client := &stubStructured{err: errors.New("model unavailable")}
	history := []llms.Message{llms.NewMessage(llms.RoleUser, "hello")}

	if _, err := summarizeCall(context.Background(), client, history); err == nil {
		t.Fatalf("expected the collaborator error to surface")
	}
}
