package dialog

import (
	"context"
	"fmt"

	"github.com/evkarin/switchboard/core/llms"
)

// CallSummary is the structured wrap-up of a finished conversation.
type CallSummary struct {
	Summary   string   `json:"summary" jsonschema:"description=One or two sentences covering what the call was about"`
	Topics    []string `json:"topics" jsonschema:"description=Short topic labels in the order they came up"`
	Sentiment string   `json:"sentiment" jsonschema:"description=Overall caller sentiment,enum=positive,enum=neutral,enum=negative"`
}

const summaryInstructions = "You summarize finished phone conversations. " +
	"Base the summary only on the transcript provided; do not invent details."

// summarizeCall asks the structured-output collaborator for a wrap-up of the
// conversation. Called after teardown, off the engine goroutine.
func summarizeCall(ctx context.Context, client llms.StructuredClient, history []llms.Message) (*CallSummary, error) {
	ctx, span := tracer.Start(ctx, "summarize call")
	defer span.End()

	if client == nil {
		return nil, fmt.Errorf("no summarizer configured")
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("nothing to summarize")
	}

	messages := make([]llms.Message, len(history), len(history)+1)
	copy(messages, history)
	messages = append(messages, llms.NewMessage(llms.RoleUser, "Summarize this conversation."))

	summary := CallSummary{}
	if err := client.PromptWithStructure(ctx, messages, &summary,
		llms.WithInstructions(summaryInstructions),
	); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to summarize call: %w", err)
	}
	return &summary, nil
}
