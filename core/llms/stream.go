package llms

import (
	"context"
	"iter"
)

// Stream is a lazily evaluated reply stream. Iteration drives the request;
// abandoning the iterator abandons the request.
type Stream interface {
	Chunks(ctx context.Context) iter.Seq2[string, error]
}

// StreamingClient is the language-generation collaborator contract: given an
// ordered message history it produces a stream of reply text fragments.
type StreamingClient interface {
	PromptWithStream(ctx context.Context, messages []Message, opts ...PromptOption) Stream
}

// StructuredClient is implemented by clients that can constrain a reply to a
// schema reflected from the output value.
type StructuredClient interface {
	PromptWithStructure(ctx context.Context, messages []Message, out any, opts ...PromptOption) error
}

type PromptOptions struct {
	// Instructions is prepended as the system message when the history does
	// not already carry one.
	Instructions string
	// MaxTokens caps the reply length; zero means provider default.
	MaxTokens int
	// Temperature of zero means provider default.
	Temperature float32
}

type PromptOption func(*PromptOptions)

func WithInstructions(instructions string) PromptOption {
	return func(o *PromptOptions) { o.Instructions = instructions }
}

func WithMaxTokens(maxTokens int) PromptOption {
	return func(o *PromptOptions) { o.MaxTokens = maxTokens }
}

func WithTemperature(temperature float32) PromptOption {
	return func(o *PromptOptions) { o.Temperature = temperature }
}
