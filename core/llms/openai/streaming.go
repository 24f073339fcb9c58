package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"

	"github.com/evkarin/switchboard/core/llms"
	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

func (c *Client) PromptWithStream(_ context.Context, messages []llms.Message, opts ...llms.PromptOption) llms.Stream {
	options := llms.PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	return &stream{
		client:   c.client,
		model:    c.model,
		messages: toChatMessages(messages, options),
		options:  options,
	}
}

func toChatMessages(messages []llms.Message, options llms.PromptOptions) []openai.ChatCompletionMessage {
	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages)+1)

	if options.Instructions != "" && (len(messages) == 0 || messages[0].Role != llms.RoleSystem) {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: options.Instructions,
		})
	}

	for _, message := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    string(message.Role),
			Content: message.Content,
		})
	}

	return chatMessages
}

type stream struct {
	client   *openai.Client
	model    string
	messages []openai.ChatCompletionMessage
	options  llms.PromptOptions
}

func (s *stream) Chunks(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, span := tracer.Start(ctx, "prompt llm stream")
		defer span.End()
		span.SetAttributes(attribute.String("request.model", s.model))

		completionStream, err := s.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:       s.model,
			Messages:    s.messages,
			MaxTokens:   s.options.MaxTokens,
			Temperature: s.options.Temperature,
			Stream:      true,
		})
		if err != nil {
			err = classifyError(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield("", err)
			return
		}
		defer completionStream.Close()

		for {
			response, err := completionStream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				err = classifyError(err)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				yield("", err)
				return
			}

			if len(response.Choices) == 0 {
				continue
			}
			if content := response.Choices[0].Delta.Content; content != "" {
				if !yield(content, nil) {
					return
				}
			}
		}
	}
}

func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", llms.ErrPermissionDenied, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", llms.ErrTimeout, err)
	}
	return fmt.Errorf("failed to stream llm response: %w", err)
}
