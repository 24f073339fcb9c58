package openai

import (
	"github.com/sashabaranov/go-openai"
)

const defaultModel = openai.GPT4oMini

// Client adapts the OpenAI chat-completions API to the engine's streaming
// collaborator contract.
type Client struct {
	client *openai.Client
	model  string
}

type ClientOption func(*Client)

func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		client: openai.NewClient(apiKey),
		model:  defaultModel,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}
