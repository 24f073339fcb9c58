package gemini

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/evkarin/switchboard/core/llms"
	"go.opentelemetry.io/otel/codes"
)

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	Temperature      float32 `json:"temperature,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
	ResponseSchema   any     `json:"responseSchema,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("gemini api error (%s): %s", e.Status, e.Message)
}

func (c *Client) PromptWithStream(ctx context.Context, messages []llms.Message, opts ...llms.PromptOption) llms.Stream {
	options := llms.PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	return &stream{client: c, messages: messages, options: options}
}

type stream struct {
	client   *Client
	messages []llms.Message
	options  llms.PromptOptions
}

func (s *stream) Chunks(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, span := tracer.Start(ctx, "gemini.stream")
		defer span.End()

		resp, err := s.client.send(ctx, s.messages, s.options, true)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to open stream")
			yield("", classifyError(err))
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if !bytes.HasPrefix(line, []byte("data: ")) {
				continue
			}
			payload := bytes.TrimPrefix(line, []byte("data: "))
			if bytes.Equal(payload, []byte("[DONE]")) {
				break
			}

			var chunk generateResponse
			if err := sonic.Unmarshal(payload, &chunk); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed to decode stream chunk")
				yield("", fmt.Errorf("failed to decode stream chunk: %w", err))
				return
			}
			if chunk.Error != nil {
				span.RecordError(chunk.Error)
				span.SetStatus(codes.Error, "stream returned an error")
				yield("", classifyError(chunk.Error))
				return
			}
			for _, candidate := range chunk.Candidates {
				for _, p := range candidate.Content.Parts {
					if p.Text == "" {
						continue
					}
					if !yield(p.Text, nil) {
						return
					}
				}
			}
		}
		if err := scanner.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "stream read failed")
			yield("", classifyError(err))
		}
	}
}

func (c *Client) send(ctx context.Context, messages []llms.Message, options llms.PromptOptions, streaming bool) (*http.Response, error) {
	contents, system := toContents(messages, options.Instructions)
	request := generateRequest{
		Contents:          contents,
		SystemInstruction: system,
	}
	if options.MaxTokens > 0 || options.Temperature != 0 {
		request.GenerationConfig = &generationConfig{
			MaxOutputTokens: options.MaxTokens,
			Temperature:     options.Temperature,
		}
	}
	return c.post(ctx, request, streaming)
}

func (c *Client) post(ctx context.Context, request generateRequest, streaming bool) (*http.Response, error) {
	body, err := sonic.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	method := "generateContent"
	if streaming {
		method = "streamGenerateContent?alt=sse"
	}
	url := fmt.Sprintf("%s/%s:%s", baseURL, c.model, method)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var failure generateResponse
		buf := &bytes.Buffer{}
		if _, err := buf.ReadFrom(resp.Body); err == nil {
			_ = sonic.Unmarshal(buf.Bytes(), &failure)
		}
		if failure.Error != nil {
			return nil, classifyError(failure.Error)
		}
		return nil, classifyStatus(resp.StatusCode, strings.TrimSpace(buf.String()))
	}
	return resp, nil
}

func classifyError(err error) error {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.Code, apiErr.Message)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", llms.ErrTimeout, err)
	}
	return err
}

func classifyStatus(code int, message string) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", llms.ErrPermissionDenied, message)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", llms.ErrTimeout, message)
	default:
		return fmt.Errorf("gemini request failed (%d): %s", code, message)
	}
}
