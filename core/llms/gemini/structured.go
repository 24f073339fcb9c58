package gemini

import (
	"bytes"
	"context"
	"fmt"
	"reflect"

	"github.com/bytedance/sonic"
	"github.com/evkarin/switchboard/core/llms"
	"github.com/invopop/jsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PromptWithStructure prompts the model in JSON mode, constraining the reply
// to the schema reflected from out, and unmarshals the reply into out. The out
// argument must be a non-nil pointer to a struct.
func (c *Client) PromptWithStructure(ctx context.Context, messages []llms.Message, out any, opts ...llms.PromptOption) error {
	ctx, span := tracer.Start(ctx, "gemini.prompt.structured")
	defer span.End()

	options := llms.PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	outType := reflect.TypeOf(out)
	if outType == nil || outType.Kind() != reflect.Ptr {
		return fmt.Errorf("structured output target must be a pointer, got %T", out)
	}

	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.ReflectFromType(outType.Elem())
	// Gemini's response schema is an OpenAPI subset and rejects the meta
	// fields a full JSON schema carries.
	schema.Version = ""
	schema.ID = ""

	if schemaBytes, err := schema.MarshalJSON(); err == nil {
		span.SetAttributes(attribute.String("request.schema", string(schemaBytes)))
	}

	contents, system := toContents(messages, options.Instructions)
	request := generateRequest{
		Contents:          contents,
		SystemInstruction: system,
		GenerationConfig: &generationConfig{
			MaxOutputTokens:  options.MaxTokens,
			Temperature:      options.Temperature,
			ResponseMimeType: "application/json",
			ResponseSchema:   schema,
		},
	}

	resp, err := c.post(ctx, request, false)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "structured prompt failed")
		return err
	}
	defer resp.Body.Close()

	buf := &bytes.Buffer{}
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to read response: %w", err)
	}

	var response generateResponse
	if err := sonic.Unmarshal(buf.Bytes(), &response); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if response.Error != nil {
		span.RecordError(response.Error)
		span.SetStatus(codes.Error, "structured prompt returned an error")
		return classifyError(response.Error)
	}
	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return fmt.Errorf("structured prompt returned no candidates")
	}

	reply := response.Candidates[0].Content.Parts[0].Text
	if err := sonic.Unmarshal([]byte(reply), out); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to decode structured reply: %w", err)
	}
	return nil
}
