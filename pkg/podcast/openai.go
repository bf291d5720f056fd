package podcast

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

const DefaultOpenAIScriptModel = "gpt-4.1-mini"

var _ ScriptWriter = (*OpenAIWriter)(nil)

// OpenAIWriter writes scripts with OpenAI structured outputs.
type OpenAIWriter struct {
	Client *openai.Client
	Model  string
}

// NewOpenAIWriter creates a writer with its own client. baseURL may be empty.
func NewOpenAIWriter(apiKey, baseURL, model string) *OpenAIWriter {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIWriter{Client: &client, Model: model}
}

func (w *OpenAIWriter) WriteScript(ctx context.Context, req Request) (*Script, error) {
	schema, err := scriptSchema()
	if err != nil {
		return nil, err
	}
	params := openai.ChatCompletionNewParams{
		Model: orDefault(w.Model, DefaultOpenAIScriptModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(req)),
			openai.UserMessage(userPrompt(req)),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "podcast_script",
					Description: param.NewOpt("Dialogue of a news podcast episode"),
					Schema:      strictSchema(schema.CloneSchemas()),
					Strict:      param.NewOpt(true),
				},
			},
		},
	}
	resp, err := w.Client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("podcast: openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("podcast: openai returned no choices")
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return nil, fmt.Errorf("podcast: openai refused: %s", choice.Message.Refusal)
	}
	if choice.FinishReason != "stop" {
		return nil, fmt.Errorf("podcast: openai finished with %s", choice.FinishReason)
	}
	return parseScript(choice.Message.Content)
}

// strictSchema closes every object and requires every property, as strict
// structured outputs demand.
func strictSchema(s *jsonschema.Schema) *jsonschema.Schema {
	if s == nil {
		return nil
	}
	if s.Type != "" && len(s.Types) > 0 {
		s.Types = append(s.Types, s.Type)
		s.Type = ""
	}
	s.Items = strictSchema(s.Items)
	if len(s.Properties) > 0 {
		s.AdditionalProperties = &jsonschema.Schema{Not: &jsonschema.Schema{}}
		for k, p := range s.Properties {
			s.Properties[k] = strictSchema(p)
		}
		s.Required = slices.Sorted(maps.Keys(s.Properties))
	}
	return s
}
