package correct

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"ismparse/internal"
	"ismparse/internal/config"
)

var (
	ErrNoCandidate = errors.New("corrector returned no candidate")
	ErrDisabled    = errors.New("corrector disabled")
)

// ChatClient is the part of *openai.Client the corrector needs, so tests and
// other OpenAI-compatible backends can stand in.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAICorrector asks a chat model to repair a draft and accepts the answer
// only if it matches the draft schema.
type OpenAICorrector struct {
	client  ChatClient
	model   string
	limiter *rate.Limiter
	schema  *jsonschema.Schema
}

func New(client ChatClient, model string, rps float64, indexNames []string) (*OpenAICorrector, error) {
	schema, err := compileSchema(DraftSchema(indexNames))
	if err != nil {
		return nil, err
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &OpenAICorrector{client: client, model: model, limiter: rate.NewLimiter(limit, 1), schema: schema}, nil
}

// NewFromConfig wires an OpenAI-compatible endpoint from the environment.
func NewFromConfig(cfg config.Config, provider config.Provider) (*OpenAICorrector, error) {
	if !cfg.CorrectorEnabled {
		return nil, ErrDisabled
	}
	transport := openai.DefaultConfig(cfg.LLMAPIKey)
	if strings.TrimSpace(cfg.LLMBaseURL) != "" {
		transport.BaseURL = strings.TrimRight(cfg.LLMBaseURL, "/")
	}
	names := append(provider.Indices(internal.Manufacturing), provider.Indices(internal.Services)...)
	return New(openai.NewClientWithConfig(transport), cfg.LLMModel, cfg.CorrectorRPS, names)
}

func (c *OpenAICorrector) Correct(ctx context.Context, prompt string, draft internal.Draft) (internal.Draft, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return internal.Draft{}, fmt.Errorf("corrector rate limit: %w", err)
	}
	payload, err := json.Marshal(draft)
	if err != nil {
		return internal.Draft{}, fmt.Errorf("marshal draft: %w", err)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
			{Role: openai.ChatMessageRoleUser, Content: string(payload)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return internal.Draft{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return internal.Draft{}, ErrNoCandidate
	}
	content := stripFences(resp.Choices[0].Message.Content)
	if content == "" {
		return internal.Draft{}, ErrNoCandidate
	}

	var generic any
	if err := json.Unmarshal([]byte(content), &generic); err != nil {
		return internal.Draft{}, fmt.Errorf("candidate is not json: %w", err)
	}
	if err := c.schema.Validate(generic); err != nil {
		return internal.Draft{}, fmt.Errorf("candidate does not match schema: %w", err)
	}
	var candidate internal.Draft
	if err := json.Unmarshal([]byte(content), &candidate); err != nil {
		return internal.Draft{}, fmt.Errorf("decode candidate: %w", err)
	}
	return candidate, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// DraftSchema describes an acceptable candidate. Index keys are limited to
// the configured names.
func DraftSchema(indexNames []string) map[string]any {
	indexValue := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"value":     map[string]any{"type": []any{"number", "string", "null"}},
			"direction": map[string]any{"type": "string"},
		},
		"required": []any{"value"},
	}
	indices := map[string]any{
		"type":                 "object",
		"additionalProperties": indexValue,
	}
	if len(indexNames) > 0 {
		enum := make([]any, 0, len(indexNames))
		for _, n := range indexNames {
			enum = append(enum, n)
		}
		indices["propertyNames"] = map[string]any{"enum": enum}
	}
	return map[string]any{
		"type":     "object",
		"required": []any{"month_year", "report_type", "indices"},
		"properties": map[string]any{
			"month_year":  map[string]any{"type": "string", "minLength": 1},
			"report_type": map[string]any{"type": "string", "enum": []any{string(internal.Manufacturing), string(internal.Services)}},
			"indices":     indices,
			"industries": map[string]any{
				"type": []any{"object", "null"},
				"additionalProperties": map[string]any{
					"type": "object",
					"additionalProperties": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
				},
			},
			"index_summaries": map[string]any{
				"type":                 []any{"object", "null"},
				"additionalProperties": map[string]any{"type": "string"},
			},
		},
	}
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("draft.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("draft.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}
