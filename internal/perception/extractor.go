package perception

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Validator is implemented by schema types that carry value constraints
// beyond their shape.
type Validator interface {
	Validate() error
}

// Extractor runs schema-constrained LLM calls and parses the response into
// a typed value. It is a pure translator: every failure (API error,
// unparseable output, validation error) is returned to the caller, which
// owns the default-on-failure policy.
type Extractor struct {
	client LLMClient
	logger *zap.Logger
}

// NewExtractor creates an extractor over the given client.
func NewExtractor(client LLMClient, logger *zap.Logger) *Extractor {
	return &Extractor{
		client: client,
		logger: logger,
	}
}

// Extract sends the prompts with the response schema attached and decodes
// the model output into out, which must be a pointer to the schema's Go type.
func (e *Extractor) Extract(ctx context.Context, schema *genai.Schema, systemPrompt, userPrompt string, out interface{}) error {
	raw, err := e.client.CompleteStructured(ctx, systemPrompt, userPrompt, schema)
	if err != nil {
		return fmt.Errorf("structured completion failed: %w", err)
	}

	if err := decodeInto(raw, out); err != nil {
		e.logger.Debug("unparseable structured output", zap.String("raw", truncateRaw(raw)))
		return fmt.Errorf("decode structured output: %w", err)
	}

	if v, ok := out.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("validate structured output: %w", err)
		}
	}
	return nil
}

// decodeInto unmarshals model output into out, tolerating markdown fences
// and surrounding prose. The first JSON candidate that unmarshals wins.
func decodeInto(raw string, out interface{}) error {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	directErr := json.Unmarshal([]byte(cleaned), out)
	if directErr == nil {
		return nil
	}

	for _, candidate := range findJSONCandidates(cleaned) {
		if err := json.Unmarshal([]byte(candidate), out); err == nil {
			return nil
		}
	}

	return directErr
}

func truncateRaw(s string) string {
	const limit = 200
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
