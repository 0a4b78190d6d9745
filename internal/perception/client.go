// Package perception provides the LLM layer: a provider-agnostic client
// interface, the Gemini implementation, and the structured extractor that
// turns model output into typed schema instances.
package perception

import (
	"context"
	"errors"

	"google.golang.org/genai"
)

// ErrEmptyResponse is returned when the model replies with no text at all.
var ErrEmptyResponse = errors.New("perception: empty model response")

// LLMClient defines the interface for LLM providers.
type LLMClient interface {
	// CompleteWithSystem sends a prompt with a system message.
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// CompleteStructured requests output constrained to the given response
	// schema and returns the raw model text, which the caller parses.
	CompleteStructured(ctx context.Context, systemPrompt, userPrompt string, schema *genai.Schema) (string, error)
}
