package perception

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"
)

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float32
	MaxRetries  int
}

// DefaultGeminiConfig returns sensible defaults. Temperature is kept low
// because the pipeline relies on the model for extraction, not creativity.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:      apiKey,
		Model:       "gemini-2.0-flash",
		Timeout:     120 * time.Second,
		Temperature: 0.1,
		MaxRetries:  3,
	}
}

// GeminiClient implements LLMClient for the Google Gemini API.
type GeminiClient struct {
	client      *genai.Client
	model       string
	timeout     time.Duration
	temperature float32
	maxRetries  int

	mu          sync.Mutex
	lastRequest time.Time
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(config GeminiConfig) (*GeminiClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	model := strings.TrimSpace(config.Model)
	if model == "" {
		model = "gemini-2.0-flash"
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	maxRetries := config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client:      client,
		model:       model,
		timeout:     timeout,
		temperature: config.Temperature,
		maxRetries:  maxRetries,
	}, nil
}

// CompleteWithSystem sends a prompt with a system message.
func (c *GeminiClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.generate(ctx, systemPrompt, userPrompt, nil)
}

// CompleteStructured requests JSON output conforming to the given schema.
func (c *GeminiClient) CompleteStructured(ctx context.Context, systemPrompt, userPrompt string, schema *genai.Schema) (string, error) {
	return c.generate(ctx, systemPrompt, userPrompt, schema)
}

func (c *GeminiClient) generate(ctx context.Context, systemPrompt, userPrompt string, schema *genai.Schema) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
	}
	if systemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	if schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = schema
	}

	contents := genai.Text(userPrompt)

	var lastErr error
	baseDelay := 2 * time.Second

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		c.throttle()

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.client.Models.GenerateContent(callCtx, c.model, contents, cfg)
		cancel()

		if err != nil {
			lastErr = err
			if isRetryable(err) && attempt < c.maxRetries-1 {
				select {
				case <-time.After(baseDelay * time.Duration(1<<attempt)):
					continue
				case <-ctx.Done():
					return "", ctx.Err()
				}
			}
			return "", fmt.Errorf("gemini generate failed: %w", err)
		}

		text := resp.Text()
		if text == "" {
			return "", ErrEmptyResponse
		}
		return text, nil
	}

	return "", fmt.Errorf("gemini generate failed after retries: %w", lastErr)
}

// throttle enforces a minimum spacing between requests to stay under the
// API rate limit.
func (c *GeminiClient) throttle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	const minInterval = 500 * time.Millisecond
	if elapsed := time.Since(c.lastRequest); elapsed < minInterval {
		time.Sleep(minInterval - elapsed)
	}
	c.lastRequest = time.Now()
}

// isRetryable reports whether an API error is worth retrying.
func isRetryable(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "unavailable") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "500")
}

// Ensure GeminiClient implements LLMClient.
var _ LLMClient = (*GeminiClient)(nil)
