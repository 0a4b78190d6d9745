package pipeline

import (
	"context"
	"encoding/json"
	"strings"
)

// Provider and tool names the stages call through the registry.
const (
	providerSerp       = "serp"
	providerMarketData = "market_data"
	providerSocial     = "social_trends"

	toolSearch        = "search"
	toolMarketSize    = "get_market_size"
	toolGrowthTrends  = "get_growth_trends"
	toolAnalyzeTrends = "analyze_trends"
)

// ToolCaller is the slice of the tool registry the stages depend on.
// Stages always guard Invoke with Has; a missing tool is a caller bug.
type ToolCaller interface {
	Has(provider, tool string) bool
	Invoke(ctx context.Context, provider, tool string, args map[string]interface{}) (string, error)
}

// Update is a typed partial state update produced by a stage. Each update
// type writes only the fields its stage owns, which is what keeps stages
// from silently clobbering one another's output.
type Update interface {
	apply(*ResearchState)
}

// Stage is one step of the fixed five-step pipeline. Run reads prior state
// and returns the stage's partial update. Stages absorb their own expected
// failures; a returned error is a contract violation handled once at the
// orchestrator boundary.
type Stage interface {
	Name() string
	Run(ctx context.Context, state *ResearchState) (Update, error)
}

// searchPayload mirrors the search tool's JSON response.
type searchPayload struct {
	Results []SearchResult `json:"results"`
	Error   string         `json:"error"`
}

// parseSearchPayload decodes a search tool response. Valid JSON yields the
// result records plus a title+snippet text blob; anything else is treated
// as an opaque narrative blob per the tool contract, never discarded.
func parseSearchPayload(text string) (results []SearchResult, blob string) {
	if strings.TrimSpace(text) == "" {
		return nil, ""
	}

	var payload searchPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, text + "\n"
	}
	if payload.Error != "" {
		return nil, ""
	}

	var sb strings.Builder
	for _, r := range payload.Results {
		sb.WriteString(r.Title)
		sb.WriteString(" ")
		sb.WriteString(r.Snippet)
		sb.WriteString("\n")
	}
	return payload.Results, sb.String()
}
