// Package pipeline implements the startup research pipeline: the shared
// research state, the five analysis stages, and the orchestrator that runs
// them as a fixed sequential chain.
package pipeline

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// SearchResult is a single raw result record returned by the search tool.
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// MarketAnalysis is the structured output of the market research stage.
// Absent data is a nil/empty field, never a placeholder string; display
// placeholders belong to the presentation layer.
type MarketAnalysis struct {
	MarketSize               string   `json:"market_size,omitempty"`
	GrowthRate               string   `json:"growth_rate,omitempty"`
	TargetAudience           []string `json:"target_audience,omitempty"`
	MarketTrends             []string `json:"market_trends,omitempty"`
	BarriersToEntry          []string `json:"barriers_to_entry,omitempty"`
	RegulatoryConsiderations []string `json:"regulatory_considerations,omitempty"`
}

// IsEmpty reports whether no field of the analysis is populated.
func (m *MarketAnalysis) IsEmpty() bool {
	return m.MarketSize == "" && m.GrowthRate == "" &&
		len(m.TargetAudience) == 0 && len(m.MarketTrends) == 0 &&
		len(m.BarriersToEntry) == 0 && len(m.RegulatoryConsiderations) == 0
}

// CompetitorInfo holds the extracted profile of a single competitor.
// Name and Website are authoritative: the discovery stage overwrites them
// with the derived name and the search result link.
type CompetitorInfo struct {
	Name          string   `json:"name"`
	Website       string   `json:"website"`
	Description   string   `json:"description,omitempty"`
	FundingStage  string   `json:"funding_stage,omitempty"`
	FundingAmount string   `json:"funding_amount,omitempty"`
	BusinessModel string   `json:"business_model,omitempty"`
	PricingModel  string   `json:"pricing_model,omitempty"`
	KeyFeatures   []string `json:"key_features,omitempty"`
	Strengths     []string `json:"strengths,omitempty"`
	Weaknesses    []string `json:"weaknesses,omitempty"`
}

// StartupAnalysis is the structured output of the viability assessment.
type StartupAnalysis struct {
	ViabilityScore         *int     `json:"viability_score,omitempty"`
	MarketOpportunity      string   `json:"market_opportunity,omitempty"`
	TimeToMarket           string   `json:"time_to_market,omitempty"`
	RiskAssessment         string   `json:"risk_assessment,omitempty"`
	CompetitiveAdvantage   []string `json:"competitive_advantage,omitempty"`
	PotentialChallenges    []string `json:"potential_challenges,omitempty"`
	MonetizationStrategies []string `json:"monetization_strategies,omitempty"`
	RequiredResources      []string `json:"required_resources,omitempty"`
}

// Validate rejects a viability score outside [1,10].
func (a *StartupAnalysis) Validate() error {
	if a.ViabilityScore != nil && (*a.ViabilityScore < 1 || *a.ViabilityScore > 10) {
		return fmt.Errorf("viability_score %d out of range [1,10]", *a.ViabilityScore)
	}
	return nil
}

// StartupIdea is the analyzed idea. It is created once by the market
// research stage and mutated in place by the competitor and viability
// stages; competitors keep discovery order and never exceed the cap.
type StartupIdea struct {
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Category      string           `json:"category,omitempty"`
	BusinessModel string           `json:"business_model,omitempty"`

	MarketAnalysis  *MarketAnalysis  `json:"market_analysis,omitempty"`
	Competitors     []CompetitorInfo `json:"competitors,omitempty"`
	StartupAnalysis *StartupAnalysis `json:"startup_analysis,omitempty"`
}

// MarketData carries the market stage's artifacts for downstream reuse.
type MarketData struct {
	Analysis *MarketAnalysis `json:"analysis,omitempty"`
	Content  string          `json:"content,omitempty"`
}

// Social trend sources.
const (
	SocialSourceAPI       = "social_trends_api"
	SocialSourceWebSearch = "web_search"
)

// SocialTrends carries the social stage's output. Error is set only when
// both the primary tool and the search fallback failed.
type SocialTrends struct {
	Content string `json:"content,omitempty"`
	Source  string `json:"source,omitempty"`
	Error   string `json:"error,omitempty"`
}

// String renders the trends for inclusion in prompt text.
func (t SocialTrends) String() string {
	if t.Error != "" {
		return fmt.Sprintf("{error: %s}", t.Error)
	}
	if t.Source == "" && t.Content == "" {
		return "{}"
	}
	return fmt.Sprintf("{source: %s, content: %s}", t.Source, t.Content)
}

// ResearchState is the single record threaded through the pipeline. It is
// created fresh per run and never shared across concurrent runs. Stages
// write their own fields through typed updates and must not clobber fields
// owned by other stages.
type ResearchState struct {
	Query           string         `json:"query"`
	StartupIdea     *StartupIdea   `json:"startup_idea,omitempty"`
	SearchResults   []SearchResult `json:"search_results,omitempty"`
	MarketData      MarketData     `json:"market_data"`
	CompetitorData  []SearchResult `json:"competitor_data,omitempty"`
	SocialTrends    SocialTrends   `json:"social_trends"`
	FinalAnalysis   string         `json:"final_analysis,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
}

// NewResearchState seeds a state with only the query set.
func NewResearchState(query string) *ResearchState {
	return &ResearchState{Query: strings.TrimSpace(query)}
}

// truncate shortens a string to at most n bytes for prompt summaries,
// backing up to a rune boundary so multi-byte text is never cut mid-rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
