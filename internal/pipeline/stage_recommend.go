package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"venturelens/internal/perception"
)

// recommendationFailureText is stored as the final analysis when the model
// cannot be reached, so downstream rendering always has something to show.
const recommendationFailureText = "Unable to generate final recommendations due to processing error."

// recommendationStage is the only stage that wants free-form prose instead
// of a typed schema, so it talks to the LLM client directly.
type recommendationStage struct {
	client perception.LLMClient
	logger *zap.Logger
}

func newRecommendationStage(client perception.LLMClient, logger *zap.Logger) *recommendationStage {
	return &recommendationStage{client: client, logger: logger}
}

func (s *recommendationStage) Name() string { return "final_recommendations" }

type recommendationUpdate struct {
	analysis        string
	recommendations []string
}

func (u recommendationUpdate) apply(state *ResearchState) {
	state.FinalAnalysis = u.analysis
	state.Recommendations = u.recommendations
}

func (s *recommendationStage) Run(ctx context.Context, state *ResearchState) (Update, error) {
	score := "N/A"
	competitorCount := 0
	if idea := state.StartupIdea; idea != nil {
		competitorCount = len(idea.Competitors)
		if idea.StartupAnalysis != nil && idea.StartupAnalysis.ViabilityScore != nil {
			score = strconv.Itoa(*idea.StartupAnalysis.ViabilityScore)
		}
	}

	block := fmt.Sprintf(`Startup Idea: %s
Market Analysis: %+v
Competitors Found: %d
Viability Score: %s/10
Social Trends: %s...`,
		state.Query,
		state.MarketData,
		competitorCount,
		score,
		truncate(state.SocialTrends.String(), 300))

	text, err := s.client.CompleteWithSystem(ctx, finalRecommendationSystem, finalRecommendationUser(state.Query, block))
	if err != nil {
		s.logger.Error("final recommendation generation failed", zap.Error(err))
		text = recommendationFailureText
	}

	return recommendationUpdate{
		analysis:        text,
		recommendations: extractRecommendations(text),
	}, nil
}

// extractRecommendations pulls numbered lines ("1. ...", "2. ...") out of
// the narrative so callers get an actionable list alongside the prose.
func extractRecommendations(text string) []string {
	var recs []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) >= 2 && trimmed[0] >= '1' && trimmed[0] <= '9' && trimmed[1] == '.' {
			recs = append(recs, trimmed)
		}
	}
	return recs
}
