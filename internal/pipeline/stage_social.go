package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// socialTrendsStage asks the dedicated social-trends provider for sentiment
// on the idea, falling back to general web search when the provider call
// fails. It never fails the pipeline: the worst outcome is a SocialTrends
// value carrying an error marker.
type socialTrendsStage struct {
	tools  ToolCaller
	logger *zap.Logger
}

func newSocialTrendsStage(tools ToolCaller, logger *zap.Logger) *socialTrendsStage {
	return &socialTrendsStage{tools: tools, logger: logger}
}

func (s *socialTrendsStage) Name() string { return "social_trends" }

type socialUpdate struct {
	trends SocialTrends
}

func (u socialUpdate) apply(state *ResearchState) {
	state.SocialTrends = u.trends
}

func (s *socialTrendsStage) Run(ctx context.Context, state *ResearchState) (Update, error) {
	if !s.tools.Has(providerSocial, toolAnalyzeTrends) {
		s.logger.Info("social trends tool unavailable")
		return socialUpdate{}, nil
	}

	text, err := s.tools.Invoke(ctx, providerSocial, toolAnalyzeTrends, map[string]interface{}{
		"topic":     state.Query,
		"platforms": []string{"reddit", "twitter"},
	})
	if err == nil {
		if text == "" {
			return socialUpdate{}, nil
		}
		return socialUpdate{trends: SocialTrends{Content: text, Source: SocialSourceAPI}}, nil
	}

	s.logger.Warn("social trends tool failed, falling back to web search", zap.Error(err))
	return socialUpdate{trends: s.searchFallback(ctx, state.Query)}, nil
}

func (s *socialTrendsStage) searchFallback(ctx context.Context, query string) SocialTrends {
	queries := []string{
		fmt.Sprintf("%s reddit discussion opinions", query),
		fmt.Sprintf("%s social media trends sentiment", query),
	}

	var blob strings.Builder
	for _, q := range queries {
		if !s.tools.Has(providerSerp, toolSearch) {
			continue
		}
		text, err := s.tools.Invoke(ctx, providerSerp, toolSearch, map[string]interface{}{
			"query":       q,
			"num_results": 3,
		})
		if err != nil {
			s.logger.Warn("social fallback search failed",
				zap.String("query", q),
				zap.Error(err))
			return SocialTrends{Error: err.Error()}
		}
		_, b := parseSearchPayload(text)
		blob.WriteString(b)
	}
	return SocialTrends{Content: blob.String(), Source: SocialSourceWebSearch}
}
