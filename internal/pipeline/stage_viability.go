package pipeline

import (
	"context"

	"go.uber.org/zap"

	"venturelens/internal/perception"
)

// viabilityStage condenses everything gathered so far into three bounded
// summaries and asks the extractor for a scored StartupAnalysis. Given the
// same state it always builds the same prompt, so retries are safe.
type viabilityStage struct {
	extractor *perception.Extractor
	logger    *zap.Logger
}

func newViabilityStage(extractor *perception.Extractor, logger *zap.Logger) *viabilityStage {
	return &viabilityStage{extractor: extractor, logger: logger}
}

func (s *viabilityStage) Name() string { return "viability_assessment" }

type viabilityUpdate struct {
	analysis *StartupAnalysis
}

func (u viabilityUpdate) apply(state *ResearchState) {
	if state.StartupIdea != nil {
		state.StartupIdea.StartupAnalysis = u.analysis
	}
}

func (s *viabilityStage) Run(ctx context.Context, state *ResearchState) (Update, error) {
	marketSummary := buildMarketSummary(state.MarketData.Analysis)
	competitorSummary := buildCompetitorSummary(state.StartupIdea)
	socialSummary := truncate(state.SocialTrends.String(), 500)

	analysis := &StartupAnalysis{}
	if err := s.extractor.Extract(ctx, startupAnalysisSchema,
		viabilityAssessmentSystem,
		viabilityAssessmentUser(state.Query, marketSummary, competitorSummary, socialSummary),
		analysis); err != nil {
		s.logger.Warn("viability extraction failed", zap.Error(err))
		analysis = &StartupAnalysis{}
	}
	return viabilityUpdate{analysis: analysis}, nil
}
