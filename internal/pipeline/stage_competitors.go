package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"venturelens/internal/perception"
)

// competitorAnalysisStage runs three fixed competitor queries in strict
// order and promotes plausible-looking results into CompetitorInfo records
// via the extractor. Extraction stops as soon as the competitor cap is hit,
// so no LLM call is spent on candidates past the limit.
type competitorAnalysisStage struct {
	tools           ToolCaller
	extractor       *perception.Extractor
	resultsPerQuery int
	maxCompetitors  int
	logger          *zap.Logger
}

func newCompetitorAnalysisStage(tools ToolCaller, extractor *perception.Extractor, resultsPerQuery, maxCompetitors int, logger *zap.Logger) *competitorAnalysisStage {
	return &competitorAnalysisStage{
		tools:           tools,
		extractor:       extractor,
		resultsPerQuery: resultsPerQuery,
		maxCompetitors:  maxCompetitors,
		logger:          logger,
	}
}

func (s *competitorAnalysisStage) Name() string { return "competitor_analysis" }

type competitorUpdate struct {
	competitors []CompetitorInfo
	data        []SearchResult
}

func (u competitorUpdate) apply(state *ResearchState) {
	state.CompetitorData = u.data
	if state.StartupIdea != nil {
		state.StartupIdea.Competitors = u.competitors
	}
}

// competitorKeywords gates which search results are worth an extraction
// call. Titles with none of these are almost never company pages.
var competitorKeywords = []string{"company", "startup", "platform", "service"}

func titleLooksLikeCompetitor(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range competitorKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// deriveCompetitorName cuts the title at the first "-" or "|" separator,
// which strips the usual "Acme - Pricing | Acme Inc" tail.
func deriveCompetitorName(title string) string {
	name := title
	if i := strings.IndexAny(name, "-|"); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}

func (s *competitorAnalysisStage) Run(ctx context.Context, state *ResearchState) (Update, error) {
	queries := []string{
		fmt.Sprintf("%s competitors alternatives", state.Query),
		fmt.Sprintf("%s similar companies startups", state.Query),
		fmt.Sprintf("%s existing solutions market leaders", state.Query),
	}

	var competitors []CompetitorInfo
	var data []SearchResult

	if !s.tools.Has(providerSerp, toolSearch) {
		s.logger.Warn("search tool unavailable, skipping competitor queries")
		return competitorUpdate{}, nil
	}

	for _, query := range queries {
		if len(competitors) >= s.maxCompetitors {
			break
		}
		text, err := s.tools.Invoke(ctx, providerSerp, toolSearch, map[string]interface{}{
			"query":       query,
			"num_results": s.resultsPerQuery,
		})
		if err != nil {
			s.logger.Warn("competitor search failed",
				zap.String("query", query),
				zap.Error(err))
			continue
		}
		results, _ := parseSearchPayload(text)
		if len(results) == 0 {
			continue
		}
		for _, result := range results {
			if len(competitors) >= s.maxCompetitors {
				break
			}
			if !titleLooksLikeCompetitor(result.Title) {
				continue
			}
			name := deriveCompetitorName(result.Title)
			info := &CompetitorInfo{}
			if err := s.extractor.Extract(ctx, competitorInfoSchema,
				competitorAnalysisSystem,
				competitorAnalysisUser(state.Query, name, result.Title+" "+result.Snippet),
				info); err != nil {
				s.logger.Warn("competitor extraction failed",
					zap.String("name", name),
					zap.Error(err))
				continue
			}
			// The search result is authoritative for identity fields.
			info.Name = name
			info.Website = result.Link
			competitors = append(competitors, *info)
			data = append(data, result)
		}
	}

	s.logger.Info("competitor analysis complete", zap.Int("competitors", len(competitors)))
	return competitorUpdate{competitors: competitors, data: data}, nil
}
