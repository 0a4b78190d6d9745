package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"venturelens/internal/perception"
)

// marketResearchStage is the first stage: it fans three fixed search
// queries out to the serp provider, optionally enriches the blob with
// market-data tools, and extracts a MarketAnalysis from the combined text.
// It creates the StartupIdea the later stages mutate.
type marketResearchStage struct {
	tools           ToolCaller
	extractor       *perception.Extractor
	resultsPerQuery int
	logger          *zap.Logger
}

func newMarketResearchStage(tools ToolCaller, extractor *perception.Extractor, resultsPerQuery int, logger *zap.Logger) *marketResearchStage {
	return &marketResearchStage{
		tools:           tools,
		extractor:       extractor,
		resultsPerQuery: resultsPerQuery,
		logger:          logger,
	}
}

func (s *marketResearchStage) Name() string { return "market_research" }

type marketUpdate struct {
	idea    *StartupIdea
	results []SearchResult
	market  MarketData
}

func (u marketUpdate) apply(state *ResearchState) {
	state.StartupIdea = u.idea
	state.SearchResults = u.results
	state.MarketData = u.market
}

func (s *marketResearchStage) Run(ctx context.Context, state *ResearchState) (Update, error) {
	queries := []string{
		fmt.Sprintf("%s market size trends", state.Query),
		fmt.Sprintf("%s industry analysis report", state.Query),
		fmt.Sprintf("%s target audience demographics", state.Query),
	}

	// Fan the queries out concurrently into indexed slots so the combined
	// blob and result list keep query order regardless of arrival order.
	type slot struct {
		results []SearchResult
		blob    string
	}
	slots := make([]slot, len(queries))

	if s.tools.Has(providerSerp, toolSearch) {
		g, gctx := errgroup.WithContext(ctx)
		for i, query := range queries {
			g.Go(func() error {
				text, err := s.tools.Invoke(gctx, providerSerp, toolSearch, map[string]interface{}{
					"query":       query,
					"num_results": s.resultsPerQuery,
				})
				if err != nil {
					s.logger.Warn("market search failed",
						zap.String("query", query),
						zap.Error(err))
					return nil
				}
				slots[i].results, slots[i].blob = parseSearchPayload(text)
				return nil
			})
		}
		// Workers absorb their own failures, so Wait cannot error.
		_ = g.Wait()
	} else {
		s.logger.Warn("search tool unavailable, skipping market queries")
	}

	var blob strings.Builder
	var searchResults []SearchResult
	for _, sl := range slots {
		searchResults = append(searchResults, sl.results...)
		blob.WriteString(sl.blob)
	}

	// Market-data provider enrichment, when configured.
	for _, tool := range []string{toolMarketSize, toolGrowthTrends} {
		if !s.tools.Has(providerMarketData, tool) {
			continue
		}
		text, err := s.tools.Invoke(ctx, providerMarketData, tool, map[string]interface{}{
			"industry": state.Query,
		})
		if err != nil {
			s.logger.Warn("market data tool failed",
				zap.String("tool", tool),
				zap.Error(err))
			continue
		}
		blob.WriteString(text)
		blob.WriteString("\n")
	}

	content := blob.String()
	analysis := &MarketAnalysis{}
	if content != "" {
		if err := s.extractor.Extract(ctx, marketAnalysisSchema,
			marketResearchSystem, marketResearchUser(state.Query, content), analysis); err != nil {
			s.logger.Warn("market analysis extraction failed", zap.Error(err))
			analysis = &MarketAnalysis{}
		}
	}
	// With no content at all the extractor is never invoked and the empty
	// analysis stands in.

	idea := &StartupIdea{
		Name:           state.Query,
		Description:    "",
		MarketAnalysis: analysis,
	}

	return marketUpdate{
		idea:    idea,
		results: searchResults,
		market:  MarketData{Analysis: analysis, Content: content},
	}, nil
}
