package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"venturelens/internal/perception"
)

// fakeTools is a scripted tool registry for stage tests. Invoke is safe for
// concurrent use because the market stage fans out.
type fakeTools struct {
	mu        sync.Mutex
	available map[string]bool
	handler   func(provider, tool string, args map[string]interface{}) (string, error)
	calls     []string
	providers []string
}

func (f *fakeTools) Has(provider, tool string) bool {
	return f.available[provider+"/"+tool]
}

func (f *fakeTools) Invoke(ctx context.Context, provider, tool string, args map[string]interface{}) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, provider+"/"+tool)
	f.mu.Unlock()
	return f.handler(provider, tool, args)
}

func (f *fakeTools) Connect(ctx context.Context) {}

func (f *fakeTools) ConnectedProviders() []string { return f.providers }

func (f *fakeTools) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeLLM is a scripted perception.LLMClient.
type fakeLLM struct {
	mu                sync.Mutex
	structured        func(system, user string) (string, error)
	completion        func(system, user string) (string, error)
	structuredPrompts []string
}

func (f *fakeLLM) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if f.completion == nil {
		return "", errors.New("unexpected completion call")
	}
	return f.completion(systemPrompt, userPrompt)
}

func (f *fakeLLM) CompleteStructured(ctx context.Context, systemPrompt, userPrompt string, schema *genai.Schema) (string, error) {
	f.mu.Lock()
	f.structuredPrompts = append(f.structuredPrompts, userPrompt)
	f.mu.Unlock()
	if f.structured == nil {
		return "", errors.New("unexpected structured call")
	}
	return f.structured(systemPrompt, userPrompt)
}

func (f *fakeLLM) structuredCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.structuredPrompts)
}

func searchJSON(t *testing.T, results ...SearchResult) string {
	t.Helper()
	out, err := json.Marshal(searchPayload{Results: results})
	require.NoError(t, err)
	return string(out)
}

func testExtractor(llm *fakeLLM) *perception.Extractor {
	return perception.NewExtractor(llm, zap.NewNop())
}

func TestMarketResearchStage(t *testing.T) {
	const query = "AI meal planner"

	t.Run("assembles results in query order", func(t *testing.T) {
		tools := &fakeTools{
			available: map[string]bool{"serp/search": true},
		}
		tools.handler = func(provider, tool string, args map[string]interface{}) (string, error) {
			q := args["query"].(string)
			switch {
			case strings.Contains(q, "market size trends"):
				return searchJSON(t, SearchResult{Title: "Sizing", Link: "l1", Snippet: "s1"}), nil
			case strings.Contains(q, "industry analysis report"):
				return searchJSON(t, SearchResult{Title: "Industry", Link: "l2", Snippet: "s2"}), nil
			default:
				return searchJSON(t, SearchResult{Title: "Audience", Link: "l3", Snippet: "s3"}), nil
			}
		}
		llm := &fakeLLM{structured: func(system, user string) (string, error) {
			return `{"market_size": "$4.2B", "growth_rate": "11% CAGR"}`, nil
		}}

		stage := newMarketResearchStage(tools, testExtractor(llm), 3, zap.NewNop())
		state := NewResearchState(query)
		update, err := stage.Run(context.Background(), state)
		require.NoError(t, err)
		update.apply(state)

		require.Len(t, state.SearchResults, 3)
		assert.Equal(t, "Sizing", state.SearchResults[0].Title)
		assert.Equal(t, "Industry", state.SearchResults[1].Title)
		assert.Equal(t, "Audience", state.SearchResults[2].Title)

		require.NotNil(t, state.StartupIdea)
		assert.Equal(t, query, state.StartupIdea.Name)
		require.NotNil(t, state.StartupIdea.MarketAnalysis)
		assert.Equal(t, "$4.2B", state.StartupIdea.MarketAnalysis.MarketSize)
		assert.Equal(t, state.StartupIdea.MarketAnalysis, state.MarketData.Analysis)
		assert.Contains(t, state.MarketData.Content, "Sizing s1")
	})

	t.Run("no gathered content skips extraction", func(t *testing.T) {
		tools := &fakeTools{available: map[string]bool{}}
		llm := &fakeLLM{}

		stage := newMarketResearchStage(tools, testExtractor(llm), 3, zap.NewNop())
		state := NewResearchState(query)
		update, err := stage.Run(context.Background(), state)
		require.NoError(t, err)
		update.apply(state)

		assert.Zero(t, llm.structuredCalls())
		require.NotNil(t, state.StartupIdea)
		require.NotNil(t, state.StartupIdea.MarketAnalysis)
		assert.True(t, state.StartupIdea.MarketAnalysis.IsEmpty())
	})

	t.Run("extraction failure keeps content, defaults analysis", func(t *testing.T) {
		tools := &fakeTools{available: map[string]bool{"serp/search": true}}
		tools.handler = func(provider, tool string, args map[string]interface{}) (string, error) {
			return searchJSON(t, SearchResult{Title: "Sizing", Snippet: "s1"}), nil
		}
		llm := &fakeLLM{structured: func(system, user string) (string, error) {
			return "", errors.New("model unavailable")
		}}

		stage := newMarketResearchStage(tools, testExtractor(llm), 3, zap.NewNop())
		state := NewResearchState(query)
		update, err := stage.Run(context.Background(), state)
		require.NoError(t, err)
		update.apply(state)

		assert.True(t, state.StartupIdea.MarketAnalysis.IsEmpty())
		assert.NotEmpty(t, state.MarketData.Content)
	})

	t.Run("market data tools enrich the blob", func(t *testing.T) {
		tools := &fakeTools{available: map[string]bool{
			"market_data/get_market_size":   true,
			"market_data/get_growth_trends": true,
		}}
		tools.handler = func(provider, tool string, args map[string]interface{}) (string, error) {
			assert.Equal(t, query, args["industry"])
			return fmt.Sprintf("%s data", tool), nil
		}
		llm := &fakeLLM{structured: func(system, user string) (string, error) {
			return `{}`, nil
		}}

		stage := newMarketResearchStage(tools, testExtractor(llm), 3, zap.NewNop())
		state := NewResearchState(query)
		update, err := stage.Run(context.Background(), state)
		require.NoError(t, err)
		update.apply(state)

		assert.Contains(t, state.MarketData.Content, "get_market_size data")
		assert.Contains(t, state.MarketData.Content, "get_growth_trends data")
	})
}

func TestCompetitorAnalysisStage(t *testing.T) {
	const query = "AI meal planner"

	manyCompetitors := func(n int) []SearchResult {
		results := make([]SearchResult, 0, n)
		for i := 0; i < n; i++ {
			results = append(results, SearchResult{
				Title:   fmt.Sprintf("Competitor%d - AI Company", i),
				Link:    fmt.Sprintf("https://comp%d.io", i),
				Snippet: "meal planning",
			})
		}
		return results
	}

	t.Run("caps extraction at the competitor limit", func(t *testing.T) {
		tools := &fakeTools{available: map[string]bool{"serp/search": true}}
		tools.handler = func(provider, tool string, args map[string]interface{}) (string, error) {
			return searchJSON(t, manyCompetitors(7)...), nil
		}
		llm := &fakeLLM{structured: func(system, user string) (string, error) {
			return `{"name": "Model Name", "website": "https://model.example", "business_model": "subscription"}`, nil
		}}

		stage := newCompetitorAnalysisStage(tools, testExtractor(llm), 5, 5, zap.NewNop())
		state := NewResearchState(query)
		state.StartupIdea = &StartupIdea{Name: query}
		update, err := stage.Run(context.Background(), state)
		require.NoError(t, err)
		update.apply(state)

		require.Len(t, state.StartupIdea.Competitors, 5)
		assert.Equal(t, 5, llm.structuredCalls())
		// One search per query until the cap is reached.
		assert.Equal(t, 1, tools.callCount())
	})

	t.Run("search result is authoritative for name and website", func(t *testing.T) {
		tools := &fakeTools{available: map[string]bool{"serp/search": true}}
		tools.handler = func(provider, tool string, args map[string]interface{}) (string, error) {
			return searchJSON(t, SearchResult{
				Title:   "Acme - The Meal Planning Company",
				Link:    "https://acme.io",
				Snippet: "plans meals",
			}), nil
		}
		llm := &fakeLLM{structured: func(system, user string) (string, error) {
			return `{"name": "Hallucinated Corp", "website": "https://wrong.example", "business_model": "freemium"}`, nil
		}}

		stage := newCompetitorAnalysisStage(tools, testExtractor(llm), 5, 5, zap.NewNop())
		state := NewResearchState(query)
		state.StartupIdea = &StartupIdea{Name: query}
		update, err := stage.Run(context.Background(), state)
		require.NoError(t, err)
		update.apply(state)

		require.Len(t, state.StartupIdea.Competitors, 1)
		got := state.StartupIdea.Competitors[0]
		assert.Equal(t, "Acme", got.Name)
		assert.Equal(t, "https://acme.io", got.Website)
		assert.Equal(t, "freemium", got.BusinessModel)
	})

	t.Run("non-company titles are not extracted", func(t *testing.T) {
		tools := &fakeTools{available: map[string]bool{"serp/search": true}}
		tools.handler = func(provider, tool string, args map[string]interface{}) (string, error) {
			return searchJSON(t, SearchResult{Title: "10 meal prep recipes", Link: "l", Snippet: "s"}), nil
		}
		llm := &fakeLLM{}

		stage := newCompetitorAnalysisStage(tools, testExtractor(llm), 5, 5, zap.NewNop())
		state := NewResearchState(query)
		state.StartupIdea = &StartupIdea{Name: query}
		update, err := stage.Run(context.Background(), state)
		require.NoError(t, err)
		update.apply(state)

		assert.Empty(t, state.StartupIdea.Competitors)
		assert.Zero(t, llm.structuredCalls())
	})

	t.Run("failed extraction skips the candidate", func(t *testing.T) {
		tools := &fakeTools{available: map[string]bool{"serp/search": true}}
		tools.handler = func(provider, tool string, args map[string]interface{}) (string, error) {
			return searchJSON(t, manyCompetitors(2)...), nil
		}
		nth := 0
		llm := &fakeLLM{structured: func(system, user string) (string, error) {
			nth++
			if nth == 1 {
				return "", errors.New("transient")
			}
			return `{"name": "x", "website": "y"}`, nil
		}}

		stage := newCompetitorAnalysisStage(tools, testExtractor(llm), 5, 5, zap.NewNop())
		state := NewResearchState(query)
		state.StartupIdea = &StartupIdea{Name: query}
		update, err := stage.Run(context.Background(), state)
		require.NoError(t, err)
		update.apply(state)

		require.Len(t, state.StartupIdea.Competitors, 1)
		assert.Equal(t, "Competitor1", state.StartupIdea.Competitors[0].Name)
	})

	t.Run("search tool unavailable yields empty update", func(t *testing.T) {
		tools := &fakeTools{available: map[string]bool{}}
		llm := &fakeLLM{}

		stage := newCompetitorAnalysisStage(tools, testExtractor(llm), 5, 5, zap.NewNop())
		state := NewResearchState(query)
		update, err := stage.Run(context.Background(), state)
		require.NoError(t, err)
		update.apply(state)

		assert.Empty(t, state.CompetitorData)
		assert.Zero(t, tools.callCount())
	})
}

func TestSocialTrendsStage(t *testing.T) {
	const query = "AI meal planner"

	t.Run("primary tool success", func(t *testing.T) {
		tools := &fakeTools{available: map[string]bool{"social_trends/analyze_trends": true}}
		tools.handler = func(provider, tool string, args map[string]interface{}) (string, error) {
			assert.Equal(t, query, args["topic"])
			return "reddit is excited", nil
		}

		stage := newSocialTrendsStage(tools, zap.NewNop())
		state := NewResearchState(query)
		update, err := stage.Run(context.Background(), state)
		require.NoError(t, err)
		update.apply(state)

		assert.Equal(t, SocialSourceAPI, state.SocialTrends.Source)
		assert.Equal(t, "reddit is excited", state.SocialTrends.Content)
		assert.Empty(t, state.SocialTrends.Error)
	})

	t.Run("falls back to web search on tool failure", func(t *testing.T) {
		tools := &fakeTools{available: map[string]bool{
			"social_trends/analyze_trends": true,
			"serp/search":                  true,
		}}
		tools.handler = func(provider, tool string, args map[string]interface{}) (string, error) {
			if provider == providerSocial {
				return "", errors.New("reddit API down")
			}
			return searchJSON(t, SearchResult{Title: "Thread", Snippet: "people love it"}), nil
		}

		stage := newSocialTrendsStage(tools, zap.NewNop())
		state := NewResearchState(query)
		update, err := stage.Run(context.Background(), state)
		require.NoError(t, err)
		update.apply(state)

		assert.Equal(t, SocialSourceWebSearch, state.SocialTrends.Source)
		assert.Contains(t, state.SocialTrends.Content, "people love it")
		assert.Empty(t, state.SocialTrends.Error)
	})

	t.Run("records error when fallback also fails", func(t *testing.T) {
		tools := &fakeTools{available: map[string]bool{
			"social_trends/analyze_trends": true,
			"serp/search":                  true,
		}}
		tools.handler = func(provider, tool string, args map[string]interface{}) (string, error) {
			return "", errors.New("everything is down")
		}

		stage := newSocialTrendsStage(tools, zap.NewNop())
		state := NewResearchState(query)
		update, err := stage.Run(context.Background(), state)
		require.NoError(t, err)
		update.apply(state)

		assert.Equal(t, "everything is down", state.SocialTrends.Error)
		assert.Empty(t, state.SocialTrends.Source)
	})

	t.Run("tool unavailable leaves trends empty", func(t *testing.T) {
		tools := &fakeTools{available: map[string]bool{}}

		stage := newSocialTrendsStage(tools, zap.NewNop())
		state := NewResearchState(query)
		update, err := stage.Run(context.Background(), state)
		require.NoError(t, err)
		update.apply(state)

		assert.Equal(t, SocialTrends{}, state.SocialTrends)
		assert.Zero(t, tools.callCount())
	})
}

func TestViabilityStage(t *testing.T) {
	baseState := func() *ResearchState {
		state := NewResearchState("AI meal planner")
		analysis := &MarketAnalysis{MarketSize: "$4.2B"}
		state.StartupIdea = &StartupIdea{
			Name:           state.Query,
			MarketAnalysis: analysis,
			Competitors:    []CompetitorInfo{{Name: "Acme"}},
		}
		state.MarketData = MarketData{Analysis: analysis, Content: "blob"}
		state.SocialTrends = SocialTrends{Source: SocialSourceAPI, Content: "positive"}
		return state
	}

	t.Run("success attaches analysis to the idea", func(t *testing.T) {
		llm := &fakeLLM{structured: func(system, user string) (string, error) {
			assert.Contains(t, user, "$4.2B")
			assert.Contains(t, user, "Main competitors: Acme")
			return `{"viability_score": 7, "market_opportunity": "strong"}`, nil
		}}

		stage := newViabilityStage(testExtractor(llm), zap.NewNop())
		state := baseState()
		update, err := stage.Run(context.Background(), state)
		require.NoError(t, err)
		update.apply(state)

		require.NotNil(t, state.StartupIdea.StartupAnalysis)
		require.NotNil(t, state.StartupIdea.StartupAnalysis.ViabilityScore)
		assert.Equal(t, 7, *state.StartupIdea.StartupAnalysis.ViabilityScore)
	})

	t.Run("failure defaults to empty analysis", func(t *testing.T) {
		llm := &fakeLLM{structured: func(system, user string) (string, error) {
			return "", errors.New("quota")
		}}

		stage := newViabilityStage(testExtractor(llm), zap.NewNop())
		state := baseState()
		update, err := stage.Run(context.Background(), state)
		require.NoError(t, err)
		update.apply(state)

		require.NotNil(t, state.StartupIdea.StartupAnalysis)
		assert.Nil(t, state.StartupIdea.StartupAnalysis.ViabilityScore)
	})

	t.Run("out-of-range score is rejected", func(t *testing.T) {
		llm := &fakeLLM{structured: func(system, user string) (string, error) {
			return `{"viability_score": 12}`, nil
		}}

		stage := newViabilityStage(testExtractor(llm), zap.NewNop())
		state := baseState()
		update, err := stage.Run(context.Background(), state)
		require.NoError(t, err)
		update.apply(state)

		assert.Nil(t, state.StartupIdea.StartupAnalysis.ViabilityScore)
	})

	t.Run("same state builds the same prompt", func(t *testing.T) {
		llm := &fakeLLM{structured: func(system, user string) (string, error) {
			return `{"viability_score": 5}`, nil
		}}

		stage := newViabilityStage(testExtractor(llm), zap.NewNop())
		_, err := stage.Run(context.Background(), baseState())
		require.NoError(t, err)
		_, err = stage.Run(context.Background(), baseState())
		require.NoError(t, err)

		require.Len(t, llm.structuredPrompts, 2)
		assert.Equal(t, llm.structuredPrompts[0], llm.structuredPrompts[1])
	})
}

func TestRecommendationStage(t *testing.T) {
	t.Run("extracts numbered recommendations", func(t *testing.T) {
		llm := &fakeLLM{completion: func(system, user string) (string, error) {
			return "Promising idea.\n1. Validate demand\n2. Build an MVP\nGood luck.", nil
		}}

		stage := newRecommendationStage(llm, zap.NewNop())
		state := NewResearchState("AI meal planner")
		update, err := stage.Run(context.Background(), state)
		require.NoError(t, err)
		update.apply(state)

		assert.Contains(t, state.FinalAnalysis, "Promising idea.")
		assert.Equal(t, []string{"1. Validate demand", "2. Build an MVP"}, state.Recommendations)
	})

	t.Run("model failure stores the fallback text", func(t *testing.T) {
		llm := &fakeLLM{completion: func(system, user string) (string, error) {
			return "", errors.New("model down")
		}}

		stage := newRecommendationStage(llm, zap.NewNop())
		state := NewResearchState("AI meal planner")
		update, err := stage.Run(context.Background(), state)
		require.NoError(t, err)
		update.apply(state)

		assert.Equal(t, recommendationFailureText, state.FinalAnalysis)
		assert.Empty(t, state.Recommendations)
	})

	t.Run("prompt carries the viability score", func(t *testing.T) {
		var prompt string
		llm := &fakeLLM{completion: func(system, user string) (string, error) {
			prompt = user
			return "ok", nil
		}}

		score := 8
		state := NewResearchState("AI meal planner")
		state.StartupIdea = &StartupIdea{
			Name:            state.Query,
			StartupAnalysis: &StartupAnalysis{ViabilityScore: &score},
		}

		stage := newRecommendationStage(llm, zap.NewNop())
		_, err := stage.Run(context.Background(), state)
		require.NoError(t, err)
		assert.Contains(t, prompt, "8/10")
	})
}
