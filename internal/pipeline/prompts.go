package pipeline

import (
	"fmt"
	"strings"
)

// System prompts for the LLM calls the stages issue.
const (
	marketResearchSystem = `You are a market research analyst specializing in startup ecosystems and emerging business opportunities.
Focus on identifying market size, growth trends, target demographics, and market dynamics.`

	competitorAnalysisSystem = `You are a competitive intelligence analyst. Analyze competitors, their business models,
funding, strengths, weaknesses, and market positioning.`

	viabilityAssessmentSystem = `You are a startup advisor and investor with expertise in evaluating business ideas.
Assess viability based on market opportunity, competition, execution difficulty, and business model.`

	finalRecommendationSystem = `You are a startup mentor providing actionable advice to entrepreneurs.
Synthesize research findings into clear, practical recommendations.`
)

func marketResearchUser(idea, searchContent string) string {
	return fmt.Sprintf(`Startup Idea: %s
Market Research Content: %s

Based on this market research content, analyze the market opportunity for "%s".

Focus on:
- Market size and growth potential
- Target audience demographics and behavior
- Current market trends and future projections
- Barriers to entry and regulatory landscape
- Market gaps and opportunities

Provide specific data points, statistics, and insights where available.
If information is limited, indicate areas that need further research.`, idea, searchContent, idea)
}

func competitorAnalysisUser(idea, competitorName, competitorContent string) string {
	return fmt.Sprintf(`Startup Idea: %s
Competitor: %s
Competitor Information: %s

Analyze this competitor in relation to the startup idea "%s":

Extract:
- funding_stage: Current funding stage (Pre-seed, Seed, Series A/B/C, etc.)
- funding_amount: Total funding raised if mentioned
- business_model: How they make money (B2B, B2C, SaaS, Marketplace, etc.)
- key_features: Main product features or services offered
- strengths: What they do well or competitive advantages
- weaknesses: Limitations or areas for improvement
- pricing_model: How they price their product/service

Focus on information relevant to understanding their market position.`, idea, competitorName, truncate(competitorContent, 2000), idea)
}

func viabilityAssessmentUser(idea, marketSummary, competitorSummary, socialSummary string) string {
	return fmt.Sprintf(`Startup Idea: %s

Market Research Summary:
%s

Competitor Analysis Summary:
%s

Social Trends & Sentiment:
%s

Provide a comprehensive viability assessment:

- viability_score: Rate from 1-10 (1=very poor, 10=excellent opportunity)
- market_opportunity: Brief assessment of market size and timing
- competitive_advantage: Potential ways to differentiate from competitors
- potential_challenges: Main obstacles and risks to consider
- monetization_strategies: Suggested revenue models and pricing approaches
- required_resources: Key resources needed (funding, team, technology, etc.)
- time_to_market: Estimated time to launch MVP and scale
- risk_assessment: Overall risk level (Low/Medium/High) with brief explanation

Be realistic but constructive in your assessment.`, idea, marketSummary, competitorSummary, socialSummary)
}

func finalRecommendationUser(idea, fullAnalysis string) string {
	return fmt.Sprintf(`Startup Idea: %s

Complete Analysis:
%s

Provide final recommendations (keep to 4-5 key points):

1. GO/NO-GO decision with brief reasoning
2. If GO: Top 3 immediate next steps
3. Key success factors to focus on
4. Major risks to monitor and mitigate
5. Alternative pivots or variations to consider

Keep recommendations specific, actionable, and realistic.
Aim for clarity over comprehensiveness.`, idea, fullAnalysis)
}

// buildMarketSummary renders the market analysis for the viability prompt.
// "Unknown" placeholders exist only in this prompt text, never in state.
func buildMarketSummary(analysis *MarketAnalysis) string {
	if analysis == nil {
		return ""
	}

	orUnknown := func(s string) string {
		if s == "" {
			return "Unknown"
		}
		return s
	}

	return fmt.Sprintf(`Market Size: %s
Growth Rate: %s
Target Audience: %s
Market Trends: %s
Barriers: %s`,
		orUnknown(analysis.MarketSize),
		orUnknown(analysis.GrowthRate),
		strings.Join(analysis.TargetAudience, ", "),
		strings.Join(analysis.MarketTrends, ", "),
		strings.Join(analysis.BarriersToEntry, ", "))
}

// buildCompetitorSummary renders a comma-joined list of up to five
// competitor names.
func buildCompetitorSummary(idea *StartupIdea) string {
	if idea == nil || len(idea.Competitors) == 0 {
		return ""
	}

	names := make([]string, 0, len(idea.Competitors))
	for _, comp := range idea.Competitors {
		names = append(names, comp.Name)
		if len(names) >= 5 {
			break
		}
	}
	return "Main competitors: " + strings.Join(names, ", ")
}
