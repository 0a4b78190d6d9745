package main

import (
	"fmt"
	"strings"

	"venturelens/internal/pipeline"
)

// renderReport formats a completed (possibly partial) research state as a
// plain-text report. Missing fields render as placeholders so a degraded
// run still produces a readable document.
func renderReport(state *pipeline.ResearchState) string {
	var b strings.Builder
	rule := strings.Repeat("=", 80)

	b.WriteString("\n" + rule + "\n")
	b.WriteString("STARTUP ANALYSIS RESULTS\n")
	b.WriteString(rule + "\n")

	if idea := state.StartupIdea; idea != nil {
		fmt.Fprintf(&b, "\nSTARTUP IDEA: %s\n", idea.Name)
		fmt.Fprintf(&b, "Description: %s\n", orElse(idea.Description, "Auto-generated from query"))
		if idea.Category != "" {
			fmt.Fprintf(&b, "Category: %s\n", idea.Category)
		}
		if idea.BusinessModel != "" {
			fmt.Fprintf(&b, "Business Model: %s\n", idea.BusinessModel)
		}

		if market := idea.MarketAnalysis; market != nil {
			b.WriteString("\nMARKET ANALYSIS:\n")
			fmt.Fprintf(&b, "Market Size: %s\n", orElse(market.MarketSize, "Unknown"))
			fmt.Fprintf(&b, "Growth Rate: %s\n", orElse(market.GrowthRate, "Unknown"))
			if len(market.TargetAudience) > 0 {
				fmt.Fprintf(&b, "Target Audience: %s\n", strings.Join(market.TargetAudience, ", "))
			}
			if len(market.MarketTrends) > 0 {
				fmt.Fprintf(&b, "Market Trends: %s\n", strings.Join(market.MarketTrends, ", "))
			}
			if len(market.BarriersToEntry) > 0 {
				fmt.Fprintf(&b, "Barriers to Entry: %s\n", strings.Join(market.BarriersToEntry, ", "))
			}
		}

		if len(idea.Competitors) > 0 {
			b.WriteString("\nCOMPETITOR ANALYSIS:\n")
			fmt.Fprintf(&b, "Found %d main competitors:\n", len(idea.Competitors))
			for i, comp := range idea.Competitors {
				if i >= 5 {
					break
				}
				fmt.Fprintf(&b, "\n%d. %s\n", i+1, comp.Name)
				fmt.Fprintf(&b, "   Website: %s\n", comp.Website)
				fmt.Fprintf(&b, "   Business Model: %s\n", orElse(comp.BusinessModel, "Unknown"))
				fmt.Fprintf(&b, "   Funding Stage: %s\n", orElse(comp.FundingStage, "Unknown"))
				if len(comp.KeyFeatures) > 0 {
					fmt.Fprintf(&b, "   Key Features: %s\n", strings.Join(head(comp.KeyFeatures, 3), ", "))
				}
				if len(comp.Strengths) > 0 {
					fmt.Fprintf(&b, "   Strengths: %s\n", strings.Join(head(comp.Strengths, 2), ", "))
				}
			}
		}

		if analysis := idea.StartupAnalysis; analysis != nil {
			b.WriteString("\nVIABILITY ASSESSMENT:\n")
			score := "N/A"
			if analysis.ViabilityScore != nil {
				score = fmt.Sprintf("%d", *analysis.ViabilityScore)
			}
			fmt.Fprintf(&b, "Viability Score: %s/10\n", score)
			fmt.Fprintf(&b, "Market Opportunity: %s\n", orElse(analysis.MarketOpportunity, "Not assessed"))
			fmt.Fprintf(&b, "Time to Market: %s\n", orElse(analysis.TimeToMarket, "Unknown"))
			fmt.Fprintf(&b, "Risk Assessment: %s\n", orElse(analysis.RiskAssessment, "Not assessed"))
			if len(analysis.CompetitiveAdvantage) > 0 {
				fmt.Fprintf(&b, "Competitive Advantages: %s\n", strings.Join(analysis.CompetitiveAdvantage, ", "))
			}
			if len(analysis.PotentialChallenges) > 0 {
				fmt.Fprintf(&b, "Potential Challenges: %s\n", strings.Join(analysis.PotentialChallenges, ", "))
			}
			if len(analysis.MonetizationStrategies) > 0 {
				fmt.Fprintf(&b, "Monetization Strategies: %s\n", strings.Join(analysis.MonetizationStrategies, ", "))
			}
		}
	}

	if state.FinalAnalysis != "" {
		b.WriteString("\nFINAL RECOMMENDATIONS:\n")
		b.WriteString(strings.Repeat("-", 50) + "\n")
		b.WriteString(state.FinalAnalysis + "\n")
	}

	if len(state.Recommendations) > 0 {
		b.WriteString("\nKEY TAKEAWAYS:\n")
		for i, rec := range state.Recommendations {
			fmt.Fprintf(&b, "%d. %s\n", i+1, rec)
		}
	}

	b.WriteString("\n" + rule + "\n")
	return b.String()
}

func orElse(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func head(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
