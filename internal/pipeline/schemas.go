package pipeline

import "google.golang.org/genai"

// Gemini response schemas for the structured extraction calls. Field names
// match the JSON tags on the corresponding state types.

func stringList() *genai.Schema {
	return &genai.Schema{
		Type:  genai.TypeArray,
		Items: &genai.Schema{Type: genai.TypeString},
	}
}

var marketAnalysisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"market_size":               {Type: genai.TypeString, Description: "Estimated market size with source context"},
		"growth_rate":               {Type: genai.TypeString, Description: "Projected growth rate"},
		"target_audience":           stringList(),
		"market_trends":             stringList(),
		"barriers_to_entry":         stringList(),
		"regulatory_considerations": stringList(),
	},
}

var competitorInfoSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"name":           {Type: genai.TypeString},
		"website":        {Type: genai.TypeString},
		"description":    {Type: genai.TypeString},
		"funding_stage":  {Type: genai.TypeString, Description: "Pre-seed, Seed, Series A/B/C, etc."},
		"funding_amount": {Type: genai.TypeString},
		"business_model": {Type: genai.TypeString, Description: "B2B, B2C, SaaS, Marketplace, etc."},
		"pricing_model":  {Type: genai.TypeString},
		"key_features":   stringList(),
		"strengths":      stringList(),
		"weaknesses":     stringList(),
	},
	Required: []string{"name", "website"},
}

var startupAnalysisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"viability_score": {
			Type:        genai.TypeInteger,
			Description: "Viability score from 1-10",
			Minimum:     genai.Ptr(1.0),
			Maximum:     genai.Ptr(10.0),
		},
		"market_opportunity":      {Type: genai.TypeString},
		"time_to_market":          {Type: genai.TypeString},
		"risk_assessment":         {Type: genai.TypeString, Description: "Low, Medium or High with explanation"},
		"competitive_advantage":   stringList(),
		"potential_challenges":    stringList(),
		"monetization_strategies": stringList(),
		"required_resources":      stringList(),
	},
}
