package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"venturelens/internal/perception"
)

// ErrNoProviders is returned by Setup when not a single tool provider could
// be reached. With no tools at all a run would produce nothing but empty
// defaults, so this is the one fatal setup condition.
var ErrNoProviders = errors.New("pipeline: no tool providers reachable")

// ToolRegistry is the provider surface the orchestrator needs: connection
// management plus the per-stage ToolCaller operations.
type ToolRegistry interface {
	ToolCaller
	Connect(ctx context.Context)
	ConnectedProviders() []string
}

// Options bound the search fan-out and competitor extraction volume.
type Options struct {
	MarketResults     int
	CompetitorResults int
	MaxCompetitors    int
}

func DefaultOptions() Options {
	return Options{
		MarketResults:     3,
		CompetitorResults: 5,
		MaxCompetitors:    5,
	}
}

// Orchestrator drives the five research stages in fixed order over a shared
// ResearchState. A single Orchestrator handles sequential runs; it is not
// safe for concurrent Run calls.
type Orchestrator struct {
	registry ToolRegistry
	stages   []Stage
	logger   *zap.Logger
	ready    bool
}

func NewOrchestrator(registry ToolRegistry, client perception.LLMClient, opts Options, logger *zap.Logger) *Orchestrator {
	extractor := perception.NewExtractor(client, logger.Named("extractor"))
	return &Orchestrator{
		registry: registry,
		logger:   logger,
		stages: []Stage{
			newMarketResearchStage(registry, extractor, opts.MarketResults, logger.Named("market_research")),
			newCompetitorAnalysisStage(registry, extractor, opts.CompetitorResults, opts.MaxCompetitors, logger.Named("competitor_analysis")),
			newSocialTrendsStage(registry, logger.Named("social_trends")),
			newViabilityStage(extractor, logger.Named("viability_assessment")),
			newRecommendationStage(client, logger.Named("final_recommendations")),
		},
	}
}

// Setup connects the registry and verifies at least one provider answered.
// It is idempotent, so repeated Run calls reuse the live connections.
func (o *Orchestrator) Setup(ctx context.Context) error {
	if o.ready {
		return nil
	}
	o.registry.Connect(ctx)
	providers := o.registry.ConnectedProviders()
	if len(providers) == 0 {
		return ErrNoProviders
	}
	o.logger.Info("tool providers connected", zap.Strings("providers", providers))
	o.ready = true
	return nil
}

// Run executes the full pipeline for one idea. Stage failures never
// propagate: the state accumulated so far is returned, with the failed
// stage's fields left at their defaults. Only setup problems surface as an
// error.
func (o *Orchestrator) Run(ctx context.Context, query string) (state *ResearchState, err error) {
	if err := o.Setup(ctx); err != nil {
		return nil, err
	}

	state = NewResearchState(query)
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pipeline panicked, returning partial state", zap.Any("panic", r))
			err = nil
		}
	}()

	for _, stage := range o.stages {
		if ctx.Err() != nil {
			o.logger.Warn("run cancelled, returning partial state", zap.Error(ctx.Err()))
			return state, nil
		}
		o.logger.Info("running stage", zap.String("stage", stage.Name()))
		update, stageErr := stage.Run(ctx, state)
		if stageErr != nil {
			o.logger.Error("stage failed, returning partial state",
				zap.String("stage", stage.Name()),
				zap.Error(stageErr))
			return state, nil
		}
		update.apply(state)
	}
	return state, nil
}
