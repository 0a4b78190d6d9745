package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venturelens/internal/pipeline"
)

func newTestStore(t *testing.T) *RunStore {
	t.Helper()
	s, err := NewRunStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleState(query string, score int) *pipeline.ResearchState {
	state := pipeline.NewResearchState(query)
	state.StartupIdea = &pipeline.StartupIdea{
		Name: query,
		Competitors: []pipeline.CompetitorInfo{
			{Name: "Acme", Website: "https://acme.io"},
			{Name: "Beta", Website: "https://beta.co"},
		},
		StartupAnalysis: &pipeline.StartupAnalysis{ViabilityScore: &score},
	}
	state.FinalAnalysis = "Worth pursuing."
	state.Recommendations = []string{"1. Validate demand"}
	return state
}

func TestSaveAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	runID, err := s.SaveRun(ctx, sampleState("AI meal planner", 7))
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	run, err := s.GetRun(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, "AI meal planner", run.Query)
	require.NotNil(t, run.ViabilityScore)
	assert.Equal(t, 7, *run.ViabilityScore)
	assert.Equal(t, 2, run.CompetitorCount)
	assert.WithinDuration(t, time.Now(), run.CreatedAt, time.Minute)

	require.NotNil(t, run.State)
	assert.Equal(t, "Worth pursuing.", run.State.FinalAnalysis)
	require.NotNil(t, run.State.StartupIdea)
	assert.Equal(t, "Acme", run.State.StartupIdea.Competitors[0].Name)
}

func TestSaveRunWithPartialState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// A degraded run has no idea at all; it must still persist.
	runID, err := s.SaveRun(ctx, pipeline.NewResearchState("bare idea"))
	require.NoError(t, err)

	run, err := s.GetRun(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Nil(t, run.ViabilityScore)
	assert.Zero(t, run.CompetitorCount)
}

func TestGetRunMissing(t *testing.T) {
	s := newTestStore(t)

	run, err := s.GetRun(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, query := range []string{"first", "second", "third"} {
		_, err := s.SaveRun(ctx, sampleState(query, i+5))
		require.NoError(t, err)
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	for _, r := range runs {
		// Listings carry summary columns only.
		assert.Nil(t, r.State)
		assert.NotEmpty(t, r.Query)
	}

	all, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
