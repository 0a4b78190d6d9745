package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"venturelens/internal/config"
	"venturelens/internal/mcp"
	"venturelens/internal/perception"
	"venturelens/internal/pipeline"
	"venturelens/internal/store"
)

var (
	// Global flags
	verbose    bool
	configPath string
	timeout    time.Duration
	noSave     bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "venturelens",
	Short: "venturelens - AI-driven startup idea research",
	Long: `venturelens researches a startup idea through a five-stage pipeline:
market research, competitor analysis, social trends, viability assessment,
and final recommendations.

Search, market data, and social sentiment come from configurable MCP tool
providers; a Gemini model turns the gathered text into structured analysis.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// analyzeCmd runs the full research pipeline for one idea.
var analyzeCmd = &cobra.Command{
	Use:   "analyze [startup idea]",
	Short: "Run the full research pipeline for a startup idea",
	Long: `Runs all five research stages for the given idea and prints the
analysis report. The completed state is saved to the run database unless
--no-save is set.

Example:
  venturelens analyze "AI-powered meal planning for athletes"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

// historyCmd lists previously saved runs.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved research runs",
	RunE:  runHistory,
}

// showCmd re-renders a saved run's report.
var showCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Render the report for a saved run",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	analyzeCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Overall analysis timeout")
	analyzeCmd.Flags().BoolVar(&noSave, "no-save", false, "Skip saving the run to the database")
	rootCmd.AddCommand(analyzeCmd, historyCmd, showCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("VENTURELENS_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// validateEnvironment refuses to run without an LLM key and warns about
// missing optional provider keys (the tool servers need those).
func validateEnvironment(cfg *config.Config) error {
	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("no Gemini API key configured: set GOOGLE_API_KEY or GEMINI_API_KEY")
	}
	for _, v := range []string{"SERP_API_KEY", "POLYGON_API_KEY", "REDDIT_CLIENT_ID", "TWITTER_BEARER_TOKEN"} {
		if os.Getenv(v) == "" {
			logger.Warn("optional provider credential not set, some tools may degrade", zap.String("var", v))
		}
	}
	return nil
}

func buildRegistry(cfg *config.Config) *mcp.Registry {
	providers := make([]mcp.ProviderConfig, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		providers = append(providers, mcp.ProviderConfig{
			Name:     p.Name,
			Enabled:  p.Enabled,
			Protocol: mcp.Protocol(p.Protocol),
			Command:  p.Command,
			BaseURL:  p.BaseURL,
			Timeout:  p.GetTimeout(),
		})
	}
	return mcp.NewRegistry(providers, logger.Named("mcp"))
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := validateEnvironment(cfg); err != nil {
		return err
	}

	query := ""
	for i, a := range args {
		if i > 0 {
			query += " "
		}
		query += a
	}

	geminiCfg := perception.DefaultGeminiConfig(cfg.LLM.APIKey)
	if cfg.LLM.Model != "" {
		geminiCfg.Model = cfg.LLM.Model
	}
	geminiCfg.Timeout = cfg.GetLLMTimeout()

	client, err := perception.NewGeminiClient(geminiCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	registry := buildRegistry(cfg)
	defer registry.Close()

	opts := pipeline.Options{
		MarketResults:     cfg.Research.MarketResults,
		CompetitorResults: cfg.Research.CompetitorResults,
		MaxCompetitors:    cfg.Research.MaxCompetitors,
	}
	orch := pipeline.NewOrchestrator(registry, client, opts, logger.Named("pipeline"))

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Analyzing startup idea: %q\n", query)
	fmt.Println("This may take a few minutes while market data is gathered...")

	state, err := orch.Run(ctx, query)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	for _, p := range cfg.Providers {
		if st := registry.Status(p.Name); st != mcp.ProviderStatusConnected {
			logger.Warn("tool provider degraded during analysis",
				zap.String("provider", p.Name),
				zap.String("status", string(st)))
		}
	}

	fmt.Print(renderReport(state))

	if !noSave {
		runs, err := store.NewRunStore(cfg.Storage.DatabasePath)
		if err != nil {
			logger.Warn("run database unavailable, result not saved", zap.Error(err))
			return nil
		}
		defer runs.Close()
		runID, err := runs.SaveRun(ctx, state)
		if err != nil {
			logger.Warn("failed to save run", zap.Error(err))
			return nil
		}
		fmt.Printf("\nSaved run %s\n", runID)
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	runs, err := store.NewRunStore(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open run database: %w", err)
	}
	defer runs.Close()

	list, err := runs.ListRuns(cmd.Context(), 20)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No saved runs.")
		return nil
	}
	for _, r := range list {
		score := "N/A"
		if r.ViabilityScore != nil {
			score = fmt.Sprintf("%d/10", *r.ViabilityScore)
		}
		fmt.Printf("%s  %s  score=%s competitors=%d  %q\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04"), score, r.CompetitorCount, r.Query)
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	runs, err := store.NewRunStore(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open run database: %w", err)
	}
	defer runs.Close()

	run, err := runs.GetRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", args[0])
	}
	fmt.Print(renderReport(run.State))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
