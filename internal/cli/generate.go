package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/GengGeng026/habitboard/internal/aggregate"
	"github.com/GengGeng026/habitboard/internal/export"
	"github.com/GengGeng026/habitboard/internal/insights"
	"github.com/GengGeng026/habitboard/internal/model"
	"github.com/GengGeng026/habitboard/internal/notion"
	"github.com/GengGeng026/habitboard/internal/paginate"
	"github.com/GengGeng026/habitboard/internal/progress"
	"github.com/GengGeng026/habitboard/internal/retry"
)

var (
	pageSize      int
	pageLimit     int
	maxAttempts   int
	fetchTimeout  time.Duration
	progressFile  string
	outPath       string
	fresh         bool
	insightsOn    bool
	insightsModel string
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Fetch habits from Notion and export category totals",
	Long: `Generate walks the habits database page by page, resuming from the
last checkpoint when one exists, aggregates records into per-category
minute totals, and writes the table as CSV for the chart layer.

Credentials come from NOTION_API_KEY and NOTION_DATABASE_ID (a .env
file in the working directory is honored).

Example:
  habitboard generate
  habitboard generate --page-limit 200 --out data/habits.csv
  habitboard generate --fresh --insights`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().IntVar(&pageSize, "page-size", 5, "records per page (small pages keep checkpoints small)")
	generateCmd.Flags().IntVar(&pageLimit, "page-limit", 600, "maximum records to retrieve per run")
	generateCmd.Flags().IntVar(&maxAttempts, "max-attempts", 30, "retry attempts per page before giving up")
	generateCmd.Flags().DurationVar(&fetchTimeout, "timeout", 15*time.Minute, "overall fetch timeout")
	generateCmd.Flags().StringVar(&progressFile, "progress-file", "progress.json", "checkpoint file path")
	generateCmd.Flags().StringVar(&outPath, "out", "data/habits.csv", "exported table path")
	generateCmd.Flags().BoolVar(&fresh, "fresh", false, "discard the checkpoint and refetch from the start")

	generateCmd.Flags().BoolVar(&insightsOn, "insights", false, "generate an LLM summary of the table")
	generateCmd.Flags().StringVar(&insightsModel, "insights-model", "gpt-4o-mini", "model for the insights summary")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	client := notion.NewClient(cfg.Notion)
	if err := client.CheckConnectivity(ctx); err != nil {
		logger.Warn("network check failed", "error", err)
	} else {
		logger.Debug("network check passed")
	}

	store := progress.NewStore(cfg.Progress.Path)
	if fresh {
		if err := store.Clear(); err != nil {
			return err
		}
		if err := export.Remove(cfg.Export.Path); err != nil {
			return err
		}
		logger.Info("checkpoint and export cleared, fetching from the start")
	}

	exec := retry.NewExecutor(cfg.Retry, logger)
	pag := paginate.New(client, exec, store, cfg.Fetch, logger)

	result, err := pag.Run(ctx)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	agg := aggregate.New(client, cfg.Aggregate, logger)
	table, err := agg.Aggregate(ctx, result.Records)
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}

	if err := export.WriteCSV(cfg.Export.Path, table); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	fmt.Printf("✓ Retrieved %d records (%d new this run)\n", result.TotalRetrieved, len(result.Records))
	fmt.Printf("✓ Wrote %d categories to %s\n", len(table), cfg.Export.Path)
	for i, row := range table {
		if i >= 10 {
			fmt.Printf("  ... and %d more\n", len(table)-10)
			break
		}
		fmt.Printf("  %-30s %10.1f min\n", row.Category, row.Total)
	}

	if insightsOn {
		runInsights(ctx, cfg, table, logger)
	}

	if !result.Complete {
		return errors.New("fetch incomplete: retry budget exhausted, progress saved; rerun to resume")
	}
	return nil
}

func runInsights(ctx context.Context, cfg *model.Config, table model.Table, logger *slog.Logger) {
	summarizer, err := insights.NewSummarizer(cfg.Insights)
	if err != nil {
		logger.Warn("insights disabled", "error", err)
		return
	}
	summary, err := summarizer.Summarize(ctx, table)
	if err != nil {
		logger.Warn("insights generation failed", "error", err)
		return
	}
	fmt.Printf("\nInsights:\n%s\n", summary)
}

// buildConfig merges defaults, config file values, flags, and
// credentials from the environment into one explicit Config.
func buildConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()

	cfg.Fetch.PageSize = pageSize
	cfg.Fetch.PageLimit = pageLimit
	cfg.Retry.MaxAttempts = maxAttempts
	cfg.Progress.Path = progressFile
	cfg.Export.Path = outPath
	cfg.Output.Verbose = verbose
	cfg.Insights.Enabled = insightsOn
	cfg.Insights.Model = insightsModel

	if v := viper.GetString("notion.base_url"); v != "" {
		cfg.Notion.BaseURL = v
	}
	if v := viper.GetString("aggregate.category_marker"); v != "" {
		cfg.Aggregate.CategoryMarker = v
	}

	cfg.Notion.Token = os.Getenv("NOTION_API_KEY")
	cfg.Notion.DatabaseID = os.Getenv("NOTION_DATABASE_ID")
	if cfg.Notion.DatabaseID == "" {
		cfg.Notion.DatabaseID = viper.GetString("notion.database_id")
	}
	cfg.Insights.APIKey = os.Getenv("OPENAI_API_KEY")

	if !isValidToken(cfg.Notion.Token) {
		return nil, errors.New("NOTION_API_KEY is missing or too short (expected at least 20 characters)")
	}
	if !isValidDatabaseID(cfg.Notion.DatabaseID) {
		return nil, errors.New("NOTION_DATABASE_ID is missing or malformed (expected 32 characters)")
	}
	if cfg.Insights.Enabled && cfg.Insights.APIKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set (required for --insights)")
	}
	return cfg, nil
}

func isValidToken(token string) bool {
	return len(token) >= 20
}

func isValidDatabaseID(id string) bool {
	return len(id) == 32
}
