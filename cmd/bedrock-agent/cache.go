package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/easyops/bedrock-agent-go/pkg/agents"
	"github.com/easyops/bedrock-agent-go/pkg/cachemetrics"
	"github.com/easyops/bedrock-agent-go/pkg/core/config"
)

var cacheFlags struct {
	modelID  string
	hours    int
	json     bool
	schedule string
	runs     int
	pause    time.Duration
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Prompt cache metrics and experiments",
}

var cacheMetricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Report cache hit rate from Bedrock invocation logs",
	Long: `Query the Bedrock model invocation log group with CloudWatch Logs
Insights and report cache hit rate and estimated cost reduction.

Examples:
  bedrock-agent cache metrics --hours 24
  bedrock-agent cache metrics --model-id anthropic.claude-3-7-sonnet --json
  bedrock-agent cache metrics --schedule "@every 1h"`,
	RunE: withApp(runCacheMetrics),
}

var cacheTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Ask three questions with a long cached system prompt",
	RunE:  withApp(runCacheTest),
}

var cacheCompareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare latency of short and long (cached) system prompts",
	RunE:  withApp(runCacheCompare),
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheMetricsCmd, cacheTestCmd, cacheCompareCmd)

	cacheMetricsCmd.Flags().StringVar(&cacheFlags.modelID, "model-id", "", "model ID or inference profile to match (default from config)")
	cacheMetricsCmd.Flags().IntVar(&cacheFlags.hours, "hours", 0, "look-back window in hours (default from config)")
	cacheMetricsCmd.Flags().BoolVar(&cacheFlags.json, "json", false, "print the report as JSON")
	cacheMetricsCmd.Flags().StringVar(&cacheFlags.schedule, "schedule", "", "cron spec to repeat the report until interrupted")

	for _, c := range []*cobra.Command{cacheTestCmd, cacheCompareCmd} {
		c.Flags().DurationVar(&cacheFlags.pause, "pause", 0, "pause between requests (default 3s test, 2s compare)")
		c.Flags().BoolVar(&cacheFlags.json, "json", false, "print results as JSON")
	}
	cacheCompareCmd.Flags().IntVar(&cacheFlags.runs, "runs", 3, "runs per prompt")
}

func runCacheMetrics(cmd *cobra.Command, _ []string, a *app) error {
	ctx := cmd.Context()
	cfg := a.cfg.CacheMetrics
	modelID := firstNonEmpty(cacheFlags.modelID, cfg.ModelID, a.cfg.LLM.Model)
	hours := cfg.Hours
	if cacheFlags.hours != 0 {
		hours = cacheFlags.hours
	}
	if hours <= 0 {
		return config.ErrInvalidHours
	}

	collector, err := cachemetrics.NewCollector(ctx, cfg,
		cachemetrics.WithLogger(a.logger),
		cachemetrics.WithMetrics(a.obs.Metrics()),
	)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if cacheFlags.schedule != "" {
		s, err := cachemetrics.NewScheduler(collector, cacheFlags.schedule, modelID, hours, w, cacheFlags.json)
		if err != nil {
			return err
		}
		s.RunOnce(ctx)
		return s.Run(ctx)
	}

	report, err := collector.Fetch(ctx, modelID, hours)
	if err != nil {
		return err
	}
	if cacheFlags.json {
		return cachemetrics.WriteJSON(w, report)
	}
	return cachemetrics.WriteReport(w, report)
}

func experimentConfig(a *app, w io.Writer) cachemetrics.ExperimentConfig {
	return cachemetrics.ExperimentConfig{
		Runs:         cacheFlags.runs,
		Pause:        cacheFlags.pause,
		AgentOptions: a.agentOptions(agents.WithName("cache-experiment")),
		OnRun: func(r cachemetrics.Run) {
			if cacheFlags.json {
				return
			}
			fmt.Fprintf(w, "[%s %d] %s (%s, cache read %d, cache write %d, hit %.0f%%)\n",
				r.Label, r.Index, r.Question, r.Elapsed.Round(time.Millisecond),
				r.Usage.CacheReadTokens, r.Usage.CacheWriteTokens, r.Usage.CacheHitRate()*100)
		},
	}
}

func runCacheTest(cmd *cobra.Command, _ []string, a *app) error {
	ctx := cmd.Context()
	provider, err := a.newLLM(ctx)
	if err != nil {
		return err
	}
	defer provider.Close()

	w := cmd.OutOrStdout()
	result, err := cachemetrics.RunBasic(ctx, provider, experimentConfig(a, w))
	if err != nil {
		return err
	}
	if cacheFlags.json {
		return writeJSON(w, result)
	}
	fmt.Fprintln(w, "Check cache hits with: bedrock-agent cache metrics --hours 1")
	return nil
}

func runCacheCompare(cmd *cobra.Command, _ []string, a *app) error {
	ctx := cmd.Context()
	provider, err := a.newLLM(ctx)
	if err != nil {
		return err
	}
	defer provider.Close()

	w := cmd.OutOrStdout()
	result, err := cachemetrics.Compare(ctx, provider, experimentConfig(a, w))
	if err != nil {
		return err
	}
	if cacheFlags.json {
		return writeJSON(w, result)
	}
	fmt.Fprintf(w, "\nShort prompt average:        %s\n", result.AvgShort.Round(time.Millisecond))
	fmt.Fprintf(w, "Long prompt average:         %s\n", result.AvgLong.Round(time.Millisecond))
	fmt.Fprintf(w, "Long prompt (cached) average: %s\n", result.AvgLongCached.Round(time.Millisecond))
	if result.Speedup > 0 {
		fmt.Fprintf(w, "Cache speedup:               %.1f%%\n", result.Speedup)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
