package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/easyops/bedrock-agent-go/pkg/agents"
	"github.com/easyops/bedrock-agent-go/pkg/evaluation"
)

var evalFlags struct {
	dataset         string
	report          string
	noCustomMetrics bool
	db              string
	concurrency     int
	history         int
}

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate the agent with a judge model",
	Long: `Run the agent on every test case in the dataset, score each answer
with the judge model, and attach the scores to the Langfuse trace of the
test case. Langfuse keys are required.

Standard metrics: Answer Relevancy, Faithfulness, Contextual Relevancy,
Hallucination. Custom metrics (GEval): Tool Usage Correctness, Response
Quality, Japanese Language Quality.

Examples:
  bedrock-agent eval --dataset evaluation_dataset.json
  bedrock-agent eval --dataset cases.yaml --no-custom-metrics --db eval.db
  bedrock-agent eval --db eval.db --history 10`,
	RunE: withApp(runEval),
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().StringVar(&evalFlags.dataset, "dataset", "", "dataset file (.json / .yaml, default from config)")
	evalCmd.Flags().StringVar(&evalFlags.report, "report", "", "report output path (default from config)")
	evalCmd.Flags().BoolVar(&evalFlags.noCustomMetrics, "no-custom-metrics", false, "skip the GEval custom metrics")
	evalCmd.Flags().StringVar(&evalFlags.db, "db", "", "sqlite database for run history")
	evalCmd.Flags().IntVar(&evalFlags.concurrency, "concurrency", 0, "test cases evaluated in parallel (default from config)")
	evalCmd.Flags().IntVar(&evalFlags.history, "history", 0, "list the most recent runs from --db instead of evaluating")
}

func runEval(cmd *cobra.Command, _ []string, a *app) error {
	ctx := cmd.Context()
	ecfg := a.cfg.Evaluation
	dbPath := firstNonEmpty(evalFlags.db, ecfg.ResultsDB)

	if evalFlags.history > 0 {
		return printHistory(cmd, dbPath)
	}
	if err := evaluation.CheckCredentials(a.cfg.Observability.Langfuse); err != nil {
		return err
	}

	ds, err := evaluation.LoadDataset(firstNonEmpty(evalFlags.dataset, ecfg.Dataset))
	if err != nil {
		return err
	}

	provider, err := a.newLLM(ctx)
	if err != nil {
		return err
	}
	defer provider.Close()
	agent, err := agents.NewChat(provider, a.agentOptions()...)
	if err != nil {
		return err
	}

	judge, err := evaluation.NewJudge(ctx, ecfg, a.cfg.LLM.Region, a.cfg.LLM.FallbackAPIKey)
	if err != nil {
		return err
	}

	metricSet := evaluation.StandardMetrics()
	if ecfg.CustomMetrics && !evalFlags.noCustomMetrics {
		metricSet = append(metricSet, evaluation.CustomMetrics()...)
	}
	concurrency := ecfg.Concurrency
	if evalFlags.concurrency > 0 {
		concurrency = evalFlags.concurrency
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Evaluating %d test cases with %d metrics (judge: %s)\n", len(ds.TestCases), len(metricSet), judge.Name())

	runner := evaluation.NewRunner(agent, judge, a.tracing,
		evaluation.WithMetricSet(metricSet...),
		evaluation.WithConcurrency(concurrency),
		evaluation.WithRunnerLogger(a.logger),
		evaluation.WithRunnerMetrics(a.obs.Metrics()),
	)
	report, err := runner.Run(ctx, ds)
	if err != nil {
		return err
	}

	reportPath := firstNonEmpty(evalFlags.report, ecfg.ReportPath, evaluation.DefaultReportPath)
	if err := report.WriteFile(reportPath); err != nil {
		return err
	}
	if dbPath != "" {
		store, err := evaluation.NewSQLiteStore(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Save(ctx, report); err != nil {
			return err
		}
	}

	if err := report.WriteSummary(w); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nReport written to %s\n", reportPath)
	return nil
}

func printHistory(cmd *cobra.Command, dbPath string) error {
	if dbPath == "" {
		return fmt.Errorf("--history needs --db or evaluation.results_db")
	}
	store, err := evaluation.NewSQLiteStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(cmd.Context(), evalFlags.history)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %s  %d/%d passed  agent=%s  judge=%s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.RunID, r.Passed, r.Cases, r.Agent, r.Judge)
	}
	return nil
}
