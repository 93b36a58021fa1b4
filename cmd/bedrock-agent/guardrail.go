package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/easyops/bedrock-agent-go/pkg/agents"
	"github.com/easyops/bedrock-agent-go/pkg/guardrail"
)

var guardrailFlags struct {
	source   string
	interval int
	json     bool
	session  string
	user     string
}

var guardrailCmd = &cobra.Command{
	Use:   "guardrail",
	Short: "Bedrock Guardrails content filtering",
	Long: `Check text against a Bedrock guardrail, or chat with input and
streaming output filtered by it. The guardrail ID comes from
guardrail.id in the config or BEDROCK_GUARDRAIL_ID.`,
}

var guardrailCheckCmd = &cobra.Command{
	Use:   "check <text>",
	Short: "Apply the guardrail to a piece of text",
	Long: `Apply the guardrail once and print the action and assessments.

Examples:
  bedrock-agent guardrail check "My card number is 4111 1111 1111 1111"
  bedrock-agent guardrail check --source output --json "..."`,
	Args: cobra.MinimumNArgs(1),
	RunE: withApp(runGuardrailCheck),
}

var guardrailChatCmd = &cobra.Command{
	Use:   "chat <prompt>",
	Short: "Streaming chat filtered by the guardrail",
	Long: `Check the prompt, stream the answer, and check the buffered output
every --interval characters plus once at the end. Streaming stops as
soon as the guardrail intervenes. --interval 0 checks only the final text.`,
	Args: cobra.MinimumNArgs(1),
	RunE: withApp(runGuardrailChat),
}

func init() {
	rootCmd.AddCommand(guardrailCmd)
	guardrailCmd.AddCommand(guardrailCheckCmd, guardrailChatCmd)

	guardrailCheckCmd.Flags().StringVar(&guardrailFlags.source, "source", "input", "content source: input or output")
	guardrailCheckCmd.Flags().BoolVar(&guardrailFlags.json, "json", false, "print the result as JSON")

	guardrailChatCmd.Flags().IntVar(&guardrailFlags.interval, "interval", -1, "characters between output checks (default from config)")
	guardrailChatCmd.Flags().StringVar(&guardrailFlags.session, "session", "", "session ID")
	guardrailChatCmd.Flags().StringVar(&guardrailFlags.user, "user", "", "user ID")
}

func newGuardrail(cmd *cobra.Command, a *app) (*guardrail.BedrockGuardrail, error) {
	return guardrail.New(cmd.Context(), a.cfg.Guardrail, a.cfg.LLM.Region,
		guardrail.WithLogger(a.logger),
		guardrail.WithMetrics(a.obs.Metrics()),
	)
}

func runGuardrailCheck(cmd *cobra.Command, args []string, a *app) error {
	source, err := guardrail.ParseSource(guardrailFlags.source)
	if err != nil {
		return err
	}
	g, err := newGuardrail(cmd, a)
	if err != nil {
		return err
	}

	res, err := g.Check(cmd.Context(), strings.Join(args, " "), source)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if guardrailFlags.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printResult(w, source, res)
	return nil
}

func printResult(w io.Writer, source guardrail.Source, res guardrail.Result) {
	fmt.Fprintf(w, "Source:  %s\n", source)
	fmt.Fprintf(w, "Action:  %s\n", res.Action)
	if res.ActionReason != "" {
		fmt.Fprintf(w, "Reason:  %s\n", res.ActionReason)
	}
	fmt.Fprintf(w, "Blocked: %t\n", res.Blocked)
	if source == guardrail.SourceOutput {
		fmt.Fprintf(w, "Output:  %s\n", res.FilteredText)
	}
	for _, d := range res.Details() {
		fmt.Fprintf(w, "  - %s\n", d)
	}
}

func runGuardrailChat(cmd *cobra.Command, args []string, a *app) error {
	ctx := cmd.Context()
	g, err := newGuardrail(cmd, a)
	if err != nil {
		return err
	}
	provider, err := a.newLLM(ctx)
	if err != nil {
		return err
	}
	defer provider.Close()

	var extra []agents.Option
	if guardrailFlags.session != "" {
		extra = append(extra, agents.WithSession(guardrailFlags.session))
	}
	if guardrailFlags.user != "" {
		extra = append(extra, agents.WithUser(guardrailFlags.user))
	}
	agent, err := agents.NewChat(provider, a.agentOptions(extra...)...)
	if err != nil {
		return err
	}

	opts := []guardrail.GuardedOption{guardrail.WithGuardrailConfig(a.cfg.Guardrail)}
	if guardrailFlags.interval >= 0 {
		opts = append(opts, guardrail.WithCheckInterval(guardrailFlags.interval))
	}
	guarded := guardrail.NewGuarded(agent, g, opts...)

	w := cmd.OutOrStdout()
	events, errs := guarded.Stream(ctx, agents.Input{Query: strings.Join(args, " ")})
	for ev := range events {
		switch ev.Type {
		case guardrail.EventText:
			fmt.Fprint(w, ev.Content)
		case guardrail.EventBlocked:
			fmt.Fprintf(w, "\n[blocked by guardrail: %s]\n", ev.Source)
			if ev.Result != nil {
				for _, d := range ev.Result.Details() {
					fmt.Fprintf(w, "  - %s\n", d)
				}
			}
		case guardrail.EventDone:
			fmt.Fprintln(w)
			if ev.Outcome != nil {
				a.logger.Debug("guarded chat finished",
					"blocked", ev.Outcome.Blocked,
					"blocked_at", ev.Outcome.BlockedAt,
					"checks", ev.Outcome.Checks,
				)
			}
		}
	}
	return <-errs
}
