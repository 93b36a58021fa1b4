package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/easyops/bedrock-agent-go/pkg/agents"
	"github.com/easyops/bedrock-agent-go/pkg/tools"
	"github.com/easyops/bedrock-agent-go/pkg/tools/builtin"
)

var toolsFlags struct {
	tools   []string
	workDir string
	session string
	user    string
	list    bool
}

var toolsCmd = &cobra.Command{
	Use:   "tools <prompt>",
	Short: "Run the agent with built-in tools",
	Long: `Run a tool-using agent. Each tool call is traced as its own span
under the chat_with_tools trace.

Available tools: Read, Write, Bash. File access is limited to --work-dir.

Examples:
  bedrock-agent tools "Summarize README.md"
  bedrock-agent tools --tools Read,Bash "How many Go files are in this repo?"
  bedrock-agent tools --list`,
	Args: func(cmd *cobra.Command, args []string) error {
		if toolsFlags.list {
			return nil
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if toolsFlags.list {
			return listTools(cmd.OutOrStdout())
		}
		return withApp(runTools)(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)

	toolsCmd.Flags().StringSliceVar(&toolsFlags.tools, "tools", nil, "tools to enable (default from config: Read,Write)")
	toolsCmd.Flags().StringVar(&toolsFlags.workDir, "work-dir", "", "directory the file tools may access (default from config)")
	toolsCmd.Flags().StringVar(&toolsFlags.session, "session", "", "session ID")
	toolsCmd.Flags().StringVar(&toolsFlags.user, "user", "", "user ID")
	toolsCmd.Flags().BoolVar(&toolsFlags.list, "list", false, "list the built-in tools and their parameters")
}

// listTools 输出全部内置工具，不需要模型与追踪配置
func listTools(w io.Writer) error {
	list, err := builtin.ByName(builtin.Names, ".")
	if err != nil {
		return err
	}
	return tools.WriteCatalog(w, list)
}

func runTools(cmd *cobra.Command, args []string, a *app) error {
	ctx := cmd.Context()
	names := toolsFlags.tools
	if len(names) == 0 {
		names = a.cfg.Agent.WithDefaults().Tools
	}
	workDir := toolsFlags.workDir
	if workDir == "" {
		workDir = a.cfg.Agent.WorkDir
	}
	if workDir == "" {
		workDir = "."
	}
	registry, err := builtin.Registry(names, workDir)
	if err != nil {
		return err
	}
	a.logger.Debug("tools enabled", "tools", toolSignatures(registry.All()), "work_dir", workDir)

	provider, err := a.newLLM(ctx)
	if err != nil {
		return err
	}
	defer provider.Close()

	var extra []agents.Option
	if toolsFlags.session != "" {
		extra = append(extra, agents.WithSession(toolsFlags.session))
	}
	if toolsFlags.user != "" {
		extra = append(extra, agents.WithUser(toolsFlags.user))
	}
	agent, err := agents.NewToolAgent(provider, registry, a.agentOptions(extra...)...)
	if err != nil {
		return err
	}

	out, err := agent.Run(ctx, agents.Input{Query: strings.Join(args, " ")})
	w := cmd.OutOrStdout()
	if verbose {
		printSteps(w, out.Steps)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(w, out.Response)
	a.logger.Debug("tools run finished", "tool_calls", out.ToolCalls, "trace_id", out.TraceID, "duration", out.Duration)
	return nil
}

func toolSignatures(list []tools.Tool) []string {
	out := make([]string, 0, len(list))
	for _, t := range list {
		out = append(out, tools.Signature(t))
	}
	return out
}

// printSteps 输出工具调用轨迹
func printSteps(w io.Writer, steps []agents.ReasoningStep) {
	for _, s := range steps {
		switch s.Type {
		case agents.StepTypeAction:
			fmt.Fprintf(w, "-> %s %v\n", s.ToolName, s.ToolArgs)
		case agents.StepTypeObservation:
			status := "ok"
			if s.IsError {
				status = "error"
			}
			fmt.Fprintf(w, "<- %s (%s) %s\n", s.ToolName, status, firstLine(s.ToolResult, 120))
		}
	}
}

func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	r := []rune(s)
	if len(r) > max {
		return string(r[:max]) + "..."
	}
	return s
}
