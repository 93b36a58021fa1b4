package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/easyops/bedrock-agent-go/pkg/agents"
)

var chatFlags struct {
	stream  bool
	session string
	user    string
	system  string
}

var chatCmd = &cobra.Command{
	Use:   "chat [prompt]",
	Short: "Chat with the agent",
	Long: `Send a prompt to the agent, or start an interactive session when no
prompt is given. Turns in the same session share conversation history.

Examples:
  # One-shot
  bedrock-agent chat "What is Amazon Bedrock?"

  # Streaming with a fixed session
  bedrock-agent chat --stream --session demo-1 "Tell me a story"

  # Interactive (type exit to quit)
  bedrock-agent chat --user alice`,
	RunE: withApp(runChat),
}

var queryFlags struct {
	session string
	user    string
}

var queryCmd = &cobra.Command{
	Use:   "query <prompt>",
	Short: "One-shot query without history",
	Args:  cobra.MinimumNArgs(1),
	RunE:  withApp(runQuery),
}

func init() {
	rootCmd.AddCommand(chatCmd, queryCmd)

	chatCmd.Flags().BoolVar(&chatFlags.stream, "stream", false, "stream the response")
	chatCmd.Flags().StringVar(&chatFlags.session, "session", "", "session ID (default: random)")
	chatCmd.Flags().StringVar(&chatFlags.user, "user", "", "user ID")
	chatCmd.Flags().StringVar(&chatFlags.system, "system", "", "system prompt (overrides config)")

	queryCmd.Flags().StringVar(&queryFlags.session, "session", "", "session ID")
	queryCmd.Flags().StringVar(&queryFlags.user, "user", "", "user ID")
}

func runChat(cmd *cobra.Command, args []string, a *app) error {
	ctx := cmd.Context()
	provider, err := a.newLLM(ctx)
	if err != nil {
		return err
	}
	defer provider.Close()

	session := chatFlags.session
	if session == "" {
		session = uuid.NewString()
	}
	extra := []agents.Option{
		agents.WithSession(session),
		agents.WithSessionHistory(true),
	}
	if chatFlags.user != "" {
		extra = append(extra, agents.WithUser(chatFlags.user))
	}
	if chatFlags.system != "" {
		extra = append(extra, agents.WithSystemPrompt(chatFlags.system))
	}
	agent, err := agents.NewChat(provider, a.agentOptions(extra...)...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(args) > 0 {
		return chatTurn(ctx, agent, strings.Join(args, " "), out)
	}

	fmt.Fprintf(out, "Session %s (type exit to quit)\n", session)
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		prompt := strings.TrimSpace(scanner.Text())
		switch prompt {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		if err := chatTurn(ctx, agent, prompt, out); err != nil {
			a.logger.Error("chat turn failed", "session", session, "error", err)
			fmt.Fprintln(out, "error:", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// chatTurn 执行一轮对话并输出回复
func chatTurn(ctx context.Context, agent agents.Agent, prompt string, w io.Writer) error {
	input := agents.Input{Query: prompt}
	if !chatFlags.stream {
		res, err := agent.Run(ctx, input)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, res.Response)
		return nil
	}

	chunks, errs := agent.RunStream(ctx, input)
	for chunk := range chunks {
		if chunk.Type == agents.ChunkTypeText {
			fmt.Fprint(w, chunk.Content)
		}
	}
	fmt.Fprintln(w)
	return <-errs
}

func runQuery(cmd *cobra.Command, args []string, a *app) error {
	ctx := cmd.Context()
	provider, err := a.newLLM(ctx)
	if err != nil {
		return err
	}
	defer provider.Close()

	var extra []agents.Option
	if queryFlags.session != "" {
		extra = append(extra, agents.WithSession(queryFlags.session))
	}
	if queryFlags.user != "" {
		extra = append(extra, agents.WithUser(queryFlags.user))
	}
	answer, err := agents.SimpleQuery(ctx, provider, strings.Join(args, " "), a.agentOptions(extra...)...)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), answer)
	return nil
}
