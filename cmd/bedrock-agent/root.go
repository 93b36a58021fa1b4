package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/easyops/bedrock-agent-go/pkg/core/errors"
)

// Version 程序版本
const Version = "1.2.0"

var (
	// 全局参数
	cfgFile     string
	verbose     bool
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "bedrock-agent",
	Short: "Bedrock agents with Langfuse tracing",
	Long: `bedrock-agent runs Claude models on Amazon Bedrock with every request
traced to Langfuse through OpenTelemetry.

Commands:
  chat       conversation with optional session history and streaming
  query      one-shot query without history
  tools      agent with built-in Read / Write / Bash tools
  guardrail  Bedrock Guardrails checks and filtered streaming chat
  cache      prompt cache metrics and caching experiments
  eval       judge-model evaluation of an agent over a dataset

Configuration is read from --config (YAML or JSON), then environment
variables (AWS_REGION, LANGFUSE_*, OPENAI_API_KEY, BEDROCK_AGENT_*).`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute 执行根命令，收到 SIGINT / SIGTERM 时取消上下文
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode 配置或凭证类错误返回 2，其余返回 1
func exitCode(err error) int {
	if errors.IsFatal(err) {
		return 2
	}
	return 1
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (.yaml / .json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
}
