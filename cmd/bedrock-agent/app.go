package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/easyops/bedrock-agent-go/pkg/agents"
	"github.com/easyops/bedrock-agent-go/pkg/core/config"
	coreerrors "github.com/easyops/bedrock-agent-go/pkg/core/errors"
	"github.com/easyops/bedrock-agent-go/pkg/core/llm"
	"github.com/easyops/bedrock-agent-go/pkg/otel"
	"github.com/easyops/bedrock-agent-go/pkg/tracing"
)

const shutdownTimeout = 10 * time.Second

// app 单次命令执行共享的配置、日志、追踪与指标
type app struct {
	cfg     *config.Config
	zap     *zap.Logger
	logger  otel.Logger
	obs     *otel.Provider
	tracing *tracing.Client
	server  *http.Server
}

// newApp 加载配置并初始化可观测性
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", coreerrors.ErrInvalidConfig, err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", coreerrors.ErrInvalidConfig, err)
	}

	ocfg := otel.FromAppConfig(cfg)
	zl, err := otel.NewZap(ocfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger := otel.NewZapLogger(zl)

	opts := []otel.ProviderOption{otel.WithProviderLogger(logger)}
	if metricsAddr != "" {
		ocfg.Enabled = true
		ocfg.Metrics.Enabled = true
		ocfg.Metrics.Backend = otel.MetricsBackendPrometheus
		opts = append(opts, otel.WithRegistry(prometheus.NewRegistry()))
	}
	provider, err := otel.NewProvider(ocfg, opts...)
	if err != nil {
		_ = zl.Sync()
		return nil, fmt.Errorf("init observability: %w", err)
	}

	a := &app{
		cfg:     cfg,
		zap:     zl,
		logger:  logger,
		obs:     provider,
		tracing: tracing.NewClientFromProvider(provider),
	}
	if metricsAddr != "" {
		if err := a.serveMetrics(ctx); err != nil {
			a.close()
			return nil, err
		}
	}
	logger.Debug("observability ready",
		"tracing", ocfg.Tracing.Enabled,
		"exporter", ocfg.Tracing.Exporter,
		"metrics", ocfg.Metrics.Backend,
	)
	return a, nil
}

// serveMetrics 在 --metrics-addr 上暴露 /metrics
func (a *app) serveMetrics(ctx context.Context) error {
	ln, err := net.Listen("tcp", metricsAddr)
	if err != nil {
		return fmt.Errorf("listen metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.obs.Registry(), promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
	a.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.server.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", "error", err)
		}
	}()
	a.logger.WithContext(ctx).Info("serving metrics", "addr", ln.Addr().String())
	return nil
}

// newLLM 创建带指标的主模型 Provider
func (a *app) newLLM(ctx context.Context) (llm.Provider, error) {
	p, err := llm.FromConfig(ctx, a.cfg.LLM)
	if err != nil {
		return nil, err
	}
	return otel.NewTracedProvider(p, otel.WithTracedProviderMetrics(a.obs.Metrics())), nil
}

// agentOptions 应用配置之后追加调用方的选项
func (a *app) agentOptions(extra ...agents.Option) []agents.Option {
	opts := []agents.Option{
		agents.WithConfig(a.cfg),
		agents.WithTracing(a.tracing),
		agents.WithLogger(a.logger),
		agents.WithMetrics(a.obs.Metrics()),
	}
	return append(opts, extra...)
}

// close 导出剩余数据并释放资源
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.server != nil {
		_ = a.server.Shutdown(ctx)
	}
	if err := a.tracing.Flush(ctx); err != nil {
		a.logger.Warn("flush traces failed", "error", err)
	}
	if err := a.obs.Shutdown(ctx); err != nil {
		a.logger.Warn("shutdown observability failed", "error", err)
	}
	_ = a.zap.Sync()
}

// withApp 为 RunE 准备 app 并在结束后关闭
func withApp(fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()
		return fn(cmd, args, a)
	}
}
