package otel

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ExporterType 导出目标
type ExporterType string

const (
	ExporterOTLPGRPC ExporterType = "otlp-grpc"
	ExporterOTLPHTTP ExporterType = "otlp-http"
	// ExporterStdout 打印到标准输出，调试用
	ExporterStdout ExporterType = "stdout"
	// ExporterNone 不导出，Span 仍有有效 ID
	ExporterNone ExporterType = "none"
	// ExporterLangfuse Langfuse 的 OTLP/HTTP 接入点，只接收追踪
	ExporterLangfuse ExporterType = "langfuse"
)

// LangfuseOTLPPath Langfuse 接收 OTLP 追踪数据的路径
const LangfuseOTLPPath = "/api/public/otel/v1/traces"

// ExporterConfig 导出器连接参数
type ExporterConfig struct {
	Type ExporterType `json:"type" yaml:"type"`
	// Endpoint host:port，gRPC 与未设置 URL 的 HTTP 使用
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	// URL 完整的 OTLP/HTTP 地址，优先于 Endpoint
	URL      string            `json:"url" yaml:"url"`
	Insecure bool              `json:"insecure" yaml:"insecure"`
	Headers  map[string]string `json:"headers" yaml:"headers"`
	Timeout  time.Duration     `json:"timeout" yaml:"timeout"`
	// Gzip 是否压缩请求体
	Gzip bool `json:"gzip" yaml:"gzip"`
}

// LangfuseExporterConfig 返回指向 Langfuse 的导出器配置
//
// Langfuse 使用 Basic 认证，用户名为公钥、密码为私钥。
func LangfuseExporterConfig(cfg LangfuseConfig, timeout time.Duration) ExporterConfig {
	return ExporterConfig{
		Type:    ExporterLangfuse,
		URL:     strings.TrimRight(cfg.Host, "/") + LangfuseOTLPPath,
		Headers: map[string]string{"Authorization": BasicAuth(cfg.PublicKey, cfg.SecretKey)},
		Timeout: timeout,
	}
}

// BasicAuth 返回 Authorization 头的值
func BasicAuth(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}

// NewTraceExporter 按类型创建 Span 导出器，ExporterNone 返回 nil
func NewTraceExporter(ctx context.Context, cfg ExporterConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Type {
	case ExporterNone:
		return nil, nil
	case ExporterStdout:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case ExporterOTLPGRPC:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithHeaders(cfg.Headers)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure(),
				otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, otlptracegrpc.WithTimeout(cfg.Timeout))
		}
		if cfg.Gzip {
			opts = append(opts, otlptracegrpc.WithCompressor("gzip"))
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	case ExporterOTLPHTTP, ExporterLangfuse:
		opts := []otlptracehttp.Option{otlptracehttp.WithHeaders(cfg.Headers)}
		if cfg.URL != "" {
			opts = append(opts, otlptracehttp.WithEndpointURL(cfg.URL))
		} else {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if cfg.Timeout > 0 {
			opts = append(opts, otlptracehttp.WithTimeout(cfg.Timeout))
		}
		if cfg.Gzip {
			opts = append(opts, otlptracehttp.WithCompression(otlptracehttp.GzipCompression))
		}
		return otlptracehttp.New(ctx, opts...)
	}
	return nil, fmt.Errorf("%w: unsupported trace exporter %q", ErrInvalidConfig, cfg.Type)
}

// NewMetricExporter 创建 OTLP 或 stdout 指标导出器
//
// memory、prometheus 与 none 由 Provider 直接处理，不经过导出器。
func NewMetricExporter(ctx context.Context, cfg ExporterConfig) (sdkmetric.Exporter, error) {
	switch cfg.Type {
	case ExporterStdout:
		return stdoutmetric.New(stdoutmetric.WithPrettyPrint())
	case ExporterOTLPGRPC:
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint), otlpmetricgrpc.WithHeaders(cfg.Headers)}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure(),
				otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, otlpmetricgrpc.WithTimeout(cfg.Timeout))
		}
		if cfg.Gzip {
			opts = append(opts, otlpmetricgrpc.WithCompressor("gzip"))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case ExporterOTLPHTTP:
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithHeaders(cfg.Headers)}
		if cfg.URL != "" {
			opts = append(opts, otlpmetrichttp.WithEndpointURL(cfg.URL))
		} else {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		if cfg.Timeout > 0 {
			opts = append(opts, otlpmetrichttp.WithTimeout(cfg.Timeout))
		}
		if cfg.Gzip {
			opts = append(opts, otlpmetrichttp.WithCompression(otlpmetrichttp.GzipCompression))
		}
		return otlpmetrichttp.New(ctx, opts...)
	case ExporterLangfuse:
		return nil, fmt.Errorf("%w: langfuse does not accept metrics", ErrInvalidConfig)
	}
	return nil, fmt.Errorf("%w: unsupported metric exporter %q", ErrInvalidConfig, cfg.Type)
}
