package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/easyops/bedrock-agent-go/pkg/core/errors"
	"github.com/easyops/bedrock-agent-go/pkg/otel"
)

// Score 附加在 Trace 或 Observation 上的评分
type Score struct {
	ID            string    `json:"id"`
	TraceID       string    `json:"traceId"`
	ObservationID string    `json:"observationId,omitempty"`
	Name          string    `json:"name"`
	Value         float64   `json:"value"`
	Comment       string    `json:"comment,omitempty"`
	DataType      string    `json:"dataType"`
	Timestamp     time.Time `json:"timestamp"`
}

// ScoreSink 评分接收方
type ScoreSink interface {
	Send(ctx context.Context, score Score) error
}

// LangfuseScorePath Langfuse 评分接口路径
const LangfuseScorePath = "/api/public/scores"

// LangfuseScoreClient 通过 Langfuse 公共 API 写入评分
type LangfuseScoreClient struct {
	endpoint   string
	auth       string
	httpClient *http.Client
}

// NewLangfuseScoreClient 创建评分客户端
func NewLangfuseScoreClient(cfg otel.LangfuseConfig, httpClient *http.Client) (*LangfuseScoreClient, error) {
	if cfg.PublicKey == "" || cfg.SecretKey == "" {
		return nil, errors.ErrMissingTracingCredentials
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &LangfuseScoreClient{
		endpoint:   strings.TrimRight(cfg.Host, "/") + LangfuseScorePath,
		auth:       otel.BasicAuth(cfg.PublicKey, cfg.SecretKey),
		httpClient: httpClient,
	}, nil
}

// Send 发送评分
func (c *LangfuseScoreClient) Send(ctx context.Context, score Score) error {
	body, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("marshal score: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.auth)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send score %q: %w", score.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.WrapError(errors.ErrScoreRejected,
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}
	return nil
}

// MemoryScoreSink 内存评分接收方（测试与离线运行）
type MemoryScoreSink struct {
	mu     sync.Mutex
	scores []Score
}

// NewMemoryScoreSink 创建内存评分接收方
func NewMemoryScoreSink() *MemoryScoreSink {
	return &MemoryScoreSink{}
}

// Send 记录评分
func (s *MemoryScoreSink) Send(_ context.Context, score Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores = append(s.scores, score)
	return nil
}

// Scores 返回已记录的评分副本
func (s *MemoryScoreSink) Scores() []Score {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Score, len(s.scores))
	copy(out, s.scores)
	return out
}

// NoopScoreSink 丢弃所有评分
type NoopScoreSink struct{}

// Send 丢弃评分
func (NoopScoreSink) Send(context.Context, Score) error { return nil }

// newScore 填充 ID、类型与时间
func newScore(traceID, observationID, name string, value float64, comment string) Score {
	return Score{
		ID:            uuid.NewString(),
		TraceID:       traceID,
		ObservationID: observationID,
		Name:          name,
		Value:         value,
		Comment:       comment,
		DataType:      "NUMERIC",
		Timestamp:     time.Now().UTC(),
	}
}

var (
	_ ScoreSink = (*LangfuseScoreClient)(nil)
	_ ScoreSink = (*MemoryScoreSink)(nil)
	_ ScoreSink = NoopScoreSink{}
)
