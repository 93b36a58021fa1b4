package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"github.com/easyops/bedrock-agent-go/pkg/core/config"
	"github.com/easyops/bedrock-agent-go/pkg/core/errors"
	"github.com/easyops/bedrock-agent-go/pkg/core/message"
)

// ConverseAPI Bedrock Runtime 客户端中本包用到的方法
//
// *bedrockruntime.Client 满足该接口，测试中可替换为假实现。
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// BedrockClient 基于 Converse API 的 Bedrock 客户端
type BedrockClient struct {
	api     ConverseAPI
	options *Options
	counter TokenCounter
}

// NewBedrock 创建 Bedrock 客户端
//
// 凭证走 AWS 默认凭证链（环境变量、共享配置、实例角色）。
// SDK 自带的重试被关闭，统一由本包的 retry 处理。
func NewBedrock(ctx context.Context, opts ...Option) (*BedrockClient, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.Region == "" {
		options.Region = config.DefaultRegion
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(options.Region))
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %v", errors.ErrInvalidConfig, err)
	}

	api := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		o.RetryMaxAttempts = 1
		if options.BaseURL != "" {
			o.BaseEndpoint = aws.String(options.BaseURL)
		}
	})

	return NewBedrockWithAPI(api, opts...), nil
}

// NewBedrockWithAPI 使用已有的 Converse 客户端创建 Bedrock 客户端
func NewBedrockWithAPI(api ConverseAPI, opts ...Option) *BedrockClient {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.Model == "" {
		options.Model = config.DefaultModelID
	}
	if options.Region == "" {
		options.Region = config.DefaultRegion
	}

	counter := options.TokenCounter
	if counter == nil {
		counter = DefaultTokenCounter()
	}

	return &BedrockClient{
		api:     api,
		options: options,
		counter: counter,
	}
}

// Name 返回提供商名称
func (c *BedrockClient) Name() string {
	return "bedrock"
}

// Model 返回当前模型名称
func (c *BedrockClient) Model() string {
	return c.options.Model
}

// Region 返回 AWS 区域
func (c *BedrockClient) Region() string {
	return c.options.Region
}

// Close 关闭客户端连接
func (c *BedrockClient) Close() error {
	return nil
}

// Generate 生成响应（非流式）
func (c *BedrockClient) Generate(ctx context.Context, req Request) (Response, error) {
	parts, err := c.buildParts(req)
	if err != nil {
		return Response{}, err
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:         aws.String(c.options.Model),
		Messages:        parts.messages,
		System:          parts.system,
		InferenceConfig: parts.inference,
		ToolConfig:      parts.tools,
	}

	var out *bedrockruntime.ConverseOutput
	start := time.Now()
	err = retry(ctx, c.options.MaxRetries, c.options.RetryDelay, func() error {
		callCtx, cancel := c.withTimeout(ctx)
		defer cancel()

		var callErr error
		out, callErr = c.api.Converse(callCtx, input)
		return mapBedrockError(callErr)
	})
	if err != nil {
		return Response{}, err
	}

	resp, err := c.parseOutput(out)
	if err != nil {
		return Response{}, err
	}
	if resp.Latency == 0 {
		resp.Latency = time.Since(start)
	}
	return resp, nil
}

// withTimeout 为单次调用加超时
func (c *BedrockClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.options.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.options.Timeout)
}

// converseParts Converse 与 ConverseStream 共用的请求部分
type converseParts struct {
	system    []types.SystemContentBlock
	messages  []types.Message
	inference *types.InferenceConfiguration
	tools     *types.ToolConfiguration
}

// buildParts 把通用请求转换为 Converse 请求
func (c *BedrockClient) buildParts(req Request) (converseParts, error) {
	systemPrompt, rest := message.SplitSystem(req.Messages)

	msgs, err := convertMessagesToBedrock(rest)
	if err != nil {
		return converseParts{}, err
	}

	parts := converseParts{
		messages:  msgs,
		inference: c.inferenceConfig(req),
		tools:     convertToolsToBedrock(req.Tools, req.ToolChoice),
	}

	if systemPrompt != "" {
		parts.system = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: systemPrompt},
		}

		caching := c.options.PromptCaching
		if req.CacheSystemPrompt != nil {
			caching = *req.CacheSystemPrompt
		}
		if caching && cacheEligible(c.counter, systemPrompt) {
			parts.system = append(parts.system, &types.SystemContentBlockMemberCachePoint{
				Value: types.CachePointBlock{Type: types.CachePointTypeDefault},
			})
		}
	}

	return parts, nil
}

// inferenceConfig 合并请求参数与默认参数
func (c *BedrockClient) inferenceConfig(req Request) *types.InferenceConfiguration {
	temperature := c.options.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := c.options.MaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	cfg := &types.InferenceConfiguration{
		Temperature: aws.Float32(float32(temperature)),
		MaxTokens:   aws.Int32(int32(maxTokens)),
	}
	if req.TopP != nil {
		cfg.TopP = aws.Float32(float32(*req.TopP))
	}
	if len(req.Stop) > 0 {
		cfg.StopSequences = req.Stop
	}
	return cfg
}

// convertMessagesToBedrock 转换消息格式
//
// Converse 要求 user / assistant 交替出现，tool 消息以 toolResult 块
// 放进 user 轮次，相邻的同角色消息合并为一条。
func convertMessagesToBedrock(msgs []message.Message) ([]types.Message, error) {
	result := make([]types.Message, 0, len(msgs))

	for _, msg := range msgs {
		var role types.ConversationRole
		var blocks []types.ContentBlock

		switch msg.Role {
		case message.RoleUser:
			role = types.ConversationRoleUser
			blocks = append(blocks, &types.ContentBlockMemberText{Value: msg.Content})

		case message.RoleAssistant:
			role = types.ConversationRoleAssistant
			if msg.Content != "" {
				blocks = append(blocks, &types.ContentBlockMemberText{Value: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				args := tc.Arguments
				if args == nil {
					args = map[string]interface{}{}
				}
				blocks = append(blocks, &types.ContentBlockMemberToolUse{
					Value: types.ToolUseBlock{
						ToolUseId: aws.String(tc.ID),
						Name:      aws.String(tc.Name),
						Input:     document.NewLazyDocument(args),
					},
				})
			}

		case message.RoleTool:
			role = types.ConversationRoleUser
			status := types.ToolResultStatusSuccess
			if msg.IsError {
				status = types.ToolResultStatusError
			}
			blocks = append(blocks, &types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: aws.String(msg.ToolCallID),
					Content: []types.ToolResultContentBlock{
						&types.ToolResultContentBlockMemberText{Value: msg.Content},
					},
					Status: status,
				},
			})

		default:
			return nil, fmt.Errorf("%w: %s", message.ErrInvalidRole, msg.Role)
		}

		if len(blocks) == 0 {
			continue
		}

		if n := len(result); n > 0 && result[n-1].Role == role {
			result[n-1].Content = append(result[n-1].Content, blocks...)
			continue
		}
		result = append(result, types.Message{Role: role, Content: blocks})
	}

	return result, nil
}

// convertToolsToBedrock 转换工具格式
// toolChoice 支持 "auto"、"any"/"required"、"none" 或具体工具名
func convertToolsToBedrock(tools []ToolDefinition, toolChoice interface{}) *types.ToolConfiguration {
	if len(tools) == 0 {
		return nil
	}

	specs := make([]types.Tool, 0, len(tools))
	for _, t := range tools {
		schema := t.Parameters
		if schema == nil {
			schema = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
		}
		specs = append(specs, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(t.Name),
				Description: aws.String(t.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
			},
		})
	}

	cfg := &types.ToolConfiguration{Tools: specs}

	if choice, ok := toolChoice.(string); ok {
		switch choice {
		case "", "auto":
			cfg.ToolChoice = &types.ToolChoiceMemberAuto{Value: types.AutoToolChoice{}}
		case "any", "required":
			cfg.ToolChoice = &types.ToolChoiceMemberAny{Value: types.AnyToolChoice{}}
		case "none":
			// Converse 没有 none，保留工具定义但交给模型决定
		default:
			cfg.ToolChoice = &types.ToolChoiceMemberTool{Value: types.SpecificToolChoice{Name: aws.String(choice)}}
		}
	}

	return cfg
}

// parseOutput 解析 Converse 响应
func (c *BedrockClient) parseOutput(out *bedrockruntime.ConverseOutput) (Response, error) {
	if out == nil {
		return Response{}, errors.ErrInvalidResponse
	}
	msgOut, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return Response{}, fmt.Errorf("%w: missing message output", errors.ErrInvalidResponse)
	}

	resp := Response{
		Model:        c.options.Model,
		FinishReason: mapStopReason(out.StopReason),
		StopReason:   string(out.StopReason),
		TokenUsage:   convertUsage(out.Usage),
	}
	if id, ok := awsmiddleware.GetRequestIDMetadata(out.ResultMetadata); ok {
		resp.ID = id
	}
	if out.Metrics != nil {
		resp.Latency = time.Duration(aws.ToInt64(out.Metrics.LatencyMs)) * time.Millisecond
	}

	var texts []string
	for _, block := range msgOut.Value.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			texts = append(texts, b.Value)
		case *types.ContentBlockMemberToolUse:
			args := make(map[string]interface{})
			if b.Value.Input != nil {
				if err := b.Value.Input.UnmarshalSmithyDocument(&args); err != nil {
					return Response{}, fmt.Errorf("%w: tool input: %v", errors.ErrInvalidResponse, err)
				}
			}
			resp.ToolCalls = append(resp.ToolCalls, message.ToolCall{
				ID:        aws.ToString(b.Value.ToolUseId),
				Name:      aws.ToString(b.Value.Name),
				Arguments: args,
			})
		}
	}
	resp.Content = strings.Join(texts, "\n")

	return resp, nil
}

// convertUsage 转换 Token 用量
func convertUsage(u *types.TokenUsage) message.TokenUsage {
	if u == nil {
		return message.TokenUsage{}
	}
	return message.TokenUsage{
		PromptTokens:     int(aws.ToInt32(u.InputTokens)),
		CompletionTokens: int(aws.ToInt32(u.OutputTokens)),
		TotalTokens:      int(aws.ToInt32(u.TotalTokens)),
		CacheReadTokens:  int(aws.ToInt32(u.CacheReadInputTokens)),
		CacheWriteTokens: int(aws.ToInt32(u.CacheWriteInputTokens)),
	}
}

// mapStopReason 映射结束原因
func mapStopReason(reason types.StopReason) string {
	switch reason {
	case types.StopReasonEndTurn, types.StopReasonStopSequence:
		return FinishStop
	case types.StopReasonToolUse:
		return FinishToolCalls
	case types.StopReasonMaxTokens:
		return FinishLength
	case types.StopReasonGuardrailIntervened, types.StopReasonContentFiltered:
		return FinishContentFilter
	default:
		return string(reason)
	}
}

// mapBedrockError 映射 Bedrock 错误到框架错误
func mapBedrockError(err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) {
		return err
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", errors.ErrTimeout, err)
	}

	var (
		throttling  *types.ThrottlingException
		quota       *types.ServiceQuotaExceededException
		unavailable *types.ServiceUnavailableException
		internal    *types.InternalServerException
		notReady    *types.ModelNotReadyException
		modelErr    *types.ModelErrorException
		modelTO     *types.ModelTimeoutException
		denied      *types.AccessDeniedException
		notFound    *types.ResourceNotFoundException
		validation  *types.ValidationException
	)

	switch {
	case stderrors.As(err, &throttling):
		return fmt.Errorf("%w: %s", errors.ErrRateLimited, throttling.ErrorMessage())
	case stderrors.As(err, &quota):
		return fmt.Errorf("%w: %s", errors.ErrRateLimited, quota.ErrorMessage())
	case stderrors.As(err, &unavailable):
		return fmt.Errorf("%w: %s", errors.ErrProviderUnavailable, unavailable.ErrorMessage())
	case stderrors.As(err, &internal):
		return fmt.Errorf("%w: %s", errors.ErrProviderUnavailable, internal.ErrorMessage())
	case stderrors.As(err, &notReady):
		return fmt.Errorf("%w: %s", errors.ErrProviderUnavailable, notReady.ErrorMessage())
	case stderrors.As(err, &modelErr):
		return fmt.Errorf("%w: %s", errors.ErrProviderUnavailable, modelErr.ErrorMessage())
	case stderrors.As(err, &modelTO):
		return fmt.Errorf("%w: %s", errors.ErrTimeout, modelTO.ErrorMessage())
	case stderrors.As(err, &denied):
		return fmt.Errorf("%w: %s", errors.ErrInvalidAPIKey, denied.ErrorMessage())
	case stderrors.As(err, &notFound):
		return fmt.Errorf("%w: %s", errors.ErrModelNotFound, notFound.ErrorMessage())
	case stderrors.As(err, &validation):
		msg := validation.ErrorMessage()
		if strings.Contains(strings.ToLower(msg), "too long") || strings.Contains(strings.ToLower(msg), "too many tokens") {
			return fmt.Errorf("%w: %s", errors.ErrTokenLimitExceeded, msg)
		}
		return fmt.Errorf("%w: %s", errors.ErrInvalidRequest, msg)
	}

	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		return fmt.Errorf("bedrock error (%s): %w", apiErr.ErrorCode(), err)
	}
	return errors.WrapError(err, "bedrock request failed")
}

// compile-time interface check
var _ Provider = (*BedrockClient)(nil)
