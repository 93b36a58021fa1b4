package otel

// 预定义的指标名称
// 遵循 OpenTelemetry 语义约定
const (
	// Agent 指标
	MetricAgentRuns        = "agent.runs"         // 计数器: Agent 执行次数
	MetricAgentRunDuration = "agent.run.duration" // 直方图: Agent 执行时间(ms)
	MetricAgentIterations  = "agent.iterations"   // 直方图: Agent 迭代次数
	MetricAgentErrors      = "agent.errors"       // 计数器: Agent 错误次数

	// LLM 指标
	MetricLLMRequests         = "llm.requests"           // 计数器: LLM 请求次数
	MetricLLMRequestDuration  = "llm.request.duration"   // 直方图: LLM 请求时间(ms)
	MetricLLMTokensPrompt     = "llm.tokens.prompt"      // 计数器: Prompt Token 总数
	MetricLLMTokensCompletion = "llm.tokens.completion"  // 计数器: Completion Token 总数
	MetricLLMTokensTotal      = "llm.tokens.total"       // 计数器: 总 Token 数
	MetricLLMTokensCacheRead  = "llm.tokens.cache_read"  // 计数器: 缓存读取 Token 数
	MetricLLMTokensCacheWrite = "llm.tokens.cache_write" // 计数器: 缓存写入 Token 数
	MetricLLMErrors           = "llm.errors"             // 计数器: LLM 错误次数
	MetricLLMRetries          = "llm.retries"            // 计数器: LLM 重试次数
	MetricLLMCost             = "llm.cost"               // 计数器: 估算费用（微美元）

	// Tool 指标
	MetricToolCalls        = "tool.calls"         // 计数器: 工具调用次数
	MetricToolCallDuration = "tool.call.duration" // 直方图: 工具调用时间(ms)
	MetricToolErrors       = "tool.errors"        // 计数器: 工具错误次数

	// Guardrail 指标
	MetricGuardrailChecks   = "guardrail.checks"   // 计数器: 护栏检查次数
	MetricGuardrailBlocks   = "guardrail.blocks"   // 计数器: 护栏拦截次数
	MetricGuardrailDuration = "guardrail.duration" // 直方图: 护栏检查时间(ms)

	// Cache 指标
	MetricCacheHitRate       = "cache.hit_rate"       // 仪表: 缓存命中率(%)
	MetricCacheCostReduction = "cache.cost_reduction" // 仪表: 缓存成本降低(%)
	MetricCacheInvocations   = "cache.invocations"    // 仪表: 统计窗口内调用次数

	// Evaluation 指标
	MetricEvalCases    = "eval.cases"    // 计数器: 评估用例数
	MetricEvalScore    = "eval.score"    // 直方图: 指标得分
	MetricEvalFailures = "eval.failures" // 计数器: 未通过的指标数
)

// MetricUnit 指标单位
type MetricUnit string

const (
	UnitNone         MetricUnit = ""
	UnitMilliseconds MetricUnit = "ms"
	UnitSeconds      MetricUnit = "s"
	UnitBytes        MetricUnit = "By"
	UnitCount        MetricUnit = "1"
	UnitPercent      MetricUnit = "%"
)

// MetricDescription 指标描述
type MetricDescription struct {
	Name        string
	Description string
	Unit        MetricUnit
	Type        string // counter, histogram, gauge
}

// PredefinedMetrics 预定义指标列表
var PredefinedMetrics = []MetricDescription{
	{MetricAgentRuns, "Number of agent runs", UnitCount, "counter"},
	{MetricAgentRunDuration, "Duration of agent runs", UnitMilliseconds, "histogram"},
	{MetricAgentIterations, "Number of iterations per agent run", UnitCount, "histogram"},
	{MetricAgentErrors, "Number of agent errors", UnitCount, "counter"},

	{MetricLLMRequests, "Number of LLM requests", UnitCount, "counter"},
	{MetricLLMRequestDuration, "Duration of LLM requests", UnitMilliseconds, "histogram"},
	{MetricLLMTokensPrompt, "Number of prompt tokens", UnitCount, "counter"},
	{MetricLLMTokensCompletion, "Number of completion tokens", UnitCount, "counter"},
	{MetricLLMTokensTotal, "Total number of tokens", UnitCount, "counter"},
	{MetricLLMTokensCacheRead, "Number of prompt tokens read from cache", UnitCount, "counter"},
	{MetricLLMTokensCacheWrite, "Number of prompt tokens written to cache", UnitCount, "counter"},
	{MetricLLMErrors, "Number of LLM errors", UnitCount, "counter"},
	{MetricLLMRetries, "Number of LLM retries", UnitCount, "counter"},
	{MetricLLMCost, "Estimated LLM cost in micro dollars", UnitCount, "counter"},

	{MetricToolCalls, "Number of tool calls", UnitCount, "counter"},
	{MetricToolCallDuration, "Duration of tool calls", UnitMilliseconds, "histogram"},
	{MetricToolErrors, "Number of tool errors", UnitCount, "counter"},

	{MetricGuardrailChecks, "Number of guardrail checks", UnitCount, "counter"},
	{MetricGuardrailBlocks, "Number of blocked guardrail checks", UnitCount, "counter"},
	{MetricGuardrailDuration, "Duration of guardrail checks", UnitMilliseconds, "histogram"},

	{MetricCacheHitRate, "Prompt cache hit rate", UnitPercent, "gauge"},
	{MetricCacheCostReduction, "Estimated input cost reduction from caching", UnitPercent, "gauge"},
	{MetricCacheInvocations, "Invocations in the analysed window", UnitCount, "gauge"},

	{MetricEvalCases, "Number of evaluated test cases", UnitCount, "counter"},
	{MetricEvalScore, "Evaluation metric scores", UnitNone, "histogram"},
	{MetricEvalFailures, "Number of failed evaluation metrics", UnitCount, "counter"},
}
