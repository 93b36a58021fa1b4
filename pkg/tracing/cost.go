package tracing

import (
	"strings"
	"sync"
)

// 缓存写入按输入价格的 1.25 倍计费，缓存读取按 0.1 倍计费
const (
	CacheWriteMultiplier = 1.25
	CacheReadMultiplier  = 0.10
)

// ModelPrice 模型价格（美元 / 1K tokens）
type ModelPrice struct {
	Model       string
	PriceInput  float64
	PriceOutput float64
}

// Cost 一次调用的费用明细（美元）
type Cost struct {
	Input      float64 `json:"input"`
	Output     float64 `json:"output"`
	CacheWrite float64 `json:"cache_write,omitempty"`
	CacheRead  float64 `json:"cache_read,omitempty"`
	Total      float64 `json:"total"`
}

// Details 转换为 Langfuse cost_details
func (c Cost) Details() map[string]float64 {
	d := map[string]float64{
		"input":  c.Input,
		"output": c.Output,
		"total":  c.Total,
	}
	if c.CacheWrite > 0 {
		d["cache_creation_input_tokens"] = c.CacheWrite
	}
	if c.CacheRead > 0 {
		d["cache_read_input_tokens"] = c.CacheRead
	}
	return d
}

// CostCalculator 成本计算器
//
// 价格按短模型名前缀匹配，取最长前缀。
type CostCalculator struct {
	mu     sync.RWMutex
	prices map[string]ModelPrice
}

// NewCostCalculator 创建带默认价格的成本计算器
func NewCostCalculator() *CostCalculator {
	c := &CostCalculator{prices: make(map[string]ModelPrice)}
	for _, p := range defaultPrices {
		c.prices[p.Model] = p
	}
	return c
}

var defaultPrices = []ModelPrice{
	{Model: "claude-3-haiku", PriceInput: 0.00025, PriceOutput: 0.00125},
	{Model: "claude-3-5-haiku", PriceInput: 0.0008, PriceOutput: 0.004},
	{Model: "claude-haiku-4-5", PriceInput: 0.001, PriceOutput: 0.005},
	{Model: "claude-3-sonnet", PriceInput: 0.003, PriceOutput: 0.015},
	{Model: "claude-3-5-sonnet", PriceInput: 0.003, PriceOutput: 0.015},
	{Model: "claude-3-7-sonnet", PriceInput: 0.003, PriceOutput: 0.015},
	{Model: "claude-sonnet-4", PriceInput: 0.003, PriceOutput: 0.015},
	{Model: "claude-3-opus", PriceInput: 0.015, PriceOutput: 0.075},
	{Model: "claude-opus-4", PriceInput: 0.015, PriceOutput: 0.075},
	{Model: "gpt-4", PriceInput: 0.03, PriceOutput: 0.06},
	{Model: "gpt-4o", PriceInput: 0.005, PriceOutput: 0.015},
	{Model: "gpt-4o-mini", PriceInput: 0.00015, PriceOutput: 0.0006},
}

// SetPrice 设置模型价格
func (c *CostCalculator) SetPrice(model string, priceInput, priceOutput float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[model] = ModelPrice{Model: model, PriceInput: priceInput, PriceOutput: priceOutput}
}

// Price 查找模型价格，model 可以是完整模型 ID
func (c *CostCalculator) Price(model string) (ModelPrice, bool) {
	short := ShortModelName(model)

	c.mu.RLock()
	defer c.mu.RUnlock()

	var best ModelPrice
	found := false
	for prefix, p := range c.prices {
		if strings.HasPrefix(short, prefix) && len(prefix) > len(best.Model) {
			best = p
			found = true
		}
	}
	return best, found
}

// Calculate 计算费用，未知模型返回 false
func (c *CostCalculator) Calculate(model string, m AgentMetrics) (Cost, bool) {
	price, ok := c.Price(model)
	if !ok {
		return Cost{}, false
	}

	per := func(tokens int, p float64) float64 { return float64(tokens) / 1000 * p }
	cost := Cost{
		Input:      per(m.InputTokens, price.PriceInput),
		Output:     per(m.OutputTokens, price.PriceOutput),
		CacheWrite: per(m.CacheCreationInputTokens, price.PriceInput*CacheWriteMultiplier),
		CacheRead:  per(m.CacheReadInputTokens, price.PriceInput*CacheReadMultiplier),
	}
	cost.Total = cost.Input + cost.Output + cost.CacheWrite + cost.CacheRead
	return cost, true
}
