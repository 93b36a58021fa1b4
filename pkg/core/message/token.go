package message

// TokenUsage 一次或多次调用的 Token 用量
type TokenUsage struct {
	// PromptTokens 未命中缓存的输入 Token
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	// CacheReadTokens 从 prompt cache 读取的 Token 数
	CacheReadTokens int `json:"cache_read_tokens,omitempty"`
	// CacheWriteTokens 写入 prompt cache 的 Token 数
	CacheWriteTokens int `json:"cache_write_tokens,omitempty"`
}

// Add 累加 Token 使用量
func (t *TokenUsage) Add(other TokenUsage) {
	t.PromptTokens += other.PromptTokens
	t.CompletionTokens += other.CompletionTokens
	t.TotalTokens += other.TotalTokens
	t.CacheReadTokens += other.CacheReadTokens
	t.CacheWriteTokens += other.CacheWriteTokens
}

// CacheHitRate 返回本次调用缓存读取占全部输入 Token 的比例（0-1）
func (t TokenUsage) CacheHitRate() float64 {
	total := t.PromptTokens + t.CacheReadTokens + t.CacheWriteTokens
	if total == 0 {
		return 0
	}
	return float64(t.CacheReadTokens) / float64(total)
}
