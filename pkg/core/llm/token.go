package llm

import (
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// MinCacheableTokens 可写入 prompt cache 的最小前缀长度
//
// Claude 3.x Sonnet / Opus 的下限是 1024，低于该值的 cache point 会被忽略。
const MinCacheableTokens = 1024

// TokenCounter Token 计数接口
//
// Claude 的分词器没有公开实现，这里用 cl100k_base 近似，只用于判断
// 系统提示词是否达到 prompt cache 的最小长度。
type TokenCounter interface {
	// Count 返回给定文本的 Token 数量
	Count(text string) int
}

// TiktokenCounter 基于 tiktoken 的计数器
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenCounter 创建 cl100k_base 计数器
//
// tiktoken-go 首次使用时需要下载编码表，离线环境下返回错误。
func NewTiktokenCounter() (*TiktokenCounter, error) {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &TiktokenCounter{encoding: encoding}, nil
}

// Count 返回给定文本的 Token 数量
func (c *TiktokenCounter) Count(text string) int {
	if c.encoding == nil {
		return estimateTokens(text)
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// EstimatedCounter 字符估算计数器，tiktoken 不可用时的降级方案
type EstimatedCounter struct{}

// Count 返回估算的 Token 数量
func (EstimatedCounter) Count(text string) int {
	return estimateTokens(text)
}

// estimateTokens 粗略估算
// 英文约 4 字符 1 token，中日韩文字约 1 字 1 token
func estimateTokens(text string) int {
	var cjk, other int
	for _, r := range text {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
			cjk++
			continue
		}
		other++
	}
	if other == 0 && cjk == 0 {
		return 0
	}
	return cjk + (other+3)/4
}

var (
	defaultCounterOnce sync.Once
	defaultCounter     TokenCounter
)

// DefaultTokenCounter 返回进程级计数器，优先 tiktoken，失败时降级到估算
func DefaultTokenCounter() TokenCounter {
	defaultCounterOnce.Do(func() {
		counter, err := NewTiktokenCounter()
		if err != nil {
			defaultCounter = EstimatedCounter{}
			return
		}
		defaultCounter = counter
	})
	return defaultCounter
}

// cacheEligible 判断系统提示词是否值得插入 cache point
func cacheEligible(counter TokenCounter, system string) bool {
	// 4 字节以内的字符最多 1 token，粗筛掉明显过短的文本
	if utf8.RuneCountInString(system) < MinCacheableTokens {
		return false
	}
	return counter.Count(system) >= MinCacheableTokens
}

// 编译时接口检查
var _ TokenCounter = (*TiktokenCounter)(nil)
var _ TokenCounter = EstimatedCounter{}
