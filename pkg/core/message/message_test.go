package message_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/easyops/bedrock-agent-go/pkg/core/message"
)

func TestSplitSystem(t *testing.T) {
	system, rest := message.SplitSystem([]message.Message{
		message.NewSystemMessage("be brief"),
		message.NewUserMessage("hi"),
		message.NewSystemMessage("answer in Japanese"),
		message.NewAssistantMessage("こんにちは"),
	})

	assert.Equal(t, "be brief\n\nanswer in Japanese", system)
	assert.Len(t, rest, 2)
	assert.Equal(t, message.RoleUser, rest[0].Role)
	assert.Equal(t, message.RoleAssistant, rest[1].Role)
}

func TestToolMessages(t *testing.T) {
	ok := message.NewToolMessage("call-1", "Read", "contents")
	assert.Equal(t, message.RoleTool, ok.Role)
	assert.Equal(t, "call-1", ok.ToolCallID)
	assert.Equal(t, "Read", ok.Name)
	assert.False(t, ok.IsError)
	assert.NotEmpty(t, ok.ID)

	failed := message.NewToolErrorMessage("call-2", "Bash", "denied")
	assert.True(t, failed.IsError)

	call := message.NewAssistantToolCallMessage("", []message.ToolCall{{ID: "call-1", Name: "Read"}})
	assert.Len(t, call.ToolCalls, 1)
	assert.NotEqual(t, ok.ID, failed.ID)
}

func TestTokenUsage(t *testing.T) {
	var total message.TokenUsage
	total.Add(message.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15, CacheWriteTokens: 1200})
	total.Add(message.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15, CacheReadTokens: 1200})

	assert.Equal(t, 20, total.PromptTokens)
	assert.Equal(t, 30, total.TotalTokens)
	assert.InDelta(t, 1200.0/2420.0, total.CacheHitRate(), 1e-9)
	assert.Zero(t, message.TokenUsage{}.CacheHitRate())
	assert.False(t, message.Role("robot").IsValid())
}
