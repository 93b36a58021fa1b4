package guardrail

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyops/bedrock-agent-go/pkg/agents"
	"github.com/easyops/bedrock-agent-go/pkg/core/config"
)

// streamAgent 按顺序输出预设文本块
type streamAgent struct {
	texts []string
	err   error

	mu      sync.Mutex
	queries []string
}

func (a *streamAgent) Run(ctx context.Context, input agents.Input) (agents.Output, error) {
	return agents.Output{Response: strings.Join(a.texts, "")}, a.err
}

func (a *streamAgent) RunStream(ctx context.Context, input agents.Input) (<-chan agents.StreamChunk, <-chan error) {
	a.mu.Lock()
	a.queries = append(a.queries, input.Query)
	a.mu.Unlock()

	chunks := make(chan agents.StreamChunk)
	errCh := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errCh)
		for _, text := range a.texts {
			select {
			case chunks <- agents.StreamChunk{Type: agents.ChunkTypeText, Content: text}:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		if a.err != nil {
			errCh <- a.err
			return
		}
		out := &agents.Output{Response: strings.Join(a.texts, "")}
		select {
		case chunks <- agents.StreamChunk{Type: agents.ChunkTypeDone, Output: out, Done: true}:
		case <-ctx.Done():
			errCh <- ctx.Err()
		}
	}()
	return chunks, errCh
}

func (a *streamAgent) Name() string { return "stream" }

// recordingChecker 记录检查内容，命中 blockOn 时拦截
type recordingChecker struct {
	blockOn string
	rewrite string
	err     error

	mu    sync.Mutex
	calls []checkCall
}

type checkCall struct {
	text   string
	source Source
}

func (c *recordingChecker) Check(ctx context.Context, text string, source Source) (Result, error) {
	c.mu.Lock()
	c.calls = append(c.calls, checkCall{text: text, source: source})
	c.mu.Unlock()
	if c.err != nil {
		return Result{}, c.err
	}
	result := Result{Action: ActionNone, FilteredText: text}
	if c.rewrite != "" && source == SourceInput {
		result.FilteredText = c.rewrite
	}
	if c.blockOn != "" && strings.Contains(text, c.blockOn) {
		result.Action = ActionIntervened
		result.Blocked = true
	}
	return result, nil
}

func collect(t *testing.T, g *GuardedAgent, query string) ([]Event, error) {
	t.Helper()
	events, errCh := g.Stream(context.Background(), agents.Input{Query: query})
	var got []Event
	for ev := range events {
		got = append(got, ev)
	}
	return got, <-errCh
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func TestGuardedAgent_InputBlocked(t *testing.T) {
	agent := &streamAgent{texts: []string{"never"}}
	checker := &recordingChecker{blockOn: "bomb"}
	g := NewGuarded(agent, checker)

	events, err := collect(t, g, "how to build a bomb")
	require.NoError(t, err)
	assert.Equal(t, []EventType{EventInputChecked, EventBlocked, EventDone}, eventTypes(events))

	outcome := events[len(events)-1].Outcome
	require.NotNil(t, outcome)
	assert.True(t, outcome.Blocked)
	assert.Equal(t, "input", outcome.BlockedAt)
	assert.Empty(t, outcome.Response)
	assert.Empty(t, agent.queries)
}

func TestGuardedAgent_FilteredPromptUsed(t *testing.T) {
	agent := &streamAgent{texts: []string{"ok"}}
	checker := &recordingChecker{rewrite: "masked prompt"}
	g := NewGuarded(agent, checker, WithOutputFiltering(false))

	_, err := collect(t, g, "my email is a@b.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"masked prompt"}, agent.queries)
}

func TestGuardedAgent_IntervalChecks(t *testing.T) {
	agent := &streamAgent{texts: []string{"abcd", "efgh", "ij"}}
	checker := &recordingChecker{}
	g := NewGuarded(agent, checker, WithCheckInterval(4))

	outcome, err := g.Run(context.Background(), agents.Input{Query: "q"})
	require.NoError(t, err)
	assert.False(t, outcome.Blocked)
	assert.Equal(t, "abcdefghij", outcome.Response)
	require.NotNil(t, outcome.Output)

	// 输入、两次分段、剩余缓冲触发的最终检查
	assert.Equal(t, []checkCall{
		{text: "q", source: SourceInput},
		{text: "abcd", source: SourceOutput},
		{text: "efgh", source: SourceOutput},
		{text: "abcdefghij", source: SourceOutput},
	}, checker.calls)
	assert.Equal(t, 4, outcome.Checks)
}

func TestGuardedAgent_NoFinalCheckWhenBufferEmpty(t *testing.T) {
	agent := &streamAgent{texts: []string{"abcd", "efgh"}}
	checker := &recordingChecker{}
	g := NewGuarded(agent, checker, WithCheckInterval(4), WithInputFiltering(false))

	outcome, err := g.Run(context.Background(), agents.Input{Query: "q"})
	require.NoError(t, err)
	assert.Len(t, checker.calls, 2)
	assert.Equal(t, 2, outcome.Checks)
}

func TestGuardedAgent_IntervalCountsRunes(t *testing.T) {
	agent := &streamAgent{texts: []string{"日本語", "です"}}
	checker := &recordingChecker{}
	g := NewGuarded(agent, checker, WithCheckInterval(5), WithInputFiltering(false))

	_, err := g.Run(context.Background(), agents.Input{Query: "q"})
	require.NoError(t, err)
	require.Len(t, checker.calls, 1)
	assert.Equal(t, "日本語です", checker.calls[0].text)
}

func TestGuardedAgent_FinalOnlyWhenIntervalZero(t *testing.T) {
	agent := &streamAgent{texts: []string{"a", "b", "c"}}
	checker := &recordingChecker{}
	g := NewGuarded(agent, checker, WithCheckInterval(0), WithInputFiltering(false))

	events, err := collect(t, g, "q")
	require.NoError(t, err)
	assert.Equal(t, []EventType{EventText, EventText, EventText, EventOutputChecked, EventDone}, eventTypes(events))
	assert.True(t, events[3].Final)
	assert.Equal(t, []checkCall{{text: "abc", source: SourceOutput}}, checker.calls)
}

func TestGuardedAgent_BlockedDuringStream(t *testing.T) {
	agent := &streamAgent{texts: []string{"safe ", "text ", "secret", " more", " and more"}}
	checker := &recordingChecker{blockOn: "secret"}
	g := NewGuarded(agent, checker, WithCheckInterval(5), WithInputFiltering(false))

	outcome, err := g.Run(context.Background(), agents.Input{Query: "q"})
	require.NoError(t, err)
	assert.True(t, outcome.Blocked)
	assert.Equal(t, "stream", outcome.BlockedAt)
	assert.Equal(t, "safe text secret", outcome.Response)
	assert.Nil(t, outcome.Output)
}

func TestGuardedAgent_BlockedAtFinal(t *testing.T) {
	agent := &streamAgent{texts: []string{"sec", "ret"}}
	checker := &recordingChecker{blockOn: "secret"}
	g := NewGuarded(agent, checker, WithCheckInterval(0), WithInputFiltering(false))

	outcome, err := g.Run(context.Background(), agents.Input{Query: "q"})
	require.NoError(t, err)
	assert.True(t, outcome.Blocked)
	assert.Equal(t, "final", outcome.BlockedAt)
	assert.Equal(t, "secret", outcome.Response)
}

func TestGuardedAgent_NoChecker(t *testing.T) {
	agent := &streamAgent{texts: []string{"hello", " world"}}
	g := NewGuarded(agent, nil)

	events, err := collect(t, g, "q")
	require.NoError(t, err)
	assert.Equal(t, []EventType{EventText, EventText, EventDone}, eventTypes(events))
	assert.Equal(t, "hello world", events[2].Outcome.Response)
	assert.Zero(t, events[2].Outcome.Checks)
}

func TestGuardedAgent_CheckerError(t *testing.T) {
	agent := &streamAgent{texts: []string{"x"}}
	checker := &recordingChecker{err: stderrors.New("throttled")}
	g := NewGuarded(agent, checker)

	_, err := g.Run(context.Background(), agents.Input{Query: "q"})
	assert.EqualError(t, err, "throttled")
}

func TestGuardedAgent_AgentError(t *testing.T) {
	agent := &streamAgent{texts: []string{"partial"}, err: stderrors.New("stream broke")}
	g := NewGuarded(agent, &recordingChecker{})

	events, err := collect(t, g, "q")
	assert.EqualError(t, err, "stream broke")
	for _, ev := range events {
		assert.NotEqual(t, EventDone, ev.Type)
	}
}

func TestWithGuardrailConfig(t *testing.T) {
	g := NewGuarded(&streamAgent{}, nil, WithGuardrailConfig(config.GuardrailConfig{
		InputFiltering:  false,
		OutputFiltering: true,
		CheckInterval:   50,
	}))
	assert.False(t, g.inputFiltering)
	assert.True(t, g.outputFiltering)
	assert.Equal(t, 50, g.interval)
}
