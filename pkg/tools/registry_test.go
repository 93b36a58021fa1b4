package tools_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyops/bedrock-agent-go/pkg/core/errors"
	"github.com/easyops/bedrock-agent-go/pkg/tools"
)

type mockTool struct {
	name   string
	params tools.ParameterSchema
}

func (m *mockTool) Name() string                      { return m.name }
func (m *mockTool) Description() string               { return "mock tool " + m.name }
func (m *mockTool) Parameters() tools.ParameterSchema { return m.params }
func (m *mockTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	return "mock result", nil
}

func newMockTool(name string) *mockTool {
	return &mockTool{
		name: name,
		params: tools.ParameterSchema{
			Type: "object",
			Properties: map[string]tools.PropertySchema{
				"path": {Type: "string", Description: "file path"},
			},
			Required: []string{"path"},
		},
	}
}

func TestRegistry_Register(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(newMockTool("Read")))

	assert.Equal(t, 1, reg.Count())
	assert.True(t, reg.Has("Read"))
	assert.False(t, reg.Has("Write"))

	assert.ErrorIs(t, reg.Register(nil), errors.ErrInvalidTool)
	assert.ErrorIs(t, reg.Register(newMockTool("")), errors.ErrInvalidTool)
	assert.ErrorIs(t, reg.Register(newMockTool("Read")), errors.ErrToolAlreadyRegistered)
}

func TestRegistry_GetAndUnregister(t *testing.T) {
	reg := tools.NewRegistry()
	reg.MustRegister(newMockTool("Read"))

	tool, err := reg.Get("Read")
	require.NoError(t, err)
	assert.Equal(t, "Read", tool.Name())

	_, err = reg.Get("missing")
	assert.ErrorIs(t, err, errors.ErrToolNotFound)
	assert.ErrorContains(t, err, "missing")

	require.NoError(t, reg.Unregister("Read"))
	assert.ErrorIs(t, reg.Unregister("Read"), errors.ErrToolNotFound)
	assert.Equal(t, 0, reg.Count())
}

func TestRegistry_MustRegisterPanics(t *testing.T) {
	reg := tools.NewRegistry()
	reg.MustRegister(newMockTool("Read"))
	assert.Panics(t, func() { reg.MustRegister(newMockTool("Read")) })
}

func TestRegistry_ListIsSorted(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, reg.RegisterAll(newMockTool("Write"), newMockTool("Bash"), newMockTool("Read")))

	assert.Equal(t, []string{"Bash", "Read", "Write"}, reg.List())

	all := reg.All()
	require.Len(t, all, 3)
	assert.Equal(t, "Bash", all[0].Name())

	defs := reg.LLMDefinitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "Read", defs[1].Name)
}

func TestRegistry_LLMDefinitions(t *testing.T) {
	reg := tools.NewRegistry()
	reg.MustRegister(newMockTool("Read"))

	defs := reg.LLMDefinitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "Read", defs[0].Name)
	assert.Equal(t, "mock tool Read", defs[0].Description)
	assert.Equal(t, "object", defs[0].Parameters["type"])

	props, ok := defs[0].Parameters["properties"].(map[string]interface{})
	require.True(t, ok)
	path, ok := props["path"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "string", path["type"])
	assert.Equal(t, []interface{}{"path"}, defs[0].Parameters["required"])
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := tools.NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = reg.Register(newMockTool(string(rune('a' + i))))
			_ = reg.List()
			_ = reg.Has("a")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, reg.Count())
}
