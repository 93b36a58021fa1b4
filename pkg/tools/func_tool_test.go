package tools_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyops/bedrock-agent-go/pkg/tools"
)

func greetTool() *tools.FuncTool {
	return tools.NewFuncTool(
		"greet",
		"Greet a user",
		tools.ParameterSchema{
			Type: "object",
			Properties: map[string]tools.PropertySchema{
				"name":  {Type: "string", Description: "Name"},
				"times": {Type: "integer", Description: "Repeat count"},
			},
			Required: []string{"name"},
		},
		func(ctx context.Context, args map[string]interface{}) (string, error) {
			return "Hello, " + args["name"].(string), nil
		},
	)
}

func TestFuncTool_Execute(t *testing.T) {
	tool := greetTool()
	assert.Equal(t, "greet", tool.Name())
	assert.Equal(t, "Greet a user", tool.Description())
	assert.Len(t, tool.Parameters().Properties, 2)

	out, err := tool.Execute(context.Background(), map[string]interface{}{"name": "World"})
	require.NoError(t, err)
	assert.Equal(t, "Hello, World", out)
}

func TestFuncTool_ExecuteError(t *testing.T) {
	want := errors.New("boom")
	tool := tools.NewFuncTool("fail", "fails", tools.ParameterSchema{Type: "object"},
		func(ctx context.Context, args map[string]interface{}) (string, error) {
			return "", want
		})

	_, err := tool.Execute(context.Background(), nil)
	assert.ErrorIs(t, err, want)

	empty := tools.NewFuncTool("empty", "no fn", tools.ParameterSchema{Type: "object"}, nil)
	_, err = empty.Execute(context.Background(), nil)
	assert.Error(t, err)
}

func TestFuncTool_DefaultValidateUsesSchema(t *testing.T) {
	tool := greetTool()

	assert.NoError(t, tool.Validate(map[string]interface{}{"name": "a"}))
	assert.NoError(t, tool.Validate(map[string]interface{}{"name": "a", "times": float64(2)}))
	assert.Error(t, tool.Validate(map[string]interface{}{}))
	assert.Error(t, tool.Validate(map[string]interface{}{"name": 1}))
	assert.Error(t, tool.Validate(map[string]interface{}{"name": "a", "times": 1.5}))
	assert.Error(t, tool.Validate(map[string]interface{}{"name": "a", "extra": true}))
}

func TestFuncTool_CustomValidator(t *testing.T) {
	called := false
	tool := tools.NewFuncTool("v", "custom", tools.ParameterSchema{Type: "object"},
		func(ctx context.Context, args map[string]interface{}) (string, error) { return "", nil },
		tools.WithValidator(func(args map[string]interface{}) error {
			called = true
			return errors.New("rejected")
		}),
	)

	assert.EqualError(t, tool.Validate(nil), "rejected")
	assert.True(t, called)
}

type lookupParams struct {
	ID    string   `json:"id" desc:"Order ID" required:"true"`
	Count int      `json:"count"`
	Tags  []string `json:"tags"`
}

func TestTypedTool(t *testing.T) {
	var got lookupParams
	tool := tools.NewTypedTool("Lookup", "Look up an order",
		func(ctx context.Context, p lookupParams) (string, error) {
			got = p
			return "order " + p.ID, nil
		})

	schema := tool.Parameters()
	assert.Equal(t, []string{"id"}, schema.Required)
	assert.Equal(t, "integer", schema.Properties["count"].Type)

	out, err := tool.Execute(context.Background(), map[string]interface{}{
		"id":    "A-1",
		"count": float64(3),
		"tags":  []interface{}{"x"},
	})
	require.NoError(t, err)
	assert.Equal(t, "order A-1", out)
	assert.Equal(t, lookupParams{ID: "A-1", Count: 3, Tags: []string{"x"}}, got)

	_, err = tool.Execute(context.Background(), map[string]interface{}{"count": "three"})
	assert.ErrorContains(t, err, "decode arguments")

	assert.Error(t, tool.Validate(map[string]interface{}{"count": float64(1)}))
}

func TestValidate_Constraints(t *testing.T) {
	minLen, maxLen := 2, 4
	minimum, maximum := 1.0, 10.0
	schema := tools.ParameterSchema{
		Type: "object",
		Properties: map[string]tools.PropertySchema{
			"code":  {Type: "string", MinLength: &minLen, MaxLength: &maxLen, Pattern: "^[a-z]+$"},
			"mode":  {Type: "string", Enum: []string{"fast", "slow"}},
			"count": {Type: "number", Minimum: &minimum, Maximum: &maximum},
			"tags":  {Type: "array", Items: &tools.PropertySchema{Type: "string"}},
			"flag":  {Type: "boolean"},
		},
		AdditionalProperties: true,
	}

	valid := map[string]interface{}{
		"code":  "abc",
		"mode":  "fast",
		"count": 5.0,
		"tags":  []interface{}{"x", "y"},
		"flag":  true,
		"other": "allowed",
	}
	assert.NoError(t, tools.Validate(schema, valid))

	cases := map[string]map[string]interface{}{
		"too short":     {"code": "a"},
		"too long":      {"code": "abcde"},
		"pattern":       {"code": "AB"},
		"enum":          {"mode": "medium"},
		"below minimum": {"count": 0.5},
		"above maximum": {"count": 11},
		"array item":    {"tags": []interface{}{"x", 1}},
		"boolean":       {"flag": "yes"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, tools.Validate(schema, args))
		})
	}
}

func TestSchemaFromStruct(t *testing.T) {
	type params struct {
		Path   string   `json:"path" desc:"File path" required:"true"`
		Offset int      `json:"offset,omitempty" desc:"Start line"`
		Tags   []string `json:"tags"`
		Unit   string   `json:"unit" enum:"c,f"`
		Skip   string   `json:"-"`
		hidden string
	}

	schema := tools.SchemaFromStruct(&params{})
	assert.Equal(t, "object", schema.Type)
	assert.Equal(t, []string{"path"}, schema.Required)
	require.Len(t, schema.Properties, 4)
	assert.Equal(t, "string", schema.Properties["path"].Type)
	assert.Equal(t, "File path", schema.Properties["path"].Description)
	assert.Equal(t, "integer", schema.Properties["offset"].Type)
	assert.Equal(t, "array", schema.Properties["tags"].Type)
	require.NotNil(t, schema.Properties["tags"].Items)
	assert.Equal(t, "string", schema.Properties["tags"].Items.Type)
	assert.Equal(t, []string{"c", "f"}, schema.Properties["unit"].Enum)
}

func TestSignature(t *testing.T) {
	assert.Equal(t, "greet(name*, times)", tools.Signature(greetTool()))

	none := tools.NewFuncTool("ping", "Ping", tools.ParameterSchema{Type: "object"}, nil)
	assert.Equal(t, "ping()", tools.Signature(none))
}

func TestWriteCatalog(t *testing.T) {
	mode := tools.NewFuncTool("alpha", "First tool", tools.ParameterSchema{
		Type: "object",
		Properties: map[string]tools.PropertySchema{
			"mode": {Type: "string", Enum: []string{"fast", "slow"}},
		},
	}, nil)

	var buf strings.Builder
	require.NoError(t, tools.WriteCatalog(&buf, []tools.Tool{greetTool(), mode}))
	out := buf.String()

	assert.Less(t, strings.Index(out, "alpha(mode)"), strings.Index(out, "greet(name*, times)"))
	assert.Contains(t, out, "    Greet a user\n")
	assert.Contains(t, out, "    - mode (string) [fast|slow]\n")
	assert.Less(t, strings.Index(out, "- name (string): Name"), strings.Index(out, "- times (integer): Repeat count"))
}
