package evaluation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyops/bedrock-agent-go/pkg/core/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDataset_JSON(t *testing.T) {
	path := writeFile(t, "ds.json", `{
  "test_cases": [
    {
      "input": "What is the capital of France?",
      "expected_output": "Paris",
      "context": ["Paris is the capital of France."],
      "retrieval_context": ["France's capital city is Paris."]
    },
    {"input": "Say hi"}
  ]
}`)

	ds, err := LoadDataset(path)
	require.NoError(t, err)
	require.Len(t, ds.TestCases, 2)
	assert.Equal(t, TestCase{
		Input:            "What is the capital of France?",
		ExpectedOutput:   "Paris",
		Context:          []string{"Paris is the capital of France."},
		RetrievalContext: []string{"France's capital city is Paris."},
	}, ds.TestCases[0])
	assert.Empty(t, ds.TestCases[1].Context)
}

func TestLoadDataset_YAML(t *testing.T) {
	path := writeFile(t, "ds.yaml", `
test_cases:
  - input: 東京の人口は？
    expected_output: 約1400万人
    context:
      - 東京都の人口は約1400万人です。
`)

	ds, err := LoadDataset(path)
	require.NoError(t, err)
	require.Len(t, ds.TestCases, 1)
	assert.Equal(t, "東京の人口は？", ds.TestCases[0].Input)
	assert.Equal(t, []string{"東京都の人口は約1400万人です。"}, ds.TestCases[0].Context)
}

func TestLoadDataset_Empty(t *testing.T) {
	_, err := LoadDataset(writeFile(t, "ds.json", `{"test_cases": []}`))
	assert.ErrorIs(t, err, errors.ErrEmptyDataset)
}

func TestLoadDataset_MissingInput(t *testing.T) {
	_, err := LoadDataset(writeFile(t, "ds.yml", "test_cases:\n  - expected_output: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test case 1: input is required")
}

func TestLoadDataset_Errors(t *testing.T) {
	_, err := LoadDataset(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadDataset(writeFile(t, "ds.json", "{not json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse dataset")
}
