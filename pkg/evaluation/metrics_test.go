package evaluation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyops/bedrock-agent-go/pkg/core/errors"
)

var fullSample = Sample{
	TestCase: TestCase{
		Input:            "What is the capital of France?",
		ExpectedOutput:   "Paris",
		Context:          []string{"Paris is the capital of France."},
		RetrievalContext: []string{"France's capital city is Paris."},
	},
	ActualOutput: "The capital of France is Paris.",
}

func TestStandardMetrics(t *testing.T) {
	want := map[string]float64{
		"Answer Relevancy":     0.7,
		"Faithfulness":         0.8,
		"Contextual Relevancy": 0.7,
		"Hallucination":        0.5,
	}
	ms := StandardMetrics()
	require.Len(t, ms, len(want))
	for _, m := range ms {
		assert.Equal(t, want[m.Name()], m.Threshold(), m.Name())
	}
}

func TestCustomMetrics(t *testing.T) {
	var names []string
	for _, m := range CustomMetrics() {
		names = append(names, m.Name())
	}
	assert.Equal(t, []string{"Tool Usage Correctness", "Response Quality", "Japanese Language Quality"}, names)
	assert.Equal(t, 0.75, CustomMetrics()[1].Threshold())
}

func TestMetric_Measure(t *testing.T) {
	j, p := newTestJudge(`{"score": 0.9, "reason": "on point"}`)

	res, err := AnswerRelevancy(0.7).Measure(context.Background(), j, fullSample)
	require.NoError(t, err)
	assert.Equal(t, MetricResult{Name: "Answer Relevancy", Score: 0.9, Threshold: 0.7, Success: true, Reason: "on point"}, res)

	prompt := p.prompts()[0]
	assert.Contains(t, prompt, "Input:\nWhat is the capital of France?")
	assert.Contains(t, prompt, "Actual output:\nThe capital of France is Paris.")
	assert.NotContains(t, prompt, "Retrieval context:")
	assert.Contains(t, prompt, `{"score":`)
}

func TestHallucination_LowerIsBetter(t *testing.T) {
	j, _ := newTestJudge(`{"score": 0.9}`)
	res, err := Hallucination(0.5).Measure(context.Background(), j, fullSample)
	require.NoError(t, err)
	assert.False(t, res.Success)

	j, _ = newTestJudge(`{"score": 0.5}`)
	res, err = Hallucination(0.5).Measure(context.Background(), j, fullSample)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestMetric_MissingParams(t *testing.T) {
	j, p := newTestJudge(`{"score": 1}`)
	s := Sample{TestCase: TestCase{Input: "hi"}, ActualOutput: "hello"}

	res, err := Faithfulness(0.8).Measure(context.Background(), j, s)
	assert.ErrorIs(t, err, errors.ErrMissingTestCaseParams)
	assert.Contains(t, res.Error, "RETRIEVAL_CONTEXT")
	assert.False(t, res.Success)
	assert.Empty(t, p.requests)
}

func TestMetric_JudgeError(t *testing.T) {
	j, _ := newTestJudge("I refuse")
	res, err := AnswerRelevancy(0.7).Measure(context.Background(), j, fullSample)
	assert.ErrorIs(t, err, errors.ErrJudgeResponse)
	assert.Contains(t, err.Error(), "metric Answer Relevancy")
	assert.NotEmpty(t, res.Error)
}

func TestGEval_Prompt(t *testing.T) {
	j, p := newTestJudge(`{"score": 0.8}`)
	m := GEval("Tone", "Is it polite?", 0.6)
	_, err := m.Measure(context.Background(), j, fullSample)
	require.NoError(t, err)
	assert.Contains(t, p.prompts()[0], "Evaluate the response against these criteria: Is it polite?")
	assert.Contains(t, p.prompts()[0], "Input:\n")
}

func TestBullets(t *testing.T) {
	assert.Equal(t, "(none)", bullets(nil))
	assert.Equal(t, "- a\n- b", bullets([]string{"a", "b"}))
}
