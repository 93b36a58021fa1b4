package guardrail

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/easyops/bedrock-agent-go/pkg/core/errors"
	"github.com/easyops/bedrock-agent-go/pkg/otel"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAPI struct {
	out    *bedrockruntime.ApplyGuardrailOutput
	err    error
	inputs []*bedrockruntime.ApplyGuardrailInput
}

func (f *fakeAPI) ApplyGuardrail(ctx context.Context, params *bedrockruntime.ApplyGuardrailInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ApplyGuardrailOutput, error) {
	f.inputs = append(f.inputs, params)
	return f.out, f.err
}

func TestBedrockGuardrail_CheckRequest(t *testing.T) {
	api := &fakeAPI{out: &bedrockruntime.ApplyGuardrailOutput{}}
	g := NewWithAPI(api, "gr-123")

	_, err := g.Check(context.Background(), "hello", SourceInput)
	require.NoError(t, err)
	require.Len(t, api.inputs, 1)

	in := api.inputs[0]
	assert.Equal(t, "gr-123", aws.ToString(in.GuardrailIdentifier))
	assert.Equal(t, DefaultVersion, aws.ToString(in.GuardrailVersion))
	assert.Equal(t, types.GuardrailContentSourceInput, in.Source)
	require.Len(t, in.Content, 1)
	text, ok := in.Content[0].(*types.GuardrailContentBlockMemberText)
	require.True(t, ok)
	assert.Equal(t, "hello", aws.ToString(text.Value.Text))
}

func TestBedrockGuardrail_Version(t *testing.T) {
	g := NewWithAPI(&fakeAPI{}, "gr", WithVersion("3"))
	assert.Equal(t, "3", g.Version())

	g = NewWithAPI(&fakeAPI{}, "gr", WithVersion(""))
	assert.Equal(t, DefaultVersion, g.Version())
}

func TestBedrockGuardrail_DefaultsToNone(t *testing.T) {
	g := NewWithAPI(&fakeAPI{out: &bedrockruntime.ApplyGuardrailOutput{}}, "gr")

	result, err := g.Check(context.Background(), "hi", SourceOutput)
	require.NoError(t, err)
	assert.Equal(t, ActionNone, result.Action)
	assert.False(t, result.Blocked)
	assert.Equal(t, "hi", result.FilteredText)
}

func TestBedrockGuardrail_FilteredText(t *testing.T) {
	out := &bedrockruntime.ApplyGuardrailOutput{
		Action:  types.GuardrailActionGuardrailIntervened,
		Outputs: []types.GuardrailOutputContent{{Text: aws.String("Sorry, I can't help with that.")}},
	}

	t.Run("output uses rewritten text", func(t *testing.T) {
		g := NewWithAPI(&fakeAPI{out: out}, "gr")
		result, err := g.Check(context.Background(), "bad words", SourceOutput)
		require.NoError(t, err)
		assert.True(t, result.Blocked)
		assert.Equal(t, ActionIntervened, result.Action)
		assert.Equal(t, "Sorry, I can't help with that.", result.FilteredText)
	})

	t.Run("input keeps original text", func(t *testing.T) {
		g := NewWithAPI(&fakeAPI{out: out}, "gr")
		result, err := g.Check(context.Background(), "bad words", SourceInput)
		require.NoError(t, err)
		assert.True(t, result.Blocked)
		assert.Equal(t, "bad words", result.FilteredText)
	})
}

func TestBedrockGuardrail_Assessments(t *testing.T) {
	out := &bedrockruntime.ApplyGuardrailOutput{
		Action: types.GuardrailActionGuardrailIntervened,
		Assessments: []types.GuardrailAssessment{{
			ContentPolicy: &types.GuardrailContentPolicyAssessment{
				Filters: []types.GuardrailContentFilter{{
					Type:       types.GuardrailContentFilterTypeViolence,
					Confidence: types.GuardrailContentFilterConfidenceHigh,
					Action:     types.GuardrailContentPolicyActionBlocked,
					Detected:   aws.Bool(true),
				}},
			},
			SensitiveInformationPolicy: &types.GuardrailSensitiveInformationPolicyAssessment{
				PiiEntities: []types.GuardrailPiiEntityFilter{{
					Type:   types.GuardrailPiiEntityTypeEmail,
					Match:  aws.String("a@b.com"),
					Action: types.GuardrailSensitiveInformationPolicyActionAnonymized,
				}},
				Regexes: []types.GuardrailRegexFilter{{
					Name:   aws.String("order-id"),
					Match:  aws.String("ORD-1"),
					Action: types.GuardrailSensitiveInformationPolicyActionBlocked,
				}},
			},
			TopicPolicy: &types.GuardrailTopicPolicyAssessment{
				Topics: []types.GuardrailTopic{{
					Name:   aws.String("investment"),
					Type:   types.GuardrailTopicTypeDeny,
					Action: types.GuardrailTopicPolicyActionBlocked,
				}},
			},
		}},
		Usage: &types.GuardrailUsage{
			ContentPolicyUnits:              aws.Int32(1),
			SensitiveInformationPolicyUnits: aws.Int32(2),
			TopicPolicyUnits:                aws.Int32(1),
			WordPolicyUnits:                 aws.Int32(0),
		},
	}
	g := NewWithAPI(&fakeAPI{out: out}, "gr")

	result, err := g.Check(context.Background(), "text", SourceInput)
	require.NoError(t, err)
	require.Len(t, result.Assessments, 1)

	a := result.Assessments[0]
	require.Len(t, a.ContentFilters, 1)
	assert.Equal(t, ContentFilter{Type: "VIOLENCE", Confidence: "HIGH", Action: "BLOCKED", Detected: true}, a.ContentFilters[0])
	assert.Equal(t, []PIIEntity{{Type: "EMAIL", Match: "a@b.com", Action: "ANONYMIZED"}}, a.PIIEntities)
	assert.Equal(t, []RegexMatch{{Name: "order-id", Match: "ORD-1", Action: "BLOCKED"}}, a.Regexes)
	assert.Equal(t, "investment", a.Topics[0].Name)

	assert.Equal(t, 1, result.Usage.ContentPolicyUnits)
	assert.Equal(t, 2, result.Usage.SensitiveInformationPolicyUnits)

	details := result.Details()
	require.Len(t, details, 4)
	assert.Equal(t, "Content filter: VIOLENCE (confidence: HIGH, detected: true)", details[0])
	assert.Contains(t, details[1], `PII: EMAIL = "a@b.com"`)
	assert.Contains(t, details[2], "Regex: order-id")
	assert.Equal(t, "Topic: investment (action: BLOCKED)", details[3])
}

func TestBedrockGuardrail_Error(t *testing.T) {
	metrics := otel.NewInMemoryMetrics()
	g := NewWithAPI(&fakeAPI{err: stderrors.New("throttled")}, "gr", WithMetrics(metrics))

	_, err := g.Check(context.Background(), "text", SourceInput)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrGuardrailFailed)
	assert.Contains(t, err.Error(), "throttled")
	assert.Equal(t, int64(0), metrics.GetCounterValue(otel.MetricGuardrailChecks))
	assert.Len(t, metrics.GetHistogramValues(otel.MetricGuardrailDuration), 1)
}

func TestBedrockGuardrail_NotConfigured(t *testing.T) {
	g := NewWithAPI(&fakeAPI{}, "")
	_, err := g.Check(context.Background(), "text", SourceInput)
	assert.ErrorIs(t, err, errors.ErrGuardrailNotConfigured)
}

func TestBedrockGuardrail_Metrics(t *testing.T) {
	metrics := otel.NewInMemoryMetrics()
	api := &fakeAPI{out: &bedrockruntime.ApplyGuardrailOutput{Action: types.GuardrailActionGuardrailIntervened}}
	g := NewWithAPI(api, "gr", WithMetrics(metrics))

	_, err := g.Check(context.Background(), "a", SourceInput)
	require.NoError(t, err)
	api.out = &bedrockruntime.ApplyGuardrailOutput{Action: types.GuardrailActionNone}
	_, err = g.Check(context.Background(), "b", SourceOutput)
	require.NoError(t, err)

	assert.Equal(t, int64(2), metrics.GetCounterValue(otel.MetricGuardrailChecks))
	assert.Equal(t, int64(1), metrics.GetCounterValue(otel.MetricGuardrailBlocks))
}

func TestParseSource(t *testing.T) {
	s, err := ParseSource("input")
	require.NoError(t, err)
	assert.Equal(t, SourceInput, s)

	s, err = ParseSource(" OUTPUT ")
	require.NoError(t, err)
	assert.Equal(t, SourceOutput, s)

	_, err = ParseSource("both")
	assert.Error(t, err)
}

func TestAssessment_WordDetails(t *testing.T) {
	a := Assessment{Words: []WordMatch{
		{Match: "foo", Action: "BLOCKED"},
		{Match: "bar", Action: "BLOCKED", Managed: true},
	}}
	assert.Equal(t, []string{
		`Word (custom): "foo" (action: BLOCKED)`,
		`Word (managed): "bar" (action: BLOCKED)`,
	}, a.Details())
}
