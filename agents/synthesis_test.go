package agents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/deepresearch/llm"
	"github.com/BaSui01/deepresearch/workflow"
)

// fakeProvider returns a canned completion.
type fakeProvider struct {
	content string
	err     error
	lastReq *llm.ChatRequest
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.content}, nil
}

func (f *fakeProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true, Latency: time.Millisecond}, nil
}

func researchFixture() []workflow.ResearchResult {
	return []workflow.ResearchResult{
		{Title: "A", URL: "https://example.org/a", Content: "content a", Source: "example.org", RelevanceScore: 0.9, ConfidenceScore: 0.9},
		{Title: "B", URL: "https://example.org/b", Content: "content b", Source: "example.org", RelevanceScore: 0.6, ConfidenceScore: 0.5},
	}
}

const wellFormedAnswer = `Summary:
Quantum computing uses qubits to perform computation.

It differs fundamentally from classical computing.

Key Points:
- Uses qubits
- Exploits superposition

Confidence Score: 0.8`

func TestSynthesize_ParsesStructuredAnswer(t *testing.T) {
	provider := &fakeProvider{content: wellFormedAnswer}
	agent := NewSynthesisAgent(SynthesisConfig{}, provider, zap.NewNop())

	result, err := agent.Synthesize(context.Background(), "what is quantum computing", researchFixture())
	require.NoError(t, err)

	assert.Contains(t, result.Summary, "Quantum computing uses qubits")
	assert.Contains(t, result.Summary, "differs fundamentally", "continuation paragraphs belong to the summary")
	assert.Equal(t, []string{"Uses qubits", "Exploits superposition"}, result.KeyPoints)
	assert.Equal(t, []string{"https://example.org/a", "https://example.org/b"}, result.Sources)
	assert.Greater(t, result.ConfidenceScore, 0.0)
	assert.LessOrEqual(t, result.ConfidenceScore, 1.0)

	require.NotNil(t, provider.lastReq)
	require.Len(t, provider.lastReq.Messages, 2)
	assert.Equal(t, llm.RoleSystem, provider.lastReq.Messages[0].Role)
	assert.Contains(t, provider.lastReq.Messages[1].Content, "what is quantum computing")
	assert.Contains(t, provider.lastReq.Messages[1].Content, "content a")
}

func TestSynthesize_ProviderError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("model overloaded")}
	agent := NewSynthesisAgent(SynthesisConfig{}, provider, zap.NewNop())

	_, err := agent.Synthesize(context.Background(), "q", researchFixture())
	require.Error(t, err)
}

func TestSynthesize_UnstructuredAnswerDegradesToSummary(t *testing.T) {
	provider := &fakeProvider{content: "Just a plain paragraph with no headings."}
	agent := NewSynthesisAgent(SynthesisConfig{}, provider, zap.NewNop())

	result, err := agent.Synthesize(context.Background(), "q", researchFixture())
	require.NoError(t, err)
	assert.Equal(t, "Just a plain paragraph with no headings.", result.Summary)
	assert.Empty(t, result.KeyPoints)
}

func TestSynthesize_MaxSourcesBound(t *testing.T) {
	provider := &fakeProvider{content: wellFormedAnswer}
	agent := NewSynthesisAgent(SynthesisConfig{MaxSources: 1}, provider, zap.NewNop())

	result, err := agent.Synthesize(context.Background(), "q", researchFixture())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.org/a"}, result.Sources)
	assert.NotContains(t, provider.lastReq.Messages[1].Content, "content b")
}

func TestParseSynthesisOutput_MissingConfidence(t *testing.T) {
	result := parseSynthesisOutput("Summary:\nShort answer.\n\nKey Points:\n- one")
	assert.Equal(t, "Short answer.", result.Summary)
	assert.Equal(t, []string{"one"}, result.KeyPoints)
	assert.Zero(t, result.ConfidenceScore)
}

func TestAdjustConfidence(t *testing.T) {
	// High-quality sources pull a mediocre self-assessment upward.
	high := []workflow.ResearchResult{{ConfidenceScore: 0.9, RelevanceScore: 0.9}}
	assert.InDelta(t, 0.5*0.7+1.0*0.3, adjustConfidence(0.5, high), 1e-9)

	// Zero self-assessment falls back to a neutral prior.
	assert.InDelta(t, 0.5*0.7+1.0*0.3, adjustConfidence(0, high), 1e-9)

	// No sources leaves the parsed score untouched.
	assert.InDelta(t, 0.4, adjustConfidence(0.4, nil), 1e-9)
}
