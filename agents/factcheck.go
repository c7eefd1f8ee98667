package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/deepresearch/llm"
	"github.com/BaSui01/deepresearch/workflow"
)

// FactCheckConfig configures the fact checking agent.
type FactCheckConfig struct {
	Model       string  `yaml:"model" env:"FACTCHECK_MODEL"`
	Temperature float32 `yaml:"temperature" env:"FACTCHECK_TEMPERATURE"`
}

// DefaultFactCheckConfig returns the default fact checking settings.
func DefaultFactCheckConfig() FactCheckConfig {
	return FactCheckConfig{Temperature: 0.2}
}

// FactCheckAgent cross-checks the synthesized key points against the
// gathered sources with one completion call.
type FactCheckAgent struct {
	cfg      FactCheckConfig
	provider llm.Provider
	logger   *zap.Logger
}

// NewFactCheckAgent creates a fact checking agent on top of provider.
func NewFactCheckAgent(cfg FactCheckConfig, provider llm.Provider, logger *zap.Logger) *FactCheckAgent {
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultFactCheckConfig().Temperature
	}
	return &FactCheckAgent{
		cfg:      cfg,
		provider: provider,
		logger:   logger.With(zap.String("component", "fact_check_agent")),
	}
}

const factCheckSystemPrompt = "You are a precise fact-checking assistant. Verify each statement strictly " +
	"against the provided sources. Format your response EXACTLY as follows:\n\n" +
	"Verified:\n- [statement supported by the sources]\n\n" +
	"Disputed:\n- [statement not supported or contradicted]\n\n" +
	"Notes:\n[short assessment]"

// Check verifies the key points of synthesis against results.
func (a *FactCheckAgent) Check(ctx context.Context, synthesis *workflow.SynthesisResult, results []workflow.ResearchResult) (*workflow.FactCheckResult, error) {
	var b strings.Builder
	b.WriteString("Statements to verify:\n")
	for _, p := range synthesis.KeyPoints {
		fmt.Fprintf(&b, "- %s\n", p)
	}
	b.WriteString("\nSources:\n")
	for _, r := range results {
		fmt.Fprintf(&b, "[%s] %s\n", r.Source, r.Content)
	}

	resp, err := a.provider.Completion(ctx, &llm.ChatRequest{
		Model: a.cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: factCheckSystemPrompt},
			{Role: llm.RoleUser, Content: b.String()},
		},
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		return nil, err
	}

	result := parseFactCheckOutput(resp.Content)
	a.logger.Debug("fact check complete",
		zap.Int("verified", len(result.Verified)),
		zap.Int("disputed", len(result.Disputed)),
	)
	return result, nil
}

func parseFactCheckOutput(output string) *workflow.FactCheckResult {
	result := &workflow.FactCheckResult{}

	current := ""
	for _, section := range strings.Split(output, "\n\n") {
		section = strings.TrimSpace(section)
		switch {
		case strings.HasPrefix(section, "Verified:"):
			current = "verified"
			result.Verified = append(result.Verified, parseBullets(strings.TrimPrefix(section, "Verified:"))...)
		case strings.HasPrefix(section, "Disputed:"):
			current = "disputed"
			result.Disputed = append(result.Disputed, parseBullets(strings.TrimPrefix(section, "Disputed:"))...)
		case strings.HasPrefix(section, "Notes:"):
			current = ""
			result.Notes = strings.TrimSpace(strings.TrimPrefix(section, "Notes:"))
		case current == "verified" && section != "":
			result.Verified = append(result.Verified, parseBullets(section)...)
		case current == "disputed" && section != "":
			result.Disputed = append(result.Disputed, parseBullets(section)...)
		}
	}
	return result
}
