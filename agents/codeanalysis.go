package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/deepresearch/llm"
	"github.com/BaSui01/deepresearch/workflow"
)

// CodeAnalysisConfig configures the code analysis agent.
type CodeAnalysisConfig struct {
	Model       string  `yaml:"model" env:"CODE_ANALYSIS_MODEL"`
	Temperature float32 `yaml:"temperature" env:"CODE_ANALYSIS_TEMPERATURE"`
	// MaxSnippets caps how many extracted blocks are explained per run;
	// one model call is made per snippet.
	MaxSnippets int `yaml:"max_snippets" env:"CODE_ANALYSIS_MAX_SNIPPETS"`
}

// DefaultCodeAnalysisConfig returns the default code analysis settings.
func DefaultCodeAnalysisConfig() CodeAnalysisConfig {
	return CodeAnalysisConfig{Temperature: 0.2, MaxSnippets: 5}
}

// fencedCodeBlockPattern matches markdown fenced code blocks with an
// optional language tag.
var fencedCodeBlockPattern = regexp.MustCompile("(?s)```(\\w+)?\n(.*?)\n```")

// CodeAnalysisAgent finds fenced code blocks in the gathered material and
// asks the model to explain each one in the context of the query.
type CodeAnalysisAgent struct {
	cfg      CodeAnalysisConfig
	provider llm.Provider
	logger   *zap.Logger
}

// NewCodeAnalysisAgent creates a code analysis agent on top of provider.
func NewCodeAnalysisAgent(cfg CodeAnalysisConfig, provider llm.Provider, logger *zap.Logger) *CodeAnalysisAgent {
	def := DefaultCodeAnalysisConfig()
	if cfg.Temperature == 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.MaxSnippets <= 0 {
		cfg.MaxSnippets = def.MaxSnippets
	}
	return &CodeAnalysisAgent{
		cfg:      cfg,
		provider: provider,
		logger:   logger.With(zap.String("component", "code_analysis_agent")),
	}
}

const codeAnalysisSystemPrompt = "You are a code analysis expert. Analyze code snippets, provide " +
	"explanations, and suggest improvements."

// AnalyzeCode extracts code snippets from results and explains each with a
// completion call. Material without any code yields an empty result without
// calling the model.
func (a *CodeAnalysisAgent) AnalyzeCode(ctx context.Context, query string, results []workflow.ResearchResult) (*workflow.CodeAnalysisResult, error) {
	snippets := extractCodeSnippets(results, a.cfg.MaxSnippets)
	if len(snippets) == 0 {
		a.logger.Debug("no code snippets found", zap.String("query", query))
		return &workflow.CodeAnalysisResult{}, nil
	}

	result := &workflow.CodeAnalysisResult{}
	for _, snippet := range snippets {
		resp, err := a.provider.Completion(ctx, &llm.ChatRequest{
			Model: a.cfg.Model,
			Messages: []llm.Message{
				{Role: llm.RoleSystem, Content: codeAnalysisSystemPrompt},
				{Role: llm.RoleUser, Content: fmt.Sprintf("Code to analyze: %s\nContext: %s", snippet.Code, query)},
			},
			Temperature: a.cfg.Temperature,
		})
		if err != nil {
			return nil, err
		}

		snippet.Explanation = strings.TrimSpace(resp.Content)
		result.Snippets = append(result.Snippets, snippet)
		if snippet.Explanation != "" {
			result.Explanations = append(result.Explanations, snippet.Explanation)
		}
	}

	a.logger.Debug("code analysis complete", zap.Int("snippets", len(result.Snippets)))
	return result, nil
}

// extractCodeSnippets collects up to max fenced blocks across the results.
func extractCodeSnippets(results []workflow.ResearchResult, max int) []workflow.CodeSnippet {
	var snippets []workflow.CodeSnippet
	for _, r := range results {
		source := r.Source
		if source == "" {
			source = "research_results"
		}
		for _, m := range fencedCodeBlockPattern.FindAllStringSubmatch(r.Content, -1) {
			if len(snippets) >= max {
				return snippets
			}
			language := m[1]
			if language == "" {
				language = "unknown"
			}
			snippets = append(snippets, workflow.CodeSnippet{
				Code:     strings.TrimSpace(m[2]),
				Language: language,
				Source:   source,
			})
		}
	}
	return snippets
}
