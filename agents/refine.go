package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/deepresearch/llm"
)

// RefineConfig configures the query refinement agent.
type RefineConfig struct {
	Model       string  `yaml:"model" env:"REFINE_MODEL"`
	Temperature float32 `yaml:"temperature" env:"REFINE_TEMPERATURE"`

	// MaxSubQueries caps how many sub-queries are kept from the model output.
	MaxSubQueries int `yaml:"max_sub_queries" env:"REFINE_MAX_SUB_QUERIES"`
}

// DefaultRefineConfig returns the default refinement settings.
func DefaultRefineConfig() RefineConfig {
	return RefineConfig{Temperature: 0.4, MaxSubQueries: 3}
}

// QueryRefinementAgent rewrites a raw query into a focused research query
// plus sub-queries for the research fan-out.
type QueryRefinementAgent struct {
	cfg      RefineConfig
	provider llm.Provider
	logger   *zap.Logger
}

// NewQueryRefinementAgent creates a refinement agent on top of provider.
func NewQueryRefinementAgent(cfg RefineConfig, provider llm.Provider, logger *zap.Logger) *QueryRefinementAgent {
	def := DefaultRefineConfig()
	if cfg.Temperature == 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.MaxSubQueries <= 0 {
		cfg.MaxSubQueries = def.MaxSubQueries
	}
	return &QueryRefinementAgent{
		cfg:      cfg,
		provider: provider,
		logger:   logger.With(zap.String("component", "query_refinement_agent")),
	}
}

const refineSystemPrompt = "You are a query optimization expert. Analyze the user's query and generate " +
	"improved versions with relevant sub-queries. Respond with one query per line and no other text; " +
	"the first line is the refined main query."

// Refine returns the refined query and sub-queries. The model answer is
// expected one query per line; the first line is the main query. An empty or
// unusable answer falls back to the original query.
func (a *QueryRefinementAgent) Refine(ctx context.Context, query string) (string, []string, error) {
	resp, err := a.provider.Completion(ctx, &llm.ChatRequest{
		Model: a.cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: refineSystemPrompt},
			{Role: llm.RoleUser, Content: fmt.Sprintf("Original query: %s\nPlease refine this query and generate relevant sub-queries.", query)},
		},
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		return "", nil, err
	}

	var lines []string
	for _, line := range strings.Split(resp.Content, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*0123456789. "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return query, nil, nil
	}

	refined := lines[0]
	subQueries := lines[1:]
	if len(subQueries) > a.cfg.MaxSubQueries {
		subQueries = subQueries[:a.cfg.MaxSubQueries]
	}

	a.logger.Debug("query refined",
		zap.String("original", query),
		zap.String("refined", refined),
		zap.Int("sub_queries", len(subQueries)),
	)
	return refined, subQueries, nil
}
