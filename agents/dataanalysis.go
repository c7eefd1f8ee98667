package agents

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/deepresearch/llm"
	"github.com/BaSui01/deepresearch/workflow"
)

// DataAnalysisConfig configures the data analysis agent.
type DataAnalysisConfig struct {
	Model       string  `yaml:"model" env:"DATA_ANALYSIS_MODEL"`
	Temperature float32 `yaml:"temperature" env:"DATA_ANALYSIS_TEMPERATURE"`
	// MaxDataPoints caps how many extracted values are kept per run.
	MaxDataPoints int `yaml:"max_data_points" env:"DATA_ANALYSIS_MAX_DATA_POINTS"`
}

// DefaultDataAnalysisConfig returns the default data analysis settings.
func DefaultDataAnalysisConfig() DataAnalysisConfig {
	return DataAnalysisConfig{Temperature: 0.3, MaxDataPoints: 50}
}

// numericValuePattern matches plain numbers, decimals and percent or
// magnitude suffixed figures like "42%", "3.5 million".
var numericValuePattern = regexp.MustCompile(`\d+(?:\.\d+)?(?:\s*%|\s*million|\s*billion)?`)

// dataPointContextBytes is how much surrounding text is kept on each side
// of an extracted value.
const dataPointContextBytes = 50

// DataAnalysisAgent extracts numerical figures from the gathered material
// and asks the model to derive trends and insights from them.
type DataAnalysisAgent struct {
	cfg      DataAnalysisConfig
	provider llm.Provider
	logger   *zap.Logger
}

// NewDataAnalysisAgent creates a data analysis agent on top of provider.
func NewDataAnalysisAgent(cfg DataAnalysisConfig, provider llm.Provider, logger *zap.Logger) *DataAnalysisAgent {
	def := DefaultDataAnalysisConfig()
	if cfg.Temperature == 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.MaxDataPoints <= 0 {
		cfg.MaxDataPoints = def.MaxDataPoints
	}
	return &DataAnalysisAgent{
		cfg:      cfg,
		provider: provider,
		logger:   logger.With(zap.String("component", "data_analysis_agent")),
	}
}

const dataAnalysisSystemPrompt = "You are a data analysis expert. Extract and analyze numerical data " +
	"from the provided text, identify trends, and generate insights. Answer with one insight per line, " +
	"each starting with \"- \"."

// AnalyzeData extracts numerical data points from results and derives
// insights with one completion call. Material without any numerical data
// yields an empty result without calling the model.
func (a *DataAnalysisAgent) AnalyzeData(ctx context.Context, query string, results []workflow.ResearchResult) (*workflow.DataAnalysisResult, error) {
	points := a.extractDataPoints(results)
	if len(points) == 0 {
		a.logger.Debug("no numerical data found", zap.String("query", query))
		return &workflow.DataAnalysisResult{}, nil
	}

	var b strings.Builder
	for _, r := range results {
		b.WriteString(r.Content)
		b.WriteString("\n")
	}

	resp, err := a.provider.Completion(ctx, &llm.ChatRequest{
		Model: a.cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: dataAnalysisSystemPrompt},
			{Role: llm.RoleUser, Content: "Text to analyze: " + b.String()},
		},
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		return nil, err
	}

	insights := parseBullets(resp.Content)
	if len(insights) == 0 && strings.TrimSpace(resp.Content) != "" {
		insights = []string{strings.TrimSpace(resp.Content)}
	}

	a.logger.Debug("data analysis complete",
		zap.Int("data_points", len(points)),
		zap.Int("insights", len(insights)),
	)
	return &workflow.DataAnalysisResult{DataPoints: points, Insights: insights}, nil
}

// extractDataPoints scans every result for numerical values and records
// each with the text surrounding it.
func (a *DataAnalysisAgent) extractDataPoints(results []workflow.ResearchResult) []workflow.DataPoint {
	var points []workflow.DataPoint
	for _, r := range results {
		source := r.Source
		if source == "" {
			source = "text"
		}
		for _, loc := range numericValuePattern.FindAllStringIndex(r.Content, -1) {
			if len(points) >= a.cfg.MaxDataPoints {
				return points
			}
			points = append(points, workflow.DataPoint{
				Value:   r.Content[loc[0]:loc[1]],
				Context: surroundingText(r.Content, loc[0], loc[1]),
				Source:  source,
			})
		}
	}
	return points
}

// surroundingText returns the text around [start,end), clipped to rune
// boundaries so a window never splits a multi-byte character.
func surroundingText(text string, start, end int) string {
	lo := start - dataPointContextBytes
	if lo < 0 {
		lo = 0
	}
	hi := end + dataPointContextBytes
	if hi > len(text) {
		hi = len(text)
	}
	for lo > 0 && !utf8RuneStart(text[lo]) {
		lo--
	}
	for hi < len(text) && !utf8RuneStart(text[hi]) {
		hi++
	}
	return strings.TrimSpace(text[lo:hi])
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
