package agents

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/deepresearch/llm"
	"github.com/BaSui01/deepresearch/workflow"
)

// SynthesisConfig configures the synthesis agent.
type SynthesisConfig struct {
	Model       string  `yaml:"model" env:"SYNTHESIS_MODEL"`
	MaxTokens   int     `yaml:"max_tokens" env:"SYNTHESIS_MAX_TOKENS"`
	Temperature float32 `yaml:"temperature" env:"SYNTHESIS_TEMPERATURE"`

	// MaxSources bounds how many results are fed into the prompt, highest
	// confidence first.
	MaxSources int `yaml:"max_sources" env:"SYNTHESIS_MAX_SOURCES"`
}

// DefaultSynthesisConfig returns the default synthesis settings.
func DefaultSynthesisConfig() SynthesisConfig {
	return SynthesisConfig{
		MaxTokens:   1000,
		Temperature: 0.3,
		MaxSources:  8,
	}
}

// SynthesisAgent condenses research results into a structured answer with
// one chat completion call.
type SynthesisAgent struct {
	cfg      SynthesisConfig
	provider llm.Provider
	logger   *zap.Logger
}

// NewSynthesisAgent creates a synthesis agent on top of provider.
func NewSynthesisAgent(cfg SynthesisConfig, provider llm.Provider, logger *zap.Logger) *SynthesisAgent {
	def := DefaultSynthesisConfig()
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = def.MaxSources
	}
	return &SynthesisAgent{
		cfg:      cfg,
		provider: provider,
		logger:   logger.With(zap.String("component", "synthesis_agent")),
	}
}

const synthesisSystemPrompt = "You are a helpful assistant that synthesizes information into clear and concise summaries. " +
	"Your goal is to provide accurate, well-structured responses that directly answer the user's query. " +
	"Prioritize information from high-confidence, authoritative sources while still considering all available data."

// Synthesize builds the prompt from the highest-confidence results, runs the
// completion and parses the structured sections out of the answer.
func (a *SynthesisAgent) Synthesize(ctx context.Context, query string, results []workflow.ResearchResult) (*workflow.SynthesisResult, error) {
	selected := results
	if len(selected) > a.cfg.MaxSources {
		selected = selected[:a.cfg.MaxSources]
	}

	resp, err := a.provider.Completion(ctx, &llm.ChatRequest{
		Model: a.cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: synthesisSystemPrompt},
			{Role: llm.RoleUser, Content: buildSynthesisPrompt(query, selected)},
		},
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		return nil, err
	}

	parsed := parseSynthesisOutput(resp.Content)
	parsed.Sources = collectSources(selected)
	parsed.ConfidenceScore = adjustConfidence(parsed.ConfidenceScore, selected)

	a.logger.Info("synthesis complete",
		zap.String("query", query),
		zap.Int("key_points", len(parsed.KeyPoints)),
		zap.Float64("confidence", parsed.ConfidenceScore),
	)
	return parsed, nil
}

func buildSynthesisPrompt(query string, results []workflow.ResearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Based on the following research results, provide a comprehensive answer to the query: %s\n\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "Result %d (source: %s, confidence: %.2f):\n%s\n\n", i+1, r.Source, r.ConfidenceScore, r.Content)
	}
	b.WriteString("Format your response EXACTLY as follows (keep the exact headings and structure):\n\n" +
		"Summary:\n[A clear, focused summary that directly answers the query in 2-3 paragraphs.]\n\n" +
		"Key Points:\n- [Finding 1]\n- [Finding 2]\n- [Additional relevant finding]\n\n" +
		"Confidence Score: [0-1]")
	return b.String()
}

// parseSynthesisOutput extracts the Summary, Key Points and Confidence Score
// sections. Unparseable output degrades to a summary-only result.
func parseSynthesisOutput(output string) *workflow.SynthesisResult {
	result := &workflow.SynthesisResult{}

	sections := strings.Split(output, "\n\n")
	current := ""
	for _, section := range sections {
		section = strings.TrimSpace(section)
		switch {
		case strings.HasPrefix(section, "Summary:"):
			current = "summary"
			result.Summary = strings.TrimSpace(strings.TrimPrefix(section, "Summary:"))
		case strings.HasPrefix(section, "Key Points:"):
			current = "key_points"
			result.KeyPoints = append(result.KeyPoints, parseBullets(strings.TrimPrefix(section, "Key Points:"))...)
		case strings.HasPrefix(section, "Confidence Score:"):
			current = ""
			raw := strings.TrimSpace(strings.TrimPrefix(section, "Confidence Score:"))
			if fields := strings.Fields(raw); len(fields) > 0 {
				if score, err := strconv.ParseFloat(fields[0], 64); err == nil {
					result.ConfidenceScore = clamp(score)
				}
			}
		case current == "summary" && section != "":
			result.Summary += "\n" + section
		case current == "key_points" && section != "":
			result.KeyPoints = append(result.KeyPoints, parseBullets(section)...)
		}
	}

	result.Summary = strings.TrimSpace(result.Summary)
	if result.Summary == "" && len(result.KeyPoints) == 0 {
		result.Summary = strings.TrimSpace(output)
	}
	return result
}

func parseBullets(block string) []string {
	var points []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-* "))
		if line != "" {
			points = append(points, line)
		}
	}
	return points
}

// collectSources deduplicates result URLs in confidence order.
func collectSources(results []workflow.ResearchResult) []string {
	seen := make(map[string]bool)
	var sources []string
	for _, r := range results {
		if r.URL == "" || seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		sources = append(sources, r.URL)
	}
	return sources
}

// adjustConfidence blends the model's self-assessment with the quality of
// the underlying sources.
func adjustConfidence(parsed float64, results []workflow.ResearchResult) float64 {
	if len(results) == 0 {
		return clamp(parsed)
	}

	var quality float64
	for _, r := range results {
		importance := r.ConfidenceScore*0.5 + r.RelevanceScore*0.5
		switch {
		case importance > 0.7:
			quality += 1.0
		case importance > 0.4:
			quality += 0.6
		default:
			quality += 0.3
		}
	}
	quality /= float64(len(results))

	if parsed == 0 {
		parsed = 0.5
	}
	return clamp(parsed*0.7 + quality*0.3)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
