package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/deepresearch/workflow"
)

// CitationAgent builds numbered references for the sources that actually
// contributed to the synthesis. It is deterministic and needs no model call.
type CitationAgent struct {
	logger *zap.Logger
}

// NewCitationAgent creates a citation agent.
func NewCitationAgent(logger *zap.Logger) *CitationAgent {
	return &CitationAgent{logger: logger.With(zap.String("component", "citation_agent"))}
}

// Cite formats one reference per synthesis source, in source order, pulling
// titles from the matching research results.
func (a *CitationAgent) Cite(ctx context.Context, synthesis *workflow.SynthesisResult, results []workflow.ResearchResult) (*workflow.CitationSet, error) {
	byURL := make(map[string]workflow.ResearchResult, len(results))
	for _, r := range results {
		if r.URL != "" {
			byURL[r.URL] = r
		}
	}

	set := &workflow.CitationSet{}
	for i, url := range synthesis.Sources {
		r, ok := byURL[url]
		title := r.Title
		source := r.Source
		if !ok || title == "" {
			title = "Untitled"
		}
		if source == "" {
			source = sourceOf(url)
		}

		set.Citations = append(set.Citations, workflow.Citation{
			Source:    source,
			URL:       url,
			Reference: formatReference(i+1, title, source, url),
		})
	}

	a.logger.Debug("citations built", zap.Int("citations", len(set.Citations)))
	return set, nil
}

func formatReference(n int, title, source, url string) string {
	title = strings.TrimSuffix(strings.TrimSpace(title), ".")
	return fmt.Sprintf("[%d] %s. %s. %s", n, title, source, url)
}
