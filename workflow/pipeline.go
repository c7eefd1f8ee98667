package workflow

import (
	"go.uber.org/zap"
)

// Agents bundles the collaborators a pipeline can be built from. Researcher
// and Synthesizer are mandatory; the rest are optional branches that are
// wired in only when present and enabled.
type Agents struct {
	QueryRefiner    QueryRefiner
	Researcher      Researcher
	Synthesizer     Synthesizer
	FactChecker     FactChecker
	DataAnalyzer    DataAnalyzer
	CodeAnalyzer    CodeAnalyzer
	CitationBuilder CitationBuilder
}

// PipelineConfig selects the optional branches.
type PipelineConfig struct {
	EnableQueryRefinement bool `yaml:"enable_query_refinement" env:"PIPELINE_ENABLE_QUERY_REFINEMENT"`
	EnableFactCheck       bool `yaml:"enable_fact_check" env:"PIPELINE_ENABLE_FACT_CHECK"`
	EnableDataAnalysis    bool `yaml:"enable_data_analysis" env:"PIPELINE_ENABLE_DATA_ANALYSIS"`
	EnableCodeAnalysis    bool `yaml:"enable_code_analysis" env:"PIPELINE_ENABLE_CODE_ANALYSIS"`
	EnableCitations       bool `yaml:"enable_citations" env:"PIPELINE_ENABLE_CITATIONS"`
}

// DefaultPipelineConfig enables every optional branch.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		EnableQueryRefinement: true,
		EnableFactCheck:       true,
		EnableDataAnalysis:    true,
		EnableCodeAnalysis:    true,
		EnableCitations:       true,
	}
}

// NewPipeline builds the research pipeline graph:
//
//	[query_refinement] -> research -> synthesis -> [fact_check] ->
//	    [data_analysis] -> [code_analysis] -> [citation] -> end
//
// Bracketed steps are optional. Research and synthesis route to the failed
// terminal when the state has accumulated errors; the optional downstream
// branches only ever run on a healthy state, so they route unconditionally.
func NewPipeline(agents Agents, cfg PipelineConfig, logger *zap.Logger) (*Graph, error) {
	g := NewGraph(logger)

	afterSynthesis := StepEnd
	if cfg.EnableCitations && agents.CitationBuilder != nil {
		g.AddStep(NewCitationStep(agents.CitationBuilder, logger))
		g.AddEdge(StepCitation, StepEnd, Always)
		afterSynthesis = StepCitation
	}
	if cfg.EnableCodeAnalysis && agents.CodeAnalyzer != nil {
		g.AddStep(NewCodeAnalysisStep(agents.CodeAnalyzer, logger))
		g.AddEdge(StepCodeAnalysis, afterSynthesis, Always)
		afterSynthesis = StepCodeAnalysis
	}
	if cfg.EnableDataAnalysis && agents.DataAnalyzer != nil {
		g.AddStep(NewDataAnalysisStep(agents.DataAnalyzer, logger))
		g.AddEdge(StepDataAnalysis, afterSynthesis, Always)
		afterSynthesis = StepDataAnalysis
	}
	if cfg.EnableFactCheck && agents.FactChecker != nil {
		g.AddStep(NewFactCheckStep(agents.FactChecker, logger))
		g.AddEdge(StepFactCheck, afterSynthesis, Always)
		afterSynthesis = StepFactCheck
	}

	g.AddStep(NewResearchStep(agents.Researcher, logger))
	g.AddStep(NewSynthesisStep(agents.Synthesizer, logger))
	g.AddEdge(StepResearch, StepSynthesis, WhenHealthy)
	g.AddEdge(StepResearch, StepFailed, Always)
	g.AddEdge(StepSynthesis, afterSynthesis, WhenHealthy)
	g.AddEdge(StepSynthesis, StepFailed, Always)

	if cfg.EnableQueryRefinement && agents.QueryRefiner != nil {
		g.AddStep(NewQueryRefinementStep(agents.QueryRefiner, logger))
		g.AddEdge(StepQueryRefinement, StepResearch, Always)
		g.SetEntry(StepQueryRefinement)
	} else {
		g.SetEntry(StepResearch)
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
