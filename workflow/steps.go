package workflow

import (
	"context"
	"fmt"

	"github.com/BaSui01/deepresearch/types"
	"go.uber.org/zap"
)

// Collaborator interfaces for the pipeline steps. Declared here, on the
// consumer side, so the agents package can implement them without the
// workflow package importing it.

// QueryRefiner rewrites a raw query into a focused research query and
// optional sub-queries.
type QueryRefiner interface {
	Refine(ctx context.Context, query string) (refined string, subQueries []string, err error)
}

// Researcher gathers source material for a query.
type Researcher interface {
	Research(ctx context.Context, query string, subQueries []string) ([]ResearchResult, error)
}

// Synthesizer condenses research results into a structured answer.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, results []ResearchResult) (*SynthesisResult, error)
}

// FactChecker cross-checks the synthesized key points against the sources.
type FactChecker interface {
	Check(ctx context.Context, synthesis *SynthesisResult, results []ResearchResult) (*FactCheckResult, error)
}

// DataAnalyzer extracts numerical data from the gathered material and
// derives insights from it.
type DataAnalyzer interface {
	AnalyzeData(ctx context.Context, query string, results []ResearchResult) (*DataAnalysisResult, error)
}

// CodeAnalyzer finds code snippets in the gathered material and explains
// them in the context of the query.
type CodeAnalyzer interface {
	AnalyzeCode(ctx context.Context, query string, results []ResearchResult) (*CodeAnalysisResult, error)
}

// CitationBuilder attaches formatted citations to the synthesized answer.
type CitationBuilder interface {
	Cite(ctx context.Context, synthesis *SynthesisResult, results []ResearchResult) (*CitationSet, error)
}

// QueryRefinementStep runs the optional query-refinement branch. A refiner
// failure is non-fatal: research falls back to the original query.
type QueryRefinementStep struct {
	refiner QueryRefiner
	logger  *zap.Logger
}

func NewQueryRefinementStep(refiner QueryRefiner, logger *zap.Logger) *QueryRefinementStep {
	return &QueryRefinementStep{
		refiner: refiner,
		logger:  logger.With(zap.String("step", StepQueryRefinement)),
	}
}

func (s *QueryRefinementStep) Name() string { return StepQueryRefinement }

func (s *QueryRefinementStep) Run(ctx context.Context, state *State) error {
	refined, subQueries, err := s.refiner.Refine(ctx, state.Query)
	if err != nil {
		s.logger.Warn("query refinement failed, using original query", zap.Error(err))
		return nil
	}
	state.RefinedQuery = refined
	state.SubQueries = subQueries
	s.logger.Debug("query refined",
		zap.String("refined", refined),
		zap.Int("sub_queries", len(subQueries)),
	)
	return nil
}

// ResearchStep gathers source material. Upstream failures and empty result
// sets are recorded on the state so edge conditions route the pipeline to
// the failed terminal instead of synthesis.
type ResearchStep struct {
	researcher Researcher
	logger     *zap.Logger
}

func NewResearchStep(researcher Researcher, logger *zap.Logger) *ResearchStep {
	return &ResearchStep{
		researcher: researcher,
		logger:     logger.With(zap.String("step", StepResearch)),
	}
}

func (s *ResearchStep) Name() string { return StepResearch }

func (s *ResearchStep) Run(ctx context.Context, state *State) error {
	results, err := s.researcher.Research(ctx, state.EffectiveQuery(), state.SubQueries)
	if err != nil {
		state.AddError(fmt.Sprintf("Error in research step: %s", err.Error()))
		s.logger.Warn("research failed", zap.Error(err))
		return nil
	}
	if len(results) == 0 {
		state.AddError("No research results found")
		s.logger.Warn("research returned no results", zap.String("query", state.EffectiveQuery()))
		return nil
	}
	state.ResearchResults = results
	s.logger.Debug("research complete", zap.Int("results", len(results)))
	return nil
}

// SynthesisStep condenses the gathered material. Invoking it without research
// results is a wiring bug in the graph, not a runtime condition, and aborts
// the run.
type SynthesisStep struct {
	synthesizer Synthesizer
	logger      *zap.Logger
}

func NewSynthesisStep(synthesizer Synthesizer, logger *zap.Logger) *SynthesisStep {
	return &SynthesisStep{
		synthesizer: synthesizer,
		logger:      logger.With(zap.String("step", StepSynthesis)),
	}
}

func (s *SynthesisStep) Name() string { return StepSynthesis }

func (s *SynthesisStep) Run(ctx context.Context, state *State) error {
	if len(state.ResearchResults) == 0 {
		return types.NewError(types.ErrInternalError,
			"synthesis step invoked without research results")
	}
	result, err := s.synthesizer.Synthesize(ctx, state.EffectiveQuery(), state.ResearchResults)
	if err != nil {
		state.AddError(fmt.Sprintf("Error in synthesis step: %s", err.Error()))
		s.logger.Warn("synthesis failed", zap.Error(err))
		return nil
	}
	state.SynthesisResult = result
	s.logger.Debug("synthesis complete",
		zap.Int("key_points", len(result.KeyPoints)),
		zap.Float64("confidence", result.ConfidenceScore),
	)
	return nil
}

// FactCheckStep runs the optional verification branch. Failures are
// non-fatal: the synthesized answer stands without verification notes.
type FactCheckStep struct {
	checker FactChecker
	logger  *zap.Logger
}

func NewFactCheckStep(checker FactChecker, logger *zap.Logger) *FactCheckStep {
	return &FactCheckStep{
		checker: checker,
		logger:  logger.With(zap.String("step", StepFactCheck)),
	}
}

func (s *FactCheckStep) Name() string { return StepFactCheck }

func (s *FactCheckStep) Run(ctx context.Context, state *State) error {
	if state.SynthesisResult == nil {
		return types.NewError(types.ErrInternalError,
			"fact check step invoked without a synthesis result")
	}
	result, err := s.checker.Check(ctx, state.SynthesisResult, state.ResearchResults)
	if err != nil {
		s.logger.Warn("fact check failed, keeping unverified answer", zap.Error(err))
		return nil
	}
	state.FactCheckResult = result
	s.logger.Debug("fact check complete",
		zap.Int("verified", len(result.Verified)),
		zap.Int("disputed", len(result.Disputed)),
	)
	return nil
}

// DataAnalysisStep runs the optional numerical analysis branch. Failures
// are non-fatal: the answer stands without the extracted data.
type DataAnalysisStep struct {
	analyzer DataAnalyzer
	logger   *zap.Logger
}

func NewDataAnalysisStep(analyzer DataAnalyzer, logger *zap.Logger) *DataAnalysisStep {
	return &DataAnalysisStep{
		analyzer: analyzer,
		logger:   logger.With(zap.String("step", StepDataAnalysis)),
	}
}

func (s *DataAnalysisStep) Name() string { return StepDataAnalysis }

func (s *DataAnalysisStep) Run(ctx context.Context, state *State) error {
	if len(state.ResearchResults) == 0 {
		return types.NewError(types.ErrInternalError,
			"data analysis step invoked without research results")
	}
	result, err := s.analyzer.AnalyzeData(ctx, state.EffectiveQuery(), state.ResearchResults)
	if err != nil {
		s.logger.Warn("data analysis failed, keeping answer without it", zap.Error(err))
		return nil
	}
	state.DataAnalysis = result
	s.logger.Debug("data analysis complete",
		zap.Int("data_points", len(result.DataPoints)),
		zap.Int("insights", len(result.Insights)),
	)
	return nil
}

// CodeAnalysisStep runs the optional code analysis branch. Failures are
// non-fatal.
type CodeAnalysisStep struct {
	analyzer CodeAnalyzer
	logger   *zap.Logger
}

func NewCodeAnalysisStep(analyzer CodeAnalyzer, logger *zap.Logger) *CodeAnalysisStep {
	return &CodeAnalysisStep{
		analyzer: analyzer,
		logger:   logger.With(zap.String("step", StepCodeAnalysis)),
	}
}

func (s *CodeAnalysisStep) Name() string { return StepCodeAnalysis }

func (s *CodeAnalysisStep) Run(ctx context.Context, state *State) error {
	if len(state.ResearchResults) == 0 {
		return types.NewError(types.ErrInternalError,
			"code analysis step invoked without research results")
	}
	result, err := s.analyzer.AnalyzeCode(ctx, state.EffectiveQuery(), state.ResearchResults)
	if err != nil {
		s.logger.Warn("code analysis failed, keeping answer without it", zap.Error(err))
		return nil
	}
	state.CodeAnalysis = result
	s.logger.Debug("code analysis complete", zap.Int("snippets", len(result.Snippets)))
	return nil
}

// CitationStep runs the optional citation branch. Failures are non-fatal.
type CitationStep struct {
	builder CitationBuilder
	logger  *zap.Logger
}

func NewCitationStep(builder CitationBuilder, logger *zap.Logger) *CitationStep {
	return &CitationStep{
		builder: builder,
		logger:  logger.With(zap.String("step", StepCitation)),
	}
}

func (s *CitationStep) Name() string { return StepCitation }

func (s *CitationStep) Run(ctx context.Context, state *State) error {
	if state.SynthesisResult == nil {
		return types.NewError(types.ErrInternalError,
			"citation step invoked without a synthesis result")
	}
	set, err := s.builder.Cite(ctx, state.SynthesisResult, state.ResearchResults)
	if err != nil {
		s.logger.Warn("citation building failed", zap.Error(err))
		return nil
	}
	state.Citations = set
	s.logger.Debug("citations built", zap.Int("citations", len(set.Citations)))
	return nil
}
