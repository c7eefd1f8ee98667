package workflow

// Step identifiers. StepEnd and StepFailed are terminal states, not runnable
// steps; the graph recognizes them by name.
const (
	StepQueryRefinement = "query_refinement"
	StepResearch        = "research"
	StepFactCheck       = "fact_check"
	StepDataAnalysis    = "data_analysis"
	StepCodeAnalysis    = "code_analysis"
	StepCitation        = "citation"
	StepSynthesis       = "synthesis"
	StepEnd             = "end"
	StepFailed          = "failed"
)

// ResearchResult is a single item gathered by the research step.
type ResearchResult struct {
	Title           string  `json:"title"`
	URL             string  `json:"url,omitempty"`
	Content         string  `json:"content"`
	Source          string  `json:"source,omitempty"`
	RelevanceScore  float64 `json:"relevance_score"`
	ConfidenceScore float64 `json:"confidence_score,omitempty"`
}

// SynthesisResult is the structured answer produced by the synthesis step.
type SynthesisResult struct {
	Summary         string   `json:"summary"`
	KeyPoints       []string `json:"key_points"`
	Sources         []string `json:"sources"`
	ConfidenceScore float64  `json:"confidence_score"`
}

// FactCheckResult holds the fact-checking verdicts for the gathered results.
type FactCheckResult struct {
	Verified []string `json:"verified,omitempty"`
	Disputed []string `json:"disputed,omitempty"`
	Notes    string   `json:"notes,omitempty"`
}

// DataPoint is a numerical value extracted from the gathered material,
// together with the text surrounding it.
type DataPoint struct {
	Value   string `json:"value"`
	Context string `json:"context"`
	Source  string `json:"source"`
}

// DataAnalysisResult is the output of the data analysis step.
type DataAnalysisResult struct {
	DataPoints []DataPoint `json:"data_points,omitempty"`
	Insights   []string    `json:"insights,omitempty"`
}

// CodeSnippet is a fenced code block found in the gathered material, with
// the explanation the code analysis step produced for it.
type CodeSnippet struct {
	Code        string `json:"code"`
	Language    string `json:"language"`
	Source      string `json:"source"`
	Explanation string `json:"explanation,omitempty"`
}

// CodeAnalysisResult is the output of the code analysis step.
type CodeAnalysisResult struct {
	Snippets     []CodeSnippet `json:"snippets,omitempty"`
	Explanations []string      `json:"explanations,omitempty"`
}

// Citation ties a claim back to its source.
type Citation struct {
	Source    string `json:"source"`
	URL       string `json:"url,omitempty"`
	Reference string `json:"reference"`
}

// CitationSet is the output of the citation step.
type CitationSet struct {
	Citations []Citation `json:"citations"`
}

// State is the record threaded through the pipeline. It is owned by a single
// run: steps mutate it in sequence, never concurrently. Query is immutable
// after creation; Errors is append-only and never cleared mid-run.
type State struct {
	Query           string              `json:"query"`
	RefinedQuery    string              `json:"refined_query,omitempty"`
	SubQueries      []string            `json:"sub_queries,omitempty"`
	ResearchResults []ResearchResult    `json:"research_results"`
	SynthesisResult *SynthesisResult    `json:"synthesis_result,omitempty"`
	FactCheckResult *FactCheckResult    `json:"fact_check_result,omitempty"`
	DataAnalysis    *DataAnalysisResult `json:"data_analysis_result,omitempty"`
	CodeAnalysis    *CodeAnalysisResult `json:"code_analysis_result,omitempty"`
	Citations       *CitationSet        `json:"citations,omitempty"`
	Errors          []string            `json:"errors"`
	CurrentStep     string              `json:"current_step"`
}

// NewState creates the initial state for a run.
func NewState(query string) *State {
	return &State{
		Query:           query,
		ResearchResults: make([]ResearchResult, 0),
		Errors:          make([]string, 0),
		CurrentStep:     StepResearch,
	}
}

// AddError appends a step error. Once any error is recorded the graph routes
// the run to StepFailed and no further step executes.
func (s *State) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

// Failed reports whether any step has recorded an error.
func (s *State) Failed() bool {
	return len(s.Errors) > 0
}

// EffectiveQuery returns the refined query when the refinement step produced
// one, otherwise the original query.
func (s *State) EffectiveQuery() string {
	if s.RefinedQuery != "" {
		return s.RefinedQuery
	}
	return s.Query
}
