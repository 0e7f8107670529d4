package domain

// Section names produced by the analysis engine for every document.
const (
	SectionExplanation = "explanation"
	SectionEvaluation  = "evaluation"
	SectionFlashcards  = "flashcards"
	SectionSummary     = "summary"
)

// AnalysisSections lists the sections every completed analysis carries,
// in presentation order.
var AnalysisSections = []string{
	SectionExplanation,
	SectionEvaluation,
	SectionFlashcards,
	SectionSummary,
}

// AnalysisResult is the output of one document analysis: a named set of
// generated text sections.
type AnalysisResult struct {
	Sections map[string]string `json:"sections"`
}

// Usage captures the resources consumed by one successful analysis.
type Usage struct {
	TokenCount int `json:"token_count"`
}

// Outcome is the terminal report of a job: either a result with usage
// metadata, or an error message. Exactly one side is populated.
type Outcome struct {
	Result *AnalysisResult `json:"result,omitempty"`
	Usage  *Usage          `json:"usage,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Failed reports whether the outcome represents a job failure.
func (o Outcome) Failed() bool {
	return o.Error != ""
}
