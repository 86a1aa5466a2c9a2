package workflow

import (
	"github.com/antinvestor/codecraft/internal/analysis"
	"github.com/antinvestor/codecraft/internal/policy"
)

// Suggestion is one proposed change within the refactored code.
type Suggestion struct {
	LineStart  int     `json:"line_start"`
	LineEnd    int     `json:"line_end"`
	Original   string  `json:"original"`
	Proposed   string  `json:"proposed"`
	Rationale  string  `json:"rationale"`
	Confidence float64 `json:"confidence"`
}

// ValidationResult summarizes the post-refactor validation checks.
type ValidationResult struct {
	Parseable            bool    `json:"parseable"`
	ViolationsBefore     int     `json:"violations_before"`
	ViolationsAfter      int     `json:"violations_after"`
	ViolationsFixed      int     `json:"violations_fixed"`
	ViolationsIntroduced int     `json:"violations_introduced"`
	Improved             bool    `json:"improved"`
	TestPassRate         float64 `json:"test_pass_rate"`
	ComplexityDelta      float64 `json:"complexity_delta"`
}

// ExecutionContext accumulates the artifacts each step produces so later
// steps can read what earlier steps wrote. It is the single source of
// truth handed to persistence at the end of the run.
type ExecutionContext struct {
	OriginalCode string
	FilePath     string
	ProfileID    string
	Language     string

	Analysis        *analysis.Result
	Violations      []policy.Violation
	ComplianceScore float64
	Suggestions     []Suggestion
	Validation      *ValidationResult
	Metrics         map[string]float64

	refactoredCode string
}

// NewExecutionContext creates a context seeded with the submission.
func NewExecutionContext(code, language, filePath, profileID string) *ExecutionContext {
	return &ExecutionContext{
		OriginalCode: code,
		Language:     language,
		FilePath:     filePath,
		ProfileID:    profileID,
		Suggestions:  []Suggestion{},
		Metrics:      make(map[string]float64),
	}
}

// SetRefactoredCode records the current rewrite.
func (c *ExecutionContext) SetRefactoredCode(code string) {
	c.refactoredCode = code
}

// RefactoredCode never returns an empty value: whenever no refactor
// output exists it falls back to the original code.
func (c *ExecutionContext) RefactoredCode() string {
	if c.refactoredCode == "" {
		return c.OriginalCode
	}
	return c.refactoredCode
}
