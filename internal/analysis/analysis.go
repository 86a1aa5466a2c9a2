// Package analysis provides lightweight structural heuristics for submitted code.
package analysis

import (
	"math"
	"regexp"
	"strings"
)

// controlKeywords are the markers counted by the complexity heuristic.
// The set and the formula below are part of the service contract: stored
// complexity deltas are only comparable across sessions if every node
// computes them identically.
//
//nolint:gochecknoglobals // fixed marker set shared by all estimator instances
var controlKeywords = []string{"if ", "for ", "while ", "def ", "class ", "try:", "with "}

// symbolPattern extracts declared symbol names for a language.
type symbolPattern struct {
	Functions *regexp.Regexp
	Classes   *regexp.Regexp
}

//nolint:gochecknoglobals // package-level pattern table, compiled once
var symbolPatterns = map[string]symbolPattern{
	"python": {
		Functions: regexp.MustCompile(`(?m)^\s*def\s+(\w+)`),
		Classes:   regexp.MustCompile(`(?m)^\s*class\s+(\w+)`),
	},
	"go": {
		Functions: regexp.MustCompile(`(?m)^func\s+(?:\([^)]+\)\s*)?(\w+)`),
		Classes:   regexp.MustCompile(`(?m)^type\s+(\w+)\s+(?:struct|interface)\b`),
	},
	"javascript": {
		Functions: regexp.MustCompile(`(?m)\bfunction\s+(\w+)`),
		Classes:   regexp.MustCompile(`(?m)\bclass\s+(\w+)`),
	},
	"typescript": {
		Functions: regexp.MustCompile(`(?m)\bfunction\s+(\w+)`),
		Classes:   regexp.MustCompile(`(?m)\bclass\s+(\w+)`),
	},
	"java": {
		Functions: regexp.MustCompile(`(?m)\b(?:public|private|protected|static|\s)+[\w<>\[\]]+\s+(\w+)\s*\(`),
		Classes:   regexp.MustCompile(`(?m)\bclass\s+(\w+)`),
	},
	"ruby": {
		Functions: regexp.MustCompile(`(?m)^\s*def\s+(\w+)`),
		Classes:   regexp.MustCompile(`(?m)^\s*class\s+(\w+)`),
	},
}

// Result contains structural facts about a code snippet.
type Result struct {
	Complexity    float64  `json:"complexity"`
	LineCount     int      `json:"line_count"`
	FunctionCount int      `json:"function_count"`
	ClassCount    int      `json:"class_count"`
	Functions     []string `json:"functions"`
	Classes       []string `json:"classes"`
}

// Empty returns the zero-valued analysis result used as the degradation
// fallback when analysis itself fails.
func Empty() *Result {
	return &Result{Functions: []string{}, Classes: []string{}}
}

// Service computes structural metrics for refactor sessions. It holds no
// per-session state and is safe for concurrent use.
type Service struct{}

// NewService creates a new analysis service.
func NewService() *Service {
	return &Service{}
}

// ComputeComplexity returns a naive complexity estimate based on non-blank
// line count and control-flow keyword density:
//
//	lines + log2(markers + 1)
//
// rounded to two decimals. Each marker counts at most once per line. This is
// deliberately not cyclomatic complexity; it is a cheap monotonic-in-size
// signal used for before/after deltas.
func (s *Service) ComputeComplexity(code string) float64 {
	lineCount := 0
	markerCount := 0
	for _, line := range strings.Split(code, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lineCount++
		for _, kw := range controlKeywords {
			if strings.Contains(line, kw) {
				markerCount++
			}
		}
	}
	return round2(float64(lineCount) + math.Log2(float64(markerCount)+1))
}

// SummarizeComplexity computes the complexity delta between an original and
// a refactored snippet. Negative means the refactor reduced complexity.
func (s *Service) SummarizeComplexity(original, refactored string) float64 {
	return round2(s.ComputeComplexity(refactored) - s.ComputeComplexity(original))
}

// Analyze computes structural facts for the snippet: complexity, line count,
// and declared function/class names for the given language.
func (s *Service) Analyze(code, language string) *Result {
	functions := extractSymbols(code, language, true)
	classes := extractSymbols(code, language, false)

	return &Result{
		Complexity:    s.ComputeComplexity(code),
		LineCount:     len(strings.Split(code, "\n")),
		FunctionCount: len(functions),
		ClassCount:    len(classes),
		Functions:     functions,
		Classes:       classes,
	}
}

func extractSymbols(code, language string, functions bool) []string {
	patterns, ok := symbolPatterns[strings.ToLower(language)]
	if !ok {
		return []string{}
	}

	re := patterns.Classes
	if functions {
		re = patterns.Functions
	}

	names := []string{}
	for _, match := range re.FindAllStringSubmatch(code, -1) {
		if len(match) > 1 && match[1] != "" {
			names = append(names, match[1])
		}
	}
	return names
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
