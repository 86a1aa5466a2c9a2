package policy

import (
	"fmt"
	"math"
	"regexp"
)

// Engine evaluates code compliance against policy profiles. It holds no
// per-session state and is safe for concurrent use.
type Engine struct{}

// NewEngine creates a new policy engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate checks the code against every rule in the profile, in rule order.
//
// A rule with an empty expression is skipped. A rule whose expression fails
// to compile yields a synthetic high-severity violation naming the rule, and
// evaluation of the remaining rules continues. The result is deterministic:
// identical inputs produce an identical violation list.
func (e *Engine) Evaluate(code string, profile *Profile) []Violation {
	violations := []Violation{}
	for _, rule := range profile.Rules {
		if rule.Expression == "" {
			continue
		}

		re, err := regexp.Compile("(?m)" + rule.Expression)
		if err != nil {
			violations = append(violations, Violation{
				RuleID:   rule.RuleID,
				RuleKey:  rule.RuleKey,
				Message:  fmt.Sprintf("invalid expression for rule %s: %s", rule.RuleKey, rule.Expression),
				Severity: SeverityHigh,
			})
			continue
		}

		if re.MatchString(code) {
			violations = append(violations, Violation{
				RuleID:   rule.RuleID,
				RuleKey:  rule.RuleKey,
				Message:  rule.Description,
				Severity: rule.Severity,
			})
		}
	}
	return violations
}

// ScoreCompliance returns a compliance score in [0, 100], rounded to two
// decimals. Zero rules scores 100: an empty rule set is vacuously satisfied.
// The score counts violations, not weighted severity; severity weighting is
// left to callers that need it.
func (e *Engine) ScoreCompliance(violations []Violation, totalRules int) float64 {
	if totalRules <= 0 {
		return 100.0
	}
	score := 100.0 - float64(len(violations))/float64(totalRules)*100.0
	if score < 0 {
		score = 0
	}
	return math.Round(score*100) / 100
}

// ScoreProfile evaluates the code against the profile and scores the result.
// It is a convenience adapter over Evaluate and ScoreCompliance.
func (e *Engine) ScoreProfile(code string, profile *Profile) float64 {
	return e.ScoreCompliance(e.Evaluate(code, profile), len(profile.Rules))
}
