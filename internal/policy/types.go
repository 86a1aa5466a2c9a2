// Package policy evaluates code snippets against named policy profiles.
package policy

// Severity classifies how serious a rule violation is.
type Severity string

// Severity constants.
const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ParseSeverity normalizes a severity tag, falling back to medium for
// anything outside the closed set.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return Severity(s)
	default:
		return SeverityMedium
	}
}

// Rule is a single policy rule. Expression is a regular expression that must
// NOT match the submitted code; a match means the rule is violated.
type Rule struct {
	RuleID      string   `json:"rule_id"`
	RuleKey     string   `json:"rule_key"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Expression  string   `json:"expression"`
	Severity    Severity `json:"severity"`
	AutoFixable bool     `json:"auto_fixable"`
}

// Profile is a named, versioned set of rules used to judge one snippet.
type Profile struct {
	ProfileID string `json:"policy_profile_id"`
	Name      string `json:"name"`
	Domain    string `json:"domain"`
	Version   string `json:"version"`
	Rules     []Rule `json:"rules"`
}

// Violation records one rule matched against code.
type Violation struct {
	RuleID   string   `json:"rule_id"`
	RuleKey  string   `json:"rule_key"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}
