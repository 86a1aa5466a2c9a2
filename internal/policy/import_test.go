package policy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const yamlDocument = `
profile:
  name: Security Baseline
  domain: security
  version: 2.1.0
rules:
  - rule_key: no-eval
    description: eval is forbidden
    category: security
    expression: 'eval\('
    severity: high
    auto_fixable: true
  - key: no-tabs
    expression: "\t"
`

func TestParseDocument_YAML(t *testing.T) {
	profile, err := ParseDocument(yamlDocument, ImportOverrides{})
	require.NoError(t, err)

	require.NotEmpty(t, profile.ProfileID)
	require.Equal(t, "Security Baseline", profile.Name)
	require.Equal(t, "security", profile.Domain)
	require.Equal(t, "2.1.0", profile.Version)
	require.Len(t, profile.Rules, 2)

	require.Equal(t, "no-eval", profile.Rules[0].RuleKey)
	require.Equal(t, SeverityHigh, profile.Rules[0].Severity)
	require.True(t, profile.Rules[0].AutoFixable)

	// Legacy "key" alias and defaults.
	require.Equal(t, "no-tabs", profile.Rules[1].RuleKey)
	require.Equal(t, "No description provided", profile.Rules[1].Description)
	require.Equal(t, "style", profile.Rules[1].Category)
	require.Equal(t, SeverityMedium, profile.Rules[1].Severity)
}

func TestParseDocument_JSON(t *testing.T) {
	document := `{
		"profile": {"policy_profile_id": "fixed-id", "name": "JSON Policy"},
		"rules": [{"rule_key": "no-print", "expression": "print\\("}]
	}`

	profile, err := ParseDocument(document, ImportOverrides{})
	require.NoError(t, err)
	require.Equal(t, "fixed-id", profile.ProfileID)
	require.Equal(t, "JSON Policy", profile.Name)
	require.Len(t, profile.Rules, 1)
	require.Equal(t, `print\(`, profile.Rules[0].Expression)
}

func TestParseDocument_Overrides(t *testing.T) {
	profile, err := ParseDocument(yamlDocument, ImportOverrides{
		Name:    "Renamed",
		Domain:  "compliance",
		Version: "9.9.9",
	})
	require.NoError(t, err)
	require.Equal(t, "Renamed", profile.Name)
	require.Equal(t, "compliance", profile.Domain)
	require.Equal(t, "9.9.9", profile.Version)
}

func TestParseDocument_MissingRuleKey(t *testing.T) {
	document := `
rules:
  - description: nameless rule
    expression: x
`
	_, err := ParseDocument(document, ImportOverrides{})
	require.ErrorIs(t, err, ErrInvalidDocument)
	require.Contains(t, err.Error(), "rule_key")
}

func TestParseDocument_Invalid(t *testing.T) {
	_, err := ParseDocument(`{"profile": `, ImportOverrides{})
	require.ErrorIs(t, err, ErrInvalidDocument)

	_, err = ParseDocument("profile: [unclosed\n", ImportOverrides{})
	require.ErrorIs(t, err, ErrInvalidDocument)
}

func TestParseDocument_Defaults(t *testing.T) {
	profile, err := ParseDocument("rules: []\n", ImportOverrides{})
	require.NoError(t, err)
	require.Equal(t, "Unnamed Policy", profile.Name)
	require.Equal(t, "general", profile.Domain)
	require.Equal(t, "1.0.0", profile.Version)
	require.Empty(t, profile.Rules)
}
