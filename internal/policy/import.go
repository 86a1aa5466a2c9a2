package policy

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/xid"
	"gopkg.in/yaml.v3"
)

// ErrInvalidDocument is returned when a policy document cannot be parsed.
var ErrInvalidDocument = errors.New("invalid policy document")

// ImportOverrides optionally override profile header fields on import.
type ImportOverrides struct {
	Name    string
	Domain  string
	Version string
}

// policyDocument is the on-disk shape of an importable policy document.
type policyDocument struct {
	Profile struct {
		ProfileID string `yaml:"policy_profile_id" json:"policy_profile_id"`
		Name      string `yaml:"name"              json:"name"`
		Domain    string `yaml:"domain"            json:"domain"`
		Version   string `yaml:"version"           json:"version"`
	} `yaml:"profile" json:"profile"`
	Rules []struct {
		RuleID      string `yaml:"rule_id"      json:"rule_id"`
		RuleKey     string `yaml:"rule_key"     json:"rule_key"`
		Key         string `yaml:"key"          json:"key"`
		Description string `yaml:"description"  json:"description"`
		Category    string `yaml:"category"     json:"category"`
		Expression  string `yaml:"expression"   json:"expression"`
		Severity    string `yaml:"severity"     json:"severity"`
		AutoFixable bool   `yaml:"auto_fixable" json:"auto_fixable"`
	} `yaml:"rules" json:"rules"`
}

// ParseDocument parses a YAML or JSON policy document into a Profile.
// Documents starting with "{" are treated as JSON, everything else as YAML.
// Missing identifiers are generated; each rule must carry a rule_key (or its
// legacy alias key).
func ParseDocument(document string, overrides ImportOverrides) (*Profile, error) {
	var doc policyDocument

	var err error
	if strings.HasPrefix(strings.TrimSpace(document), "{") {
		err = json.Unmarshal([]byte(document), &doc)
	} else {
		err = yaml.Unmarshal([]byte(document), &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	profileID := doc.Profile.ProfileID
	if profileID == "" {
		profileID = xid.New().String()
	}

	profile := &Profile{
		ProfileID: profileID,
		Name:      firstNonEmpty(overrides.Name, doc.Profile.Name, "Unnamed Policy"),
		Domain:    firstNonEmpty(overrides.Domain, doc.Profile.Domain, "general"),
		Version:   firstNonEmpty(overrides.Version, doc.Profile.Version, "1.0.0"),
		Rules:     make([]Rule, 0, len(doc.Rules)),
	}

	for i, r := range doc.Rules {
		key := firstNonEmpty(r.RuleKey, r.Key)
		if key == "" {
			return nil, fmt.Errorf("%w: rule %d is missing rule_key", ErrInvalidDocument, i)
		}

		ruleID := r.RuleID
		if ruleID == "" {
			ruleID = xid.New().String()
		}

		profile.Rules = append(profile.Rules, Rule{
			RuleID:      ruleID,
			RuleKey:     key,
			Description: firstNonEmpty(r.Description, "No description provided"),
			Category:    firstNonEmpty(r.Category, "style"),
			Expression:  r.Expression,
			Severity:    ParseSeverity(r.Severity),
			AutoFixable: r.AutoFixable,
		})
	}

	return profile, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
