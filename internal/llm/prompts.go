package llm

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// PromptBuilder builds prompts for LLM functions.
type PromptBuilder struct {
	templates map[Function]*template.Template
}

// NewPromptBuilder creates a new prompt builder.
func NewPromptBuilder() (*PromptBuilder, error) {
	pb := &PromptBuilder{
		templates: make(map[Function]*template.Template),
	}

	templates := map[Function]string{
		FunctionRefactorCode: refactorCodeTemplate,
	}

	for fn, tmpl := range templates {
		t, err := template.New(string(fn)).Funcs(templateFuncs).Parse(tmpl)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", fn, err)
		}
		pb.templates[fn] = t
	}

	return pb, nil
}

// Build builds a prompt for the given function and data.
func (pb *PromptBuilder) Build(fn Function, data any) (string, error) {
	t, ok := pb.templates[fn]
	if !ok {
		return "", fmt.Errorf("unknown function: %s", fn)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}

	return buf.String(), nil
}

// templateFuncs provides template helper functions.
//
//nolint:gochecknoglobals // Template functions are inherently global
var templateFuncs = template.FuncMap{
	"join": strings.Join,
}

const refactorCodeTemplate = `You are refactoring code to satisfy a governance policy.

## Task
Rewrite the submitted code so that it no longer violates the listed
policy rules, while preserving its observable behavior.

## Submission
File: {{.FilePath}}
Language: {{.Language}}

` + "```" + `{{.Language}}
{{.Code}}
` + "```" + `

## Policy{{if .PolicyName}}: {{.PolicyName}}{{end}}
{{- range .Rules}}
- [{{.Severity}}] {{.Key}}: {{.Description}}
{{- end}}
{{- if .Violations}}

## Detected Violations
{{- range .Violations}}
- [{{.Severity}}] {{.RuleKey}}: {{.Message}}
{{- end}}
{{- end}}

## Instructions
1. Fix every detected violation
2. Do not change behavior, public interfaces, or semantics
3. Keep the rewrite minimal; leave compliant code untouched
4. For each change, report the affected line span with a rationale

Respond with a JSON object matching this schema:
{
  "refactored_code": "string - the complete rewritten code",
  "summary": "string - one paragraph describing the changes",
  "suggestions": [
    {
      "line_start": number (1-based, in the original code),
      "line_end": number,
      "original": "string - the original fragment",
      "proposed": "string - the replacement fragment",
      "rationale": "string - why this change satisfies the policy",
      "confidence": 0.0-1.0
    }
  ]
}`
