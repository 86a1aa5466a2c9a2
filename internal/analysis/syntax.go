package analysis

import (
	"encoding/json"
	"fmt"
	"go/parser"
	"go/token"
	"strings"

	"gopkg.in/yaml.v3"
)

// SyntaxValidator checks whether a snippet parses for one language.
type SyntaxValidator func(code string) error

// syntaxValidators holds parseability checks for languages the service can
// genuinely parse. Languages without an entry are accepted as-is.
//
//nolint:gochecknoglobals // fixed language registry
var syntaxValidators = map[string]SyntaxValidator{
	"go":   validateGo,
	"json": validateJSON,
	"yaml": validateYAML,
}

// extensionByLanguage maps a language tag to the extension used when the
// caller omits a file path.
//
//nolint:gochecknoglobals // fixed language registry
var extensionByLanguage = map[string]string{
	"python":     "py",
	"terraform":  "tf",
	"go":         "go",
	"javascript": "js",
	"typescript": "ts",
	"java":       "java",
	"ruby":       "rb",
	"rust":       "rs",
	"json":       "json",
	"yaml":       "yaml",
}

// CheckSyntax validates the snippet when a parser is registered for the
// language. It returns nil for languages without a registered parser.
func CheckSyntax(code, language string) error {
	validator, ok := syntaxValidators[strings.ToLower(language)]
	if !ok {
		return nil
	}
	return validator(code)
}

// HasSyntaxValidator reports whether the language declares itself parseable.
func HasSyntaxValidator(language string) bool {
	_, ok := syntaxValidators[strings.ToLower(language)]
	return ok
}

// DefaultFilePath synthesizes a file path for a language when the caller did
// not provide one.
func DefaultFilePath(language string) string {
	ext, ok := extensionByLanguage[strings.ToLower(language)]
	if !ok {
		ext = "txt"
	}
	return "submission." + ext
}

func validateGo(code string) error {
	fset := token.NewFileSet()
	if _, err := parser.ParseFile(fset, "submission.go", code, parser.AllErrors); err != nil {
		return fmt.Errorf("invalid go syntax: %w", err)
	}
	return nil
}

func validateJSON(code string) error {
	if !json.Valid([]byte(code)) {
		return fmt.Errorf("invalid json syntax")
	}
	return nil
}

func validateYAML(code string) error {
	var out any
	if err := yaml.Unmarshal([]byte(code), &out); err != nil {
		return fmt.Errorf("invalid yaml syntax: %w", err)
	}
	return nil
}
