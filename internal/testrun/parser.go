package testrun

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

const msPerSecond = 1000

// Pre-compiled regular expressions for parsing test output.
var (
	// Go test output patterns.
	goTestPassRe = regexp.MustCompile(`--- PASS: (\S+) \(([0-9.]+)s\)`)
	goTestFailRe = regexp.MustCompile(`--- FAIL: (\S+) \(([0-9.]+)s\)`)
	goTestSkipRe = regexp.MustCompile(`--- SKIP: (\S+) \(([0-9.]+)s\)`)

	// Pytest summary pattern: "5 passed, 2 failed, 1 skipped in 1.23s".
	pytestSummaryRe = regexp.MustCompile(
		`(\d+) passed(?:, (\d+) failed)?(?:, (\d+) skipped)?(?:, (\d+) error)? in ([0-9.]+)s`,
	)
	pytestFailedOnlyRe = regexp.MustCompile(`(\d+) failed in ([0-9.]+)s`)
)

// ParseOutput parses test output into a Result based on language. Unknown
// languages fall back to exit-code interpretation.
func ParseOutput(language, output string, exitCode int) *Result {
	var result *Result

	switch strings.ToLower(language) {
	case "go":
		result = parseGoTestOutput(output)
	case "python":
		result = parsePytestOutput(output)
	default:
		result = parseGenericOutput(output, exitCode)
	}

	result.ExitCode = exitCode
	result.Executed = true
	return result
}

func parseGoTestOutput(output string) *Result {
	result := &Result{}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case goTestPassRe.MatchString(line):
			result.Total++
			result.Passed++
		case goTestFailRe.MatchString(line):
			result.Total++
			result.Failed++
		case goTestSkipRe.MatchString(line):
			result.Total++
			result.SkippedTests++
		}
	}

	return result
}

func parsePytestOutput(output string) *Result {
	result := &Result{}

	if match := pytestSummaryRe.FindStringSubmatch(output); match != nil {
		result.Passed, _ = strconv.Atoi(match[1])
		if match[2] != "" {
			result.Failed, _ = strconv.Atoi(match[2])
		}
		if match[3] != "" {
			result.SkippedTests, _ = strconv.Atoi(match[3])
		}
		duration, _ := strconv.ParseFloat(match[5], 64)
		result.DurationMS = int64(duration * msPerSecond)
	} else if match := pytestFailedOnlyRe.FindStringSubmatch(output); match != nil {
		// "3 failed in 0.12s" has no passed clause.
		result.Failed, _ = strconv.Atoi(match[1])
		duration, _ := strconv.ParseFloat(match[2], 64)
		result.DurationMS = int64(duration * msPerSecond)
	}

	result.Total = result.Passed + result.Failed + result.SkippedTests
	return result
}

func parseGenericOutput(output string, exitCode int) *Result {
	result := &Result{Total: 1, Output: output}
	if exitCode == 0 {
		result.Passed = 1
	} else {
		result.Failed = 1
	}
	return result
}
