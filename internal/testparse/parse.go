package testparse

import (
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Artifact file names written by the structured test commands.
const (
	junitArtifact = "test_results.xml"
	jestArtifact  = "test_results.json"
)

// parsers maps framework labels to their parser. New frameworks are
// added by inserting an entry; anything unlisted goes through the
// generic console scanner.
var parsers = map[string]func(projectDir, output string) []TestResult{
	"pytest":   parsePytest,
	"jest":     func(dir, _ string) []TestResult { return parseJest(dir) },
	"unittest": func(_, out string) []TestResult { return parseUnittest(out) },
	"mocha":    func(_, out string) []TestResult { return parseMocha(out) },
	"go":       func(_, out string) []TestResult { return parseGoTest(out) },
	"cargo":    func(_, out string) []TestResult { return parseCargo(out) },
}

// Parse dispatches to the framework-specific parser. Unknown
// frameworks fall through to the generic console scanner.
func Parse(projectDir, framework, output string) []TestResult {
	if parse, ok := parsers[framework]; ok {
		return parse(projectDir, output)
	}
	return parseGeneric(output)
}

// =============================================================================
// PYTEST (JUnit XML artifact, console fallback)
// =============================================================================

type junitTestCase struct {
	ClassName string        `xml:"classname,attr"`
	Name      string        `xml:"name,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure"`
	Error     *junitFailure `xml:"error"`
	Skipped   *junitFailure `xml:"skipped"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
}

type junitSuite struct {
	Cases  []junitTestCase `xml:"testcase"`
	Suites []junitSuite    `xml:"testsuite"`
}

type junitDocument struct {
	XMLName xml.Name
	Cases   []junitTestCase `xml:"testcase"`
	Suites  []junitSuite    `xml:"testsuite"`
}

func (s junitSuite) allCases() []junitTestCase {
	cases := s.Cases
	for _, sub := range s.Suites {
		cases = append(cases, sub.allCases()...)
	}
	return cases
}

func parsePytest(projectDir, output string) []TestResult {
	xmlPath := filepath.Join(projectDir, junitArtifact)
	if data, err := os.ReadFile(xmlPath); err == nil {
		if results := parseJUnitXML(data); len(results) > 0 {
			os.Remove(xmlPath)
			return results
		}
	}
	return parsePytestOutput(output)
}

func parseJUnitXML(data []byte) []TestResult {
	var doc junitDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil
	}
	cases := doc.Cases
	for _, s := range doc.Suites {
		cases = append(cases, s.allCases()...)
	}

	var results []TestResult
	for _, tc := range cases {
		seconds, _ := strconv.ParseFloat(tc.Time, 64)

		var status Status
		var errMsg string
		switch {
		case tc.Failure != nil:
			status, errMsg = StatusFailed, tc.Failure.Message
		case tc.Error != nil:
			status, errMsg = StatusFailed, tc.Error.Message
		case tc.Skipped != nil:
			status, errMsg = StatusSkipped, tc.Skipped.Message
		default:
			status = StatusPassed
		}

		testFile := "unknown"
		if tc.ClassName != "" {
			testFile = strings.ReplaceAll(tc.ClassName, ".", "/") + ".py"
		}
		results = append(results, TestResult{
			TestFile:     testFile,
			TestName:     tc.Name,
			Status:       status,
			DurationMs:   seconds * 1000,
			ErrorMessage: errMsg,
			Framework:    "pytest",
			Suite:        tc.ClassName,
		})
	}
	return results
}

var (
	pytestLineRe = regexp.MustCompile(`(.*?)::(.*?) (PASSED|FAILED|SKIPPED|XFAIL|XPASS|ERROR)`)
	pytestTimeRe = regexp.MustCompile(`\[(\d+)%\].*?(\d+\.\d+)s`)

	pytestStatus = map[string]Status{
		"PASSED":  StatusPassed,
		"FAILED":  StatusFailed,
		"SKIPPED": StatusSkipped,
		"XFAIL":   StatusSkipped,
		"XPASS":   StatusPassed,
		"ERROR":   StatusFailed,
	}
)

func parsePytestOutput(output string) []TestResult {
	var results []TestResult
	for _, line := range strings.Split(output, "\n") {
		match := pytestLineRe.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		status, ok := pytestStatus[match[3]]
		if !ok {
			status = StatusUnknown
		}
		var duration float64
		if tm := pytestTimeRe.FindStringSubmatch(line); tm != nil {
			seconds, _ := strconv.ParseFloat(tm[2], 64)
			duration = seconds * 1000
		}
		results = append(results, TestResult{
			TestFile:   match[1],
			TestName:   match[2],
			Status:     status,
			DurationMs: duration,
			Framework:  "pytest",
		})
	}
	return results
}

// =============================================================================
// JEST (JSON artifact only)
// =============================================================================

type jestReport struct {
	TestResults []struct {
		Name             string `json:"name"`
		AssertionResults []struct {
			Title           string   `json:"title"`
			Status          string   `json:"status"`
			Duration        float64  `json:"duration"`
			FailureMessages []string `json:"failureMessages"`
			AncestorTitles  []string `json:"ancestorTitles"`
		} `json:"assertionResults"`
	} `json:"testResults"`
}

func parseJest(projectDir string) []TestResult {
	jsonPath := filepath.Join(projectDir, jestArtifact)
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil
	}
	var report jestReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil
	}
	os.Remove(jsonPath)

	var results []TestResult
	for _, file := range report.TestResults {
		testFile := file.Name
		if testFile == "" {
			testFile = "unknown"
		}
		for _, assertion := range file.AssertionResults {
			status := Status(assertion.Status)
			switch status {
			case StatusPassed, StatusFailed, StatusSkipped:
			case "pending":
				status = StatusSkipped
			default:
				status = StatusUnknown
			}
			var errMsg, suite string
			if len(assertion.FailureMessages) > 0 {
				errMsg = assertion.FailureMessages[0]
			}
			if len(assertion.AncestorTitles) > 0 {
				suite = assertion.AncestorTitles[0]
			}
			results = append(results, TestResult{
				TestFile:     testFile,
				TestName:     assertion.Title,
				Status:       status,
				DurationMs:   assertion.Duration,
				ErrorMessage: errMsg,
				Framework:    "jest",
				Suite:        suite,
			})
		}
	}
	return results
}

// =============================================================================
// UNITTEST (console)
// =============================================================================

var unittestLineRe = regexp.MustCompile(`(test_\w+) \((.*?)\) \.\.\. (ok|FAIL|ERROR|skipped)`)

var unittestStatus = map[string]Status{
	"ok":      StatusPassed,
	"FAIL":    StatusFailed,
	"ERROR":   StatusFailed,
	"skipped": StatusSkipped,
}

func parseUnittest(output string) []TestResult {
	var results []TestResult
	for _, line := range strings.Split(output, "\n") {
		match := unittestLineRe.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		status, ok := unittestStatus[match[3]]
		if !ok {
			status = StatusUnknown
		}
		testClass := match[2]
		testFile := "unknown"
		if strings.Contains(testClass, ".") {
			testFile = strings.ReplaceAll(testClass, ".", "/") + ".py"
		}
		results = append(results, TestResult{
			TestFile:  testFile,
			TestName:  match[1],
			Status:    status,
			Framework: "unittest",
			Suite:     testClass,
		})
	}
	return results
}

// =============================================================================
// MOCHA (console)
// =============================================================================

var (
	mochaPassRe = regexp.MustCompile(`✓ (.+?) \((\d+)ms\)`)
	mochaFailRe = regexp.MustCompile(`\d+\) (.+)`)
)

func parseMocha(output string) []TestResult {
	var results []TestResult
	var currentSuite string

	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		// A non-check, non-numbered line names the enclosing suite.
		if trimmed != "" && !strings.HasPrefix(trimmed, "✓") && (trimmed[0] < '0' || trimmed[0] > '9') {
			currentSuite = trimmed
		}
		if match := mochaPassRe.FindStringSubmatch(line); match != nil {
			ms, _ := strconv.ParseFloat(match[2], 64)
			results = append(results, TestResult{
				TestFile:   "unknown",
				TestName:   match[1],
				Status:     StatusPassed,
				DurationMs: ms,
				Framework:  "mocha",
				Suite:      currentSuite,
			})
		}
		if match := mochaFailRe.FindStringSubmatch(line); match != nil {
			results = append(results, TestResult{
				TestFile:     "unknown",
				TestName:     match[1],
				Status:       StatusFailed,
				ErrorMessage: "Test failed",
				Framework:    "mocha",
				Suite:        currentSuite,
			})
		}
	}
	return results
}

// =============================================================================
// GO TEST (-json event stream, plain-output fallback per line)
// =============================================================================

type goTestEvent struct {
	Action  string  `json:"Action"`
	Test    string  `json:"Test"`
	Package string  `json:"Package"`
	Elapsed float64 `json:"Elapsed"`
}

var goPlainRe = regexp.MustCompile(`(PASS|FAIL):\s+(\S+)\s+\((\d+\.\d+)s\)`)

func parseGoTest(output string) []TestResult {
	var results []TestResult
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var event goTestEvent
		if err := json.Unmarshal([]byte(line), &event); err == nil {
			if (event.Action == "pass" || event.Action == "fail") && event.Test != "" {
				status := StatusPassed
				if event.Action == "fail" {
					status = StatusFailed
				}
				pkg := event.Package
				if pkg == "" {
					pkg = "unknown"
				}
				results = append(results, TestResult{
					TestFile:   pkg,
					TestName:   event.Test,
					Status:     status,
					DurationMs: event.Elapsed * 1000,
					Framework:  "go",
					Suite:      event.Package,
				})
			}
			continue
		}
		if match := goPlainRe.FindStringSubmatch(line); match != nil {
			status := StatusPassed
			if match[1] == "FAIL" {
				status = StatusFailed
			}
			seconds, _ := strconv.ParseFloat(match[3], 64)
			results = append(results, TestResult{
				TestFile:   "unknown",
				TestName:   match[2],
				Status:     status,
				DurationMs: seconds * 1000,
				Framework:  "go",
			})
		}
	}
	return results
}

// =============================================================================
// CARGO (console)
// =============================================================================

var cargoLineRe = regexp.MustCompile(`test (\S+) \.\.\. (ok|FAILED|ignored)`)

var cargoStatus = map[string]Status{
	"ok":      StatusPassed,
	"FAILED":  StatusFailed,
	"ignored": StatusSkipped,
}

func parseCargo(output string) []TestResult {
	var results []TestResult
	for _, line := range strings.Split(output, "\n") {
		match := cargoLineRe.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		status, ok := cargoStatus[match[2]]
		if !ok {
			status = StatusUnknown
		}
		results = append(results, TestResult{
			TestFile:  "unknown",
			TestName:  match[1],
			Status:    status,
			Framework: "cargo",
		})
	}
	return results
}

// =============================================================================
// GENERIC (last resort)
// =============================================================================

var genericPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\w+)\s+(passed|PASSED|success|SUCCESS)`),
	regexp.MustCompile(`(\w+)\s+(failed|FAILED|failure|FAILURE)`),
	regexp.MustCompile(`Test\s+(\w+):\s+(PASS|FAIL)`),
}

func parseGeneric(output string) []TestResult {
	var results []TestResult
	for _, pattern := range genericPatterns {
		for _, match := range pattern.FindAllStringSubmatch(output, -1) {
			status := StatusFailed
			if strings.Contains(strings.ToLower(match[2]), "pass") ||
				strings.Contains(strings.ToLower(match[2]), "success") {
				status = StatusPassed
			}
			results = append(results, TestResult{
				TestFile:  "unknown",
				TestName:  match[1],
				Status:    status,
				Framework: "unknown",
			})
		}
	}
	return results
}
