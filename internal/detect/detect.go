// Package detect identifies project types and test frameworks by
// inspecting the files present in a project directory. Detection is
// rule-based: each detector walks an ordered list of (label, predicate)
// rules and returns the first label whose predicate matches, falling
// back to "unknown".
package detect

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Unknown is returned when no detection rule matches.
const Unknown = "unknown"

// Rule pairs a label with a predicate over a project directory.
type Rule struct {
	Label string
	Match func(dir string) bool
}

// Detector runs an ordered rule chain over a project directory.
type Detector struct {
	rules []Rule
}

// NewDetector builds a detector from the given rules. Order matters:
// earlier rules win when more than one would match.
func NewDetector(rules ...Rule) *Detector {
	return &Detector{rules: rules}
}

// Detect returns the label of the first matching rule, or Unknown.
func (d *Detector) Detect(dir string) string {
	for _, r := range d.rules {
		if r.Match(dir) {
			return r.Label
		}
	}
	return Unknown
}

// =============================================================================
// PROJECT TYPE DETECTION
// =============================================================================

// Project type labels.
const (
	ProjectNode   = "node"
	ProjectPython = "python"
	ProjectRust   = "rust"
	ProjectGo     = "go"
)

// NewProjectDetector returns the standard project-type detector.
// Node is checked first so that polyglot trees with both package.json
// and stray Python helpers resolve to node.
func NewProjectDetector() *Detector {
	return NewDetector(
		Rule{ProjectNode, func(dir string) bool {
			return anyExists(dir, "package.json", "index.js", "app.js", "server.js")
		}},
		Rule{ProjectPython, func(dir string) bool {
			return anyExists(dir, "requirements.txt", "setup.py", "pyproject.toml", "main.py", "app.py")
		}},
		Rule{ProjectRust, func(dir string) bool {
			return exists(dir, "Cargo.toml")
		}},
		Rule{ProjectGo, func(dir string) bool {
			return anyExists(dir, "go.mod", "main.go")
		}},
	)
}

// =============================================================================
// TEST FRAMEWORK DETECTION
// =============================================================================

// Test framework labels.
const (
	FrameworkPytest   = "pytest"
	FrameworkUnittest = "unittest"
	FrameworkJest     = "jest"
	FrameworkMocha    = "mocha"
	FrameworkGoTest   = "go"
	FrameworkCargo    = "cargo"
)

// NewFrameworkDetector returns the standard test-framework detector.
func NewFrameworkDetector() *Detector {
	return NewDetector(
		Rule{FrameworkPytest, matchPytest},
		Rule{FrameworkUnittest, matchUnittest},
		Rule{FrameworkJest, matchJest},
		Rule{FrameworkMocha, matchMocha},
		Rule{FrameworkGoTest, matchGoTest},
		Rule{FrameworkCargo, func(dir string) bool { return exists(dir, "Cargo.toml") }},
	)
}

func matchPytest(dir string) bool {
	if anyExists(dir, "pytest.ini", "pyproject.toml", "conftest.py", "setup.cfg") {
		return true
	}
	for _, req := range []string{"requirements.txt", "requirements-dev.txt", "test-requirements.txt"} {
		data, err := os.ReadFile(filepath.Join(dir, req))
		if err == nil && strings.Contains(string(data), "pytest") {
			return true
		}
	}
	return false
}

func matchUnittest(dir string) bool {
	for _, path := range glob(dir, "test_*.py", "*_test.py") {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		content := string(data)
		if strings.Contains(content, "import unittest") || strings.Contains(content, "from unittest") {
			return true
		}
	}
	return false
}

func matchJest(dir string) bool {
	if pkg := readPackageJSON(dir); pkg != nil {
		if pkg.hasDependency("jest") || strings.Contains(pkg.Scripts["test"], "jest") {
			return true
		}
	}
	return anyExists(dir, "jest.config.js", "jest.config.json", "jest.config.ts")
}

func matchMocha(dir string) bool {
	if pkg := readPackageJSON(dir); pkg != nil {
		if pkg.hasDependency("mocha") || strings.Contains(pkg.Scripts["test"], "mocha") {
			return true
		}
	}
	return anyExists(dir, "mocha.opts", ".mocharc.js", ".mocharc.json")
}

func matchGoTest(dir string) bool {
	return exists(dir, "go.mod") && len(glob(dir, "*_test.go")) > 0
}

// DetectByTestFiles is the fallback heuristic used when no framework
// rule matched: infer a framework from test file naming conventions
// alone, defaulting to the most common framework for each ecosystem.
func DetectByTestFiles(dir string) string {
	if len(glob(dir, "test_*.py", "*_test.py")) > 0 {
		return FrameworkPytest
	}
	if len(glob(dir, "*.test.js", "*.spec.js")) > 0 {
		return FrameworkJest
	}
	if len(glob(dir, "*_test.go")) > 0 {
		return FrameworkGoTest
	}
	return Unknown
}

// =============================================================================
// FILESYSTEM HELPERS
// =============================================================================

func exists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}

func anyExists(dir string, names ...string) bool {
	for _, name := range names {
		if exists(dir, name) {
			return true
		}
	}
	return false
}

// glob walks dir recursively and returns paths whose base name matches
// any of the given patterns. Walk errors are treated as no match.
func glob(dir string, patterns ...string) []string {
	var matches []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		for _, pattern := range patterns {
			if ok, _ := filepath.Match(pattern, d.Name()); ok {
				matches = append(matches, path)
				break
			}
		}
		return nil
	})
	return matches
}

type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
	Scripts         map[string]string `json:"scripts"`
}

func (p *packageJSON) hasDependency(name string) bool {
	if _, ok := p.Dependencies[name]; ok {
		return true
	}
	_, ok := p.DevDependencies[name]
	return ok
}

func readPackageJSON(dir string) *packageJSON {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return nil
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil
	}
	return &pkg
}
