package detect

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestProjectDetector(t *testing.T) {
	cases := []struct {
		name  string
		files map[string]string
		want  string
	}{
		{"node via package.json", map[string]string{"package.json": "{}"}, ProjectNode},
		{"node via entrypoint", map[string]string{"server.js": ""}, ProjectNode},
		{"python via requirements", map[string]string{"requirements.txt": "flask"}, ProjectPython},
		{"python via main", map[string]string{"main.py": ""}, ProjectPython},
		{"rust", map[string]string{"Cargo.toml": ""}, ProjectRust},
		{"go via go.mod", map[string]string{"go.mod": "module x"}, ProjectGo},
		{"empty dir", nil, Unknown},
	}

	detector := NewProjectDetector()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tc.files {
				writeFile(t, dir, name, content)
			}
			if got := detector.Detect(dir); got != tc.want {
				t.Errorf("Detect() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestProjectDetector_OrderWins(t *testing.T) {
	// A project with both node and python markers resolves to the
	// earlier rule in the chain.
	dir := t.TempDir()
	writeFile(t, dir, "package.json", "{}")
	writeFile(t, dir, "main.py", "")

	if got := NewProjectDetector().Detect(dir); got != ProjectNode {
		t.Errorf("expected node for mixed markers, got %q", got)
	}
}

func TestFrameworkDetector(t *testing.T) {
	cases := []struct {
		name  string
		files map[string]string
		want  string
	}{
		{"pytest via ini", map[string]string{"pytest.ini": ""}, FrameworkPytest},
		{"pytest via requirements", map[string]string{"requirements.txt": "pytest==8.0"}, FrameworkPytest},
		{"unittest via import", map[string]string{"test_app.py": "import unittest\n"}, FrameworkUnittest},
		{"jest via dependency", map[string]string{"package.json": `{"devDependencies":{"jest":"^29"}}`}, FrameworkJest},
		{"jest via test script", map[string]string{"package.json": `{"scripts":{"test":"jest --ci"}}`}, FrameworkJest},
		{"jest via config", map[string]string{"jest.config.js": ""}, FrameworkJest},
		{"mocha via dependency", map[string]string{"package.json": `{"dependencies":{"mocha":"^10"}}`}, FrameworkMocha},
		{"go test", map[string]string{"go.mod": "module x", "foo_test.go": "package x"}, FrameworkGoTest},
		{"cargo", map[string]string{"Cargo.toml": ""}, FrameworkCargo},
		{"nothing", nil, Unknown},
	}

	detector := NewFrameworkDetector()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tc.files {
				writeFile(t, dir, name, content)
			}
			if got := detector.Detect(dir); got != tc.want {
				t.Errorf("Detect() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFrameworkDetector_GoModWithoutTests(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module x")

	if got := NewFrameworkDetector().Detect(dir); got != Unknown {
		t.Errorf("go.mod with no test files should not match, got %q", got)
	}
}

func TestDetectByTestFiles(t *testing.T) {
	cases := []struct {
		name string
		file string
		want string
	}{
		{"python naming", "tests/test_core.py", FrameworkPytest},
		{"python suffix naming", "core_test.py", FrameworkPytest},
		{"js test naming", "src/app.test.js", FrameworkJest},
		{"js spec naming", "app.spec.js", FrameworkJest},
		{"go naming", "core_test.go", FrameworkGoTest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, tc.file, "")
			if got := DetectByTestFiles(dir); got != tc.want {
				t.Errorf("DetectByTestFiles() = %q, want %q", got, tc.want)
			}
		})
	}

	t.Run("no test files", func(t *testing.T) {
		if got := DetectByTestFiles(t.TempDir()); got != Unknown {
			t.Errorf("expected unknown, got %q", got)
		}
	})
}
