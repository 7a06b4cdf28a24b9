// Package config holds the codeforge configuration: LLM access,
// workflow policy, execution limits, logging, and report locations.
// Configuration loads from YAML with environment overrides on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all codeforge configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	LLM       LLMConfig       `yaml:"llm"`
	Workflow  WorkflowConfig  `yaml:"workflow"`
	Execution ExecutionConfig `yaml:"execution"`
	Logging   LoggingConfig   `yaml:"logging"`
	Reports   ReportsConfig   `yaml:"reports"`
	History   HistoryConfig   `yaml:"history"`
}

// LLMConfig configures the model backend.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Timeout  string `yaml:"timeout"`
}

// WorkflowConfig configures pipeline behavior.
type WorkflowConfig struct {
	// RunTests enables the test-writing and execution phases.
	RunTests bool `yaml:"run_tests"`

	// RunValidation enables post-workflow application validation.
	RunValidation bool `yaml:"run_validation"`

	// Incremental enables feature-by-feature implementation with a
	// single direct fallback on failure.
	Incremental bool `yaml:"incremental"`

	// MaxReviewRetries bounds the review/revision loop per stage.
	MaxReviewRetries int `yaml:"max_review_retries"`

	// ReviewFailOpen auto-approves a stage when the reviewer itself
	// fails. Defaults to true; set false to fail the workflow instead.
	ReviewFailOpen *bool `yaml:"review_fail_open"`
}

// FailOpen reports the effective reviewer-failure policy.
func (w WorkflowConfig) FailOpen() bool {
	if w.ReviewFailOpen == nil {
		return true
	}
	return *w.ReviewFailOpen
}

// ExecutionConfig configures application and test execution.
type ExecutionConfig struct {
	Timeout        string `yaml:"timeout"`
	TestTimeout    string `yaml:"test_timeout"`
	HealthEndpoint string `yaml:"health_endpoint"`
}

// LoggingConfig configures session and component logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	// Dir receives execution logs and their CSV/JSON exports.
	Dir string `yaml:"dir"`
	// MaxInputChars/MaxOutputChars bound logged payloads; both above
	// 10000 disables truncation entirely.
	MaxInputChars  int `yaml:"max_input_chars"`
	MaxOutputChars int `yaml:"max_output_chars"`
}

// ReportsConfig configures the report generator.
type ReportsConfig struct {
	Dir string `yaml:"dir"`
}

// HistoryConfig configures the run history database.
type HistoryConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "codeforge",
		Version: "1.0.0",

		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.0-flash",
			Timeout:  "120s",
		},
		Workflow: WorkflowConfig{
			RunTests:         true,
			RunValidation:    true,
			Incremental:      false,
			MaxReviewRetries: 3,
		},
		Execution: ExecutionConfig{
			Timeout:        "60s",
			TestTimeout:    "300s",
			HealthEndpoint: "",
		},
		Logging: LoggingConfig{
			Level:          "info",
			Dir:            "logs",
			MaxInputChars:  1000,
			MaxOutputChars: 1000,
		},
		Reports: ReportsConfig{
			Dir: "test_reports",
		},
		History: HistoryConfig{
			DatabasePath: "data/codeforge.db",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields
// the defaults; environment overrides always apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}
	if model := os.Getenv("CODEFORGE_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if dir := os.Getenv("CODEFORGE_REPORT_DIR"); dir != "" {
		c.Reports.Dir = dir
	}
	if dir := os.Getenv("CODEFORGE_LOG_DIR"); dir != "" {
		c.Logging.Dir = dir
	}
	if path := os.Getenv("CODEFORGE_DB"); path != "" {
		c.History.DatabasePath = path
	}
}

// LLMTimeout returns the LLM timeout as a duration.
func (c *Config) LLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 120*time.Second)
}

// ExecutionTimeout returns the application run timeout.
func (c *Config) ExecutionTimeout() time.Duration {
	return parseDuration(c.Execution.Timeout, 60*time.Second)
}

// TestTimeout returns the test run timeout.
func (c *Config) TestTimeout() time.Duration {
	return parseDuration(c.Execution.TestTimeout, 300*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
