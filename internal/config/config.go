// Package config loads pipeline configuration from environment variables and
// an optional YAML file. Environment variables take precedence.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete pipeline configuration.
type Config struct {
	Pipeline  PipelineConfig  `yaml:"pipeline" envconfig:"PIPELINE"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Baselines BaselineConfig  `yaml:"baselines" envconfig:"BASELINES"`
}

// PipelineConfig contains source and output locations.
type PipelineConfig struct {
	// SourceFile is the workbook to normalize. When empty, the newest .xlsx
	// in SourceDir is used.
	SourceFile   string `yaml:"source_file" envconfig:"SOURCE_FILE"`
	SourceDir    string `yaml:"source_dir" envconfig:"SOURCE_DIR" default:"." validate:"required"`
	TablesDir    string `yaml:"tables_dir" envconfig:"TABLES_DIR" default:"output/3nf" validate:"required"`
	DashboardDir string `yaml:"dashboard_dir" envconfig:"DASHBOARD_DIR" default:"output/tableau_ready" validate:"required"`
	ReportDir    string `yaml:"report_dir" envconfig:"REPORT_DIR" default:"output/tableau" validate:"required"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format      string `yaml:"format" envconfig:"FORMAT" default:"json" validate:"oneof=json text"`
	Output      string `yaml:"output" envconfig:"OUTPUT" default:"console" validate:"oneof=console file both"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/pipeline.log"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT" default:"false"`
}

// BaselineConfig contains the row-count baselines asserted by the validation
// stage. The defaults match the reference snapshot of the source workbook.
type BaselineConfig struct {
	DistinctLoans int `yaml:"distinct_loans" envconfig:"DISTINCT_LOANS" default:"2004" validate:"min=0"`
	EventRows     int `yaml:"event_rows" envconfig:"EVENT_ROWS" default:"10999" validate:"min=0"`
}

// Load loads configuration from environment variables and config file.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("LOANETL", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	configFile := findConfigFile()
	if configFile != "" {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configFile, err)
		}
		cfg = merge(*fileCfg, cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// merge layers the file config over env defaults. File values replace
// defaulted fields; an explicitly set SOURCE_FILE env var is kept.
func merge(file, env Config) Config {
	if env.Pipeline.SourceFile == "" {
		env.Pipeline.SourceFile = file.Pipeline.SourceFile
	}
	if file.Pipeline.SourceDir != "" {
		env.Pipeline.SourceDir = file.Pipeline.SourceDir
	}
	if file.Pipeline.TablesDir != "" {
		env.Pipeline.TablesDir = file.Pipeline.TablesDir
	}
	if file.Pipeline.DashboardDir != "" {
		env.Pipeline.DashboardDir = file.Pipeline.DashboardDir
	}
	if file.Pipeline.ReportDir != "" {
		env.Pipeline.ReportDir = file.Pipeline.ReportDir
	}
	if file.Logging.Level != "" {
		env.Logging.Level = file.Logging.Level
	}
	if file.Logging.Format != "" {
		env.Logging.Format = file.Logging.Format
	}
	if file.Logging.Output != "" {
		env.Logging.Output = file.Logging.Output
	}
	if file.Logging.FilePath != "" {
		env.Logging.FilePath = file.Logging.FilePath
	}
	if file.Logging.Development {
		env.Logging.Development = true
	}
	if file.Baselines.DistinctLoans != 0 {
		env.Baselines.DistinctLoans = file.Baselines.DistinctLoans
	}
	if file.Baselines.EventRows != 0 {
		env.Baselines.EventRows = file.Baselines.EventRows
	}
	return env
}

// findConfigFile returns the first config file found in common locations.
func findConfigFile() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			SourceDir:    ".",
			TablesDir:    "output/3nf",
			DashboardDir: "output/tableau_ready",
			ReportDir:    "output/tableau",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/pipeline.log",
		},
		Baselines: BaselineConfig{
			DistinctLoans: 2004,
			EventRows:     10999,
		},
	}
}
