package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ReportConfig is the configuration section of a batch report
type ReportConfig struct {
	Provider          string `yaml:"provider"`
	Model             string `yaml:"model"`
	Dataset           string `yaml:"dataset"`
	CustomInstruction string `yaml:"custominstruction,omitempty"`
	Timestamp         string `yaml:"timestamp"`
}

// Report is the YAML document written after a batch run
type Report struct {
	Config  ReportConfig   `yaml:"config"`
	Summary map[string]int `yaml:"summary"`
	Results []Result       `yaml:"results"`
}

// SaveReport writes the report to outputDir and returns its path
func SaveReport(cfg ReportConfig, results []Result, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	if cfg.Timestamp == "" {
		cfg.Timestamp = time.Now().Format("2006-01-02_15-04-05")
	}

	report := Report{
		Config:  cfg,
		Summary: Summary(results),
		Results: results,
	}

	data, err := yaml.Marshal(&report)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}

	filename := filepath.Join(outputDir, fmt.Sprintf("batch-%s.yaml", cfg.Timestamp))
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write YAML file: %w", err)
	}

	return filename, nil
}
