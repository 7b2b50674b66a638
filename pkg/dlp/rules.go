package dlp

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Rule masks either whole fields by name or substrings matching Pattern.
type Rule struct {
	Name    string   `yaml:"name" json:"name"`
	Fields  []string `yaml:"fields" json:"fields,omitempty"`
	Pattern string   `yaml:"pattern" json:"pattern,omitempty"`
	Mask    string   `yaml:"mask" json:"mask"`
	Enabled bool     `yaml:"enabled" json:"enabled"`
}

type RulesConfig struct {
	Rules []Rule `yaml:"rules" json:"rules"`
}

// LoadRules reads a YAML rule file. An empty path selects DefaultRules.
func LoadRules(path string) (RulesConfig, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return RulesConfig{}, err
	}

	var cfg RulesConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return RulesConfig{}, err
	}
	if len(cfg.Rules) == 0 {
		return RulesConfig{}, errors.New("no redaction rules configured")
	}
	return cfg, nil
}

func DefaultRules() RulesConfig {
	return RulesConfig{Rules: []Rule{
		{Name: "PatientName", Fields: []string{"patient_name", "name", "patient"}, Mask: "[REDACTED]", Enabled: true},
		{Name: "Contact", Fields: []string{"email", "phone", "mobile", "address"}, Mask: "[REDACTED]", Enabled: true},
		{Name: "Email", Pattern: `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`, Mask: "***@***", Enabled: true},
		{Name: "Aadhaar", Pattern: `\b\d{4}\s?\d{4}\s?\d{4}\b`, Mask: "XXXX XXXX XXXX", Enabled: true},
		{Name: "PAN", Pattern: `\b[A-Z]{5}\d{4}[A-Z]\b`, Mask: "XXXXX0000X", Enabled: true},
		{Name: "Phone", Pattern: `(?:\+91[\s-]?)?\b[6-9]\d{9}\b`, Mask: "**********", Enabled: true},
	}}
}
