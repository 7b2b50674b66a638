package dlp

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRedactMasksFieldsAndPatterns(t *testing.T) {
	redactor, err := NewRedactor(DefaultRules())
	if err != nil {
		t.Fatalf("failed to create redactor: %v", err)
	}

	data := map[string]interface{}{
		"patient_name":       "Asha Rao",
		"claim_amount":       1500.5,
		"notes":              "call 9876543210 or asha@example.com",
		"insurance_provider": "Star",
		"nested":             map[string]interface{}{"Phone": "+91 9876543210"},
	}
	out := redactor.Redact(data)

	if out["patient_name"] != "[REDACTED]" {
		t.Fatalf("expected name masked, got %v", out["patient_name"])
	}
	if out["claim_amount"] != 1500.5 || out["insurance_provider"] != "Star" {
		t.Fatalf("non personal fields changed: %v", out)
	}
	if out["notes"] != "call ********** or ***@***" {
		t.Fatalf("unexpected notes %q", out["notes"])
	}
	if nested := out["nested"].(map[string]interface{}); nested["Phone"] != "[REDACTED]" {
		t.Fatalf("expected nested phone masked, got %v", nested)
	}
	if data["patient_name"] != "Asha Rao" {
		t.Fatal("input was mutated")
	}
}

func TestFindings(t *testing.T) {
	redactor, _ := NewRedactor(DefaultRules())
	found := redactor.Findings(map[string]interface{}{
		"patient_name": "Asha Rao",
		"id_number":    "1234 5678 9012",
		"weekday":      "Monday",
	})
	if len(found) != 2 {
		t.Fatalf("expected two findings, got %v", found)
	}
	if got := redactor.Findings(map[string]interface{}{"weekday": "Monday"}); len(got) != 0 {
		t.Fatalf("expected no findings, got %v", got)
	}
}

func TestNilRedactorPassesThrough(t *testing.T) {
	var r *Redactor
	data := map[string]interface{}{"patient_name": "Asha"}
	if out := r.Redact(data); out["patient_name"] != "Asha" {
		t.Fatal("nil redactor must not mask")
	}
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := "rules:\n  - name: Insurer\n    fields: [insurance_provider]\n    mask: \"***\"\n    enabled: true\n  - name: Off\n    fields: [weekday]\n    mask: \"***\"\n    enabled: false\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadRules(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	redactor, err := NewRedactor(cfg)
	if err != nil {
		t.Fatal(err)
	}
	out := redactor.Redact(map[string]interface{}{"insurance_provider": "Star", "weekday": "Monday"})
	if out["insurance_provider"] != "***" || out["weekday"] != "Monday" {
		t.Fatalf("unexpected redaction %v", out)
	}

	if _, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if cfg, err := LoadRules(""); err != nil || len(cfg.Rules) == 0 {
		t.Fatal("expected default rules for empty path")
	}
}

func TestInvalidPattern(t *testing.T) {
	_, err := NewRedactor(RulesConfig{Rules: []Rule{{Name: "bad", Pattern: "(", Enabled: true}}})
	if err == nil {
		t.Fatal("expected compile error")
	}
}
