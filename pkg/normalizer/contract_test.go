package normalizer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/medibots/ml-platform/pkg/common/models"
)

func TestDefaultContractsValidate(t *testing.T) {
	for d, c := range DefaultContracts() {
		if err := c.Validate(); err != nil {
			t.Fatalf("%s: %v", d, err)
		}
	}
}

func TestApplyFillsDefaultsAndAliases(t *testing.T) {
	contract, _ := DefaultContracts().For(models.DomainDenial)

	out, err := contract.Apply(Normalize(models.Record{
		"amount":                    "1500.50",
		"preauthorization_obtained": "true",
		"patient_name":              "Asha",
	}))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(out) != len(contract.Fields) {
		t.Fatalf("expected %d fields, got %d", len(contract.Fields), len(out))
	}
	if out["claim_amount"] != 1500.5 {
		t.Errorf("alias not resolved: %#v", out["claim_amount"])
	}
	if out["preauthorization_obtained"] != int64(1) {
		t.Errorf("boolean not coerced: %#v", out["preauthorization_obtained"])
	}
	if out["documentation_complete"] != int64(1) {
		t.Errorf("default boolean not applied: %#v", out["documentation_complete"])
	}
	if out["policy_type"] != "PPO" {
		t.Errorf("default category not applied: %#v", out["policy_type"])
	}
	if out["cpt_code"] != float64(99213) {
		t.Errorf("numeral default should normalize like client input: %#v", out["cpt_code"])
	}
	if _, ok := out["patient_name"]; ok {
		t.Error("fields outside the contract must be dropped")
	}
}

func TestApplyJSONBooleans(t *testing.T) {
	contract, _ := DefaultContracts().For(models.DomainNoShow)
	out, err := contract.Apply(Normalize(models.Record{"sms_reminder_sent": false}))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out["sms_reminder_sent"] != int64(0) {
		t.Fatalf("expected 0, got %#v", out["sms_reminder_sent"])
	}
}

func TestApplyRejectsBadValues(t *testing.T) {
	contract, _ := DefaultContracts().For(models.DomainPaymentDelay)

	_, err := contract.Apply(Normalize(models.Record{"total_amount": "1.2.3", "installment_plan": "maybe"}))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if !errors.Is(err, ErrContractViolation) {
		t.Fatal("expected ErrContractViolation in chain")
	}
}

func TestApplyRequiredField(t *testing.T) {
	contract := Contract{
		Domain: models.DomainNoShow,
		Fields: []Field{{Name: "patient_age", Type: FieldNumber, Required: true}},
	}
	if _, err := contract.Apply(models.Record{"patient_age": nil}); !IsValidationError(err) {
		t.Fatalf("expected missing required field to fail, got %v", err)
	}
	out, err := contract.Apply(models.Record{"patient_age": int64(30)})
	if err != nil || out["patient_age"] != float64(30) {
		t.Fatalf("unexpected result %v, %v", out, err)
	}
}

func TestInvoiceAliasBothWays(t *testing.T) {
	contract, _ := DefaultContracts().For(models.DomainPaymentDelay)
	out, err := contract.Apply(Normalize(models.Record{"invoice_amount": "2500"}))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out["total_amount"] != float64(2500) {
		t.Fatalf("expected invoice_amount to populate total_amount, got %#v", out["total_amount"])
	}
}

func TestLoadContractsFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contracts.yaml")
	content := `
contracts:
  - domain: no-show
    fields:
      - name: patient_age
        type: number
        required: true
      - name: weekday
        type: category
        default: Monday
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	contracts, err := LoadContracts(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	noShow, _ := contracts.For(models.DomainNoShow)
	if len(noShow.Fields) != 2 || !noShow.Fields[0].Required {
		t.Fatalf("unexpected contract %+v", noShow)
	}
	if _, ok := contracts.For(models.DomainDenial); !ok {
		t.Fatal("domains absent from the file should keep defaults")
	}
}

func TestLoadContractsRejectsUnknownType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	content := "contracts:\n  - domain: denial\n    fields:\n      - name: x\n        type: date\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadContracts(path); err == nil {
		t.Fatal("expected unknown field type to be rejected")
	}
}
