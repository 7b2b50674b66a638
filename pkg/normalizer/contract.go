package normalizer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/medibots/ml-platform/pkg/common/models"
	"gopkg.in/yaml.v3"
)

type FieldType string

const (
	FieldNumber   FieldType = "number"
	FieldBoolean  FieldType = "boolean"
	FieldCategory FieldType = "category"
)

var ErrContractViolation = errors.New("field contract violation")

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// Invalid marks err as a client input problem.
func Invalid(err error) error {
	return ValidationError{reason: err}
}

// Field describes one model input column.
type Field struct {
	Name     string      `yaml:"name" json:"name"`
	Type     FieldType   `yaml:"type" json:"type"`
	Required bool        `yaml:"required" json:"required"`
	Default  interface{} `yaml:"default" json:"default,omitempty"`
	Aliases  []string    `yaml:"aliases" json:"aliases,omitempty"`
}

// Contract is the set of columns a domain's model is trained and served on.
type Contract struct {
	Domain models.Domain `yaml:"domain" json:"domain"`
	Fields []Field       `yaml:"fields" json:"fields"`
}

type Contracts map[models.Domain]Contract

type contractFile struct {
	Contracts []Contract `yaml:"contracts"`
}

// LoadContracts reads contracts from a YAML file. Domains the file does not
// mention keep their built-in contract. An empty path yields the defaults.
func LoadContracts(path string) (Contracts, error) {
	defaults := DefaultContracts()
	if path == "" {
		return defaults, nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return defaults, err
	}

	var file contractFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, err
	}
	if len(file.Contracts) == 0 {
		return nil, errors.New("no field contracts configured")
	}

	for _, c := range file.Contracts {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		defaults[c.Domain] = c
	}
	return defaults, nil
}

func (cs Contracts) For(d models.Domain) (Contract, bool) {
	c, ok := cs[d]
	return c, ok
}

func (c Contract) Validate() error {
	if !c.Domain.Valid() {
		return fmt.Errorf("contract for unknown domain %q", c.Domain)
	}
	if len(c.Fields) == 0 {
		return fmt.Errorf("contract %s has no fields", c.Domain)
	}
	seen := make(map[string]struct{}, len(c.Fields))
	for _, f := range c.Fields {
		if f.Name == "" {
			return fmt.Errorf("contract %s has an unnamed field", c.Domain)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("contract %s declares %s twice", c.Domain, f.Name)
		}
		seen[f.Name] = struct{}{}
		switch f.Type {
		case FieldNumber, FieldBoolean, FieldCategory:
		default:
			return fmt.Errorf("contract %s field %s has unknown type %q", c.Domain, f.Name, f.Type)
		}
	}
	return nil
}

// Apply projects a normalized record onto the contract: aliases are
// resolved, absent optional fields take their defaults, booleans become 1/0.
// The result holds exactly the contract's fields.
func (c Contract) Apply(rec models.Record) (models.Record, error) {
	out := make(models.Record, len(c.Fields))
	var problems []string

	for _, f := range c.Fields {
		value, present := lookup(rec, f)
		if !present {
			if f.Required {
				problems = append(problems, fmt.Sprintf("%s is required", f.Name))
				continue
			}
			value = NormalizeValue(f.Default)
		}
		coerced, err := coerce(f, value)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		out[f.Name] = coerced
	}

	if len(problems) > 0 {
		return nil, ValidationError{reason: fmt.Errorf("%w for %s: %s", ErrContractViolation, c.Domain, strings.Join(problems, "; "))}
	}
	return out, nil
}

func lookup(rec models.Record, f Field) (interface{}, bool) {
	if v, ok := rec[f.Name]; ok && v != nil {
		return v, true
	}
	for _, alias := range f.Aliases {
		if v, ok := rec[alias]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func coerce(f Field, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.(bool); ok {
		if b {
			v = int64(1)
		} else {
			v = int64(0)
		}
	}
	num, isNum := toNumber(v)

	switch f.Type {
	case FieldNumber:
		if !isNum {
			return nil, fmt.Errorf("%s must be numeric, got %q", f.Name, fmt.Sprint(v))
		}
		return num, nil
	case FieldBoolean:
		if !isNum || (num != 0 && num != 1) {
			return nil, fmt.Errorf("%s must be a boolean, got %q", f.Name, fmt.Sprint(v))
		}
		return int64(num), nil
	case FieldCategory:
		if isNum {
			return num, nil
		}
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("%s must be a scalar, got %T", f.Name, v)
	}
	return nil, fmt.Errorf("%s has unknown type %q", f.Name, f.Type)
}

func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
