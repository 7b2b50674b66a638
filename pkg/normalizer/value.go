package normalizer

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/medibots/ml-platform/pkg/common/models"
)

// numeral is a plain decimal literal: optional leading minus, digits, and an
// optional fractional part with at least one digit.
var numeral = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// Normalize coerces client supplied values into the scalar types the model
// pipelines were fit on. It never fails; values it does not recognise pass
// through unchanged.
func Normalize(raw models.Record) models.Record {
	out := make(models.Record, len(raw))
	for key, value := range raw {
		out[key] = NormalizeValue(value)
	}
	return out
}

// NormalizeValue applies, in order: missing markers become nil, "true" and
// "false" become 1 and 0, numeral strings become int64 or float64.
func NormalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(val) {
			return nil
		}
		return val
	case float32:
		if math.IsNaN(float64(val)) {
			return nil
		}
		return val
	case string:
		return normalizeString(val)
	default:
		return v
	}
}

func normalizeString(s string) interface{} {
	switch strings.ToLower(s) {
	case "true":
		return int64(1)
	case "false":
		return int64(0)
	}
	if !numeral.MatchString(s) {
		return s
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return s
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	// out of int64 range
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
