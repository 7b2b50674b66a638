package normalizer

import (
	"math"
	"reflect"
	"testing"

	"github.com/medibots/ml-platform/pkg/common/models"
)

func TestNormalizeValue(t *testing.T) {
	cases := []struct {
		name string
		in   interface{}
		want interface{}
	}{
		{"nil", nil, nil},
		{"nan", math.NaN(), nil},
		{"true lower", "true", int64(1)},
		{"true upper", "TRUE", int64(1)},
		{"true title", "True", int64(1)},
		{"false mixed", "fAlSe", int64(0)},
		{"integer", "42", int64(42)},
		{"negative integer", "-7", int64(-7)},
		{"float", "1500.50", 1500.5},
		{"negative float", "-0.25", -0.25},
		{"leading zeros", "007", int64(7)},
		{"huge integer", "123456789012345678901234", 1.2345678901234568e23},
		{"multiple dots", "1.2.3", "1.2.3"},
		{"inner minus", "1-2.3.4", "1-2.3.4"},
		{"trailing dot", "1.", "1."},
		{"leading dot", ".5", ".5"},
		{"trailing minus", "5-", "5-"},
		{"empty", "", ""},
		{"word", "PPO", "PPO"},
		{"padded", " 12", " 12"},
		{"float passthrough", 3.5, 3.5},
		{"bool passthrough", true, true},
		{"int passthrough", 9, 9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeValue(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("NormalizeValue(%#v) = %#v, want %#v", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeClaimScenario(t *testing.T) {
	got := Normalize(models.Record{"amount": "1500.50", "preauthorization_obtained": "true"})
	want := models.Record{"amount": 1500.5, "preauthorization_obtained": int64(1)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestNormalizeKeepsExplicitNulls(t *testing.T) {
	got := Normalize(models.Record{"secondary_icd_code": nil, "score": math.NaN()})
	if len(got) != 2 {
		t.Fatalf("expected both keys kept, got %v", got)
	}
	for k, v := range got {
		if v != nil {
			t.Errorf("%s: expected nil, got %#v", k, v)
		}
	}
}
