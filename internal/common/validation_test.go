package common

import (
	"math"
	"testing"
	"time"
)

func TestNumericRulesRejectNaN(t *testing.T) {
	tests := []struct {
		name  string
		rule  ValidationRule
		value interface{}
		ok    bool
	}{
		{"non-negative zero", NonNegative, 0.0, true},
		{"non-negative negative", NonNegative, -0.5, false},
		{"non-negative NaN", NonNegative, math.NaN(), false},
		{"non-negative float32 NaN", NonNegative, float32(math.NaN()), false},
		{"non-negative string", NonNegative, "1", false},
		{"between inside", Between(0, 100), 100.0, true},
		{"between outside", Between(0, 100), 100.01, false},
		{"between NaN", Between(0, 100), math.NaN(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule("field", tt.value)
			if tt.ok != (err == nil) {
				t.Fatalf("rule(%v) = %v", tt.value, err)
			}
		})
	}
}

func TestValidatorCollectsErrors(t *testing.T) {
	v := NewValidator()
	v.Field("description", "", Required, MaxLength(3)).
		Field("code", "abcd", MaxLength(3)).
		Field("date", "2030-01-01", DateNotAfter(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	if got := len(v.Errors()); got != 3 {
		t.Fatalf("errors = %d (%s)", got, v.ErrorMessage())
	}
	if !IsValidationError(v.Error()) {
		t.Errorf("Error() = %v", v.Error())
	}
}
