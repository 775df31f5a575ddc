package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleFor(t *testing.T) {
	tests := []struct {
		field    string
		expected string
	}{
		{"email", "email"},
		{"customer_email", "email"},
		{"created_at", "date"},
		{"order_date", "date"},
		{"total_amount", "numeric"},
		{"unit_price", "numeric"},
		{"item_count", "numeric"},
		{"description", ""},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			rule := RuleFor(tt.field, DefaultFieldRules)
			if tt.expected == "" {
				assert.Nil(t, rule)
				return
			}
			require.NotNil(t, rule)
			assert.Equal(t, tt.expected, rule.Name)
		})
	}
}

func TestRuleValidators(t *testing.T) {
	emailRule := RuleFor("email", DefaultFieldRules)
	require.NotNil(t, emailRule)
	assert.True(t, emailRule.Validate("user@example.com"))
	assert.False(t, emailRule.Validate("user@"))
	assert.False(t, emailRule.Validate(42))

	dateRule := RuleFor("created_at", DefaultFieldRules)
	require.NotNil(t, dateRule)
	assert.True(t, dateRule.Validate("2026-08-01"))
	assert.True(t, dateRule.Validate(time.Now()))
	assert.False(t, dateRule.Validate("yesterday"))
	assert.False(t, dateRule.Validate(time.Time{}))

	numericRule := RuleFor("amount", DefaultFieldRules)
	require.NotNil(t, numericRule)
	assert.True(t, numericRule.Validate(12.5))
	assert.True(t, numericRule.Validate("99"))
	assert.False(t, numericRule.Validate("free"))
}

func TestClassifyValue(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		expected ValueType
	}{
		{"nil", nil, TypeNull},
		{"empty string", "", TypeNull},
		{"bool", true, TypeBoolean},
		{"float", 1.5, TypeNumber},
		{"int", 7, TypeNumber},
		{"time", time.Now(), TypeDate},
		{"date string", "2026-08-01", TypeDateString},
		{"email string", "a@b.com", TypeEmailString},
		{"plain string", "hello", TypePlainString},
		{"object", map[string]int{"a": 1}, TypeObject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyValue(tt.value))
		})
	}
}

func TestIsFilled(t *testing.T) {
	assert.False(t, IsFilled(nil))
	assert.False(t, IsFilled(""))
	assert.False(t, IsFilled("   "))
	assert.True(t, IsFilled("x"))
	assert.True(t, IsFilled(0))
	assert.True(t, IsFilled(false))
}
