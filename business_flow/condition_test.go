package businessflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleConditionEvaluator(t *testing.T) {
	e := NewSimpleConditionEvaluator()
	ctx := context.Background()

	doc := &DocumentSnapshot{
		Doctype: "Sales Invoice",
		Name:    "INV-001",
		Fields: map[string]string{
			"status":      "Paid",
			"grand_total": "1500",
			"currency":    "IRR",
			"is_return":   "0",
			"priority":    "high",
		},
	}

	tests := []struct {
		name     string
		expr     string
		expected bool
	}{
		{"empty expression is true", "", true},
		{"string equality", `status == "Paid"`, true},
		{"string inequality", `status != "Draft"`, true},
		{"single quoted literal", `priority == 'high'`, true},
		{"numeric greater than", "grand_total > 1000", true},
		{"numeric less than fails", "grand_total < 1000", false},
		{"numeric equality", "grand_total == 1500", true},
		{"greater or equal boundary", "grand_total >= 1500", true},
		{"and both hold", `status == "Paid" && grand_total > 1000`, true},
		{"and one fails", `status == "Paid" && grand_total > 2000`, false},
		{"or rescues", `status == "Draft" || grand_total > 1000`, true},
		{"or all fail", `status == "Draft" || grand_total > 2000`, false},
		{"and binds tighter than or", `status == "Draft" && grand_total > 0 || currency == "IRR"`, true},
		{"bare field truthy", "priority", true},
		{"bare zero field falsy", "is_return", false},
		{"bare missing field falsy", "discount", false},
		{"missing field comparison", `missing == ""`, true},
		{"string comparison when not numeric", `currency > "AAA"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(ctx, tt.expr, doc)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSimpleConditionEvaluatorErrors(t *testing.T) {
	e := NewSimpleConditionEvaluator()
	ctx := context.Background()
	doc := &DocumentSnapshot{Fields: map[string]string{"a": "1"}}

	_, err := e.Evaluate(ctx, "a == 1 &&", doc)
	assert.Error(t, err)

	_, err = e.Evaluate(ctx, "|| a", doc)
	assert.Error(t, err)
}

func TestSimpleConditionEvaluatorNilDocument(t *testing.T) {
	e := NewSimpleConditionEvaluator()
	ctx := context.Background()

	got, err := e.Evaluate(ctx, `status == ""`, nil)
	require.NoError(t, err)
	assert.True(t, got)
}
