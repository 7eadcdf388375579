package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// SimpleConditionEvaluator evaluates rule conditions of the form
// `field == "value" && total > 1000 || status != "Draft"`. OR binds
// weakest, then AND, then a single comparison. Numbers compare
// numerically when both sides parse, strings otherwise.
type SimpleConditionEvaluator struct{}

func NewSimpleConditionEvaluator() *SimpleConditionEvaluator {
	return &SimpleConditionEvaluator{}
}

func (e *SimpleConditionEvaluator) Evaluate(ctx context.Context, expr string, doc *DocumentSnapshot) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true, nil
	}

	for _, orPart := range strings.Split(expr, "||") {
		ok, err := e.evaluateConjunction(orPart, doc)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (e *SimpleConditionEvaluator) evaluateConjunction(expr string, doc *DocumentSnapshot) (bool, error) {
	for _, andPart := range strings.Split(expr, "&&") {
		ok, err := e.evaluateComparison(andPart, doc)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

var comparisonOps = []string{"==", "!=", ">=", "<=", ">", "<"}

func (e *SimpleConditionEvaluator) evaluateComparison(expr string, doc *DocumentSnapshot) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return false, fmt.Errorf("condition: empty comparison")
	}

	for _, op := range comparisonOps {
		idx := strings.Index(expr, op)
		if idx < 0 {
			continue
		}
		left := resolveOperand(strings.TrimSpace(expr[:idx]), doc)
		right := resolveOperand(strings.TrimSpace(expr[idx+len(op):]), doc)
		return compare(left, right, op)
	}

	// Bare field name: truthy when present and not a false-ish literal
	value := resolveOperand(expr, doc)
	return value != "" && value != "0" && !strings.EqualFold(value, "false"), nil
}

// resolveOperand treats quoted text and numbers as literals and
// everything else as a document field reference.
func resolveOperand(token string, doc *DocumentSnapshot) string {
	if len(token) >= 2 {
		if (token[0] == '"' && token[len(token)-1] == '"') ||
			(token[0] == '\'' && token[len(token)-1] == '\'') {
			return token[1 : len(token)-1]
		}
	}
	if _, err := strconv.ParseFloat(token, 64); err == nil {
		return token
	}
	return doc.Get(token)
}

func compare(left, right, op string) (bool, error) {
	lf, lerr := strconv.ParseFloat(left, 64)
	rf, rerr := strconv.ParseFloat(right, 64)
	numeric := lerr == nil && rerr == nil

	switch op {
	case "==":
		if numeric {
			return lf == rf, nil
		}
		return left == right, nil
	case "!=":
		if numeric {
			return lf != rf, nil
		}
		return left != right, nil
	case ">":
		if numeric {
			return lf > rf, nil
		}
		return left > right, nil
	case ">=":
		if numeric {
			return lf >= rf, nil
		}
		return left >= right, nil
	case "<":
		if numeric {
			return lf < rf, nil
		}
		return left < right, nil
	case "<=":
		if numeric {
			return lf <= rf, nil
		}
		return left <= right, nil
	default:
		return false, fmt.Errorf("condition: unsupported operator %q", op)
	}
}
