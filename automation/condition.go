package automation

import (
	"fmt"
	"reflect"
	"strings"
)

// EvalConditions reports whether every condition holds against the payload.
// An empty condition list is trivially satisfied.
func EvalConditions(conds []Condition, payload map[string]any) bool {
	for _, c := range conds {
		if !evalCondition(c, payload) {
			return false
		}
	}
	return true
}

func evalCondition(c Condition, payload map[string]any) bool {
	val, found := lookupPath(payload, c.Field)

	switch c.Operator {
	case OpEquals:
		return found && valuesEqual(val, c.Value)
	case OpNotEquals:
		return !found || !valuesEqual(val, c.Value)
	case OpGreaterThan:
		a, aok := toFloat(val)
		b, bok := toFloat(c.Value)
		return aok && bok && a > b
	case OpLessThan:
		a, aok := toFloat(val)
		b, bok := toFloat(c.Value)
		return aok && bok && a < b
	case OpContains:
		if !found || c.Value == nil {
			return false
		}
		return strings.Contains(stringify(val), stringify(c.Value))
	case OpExists:
		return found && val != nil
	default:
		return false
	}
}

// lookupPath resolves a dotted path ("shift.worker.id") against nested
// maps. Missing intermediate keys resolve to absent, never panic.
func lookupPath(payload map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var cur any = payload
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// valuesEqual compares scalar payload values. Numbers compare numerically
// so a JSON-decoded float64(3) equals int(3). Objects and arrays use
// strict equality: two distinct composites are never equal, and comparing
// them never panics.
func valuesEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	if !comparableValue(a) || !comparableValue(b) {
		return false
	}
	return a == b
}

func comparableValue(v any) bool {
	if v == nil {
		return true
	}
	return reflect.TypeOf(v).Comparable()
}

func toFloat(v any) (float64, bool) {
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

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
