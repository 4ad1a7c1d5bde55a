package style

import (
	"encoding/json"
	"reflect"
)

// Expression is a style expression in its JSON array form, for example
// ["get", "circle-radius"] or ["==", ["get", "kind"], "poi"].
type Expression []any

// Get returns an expression reading the named feature property.
func Get(name string) Expression {
	return Expression{"get", name}
}

// Literal wraps v so that arrays are not interpreted as expressions.
func Literal(v any) Expression {
	return Expression{"literal", v}
}

// Eq returns ["==", ["get", name], v].
func Eq(name string, v any) Expression {
	return Expression{"==", Get(name), v}
}

// All returns an expression that is true when every filter is true.
func All(filters ...Expression) Expression {
	e := Expression{"all"}
	for _, f := range filters {
		e = append(e, f)
	}
	return e
}

// IsGet reports whether v is a ["get", name] expression and returns the name.
func IsGet(v any) (string, bool) {
	e, ok := asExpression(v)
	if !ok || len(e) != 2 {
		return "", false
	}
	if op, _ := e[0].(string); op != "get" {
		return "", false
	}
	name, ok := e[1].(string)
	return name, ok
}

// Matches evaluates a filter against feature properties. A nil filter
// matches everything.
func Matches(filter Expression, props map[string]any) bool {
	if filter == nil {
		return true
	}
	return truthy(Evaluate(filter, props))
}

// Evaluate resolves a property value or expression against feature
// properties. Non-expression values are returned unchanged.
func Evaluate(v any, props map[string]any) any {
	e, ok := asExpression(v)
	if !ok || len(e) == 0 {
		return v
	}
	op, ok := e[0].(string)
	if !ok {
		return v
	}
	args := e[1:]

	switch op {
	case "get":
		if len(args) != 1 {
			return nil
		}
		name, _ := args[0].(string)
		return props[name]
	case "has":
		if len(args) != 1 {
			return false
		}
		name, _ := args[0].(string)
		_, exists := props[name]
		return exists
	case "literal":
		if len(args) != 1 {
			return nil
		}
		return args[0]
	case "!":
		if len(args) != 1 {
			return false
		}
		return !truthy(Evaluate(args[0], props))
	case "==", "!=":
		if len(args) != 2 {
			return false
		}
		eq := equal(Evaluate(args[0], props), Evaluate(args[1], props))
		if op == "!=" {
			return !eq
		}
		return eq
	case "<", "<=", ">", ">=":
		if len(args) != 2 {
			return false
		}
		a, aok := toFloat(Evaluate(args[0], props))
		b, bok := toFloat(Evaluate(args[1], props))
		if !aok || !bok {
			return false
		}
		switch op {
		case "<":
			return a < b
		case "<=":
			return a <= b
		case ">":
			return a > b
		default:
			return a >= b
		}
	case "all":
		for _, a := range args {
			if !truthy(Evaluate(a, props)) {
				return false
			}
		}
		return true
	case "any":
		for _, a := range args {
			if truthy(Evaluate(a, props)) {
				return true
			}
		}
		return false
	case "in":
		if len(args) != 2 {
			return false
		}
		needle := Evaluate(args[0], props)
		haystack := reflect.ValueOf(Evaluate(args[1], props))
		if haystack.Kind() != reflect.Slice {
			return false
		}
		for i := 0; i < haystack.Len(); i++ {
			if equal(needle, haystack.Index(i).Interface()) {
				return true
			}
		}
		return false
	}
	return v
}

func asExpression(v any) (Expression, bool) {
	switch e := v.(type) {
	case Expression:
		return e, true
	case []any:
		return Expression(e), true
	}
	return nil, false
}

func truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	}
	return true
}

func equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// Number converts a numeric property value to float64.
func Number(v any) (float64, bool) {
	return toFloat(v)
}
