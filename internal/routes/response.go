package routes

import (
	"sort"
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/apiviz/apiviz-go/internal/models"
	"github.com/apiviz/apiviz-go/internal/treesitter"
)

// extractResponses scans return statements for `X.json(expr, {status})`
// shapes and resolves each response's field list. Responses deduplicate by
// field signature and sort success-first, then by ascending status.
func extractResponses(hc *handlerCtx) []models.ResponseInfo {
	if hc.body == nil {
		return nil
	}

	var responses []models.ResponseInfo
	seen := map[string]bool{}

	treesitter.Walk(hc.body, func(n *sitter.Node) bool {
		if n.Kind() != "return_statement" {
			return true
		}
		call := returnedJSONCall(n, hc)
		if call == nil {
			return true
		}
		args := call.ChildByFieldName("arguments")
		fields := resolveProps(firstArg(args), hc, 0)
		status := statusOption(argAt(args, 1), hc)

		hasErrorField := false
		for _, f := range fields {
			if f.Name == "error" {
				hasErrorField = true
				break
			}
		}
		isError := status >= 400 || hasErrorField
		if status == 0 {
			status = 200
			if hasErrorField {
				status = 400
			}
		}

		sig := responseSignature(fields, isError)
		if seen[sig] {
			return true
		}
		seen[sig] = true
		responses = append(responses, models.ResponseInfo{
			StatusCode: status,
			IsError:    isError,
			Fields:     fields,
		})
		return true
	})

	sort.SliceStable(responses, func(i, j int) bool {
		if responses[i].IsError != responses[j].IsError {
			return !responses[i].IsError
		}
		return responses[i].StatusCode < responses[j].StatusCode
	})
	return responses
}

// returnedJSONCall unwraps a return statement to a `.json(...)` call.
func returnedJSONCall(ret *sitter.Node, hc *handlerCtx) *sitter.Node {
	for i := uint(0); i < ret.ChildCount(); i++ {
		child := ret.Child(i)
		if child.Kind() == "return" || child.Kind() == ";" {
			continue
		}
		expr := unwrapExpr(child)
		if _, _, ok := memberCall(expr, hc.code, "json"); ok {
			if firstArg(expr.ChildByFieldName("arguments")) != nil {
				return expr
			}
		}
	}
	return nil
}

// resolveProps resolves a response expression's top-level properties,
// following identifiers to locals, unwrapping awaits, and expanding object
// spreads recursively.
func resolveProps(expr *sitter.Node, hc *handlerCtx, depth int) []models.SchemaField {
	if depth > 5 {
		return nil
	}
	expr = unwrapExpr(expr)
	if expr == nil {
		return nil
	}

	switch expr.Kind() {
	case "object":
		var fields []models.SchemaField
		for i := uint(0); i < expr.ChildCount(); i++ {
			member := expr.Child(i)
			switch member.Kind() {
			case "pair":
				key := member.ChildByFieldName("key")
				value := member.ChildByFieldName("value")
				if key == nil {
					continue
				}
				name := hc.text(key)
				if key.Kind() == "string" {
					name = treesitter.StringContent(key, hc.code)
				}
				fields = append(fields, models.SchemaField{
					Name: name,
					Type: literalType(value, hc),
				})
			case "shorthand_property_identifier":
				fields = append(fields, models.SchemaField{
					Name: hc.text(member),
					Type: localType(hc.text(member), hc),
				})
			case "spread_element":
				spread := member.Child(member.ChildCount() - 1)
				fields = append(fields, resolveProps(spread, hc, depth+1)...)
			}
		}
		return fields

	case "identifier":
		name := hc.text(expr)
		lv, ok := hc.locals[name]
		if !ok {
			return nil
		}
		if lv.typeNode != nil {
			if fields := hc.typeFields(lv.typeNode); len(fields) > 0 {
				return fields
			}
		}
		return resolveProps(lv.value, hc, depth+1)

	case "as_expression":
		if fields := hc.typeFields(expr.Child(expr.ChildCount() - 1)); len(fields) > 0 {
			return fields
		}
		return resolveProps(expr.Child(0), hc, depth+1)
	}
	return nil
}

// literalType infers a type name from a literal or simple expression.
func literalType(value *sitter.Node, hc *handlerCtx) string {
	value = unwrapExpr(value)
	if value == nil {
		return "any"
	}
	switch value.Kind() {
	case "string", "template_string":
		return "string"
	case "number":
		return "number"
	case "true", "false":
		return "boolean"
	case "null":
		return "null"
	case "array":
		return "array"
	case "object":
		return "object"
	case "identifier":
		return localType(hc.text(value), hc)
	default:
		return "any"
	}
}

// localType infers the type of a local variable from its annotation or
// initializer.
func localType(name string, hc *handlerCtx) string {
	lv, ok := hc.locals[name]
	if !ok {
		return "any"
	}
	if lv.typeNode != nil {
		return strings.Join(strings.Fields(hc.text(lv.typeNode)), " ")
	}
	if value := unwrapExpr(lv.value); value != nil {
		switch value.Kind() {
		case "string", "template_string":
			return "string"
		case "number":
			return "number"
		case "true", "false":
			return "boolean"
		case "array":
			return "array"
		case "object":
			return "object"
		}
	}
	return "any"
}

// statusOption reads a numeric `status` property from the options argument.
func statusOption(options *sitter.Node, hc *handlerCtx) int {
	options = unwrapExpr(options)
	if options == nil || options.Kind() != "object" {
		return 0
	}
	for i := uint(0); i < options.ChildCount(); i++ {
		member := options.Child(i)
		if member.Kind() != "pair" {
			continue
		}
		key := member.ChildByFieldName("key")
		value := member.ChildByFieldName("value")
		if key == nil || value == nil || hc.text(key) != "status" {
			continue
		}
		if value.Kind() == "number" {
			if n, err := strconv.Atoi(hc.text(value)); err == nil {
				return n
			}
		}
	}
	return 0
}

// responseSignature is a stable key over sorted property names plus the
// error flag, used for deduplication.
func responseSignature(fields []models.SchemaField, isError bool) string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	sig := strings.Join(names, ",")
	if isError {
		sig += "|error"
	}
	return sig
}
