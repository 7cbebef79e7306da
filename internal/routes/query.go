package routes

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/apiviz/apiviz-go/internal/models"
	"github.com/apiviz/apiviz-go/internal/treesitter"
)

// extractQueryParams finds `X.get("name")` reads where X resolves through a
// chain ending in searchParams. URL query values are always string-or-null
// and never required.
func extractQueryParams(hc *handlerCtx) []models.SchemaField {
	if hc.body == nil {
		return nil
	}

	var params []models.SchemaField
	seen := map[string]bool{}

	treesitter.Walk(hc.body, func(n *sitter.Node) bool {
		recv, args, ok := memberCall(n, hc.code, "get")
		if !ok || !isSearchParamsRef(recv, hc, 0) {
			return true
		}
		arg := firstArg(args)
		if arg == nil || arg.Kind() != "string" {
			return true
		}
		name := treesitter.StringContent(arg, hc.code)
		if name == "" || seen[name] {
			return true
		}
		seen[name] = true
		params = append(params, models.SchemaField{
			Name:     name,
			Type:     "string|null",
			Optional: true,
		})
		return true
	})
	return params
}

// isSearchParamsRef reports whether an expression is, or resolves to,
// something named searchParams.
func isSearchParamsRef(expr *sitter.Node, hc *handlerCtx, depth int) bool {
	if depth > 5 {
		return false
	}
	expr = unwrapExpr(expr)
	if expr == nil {
		return false
	}
	switch expr.Kind() {
	case "identifier":
		name := hc.text(expr)
		if name == "searchParams" {
			return true
		}
		if lv, ok := hc.locals[name]; ok {
			return isSearchParamsRef(lv.value, hc, depth+1)
		}
		return false
	case "member_expression":
		prop := expr.ChildByFieldName("property")
		if prop != nil && hc.text(prop) == "searchParams" {
			return true
		}
		return false
	case "new_expression":
		// new URL(req.url).searchParams handled by member_expression;
		// a bare URL object is not a searchParams source.
		return false
	case "call_expression":
		// Chains like new URL(req.url).searchParams assigned through a
		// helper; fall back on the expression text.
		return strings.HasSuffix(hc.text(expr), "searchParams")
	}
	return false
}
