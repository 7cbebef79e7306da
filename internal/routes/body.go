package routes

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/apiviz/apiviz-go/internal/models"
	"github.com/apiviz/apiviz-go/internal/treesitter"
)

// bodyStrategy is one request-body detection strategy. Strategies are tried
// in fixed priority order; the first one that detects a node and extracts a
// non-empty field list wins.
type bodyStrategy interface {
	name() string
	detect(n *sitter.Node, hc *handlerCtx) bool
	extract(n *sitter.Node, hc *handlerCtx) []models.SchemaField
}

// bodyStrategies in priority order, highest first.
var bodyStrategies = []bodyStrategy{
	assertedJSONStrategy{},
	destructuredJSONStrategy{},
	formDataStrategy{},
	deferredJSONStrategy{},
}

// extractRequestBody resolves the request body shape of one handler. A zod
// parse call takes precedence over the generic chain whenever it yields a
// non-empty shape.
func extractRequestBody(hc *handlerCtx) []models.SchemaField {
	if hc.body == nil {
		return nil
	}

	if fields := zodParsedFields(hc); len(fields) > 0 {
		return fields
	}

	for _, strategy := range bodyStrategies {
		var fields []models.SchemaField
		treesitter.Walk(hc.body, func(n *sitter.Node) bool {
			if fields != nil {
				return false
			}
			if strategy.detect(n, hc) {
				if got := strategy.extract(n, hc); len(got) > 0 {
					fields = got
					return false
				}
			}
			return true
		})
		if len(fields) > 0 {
			return fields
		}
	}
	return nil
}

// zodParsedFields finds schema.parse(...) / schema.safeParse(...) calls and
// resolves the schema variable through the program.
func zodParsedFields(hc *handlerCtx) []models.SchemaField {
	var fields []models.SchemaField
	treesitter.Walk(hc.body, func(n *sitter.Node) bool {
		if fields != nil {
			return false
		}
		for _, method := range []string{"parse", "safeParse", "parseAsync", "safeParseAsync"} {
			recv, _, ok := memberCall(n, hc.code, method)
			if !ok || recv == nil || recv.Kind() != "identifier" {
				continue
			}
			if got := hc.namedFields(hc.text(recv)); len(got) > 0 {
				fields = got
				return false
			}
		}
		return true
	})
	return fields
}

// isJSONCall matches <recv>.json() with no arguments, the request-body read.
func isJSONCall(n *sitter.Node, code []byte) bool {
	_, args, ok := memberCall(n, code, "json")
	if !ok {
		return false
	}
	return firstArg(args) == nil
}

// assertedJSONStrategy: `(await req.json()) as T` uses T's properties.
type assertedJSONStrategy struct{}

func (assertedJSONStrategy) name() string { return "asserted-json" }

func (assertedJSONStrategy) detect(n *sitter.Node, hc *handlerCtx) bool {
	if n.Kind() != "as_expression" {
		return false
	}
	inner := unwrapExpr(n.Child(0))
	return isJSONCall(inner, hc.code)
}

func (assertedJSONStrategy) extract(n *sitter.Node, hc *handlerCtx) []models.SchemaField {
	typeNode := n.Child(n.ChildCount() - 1)
	return hc.typeFields(typeNode)
}

// destructuredJSONStrategy: `const {a, b} = await req.json()`, with or
// without a type annotation, or destructuring an annotated intermediate
// variable.
type destructuredJSONStrategy struct{}

func (destructuredJSONStrategy) name() string { return "destructured-json" }

func (destructuredJSONStrategy) detect(n *sitter.Node, hc *handlerCtx) bool {
	if n.Kind() != "variable_declarator" {
		return false
	}
	name := n.ChildByFieldName("name")
	if name == nil || name.Kind() != "object_pattern" {
		return false
	}
	value := unwrapExpr(n.ChildByFieldName("value"))
	if value == nil {
		return false
	}
	if value.Kind() == "as_expression" {
		value = unwrapExpr(value.Child(0))
	}
	if isJSONCall(value, hc.code) {
		return true
	}
	// Destructuring a variable that was itself assigned the body read.
	if value.Kind() == "identifier" {
		if lv, ok := hc.locals[hc.text(value)]; ok {
			if lv.typeNode != nil {
				return isJSONCall(unwrapExpr(lv.value), hc.code)
			}
		}
	}
	return false
}

func (destructuredJSONStrategy) extract(n *sitter.Node, hc *handlerCtx) []models.SchemaField {
	// Prefer an asserted or annotated type over the raw binding names.
	value := unwrapExpr(n.ChildByFieldName("value"))
	if value != nil && value.Kind() == "as_expression" {
		if fields := hc.typeFields(value.Child(value.ChildCount() - 1)); len(fields) > 0 {
			return fields
		}
	}
	if annotation := treesitter.NamedChildOfKind(n, "type_annotation"); annotation != nil {
		if fields := hc.typeFields(typeOfAnnotation(annotation)); len(fields) > 0 {
			return fields
		}
	}
	if value != nil && value.Kind() == "identifier" {
		if lv, ok := hc.locals[hc.text(value)]; ok && lv.typeNode != nil {
			if fields := hc.typeFields(lv.typeNode); len(fields) > 0 {
				return fields
			}
		}
	}
	return bindingFields(n.ChildByFieldName("name"), hc)
}

// bindingFields reads the binding elements of an object pattern. A binding
// with a default value is optional; types stay unknown without annotations.
func bindingFields(pattern *sitter.Node, hc *handlerCtx) []models.SchemaField {
	if pattern == nil {
		return nil
	}
	var fields []models.SchemaField
	for i := uint(0); i < pattern.ChildCount(); i++ {
		el := pattern.Child(i)
		switch el.Kind() {
		case "shorthand_property_identifier_pattern":
			fields = append(fields, models.SchemaField{
				Name: hc.text(el),
				Type: "any",
			})
		case "object_assignment_pattern":
			left := el.ChildByFieldName("left")
			if left == nil {
				left = el.Child(0)
			}
			fields = append(fields, models.SchemaField{
				Name:     hc.text(left),
				Type:     "any",
				Optional: true,
			})
		case "pair_pattern":
			key := el.ChildByFieldName("key")
			if key != nil {
				fields = append(fields, models.SchemaField{
					Name: hc.text(key),
					Type: "any",
				})
			}
		}
	}
	return fields
}

// formDataStrategy: formData.get("field") reads, each optional by nature.
type formDataStrategy struct{}

func (formDataStrategy) name() string { return "form-data" }

func (formDataStrategy) detect(n *sitter.Node, hc *handlerCtx) bool {
	name, _, ok := formDataGet(n, hc)
	return ok && name != ""
}

// extract gathers every form field in the handler, not just the matched one.
func (formDataStrategy) extract(_ *sitter.Node, hc *handlerCtx) []models.SchemaField {
	var fields []models.SchemaField
	seen := map[string]bool{}
	treesitter.Walk(hc.body, func(n *sitter.Node) bool {
		name, fieldType, ok := formDataGet(n, hc)
		if ok && name != "" && !seen[name] {
			seen[name] = true
			fields = append(fields, models.SchemaField{
				Name:     name,
				Type:     fieldType,
				Optional: true,
			})
		}
		return true
	})
	return fields
}

// formDataGet matches `<formData>.get("name")`, possibly inside a cast, and
// returns the field name and asserted type.
func formDataGet(n *sitter.Node, hc *handlerCtx) (name, fieldType string, ok bool) {
	fieldType = "FormDataEntryValue"

	target := n
	if n != nil && n.Kind() == "as_expression" {
		if typeNode := n.Child(n.ChildCount() - 1); typeNode != nil {
			fieldType = strings.Join(strings.Fields(hc.text(typeNode)), " ")
		}
		target = unwrapExpr(n.Child(0))
	}

	recv, args, matched := memberCall(target, hc.code, "get")
	if !matched || recv == nil {
		return "", "", false
	}
	if !isFormDataRef(recv, hc) {
		return "", "", false
	}
	arg := firstArg(args)
	if arg == nil || arg.Kind() != "string" {
		return "", "", false
	}
	return treesitter.StringContent(arg, hc.code), fieldType, true
}

// isFormDataRef reports whether an expression refers to a form-data object:
// a formData()-call result or a local assigned from one.
func isFormDataRef(recv *sitter.Node, hc *handlerCtx) bool {
	recv = unwrapExpr(recv)
	if recv == nil {
		return false
	}
	if _, _, ok := memberCall(recv, hc.code, "formData"); ok {
		return true
	}
	if recv.Kind() == "identifier" {
		name := hc.text(recv)
		if strings.Contains(strings.ToLower(name), "formdata") {
			return true
		}
		if lv, ok := hc.locals[name]; ok {
			if value := unwrapExpr(lv.value); value != nil {
				if _, _, ok := memberCall(value, hc.code, "formData"); ok {
					return true
				}
			}
		}
	}
	return false
}

// deferredJSONStrategy: `const body = await req.json()` feeding a later
// destructuring of that same variable.
type deferredJSONStrategy struct{}

func (deferredJSONStrategy) name() string { return "deferred-json" }

func (deferredJSONStrategy) detect(n *sitter.Node, hc *handlerCtx) bool {
	if n.Kind() != "variable_declarator" {
		return false
	}
	name := n.ChildByFieldName("name")
	if name == nil || name.Kind() != "identifier" {
		return false
	}
	return isJSONCall(unwrapExpr(n.ChildByFieldName("value")), hc.code)
}

func (deferredJSONStrategy) extract(n *sitter.Node, hc *handlerCtx) []models.SchemaField {
	bodyVar := hc.text(n.ChildByFieldName("name"))

	var fields []models.SchemaField
	treesitter.Walk(hc.body, func(candidate *sitter.Node) bool {
		if fields != nil {
			return false
		}
		if candidate.Kind() != "variable_declarator" {
			return true
		}
		pattern := candidate.ChildByFieldName("name")
		value := unwrapExpr(candidate.ChildByFieldName("value"))
		if pattern == nil || pattern.Kind() != "object_pattern" {
			return true
		}
		if value == nil || value.Kind() != "identifier" || hc.text(value) != bodyVar {
			return true
		}
		fields = bindingFields(pattern, hc)
		return false
	})
	return fields
}
