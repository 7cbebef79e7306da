package program

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/apiviz/apiviz-go/internal/models"
	"github.com/apiviz/apiviz-go/internal/treesitter"
)

// ObjectTypeFields reads the property signatures of an object type or
// interface body node into schema fields.
func ObjectTypeFields(node *sitter.Node, code []byte) []models.SchemaField {
	if node == nil {
		return nil
	}
	var fields []models.SchemaField
	for i := uint(0); i < node.ChildCount(); i++ {
		member := node.Child(i)
		if member.Kind() != "property_signature" {
			continue
		}
		name := member.ChildByFieldName("name")
		if name == nil {
			continue
		}
		fieldName := treesitter.Text(name, code)
		if name.Kind() == "string" {
			fieldName = treesitter.StringContent(name, code)
		}

		field := models.SchemaField{
			Name:     fieldName,
			Type:     "any",
			Optional: hasOptionalMarker(member),
		}
		if annotation := treesitter.NamedChildOfKind(member, "type_annotation"); annotation != nil {
			if typeNode := typeOfAnnotation(annotation); typeNode != nil {
				field.Type = RenderType(typeNode, code)
			}
		}
		fields = append(fields, field)
	}
	return fields
}

// hasOptionalMarker reports whether a property signature carries a "?".
func hasOptionalMarker(member *sitter.Node) bool {
	for i := uint(0); i < member.ChildCount(); i++ {
		if member.Child(i).Kind() == "?" {
			return true
		}
	}
	return false
}

// typeOfAnnotation unwraps "type_annotation" to the type node after ":".
func typeOfAnnotation(annotation *sitter.Node) *sitter.Node {
	for i := uint(0); i < annotation.ChildCount(); i++ {
		child := annotation.Child(i)
		if child.Kind() != ":" {
			return child
		}
	}
	return nil
}

// RenderType renders a type node as a compact single-line string.
func RenderType(node *sitter.Node, code []byte) string {
	text := treesitter.Text(node, code)
	return strings.Join(strings.Fields(text), " ")
}

// zodObjectFields recognizes z.object({...}) initializers, possibly behind
// trailing builder calls like .strict(), and extracts the declared shape.
func zodObjectFields(value *sitter.Node, code []byte) ([]models.SchemaField, bool) {
	obj := findZodObjectCall(value, code)
	if obj == nil {
		return nil, false
	}
	args := obj.ChildByFieldName("arguments")
	if args == nil {
		return nil, false
	}
	shape := treesitter.NamedChildOfKind(args, "object")
	if shape == nil {
		return nil, false
	}

	var fields []models.SchemaField
	for i := uint(0); i < shape.ChildCount(); i++ {
		pair := shape.Child(i)
		if pair.Kind() != "pair" {
			continue
		}
		key := pair.ChildByFieldName("key")
		val := pair.ChildByFieldName("value")
		if key == nil || val == nil {
			continue
		}
		name := treesitter.Text(key, code)
		if key.Kind() == "string" {
			name = treesitter.StringContent(key, code)
		}
		chain := treesitter.Text(val, code)
		fields = append(fields, models.SchemaField{
			Name:     name,
			Type:     zodChainType(chain),
			Optional: strings.Contains(chain, ".optional()") || strings.Contains(chain, ".nullish()"),
		})
	}
	return fields, len(fields) > 0
}

// findZodObjectCall locates the z.object(...) call inside a possibly chained
// zod builder expression.
func findZodObjectCall(value *sitter.Node, code []byte) *sitter.Node {
	var found *sitter.Node
	treesitter.Walk(value, func(n *sitter.Node) bool {
		if found != nil {
			return false
		}
		if n.Kind() != "call_expression" {
			return true
		}
		fn := n.ChildByFieldName("function")
		if fn != nil && fn.Kind() == "member_expression" {
			obj := fn.ChildByFieldName("object")
			prop := fn.ChildByFieldName("property")
			if obj != nil && prop != nil &&
				treesitter.Text(obj, code) == "z" &&
				treesitter.Text(prop, code) == "object" {
				found = n
				return false
			}
		}
		return true
	})
	return found
}

// zodChainType maps the head of a zod builder chain to a type name.
func zodChainType(chain string) string {
	switch {
	case strings.HasPrefix(chain, "z.string"):
		return "string"
	case strings.HasPrefix(chain, "z.number"):
		return "number"
	case strings.HasPrefix(chain, "z.boolean"):
		return "boolean"
	case strings.HasPrefix(chain, "z.array"):
		return "array"
	case strings.HasPrefix(chain, "z.object"):
		return "object"
	case strings.HasPrefix(chain, "z.enum"):
		return "string"
	case strings.HasPrefix(chain, "z.date"):
		return "Date"
	default:
		return "any"
	}
}
