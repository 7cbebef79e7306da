package routes

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/apiviz/apiviz-go/internal/models"
	"github.com/apiviz/apiviz-go/internal/program"
	"github.com/apiviz/apiviz-go/internal/treesitter"
)

// localVar is one declared variable inside a handler body.
type localVar struct {
	typeNode *sitter.Node // type annotation's type, when present
	value    *sitter.Node // initializer expression, when present
}

// handlerCtx carries everything the extraction strategies need for one
// handler: the source, the type program, and a snapshot of local variables
// so identifier references can be chased back to their declarations.
type handlerCtx struct {
	file   string
	code   []byte
	prog   *program.Program
	body   *sitter.Node
	locals map[string]localVar
}

func newHandlerCtx(file string, code []byte, prog *program.Program, h handler) *handlerCtx {
	hc := &handlerCtx{
		file:   file,
		code:   code,
		prog:   prog,
		body:   h.body,
		locals: map[string]localVar{},
	}
	hc.snapshotLocals()
	return hc
}

// snapshotLocals records every identifier-named declaration in the body.
// Destructuring patterns are not snapshotted; the body strategies handle
// those in place.
func (hc *handlerCtx) snapshotLocals() {
	if hc.body == nil {
		return
	}
	treesitter.Walk(hc.body, func(n *sitter.Node) bool {
		if n.Kind() != "variable_declarator" {
			return true
		}
		name := n.ChildByFieldName("name")
		if name == nil || name.Kind() != "identifier" {
			return true
		}
		lv := localVar{value: n.ChildByFieldName("value")}
		if annotation := treesitter.NamedChildOfKind(n, "type_annotation"); annotation != nil {
			lv.typeNode = typeOfAnnotation(annotation)
		}
		hc.locals[treesitter.Text(name, hc.code)] = lv
		return true
	})
}

func (hc *handlerCtx) text(n *sitter.Node) string {
	return treesitter.Text(n, hc.code)
}

// typeFields resolves a type node through the program when available.
func (hc *handlerCtx) typeFields(typeNode *sitter.Node) []models.SchemaField {
	if typeNode == nil {
		return nil
	}
	if hc.prog != nil {
		if fields := hc.prog.TypeFields(typeNode, hc.code, hc.file); len(fields) > 0 {
			return fields
		}
	}
	// Without a program, inline object types still resolve.
	if typeNode.Kind() == "object_type" {
		return program.ObjectTypeFields(typeNode, hc.code)
	}
	return nil
}

// namedFields resolves a plain type or schema name through the program.
func (hc *handlerCtx) namedFields(name string) []models.SchemaField {
	if hc.prog == nil || name == "" {
		return nil
	}
	return hc.prog.Fields(name, hc.file)
}

// typeOfAnnotation unwraps a type_annotation node to the type after ":".
func typeOfAnnotation(annotation *sitter.Node) *sitter.Node {
	for i := uint(0); i < annotation.ChildCount(); i++ {
		child := annotation.Child(i)
		if child.Kind() != ":" {
			return child
		}
	}
	return nil
}

// unwrapExpr strips parentheses and awaits from an expression.
func unwrapExpr(n *sitter.Node) *sitter.Node {
	for n != nil {
		switch n.Kind() {
		case "parenthesized_expression":
			var inner *sitter.Node
			for i := uint(0); i < n.ChildCount(); i++ {
				child := n.Child(i)
				if child.Kind() != "(" && child.Kind() != ")" {
					inner = child
				}
			}
			n = inner
		case "await_expression":
			n = n.Child(n.ChildCount() - 1)
		default:
			return n
		}
	}
	return nil
}

// memberCall matches a call of the shape <recv>.<prop>(...), returning the
// receiver and arguments nodes.
func memberCall(n *sitter.Node, code []byte, prop string) (recv, args *sitter.Node, ok bool) {
	if n == nil || n.Kind() != "call_expression" {
		return nil, nil, false
	}
	fn := n.ChildByFieldName("function")
	if fn == nil || fn.Kind() != "member_expression" {
		return nil, nil, false
	}
	property := fn.ChildByFieldName("property")
	if property == nil || treesitter.Text(property, code) != prop {
		return nil, nil, false
	}
	return fn.ChildByFieldName("object"), n.ChildByFieldName("arguments"), true
}

// firstArg returns the first argument expression of an arguments node.
func firstArg(args *sitter.Node) *sitter.Node {
	if args == nil {
		return nil
	}
	for i := uint(0); i < args.ChildCount(); i++ {
		child := args.Child(i)
		switch child.Kind() {
		case "(", ")", ",", "comment":
			continue
		}
		return child
	}
	return nil
}

// argAt returns the nth argument expression (0-based).
func argAt(args *sitter.Node, n int) *sitter.Node {
	if args == nil {
		return nil
	}
	seen := 0
	for i := uint(0); i < args.ChildCount(); i++ {
		child := args.Child(i)
		switch child.Kind() {
		case "(", ")", ",", "comment":
			continue
		}
		if seen == n {
			return child
		}
		seen++
	}
	return nil
}
