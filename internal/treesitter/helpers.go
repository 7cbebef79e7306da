package treesitter

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Text extracts the source text of a node using byte offsets.
func Text(node *sitter.Node, code []byte) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if int(end) > len(code) {
		end = uint(len(code))
	}
	return string(code[start:end])
}

// StringContent returns the inner text of a string node, without quotes.
func StringContent(node *sitter.Node, code []byte) string {
	if node == nil {
		return ""
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == "string_fragment" || child.Kind() == "string_content" {
			return Text(child, code)
		}
	}
	return strings.Trim(Text(node, code), "\"'`")
}

// Line returns the 1-based line number of a node.
func Line(node *sitter.Node) int {
	return int(node.StartPosition().Row) + 1
}

// Walk visits node and all descendants with an explicit stack, calling visit
// for each. Returning false from visit skips that node's children.
func Walk(node *sitter.Node, visit func(*sitter.Node) bool) {
	if node == nil {
		return
	}
	stack := []*sitter.Node{node}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visit(n) {
			continue
		}
		// Push children in reverse so they pop in source order.
		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			if child := n.Child(uint(i)); child != nil {
				stack = append(stack, child)
			}
		}
	}
}

// NamedChildOfKind returns the first direct child with the given kind.
func NamedChildOfKind(node *sitter.Node, kind string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == kind {
			return child
		}
	}
	return nil
}
