package visitors

import (
	"github.com/pingcap/parser/ast"
)

// replaceVisitor - replace one node by another, wherever its parent holds it.
type replaceVisitor struct {
	*baseVisitor
	target ast.Node
	with   ast.Node
	done   bool
}

func newReplaceVisitor(target, with ast.Node) *replaceVisitor {
	return &replaceVisitor{
		baseVisitor: newBaseVisitor("Replace"),
		target:      target,
		with:        with,
	}
}

var _ ast.Visitor = &replaceVisitor{}

// Enter - Implements Visitor
func (r *replaceVisitor) Enter(n ast.Node) (ast.Node, bool) {
	r.baseVisitor.Enter(n)
	// children of the replaced node are not visited.
	return n, r.done || n == r.target
}

// Leave - Implements Visitor
func (r *replaceVisitor) Leave(n ast.Node) (ast.Node, bool) {
	if n == r.target && !r.done {
		r.done = true
		r.LogDebug("replaced %T under %T", n, r.Parent())
		r.baseVisitor.Leave(n)
		return r.with, true
	}
	r.baseVisitor.Leave(n)
	return n, true
}
