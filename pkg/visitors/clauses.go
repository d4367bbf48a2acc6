package visitors

import (
	"strconv"

	"github.com/pingcap/parser/ast"
	"github.com/pingcap/parser/opcode"
)

// ClauseKind - what dropping a Clause removes.
type ClauseKind int

const (
	ClauseWhere ClauseKind = iota
	ClauseGroupBy
	ClauseHaving
	ClauseOrderBy
	ClauseLimit
	ClauseDistinct
	// ClauseField one of several select fields.
	ClauseField
	// ClauseAssignment one of several SET assignments of an update.
	ClauseAssignment
	// ClauseOperand one side of AND / OR, the other side takes its place.
	ClauseOperand
)

var clauseKindNames = []string{
	"where", "group-by", "having", "order-by", "limit", "distinct", "field", "assignment", "operand",
}

func (k ClauseKind) String() string {
	if int(k) < len(clauseKindNames) {
		return clauseKindNames[k]
	}
	return "clause(" + strconv.Itoa(int(k)) + ")"
}

// Clause - a removable part of a statement, in walk order.
type Clause struct {
	Kind ClauseKind
	drop func(root ast.Node)
}

// Drop removes the clause from root, the statement it was collected from.
// Only one clause of a collection may be dropped: the others may refer to
// nodes the drop detached.
func (c Clause) Drop(root ast.Node) {
	c.drop(root)
}

// ClauseCollector - collect clauses that can be removed from a statement
// while keeping it syntactically valid.
type ClauseCollector struct {
	*baseVisitor
	clauses []Clause
}

// NewClauseCollector -
func NewClauseCollector() *ClauseCollector {
	return &ClauseCollector{
		baseVisitor: newBaseVisitor("ClauseCollector"),
	}
}

var _ ast.Visitor = &ClauseCollector{}

// Clauses collected so far.
func (c *ClauseCollector) Clauses() []Clause {
	return c.clauses
}

func (c *ClauseCollector) add(kind ClauseKind, drop func(root ast.Node)) {
	c.clauses = append(c.clauses, Clause{Kind: kind, drop: drop})
}

// Enter - Implements Visitor
func (c *ClauseCollector) Enter(n ast.Node) (ast.Node, bool) {
	c.baseVisitor.Enter(n)
	switch v := n.(type) {
	case *ast.SelectStmt:
		c.selectStmt(v)
	case *ast.UpdateStmt:
		if v.Where != nil {
			c.add(ClauseWhere, func(ast.Node) { v.Where = nil })
		}
		if v.Order != nil {
			c.add(ClauseOrderBy, func(ast.Node) { v.Order = nil })
		}
		if v.Limit != nil {
			c.add(ClauseLimit, func(ast.Node) { v.Limit = nil })
		}
		if len(v.List) > 1 {
			for _, a := range v.List {
				a := a
				c.add(ClauseAssignment, func(ast.Node) { v.List = withoutAssignment(v.List, a) })
			}
		}
	case *ast.DeleteStmt:
		if v.Where != nil {
			c.add(ClauseWhere, func(ast.Node) { v.Where = nil })
		}
		if v.Order != nil {
			c.add(ClauseOrderBy, func(ast.Node) { v.Order = nil })
		}
		if v.Limit != nil {
			c.add(ClauseLimit, func(ast.Node) { v.Limit = nil })
		}
	case *ast.BinaryOperationExpr:
		if v.Op == opcode.LogicAnd || v.Op == opcode.LogicOr {
			for _, keep := range []ast.ExprNode{v.L, v.R} {
				keep := keep
				c.add(ClauseOperand, func(root ast.Node) {
					root.Accept(newReplaceVisitor(v, keep))
				})
			}
		}
	}
	return n, false
}

func (c *ClauseCollector) selectStmt(v *ast.SelectStmt) {
	if v.Where != nil {
		c.add(ClauseWhere, func(ast.Node) { v.Where = nil })
	}
	if v.GroupBy != nil {
		c.add(ClauseGroupBy, func(ast.Node) { v.GroupBy = nil })
	}
	if v.Having != nil {
		c.add(ClauseHaving, func(ast.Node) { v.Having = nil })
	}
	if v.OrderBy != nil {
		c.add(ClauseOrderBy, func(ast.Node) { v.OrderBy = nil })
	}
	if v.Limit != nil {
		c.add(ClauseLimit, func(ast.Node) { v.Limit = nil })
	}
	if v.Distinct {
		c.add(ClauseDistinct, func(ast.Node) { v.Distinct = false })
	}
	if v.Fields != nil && len(v.Fields.Fields) > 1 {
		for _, f := range v.Fields.Fields {
			f := f
			c.add(ClauseField, func(ast.Node) { v.Fields.Fields = withoutField(v.Fields.Fields, f) })
		}
	}
}

// Leave - Implements Visitor
func (c *ClauseCollector) Leave(n ast.Node) (ast.Node, bool) {
	c.baseVisitor.Leave(n)
	return n, true
}

func withoutField(fields []*ast.SelectField, f *ast.SelectField) []*ast.SelectField {
	rst := make([]*ast.SelectField, 0, len(fields))
	for _, v := range fields {
		if v != f {
			rst = append(rst, v)
		}
	}
	return rst
}

func withoutAssignment(list []*ast.Assignment, a *ast.Assignment) []*ast.Assignment {
	rst := make([]*ast.Assignment, 0, len(list))
	for _, v := range list {
		if v != a {
			rst = append(rst, v)
		}
	}
	return rst
}

// CollectClauses walks stmt and returns its removable clauses.
func CollectClauses(stmt ast.Node) []Clause {
	v := NewClauseCollector()
	v.DisableLogging(true)
	stmt.Accept(v)
	return v.Clauses()
}
