package visitors

import (
	"fmt"

	"github.com/pingcap/parser/ast"
	"github.com/rs/zerolog/log"
)

// baseVisitor - the base of visitors, providing the ancestor trace and logging.
type baseVisitor struct {
	name string

	traceCtx       []ast.Node
	disableLogging bool
}

func newBaseVisitor(name string) *baseVisitor {
	return &baseVisitor{
		name: name,
	}
}

// Enter - Implements Visitor
func (b *baseVisitor) Enter(n ast.Node) (ast.Node, bool) {
	b.traceCtx = append(b.traceCtx, n)
	return n, false
}

// Leave - Implements Visitor
func (b *baseVisitor) Leave(n ast.Node) (ast.Node, bool) {
	b.traceCtx = b.traceCtx[:len(b.traceCtx)-1]
	return n, true
}

// Parent - the node entered before the current one, nil at root.
func (b *baseVisitor) Parent() ast.Node {
	if len(b.traceCtx) < 2 {
		return nil
	}
	return b.traceCtx[len(b.traceCtx)-2]
}

func (b *baseVisitor) DisableLogging(y bool) {
	b.disableLogging = y
}

func (b *baseVisitor) LogDebug(f string, args ...interface{}) {
	if !b.disableLogging {
		log.Debug().Msgf(fmt.Sprintf("[%s] ", b.name)+f, args...)
	}
}
