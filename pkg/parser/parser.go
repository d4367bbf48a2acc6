package parser

import (
	"strings"

	"github.com/pingcap/parser"
	"github.com/pingcap/parser/ast"
	"github.com/pingcap/parser/format"
	_ "github.com/pingcap/parser/test_driver" // required by pingcap's parser
)

// SQLParser - parse sql using local parser instance, not goroutine-safe
type SQLParser struct {
	parser *parser.Parser
}

// NewSQLParser - a sql parser
func NewSQLParser() *SQLParser {
	return &SQLParser{
		parser: parser.New(),
	}
}

// ParseOneStmt - parse one statement
func (s *SQLParser) ParseOneStmt(stmt string) (ast.StmtNode, error) {
	return s.parser.ParseOneStmt(stmt, "utf8", "")
}

// Parse - parse a script of statements.
func (s *SQLParser) Parse(script string) ([]ast.StmtNode, error) {
	stmts, _, err := s.parser.Parse(script, "utf8", "")
	if err != nil {
		return nil, err
	}
	return stmts, nil
}

// StmtText returns the source text of a statement without the terminating
// semicolon. Statements the parser kept no text for are restored from the AST.
func StmtText(stmt ast.StmtNode) (string, error) {
	text := strings.TrimSpace(stmt.Text())
	if text != "" {
		return strings.TrimSpace(strings.TrimSuffix(text, ";")), nil
	}
	return RestoreNode(stmt)
}

// RestoreNode return a node to string.
func RestoreNode(n ast.Node) (string, error) {
	var sb strings.Builder
	formatCtx := format.NewRestoreCtx(format.RestoreKeyWordUppercase|format.RestoreStringSingleQuotes, &sb)
	if err := n.Restore(formatCtx); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Join renders statements back to a script, one per line.
func Join(stmts []ast.StmtNode) (string, error) {
	return JoinChanged(stmts, nil)
}

// JoinChanged is Join, except that changed, a statement whose AST was
// modified after parsing, is restored from its AST instead of its text.
func JoinChanged(stmts []ast.StmtNode, changed ast.StmtNode) (string, error) {
	var sb strings.Builder
	for _, stmt := range stmts {
		var text string
		var err error
		if changed != nil && stmt == changed {
			text, err = RestoreNode(stmt)
		} else {
			text, err = StmtText(stmt)
		}
		if err != nil {
			return "", err
		}
		sb.WriteString(text)
		sb.WriteString(";\n")
	}
	return sb.String(), nil
}
