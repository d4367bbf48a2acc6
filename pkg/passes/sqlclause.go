package passes

import (
	"fmt"

	"github.com/stumble/whittle/pkg/parser"
	"github.com/stumble/whittle/pkg/visitors"
)

func init() {
	Register("sql-clause", "drop clauses, select fields and AND/OR operands inside SQL statements",
		func(arg string) (Pass, error) {
			return NewSQLClausePass(), nil
		})
}

// SQLClausePass - drop one clause per step. Clauses are numbered in walk
// order across the whole script; state is the number of the clause to try.
// An accepted drop keeps the number, the clauses after it have shifted down.
type SQLClausePass struct {
	basePass
}

// NewSQLClausePass -
func NewSQLClausePass() *SQLClausePass {
	return &SQLClausePass{basePass: newBasePass("sql-clause")}
}

// New implements Pass
func (p *SQLClausePass) New(target Target) (State, bool, error) {
	return p.at(target, 0)
}

// Transform implements Pass
func (p *SQLClausePass) Transform(target Target, state State, notifier Notifier) (Result, State, error) {
	idx := p.mustIndexState(state)
	data, err := target.Read()
	if err != nil {
		return ResultError, state, err
	}
	stmts, err := parser.NewSQLParser().Parse(string(data))
	if err != nil {
		p.LogDebug("unparseable target: %v", err)
		return ResultInvalid, state, nil
	}
	offset := idx
	for i, stmt := range stmts {
		clauses := visitors.CollectClauses(stmt)
		if offset >= len(clauses) {
			offset -= len(clauses)
			continue
		}
		clause := clauses[offset]
		clause.Drop(stmt)
		script, err := parser.JoinChanged(stmts, stmt)
		if err != nil {
			p.LogWarn("cannot restore statement %d: %v", i, err)
			return ResultInvalid, state, nil
		}
		if err := target.Write([]byte(script)); err != nil {
			return ResultError, state, err
		}
		OrNop(notifier).Notify(Event{
			Kind:   EventProgress,
			Pass:   p.Name(),
			Target: target,
			Detail: fmt.Sprintf("dropped %s of statement %d", clause.Kind, i),
		})
		return ResultOK, state, nil
	}
	return ResultInvalid, state, nil
}

// AdvanceOnSuccess implements Pass
func (p *SQLClausePass) AdvanceOnSuccess(target Target, state State) (State, bool, error) {
	return p.at(target, p.mustIndexState(state))
}

// Advance implements Pass
func (p *SQLClausePass) Advance(target Target, state State) (State, bool, error) {
	return p.at(target, p.mustIndexState(state)+1)
}

func (p *SQLClausePass) at(target Target, idx int) (State, bool, error) {
	data, err := target.Read()
	if err != nil {
		return nil, false, err
	}
	stmts, err := parser.NewSQLParser().Parse(string(data))
	if err != nil {
		p.LogDebug("unparseable target: %v", err)
		return nil, false, nil
	}
	n := 0
	for _, stmt := range stmts {
		n += len(visitors.CollectClauses(stmt))
	}
	if idx >= n {
		return nil, false, nil
	}
	return idx, true, nil
}
