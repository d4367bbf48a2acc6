package passes

import (
	"fmt"

	"github.com/stumble/whittle/pkg/parser"
)

func init() {
	Register("sql", "delete whole SQL statements, one at a time",
		func(arg string) (Pass, error) {
			return NewSQLStmtPass(), nil
		})
}

// SQLStmtPass - delete one statement per step from a SQL script.
// State is the index of the statement to try next. After an accepted
// deletion the index is kept, because the next statement has moved into it.
type SQLStmtPass struct {
	basePass
}

// NewSQLStmtPass -
func NewSQLStmtPass() *SQLStmtPass {
	return &SQLStmtPass{basePass: newBasePass("sql")}
}

// New implements Pass
func (p *SQLStmtPass) New(target Target) (State, bool, error) {
	n, err := p.count(target)
	if err != nil {
		return nil, false, err
	}
	if n == 0 {
		return nil, false, nil
	}
	return 0, true, nil
}

// Transform implements Pass
func (p *SQLStmtPass) Transform(target Target, state State, notifier Notifier) (Result, State, error) {
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
	if idx >= len(stmts) {
		return ResultInvalid, state, nil
	}
	kept := append(stmts[:idx:idx], stmts[idx+1:]...)
	script, err := parser.Join(kept)
	if err != nil {
		p.LogWarn("cannot restore statements: %v", err)
		return ResultInvalid, state, nil
	}
	if err := target.Write([]byte(script)); err != nil {
		return ResultError, state, err
	}
	OrNop(notifier).Notify(Event{
		Kind:   EventProgress,
		Pass:   p.Name(),
		Target: target,
		Detail: fmt.Sprintf("deleted statement %d of %d", idx, len(stmts)),
	})
	return ResultOK, state, nil
}

// AdvanceOnSuccess implements Pass
func (p *SQLStmtPass) AdvanceOnSuccess(target Target, state State) (State, bool, error) {
	return p.at(target, p.mustIndexState(state))
}

// Advance implements Pass
func (p *SQLStmtPass) Advance(target Target, state State) (State, bool, error) {
	return p.at(target, p.mustIndexState(state)+1)
}

func (p *SQLStmtPass) at(target Target, idx int) (State, bool, error) {
	n, err := p.count(target)
	if err != nil {
		return nil, false, err
	}
	if idx >= n {
		return nil, false, nil
	}
	return idx, true, nil
}

// count returns the number of statements in target, 0 if it does not parse.
func (p *SQLStmtPass) count(target Target) (int, error) {
	data, err := target.Read()
	if err != nil {
		return 0, err
	}
	stmts, err := parser.NewSQLParser().Parse(string(data))
	if err != nil {
		p.LogDebug("unparseable target: %v", err)
		return 0, nil
	}
	return len(stmts), nil
}
