package passes

import (
	"bytes"
	"fmt"
	"strconv"
)

func init() {
	Register("lines", "delete chunks of lines, halving the chunk size until single lines",
		func(arg string) (Pass, error) {
			return NewLinesPass(arg)
		})
}

// lineState - binary search cursor: try to delete lines
// [index, index+chunk) out of instances.
type lineState struct {
	Instances int
	Chunk     int
	Index     int
}

func newLineState(instances, maxChunk int) (State, bool) {
	if instances == 0 {
		return nil, false
	}
	chunk := instances
	if maxChunk > 0 && chunk > maxChunk {
		chunk = maxChunk
	}
	return lineState{Instances: instances, Chunk: chunk, Index: 0}, true
}

func (s lineState) advance() (State, bool) {
	s.Index += s.Chunk
	if s.Index >= s.Instances {
		s.Chunk /= 2
		if s.Chunk < 1 {
			return nil, false
		}
		s.Index = 0
	}
	return s, true
}

func (s lineState) advanceOnSuccess(instances int) (State, bool) {
	if instances == 0 {
		return nil, false
	}
	s.Instances = instances
	if s.Index >= s.Instances {
		return s.advance()
	}
	return s, true
}

// LinesPass - delete lines, whole halves of the file first, then quarters, and
// so on down to single lines.
type LinesPass struct {
	basePass
	maxChunk int
}

// NewLinesPass - arg optionally caps the initial chunk size.
func NewLinesPass(arg string) (*LinesPass, error) {
	p := &LinesPass{basePass: newBasePass("lines")}
	if arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("lines: invalid max chunk %q", arg)
		}
		p.maxChunk = v
	}
	return p, nil
}

// New implements Pass
func (p *LinesPass) New(target Target) (State, bool, error) {
	lines, err := target.Lines()
	if err != nil {
		return nil, false, err
	}
	state, ok := newLineState(len(lines), p.maxChunk)
	return state, ok, nil
}

// Transform implements Pass
func (p *LinesPass) Transform(target Target, state State, notifier Notifier) (Result, State, error) {
	s := p.mustLineState(state)
	lines, err := target.Lines()
	if err != nil {
		return ResultError, state, err
	}
	if s.Index >= len(lines) {
		p.LogDebug("cursor %d beyond %d lines", s.Index, len(lines))
		return ResultInvalid, state, nil
	}
	end := s.Index + s.Chunk
	if end > len(lines) {
		end = len(lines)
	}
	kept := make([][]byte, 0, len(lines)-(end-s.Index))
	kept = append(kept, lines[:s.Index]...)
	kept = append(kept, lines[end:]...)
	if err := target.Write(bytes.Join(kept, nil)); err != nil {
		return ResultError, state, err
	}
	OrNop(notifier).Notify(Event{
		Kind:   EventProgress,
		Pass:   p.Name(),
		Target: target,
		Detail: fmt.Sprintf("deleted lines %d-%d of %d", s.Index, end-1, len(lines)),
	})
	return ResultOK, state, nil
}

// AdvanceOnSuccess implements Pass
func (p *LinesPass) AdvanceOnSuccess(target Target, state State) (State, bool, error) {
	lines, err := target.Lines()
	if err != nil {
		return nil, false, err
	}
	next, ok := p.mustLineState(state).advanceOnSuccess(len(lines))
	return next, ok, nil
}

// Advance implements Pass
func (p *LinesPass) Advance(target Target, state State) (State, bool, error) {
	next, ok := p.mustLineState(state).advance()
	return next, ok, nil
}

func (p *LinesPass) mustLineState(state State) lineState {
	s, ok := state.(lineState)
	if !ok {
		p.foreignState(state)
	}
	return s
}
