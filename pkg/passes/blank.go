package passes

import (
	"bytes"
	"regexp"
)

func init() {
	Register("blank", "remove blank lines and redundant whitespace",
		func(arg string) (Pass, error) {
			return NewBlankPass(), nil
		})
}

type blankPattern struct {
	name    string
	re      *regexp.Regexp
	replace []byte
}

var blankPatterns = []blankPattern{
	{"blank-lines", regexp.MustCompile(`(?m)^[ \t]*\r?\n`), nil},
	{"leading-whitespace", regexp.MustCompile(`(?m)^[ \t]+`), nil},
	{"trailing-whitespace", regexp.MustCompile(`(?m)[ \t]+$`), nil},
	{"space-runs", regexp.MustCompile(`[ \t]{2,}`), []byte(" ")},
}

// BlankPass - apply one whitespace rewrite per step. State is the index of
// the rewrite in blankPatterns.
type BlankPass struct {
	basePass
}

// NewBlankPass -
func NewBlankPass() *BlankPass {
	return &BlankPass{basePass: newBasePass("blank")}
}

// New implements Pass
func (p *BlankPass) New(target Target) (State, bool, error) {
	return 0, true, nil
}

// Transform implements Pass
func (p *BlankPass) Transform(target Target, state State, notifier Notifier) (Result, State, error) {
	idx := p.mustBlankState(state)
	data, err := target.Read()
	if err != nil {
		return ResultError, state, err
	}
	pattern := blankPatterns[idx]
	rewritten := pattern.re.ReplaceAll(data, pattern.replace)
	if bytes.Equal(rewritten, data) {
		return ResultInvalid, state, nil
	}
	if err := target.Write(rewritten); err != nil {
		return ResultError, state, err
	}
	OrNop(notifier).Notify(Event{
		Kind:   EventProgress,
		Pass:   p.Name(),
		Target: target,
		Detail: pattern.name,
	})
	return ResultOK, state, nil
}

// AdvanceOnSuccess implements Pass
func (p *BlankPass) AdvanceOnSuccess(target Target, state State) (State, bool, error) {
	return p.next(state)
}

// Advance implements Pass
func (p *BlankPass) Advance(target Target, state State) (State, bool, error) {
	return p.next(state)
}

func (p *BlankPass) next(state State) (State, bool, error) {
	idx := p.mustBlankState(state) + 1
	if idx >= len(blankPatterns) {
		return nil, false, nil
	}
	return idx, true, nil
}

func (p *BlankPass) mustBlankState(state State) int {
	idx, ok := state.(int)
	if !ok || idx < 0 || idx >= len(blankPatterns) {
		p.foreignState(state)
	}
	return idx
}
