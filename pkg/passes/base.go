package passes

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/rs/zerolog/log"
)

// basePass - the base of concrete passes, providing naming and logging.
type basePass struct {
	name string
}

func newBasePass(name string) basePass {
	return basePass{name: name}
}

// Name implements Pass
func (b *basePass) Name() string {
	return b.name
}

// pass bug, should never happen
func (b *basePass) LogInternal(f string, args ...interface{}) {
	log.Error().Msgf(fmt.Sprintf("[pass/%s/Internal] ", b.name)+f, args...)
}

// user warning
func (b *basePass) LogWarn(f string, args ...interface{}) {
	log.Warn().Msgf(fmt.Sprintf("[pass/%s/Warn] ", b.name)+f, args...)
}

func (b *basePass) LogDebug(f string, args ...interface{}) {
	log.Debug().Msgf(fmt.Sprintf("[pass/%s] ", b.name)+f, args...)
}

// foreignState reports a state this pass never handed out, then panics.
func (b *basePass) foreignState(state State) {
	b.LogInternal("foreign state %s", DeepSprintState(state))
	violation("%s: foreign state %v", b.name, state)
}

// mustIndexState - for passes whose state is a non-negative index.
func (b *basePass) mustIndexState(state State) int {
	idx, ok := state.(int)
	if !ok || idx < 0 {
		b.foreignState(state)
	}
	return idx
}

// DeepSprintState return a pretty printed state, for debug logs.
func DeepSprintState(s State) string {
	return spew.Sdump(s)
}
