package passes

import (
	"reflect"
)

type guardPhase int

const (
	phaseCreated guardPhase = iota
	phaseAttempting
	phaseAdvancing
	phaseDone
)

// guarded - wraps a pass and enforces the iteration protocol on its caller.
// Not safe for concurrent use, same as the passes it wraps.
type guarded struct {
	inner Pass

	phase      guardPhase
	lastResult Result
	lastState  State
}

// Guard returns a Pass that forwards to p and panics with an
// ErrProtocolViolation Error when called out of order: Transform without a
// present state, an advance that does not match the previous Result, any
// call after exhaustion, or a state that is not the one last returned.
func Guard(p Pass) Pass {
	if g, ok := p.(*guarded); ok {
		return g
	}
	return &guarded{inner: p}
}

// Unguard returns the pass wrapped by Guard, or p itself.
func Unguard(p Pass) Pass {
	if g, ok := p.(*guarded); ok {
		return g.inner
	}
	return p
}

func (g *guarded) Name() string {
	return g.inner.Name()
}

func (g *guarded) New(target Target) (State, bool, error) {
	state, ok, err := g.inner.New(target)
	g.settle(state, ok, err)
	return state, ok, err
}

func (g *guarded) Transform(target Target, state State, notifier Notifier) (Result, State, error) {
	if g.phase != phaseAttempting {
		violation("%s: Transform called without a present state", g.Name())
	}
	g.checkThreaded(state, "Transform")
	result, next, err := g.inner.Transform(target, state, notifier)
	if err != nil {
		g.phase = phaseDone
		return result, next, err
	}
	g.phase = phaseAdvancing
	g.lastResult = result
	g.lastState = next
	return result, next, err
}

func (g *guarded) AdvanceOnSuccess(target Target, state State) (State, bool, error) {
	if g.phase != phaseAdvancing {
		violation("%s: AdvanceOnSuccess called without a preceding Transform", g.Name())
	}
	if g.lastResult != ResultOK {
		violation("%s: AdvanceOnSuccess called after result %s", g.Name(), g.lastResult)
	}
	g.checkThreaded(state, "AdvanceOnSuccess")
	next, ok, err := g.inner.AdvanceOnSuccess(target, state)
	g.settle(next, ok, err)
	return next, ok, err
}

func (g *guarded) Advance(target Target, state State) (State, bool, error) {
	if g.phase != phaseAdvancing {
		violation("%s: Advance called without a preceding Transform", g.Name())
	}
	if g.lastResult == ResultOK {
		violation("%s: Advance called after result ok", g.Name())
	}
	g.checkThreaded(state, "Advance")
	next, ok, err := g.inner.Advance(target, state)
	g.settle(next, ok, err)
	return next, ok, err
}

func (g *guarded) settle(state State, ok bool, err error) {
	if err != nil || !ok {
		g.phase = phaseDone
		g.lastState = nil
		return
	}
	g.phase = phaseAttempting
	g.lastState = state
}

func (g *guarded) checkThreaded(state State, op string) {
	if !reflect.DeepEqual(state, g.lastState) {
		violation("%s: %s called with a state it was not handed", g.Name(), op)
	}
}
