package passes

import "strconv"

// State is a pass-defined cursor into the space of transformations of one
// target. It is owned by the pass; callers only thread it from one call to
// the next and must not inspect or build one.
type State interface{}

// Result - outcome of a single Transform.
// Values other than ResultOK are all routed to Advance by a driver, except
// that ResultStop and ResultError end the iteration.
type Result int

const (
	// ResultOK the transformation was applied and should be kept.
	ResultOK Result = iota
	// ResultInvalid the transformation could not be applied, or was applied
	// and then discarded.
	ResultInvalid
	// ResultStop the pass has nothing more to do.
	ResultStop
	// ResultError the pass failed and cannot continue on this target.
	ResultError
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultInvalid:
		return "invalid"
	case ResultStop:
		return "stop"
	case ResultError:
		return "error"
	}
	return "result(" + strconv.Itoa(int(r)) + ")"
}

// Pass - one reduction strategy, expressed as a resumable step function over
// a target and an opaque State.
//
// Every call that produces a cursor returns (state, ok, err); ok == false
// means the search space is exhausted and is the only termination signal.
// A non-nil error is an IOError the pass could not turn into a Result; the
// caller must stop iterating.
//
// Callers must follow the protocol: New first, then Transform on a present
// state, then AdvanceOnSuccess if and only if Transform returned ResultOK,
// otherwise Advance, each fed the state returned by the previous call.
// See Guard.
type Pass interface {
	Name() string

	// New returns the initial state for target, or ok == false if there is
	// nothing to do. It must not modify the target.
	New(target Target) (state State, ok bool, err error)

	// Transform attempts exactly one transformation of target at state,
	// writing target in place. The returned state describes what was
	// attempted and is the input of the following advance call.
	Transform(target Target, state State, notifier Notifier) (Result, State, error)

	// AdvanceOnSuccess computes the next state after an accepted transform.
	AdvanceOnSuccess(target Target, state State) (next State, ok bool, err error)

	// Advance computes the next state after a rejected transform.
	Advance(target Target, state State) (next State, ok bool, err error)
}
