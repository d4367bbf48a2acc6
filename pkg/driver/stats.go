package driver

import (
	"time"

	"github.com/stumble/whittle/pkg/passes"
)

// Stats - what one Run did.
type Stats struct {
	Pass       string
	Transforms int
	// Successes transforms that returned ResultOK.
	Successes int
	// Failures transforms that returned anything else.
	Failures int
	// Faults transforms that returned an error. Their result is meaningless.
	Faults int
	// Stopped the pass ended the run with ResultStop.
	Stopped bool
	Last    passes.Result
	Elapsed time.Duration
}

func (s *Stats) record(r passes.Result) {
	s.Transforms++
	s.Last = r
	if r == passes.ResultOK {
		s.Successes++
	} else {
		s.Failures++
	}
}

func (s *Stats) recordFault() {
	s.Transforms++
	s.Faults++
}
