package driver

import (
	"errors"
	"fmt"
	"time"

	opentracing "github.com/opentracing/opentracing-go"
	tags "github.com/opentracing/opentracing-go/ext"
	"github.com/rs/zerolog/log"

	"github.com/stumble/whittle/pkg/passes"
)

var (
	// ErrPassError a pass ended the iteration with passes.ResultError.
	ErrPassError = errors.New("pass reported an error")
	// ErrIterationLimit the driver hit MaxIterations before the pass was exhausted.
	ErrIterationLimit = errors.New("iteration limit reached")
)

// Driver runs one pass over one target until the pass has no state left.
// It knows nothing about what the pass does: it only threads the state and
// picks the advance call from the transform result.
//
// A Driver is stateless between runs and may be shared, but the target of a
// run must not be touched by anyone else while the run is in progress.
type Driver struct {
	// Notifier is handed to every Transform. nil means no-op.
	Notifier passes.Notifier
	// Tracer for one span per transform. nil means opentracing.GlobalTracer().
	Tracer opentracing.Tracer
	// Metrics, optional.
	Metrics *Metrics
	// MaxIterations bounds the number of transforms, 0 for no bound.
	MaxIterations int
}

// New -
func New() *Driver {
	return &Driver{}
}

// Run iterates pass over target to exhaustion.
//
// Run returns nil once the pass state is absent or the pass answered
// passes.ResultStop. A passes.ResultError result ends the run with
// ErrPassError; an error returned by any pass call ends it with that error.
// In both cases no advance call is made for the failed attempt.
func (d *Driver) Run(pass passes.Pass, target passes.Target) (Stats, error) {
	stats := Stats{Pass: pass.Name()}
	start := time.Now()
	err := d.run(pass, target, &stats)
	stats.Elapsed = time.Since(start)
	if d.Metrics != nil {
		d.Metrics.observeRun(stats, err)
	}
	logRun(stats, err)
	return stats, err
}

func (d *Driver) run(pass passes.Pass, target passes.Target, stats *Stats) error {
	name := pass.Name()
	notifier := passes.OrNop(d.Notifier)

	state, ok, err := pass.New(target)
	if err != nil {
		return fmt.Errorf("pass %s: new: %w", name, err)
	}
	for ok {
		if d.MaxIterations > 0 && stats.Transforms >= d.MaxIterations {
			return fmt.Errorf("pass %s: %w (%d)", name, ErrIterationLimit, d.MaxIterations)
		}
		logState(name, "transform", state)

		var result passes.Result
		result, state, err = d.transform(pass, target, state, notifier)
		if err != nil {
			stats.recordFault()
			return fmt.Errorf("pass %s: transform: %w", name, err)
		}
		stats.record(result)

		switch result {
		case passes.ResultOK:
			state, ok, err = pass.AdvanceOnSuccess(target, state)
		case passes.ResultStop:
			stats.Stopped = true
			return nil
		case passes.ResultError:
			return fmt.Errorf("pass %s: %w", name, ErrPassError)
		default:
			state, ok, err = pass.Advance(target, state)
		}
		if err != nil {
			return fmt.Errorf("pass %s: advance: %w", name, err)
		}
	}
	return nil
}

func (d *Driver) transform(pass passes.Pass, target passes.Target, state passes.State,
	notifier passes.Notifier) (passes.Result, passes.State, error) {
	tracer := d.Tracer
	if tracer == nil {
		tracer = opentracing.GlobalTracer()
	}
	span := tracer.StartSpan("pass.transform")
	span.SetTag("pass", pass.Name())
	span.SetTag("target", target.Path())
	defer span.Finish()

	startTime := time.Now()
	result, next, err := pass.Transform(target, state, notifier)
	if d.Metrics != nil {
		d.Metrics.observeTransform(pass.Name(), result, err, time.Since(startTime))
	}
	span.SetTag("result", result.String())
	if err != nil {
		tags.Error.Set(span, true)
		span.LogKV("event", "error", "message", err.Error())
	}
	return result, next, err
}

func logState(name, op string, state passes.State) {
	if e := log.Debug(); e.Enabled() {
		e.Str("pass", name).Str("state", passes.DeepSprintState(state)).Msgf("[driver] %s", op)
	}
}

func logRun(stats Stats, err error) {
	if err != nil {
		log.Warn().Err(err).Str("pass", stats.Pass).
			Int("transforms", stats.Transforms).Msg("[driver] pass failed")
		return
	}
	log.Info().Str("pass", stats.Pass).
		Int("transforms", stats.Transforms).
		Int("successes", stats.Successes).
		Dur("elapsed", stats.Elapsed).Msg("[driver] pass exhausted")
}
