package reducer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	uuid "github.com/satori/go.uuid"

	"github.com/stumble/whittle/pkg/clients/dcache"
	"github.com/stumble/whittle/pkg/driver"
	"github.com/stumble/whittle/pkg/history"
	"github.com/stumble/whittle/pkg/passes"
)

// ErrNotInteresting the target was not interesting before any reduction.
var ErrNotInteresting = errors.New("target is not interesting")

// PassReport - one driver run of one pass in one round.
type PassReport struct {
	Round      int
	Pass       string
	Stats      driver.Stats
	Judge      JudgeStats
	SizeBefore int64
	SizeAfter  int64
	// Err non-fatal failure of the pass, the reduction went on without it.
	Err error
}

// Report of a reduction.
type Report struct {
	RunID     string
	Rounds    int
	StartSize int64
	EndSize   int64
	Passes    []PassReport
}

// String - short summary, one line per pass run that made progress.
func (r Report) String() string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "run %s: %d -> %d bytes in %d round(s)\n", r.RunID, r.StartSize, r.EndSize, r.Rounds)
	for _, p := range r.Passes {
		if p.SizeAfter == p.SizeBefore && p.Err == nil {
			continue
		}
		fmt.Fprintf(b, "  round %d %-16s %d -> %d (%d/%d kept)", p.Round, p.Pass,
			p.SizeBefore, p.SizeAfter, p.Stats.Successes, p.Stats.Transforms)
		if p.Err != nil {
			fmt.Fprintf(b, " error: %v", p.Err)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Reducer runs a plan of passes over a target, round after round, keeping
// only candidates the oracle finds interesting, until a round no longer
// shrinks the target.
type Reducer struct {
	Driver *driver.Driver
	Oracle Oracle
	// Cache of verdicts by content digest, optional.
	Cache dcache.Cache
	// Recorder journals the reduction, optional.
	Recorder history.Recorder
	// MaxRounds 0 for no bound.
	MaxRounds int
	// PlanName is recorded in the journal.
	PlanName string
}

// Reduce reduces target in place.
//
// A pass that ends with driver.ErrPassError or driver.ErrIterationLimit is
// reported and skipped. Any other error aborts the reduction, leaving
// target at its last interesting content.
func (r *Reducer) Reduce(ctx context.Context, target passes.Target, plan []passes.Pass) (Report, error) {
	if len(plan) == 0 {
		return Report{}, errors.New("empty plan")
	}
	d := r.Driver
	if d == nil {
		d = driver.New()
	}
	recorder := r.Recorder
	if recorder == nil {
		recorder = history.NopRecorder{}
	}

	size, err := target.Size()
	if err != nil {
		return Report{}, err
	}
	report := Report{RunID: uuid.NewV4().String(), StartSize: size, EndSize: size}
	run := history.Run{
		ID:        report.RunID,
		Target:    target.Path(),
		Plan:      r.PlanName,
		StartSize: size,
		StartedAt: time.Now(),
	}

	ok, err := r.Oracle.Interesting(ctx, target)
	if err == nil && !ok {
		err = ErrNotInteresting
	}
	if err != nil {
		return report, err
	}
	if err := recorder.Begin(ctx, run); err != nil {
		log.Warn().Err(err).Str("run", run.ID).Msg("[reducer] journal begin failed")
	}

	err = r.rounds(ctx, d, recorder, target, plan, &report)
	run.EndSize = report.EndSize
	run.Rounds = report.Rounds
	run.EndedAt = time.Now()
	if err != nil {
		run.Err = err.Error()
	}
	if ferr := recorder.Finish(ctx, run); ferr != nil {
		log.Warn().Err(ferr).Str("run", run.ID).Msg("[reducer] journal finish failed")
	}
	log.Info().Str("run", run.ID).Int64("start", report.StartSize).Int64("end", report.EndSize).
		Int("rounds", report.Rounds).Msg("[reducer] done")
	return report, err
}

func (r *Reducer) rounds(ctx context.Context, d *driver.Driver, recorder history.Recorder,
	target passes.Target, plan []passes.Pass, report *Report) error {
	for round := 1; r.MaxRounds == 0 || round <= r.MaxRounds; round++ {
		report.Rounds = round
		roundStart := report.EndSize
		for _, pass := range plan {
			if err := ctx.Err(); err != nil {
				return err
			}
			rep, err := r.runPass(ctx, d, target, pass, round, report.EndSize)
			report.Passes = append(report.Passes, rep)
			report.EndSize = rep.SizeAfter
			if jerr := recorder.RecordPass(ctx, passRecord(report.RunID, rep)); jerr != nil {
				log.Warn().Err(jerr).Str("run", report.RunID).Msg("[reducer] journal pass failed")
			}
			if err != nil {
				return err
			}
		}
		if report.EndSize >= roundStart {
			return nil
		}
	}
	return nil
}

func (r *Reducer) runPass(ctx context.Context, d *driver.Driver, target passes.Target,
	pass passes.Pass, round int, size int64) (PassReport, error) {
	rep := PassReport{Round: round, Pass: pass.Name(), SizeBefore: size, SizeAfter: size}
	before, err := target.Size()
	if err != nil {
		return rep, err
	}
	rep.SizeBefore, rep.SizeAfter = before, before

	judged := Judge(ctx, passes.Unguard(pass), r.Oracle, r.Cache)
	stats, err := d.Run(passes.Guard(judged), target)
	rep.Stats = stats
	rep.Judge = judged.Stats()

	after, serr := target.Size()
	if serr != nil {
		return rep, serr
	}
	rep.SizeAfter = after
	if errors.Is(err, driver.ErrPassError) || errors.Is(err, driver.ErrIterationLimit) {
		log.Warn().Err(err).Int("round", round).Msg("[reducer] pass skipped")
		rep.Err = err
		return rep, nil
	}
	return rep, err
}

func passRecord(runID string, rep PassReport) history.PassRecord {
	rec := history.PassRecord{
		RunID:      runID,
		Round:      rep.Round,
		Pass:       rep.Pass,
		Transforms: rep.Stats.Transforms,
		Successes:  rep.Stats.Successes,
		SizeBefore: rep.SizeBefore,
		SizeAfter:  rep.SizeAfter,
		Elapsed:    rep.Stats.Elapsed,
	}
	if rep.Err != nil {
		rec.Err = rep.Err.Error()
	}
	return rec
}
