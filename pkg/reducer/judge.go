package reducer

import (
	"bytes"
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stumble/whittle/pkg/clients/dcache"
	"github.com/stumble/whittle/pkg/passes"
)

// JudgeStats - how candidates of a judged pass were decided.
type JudgeStats struct {
	OracleCalls int
	CacheHits   int
	Rejected    int
}

// Judged is a pass whose accepted transforms are only kept when the oracle
// still finds the target interesting. A rejected candidate is rolled back
// and reported as passes.ResultInvalid, so the driver advances past it.
//
// Whatever the inner pass leaves in the target when it does not answer
// passes.ResultOK is discarded as well.
type Judged struct {
	inner  passes.Pass
	ctx    context.Context
	oracle Oracle
	cache  dcache.Cache
	scope  string
	stats  JudgeStats
}

// Judge wraps pass. cache may be nil, and is not used for an oracle without
// a key.
func Judge(ctx context.Context, pass passes.Pass, oracle Oracle, cache dcache.Cache) *Judged {
	scope := oracle.Key()
	if scope == "" {
		cache = nil
	}
	return &Judged{inner: pass, ctx: ctx, oracle: oracle, cache: cache, scope: scope}
}

func (j *Judged) Name() string {
	return j.inner.Name()
}

// Stats so far.
func (j *Judged) Stats() JudgeStats {
	return j.stats
}

func (j *Judged) New(target passes.Target) (passes.State, bool, error) {
	return j.inner.New(target)
}

func (j *Judged) AdvanceOnSuccess(target passes.Target, state passes.State) (passes.State, bool, error) {
	return j.inner.AdvanceOnSuccess(target, state)
}

func (j *Judged) Advance(target passes.Target, state passes.State) (passes.State, bool, error) {
	return j.inner.Advance(target, state)
}

func (j *Judged) Transform(target passes.Target, state passes.State, notifier passes.Notifier) (passes.Result, passes.State, error) {
	before, err := target.Read()
	if err != nil {
		return passes.ResultError, state, err
	}
	result, next, err := j.inner.Transform(target, state, notifier)
	if err != nil || result != passes.ResultOK {
		if rerr := j.rollback(target, before, result); rerr != nil && err == nil {
			return passes.ResultError, next, rerr
		}
		return result, next, err
	}

	after, err := target.Read()
	if err != nil {
		return passes.ResultError, next, err
	}
	if bytes.Equal(before, after) {
		return passes.ResultInvalid, next, nil
	}
	interesting, err := j.judge(target, after)
	if err != nil || !interesting {
		if werr := target.Write(before); werr != nil {
			return passes.ResultError, next, werr
		}
	}
	if err != nil {
		return passes.ResultError, next, err
	}
	if !interesting {
		j.stats.Rejected++
		return passes.ResultInvalid, next, nil
	}
	return passes.ResultOK, next, nil
}

// rollback restores before unless the target still holds it.
func (j *Judged) rollback(target passes.Target, before []byte, result passes.Result) error {
	current, err := target.Read()
	if err == nil && bytes.Equal(current, before) {
		return nil
	}
	log.Debug().Str("pass", j.Name()).Str("result", result.String()).
		Msg("[judge] discarding edit of a transform that was not ok")
	return target.Write(before)
}

func (j *Judged) judge(target passes.Target, content []byte) (bool, error) {
	digest := dcache.ScopedDigestOf(j.scope, content)
	if j.cache != nil {
		v, ok, err := j.cache.Get(j.ctx, digest)
		if err != nil {
			log.Warn().Err(err).Str("digest", digest).Msg("[judge] cache get failed")
		} else if ok {
			j.stats.CacheHits++
			return v.Interesting, nil
		}
	}

	start := time.Now()
	interesting, err := j.oracle.Interesting(j.ctx, target)
	j.stats.OracleCalls++
	if err != nil {
		return false, err
	}
	if j.cache != nil {
		if err := j.cache.Set(j.ctx, digest, dcache.NewVerdict(interesting, time.Since(start))); err != nil {
			log.Warn().Err(err).Str("digest", digest).Msg("[judge] cache set failed")
		}
	}
	log.Debug().Str("pass", j.Name()).Str("digest", digest).
		Bool("interesting", interesting).Msg("[judge] verdict")
	return interesting, nil
}
