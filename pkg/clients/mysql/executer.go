package mysql

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	opentracing "github.com/opentracing/opentracing-go"
	tags "github.com/opentracing/opentracing-go/ext"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	maxStatementLen = 30
)

// DBExecuter wraps transaction and non-transaction db calls
type DBExecuter interface {
	Query(ctx context.Context, unprepared string, args ...interface{}) (*sql.Rows, error)
	Exec(ctx context.Context, unprepared string, args ...interface{}) (sql.Result, error)
}

// queryer - what *sql.DB and *sql.Tx have in common.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type executer struct {
	conn         queryer
	spanPrefix   string
	counter      *prometheus.CounterVec
	histogram    *prometheus.HistogramVec
	statementMap *sync.Map
}

// cleanStatement - one-line, truncated statement for metric labels.
func cleanStatement(statementMap *sync.Map, statement string) string {
	if raw, ok := statementMap.Load(statement); ok {
		return raw.(string)
	}
	ret := strings.Join(strings.Fields(statement), " ")
	if len(ret) > maxStatementLen {
		if i := strings.Index(ret, " ("); i > 0 && i <= maxStatementLen {
			ret = ret[:i] + " (...)"
		} else {
			ret = ret[:maxStatementLen] + "..."
		}
	}
	statementMap.Store(statement, ret)
	return ret
}

// instrument counts the call, starts its span and returns the func that
// ends both.
func (s *executer) instrument(ctx context.Context, kind, unprepared string) (context.Context, func()) {
	label := cleanStatement(s.statementMap, unprepared)
	if s.counter != nil {
		s.counter.WithLabelValues(label, kind).Inc()
	}
	startTime := time.Now()
	span, ctx := opentracing.StartSpanFromContext(ctx, s.spanPrefix+" "+kind)
	tags.SpanKindRPCClient.Set(span)
	tags.PeerService.Set(span, "mysql")
	span.SetTag("db.statement", unprepared)
	return ctx, func() {
		if s.histogram != nil {
			s.histogram.WithLabelValues(label, kind).Observe(time.Since(startTime).Seconds())
		}
		span.Finish()
	}
}

func (s *executer) Query(ctx context.Context, unprepared string, args ...interface{}) (*sql.Rows, error) {
	ctx, done := s.instrument(ctx, "QUERY", unprepared)
	defer done()
	return s.conn.QueryContext(ctx, unprepared, args...)
}

func (s *executer) Exec(ctx context.Context, unprepared string, args ...interface{}) (sql.Result, error) {
	ctx, done := s.instrument(ctx, "EXEC", unprepared)
	defer done()
	return s.conn.ExecContext(ctx, unprepared, args...)
}

func NonEmptyOrNil(str string) interface{} {
	if str == "" {
		return nil
	}
	return str
}
