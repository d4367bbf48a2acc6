package mysql

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Manager is an interface to helper functions
type Manager interface {
	Ping() error
	Close()
	GetDBExecuter() DBExecuter
	Transact(ctx context.Context, txFunc func(DBExecuter) error) error
	// Migrate runs idempotent schema statements in order.
	Migrate(ctx context.Context, stmts []string) error
}

type manager struct {
	conn     *sql.DB
	gauge    *prometheus.GaugeVec
	executer *executer

	counter      *prometheus.CounterVec
	histogram    *prometheus.HistogramVec
	statementMap *sync.Map

	done chan struct{}
	once sync.Once
}

const (
	updateInterval = time.Second * 1
)

func newManagerWithMetrics(config *Config, gauge *prometheus.GaugeVec, execCounter *prometheus.CounterVec, execHistogram *prometheus.HistogramVec) (*manager, error) {
	conn, err := sql.Open("mysql", config.DSN())
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(config.MaxOpenConns)
	conn.SetMaxIdleConns(config.MaxIdleConns)
	conn.SetConnMaxLifetime(config.MaxLifetime)
	statementMap := &sync.Map{}
	m := &manager{
		conn:         conn,
		counter:      execCounter,
		histogram:    execHistogram,
		statementMap: statementMap,
		done:         make(chan struct{}),
	}
	m.executer = m.newExecuter(conn, "SQL")

	if gauge != nil {
		m.gauge = gauge
		go m.updateMetrics()
	}
	return m, nil
}

func (m *manager) newExecuter(conn queryer, spanPrefix string) *executer {
	return &executer{
		conn:         conn,
		spanPrefix:   spanPrefix,
		counter:      m.counter,
		histogram:    m.histogram,
		statementMap: m.statementMap,
	}
}

func (m *manager) updateMetrics() {
	ticker := time.NewTicker(updateInterval)
	defer ticker.Stop()
	for {
		stats := m.conn.Stats()
		m.gauge.WithLabelValues("MaxOpenConnections").Set(float64(stats.MaxOpenConnections))
		m.gauge.WithLabelValues("Idle").Set(float64(stats.Idle))
		m.gauge.WithLabelValues("OpenConnections").Set(float64(stats.OpenConnections))
		m.gauge.WithLabelValues("InUse").Set(float64(stats.InUse))
		m.gauge.WithLabelValues("WaitCount").Set(float64(stats.WaitCount))
		m.gauge.WithLabelValues("WaitDuration").Set(float64(stats.WaitDuration))
		select {
		case <-ticker.C:
		case <-m.done:
			return
		}
	}
}

func (m *manager) GetDBExecuter() DBExecuter {
	return m.executer
}

// Transact is a wrapper that wraps around transaction
func (m *manager) Transact(ctx context.Context, txFunc func(DBExecuter) error) (err error) {
	tx, e := m.conn.BeginTx(ctx, nil)
	if e != nil {
		return e
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	return txFunc(m.newExecuter(tx, "SQL TX"))
}

func (m *manager) Migrate(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := m.executer.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (m *manager) Close() {
	m.once.Do(func() { close(m.done) })
	m.conn.Close()
}

func (m *manager) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*1)
	defer cancel()
	return m.conn.PingContext(ctx)
}
