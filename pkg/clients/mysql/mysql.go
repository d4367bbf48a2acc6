package mysql

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
)

// Config of the journal database, read from WHITTLE_MYSQL_* by default.
type Config struct {
	Username     string        `default:"root"`
	Password     string        `default:"my-secret"`
	Host         string        `default:"localhost"`
	Port         int           `default:"3306"`
	DBName       string        `default:"whittle"`
	MaxOpenConns int           `default:"4"`
	MaxIdleConns int           `default:"4"`
	MaxLifetime  time.Duration `default:"60s"`
}

func ConfigFromEnv() *Config {
	return ConfigFromEnvPrefix("whittle_mysql")
}

func ConfigFromEnvPrefix(prefix string) *Config {
	config := &Config{}
	envconfig.MustProcess(prefix, config)
	return config
}

// DSN of the configured database.
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp([%s]:%d)/%s?charset=utf8mb4&parseTime=true",
		c.Username, c.Password, c.Host, c.Port, c.DBName)
}

// RawMysqlConn connects to the server without selecting a database.
func RawMysqlConn(config *Config) (*sql.DB, error) {
	return sql.Open("mysql", fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/", config.Username, config.Password, config.Host, config.Port))
}

func NewMysqlManager(config *Config) (Manager, error) {
	return NewMysqlManagerWithMetrics(config, nil, nil, nil)
}

func NewMysqlManagerWithMetrics(config *Config, gauge *prometheus.GaugeVec, execCounter *prometheus.CounterVec, execHistogram *prometheus.HistogramVec) (Manager, error) {
	if config == nil {
		config = ConfigFromEnv()
	}
	manager, err := newManagerWithMetrics(config, gauge, execCounter, execHistogram)
	if err != nil {
		return nil, err
	}
	err = manager.Ping()
	if err != nil {
		manager.Close()
		return nil, err
	}
	return manager, nil
}

// NewMysqlManagerWithAppMetrics registers pool and exec metrics named after
// appName with the default registry.
func NewMysqlManagerWithAppMetrics(config *Config, appName string) (Manager, error) {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: fmt.Sprintf("%s_mysql_pool", appName),
		Help: "mysql connection pool stats",
	}, []string{"stat"})
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: fmt.Sprintf("%s_mysql_exec", appName),
		Help: "mysql statements executed",
	}, []string{"statement", "kind"})
	histogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    fmt.Sprintf("%s_mysql_exec_seconds", appName),
		Help:    "mysql statement latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"statement", "kind"})
	for _, c := range []prometheus.Collector{gauge, counter, histogram} {
		if err := prometheus.Register(c); err != nil {
			return nil, err
		}
	}
	return NewMysqlManagerWithMetrics(config, gauge, counter, histogram)
}
