package testsuite

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/stumble/whittle/pkg/clients/mysql"
)

// EnableEnv must be set for suites built on MysqlTestSuite to run; they are
// skipped otherwise.
const EnableEnv = "WHITTLE_TEST_MYSQL"

type MysqlTestSuite struct {
	suite.Suite
	Testdb  string
	Tables  []string
	Config  *mysql.Config
	Manager mysql.Manager
}

// NewMysqlTestSuite @p db is the name of test db and tables are table creation
// SQL statements. DB will be created, so does tables, on SetupTest.
// If you pass different @p db for suites in different packages, you can test them in parallel.
func NewMysqlTestSuite(db string, tables []string) *MysqlTestSuite {
	config := mysql.ConfigFromEnv()
	config.DBName = db
	return NewMysqlTestSuiteWithConfig(config, db, tables)
}

func NewMysqlTestSuiteWithConfig(config *mysql.Config, db string, tables []string) *MysqlTestSuite {
	return &MysqlTestSuite{
		Testdb: db,
		Tables: tables,
		Config: config,
	}
}

func (suite *MysqlTestSuite) SetupSuite() {
	if os.Getenv(EnableEnv) == "" {
		suite.T().Skip(EnableEnv + " not set")
	}
}

func (suite *MysqlTestSuite) SetupTest() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// create DB
	conn, err := mysql.RawMysqlConn(suite.Config)
	suite.Require().NoError(err)
	defer conn.Close()
	_, err = conn.ExecContext(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s;", suite.Testdb))
	suite.Require().NoError(err)
	_, err = conn.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s;", suite.Testdb))
	suite.Require().NoError(err)

	if suite.Manager != nil {
		suite.Manager.Close()
	}
	manager, err := mysql.NewMysqlManager(suite.Config)
	suite.Require().NoError(err)
	suite.Manager = manager

	suite.Require().NoError(suite.Manager.Migrate(ctx, suite.Tables))
}

func (suite *MysqlTestSuite) TearDownSuite() {
	if suite.Manager != nil {
		suite.Manager.Close()
	}
}
