package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/stumble/whittle/pkg/clients/mysql/testsuite"
)

type memoryTestSuite struct {
	suite.Suite
}

func (suite *memoryTestSuite) TestJournal() {
	ctx := context.Background()
	r := NewMemoryRecorder()
	run := Run{ID: "r1", Target: "a.c", StartSize: 100, StartedAt: time.Unix(0, 0)}
	suite.Require().NoError(r.Begin(ctx, run))
	suite.Require().NoError(r.RecordPass(ctx, PassRecord{RunID: "r1", Pass: "lines", SizeBefore: 100, SizeAfter: 40}))
	suite.Require().NoError(r.RecordPass(ctx, PassRecord{RunID: "r1", Pass: "blank", SizeBefore: 40, SizeAfter: 38}))
	run.EndSize = 38
	run.Rounds = 1
	suite.Require().NoError(r.Finish(ctx, run))

	runs := r.Runs()
	suite.Require().Equal(1, len(runs))
	suite.Equal(int64(38), runs[0].EndSize)
	suite.Equal(1, runs[0].Rounds)

	passes := r.Passes("r1")
	suite.Require().Equal(2, len(passes))
	suite.Equal("lines", passes[0].Pass)
	suite.Equal("blank", passes[1].Pass)
	suite.Empty(r.Passes("r2"))
}

func (suite *memoryTestSuite) TestNop() {
	var r Recorder = NopRecorder{}
	suite.NoError(r.Begin(context.Background(), Run{}))
	suite.NoError(r.RecordPass(context.Background(), PassRecord{}))
	suite.NoError(r.Finish(context.Background(), Run{}))
}

func TestMemoryTestSuite(t *testing.T) {
	suite.Run(t, new(memoryTestSuite))
}

type mysqlRecorderTestSuite struct {
	*testsuite.MysqlTestSuite
	recorder *MySQLRecorder
}

func TestMySQLRecorderTestSuite(t *testing.T) {
	suite.Run(t, &mysqlRecorderTestSuite{
		MysqlTestSuite: testsuite.NewMysqlTestSuite("whittle_history_test", Schema),
	})
}

func (suite *mysqlRecorderTestSuite) SetupTest() {
	suite.MysqlTestSuite.SetupTest()
	r, err := NewMySQLRecorder(context.Background(), suite.Manager)
	suite.Require().NoError(err)
	suite.recorder = r
}

func (suite *mysqlRecorderTestSuite) TestJournal() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	run := Run{ID: "0f8c", Target: "a.sql", Plan: "default", StartSize: 512, StartedAt: time.Now()}
	suite.Require().NoError(suite.recorder.Begin(ctx, run))
	suite.Require().NoError(suite.recorder.RecordPass(ctx, PassRecord{
		RunID: run.ID, Round: 1, Pass: "sql", Transforms: 4, Successes: 2,
		SizeBefore: 512, SizeAfter: 100, Elapsed: time.Second,
	}))
	run.EndSize = 100
	run.EndedAt = time.Now()
	suite.Require().NoError(suite.recorder.Finish(ctx, run))

	n, err := suite.recorder.PassCount(ctx, run.ID)
	suite.Require().NoError(err)
	suite.Equal(1, n)
}
