package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/stumble/whittle/pkg/clients/dcache"
)

type modelTestSuite struct {
	suite.Suite
}

func TestModelTestSuite(t *testing.T) {
	suite.Run(t, new(modelTestSuite))
}

func (suite *modelTestSuite) TestBasic() {
	plan, err := ParsePlanFromFile("testdata/sql.xml")
	suite.Require().NoError(err)
	suite.Equal("sql-cases", plan.Name)
	suite.Require().Equal(3, len(plan.Passes))
	suite.Equal("blank", plan.Passes[0].Name)
	suite.Equal("sql", plan.Passes[1].Name)
	suite.Equal("lines:8", plan.Passes[2].String())

	built, err := plan.Build()
	suite.Require().NoError(err)
	suite.Equal(3, len(built))
	suite.Equal("lines", built[2].Name())
}

func (suite *modelTestSuite) TestNestedImport() {
	_, err := ParsePlanFromFile("testdata/nested.xml")
	suite.Require().Error(err)
	suite.Contains(err.Error(), "nested import")
}

func (suite *modelTestSuite) TestUnknownPass() {
	_, err := ParsePlanFromFile("testdata/unknown.xml")
	suite.Require().Error(err)
	suite.Contains(err.Error(), "shuffle")
}

func (suite *modelTestSuite) TestEmptyPlan() {
	_, err := parsePlan(strings.NewReader(`<plan name="x"></plan>`), "x.xml", true)
	suite.Error(err)
	_, err = parsePlan(strings.NewReader(`<plan name="a b"><pass name="lines"/></plan>`), "x.xml", true)
	suite.Error(err)
	_, err = parsePlan(strings.NewReader(`<plan`), "x.xml", true)
	suite.Error(err)
}

func (suite *modelTestSuite) TestBadPassArg() {
	plan, err := ParsePassList("lines:0")
	suite.Require().NoError(err)
	_, err = plan.Build()
	suite.Error(err)
}

func (suite *modelTestSuite) TestPassList() {
	plan, err := ParsePassList(" blank, lines:4 ,")
	suite.Require().NoError(err)
	suite.Equal([]PassSpec{{Name: "blank"}, {Name: "lines", Arg: "4"}}, plan.Passes)

	_, err = ParsePassList("")
	suite.Error(err)
	_, err = ParsePassList("blank,nope")
	suite.Error(err)
}

func (suite *modelTestSuite) TestDefaultPlan() {
	suite.NoError(DefaultPlan().IsValid())
}

func (suite *modelTestSuite) TestGenTemplate() {
	out, err := GenTemplate("my-plan")
	suite.Require().NoError(err)
	suite.Contains(out, `<plan name="my-plan">`)
	suite.Contains(out, "lines: ")

	f, err := os.CreateTemp(suite.T().TempDir(), "plan-*.xml")
	suite.Require().NoError(err)
	_, err = f.WriteString(out)
	suite.Require().NoError(err)
	suite.Require().NoError(f.Close())
	plan, err := ParsePlanFromFile(f.Name())
	suite.Require().NoError(err)
	suite.Equal("my-plan", plan.Name)

	_, err = GenTemplate("")
	suite.Error(err)
}

func (suite *modelTestSuite) TestFromEnv() {
	suite.T().Setenv("WHITTLE_TEST_MAXROUNDS", "3")
	suite.T().Setenv("WHITTLE_TEST_ORACLETIMEOUT", "5s")
	config, err := FromEnvPrefix("whittle_test")
	suite.Require().NoError(err)
	suite.Equal(3, config.MaxRounds)
	suite.Equal(5*time.Second, config.OracleTimeout)
	suite.Equal(32, config.CacheSizeMB)
	suite.Equal(dcache.Day, config.CacheTTL)
	suite.Empty(config.RedisAddr)

	suite.T().Setenv("WHITTLE_TEST_CACHETTL", "week")
	config, err = FromEnvPrefix("whittle_test")
	suite.Require().NoError(err)
	suite.Equal(7*24*time.Hour, config.CacheTTL.ToDuration())

	suite.T().Setenv("WHITTLE_TEST_CACHETTL", "90m")
	config, err = FromEnvPrefix("whittle_test")
	suite.Require().NoError(err)
	suite.Equal(90*time.Minute, config.CacheTTL.ToDuration())

	suite.T().Setenv("WHITTLE_TEST_CACHETTL", "soon")
	_, err = FromEnvPrefix("whittle_test")
	suite.Error(err)
	suite.T().Setenv("WHITTLE_TEST_CACHETTL", "day")

	suite.T().Setenv("WHITTLE_TEST_CACHESIZEMB", "0")
	_, err = FromEnvPrefix("whittle_test")
	suite.Error(err)
}
