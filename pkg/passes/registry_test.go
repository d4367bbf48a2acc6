package passes

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type RegistryTestSuite struct {
	suite.Suite
}

func (suite *RegistryTestSuite) TestBuiltinsRegistered() {
	names := Names()
	for _, n := range []string{"blank", "clang-delta", "lines", "rename-param", "sql", "sql-clause"} {
		suite.Contains(names, n)
	}
	suite.True(Known("RenameParam"))
	suite.True(Known("rename_param"))
	suite.NotEmpty(Describe("lines"))
}

func (suite *RegistryTestSuite) TestLookup() {
	p, err := Lookup("lines", "")
	suite.Require().NoError(err)
	suite.Equal("lines", p.Name())

	p, err = Lookup("rename-param", "")
	suite.Require().NoError(err)
	ext, ok := p.(*ExternalPass)
	suite.Require().True(ok)
	suite.Equal("rename-param", ext.Transformation)
	suite.Equal(DefaultExternalTool, ext.Tool)

	_, err = Lookup("clang-delta", "")
	suite.Error(err)
	_, err = Lookup("no-such-pass", "")
	suite.Error(err)
}

func (suite *RegistryTestSuite) TestDuplicatePanics() {
	suite.Panics(func() {
		Register("Lines", "again", func(string) (Pass, error) { return nil, nil })
	})
}

func TestRegistryTestSuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}
