package driver

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/stumble/whittle/pkg/passes"
)

// attempt is the intermediate state returned by scriptedPass.Transform.
type attempt struct {
	At int
}

// scriptedPass walks states 0..size-1 and answers transforms from results,
// recording every call.
type scriptedPass struct {
	size    int
	results []passes.Result
	calls   []string
	seen    []passes.State
	handed  []passes.State
	nth     int
}

func (s *scriptedPass) Name() string { return "scripted" }

func (s *scriptedPass) New(target passes.Target) (passes.State, bool, error) {
	s.calls = append(s.calls, "new")
	if s.size == 0 {
		return nil, false, nil
	}
	return s.hand(0), true, nil
}

func (s *scriptedPass) Transform(target passes.Target, state passes.State, n passes.Notifier) (passes.Result, passes.State, error) {
	s.calls = append(s.calls, "transform")
	s.seen = append(s.seen, state)
	r := passes.ResultOK
	if s.nth < len(s.results) {
		r = s.results[s.nth]
	}
	s.nth++
	return r, s.hand(attempt{At: state.(int)}), nil
}

func (s *scriptedPass) AdvanceOnSuccess(target passes.Target, state passes.State) (passes.State, bool, error) {
	s.calls = append(s.calls, "advance_on_success")
	return s.next(state)
}

func (s *scriptedPass) Advance(target passes.Target, state passes.State) (passes.State, bool, error) {
	s.calls = append(s.calls, "advance")
	return s.next(state)
}

func (s *scriptedPass) next(state passes.State) (passes.State, bool, error) {
	s.seen = append(s.seen, state)
	i := state.(attempt).At + 1
	if i >= s.size {
		return nil, false, nil
	}
	return s.hand(i), true, nil
}

func (s *scriptedPass) hand(st passes.State) passes.State {
	s.handed = append(s.handed, st)
	return st
}

func (s *scriptedPass) count(call string) int {
	n := 0
	for _, c := range s.calls {
		if c == call {
			n++
		}
	}
	return n
}

type mockPass struct {
	mock.Mock
}

func (m *mockPass) Name() string { return "mock" }

func (m *mockPass) New(target passes.Target) (passes.State, bool, error) {
	ret := m.Called(target)
	return ret.Get(0), ret.Bool(1), ret.Error(2)
}

func (m *mockPass) Transform(target passes.Target, state passes.State, n passes.Notifier) (passes.Result, passes.State, error) {
	ret := m.Called(target, state, n)
	return ret.Get(0).(passes.Result), ret.Get(1), ret.Error(2)
}

func (m *mockPass) AdvanceOnSuccess(target passes.Target, state passes.State) (passes.State, bool, error) {
	ret := m.Called(target, state)
	return ret.Get(0), ret.Bool(1), ret.Error(2)
}

func (m *mockPass) Advance(target passes.Target, state passes.State) (passes.State, bool, error) {
	ret := m.Called(target, state)
	return ret.Get(0), ret.Bool(1), ret.Error(2)
}

type DriverTestSuite struct {
	suite.Suite
	driver *Driver
	target passes.Target
}

func (suite *DriverTestSuite) SetupTest() {
	suite.driver = New()
	suite.target = passes.Target("unused.txt")
}

func (suite *DriverTestSuite) TestAlwaysOK() {
	p := &scriptedPass{size: 3}
	stats, err := suite.driver.Run(passes.Guard(p), suite.target)
	suite.Require().NoError(err)
	suite.Equal(3, p.count("transform"))
	suite.Equal(3, p.count("advance_on_success"))
	suite.Equal(0, p.count("advance"))
	suite.Equal(3, stats.Transforms)
	suite.Equal(3, stats.Successes)
	suite.False(stats.Stopped)
}

func (suite *DriverTestSuite) TestFailureInTheMiddle() {
	p := &scriptedPass{size: 3, results: []passes.Result{
		passes.ResultOK, passes.ResultInvalid, passes.ResultOK,
	}}
	_, err := suite.driver.Run(passes.Guard(p), suite.target)
	suite.Require().NoError(err)
	suite.Equal([]string{
		"new",
		"transform", "advance_on_success",
		"transform", "advance",
		"transform", "advance_on_success",
	}, p.calls)
}

func (suite *DriverTestSuite) TestEmptyPass() {
	p := &scriptedPass{size: 0}
	stats, err := suite.driver.Run(passes.Guard(p), suite.target)
	suite.Require().NoError(err)
	suite.Equal([]string{"new"}, p.calls)
	suite.Equal(0, stats.Transforms)
}

func (suite *DriverTestSuite) TestTransformIOError() {
	m := &mockPass{}
	ioErr := passes.WrapIO(suite.target, errors.New("disk gone"))
	m.On("New", suite.target).Return(0, true, nil)
	m.On("Transform", suite.target, 0, mock.Anything).Return(passes.ResultError, 0, ioErr)

	stats, err := suite.driver.Run(m, suite.target)
	suite.Require().Error(err)
	suite.True(errors.Is(err, ioErr))
	suite.True(passes.IsType(err, passes.ErrIO))
	suite.Equal(1, stats.Transforms)
	suite.Equal(1, stats.Faults)
	suite.Equal(0, stats.Failures)
	m.AssertExpectations(suite.T())
	m.AssertNotCalled(suite.T(), "Advance", mock.Anything, mock.Anything)
	m.AssertNotCalled(suite.T(), "AdvanceOnSuccess", mock.Anything, mock.Anything)
}

func (suite *DriverTestSuite) TestTransformErrorIsNotASuccess() {
	m := &mockPass{}
	m.On("New", suite.target).Return(0, true, nil)
	var zero passes.Result
	m.On("Transform", suite.target, 0, mock.Anything).Return(zero, 0, errors.New("crashed"))

	stats, err := suite.driver.Run(m, suite.target)
	suite.Require().Error(err)
	suite.Equal(1, stats.Transforms)
	suite.Equal(0, stats.Successes)
	suite.Equal(1, stats.Faults)
	m.AssertNotCalled(suite.T(), "AdvanceOnSuccess", mock.Anything, mock.Anything)
}

func (suite *DriverTestSuite) TestNewError() {
	m := &mockPass{}
	m.On("New", suite.target).Return(nil, false, errors.New("unreadable"))
	_, err := suite.driver.Run(m, suite.target)
	suite.Error(err)
	m.AssertNotCalled(suite.T(), "Transform", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *DriverTestSuite) TestAdvanceError() {
	m := &mockPass{}
	m.On("New", suite.target).Return(0, true, nil)
	m.On("Transform", suite.target, 0, mock.Anything).Return(passes.ResultInvalid, 0, nil).Once()
	m.On("Advance", suite.target, 0).Return(nil, false, errors.New("lost"))
	_, err := suite.driver.Run(m, suite.target)
	suite.Error(err)
	m.AssertExpectations(suite.T())
}

func (suite *DriverTestSuite) TestResultErrorEndsRun() {
	p := &scriptedPass{size: 5, results: []passes.Result{passes.ResultOK, passes.ResultError}}
	stats, err := suite.driver.Run(passes.Guard(p), suite.target)
	suite.True(errors.Is(err, ErrPassError))
	suite.Equal(2, stats.Transforms)
	suite.Equal(0, p.count("advance"))
}

func (suite *DriverTestSuite) TestResultStopEndsRun() {
	p := &scriptedPass{size: 5, results: []passes.Result{passes.ResultInvalid, passes.ResultStop}}
	stats, err := suite.driver.Run(passes.Guard(p), suite.target)
	suite.Require().NoError(err)
	suite.True(stats.Stopped)
	suite.Equal(2, stats.Transforms)
	suite.Equal(1, p.count("advance"))
}

func (suite *DriverTestSuite) TestPassDefinedResultTakesFailurePath() {
	custom := passes.Result(42)
	p := &scriptedPass{size: 2, results: []passes.Result{custom, custom}}
	_, err := suite.driver.Run(passes.Guard(p), suite.target)
	suite.Require().NoError(err)
	suite.Equal(2, p.count("advance"))
	suite.Equal(0, p.count("advance_on_success"))
}

func (suite *DriverTestSuite) TestIterationLimit() {
	p := &scriptedPass{size: 10}
	suite.driver.MaxIterations = 4
	stats, err := suite.driver.Run(passes.Guard(p), suite.target)
	suite.True(errors.Is(err, ErrIterationLimit))
	suite.Equal(4, stats.Transforms)
}

func (suite *DriverTestSuite) TestBranchCorrectnessAndThreading() {
	rnd := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		size := rnd.Intn(12)
		results := make([]passes.Result, size)
		for i := range results {
			if rnd.Intn(2) == 0 {
				results[i] = passes.ResultOK
			} else {
				results[i] = passes.ResultInvalid
			}
		}
		p := &scriptedPass{size: size, results: results}
		_, err := suite.driver.Run(passes.Guard(p), suite.target)
		suite.Require().NoError(err, "round %d", round)

		// every transform is followed by the advance matching its result
		nth := 0
		for i, c := range p.calls {
			if c != "transform" {
				continue
			}
			suite.Require().True(i+1 < len(p.calls))
			want := "advance"
			if results[nth] == passes.ResultOK {
				want = "advance_on_success"
			}
			suite.Equal(want, p.calls[i+1], fmt.Sprintf("round %d transform %d", round, nth))
			nth++
		}
		suite.Equal(size, nth)

		// each call saw exactly the state handed out by the previous one
		suite.Equal(len(p.seen), len(p.handed), "round %d", round)
		suite.Equal(p.handed, p.seen, "round %d", round)
	}
}

func (suite *DriverTestSuite) TestNotifierReachesTransform() {
	m := &mockPass{}
	n := &passes.CancelNotifier{}
	suite.driver.Notifier = n
	m.On("New", suite.target).Return(0, true, nil)
	m.On("Transform", suite.target, 0, n).Return(passes.ResultInvalid, 0, nil)
	m.On("Advance", suite.target, 0).Return(nil, false, nil)
	_, err := suite.driver.Run(m, suite.target)
	suite.Require().NoError(err)
	m.AssertExpectations(suite.T())
}

func (suite *DriverTestSuite) TestMetrics() {
	metrics := NewMetricsWith("test", nil)
	suite.driver.Metrics = metrics
	p := &scriptedPass{size: 3, results: []passes.Result{
		passes.ResultOK, passes.ResultInvalid, passes.ResultOK,
	}}
	_, err := suite.driver.Run(passes.Guard(p), suite.target)
	suite.Require().NoError(err)
	suite.Equal(2.0, testutil.ToFloat64(metrics.Transforms.WithLabelValues("scripted", "ok")))
	suite.Equal(1.0, testutil.ToFloat64(metrics.Transforms.WithLabelValues("scripted", "invalid")))
	suite.Equal(1.0, testutil.ToFloat64(metrics.Runs.WithLabelValues("scripted", "exhausted")))
}

func (suite *DriverTestSuite) TestTracing() {
	tracer := mocktracer.New()
	suite.driver.Tracer = tracer
	p := &scriptedPass{size: 2, results: []passes.Result{passes.ResultOK, passes.ResultInvalid}}
	_, err := suite.driver.Run(passes.Guard(p), suite.target)
	suite.Require().NoError(err)
	spans := tracer.FinishedSpans()
	suite.Require().Equal(2, len(spans))
	suite.Equal("pass.transform", spans[0].OperationName)
	suite.Equal("ok", spans[0].Tag("result"))
	suite.Equal("invalid", spans[1].Tag("result"))
	suite.Equal("scripted", spans[1].Tag("pass"))
}

func TestDriverTestSuite(t *testing.T) {
	suite.Run(t, new(DriverTestSuite))
}
