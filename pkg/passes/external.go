package passes

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

const (
	// exit status of a transformer asked for an instance that does not exist
	maxInstanceExitCode = 255
	defaultToolTimeout  = 30 * time.Second
)

// DefaultExternalTool is the transformer binary used by registry-built
// external passes.
var DefaultExternalTool = "clang_delta"

func init() {
	Register("clang-delta", "run one transformation of an external transformer; arg is the transformation name",
		func(arg string) (Pass, error) {
			if arg == "" {
				return nil, errors.New("clang-delta: transformation name required")
			}
			return NewExternalPass(DefaultExternalTool, arg), nil
		})
	Register("rename-param", "rename function parameters to p1, p2, ... with the external transformer",
		func(arg string) (Pass, error) {
			return NewExternalPass(DefaultExternalTool, "rename-param"), nil
		})
}

// ExternalPass - delegate the transformation to an external program that
// rewrites instance number <counter> of <transformation> and prints the
// result on stdout. State is the 1-based instance counter. An accepted
// rewrite removes the instance, so the counter stays put; a rejected one
// moves to the next instance. The program exits with 255 once the counter
// is beyond the last instance.
type ExternalPass struct {
	basePass
	Tool           string
	Transformation string
	Timeout        time.Duration
}

// NewExternalPass -
func NewExternalPass(tool, transformation string) *ExternalPass {
	return &ExternalPass{
		basePass:       newBasePass(NormalizeName(transformation)),
		Tool:           tool,
		Transformation: transformation,
		Timeout:        defaultToolTimeout,
	}
}

// New implements Pass
func (p *ExternalPass) New(target Target) (State, bool, error) {
	return 1, true, nil
}

// Transform implements Pass
func (p *ExternalPass) Transform(target Target, state State, notifier Notifier) (Result, State, error) {
	counter := p.mustIndexState(state)
	notifier = OrNop(notifier)
	if notifier.Canceled() {
		return ResultStop, state, nil
	}

	current, err := target.Read()
	if err != nil {
		return ResultError, state, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.Timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, p.Tool,
		"--transformation="+p.Transformation,
		"--counter="+strconv.Itoa(counter),
		target.Path())
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		p.LogWarn("cannot start %s: %v", p.Tool, err)
		return ResultError, state, nil
	}
	pid := cmd.Process.Pid
	notifier.Notify(Event{Kind: EventStarted, Pass: p.Name(), Target: target, PID: pid})
	err = cmd.Wait()
	notifier.Notify(Event{Kind: EventFinished, Pass: p.Name(), Target: target, PID: pid})

	if ctx.Err() == context.DeadlineExceeded {
		p.LogWarn("%s timed out after %s at instance %d", p.Tool, p.Timeout, counter)
		return ResultError, state, nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == maxInstanceExitCode {
			return ResultStop, state, nil
		}
		if notifier.Canceled() {
			return ResultStop, state, nil
		}
		p.LogWarn("%s failed at instance %d: %v: %s", p.Tool, counter, err, stderr.String())
		return ResultError, state, nil
	}
	if bytes.Equal(stdout.Bytes(), current) {
		return ResultInvalid, state, nil
	}
	if err := target.Write(stdout.Bytes()); err != nil {
		return ResultError, state, err
	}
	notifier.Notify(Event{
		Kind:   EventProgress,
		Pass:   p.Name(),
		Target: target,
		Detail: fmt.Sprintf("%s instance %d", p.Transformation, counter),
	})
	return ResultOK, state, nil
}

// AdvanceOnSuccess implements Pass
func (p *ExternalPass) AdvanceOnSuccess(target Target, state State) (State, bool, error) {
	return p.mustIndexState(state), true, nil
}

// Advance implements Pass
func (p *ExternalPass) Advance(target Target, state State) (State, bool, error) {
	return p.mustIndexState(state) + 1, true, nil
}
