package reducer

import (
	"context"
	"errors"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	"github.com/stumble/whittle/pkg/passes"
)

// TargetEnv is set to the absolute target path for script oracles.
const TargetEnv = "WHITTLE_TARGET"

// Oracle decides whether a candidate still shows the behavior being reduced
// for. An error means the question could not be answered at all.
type Oracle interface {
	Interesting(ctx context.Context, target passes.Target) (bool, error)
	// Key identifies the verdicts of this oracle: two oracles with the same
	// key must agree on every candidate. Verdicts are cached under it; an
	// empty key disables caching.
	Key() string
}

// OracleFunc - an oracle that is never cached.
type OracleFunc func(ctx context.Context, target passes.Target) (bool, error)

func (f OracleFunc) Interesting(ctx context.Context, target passes.Target) (bool, error) {
	return f(ctx, target)
}

func (f OracleFunc) Key() string {
	return ""
}

// ScriptOracle runs an interestingness test. Exit status 0 means
// interesting, any other exit status or a timeout means not interesting.
// The command runs in the directory of the target, with the target path in
// WHITTLE_TARGET and appended to Args.
type ScriptOracle struct {
	Command string
	Args    []string
	// Timeout per invocation, 0 for none.
	Timeout time.Duration
}

// Key digests the command, the content of the command and of any argument
// naming a file, the arguments and the timeout. Editing the test script
// changes the key.
func (s ScriptOracle) Key() string {
	d := xxhash.New()
	_, _ = d.WriteString(s.Command)
	if path, err := exec.LookPath(s.Command); err == nil {
		writeFileContent(d, path)
	}
	for _, arg := range s.Args {
		_, _ = d.WriteString("\x00" + arg)
		writeFileContent(d, arg)
	}
	_, _ = d.WriteString("\x00" + s.Timeout.String())
	return "script-" + strconv.FormatUint(d.Sum64(), 16)
}

func writeFileContent(d *xxhash.Digest, path string) {
	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		return
	}
	if data, err := ioutil.ReadFile(path); err == nil {
		_, _ = d.Write(data)
	}
}

func (s ScriptOracle) Interesting(ctx context.Context, target passes.Target) (bool, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	path, err := filepath.Abs(target.Path())
	if err != nil {
		return false, passes.WrapIO(target, err)
	}
	args := append(append([]string(nil), s.Args...), path)
	cmd := exec.CommandContext(ctx, s.Command, args...)
	cmd.Dir = filepath.Dir(path)
	cmd.Env = append(os.Environ(), TargetEnv+"="+path)

	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)
	if err == nil {
		log.Debug().Str("target", path).Dur("elapsed", elapsed).Msg("[oracle] interesting")
		return true, nil
	}
	if ctx.Err() == context.Canceled {
		return false, ctx.Err()
	}
	if ctx.Err() == context.DeadlineExceeded {
		log.Info().Str("target", path).Dur("timeout", s.Timeout).Msg("[oracle] timed out")
		return false, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, passes.NewErrorf(passes.ErrInternal, "oracle %s: %v", s.Command, err)
}
