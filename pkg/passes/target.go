package passes

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
)

// Target - handle to the artifact under reduction, a filesystem path.
// It is stable for the duration of a run and carries no open resources, so
// passes can re-open it on every call.
type Target string

// Path -
func (t Target) Path() string {
	return string(t)
}

// Read returns the current content of the target.
func (t Target) Read() ([]byte, error) {
	data, err := ioutil.ReadFile(t.Path())
	if err != nil {
		return nil, WrapIO(t, err)
	}
	return data, nil
}

// Write replaces the content of the target. The new content is written to a
// sibling temp file and renamed over the target, so readers never see a
// partially written file.
func (t Target) Write(data []byte) error {
	dir := filepath.Dir(t.Path())
	tmp, err := ioutil.TempFile(dir, "."+filepath.Base(t.Path())+".*")
	if err != nil {
		return WrapIO(t, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return WrapIO(t, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return WrapIO(t, err)
	}
	if info, err := os.Stat(t.Path()); err == nil {
		_ = os.Chmod(tmpName, info.Mode())
	}
	if err := os.Rename(tmpName, t.Path()); err != nil {
		os.Remove(tmpName)
		return WrapIO(t, err)
	}
	return nil
}

// Size returns the size of the target in bytes.
func (t Target) Size() (int64, error) {
	info, err := os.Stat(t.Path())
	if err != nil {
		return 0, WrapIO(t, err)
	}
	return info.Size(), nil
}

// Lines returns the content of the target split after each newline.
// A trailing line without newline is kept as-is.
func (t Target) Lines() ([][]byte, error) {
	data, err := t.Read()
	if err != nil {
		return nil, err
	}
	return splitLines(data), nil
}

func splitLines(data []byte) [][]byte {
	if len(data) == 0 {
		return nil
	}
	lines := bytes.SplitAfter(data, []byte("\n"))
	if len(lines[len(lines)-1]) == 0 {
		lines = lines[:len(lines)-1]
	}
	return lines
}
