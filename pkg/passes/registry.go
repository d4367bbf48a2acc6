package passes

import (
	"fmt"
	"sort"
	"sync"

	"github.com/iancoleman/strcase"
)

// Factory builds a pass from its plan argument, which may be empty.
type Factory func(arg string) (Pass, error)

type registration struct {
	description string
	factory     Factory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]registration)
)

// NormalizeName maps "RenameParam", "rename_param" and "rename-param" to the
// same registry key.
func NormalizeName(name string) string {
	return strcase.ToKebab(name)
}

// Register makes a pass available by name. It panics on duplicates, so it is
// meant to be called from init.
func Register(name, description string, factory Factory) {
	key := NormalizeName(name)
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[key]; dup {
		panic("pass registered twice: " + key)
	}
	registry[key] = registration{description: description, factory: factory}
}

// Lookup builds the pass registered under name.
func Lookup(name, arg string) (Pass, error) {
	registryMu.RLock()
	reg, ok := registry[NormalizeName(name)]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown pass: %s", name)
	}
	return reg.factory(arg)
}

// Known reports whether a pass is registered under name.
func Known(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[NormalizeName(name)]
	return ok
}

// Describe returns the description of a registered pass.
func Describe(name string) string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[NormalizeName(name)].description
}

// Names of all registered passes, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	rst := make([]string, 0, len(registry))
	for k := range registry {
		rst = append(rst, k)
	}
	sort.Strings(rst)
	return rst
}
