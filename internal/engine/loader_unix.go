//go:build linux || darwin

package engine

import (
	"fmt"
	"plugin"

	"github.com/lumenhq/lumen/internal/domain"
)

// platformLoader loads engine shared libraries via Go's plugin package,
// available on linux and darwin.
type platformLoader struct{}

// getEngineFunc is the symbol every engine shared library must export: a
// zero-argument factory returning the engine's capability object.
type getEngineFunc func() domain.CapabilityObject

func (platformLoader) Open(path string) (Library, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrEngineLoadFailed, path, err)
	}
	sym, err := p.Lookup("get_engine")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: missing get_engine symbol: %v", domain.ErrEngineLoadFailed, path, err)
	}
	factory, ok := sym.(getEngineFunc)
	if !ok {
		return nil, fmt.Errorf("%w: %s: get_engine has an unexpected signature", domain.ErrEngineLoadFailed, path)
	}

	cap := factory()
	if cap.ABIVersion() != currentABIVersion {
		return nil, fmt.Errorf("%w: %s: ABI version %d != %d", domain.ErrEngineLoadFailed, path, cap.ABIVersion(), currentABIVersion)
	}
	return &unixLibrary{cap: cap}, nil
}

// unixLibrary wraps a loaded capability object. Go's plugin package never
// unloads a library once opened (there is no dlclose equivalent); Close is
// therefore a no-op here and exists only to satisfy Library.
type unixLibrary struct {
	cap domain.CapabilityObject
}

func (l *unixLibrary) Capability() domain.CapabilityObject { return l.cap }
func (l *unixLibrary) Close() error                        { return nil }
