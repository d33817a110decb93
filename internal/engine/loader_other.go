//go:build !linux && !darwin

package engine

import (
	"fmt"

	"github.com/lumenhq/lumen/internal/domain"
)

// platformLoader is the stub used on platforms Go's plugin package
// doesn't support (Windows). Engines still install there; they just
// can't be dynamically loaded in-process by this build — see DESIGN.md.
type platformLoader struct{}

func (platformLoader) Open(path string) (Library, error) {
	return nil, fmt.Errorf("%w: dynamic engine loading is not supported on this platform", domain.ErrEngineLoadFailed)
}
