package cli

import (
	"fmt"
	"testing"

	"github.com/lumenhq/lumen/internal/domain"
)

func TestExitCodeFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: modelId missing", domain.ErrBadRequest), 2},
		{domain.ErrNotFound, 1},
		{domain.ErrFatal, 1},
		{domain.ErrEngineLoadFailed, 1},
	}
	for _, c := range cases {
		if got := exitCodeFor(c.err); got != c.want {
			t.Errorf("exitCodeFor(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}
