package mem

import "testing"

func TestSizePages(t *testing.T) {
	specs := []struct {
		size Size
		exp  uint32
	}{
		{0, 0},
		{1, 1},
		{PageSize, 1},
		{PageSize + 1, 2},
		{1 * Mb, 256},
	}

	for _, spec := range specs {
		if got := spec.size.Pages(); got != spec.exp {
			t.Errorf("expected %d bytes to span %d pages; got %d", uint64(spec.size), spec.exp, got)
		}
	}
}
