package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vusec/ramses/addr"
)

func TestHeuristicTranslate(t *testing.T) {
	h := NewHeuristic(12, 0x80000000)

	pa, err := h.Translate(0x1000123)
	assert.NoError(t, err)
	assert.Equal(t, addr.PhysAddr(0x80000000+0x123), pa)
}

func TestHeuristicPageShift(t *testing.T) {
	h := NewHeuristic(12, 0)
	assert.Equal(t, 12, h.PageShift())
	assert.Equal(t, uint64(4096), Granularity(h))
}

func TestHeuristicTranslateRange(t *testing.T) {
	h := NewHeuristic(12, 0x80000000)
	out, err := h.TranslateRange(0x1000000, 3)
	assert.NoError(t, err)
	assert.Len(t, out, 3)
	for _, pa := range out {
		assert.Equal(t, addr.PhysAddr(0x80000000), pa)
	}
}
