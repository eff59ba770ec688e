package translate

import (
	"encoding/binary"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vusec/ramses/addr"
)

func writeFakePagemap(t *testing.T, entries []uint64) *Pagemap {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "pagemap")
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	buf := make([]byte, len(entries)*pagemapEntrySize)
	for i, e := range entries {
		binary.LittleEndian.PutUint64(buf[i*pagemapEntrySize:], e)
	}
	_, err = f.Write(buf)
	require.NoError(t, err)

	return &Pagemap{f: f, pageShift: 12}
}

func TestPagemapTranslatePresent(t *testing.T) {
	const pfn = 0x1234
	present := uint64(1)<<63 | pfn
	pm := writeFakePagemap(t, []uint64{present})

	pa, err := pm.Translate(0x100)
	assert.NoError(t, err)
	assert.Equal(t, addr.PhysAddr(pfn<<12)+0x100, pa)
}

func TestPagemapTranslateNotResident(t *testing.T) {
	pm := writeFakePagemap(t, []uint64{0})
	_, err := pm.Translate(0)
	assert.ErrorIs(t, err, ErrNotResident)
}

func TestPagemapTranslateRange(t *testing.T) {
	present := uint64(1)<<63 | 0x10
	pm := writeFakePagemap(t, []uint64{present, 0, present})

	out, err := pm.TranslateRange(0, 3)
	assert.NoError(t, err)
	assert.Equal(t, []addr.PhysAddr{addr.PhysAddr(0x10 << 12), addr.BadPhys, addr.PhysAddr(0x10 << 12)}, out)
}

func TestPageShift(t *testing.T) {
	assert.Equal(t, 12, pageShift(4096))
	assert.Equal(t, 21, pageShift(2*1024*1024))
}
