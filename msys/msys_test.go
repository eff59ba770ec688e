package msys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vusec/ramses/addr"
	"github.com/vusec/ramses/mapping"
	"github.com/vusec/ramses/remap"
)

func TestResolveNoRemaps(t *testing.T) {
	m := New(mapping.NewNaive(mapping.DDR3))

	assert.Equal(t, mapping.NewNaive(mapping.DDR3).Map(0), m.Resolve(0))
	assert.Equal(t, addr.DRAMAddr{Row: 8}, m.Resolve(0x80000))
}

func TestResolveReverseRoundTrip(t *testing.T) {
	m := New(mapping.NewNaive(mapping.DDR3), remap.RankMirrorDDR3{})

	for _, pa := range []addr.PhysAddr{0, 0x80000, 0x123456780} {
		d := m.Resolve(pa)
		if d == addr.BadDRAM {
			continue
		}
		assert.Equal(t, pa, m.ResolveReverse(d))
	}
}

func TestGranularityIsGCDOfPagesizeAndMappingGranularity(t *testing.T) {
	m := New(mapping.NewNaive(mapping.DDR3))
	// A naive DDR3 mapping has granularity 1<<13; with a 4KiB page that's
	// the GCD-limiting term since 4096 < 8192.
	assert.Equal(t, uint64(4096), m.Granularity(4096))
}

func TestGranularityFoldsInRemapTwiddle(t *testing.T) {
	r, err := remap.NewRASXor(3, 0x8)
	if err != nil {
		t.Fatal(err)
	}
	m := New(mapping.NewNaive(mapping.DDR3), r)
	gran := m.Granularity(1 << 30)
	assert.LessOrEqual(t, gran, uint64(1)<<13)
}
