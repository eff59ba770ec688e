package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vusec/ramses/addr"
)

func TestNaiveDDR3Map(t *testing.T) {
	n := NewNaive(DDR3)
	pa := addr.PhysAddr(0x23456780)

	got := n.Map(pa)
	want := addr.DRAMAddr{Bank: 3, Row: 0x2345, Col: 0x0f0}
	assert.Equal(t, want, got)
	assert.Equal(t, pa, n.MapReverse(got))
}

func TestNaiveDDR4WiderBankField(t *testing.T) {
	n := NewNaive(DDR4)
	// Same address decodes a 4-bit bank and a row shifted up by one bit.
	got := n.Map(0x23456780)
	want := addr.DRAMAddr{Bank: 0xb, Row: 0x11a2, Col: 0x0f0}
	assert.Equal(t, want, got)
}

func TestNaiveRoundTrip(t *testing.T) {
	for _, std := range []DDRStandard{DDR3, DDR4} {
		n := NewNaive(std)
		for _, pa := range []addr.PhysAddr{0, 0x1000, 0x123456780, 0xfffff8} {
			d := n.Map(pa)
			if d == addr.BadDRAM {
				continue
			}
			assert.Equal(t, pa, n.MapReverse(d), "standard %v", std)
		}
	}
}

func TestNaiveMapOutOfRangeIsBadDRAM(t *testing.T) {
	n := NewNaive(DDR3)
	huge := addr.PhysAddr(1) << 40
	assert.Equal(t, addr.BadDRAM, n.Map(huge))
}

func TestNaiveTwiddleGranPrefersFinestField(t *testing.T) {
	n := NewNaive(DDR3)

	assert.Equal(t, addr.PhysAddr(1<<3), n.TwiddleGran(addr.DRAMAddr{Col: 1}))
	assert.Equal(t, addr.PhysAddr(1<<13), n.TwiddleGran(addr.DRAMAddr{Bank: 1}))
	assert.Equal(t, addr.PhysAddr(1<<16), n.TwiddleGran(addr.DRAMAddr{Row: 1}))
	assert.Equal(t, addr.PhysAddr(0), n.TwiddleGran(addr.DRAMAddr{}))
}

func TestNaiveProps(t *testing.T) {
	p3 := NewNaive(DDR3).Props()
	assert.Equal(t, 8, p3.BankCount)
	assert.Equal(t, 1024, p3.ColCount)
	assert.Equal(t, 8, p3.CellSize)

	p4 := NewNaive(DDR4).Props()
	assert.Equal(t, 16, p4.BankCount)
}
