package x86

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vusec/ramses/addr"
)

func TestSandyDualChanRoundTrip(t *testing.T) {
	s := NewSandy(ControllerOpts{Geom: DualChan})
	pa := addr.PhysAddr(0x40000040)

	d := s.Map(pa)
	assert.Equal(t, uint8(1), d.Chan)

	got := s.MapReverse(d)
	assert.Equal(t, pa, got)
}

func TestSandyRoundTripAcrossGeometries(t *testing.T) {
	addrs := []addr.PhysAddr{0x40000040, 0xdeadbee0, 0x1000}
	geoms := []Geometry{0, DualChan, DualChan | DualDimm | DualRank}

	for _, g := range geoms {
		s := NewSandy(ControllerOpts{Geom: g})
		for _, pa := range addrs {
			d := s.Map(pa)
			assert.NotEqual(t, addr.BadDRAM, d)
			assert.Equal(t, pa, s.MapReverse(d))
		}
	}
}

func TestSandyWithPCIHole(t *testing.T) {
	opts := ControllerOpts{
		PCIBase: 0xc0000000,
		MemTop:  0x100000000,
		Geom:    DualChan,
	}
	s := NewSandy(opts)

	assert.Equal(t, addr.BadDRAM, s.Map(0xc0001000))

	pa := addr.PhysAddr(0x100001000)
	d := s.Map(pa)
	assert.Equal(t, pa, s.MapReverse(d))
}

func TestIvyHaswellRoundTripAcrossGeometries(t *testing.T) {
	addrs := []addr.PhysAddr{0x40000040, 0xdeadbee0, 0x1000}
	geoms := []Geometry{0, DualChan, DualChan | DualDimm | DualRank, DualDimm | DualRank}

	for _, g := range geoms {
		iv := NewIvyHaswell(ControllerOpts{Geom: g})
		for _, pa := range addrs {
			d := iv.Map(pa)
			assert.NotEqual(t, addr.BadDRAM, d)
			assert.Equal(t, pa, iv.MapReverse(d))
		}
	}
}

func TestSandyProps(t *testing.T) {
	single := NewSandy(ControllerOpts{})
	assert.Equal(t, addr.PhysAddr(1<<13), single.Props().Granularity)

	dual := NewSandy(ControllerOpts{Geom: DualChan})
	assert.Equal(t, addr.PhysAddr(1<<6), dual.Props().Granularity)
}

func TestIvyHaswellProps(t *testing.T) {
	single := NewIvyHaswell(ControllerOpts{})
	assert.Equal(t, addr.PhysAddr(1<<13), single.Props().Granularity)

	dual := NewIvyHaswell(ControllerOpts{Geom: DualChan})
	assert.Equal(t, addr.PhysAddr(1<<7), dual.Props().Granularity)
}

func TestSandyTwiddleGranColIsFinest(t *testing.T) {
	s := NewSandy(ControllerOpts{})
	mask := addr.DRAMAddr{Col: 1}
	assert.Equal(t, addr.PhysAddr(1<<3), s.TwiddleGran(mask))
}
