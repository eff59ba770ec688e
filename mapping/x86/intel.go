// Package x86 implements the Intel memory-controller mapping variants:
// Sandy Bridge and the shared Ivy Bridge/Haswell layout. Both XOR scattered
// physical-address bits together to recover bank selection (Intel XORs
// address bits into the bank index to spread sequential accesses across
// banks) and optionally fold a channel-select bit out of the address before
// decoding the rest, and both sit behind an optional PCI hole.
package x86

import (
	"github.com/vusec/ramses/addr"
	"github.com/vusec/ramses/bitops"
	"github.com/vusec/ramses/mapping"
)

// Geometry is a bitset describing how many channels, DIMMs, and ranks the
// controller is populated with.
type Geometry int

const (
	DualRank Geometry = 1 << iota
	DualDimm
	DualChan
)

func (g Geometry) has(f Geometry) int {
	if g&f != 0 {
		return 1
	}
	return 0
}

// ControllerOpts configures an Intel mapping variant: its population
// geometry and, optionally, a PCI hole. A PCI hole is only in effect when
// both PCIBase and MemTop are non-zero.
type ControllerOpts struct {
	PCIBase addr.PhysAddr
	MemTop  addr.PhysAddr
	Geom    Geometry
}

func (o ControllerOpts) hasPCIHole() bool {
	return o.PCIBase != 0 && o.MemTop != 0
}

const (
	intelMWBits  = 3
	intelColBits = 10
)

func contiguousTwiddle(mask uint64, base uint64, maxbits int) addr.PhysAddr {
	lsb := bitops.LeastSetBit(mask)
	if lsb >= 0 && (maxbits == 0 || lsb < maxbits) {
		return addr.PhysAddr(base << uint(lsb))
	}
	return 0
}

// Sandy is the Intel Sandy Bridge mapping: bank bits are the XOR of two
// address-bit groups three positions apart, and the optional channel-select
// bit sits at address bit 6.
type Sandy struct {
	Opts ControllerOpts
}

func NewSandy(opts ControllerOpts) Sandy {
	return Sandy{Opts: opts}
}

func (s Sandy) Map(pa addr.PhysAddr) addr.DRAMAddr {
	if s.Opts.hasPCIHole() {
		pa = bitops.PCIHoleRemap(pa, s.Opts.PCIBase, s.Opts.MemTop)
		if pa == addr.BadPhys {
			return addr.BadDRAM
		}
	}
	return drammapSandy(uint64(pa), s.Opts.Geom)
}

func drammapSandy(a uint64, geom Geometry) addr.DRAMAddr {
	var ret addr.DRAMAddr
	if geom&DualChan != 0 {
		ret.Chan = uint8(bitops.Bit(6, a))
		a = bitops.PopBit(6, a)
	}
	a >>= intelMWBits
	ret.Col = uint16(a & bitops.LSMask(intelColBits))
	a >>= intelColBits
	if geom&DualDimm != 0 {
		ret.Dimm = uint8(bitops.Bit(3, a))
		a = bitops.PopBit(3, a)
	}
	if geom&DualRank != 0 {
		ret.Rank = uint8(bitops.Bit(3, a))
		a = bitops.PopBit(3, a)
	}
	for i := 0; i < 3; i++ {
		ret.Bank |= uint8((bitops.Bit(0, a) ^ bitops.Bit(3, a)) << uint(i))
		a >>= 1
	}
	ret.Row = uint16(a & bitops.LSMask(16))
	a >>= 16
	if a != 0 {
		// Address wider than the declared geometry: not representable.
		return addr.BadDRAM
	}
	return ret
}

func (s Sandy) MapReverse(d addr.DRAMAddr) addr.PhysAddr {
	ret := drammapReverseSandy(d, s.Opts.Geom)
	if s.Opts.hasPCIHole() {
		ret = bitops.PCIHoleRemapReverse(ret, s.Opts.PCIBase, s.Opts.MemTop)
	}
	return ret
}

func drammapReverseSandy(d addr.DRAMAddr, geom Geometry) addr.PhysAddr {
	ret := uint64(d.Row) & bitops.LSMask(16)
	if geom&DualRank != 0 {
		ret <<= 1
		ret |= uint64(d.Rank) & 1
	}
	if geom&DualDimm != 0 {
		ret <<= 1
		ret |= uint64(d.Dimm) & 1
	}
	for i := 2; i >= 0; i-- {
		ret <<= 1
		ret |= bitops.Bit(i, uint64(d.Bank)) ^ bitops.Bit(i, uint64(d.Row))
	}
	if geom&DualChan != 0 {
		ret <<= 7
		ret |= (uint64(d.Col) >> 3) & bitops.LSMask(7)
		ret <<= 1
		ret |= uint64(d.Chan) & 1
		ret <<= 3
		ret |= uint64(d.Col) & bitops.LSMask(3)
	} else {
		ret <<= intelColBits
		ret |= uint64(d.Col) & bitops.LSMask(intelColBits)
	}
	ret <<= intelMWBits
	return addr.PhysAddr(ret)
}

func (s Sandy) TwiddleGran(mask addr.DRAMAddr) addr.PhysAddr {
	dchan := s.Opts.Geom.has(DualChan)
	ddimm := s.Opts.Geom.has(DualDimm)
	drank := s.Opts.Geom.has(DualRank)
	base := uint64(1) << intelMWBits

	if ret := contiguousTwiddle(uint64(mask.Col), base, 3); ret != 0 {
		return ret
	}
	if dchan != 0 && mask.Chan != 0 {
		return addr.PhysAddr(base << 3)
	}
	if ret := contiguousTwiddle(uint64(mask.Col), base<<uint(dchan), 0); ret != 0 {
		return ret
	}
	base <<= uint(intelColBits + dchan)
	ret := contiguousTwiddle(uint64(mask.Bank), base, 0)
	if ret != 0 {
		return ret
	}
	base <<= 3
	if ddimm != 0 && mask.Dimm != 0 {
		return addr.PhysAddr(base)
	}
	if drank != 0 && mask.Rank != 0 {
		return addr.PhysAddr(base << uint(ddimm))
	}
	base <<= uint(ddimm + drank)
	return contiguousTwiddle(uint64(mask.Row), base, 0)
}

func (s Sandy) Props() mapping.Props {
	gran := addr.PhysAddr(1) << 13
	if s.Opts.Geom&DualChan != 0 {
		gran = addr.PhysAddr(1) << 6
	}
	return mapping.Props{
		Granularity: gran,
		BankCount:   8,
		ColCount:    1 << intelColBits,
		CellSize:    1 << intelMWBits,
	}
}

// IvyHaswell is the mapping shared by Intel Ivy Bridge and Haswell
// controllers: like Sandy, but the channel bit is the XOR of seven address
// bits (7, 8, 9, 12, 13, 18, 19), the rank bit is XORed with a higher bit,
// and the XOR partner of the third bank bit moves up by one on dual-rank
// geometries.
type IvyHaswell struct {
	Opts ControllerOpts
}

func NewIvyHaswell(opts ControllerOpts) IvyHaswell {
	return IvyHaswell{Opts: opts}
}

func (iv IvyHaswell) Map(pa addr.PhysAddr) addr.DRAMAddr {
	if iv.Opts.hasPCIHole() {
		pa = bitops.PCIHoleRemap(pa, iv.Opts.PCIBase, iv.Opts.MemTop)
		if pa == addr.BadPhys {
			return addr.BadDRAM
		}
	}
	return drammapIvyHaswell(uint64(pa), iv.Opts.Geom)
}

func drammapIvyHaswell(a uint64, geom Geometry) addr.DRAMAddr {
	var ret addr.DRAMAddr
	if geom&DualChan != 0 {
		ret.Chan = uint8(bitops.Bit(7, a) ^ bitops.Bit(8, a) ^ bitops.Bit(9, a) ^
			bitops.Bit(12, a) ^ bitops.Bit(13, a) ^ bitops.Bit(18, a) ^ bitops.Bit(19, a))
		a = bitops.PopBit(7, a)
	}
	a >>= intelMWBits
	ret.Col = uint16(a & bitops.LSMask(intelColBits))
	a >>= intelColBits
	if geom&DualDimm != 0 {
		ret.Dimm = uint8(bitops.Bit(2, a))
		a = bitops.PopBit(2, a)
	}
	if geom&DualRank != 0 {
		ret.Rank = uint8(bitops.Bit(2, a) ^ bitops.Bit(6, a))
		a = bitops.PopBit(2, a)
	}
	for i := 0; i < 2; i++ {
		ret.Bank |= uint8((bitops.Bit(0, a) ^ bitops.Bit(3, a)) << uint(i))
		a >>= 1
	}
	hibit := 3
	if geom&DualRank != 0 {
		hibit = 4
	}
	ret.Bank |= uint8((bitops.Bit(0, a) ^ bitops.Bit(hibit, a)) << 2)
	a >>= 1

	ret.Row = uint16(a & bitops.LSMask(16))
	a >>= 16
	if a != 0 {
		return addr.BadDRAM
	}
	return ret
}

func (iv IvyHaswell) MapReverse(d addr.DRAMAddr) addr.PhysAddr {
	ret := drammapReverseIvyHaswell(d, iv.Opts.Geom)
	if iv.Opts.hasPCIHole() {
		ret = bitops.PCIHoleRemapReverse(ret, iv.Opts.PCIBase, iv.Opts.MemTop)
	}
	return ret
}

func drammapReverseIvyHaswell(d addr.DRAMAddr, geom Geometry) addr.PhysAddr {
	ret := uint64(d.Row) & bitops.LSMask(16)
	if geom&DualRank != 0 {
		ret <<= 1
		ret |= bitops.Bit(2, uint64(d.Bank)) ^ bitops.Bit(3, uint64(d.Row))
		ret <<= 1
		ret |= (uint64(d.Rank) & 1) ^ bitops.Bit(2, uint64(d.Row))
	} else {
		ret <<= 1
		ret |= bitops.Bit(2, uint64(d.Bank)) ^ bitops.Bit(2, uint64(d.Row))
	}
	if geom&DualDimm != 0 {
		ret <<= 1
		ret |= uint64(d.Dimm) & 1
	}
	for i := 1; i >= 0; i-- {
		ret <<= 1
		ret |= bitops.Bit(i, uint64(d.Bank)) ^ bitops.Bit(i, uint64(d.Row))
	}
	if geom&DualChan != 0 {
		ret <<= 6
		ret |= (uint64(d.Col) >> 4) & bitops.LSMask(6)
		ret <<= 1
		ret |= (uint64(d.Chan) & 1) ^ bitops.Bit(1, ret) ^ bitops.Bit(2, ret) ^
			bitops.Bit(5, ret) ^ bitops.Bit(6, ret) ^ bitops.Bit(11, ret) ^ bitops.Bit(12, ret)
		ret <<= 4
		ret |= uint64(d.Col) & bitops.LSMask(4)
	} else {
		ret <<= intelColBits
		ret |= uint64(d.Col) & bitops.LSMask(intelColBits)
	}
	ret <<= intelMWBits
	return addr.PhysAddr(ret)
}

func (iv IvyHaswell) TwiddleGran(mask addr.DRAMAddr) addr.PhysAddr {
	dchan := iv.Opts.Geom.has(DualChan)
	ddimm := iv.Opts.Geom.has(DualDimm)
	drank := iv.Opts.Geom.has(DualRank)
	base := uint64(1) << intelMWBits

	if ret := contiguousTwiddle(uint64(mask.Col), base, 4); ret != 0 {
		return ret
	}
	if dchan != 0 && mask.Chan != 0 {
		return addr.PhysAddr(base << 4)
	}
	if ret := contiguousTwiddle(uint64(mask.Col), base<<uint(dchan), 0); ret != 0 {
		return ret
	}
	base <<= uint(intelColBits + dchan)
	if ret := contiguousTwiddle(uint64(mask.Bank), base, 2); ret != 0 {
		return ret
	}
	if ddimm != 0 && mask.Dimm != 0 {
		return addr.PhysAddr(base << 2)
	}
	if drank != 0 && mask.Rank != 0 {
		return addr.PhysAddr(base << uint(2+ddimm))
	}
	if bitops.Bit(2, uint64(mask.Bank)) != 0 {
		return addr.PhysAddr(base << uint(2+ddimm+drank))
	}
	base <<= uint(3 + ddimm + drank)
	return contiguousTwiddle(uint64(mask.Row), base, 0)
}

func (iv IvyHaswell) Props() mapping.Props {
	gran := addr.PhysAddr(1) << 13
	if iv.Opts.Geom&DualChan != 0 {
		gran = addr.PhysAddr(1) << 7
	}
	return mapping.Props{
		Granularity: gran,
		BankCount:   8,
		ColCount:    1 << intelColBits,
		CellSize:    1 << intelMWBits,
	}
}
