// Package remap implements the post-mapping transforms RAMSES chains after
// a Mapping has decoded a DRAM address: rank mirroring (DDR3/DDR4 wire the
// two ranks of a DIMM with several address bits swapped, so physically
// adjacent rows in the mirrored rank are not where a naive mapping would
// put them) and RAS address XOR (some controllers XOR a row address bit
// into others before driving the bus). Like Mapping, a Remapping declares
// its twiddle granularity so callers can reason about which physical-address
// strides its output is sensitive to.
package remap

import (
	"fmt"

	"github.com/vusec/ramses/addr"
	"github.com/vusec/ramses/bitops"
)

// Remapping transforms a DRAM address after it has been decoded by a
// Mapping. Remap and RemapReverse must be mutual inverses.
type Remapping interface {
	Remap(d addr.DRAMAddr) addr.DRAMAddr
	RemapReverse(d addr.DRAMAddr) addr.DRAMAddr
	// Gran reports, per DRAM field, which bits of that field the remap can
	// touch. msys.MemorySystem.Granularity turns each remap's Gran into a
	// physical stride through the Mapping's TwiddleGran and folds it in.
	Gran() addr.DRAMAddr
}

func swapBits(hi, lo int, v uint16) uint16 {
	return uint16(bitops.Bit(hi, uint64(v))<<uint(lo) | bitops.Bit(lo, uint64(v))<<uint(hi))
}

// RankMirrorDDR3 swaps address bits (3,4), (5,6), (7,8) of row, col, and
// bank-bits (0,1) whenever the address names the mirrored rank (rank != 0).
// It is its own inverse.
type RankMirrorDDR3 struct{}

func (RankMirrorDDR3) Remap(d addr.DRAMAddr) addr.DRAMAddr {
	if d.Rank == 0 {
		return d
	}
	ret := d
	ret.Row = (d.Row &^ 0x1f8) | swapBits(7, 8, d.Row) | swapBits(5, 6, d.Row) | swapBits(3, 4, d.Row)
	ret.Col = (d.Col &^ 0x1f8) | swapBits(7, 8, d.Col) | swapBits(5, 6, d.Col) | swapBits(3, 4, d.Col)
	ret.Bank = (d.Bank &^ 0x3) | uint8(bitops.Bit(0, uint64(d.Bank))<<1) | uint8(bitops.Bit(1, uint64(d.Bank)))
	return ret
}

func (r RankMirrorDDR3) RemapReverse(d addr.DRAMAddr) addr.DRAMAddr {
	return r.Remap(d)
}

func (RankMirrorDDR3) Gran() addr.DRAMAddr {
	return addr.DRAMAddr{Bank: 3, Row: 0x1f8, Col: 0x1f8}
}

// RankMirrorDDR4 is the DDR4 analogue of RankMirrorDDR3: it additionally
// swaps row/col bits (11,13) and bank-group bits (2,3).
type RankMirrorDDR4 struct{}

func (RankMirrorDDR4) Remap(d addr.DRAMAddr) addr.DRAMAddr {
	if d.Rank == 0 {
		return d
	}
	ret := d
	ret.Row = (d.Row &^ 0x29f8) |
		swapBits(11, 13, d.Row) | swapBits(7, 8, d.Row) | swapBits(5, 6, d.Row) | swapBits(3, 4, d.Row)
	ret.Col = (d.Col &^ 0x29f8) |
		swapBits(11, 13, d.Col) | swapBits(7, 8, d.Col) | swapBits(5, 6, d.Col) | swapBits(3, 4, d.Col)
	ret.Bank = (d.Bank &^ 0xf) |
		uint8(bitops.Bit(2, uint64(d.Bank))<<3) | uint8(bitops.Bit(3, uint64(d.Bank))<<2) |
		uint8(bitops.Bit(0, uint64(d.Bank))<<1) | uint8(bitops.Bit(1, uint64(d.Bank)))
	return ret
}

func (r RankMirrorDDR4) RemapReverse(d addr.DRAMAddr) addr.DRAMAddr {
	return r.Remap(d)
}

func (RankMirrorDDR4) Gran() addr.DRAMAddr {
	return addr.DRAMAddr{Bank: 0xf, Row: 0x29f8, Col: 0x29f8}
}

// RASXor XORs Mask into the row address whenever row bit Bit is set. Some
// memory controllers drive this as part of row-address strobing to balance
// bus load. RemapReverse is Remap itself, which inverts it only when Mask
// leaves bit Bit clear: if Mask includes bit Bit, Remap clears the trigger
// bit, RemapReverse then sees it clear and leaves the row XORed.
type RASXor struct {
	Bit  int
	Mask uint16
}

// NewRASXor validates bit and mask against the 16-bit row field width
// before constructing a RASXor remapping.
func NewRASXor(bit int, mask uint16) (RASXor, error) {
	if bit < 0 || bit >= 16 {
		return RASXor{}, fmt.Errorf("remap: rasxor bit %d out of range [0,16)", bit)
	}
	return RASXor{Bit: bit, Mask: mask & 0xffff}, nil
}

func (r RASXor) Remap(d addr.DRAMAddr) addr.DRAMAddr {
	if bitops.Bit(r.Bit, uint64(d.Row)) != 0 {
		d.Row ^= r.Mask
	}
	return d
}

func (r RASXor) RemapReverse(d addr.DRAMAddr) addr.DRAMAddr {
	return r.Remap(d)
}

func (r RASXor) Gran() addr.DRAMAddr {
	return addr.DRAMAddr{Row: r.Mask}
}

// Chain applies a sequence of Remappings in order, and inverts them in
// reverse order. An empty Chain is the identity.
type Chain []Remapping

func (c Chain) Remap(d addr.DRAMAddr) addr.DRAMAddr {
	for _, r := range c {
		d = r.Remap(d)
	}
	return d
}

func (c Chain) RemapReverse(d addr.DRAMAddr) addr.DRAMAddr {
	for i := len(c) - 1; i >= 0; i-- {
		d = c[i].RemapReverse(d)
	}
	return d
}
