package mapping

import (
	"github.com/vusec/ramses/addr"
	"github.com/vusec/ramses/bitops"
)

// DDRStandard selects which generation of DDR the Naive mapping assumes.
type DDRStandard int

const (
	DDR3 DDRStandard = iota
	DDR4
)

const (
	naiveMWBits  = 3
	naiveColBits = 10
	naiveRowBits = 16
	naiveBankOff = naiveMWBits + naiveColBits
)

func naiveBankBits(s DDRStandard) int {
	if s == DDR4 {
		return 4
	}
	return 3
}

func naiveRowOff(s DDRStandard) int {
	return naiveBankOff + naiveBankBits(s)
}

// Naive is the textbook memory-controller mapping: a flat field layout
// [row | bank | col | word_index] with no channel, DIMM, or rank splitting
// and no PCI hole. It's the mapping to reach for when modelling a system
// with a single channel, single DIMM, single rank.
type Naive struct {
	Standard DDRStandard
}

// NewNaive builds a Naive mapping for the given DDR standard.
func NewNaive(standard DDRStandard) Naive {
	return Naive{Standard: standard}
}

func (n Naive) Map(pa addr.PhysAddr) addr.DRAMAddr {
	bbits := naiveBankBits(n.Standard)
	rowOff := naiveRowOff(n.Standard)
	a := uint64(pa)
	if a>>uint(rowOff+naiveRowBits) != 0 {
		// Precondition violated: address wider than the declared geometry.
		return addr.BadDRAM
	}
	return addr.DRAMAddr{
		Col:  uint16((a >> naiveMWBits) & bitops.LSMask(naiveColBits)),
		Bank: uint8((a >> naiveBankOff) & bitops.LSMask(bbits)),
		Row:  uint16((a >> uint(rowOff)) & bitops.LSMask(naiveRowBits)),
	}
}

func (n Naive) MapReverse(d addr.DRAMAddr) addr.PhysAddr {
	rowOff := naiveRowOff(n.Standard)
	return addr.PhysAddr(
		(uint64(d.Row) << uint(rowOff)) +
			(uint64(d.Bank) << naiveBankOff) +
			(uint64(d.Col) << naiveMWBits),
	)
}

// TwiddleGran scans fields col -> bank -> row, in order of increasing
// physical-address stride, and returns the stride at which the first field
// mask touches actually changes.
func (n Naive) TwiddleGran(mask addr.DRAMAddr) addr.PhysAddr {
	ret := uint64(1) << naiveMWBits
	if mask.Col != 0 {
		return addr.PhysAddr(ret << uint(bitops.LeastSetBit(uint64(mask.Col))))
	}
	ret <<= naiveColBits
	if mask.Bank != 0 {
		return addr.PhysAddr(ret << uint(bitops.LeastSetBit(uint64(mask.Bank))))
	}
	ret <<= naiveBankBits(n.Standard)
	if mask.Row != 0 {
		return addr.PhysAddr(ret << uint(bitops.LeastSetBit(uint64(mask.Row))))
	}
	return 0
}

func (n Naive) Props() Props {
	return Props{
		Granularity: addr.PhysAddr(1) << naiveBankOff,
		BankCount:   1 << naiveBankBits(n.Standard),
		ColCount:    1 << naiveColBits,
		CellSize:    1 << naiveMWBits,
	}
}
