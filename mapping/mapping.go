// Package mapping decodes physical addresses into DRAM addresses. A Mapping
// is the memory controller's address-decoding function: it is specific to a
// CPU/DDR generation, invertible, and reports the physical-address stride at
// which its output can change (its twiddle granularity).
package mapping

import "github.com/vusec/ramses/addr"

// Props describes the static geometry a Mapping decodes against.
type Props struct {
	// Granularity is the size of the aligned physical-address blocks inside
	// which the mapping's output only advances in column: every address in
	// one block lands in the same row, bank, rank, DIMM and channel.
	Granularity addr.PhysAddr
	BankCount   int
	ColCount    int
	// CellSize, in bytes, times ColCount gives the row length in bytes.
	CellSize int
}

// Mapping is a memory controller's phys->DRAM decoder. Implementations are
// pure functions of their configuration: Map and MapReverse must be mutual
// inverses for every address not excluded by a PCI hole.
type Mapping interface {
	// Map decodes a physical address into a DRAM address. It returns
	// addr.BadDRAM if pa is outside the mapping's addressable geometry
	// (e.g. it falls in a PCI hole, or sets bits above the declared
	// field widths).
	Map(pa addr.PhysAddr) addr.DRAMAddr
	// MapReverse inverts Map.
	MapReverse(da addr.DRAMAddr) addr.PhysAddr
	// TwiddleGran reports the smallest physical-address stride at which
	// varying any bit set in mask's fields changes Map's output. It
	// returns 0 if mask is empty (no finite stride).
	TwiddleGran(mask addr.DRAMAddr) addr.PhysAddr
	// Props reports the mapping's static geometry.
	Props() Props
}
