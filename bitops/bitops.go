// Package bitops provides the low-level bit manipulation RAMSES's mapping
// and remapping variants are built from: extracting and removing single
// bits, masking off the low n bits of a word, and locating the position of
// the least significant set bit. It also carries the PCI-hole remap, the one
// piece of "bit twiddling" complex enough to be its own pair of functions
// but still squarely a bit-utility rather than a full Mapping variant.
package bitops

import "github.com/vusec/ramses/addr"

// LSMask returns a mask of the n least significant bits: (1<<n)-1.
// n <= 0 yields 0; n >= 64 yields all ones.
func LSMask(n int) uint64 {
	switch {
	case n <= 0:
		return 0
	case n >= 64:
		return ^uint64(0)
	default:
		return (uint64(1) << uint(n)) - 1
	}
}

// Bit extracts bit n of x (0 or 1).
func Bit(n int, x uint64) uint64 {
	return (x >> uint(n)) & 1
}

// PopBit removes bit n from x, shifting every higher bit down by one.
func PopBit(n int, x uint64) uint64 {
	return (x & LSMask(n)) + ((x >> uint(n+1)) << uint(n))
}

// LeastSetBit returns the index of the least significant set bit of v, or -1
// if v is zero.
func LeastSetBit(v uint64) int {
	if v == 0 {
		return -1
	}
	v = (v ^ (v - 1)) >> 1
	ret := 0
	for v != 0 {
		v >>= 1
		ret++
	}
	return ret
}

const fourGiB = addr.PhysAddr(1) << 32

// PCIHoleRemap compacts a physical address around the PCI hole: addresses in
// [pcibase, 4GiB) are invalid (there is no DRAM behind memory-mapped I/O),
// and addresses at or above tom ("top of memory") are shifted down by
// (tom - pcibase) to close the gap the hole leaves in the DRAM address
// space.
func PCIHoleRemap(a, pcibase, tom addr.PhysAddr) addr.PhysAddr {
	if a < tom {
		if a >= pcibase && a < fourGiB {
			return addr.BadPhys
		}
		return a
	}
	return pcibase + (a - tom)
}

// PCIHoleRemapReverse inverts PCIHoleRemap.
func PCIHoleRemapReverse(a, pcibase, tom addr.PhysAddr) addr.PhysAddr {
	if a >= pcibase && a < fourGiB {
		return a - pcibase + tom
	}
	return a
}

// PCIHoleOffset is the fixed-offset variant of the PCI hole remap: addresses
// at or above holebase but below 4GiB are invalid, and addresses at or above
// 4GiB are shifted down by the constant holeoffset rather than compacted
// against a top-of-memory value.
func PCIHoleOffset(a, holebase addr.PhysAddr, holeoffset uint32) addr.PhysAddr {
	if a >= holebase {
		if a < fourGiB {
			return addr.BadPhys
		}
		return a - addr.PhysAddr(holeoffset)
	}
	return a
}

// PCIHoleOffsetReverse inverts PCIHoleOffset.
func PCIHoleOffsetReverse(a, holebase addr.PhysAddr, holeoffset uint32) addr.PhysAddr {
	if a >= holebase {
		return a + addr.PhysAddr(holeoffset)
	}
	return a
}
