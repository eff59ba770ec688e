// Package msys ties a Mapping and an ordered chain of Remappings together
// into a single phys<->DRAM resolver, and derives the coarsest physical
// stride ("granularity") within which the whole pipeline's output stays in
// one row and advances only in column.
package msys

import (
	"github.com/vusec/ramses/addr"
	"github.com/vusec/ramses/mapping"
	"github.com/vusec/ramses/remap"
)

// MemorySystem composes one Mapping with zero or more Remappings applied,
// in order, to the Mapping's output. There is no explicit teardown: a
// MemorySystem only holds references to its Mapping and Remappings, so it
// is reclaimed by the garbage collector like any other value once it goes
// out of scope.
type MemorySystem struct {
	Mapping mapping.Mapping
	Remaps  []remap.Remapping
}

// New builds a MemorySystem from a Mapping and an ordered remap chain.
func New(m mapping.Mapping, remaps ...remap.Remapping) MemorySystem {
	return MemorySystem{Mapping: m, Remaps: remaps}
}

// Resolve decodes a physical address into a DRAM address: it runs the
// Mapping, then applies every Remapping in order.
func (m MemorySystem) Resolve(pa addr.PhysAddr) addr.DRAMAddr {
	return remap.Chain(m.Remaps).Remap(m.Mapping.Map(pa))
}

// ResolveReverse inverts Resolve: it undoes the remap chain in reverse
// order, then inverts the Mapping.
func (m MemorySystem) ResolveReverse(d addr.DRAMAddr) addr.PhysAddr {
	return m.Mapping.MapReverse(remap.Chain(m.Remaps).RemapReverse(d))
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Granularity reports the coarsest physical-address stride at which
// addresses are guaranteed to land in the same row/bank/rank/DIMM/channel:
// the GCD of pagesz, the Mapping's own granularity, and each Remapping's
// twiddle granularity translated back into a physical-address stride via
// the Mapping. bufmap.Build uses it as a BufferMap's entry length.
func (m MemorySystem) Granularity(pagesz uint64) uint64 {
	gran := gcd(pagesz, uint64(m.Mapping.Props().Granularity))
	for _, r := range m.Remaps {
		gran = gcd(gran, uint64(m.Mapping.TwiddleGran(r.Gran())))
	}
	return gran
}
