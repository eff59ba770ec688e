// Package translate provides virtual-to-physical address translation, the
// oracle a BufferMap needs to locate a virtual buffer's backing pages in
// physical (and from there DRAM) address space.
package translate

import (
	"errors"

	"github.com/vusec/ramses/addr"
)

// ErrNotResident is returned when a virtual address has no backing
// physical page (e.g. the page has been swapped out or never faulted in).
var ErrNotResident = errors.New("translate: virtual address not resident")

// Translation maps virtual addresses to physical addresses at some fixed
// page granularity.
type Translation interface {
	// Translate resolves a single virtual address.
	Translate(va uintptr) (addr.PhysAddr, error)
	// TranslateRange resolves npages consecutive pages starting at va
	// (which callers must align to Granularity). An entry that isn't
	// resident is reported as addr.BadPhys in the result, not an error;
	// TranslateRange only fails when the whole operation cannot be
	// attempted (e.g. the underlying source can't be read at all).
	TranslateRange(va uintptr, npages int) ([]addr.PhysAddr, error)
	// PageShift is log2 of the translation granularity.
	PageShift() int
}

// Granularity returns a Translation's page size in bytes.
func Granularity(t Translation) uint64 {
	return uint64(1) << uint(t.PageShift())
}
