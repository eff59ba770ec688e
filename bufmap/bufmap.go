// Package bufmap indexes a virtual buffer against both physical and DRAM
// address space: given a buffer, a Translation oracle, and a MemorySystem,
// it builds a sorted page table (by physical address) and a sorted table of
// DRAM ranges (by DRAM order), and answers point, nearest, and range
// queries over either in O(log n).
package bufmap

import (
	"fmt"
	"sort"
	"unsafe"

	"github.com/vusec/ramses/addr"
	"github.com/vusec/ramses/binsearch"
	"github.com/vusec/ramses/msys"
	"github.com/vusec/ramses/translate"
)

// PTE is one virt<->phys entry of a BufferMap's page table.
type PTE struct {
	PA addr.PhysAddr
	VA uintptr
}

// DRAMRange is a maximal run of entries that share a bank and sit at
// consecutive DRAM offsets (wrapping into the next row counts as
// consecutive). Entries of one range need not be physically adjacent.
type DRAMRange struct {
	Start    addr.DRAMAddr
	EntryCnt int
}

// BMPos names a position within a BufferMap: a range index and an entry
// index within that range.
type BMPos struct {
	RI, EI int
}

// AddrEntry is the virt<->DRAM pairing for one entry in a BufferMap.
type AddrEntry struct {
	VirtP    uintptr
	DRAMAddr addr.DRAMAddr
}

// BuildOpts controls BufferMap construction.
type BuildOpts struct {
	// NoClobber disables reusing the caller's buffer as scratch space for
	// the intermediate physical- and DRAM-address arrays Build needs.
	// When false (the default), Build reuses buf's backing storage as
	// scratch whenever it is large enough, avoiding an extra allocation.
	NoClobber bool
	// ZeroFill, if set together with NoClobber unset, zeroes buf after
	// Build has finished using it as scratch space.
	ZeroFill bool
}

// BufferMap maps a virtual buffer to the physical pages backing it and the
// DRAM ranges those pages occupy.
type BufferMap struct {
	bufBase  uintptr
	PTEs     []PTE
	PageSize uint64
	Ranges   []DRAMRange
	EntryLen uint64
	MSys     msys.MemorySystem
}

func alignDown(a, n uint64) uint64 {
	return (a / n) * n
}

func ceildiv(a, b int) int {
	return a/b + boolToInt(a%b != 0)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// scratchDRAM reinterprets buf's backing array as a []addr.DRAMAddr of
// length n when buf is large enough and reuse is permitted, to avoid a
// second allocation for Build's scratch needs.
func scratchDRAM(buf []byte, n int, noClobber bool) []addr.DRAMAddr {
	const sz = int(unsafe.Sizeof(addr.DRAMAddr{}))
	if noClobber || len(buf) == 0 || n*sz >= len(buf) {
		return make([]addr.DRAMAddr, n)
	}
	return unsafe.Slice((*addr.DRAMAddr)(unsafe.Pointer(&buf[0])), n)
}

// Build constructs a BufferMap over buf, using trans to resolve buf's
// virtual pages to physical addresses and ms to resolve physical addresses
// to DRAM addresses. Construction is all-or-nothing: on error no partial
// BufferMap is returned.
func Build(buf []byte, trans translate.Translation, ms msys.MemorySystem, opts BuildOpts) (*BufferMap, error) {
	if len(buf) == 0 {
		return nil, fmt.Errorf("bufmap: empty buffer")
	}
	pagesz := translate.Granularity(trans)
	ptelen := ceildiv(len(buf), int(pagesz))
	bufBase := alignDown(uint64(uintptr(unsafe.Pointer(&buf[0]))), pagesz)

	ptes, err := buildPTEs(buf, uintptr(bufBase), ptelen, pagesz, trans, opts)
	if err != nil {
		return nil, fmt.Errorf("bufmap: %w", err)
	}

	elen := ms.Granularity(pagesz)
	if elen == 0 {
		return nil, fmt.Errorf("bufmap: memory system granularity resolved to zero")
	}
	ranges, err := buildRanges(buf, ptes, int(pagesz), int(elen), ms, opts)
	if err != nil {
		return nil, fmt.Errorf("bufmap: %w", err)
	}

	if opts.ZeroFill && !opts.NoClobber {
		for i := range buf {
			buf[i] = 0
		}
	}

	return &BufferMap{
		bufBase:  uintptr(bufBase),
		PTEs:     ptes,
		PageSize: pagesz,
		Ranges:   ranges,
		EntryLen: elen,
		MSys:     ms,
	}, nil
}

func buildPTEs(buf []byte, bufBase uintptr, ptelen int, pagesz uint64, trans translate.Translation, opts BuildOpts) ([]PTE, error) {
	ptes := make([]PTE, ptelen)
	// Bulk translation follows scratch availability: NoClobber, or a buffer
	// too small to have held the bulk result, translates page at a time.
	if bulk := !opts.NoClobber && ptelen*8 < len(buf); bulk {
		pas, err := trans.TranslateRange(bufBase, ptelen)
		if err != nil {
			return nil, err
		}
		if len(pas) != ptelen {
			return nil, fmt.Errorf("translator resolved %d of %d pages", len(pas), ptelen)
		}
		for i := 0; i < ptelen; i++ {
			va := bufBase + uintptr(uint64(i)*pagesz)
			ptes[i] = PTE{VA: va, PA: pas[i]}
		}
	} else {
		for i := 0; i < ptelen; i++ {
			va := bufBase + uintptr(uint64(i)*pagesz)
			pa, err := trans.Translate(va)
			if err != nil {
				return nil, err
			}
			ptes[i] = PTE{VA: va, PA: pa}
		}
	}

	sort.Slice(ptes, func(i, j int) bool { return ptes[i].PA < ptes[j].PA })
	return ptes, nil
}

func rcDiff(a, b addr.DRAMAddr, colCount, cellSize int) int {
	return (int(a.Row)-int(b.Row))*colCount*cellSize + (int(a.Col)-int(b.Col))*cellSize
}

func buildRanges(buf []byte, ptes []PTE, pagesz, elen int, ms msys.MemorySystem, opts BuildOpts) ([]DRAMRange, error) {
	props := ms.Mapping.Props()
	ecnt := len(ptes) * (pagesz / elen)
	tmp := scratchDRAM(buf, ecnt, opts.NoClobber)

	ei := 0
	for _, pte := range ptes {
		for off := 0; off < pagesz; off += elen {
			tmp[ei] = ms.Resolve(pte.PA + addr.PhysAddr(off))
			ei++
		}
	}
	sort.Slice(tmp, func(i, j int) bool { return addr.Less(tmp[i], tmp[j]) })

	var ranges []DRAMRange
	ranges = append(ranges, DRAMRange{Start: tmp[0], EntryCnt: 1})
	last := tmp[0]
	for i := 1; i < ecnt; i++ {
		cur := tmp[i]
		if !last.Same(addr.Bank, cur) || rcDiff(cur, last, props.ColCount, props.CellSize) != elen {
			ranges = append(ranges, DRAMRange{Start: cur, EntryCnt: 1})
		} else {
			ranges[len(ranges)-1].EntryCnt++
		}
		last = cur
	}
	return ranges, nil
}

// Addr computes the DRAM address of entry ei within range ri.
func (bm *BufferMap) Addr(ri, ei int) addr.DRAMAddr {
	if ri < 0 || ei < 0 || ri >= len(bm.Ranges) || ei >= bm.Ranges[ri].EntryCnt {
		return addr.BadDRAM
	}
	props := bm.MSys.Mapping.Props()
	cellOff := (ei * int(bm.EntryLen)) / props.CellSize

	da := bm.Ranges[ri].Start
	total := int(da.Col) + cellOff
	da.Row += uint16(total / props.ColCount)
	da.Col = uint16(total % props.ColCount)
	return da
}

// NextPos advances p by a single entry: EI+1, wrapping into the next range
// once the current one is exhausted. End-of-buffer is (len(bm.Ranges), 0).
func (bm *BufferMap) NextPos(p BMPos) BMPos {
	if p.RI >= len(bm.Ranges) {
		return BMPos{RI: len(bm.Ranges), EI: 0}
	}
	if p.EI+1 >= bm.Ranges[p.RI].EntryCnt {
		return BMPos{RI: p.RI + 1, EI: 0}
	}
	return BMPos{RI: p.RI, EI: p.EI + 1}
}

// Next returns the position of the first entry after p whose DRAM address
// differs from p's at level lvl or coarser: the next bank, rank, DIMM, or
// channel when lvl is coarser than Row, or the next row when lvl == Row.
func (bm *BufferMap) Next(p BMPos, lvl addr.DRAMLevel) BMPos {
	ida := bm.Addr(p.RI, p.EI)
	props := bm.MSys.Mapping.Props()
	colEnts := ((props.ColCount - int(ida.Col)) * props.CellSize) / int(bm.EntryLen)

	ri, ei := p.RI, p.EI
	da := ida
	for da != addr.BadDRAM && ida.Same(lvl, da) {
		if lvl == addr.Row {
			remEnts := bm.Ranges[ri].EntryCnt - ei
			if remEnts > colEnts {
				ei += colEnts
				colEnts = 0
			} else {
				colEnts -= remEnts
				ri++
				ei = 0
			}
		} else {
			ri++
			ei = 0
		}
		da = bm.Addr(ri, ei)
	}
	return BMPos{RI: ri, EI: ei}
}

// PrevPos returns the position immediately before p.
func (bm *BufferMap) PrevPos(p BMPos) BMPos {
	if p.RI == 0 && p.EI == 0 {
		return BMPos{}
	}
	if p.EI > 0 {
		return BMPos{RI: p.RI, EI: p.EI - 1}
	}
	return BMPos{RI: p.RI - 1, EI: bm.Ranges[p.RI-1].EntryCnt - 1}
}

// EntryCount reports the number of entries from start up to, not
// including, end.
func (bm *BufferMap) EntryCount(start, end BMPos) int {
	ret := 0
	ri, ei := start.RI, start.EI
	for ri < len(bm.Ranges) && ri < end.RI {
		ret += bm.Ranges[ri].EntryCnt - ei
		ri++
		ei = 0
	}
	if ri < len(bm.Ranges) {
		ret += end.EI - ei
	}
	return ret
}

// Find locates the entry at DRAM address a.
func (bm *BufferMap) Find(a addr.DRAMAddr) (BMPos, bool) {
	found, ri := binsearch.Search(len(bm.Ranges), func(idx int) int {
		return addr.Compare(a, bm.Ranges[idx].Start)
	})
	if found {
		return BMPos{RI: ri, EI: 0}, true
	}

	props := bm.MSys.Mapping.Props()
	foundEntry, ei := binsearch.Search(bm.Ranges[ri].EntryCnt, func(idx int) int {
		estart := bm.Addr(ri, idx)
		r := addr.Compare(a, estart)
		if r > 0 && a.Same(addr.Row, estart) {
			// A needle whose column falls inside the entry's span counts
			// as a hit on that entry.
			diff := (int(a.Col) - int(estart.Col)) * props.CellSize
			if diff >= 0 && diff < int(bm.EntryLen) {
				return 0
			}
		}
		return r
	})
	if !foundEntry {
		return BMPos{}, false
	}
	return BMPos{RI: ri, EI: ei}, true
}

// FindSame locates an entry sharing a with the given address at DRAM level
// lvl.
func (bm *BufferMap) FindSame(a addr.DRAMAddr, lvl addr.DRAMLevel) (BMPos, bool) {
	found, ri := binsearch.Search(len(bm.Ranges), func(idx int) int {
		db := bm.Addr(idx, 0)
		if a.Same(lvl, db) {
			return 0
		}
		return addr.Compare(a, db)
	})
	if found {
		return BMPos{RI: ri, EI: 0}, true
	}
	if lvl != addr.Row {
		return BMPos{}, false
	}

	foundEntry, ei := binsearch.Search(bm.Ranges[ri].EntryCnt, func(idx int) int {
		db := bm.Addr(ri, idx)
		if a.Same(lvl, db) {
			return 0
		}
		return addr.Compare(a, db)
	})
	if !foundEntry {
		return BMPos{}, false
	}
	return BMPos{RI: ri, EI: ei}, true
}

// FindPTE locates the page table entry covering physical address pa.
func (bm *BufferMap) FindPTE(pa addr.PhysAddr) (int, bool) {
	frame := addr.PhysAddr(alignDown(uint64(pa), bm.PageSize))
	found, pos := binsearch.Search(len(bm.PTEs), func(idx int) int {
		switch {
		case bm.PTEs[idx].PA == frame:
			return 0
		case frame < bm.PTEs[idx].PA:
			return -1
		default:
			return 1
		}
	})
	return pos, found
}

// GetEntry writes out the virt<->DRAM pairing for the entry at bp.
func (bm *BufferMap) GetEntry(bp BMPos) (AddrEntry, error) {
	da := bm.Addr(bp.RI, bp.EI)
	if da == addr.BadDRAM {
		return AddrEntry{}, fmt.Errorf("bufmap: position %+v out of range", bp)
	}
	pa := bm.MSys.ResolveReverse(da)
	ptepos, ok := bm.FindPTE(pa)
	if !ok {
		panic("bufmap: resolved physical address has no owning PTE")
	}
	return AddrEntry{
		DRAMAddr: da,
		VirtP:    bm.PTEs[ptepos].VA + uintptr(uint64(pa)%bm.PageSize),
	}, nil
}

// GetEntries writes out up to maxents entries from start up to, not
// including, end.
func (bm *BufferMap) GetEntries(start, end BMPos, maxents int) []AddrEntry {
	var entries []AddrEntry
	p := start
	da := bm.Addr(p.RI, p.EI)

	for len(entries) < maxents && da != addr.BadDRAM && (p.RI < end.RI || (p.RI == end.RI && p.EI < end.EI)) {
		pa := bm.MSys.ResolveReverse(da)
		ptepos, ok := bm.FindPTE(pa)
		if !ok {
			panic("bufmap: resolved physical address has no owning PTE")
		}
		entries = append(entries, AddrEntry{
			DRAMAddr: da,
			VirtP:    bm.PTEs[ptepos].VA + uintptr(uint64(pa)%bm.PageSize),
		})
		p = bm.NextPos(p)
		da = bm.Addr(p.RI, p.EI)
	}
	return entries
}

// RowLen is a BufferMap's row length in bytes.
func (bm *BufferMap) RowLen() int {
	props := bm.MSys.Mapping.Props()
	return props.ColCount * props.CellSize
}

// EntriesPerRow is the number of entries spanning one DRAM row.
func (bm *BufferMap) EntriesPerRow() int {
	return bm.RowLen() / int(bm.EntryLen)
}
