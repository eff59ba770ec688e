// Package binsearch implements the index-halving binary search RAMSES uses
// everywhere it needs to locate an item in a sorted slice or answer "which
// of these n candidates satisfies a monotonic predicate": the PTE table by
// physical address, the DRAM range table by DRAM order, and entry search
// within a range.
package binsearch

// Eval compares a fixed target against the candidate at idx. It must behave
// like a three-way comparison: negative if the target sorts before idx's
// candidate, zero on an exact match, positive if it sorts after.
type Eval func(idx int) int

// Search performs a binary search over the half-open interval [0, maxidx)
// driven by eval. It returns (true, idx) on an exact match. On a miss it
// returns (false, idx) where idx is the index of the greatest candidate
// that eval reported as sorting before the target (or 0 if none do).
func Search(maxidx int, eval Eval) (bool, int) {
	p := 0
	left := maxidx / 2
	right := maxidx/2 + maxidx%2
	for right != 0 {
		idx := p + left
		r := eval(idx)
		switch {
		case r == 0:
			return true, idx
		case r > 0:
			p = idx
			left = right / 2
			if right > 1 {
				right = right/2 + right%2
			} else {
				right = 0
			}
		default:
			right = left/2 + left%2
			left /= 2
		}
	}
	return false, p
}

// Index searches the sorted slice s for item using less, a strict
// less-than order. It returns (true, idx) on an exact match, where
// neither less(s[idx], item) nor less(item, s[idx]) holds. On a miss it
// returns (false, idx) where idx is the index of the greatest element
// less than item.
func Index[T any](item T, s []T, less func(a, b T) bool) (bool, int) {
	compare := func(idx int) int {
		switch {
		case less(item, s[idx]):
			return -1
		case less(s[idx], item):
			return 1
		default:
			return 0
		}
	}
	return Search(len(s), compare)
}
