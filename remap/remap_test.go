package remap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vusec/ramses/addr"
)

func TestRankMirrorDDR3IdentityOnRankZero(t *testing.T) {
	r := RankMirrorDDR3{}
	d := addr.DRAMAddr{Rank: 0, Bank: 5, Row: 0x1234, Col: 0x567}
	assert.Equal(t, d, r.Remap(d))
}

func TestRankMirrorDDR3Involution(t *testing.T) {
	r := RankMirrorDDR3{}
	d := addr.DRAMAddr{Rank: 1, Bank: 0x2, Row: 0x1a3, Col: 0x0f0}

	mirrored := r.Remap(d)
	assert.NotEqual(t, d, mirrored)

	back := r.RemapReverse(mirrored)
	assert.Equal(t, d, back)
}

func TestRankMirrorDDR3SwapsBankBits(t *testing.T) {
	r := RankMirrorDDR3{}
	d := addr.DRAMAddr{Rank: 1, Bank: 0b01}
	got := r.Remap(d)
	assert.Equal(t, uint8(0b10), got.Bank)
}

func TestRankMirrorDDR4Involution(t *testing.T) {
	r := RankMirrorDDR4{}
	d := addr.DRAMAddr{Rank: 1, Bank: 0b1011, Row: 0x2f01, Col: 0x1234}

	mirrored := r.Remap(d)
	back := r.RemapReverse(mirrored)
	assert.Equal(t, d, back)
}

func TestRASXorFlipsRowWhenBitSet(t *testing.T) {
	r, err := NewRASXor(13, 0x2020)
	assert := assert.New(t)
	assert.NoError(err)

	set := addr.DRAMAddr{Row: 1 << 13}
	flipped := r.Remap(set)
	assert.Equal(uint16((1<<13)^0x2020), flipped.Row)
}

func TestRASXorRoundTripWhenMaskPreservesTriggerBit(t *testing.T) {
	// A mask that leaves the trigger bit alone makes the remap an
	// involution: the reverse pass sees the same trigger and undoes the
	// XOR.
	r, err := NewRASXor(13, 0x0120)
	assert.NoError(t, err)

	set := addr.DRAMAddr{Row: 1 << 13}
	flipped := r.Remap(set)
	assert.Equal(t, uint16((1<<13)|0x0120), flipped.Row)

	back := r.RemapReverse(flipped)
	assert.Equal(t, set.Row, back.Row)
}

func TestRASXorLeavesRowWhenBitClear(t *testing.T) {
	r, err := NewRASXor(13, 0x2020)
	assert.NoError(t, err)

	clear := addr.DRAMAddr{Row: 0x40}
	assert.Equal(t, clear, r.Remap(clear))
}

func TestNewRASXorRejectsOutOfRangeBit(t *testing.T) {
	_, err := NewRASXor(16, 0)
	assert.Error(t, err)
	_, err = NewRASXor(-1, 0)
	assert.Error(t, err)
}

func TestChainAppliesInOrderAndInverts(t *testing.T) {
	chain := Chain{RankMirrorDDR3{}, mustRASXor(t, 13, 0x0120)}
	d := addr.DRAMAddr{Rank: 1, Bank: 0b01, Row: 0x21a3, Col: 0x0f0}

	remapped := chain.Remap(d)
	back := chain.RemapReverse(remapped)
	assert.Equal(t, d, back)
}

func mustRASXor(t *testing.T, bit int, mask uint16) RASXor {
	t.Helper()
	r, err := NewRASXor(bit, mask)
	if err != nil {
		t.Fatalf("NewRASXor: %v", err)
	}
	return r
}
