package binsearch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func less(a, b int) bool { return a < b }

func TestIndexFound(t *testing.T) {
	s := []int{1, 3, 5, 7, 9, 11}
	found, idx := Index(7, s, less)
	assert.True(t, found)
	assert.Equal(t, 3, idx)
}

func TestIndexMissReturnsGreatestLess(t *testing.T) {
	s := []int{1, 3, 5, 7, 9, 11}
	found, idx := Index(6, s, less)
	assert.False(t, found)
	assert.Equal(t, 2, idx) // s[2] == 5, the greatest element < 6
}

func TestIndexMissBelowRange(t *testing.T) {
	s := []int{10, 20, 30}
	found, idx := Index(1, s, less)
	assert.False(t, found)
	assert.Equal(t, 0, idx)
}

func TestIndexSingleElement(t *testing.T) {
	s := []int{42}
	found, idx := Index(42, s, less)
	assert.True(t, found)
	assert.Equal(t, 0, idx)

	found, idx = Index(100, s, less)
	assert.False(t, found)
	assert.Equal(t, 0, idx)
}

func TestIndexEmpty(t *testing.T) {
	var s []int
	found, idx := Index(1, s, less)
	assert.False(t, found)
	assert.Equal(t, 0, idx)
}

func TestSearchAllElements(t *testing.T) {
	s := []int{2, 4, 6, 8, 10, 12, 14}
	for i, v := range s {
		found, idx := Index(v, s, less)
		assert.True(t, found)
		assert.Equal(t, i, idx)
	}
}
