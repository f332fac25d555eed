package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryMintIsMonotonic(t *testing.T) {
	s := newSummary()
	first := s.mint(1)
	second := s.mint(1)
	assert.Equal(t, uint64(1), first.Counter)
	assert.Equal(t, uint64(2), second.Counter)
	assert.True(t, s.contains(first))
	assert.True(t, s.contains(second))
	assert.False(t, s.contains(Dot{Site: 1, Counter: 3}))
}

func TestSummaryMergeTakesPointwiseMax(t *testing.T) {
	a := newSummary()
	a.insert(Dot{Site: 1, Counter: 5})
	b := newSummary()
	b.insert(Dot{Site: 1, Counter: 3})
	b.insert(Dot{Site: 2, Counter: 7})

	a.merge(&b)
	assert.True(t, a.contains(Dot{Site: 1, Counter: 5}))
	assert.True(t, a.contains(Dot{Site: 2, Counter: 7}))
	assert.False(t, a.contains(Dot{Site: 2, Counter: 8}))
}

func TestSummaryRewriteSiteMovesSentinelBucket(t *testing.T) {
	s := newSummary()
	s.insert(Dot{Site: 0, Counter: 4})
	s.rewriteSite(9)
	require.True(t, s.contains(Dot{Site: 9, Counter: 4}))
	assert.False(t, s.contains(Dot{Site: 0, Counter: 4}))
}

func TestSummaryEntriesRoundTripsSorted(t *testing.T) {
	s := newSummary()
	s.insert(Dot{Site: 3, Counter: 1})
	s.insert(Dot{Site: 1, Counter: 2})
	entries := s.entries()
	require.Len(t, entries, 2)
	assert.Equal(t, uint32(1), entries[0].Site)
	assert.Equal(t, uint32(3), entries[1].Site)

	rebuilt := summaryFromEntries(entries)
	assert.True(t, rebuilt.contains(Dot{Site: 1, Counter: 2}))
	assert.True(t, rebuilt.contains(Dot{Site: 3, Counter: 1}))
}

func TestDotLessOrdersBySiteThenCounter(t *testing.T) {
	assert.True(t, Dot{Site: 1, Counter: 9}.Less(Dot{Site: 2, Counter: 1}))
	assert.True(t, Dot{Site: 1, Counter: 1}.Less(Dot{Site: 1, Counter: 2}))
	assert.False(t, Dot{Site: 1, Counter: 2}.Less(Dot{Site: 1, Counter: 2}))
}
