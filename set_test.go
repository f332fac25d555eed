package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetInsertAndContains(t *testing.T) {
	s := NewSet[string](1)
	_, err := s.Insert("a")
	require.NoError(t, err)
	assert.True(t, s.Contains("a"))
	assert.False(t, s.Contains("b"))
}

func TestSetRemoveMissingValueErrors(t *testing.T) {
	s := NewSet[string](1)
	_, err := s.Remove("ghost")
	assert.ErrorIs(t, err, ErrNoSuchElement)
}

func TestSetConcurrentInsertAndRemoveOfSameValueSurvives(t *testing.T) {
	// Classic OR-Set scenario: site 1 removes a value while site 2
	// concurrently re-inserts it. The add must win because its dot was
	// never observed by the remove.
	s1 := NewSet[string](1)
	insertOp, _ := s1.Insert("x")
	s2 := FromSetState(s1.State(), 2)

	removeOp, err := s1.Remove("x")
	require.NoError(t, err)

	reinsertOp, err := s2.Insert("x")
	require.NoError(t, err)

	s1.ExecuteRemote(reinsertOp)
	s2.ExecuteRemote(removeOp)

	assert.True(t, s1.Contains("x"))
	assert.True(t, s2.Contains("x"))
	_ = insertOp
}

func TestSetMergeConverges(t *testing.T) {
	a := NewSet[string](1)
	b := NewSet[string](2)
	_, _ = a.Insert("shared")
	_, _ = a.Insert("only-a")
	_, _ = b.Insert("shared")
	_, _ = b.Insert("only-b")

	a.Merge(b)
	b.Merge(a)

	assert.ElementsMatch(t, a.Values(), b.Values())
	assert.ElementsMatch(t, []string{"shared", "only-a", "only-b"}, a.Values())
}

func TestSetAddSiteIDRewritesDots(t *testing.T) {
	s := NewSet[string](0)
	_, err := s.Insert("a")
	assert.ErrorIs(t, err, ErrAwaitingSite)

	pending, err := s.AddSiteID(5)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, uint32(5), pending[0].Dots[0].Site)
	assert.True(t, s.Contains("a"))
}
