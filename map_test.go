package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapInsertAndGet(t *testing.T) {
	m := NewMap[string, int](1)
	_, err := m.Insert("a", 1)
	require.NoError(t, err)

	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestMapRemoveMissingKeyErrors(t *testing.T) {
	m := NewMap[string, int](1)
	_, err := m.Remove("ghost")
	assert.ErrorIs(t, err, ErrNoSuchElement)
}

func TestMapConcurrentInsertSameKeyBothSurviveUntilResolved(t *testing.T) {
	// Scenario from the spec: site1 insert("a", 1); site2 insert("a", 2)
	// concurrently. After cross-apply, both dots are present at "a" and the
	// tie-break picks the entry with the greatest (site, counter).
	m1 := NewMap[string, int](1)
	m2 := NewMap[string, int](2)

	op1, err := m1.Insert("a", 1)
	require.NoError(t, err)
	op2, err := m2.Insert("a", 2)
	require.NoError(t, err)

	m1.ExecuteRemote(op2)
	m2.ExecuteRemote(op1)

	v1, ok := m1.Get("a")
	require.True(t, ok)
	v2, ok := m2.Get("a")
	require.True(t, ok)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 2, v1, "site 2's dot is greatest under (site, counter)")
}

func TestMapMergeUnionsKeys(t *testing.T) {
	a := NewMap[string, int](1)
	b := NewMap[string, int](2)
	_, _ = a.Insert("only-a", 1)
	_, _ = b.Insert("only-b", 2)

	a.Merge(b)
	va, _ := a.Get("only-a")
	vb, _ := a.Get("only-b")
	assert.Equal(t, 1, va)
	assert.Equal(t, 2, vb)
}

func TestMapAddSiteIDRewritesCells(t *testing.T) {
	m := NewMap[string, int](0)
	_, err := m.Insert("a", 1)
	assert.ErrorIs(t, err, ErrAwaitingSite)

	pending, err := m.AddSiteID(4)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, uint32(4), pending[0].InsertDot.Site)
	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}
