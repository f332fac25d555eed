package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListCrossSiteConcurrentInsertOrderingConverges(t *testing.T) {
	l1 := NewList[string](1)
	l2 := NewList[string](2)

	op1, err := l1.Insert(0, "hello")
	require.NoError(t, err)
	op2, err := l2.Insert(0, "world")
	require.NoError(t, err)

	l1.ExecuteRemote(op2)
	l2.ExecuteRemote(op1)

	assert.Equal(t, l1.Values(), l2.Values())
	assert.Len(t, l1.Values(), 2)
}

func TestListGetAndRemove(t *testing.T) {
	l := NewList[int](1)
	_, _ = l.Insert(0, 10)
	_, _ = l.Insert(1, 20)

	v, err := l.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 20, v)

	_, err = l.Remove(0)
	require.NoError(t, err)
	assert.Equal(t, []int{20}, l.Values())
}

func TestListAddSiteIDDelegatesToSequence(t *testing.T) {
	l := NewList[string](0)
	_, err := l.Insert(0, "a")
	assert.ErrorIs(t, err, ErrAwaitingSite)

	pending, err := l.AddSiteID(3)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, uint32(3), pending[0].Dot.Site)
}
