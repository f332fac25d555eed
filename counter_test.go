package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterIncrementAndValue(t *testing.T) {
	c := NewCounter(1)
	_, err := c.Increment(5)
	require.NoError(t, err)
	_, err = c.Increment(-2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), c.Value())
}

func TestCounterConvergesRegardlessOfApplicationOrder(t *testing.T) {
	a := NewCounter(1)
	b := NewCounter(2)

	op1, _ := a.Increment(10)
	op2, _ := b.Increment(4)
	op3, _ := b.Increment(-1)

	// Each replica applies only the other replica's ops.
	a.ExecuteRemote(op2)
	a.ExecuteRemote(op3)
	b.ExecuteRemote(op1)

	assert.Equal(t, a.Value(), b.Value())
	assert.Equal(t, int64(13), a.Value())
}

func TestCounterExecuteRemoteDiscardsStaleTotals(t *testing.T) {
	c := NewCounter(1)
	_, _ = c.Increment(5)
	c.ExecuteRemote(CounterOp{Site: 1, Pos: 1, Neg: 0})
	assert.Equal(t, int64(5), c.Value(), "a lower total for an already-known site must not regress the counter")
}

func TestCounterAddSiteIDFoldsSentinelBucket(t *testing.T) {
	c := NewCounter(0)
	_, err := c.Increment(7)
	assert.ErrorIs(t, err, ErrAwaitingSite)

	pending, err := c.AddSiteID(3)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, uint32(3), pending[0].Site)
	assert.Equal(t, int64(7), c.Value())

	_, err = c.AddSiteID(4)
	assert.ErrorIs(t, err, ErrAlreadyHasSiteId)
}

func TestCounterStateRoundTrip(t *testing.T) {
	c := NewCounter(1)
	_, _ = c.Increment(9)
	rebuilt := FromCounterState(c.State(), 1)
	assert.Equal(t, c.Value(), rebuilt.Value())
}
