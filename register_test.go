package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegisterHoldsInitialValue(t *testing.T) {
	r := NewRegister[string](1, "init")
	assert.Equal(t, "init", r.Value())
}

func TestRegisterUpdateSupersedesPriorEntries(t *testing.T) {
	r := NewRegister[string](1, "a")
	op, err := r.Update("b")
	require.NoError(t, err)
	assert.Equal(t, "b", r.Value())
	assert.Len(t, op.SupersededDots, 1)
}

func TestRegisterConcurrentUpdatesBothSurviveUntilTieBreak(t *testing.T) {
	r1 := NewRegister[string](1, "init")
	initState := r1.State()
	r2 := FromRegisterState(initState, 2)

	op1, err := r1.Update("from-1")
	require.NoError(t, err)
	op2, err := r2.Update("from-2")
	require.NoError(t, err)

	r1.ExecuteRemote(op2)
	r2.ExecuteRemote(op1)

	assert.Equal(t, r1.Value(), r2.Value())
	assert.Equal(t, "from-2", r1.Value(), "site 2's dot is greatest under (site, counter)")
}

func TestRegisterAddSiteIDRewritesEntries(t *testing.T) {
	r := NewRegister[string](0, "seed")
	pending, err := r.AddSiteID(6)
	require.NoError(t, err)
	assert.Empty(t, pending, "constructor dot is rewritten in place, not replayed as a pending op")
	assert.Equal(t, "seed", r.Value())
}

func TestRegisterStateRoundTrip(t *testing.T) {
	r := NewRegister[int](1, 42)
	state := r.State()
	rebuilt := FromRegisterState(state, 1)
	assert.Equal(t, r.Value(), rebuilt.Value())
}
