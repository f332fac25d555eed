package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextReplaceInsertsAndReads(t *testing.T) {
	tx := NewText(1)
	_, err := tx.Replace(0, 0, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", tx.String())
}

func TestTextReplaceHandlesUnicodeScalarsNotBytes(t *testing.T) {
	tx := NewText(1)
	_, err := tx.Replace(0, 0, "héllo")
	require.NoError(t, err)
	_, err = tx.Replace(1, 1, "é")
	require.NoError(t, err)
	assert.Equal(t, "héllo", tx.String())
	assert.Equal(t, 5, tx.Len())
}

func TestTextEmptyReplaceIsNoopAndEmitsNothing(t *testing.T) {
	tx := NewText(1)
	ops, err := tx.Replace(0, 0, "")
	require.NoError(t, err)
	assert.Nil(t, ops)
	assert.Equal(t, "", tx.String())
}

func TestTextConcurrentReplaceConverges(t *testing.T) {
	a := NewText(1)
	_, _ = a.Replace(0, 0, "abc")
	b := FromTextState(a.State(), 2)

	opsA, err := a.Replace(1, 1, "X")
	require.NoError(t, err)
	opsB, err := b.Replace(2, 1, "Y")
	require.NoError(t, err)

	for _, op := range opsB {
		a.ExecuteRemote(op)
	}
	for _, op := range opsA {
		b.ExecuteRemote(op)
	}

	assert.Equal(t, a.String(), b.String())
}

func TestTextAddSiteIDRewritesPendingBundle(t *testing.T) {
	tx := NewText(0)
	ops, err := tx.Replace(0, 0, "hi")
	assert.ErrorIs(t, err, ErrAwaitingSite)
	assert.Nil(t, ops)
	assert.Equal(t, "hi", tx.String(), "the edit still applies locally while awaiting a site id")

	pending, err := tx.AddSiteID(8)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, op := range pending {
		assert.Equal(t, uint32(8), op.Dot.Site)
	}
}
