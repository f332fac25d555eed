package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJsonInsertIntoObject(t *testing.T) {
	doc := NewJson(1, NewJsonObject(1))
	_, err := doc.Insert("/name", NewJsonText(1, "ada"))
	require.NoError(t, err)

	name, ok := doc.Root().Object.Get("name")
	require.True(t, ok)
	assert.Equal(t, "ada", name.Text.String())
}

func TestJsonInsertIntoArray(t *testing.T) {
	doc := NewJson(1, NewJsonArray(1))
	_, err := doc.Insert("/0", NewJsonNumber(1))
	require.NoError(t, err)
	_, err = doc.Insert("/1", NewJsonNumber(2))
	require.NoError(t, err)

	assert.Equal(t, 2, doc.Root().Array.Len())
	v, err := doc.Root().Array.Get(0)
	require.NoError(t, err)
	assert.Equal(t, float64(1), v.Number)
}

func TestJsonRootImmutability(t *testing.T) {
	doc := NewJson(1, NewJsonObject(1))
	_, err := doc.Insert("", NewJsonNull())
	assert.ErrorIs(t, err, ErrInvalidPointer)

	_, err = doc.Remove("")
	assert.ErrorIs(t, err, ErrInvalidPointer)
}

func TestJsonReservedTypeKeyIsRejected(t *testing.T) {
	doc := NewJson(1, NewJsonObject(1))
	_, err := doc.Insert("/__TYPE__", NewJsonNull())
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestJsonRemove(t *testing.T) {
	doc := NewJson(1, NewJsonObject(1))
	_, err := doc.Insert("/a", NewJsonBool(true))
	require.NoError(t, err)

	_, err = doc.Remove("/a")
	require.NoError(t, err)
	_, ok := doc.Root().Object.Get("a")
	assert.False(t, ok)
}

func TestJsonReplaceText(t *testing.T) {
	doc := NewJson(1, NewJsonObject(1))
	_, err := doc.Insert("/bio", NewJsonText(1, "hello"))
	require.NoError(t, err)

	_, err = doc.ReplaceText("/bio", 0, 5, "goodbye")
	require.NoError(t, err)

	node, ok := doc.Root().Object.Get("bio")
	require.True(t, ok)
	assert.Equal(t, "goodbye", node.Text.String())
}

func TestJsonConcurrentRemoveAndInsertConverge(t *testing.T) {
	a := NewJson(1, NewJsonObject(1))
	insertOp, err := a.Insert("/shared", NewJsonBool(true))
	require.NoError(t, err)
	b := FromJsonState(a.State(), 2)
	_ = insertOp

	removeOp, err := a.Remove("/shared")
	require.NoError(t, err)
	otherInsertOp, err := b.Insert("/other", NewJsonNumber(3))
	require.NoError(t, err)

	require.NoError(t, a.ExecuteRemote(otherInsertOp))
	require.NoError(t, b.ExecuteRemote(removeOp))

	_, aHasShared := a.Root().Object.Get("shared")
	_, bHasShared := b.Root().Object.Get("shared")
	assert.False(t, aHasShared)
	assert.False(t, bHasShared)

	_, aHasOther := a.Root().Object.Get("other")
	_, bHasOther := b.Root().Object.Get("other")
	assert.True(t, aHasOther)
	assert.True(t, bHasOther)
}

func TestJsonInvalidArrayIndexErrors(t *testing.T) {
	doc := NewJson(1, NewJsonArray(1))
	_, err := doc.Insert("/5", NewJsonNumber(1))
	assert.ErrorIs(t, err, ErrInvalidIndex)
}
