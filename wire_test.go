package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceStateRoundTripsThroughJSON(t *testing.T) {
	s := NewSequence[string](1)
	_, _ = s.Insert(0, "a")
	_, _ = s.Insert(1, "b")
	state := s.State()

	data, err := EncodeJSON(state)
	require.NoError(t, err)

	decoded, err := DecodeJSON[SequenceState[string]](data)
	require.NoError(t, err)

	rebuilt := FromSequenceState(decoded, 1)
	assert.Equal(t, s.Values(), rebuilt.Values())
}

func TestSequenceStateRoundTripsThroughMsgPack(t *testing.T) {
	s := NewSequence[string](1)
	_, _ = s.Insert(0, "x")
	state := s.State()

	data, err := EncodeMsgPack(state)
	require.NoError(t, err)

	decoded, err := DecodeMsgPack[SequenceState[string]](data)
	require.NoError(t, err)

	rebuilt := FromSequenceState(decoded, 1)
	assert.Equal(t, s.Values(), rebuilt.Values())
}

func TestCounterOpRoundTripsBothFormats(t *testing.T) {
	op := CounterOp{Site: 4, Pos: 9, Neg: 2}

	jsonData, err := EncodeJSON(op)
	require.NoError(t, err)
	jsonDecoded, err := DecodeJSON[CounterOp](jsonData)
	require.NoError(t, err)
	assert.Equal(t, op, jsonDecoded)

	packData, err := EncodeMsgPack(op)
	require.NoError(t, err)
	packDecoded, err := DecodeMsgPack[CounterOp](packData)
	require.NoError(t, err)
	assert.Equal(t, op, packDecoded)
}

func TestMapStateRoundTripsThroughBothFormats(t *testing.T) {
	m := NewMap[string, int](1)
	_, _ = m.Insert("a", 1)
	_, _ = m.Insert("b", 2)
	state := m.State()

	jsonData, err := EncodeJSON(state)
	require.NoError(t, err)
	jsonDecoded, err := DecodeJSON[MapState[string, int]](jsonData)
	require.NoError(t, err)
	jsonRebuilt := FromMapState[string, int](jsonDecoded, 1)

	packData, err := EncodeMsgPack(state)
	require.NoError(t, err)
	packDecoded, err := DecodeMsgPack[MapState[string, int]](packData)
	require.NoError(t, err)
	packRebuilt := FromMapState[string, int](packDecoded, 1)

	va, _ := jsonRebuilt.Get("a")
	vb, _ := packRebuilt.Get("b")
	assert.Equal(t, 1, va)
	assert.Equal(t, 2, vb)
}

func TestSortedDotsOrdersBySiteThenCounter(t *testing.T) {
	dots := []Dot{{Site: 2, Counter: 1}, {Site: 1, Counter: 9}, {Site: 1, Counter: 2}}
	sorted := sortedDots(dots)
	assert.Equal(t, []Dot{{Site: 1, Counter: 2}, {Site: 1, Counter: 9}, {Site: 2, Counter: 1}}, sorted)
}

func TestJsonOpMapInsertRoundTripsBothFormatsWithNestedContent(t *testing.T) {
	doc := NewJson(1, NewJsonObject(1))
	nested := NewJsonText(1, "hello")
	op, err := doc.Insert("/greeting", nested)
	require.NoError(t, err)
	require.NotNil(t, op.MapOp)

	jsonData, err := EncodeJSON(op)
	require.NoError(t, err)
	jsonDecoded, err := DecodeJSON[JsonOp](jsonData)
	require.NoError(t, err)
	require.NotNil(t, jsonDecoded.MapOp)
	require.NotNil(t, jsonDecoded.MapOp.InsertValue)
	require.NotNil(t, jsonDecoded.MapOp.InsertValue.Text, "nested text CRDT must survive the round trip, not decode to a nil pointer")
	assert.Equal(t, "hello", jsonDecoded.MapOp.InsertValue.Text.String())

	packData, err := EncodeMsgPack(op)
	require.NoError(t, err)
	packDecoded, err := DecodeMsgPack[JsonOp](packData)
	require.NoError(t, err)
	require.NotNil(t, packDecoded.MapOp)
	require.NotNil(t, packDecoded.MapOp.InsertValue)
	require.NotNil(t, packDecoded.MapOp.InsertValue.Text)
	assert.Equal(t, "hello", packDecoded.MapOp.InsertValue.Text.String())
}

func TestJsonOpListInsertRoundTripsNestedArray(t *testing.T) {
	doc := NewJson(1, NewJsonArray(1))
	nested := NewJsonArray(1)
	op, err := doc.Insert("/0", nested)
	require.NoError(t, err)
	require.NotNil(t, op.ListOp)

	data, err := EncodeMsgPack(op)
	require.NoError(t, err)
	decoded, err := DecodeMsgPack[JsonOp](data)
	require.NoError(t, err)
	require.NotNil(t, decoded.ListOp)
	require.NotNil(t, decoded.ListOp.Value)
	assert.NotNil(t, decoded.ListOp.Value.Array, "nested array CRDT must survive the round trip, not decode to a nil pointer")
}
