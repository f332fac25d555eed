package crdt

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec describes a value that encodes itself to a text format
// (encoding/json) and a binary format (msgpack). No op or state type in
// this package implements it: they are encoded through the package-level
// EncodeJSON/EncodeMsgPack helpers below, driven by their struct tags.
type Codec interface {
	EncodeJSON() ([]byte, error)
	EncodeMsgPack() ([]byte, error)
}

// EncodeJSON marshals any tagged op or state value to its JSON form.
// Sequence states list elements in key order and every summary is sorted
// by site, but the Map, Set, Register and Counter State methods build their
// slices in Go map iteration order, so two encodings of identical content
// can differ in element order.
func EncodeJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "wire: encode json")
	}
	return data, nil
}

// DecodeJSON unmarshals JSON bytes into a T.
func DecodeJSON[T any](data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, errors.Wrap(err, "wire: decode json")
	}
	return v, nil
}

// EncodeMsgPack marshals any tagged op or state value to its canonical
// MsgPack form.
func EncodeMsgPack(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "wire: encode msgpack")
	}
	return data, nil
}

// DecodeMsgPack unmarshals MsgPack bytes into a T.
func DecodeMsgPack[T any](data []byte) (T, error) {
	var v T
	if err := msgpack.Unmarshal(data, &v); err != nil {
		return v, errors.Wrap(err, "wire: decode msgpack")
	}
	return v, nil
}

// sortedDots returns a copy of dots sorted by (site, counter). The op and
// state constructors do not call it: the dot slices in MapOp, SetOp,
// RegisterOp and the State snapshots are in Go map iteration order.
func sortedDots(dots []Dot) []Dot {
	out := make([]Dot, len(dots))
	copy(out, dots)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
