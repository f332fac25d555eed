package crdt

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"github.com/go-openapi/jsonpointer"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// reservedTypeKey is the Object key reserved for the wire format's runtime
// type discriminator; user operations may never target it.
const reservedTypeKey = "__TYPE__"

// JsonTag discriminates the dynamic shape of a JsonNode.
type JsonTag uint8

const (
	JsonNull JsonTag = iota
	JsonBool
	JsonNumber
	JsonText
	JsonArray
	JsonObject
)

func (t JsonTag) String() string {
	switch t {
	case JsonBool:
		return "bool"
	case JsonNumber:
		return "number"
	case JsonText:
		return "text"
	case JsonArray:
		return "array"
	case JsonObject:
		return "object"
	default:
		return "null"
	}
}

// JsonNode is one node of a recursive JSON-shaped document: a scalar, or a
// container delegating to the Text, List or Map CRDTs. id exists purely for
// log correlation and carries no convergence meaning.
type JsonNode struct {
	id     uuid.UUID
	Tag    JsonTag
	Bool   bool
	Number float64
	Text   *Text
	Array  *List[*JsonNode]
	Object *Map[string, *JsonNode]
}

// NewJsonNull creates a null scalar node.
func NewJsonNull() *JsonNode { return &JsonNode{id: uuid.New(), Tag: JsonNull} }

// NewJsonBool creates a boolean scalar node.
func NewJsonBool(v bool) *JsonNode { return &JsonNode{id: uuid.New(), Tag: JsonBool, Bool: v} }

// NewJsonNumber creates a numeric scalar node.
func NewJsonNumber(v float64) *JsonNode { return &JsonNode{id: uuid.New(), Tag: JsonNumber, Number: v} }

// NewJsonText creates a Text node seeded with initial content, owned by
// site.
func NewJsonText(site uint32, initial string) *JsonNode {
	t := NewText(site)
	if initial != "" {
		_, _ = t.Replace(0, 0, initial)
	}
	return &JsonNode{id: uuid.New(), Tag: JsonText, Text: t}
}

// NewJsonArray creates an empty Array node, owned by site.
func NewJsonArray(site uint32) *JsonNode {
	return &JsonNode{id: uuid.New(), Tag: JsonArray, Array: NewList[*JsonNode](site)}
}

// NewJsonObject creates an empty Object node, owned by site.
func NewJsonObject(site uint32) *JsonNode {
	return &JsonNode{id: uuid.New(), Tag: JsonObject, Object: NewMap[string, *JsonNode](site)}
}

// JsonOp is the replicable description of one Json mutation: the pointer to
// the container the op was applied against, plus exactly one of the
// underlying component ops it delegated to.
type JsonOp struct {
	Pointer string
	MapOp   *MapOp[string, *JsonNode]
	ListOp  *SequenceOp[*JsonNode]
	TextOps []SequenceOp[rune]
}

// JsonMapOpState is the wire-safe projection of a MapOp[string, *JsonNode]:
// InsertValue is flattened through nodeToState so a nested Text/Array/Object
// subtree survives encoding instead of marshaling as an opaque pointer.
type JsonMapOpState struct {
	Key         string         `json:"key" msgpack:"key"`
	RemoveDots  []Dot          `json:"removeDots" msgpack:"removeDots"`
	HasInsert   bool           `json:"hasInsert" msgpack:"hasInsert"`
	InsertValue JsonNodeState  `json:"insertValue" msgpack:"insertValue"`
	InsertDot   Dot            `json:"insertDot" msgpack:"insertDot"`
}

// JsonListOpState is the wire-safe projection of a SequenceOp[*JsonNode],
// flattening Value the same way JsonMapOpState flattens InsertValue.
type JsonListOpState struct {
	Kind  SequenceOpKind `json:"kind" msgpack:"kind"`
	Key   OrderKey       `json:"key" msgpack:"key"`
	Value JsonNodeState  `json:"value" msgpack:"value"`
	Dot   Dot            `json:"dot" msgpack:"dot"`
}

// JsonOpState is the wire-safe projection of a JsonOp. JsonOp itself carries
// *JsonNode payloads whose Text/Array/Object fields hold unexported CRDT
// state (text.go, list.go, map.go); encoding those directly with
// encoding/json or msgpack silently drops their content to an empty object
// and decodes back to a nil-backed node that panics on first use. JsonOp's
// MarshalJSON/UnmarshalJSON and EncodeMsgpack/DecodeMsgpack route through
// this type and nodeToState/nodeFromState instead, so encode/decode
// round-trips the full subtree.
type JsonOpState struct {
	Pointer string             `json:"pointer" msgpack:"pointer"`
	MapOp   *JsonMapOpState    `json:"mapOp,omitempty" msgpack:"mapOp,omitempty"`
	ListOp  *JsonListOpState   `json:"listOp,omitempty" msgpack:"listOp,omitempty"`
	TextOps []SequenceOp[rune] `json:"textOps,omitempty" msgpack:"textOps,omitempty"`
}

func jsonOpToState(op JsonOp) JsonOpState {
	state := JsonOpState{Pointer: op.Pointer, TextOps: op.TextOps}
	if op.MapOp != nil {
		mo := JsonMapOpState{
			Key:        op.MapOp.Key,
			RemoveDots: op.MapOp.RemoveDots,
			HasInsert:  op.MapOp.HasInsert,
			InsertDot:  op.MapOp.InsertDot,
		}
		if op.MapOp.HasInsert && op.MapOp.InsertValue != nil {
			mo.InsertValue = nodeToState(op.MapOp.InsertValue)
		}
		state.MapOp = &mo
	}
	if op.ListOp != nil {
		lo := JsonListOpState{Kind: op.ListOp.Kind, Key: op.ListOp.Key, Dot: op.ListOp.Dot}
		if op.ListOp.Kind == SeqInsert && op.ListOp.Value != nil {
			lo.Value = nodeToState(op.ListOp.Value)
		}
		state.ListOp = &lo
	}
	return state
}

// jsonOpFromState rebuilds a JsonOp from its wire projection. Any nested
// Text/Array/Object subtree carried by the op is reconstructed with site 0
// (awaiting assignment): the wire form carries no site context, and a
// caller that needs the subtree to be locally mutable after applying the op
// assigns one explicitly via AddSiteID, same as any other site-0 component.
func jsonOpFromState(state JsonOpState) JsonOp {
	op := JsonOp{Pointer: state.Pointer, TextOps: state.TextOps}
	if state.MapOp != nil {
		mo := MapOp[string, *JsonNode]{
			Key:        state.MapOp.Key,
			RemoveDots: state.MapOp.RemoveDots,
			HasInsert:  state.MapOp.HasInsert,
			InsertDot:  state.MapOp.InsertDot,
		}
		if state.MapOp.HasInsert {
			mo.InsertValue = nodeFromState(state.MapOp.InsertValue, 0)
		}
		op.MapOp = &mo
	}
	if state.ListOp != nil {
		lo := SequenceOp[*JsonNode]{Kind: state.ListOp.Kind, Key: state.ListOp.Key, Dot: state.ListOp.Dot}
		if state.ListOp.Kind == SeqInsert {
			lo.Value = nodeFromState(state.ListOp.Value, 0)
		}
		op.ListOp = &lo
	}
	return op
}

// MarshalJSON encodes the op through JsonOpState so nested container
// payloads round-trip instead of marshaling as unexported-field structs.
func (op JsonOp) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonOpToState(op))
}

// UnmarshalJSON decodes the op through JsonOpState.
func (op *JsonOp) UnmarshalJSON(data []byte) error {
	var state JsonOpState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	*op = jsonOpFromState(state)
	return nil
}

// EncodeMsgpack implements msgpack.CustomEncoder, mirroring MarshalJSON.
func (op JsonOp) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(jsonOpToState(op))
}

// DecodeMsgpack implements msgpack.CustomDecoder, mirroring UnmarshalJSON.
func (op *JsonOp) DecodeMsgpack(dec *msgpack.Decoder) error {
	var state JsonOpState
	if err := dec.Decode(&state); err != nil {
		return err
	}
	*op = jsonOpFromState(state)
	return nil
}

// Json is a recursive JSON-shaped document CRDT: an Object/Array/Text/
// Number/Bool/Null tree addressed by JSON Pointer, where every mutation
// below the root delegates to the Map, List or Text CRDT backing the
// pointer's parent container.
type Json struct {
	mu   sync.RWMutex
	site uint32
	root *JsonNode
}

// NewJson wraps root as a document owned by site. The root's tag is fixed
// for the lifetime of the document.
func NewJson(site uint32, root *JsonNode) *Json {
	return &Json{site: site, root: root}
}

// Root returns the document's root node.
func (j *Json) Root() *JsonNode {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.root
}

func decodeTokens(pointer string) ([]string, error) {
	if pointer == "" {
		return nil, nil
	}
	p, err := jsonpointer.New(pointer)
	if err != nil {
		return nil, wrap(ErrInvalidPointer, "json: malformed pointer")
	}
	return p.DecodedTokens(), nil
}

func escapeToken(tok string) string {
	tok = strings.ReplaceAll(tok, "~", "~0")
	tok = strings.ReplaceAll(tok, "/", "~1")
	return tok
}

func joinPointer(base string, tok string) string {
	return base + "/" + escapeToken(tok)
}

func navigate(node *JsonNode, tokens []string) (*JsonNode, error) {
	for _, tok := range tokens {
		switch node.Tag {
		case JsonObject:
			child, ok := node.Object.Get(tok)
			if !ok {
				return nil, wrap(ErrInvalidPointer, "json: no such key")
			}
			node = child
		case JsonArray:
			idx, err := strconv.Atoi(tok)
			if err != nil || idx < 0 {
				return nil, wrap(ErrInvalidPointer, "json: invalid array index")
			}
			child, err := node.Array.Get(idx)
			if err != nil {
				return nil, wrap(ErrInvalidPointer, "json: array index out of range")
			}
			node = child
		default:
			return nil, wrap(ErrInvalidPointer, "json: cannot descend into a scalar")
		}
	}
	return node, nil
}

// Insert places value under pointer. pointer's parent must resolve to
// Object, Array or Text; root itself (pointer == "") can never be the
// insert target.
func (j *Json) Insert(pointer string, value *JsonNode) (JsonOp, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	tokens, err := decodeTokens(pointer)
	if err != nil {
		return JsonOp{}, err
	}
	if len(tokens) == 0 {
		return JsonOp{}, wrap(ErrInvalidPointer, "json: cannot insert at root")
	}
	last := tokens[len(tokens)-1]
	parentPointer := "/" + strings.Join(tokens[:len(tokens)-1], "/")
	if len(tokens) == 1 {
		parentPointer = ""
	}
	parent, err := navigate(j.root, tokens[:len(tokens)-1])
	if err != nil {
		return JsonOp{}, err
	}

	switch parent.Tag {
	case JsonObject:
		if last == reservedTypeKey {
			return JsonOp{}, wrap(ErrInvalidKey, "json: __TYPE__ is reserved")
		}
		op, err := parent.Object.Insert(last, value)
		if err != nil {
			return JsonOp{}, err
		}
		return JsonOp{Pointer: parentPointer, MapOp: &op}, nil
	case JsonArray:
		idx, err := strconv.Atoi(last)
		if err != nil || idx < 0 || idx > parent.Array.Len() {
			return JsonOp{}, wrap(ErrInvalidIndex, "json: array insert index")
		}
		op, err := parent.Array.Insert(idx, value)
		if err != nil {
			return JsonOp{}, err
		}
		return JsonOp{Pointer: parentPointer, ListOp: &op}, nil
	case JsonText:
		if value.Tag != JsonText {
			return JsonOp{}, wrap(ErrInvalidPointer, "json: text insert requires text content")
		}
		idx, err := strconv.Atoi(last)
		if err != nil || idx < 0 {
			return JsonOp{}, wrap(ErrInvalidIndex, "json: text insert index")
		}
		ops, err := parent.Text.Replace(idx, 0, value.Text.String())
		if err != nil {
			return JsonOp{}, err
		}
		return JsonOp{Pointer: parentPointer, TextOps: ops}, nil
	default:
		return JsonOp{}, wrap(ErrInvalidPointer, "json: parent is not a container")
	}
}

// Remove evicts the value at pointer.
func (j *Json) Remove(pointer string) (JsonOp, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	tokens, err := decodeTokens(pointer)
	if err != nil {
		return JsonOp{}, err
	}
	if len(tokens) == 0 {
		return JsonOp{}, wrap(ErrInvalidPointer, "json: cannot remove root")
	}
	last := tokens[len(tokens)-1]
	parentPointer := "/" + strings.Join(tokens[:len(tokens)-1], "/")
	if len(tokens) == 1 {
		parentPointer = ""
	}
	parent, err := navigate(j.root, tokens[:len(tokens)-1])
	if err != nil {
		return JsonOp{}, err
	}

	switch parent.Tag {
	case JsonObject:
		op, err := parent.Object.Remove(last)
		if err != nil {
			return JsonOp{}, err
		}
		return JsonOp{Pointer: parentPointer, MapOp: &op}, nil
	case JsonArray:
		idx, err := strconv.Atoi(last)
		if err != nil || idx < 0 {
			return JsonOp{}, wrap(ErrInvalidIndex, "json: array remove index")
		}
		op, err := parent.Array.Remove(idx)
		if err != nil {
			return JsonOp{}, err
		}
		return JsonOp{Pointer: parentPointer, ListOp: &op}, nil
	default:
		return JsonOp{}, wrap(ErrInvalidPointer, "json: cannot remove from a non-container")
	}
}

// ReplaceText edits the Text node at pointer in place.
func (j *Json) ReplaceText(pointer string, index, length int, replacement string) (JsonOp, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	tokens, err := decodeTokens(pointer)
	if err != nil {
		return JsonOp{}, err
	}
	node, err := navigate(j.root, tokens)
	if err != nil {
		return JsonOp{}, err
	}
	if node.Tag != JsonText {
		return JsonOp{}, wrap(ErrInvalidPointer, "json: pointer does not resolve to text")
	}
	ops, err := node.Text.Replace(index, length, replacement)
	if err != nil {
		return JsonOp{}, err
	}
	return JsonOp{Pointer: pointer, TextOps: ops}, nil
}

// ExecuteRemote resolves op's pointer and delegates to the addressed
// container.
func (j *Json) ExecuteRemote(op JsonOp) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	tokens, err := decodeTokens(op.Pointer)
	if err != nil {
		return err
	}
	node, err := navigate(j.root, tokens)
	if err != nil {
		return err
	}

	switch {
	case op.MapOp != nil:
		if node.Tag != JsonObject {
			return wrap(ErrInvalidPointer, "json: remote map op against non-object")
		}
		node.Object.ExecuteRemote(*op.MapOp)
	case op.ListOp != nil:
		if node.Tag != JsonArray {
			return wrap(ErrInvalidPointer, "json: remote list op against non-array")
		}
		node.Array.ExecuteRemote(*op.ListOp)
	case len(op.TextOps) > 0:
		if node.Tag != JsonText {
			return wrap(ErrInvalidPointer, "json: remote text op against non-text")
		}
		node.Text.ExecuteRemoteBundle(op.TextOps)
	}
	return nil
}

// Merge performs a state-based convergence of two documents by merging
// their roots container-by-container, recursing into children that are
// live on both sides so their own concurrent edits converge too.
func (j *Json) Merge(other *Json) {
	j.mu.Lock()
	defer j.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()
	mergeNode(j.root, other.root)
}

func mergeNode(dst, src *JsonNode) {
	if dst.Tag != src.Tag {
		logger().Warn("json: merge type mismatch, keeping destination", "node", dst.id, "dst", dst.Tag, "src", src.Tag)
		return
	}
	switch dst.Tag {
	case JsonObject:
		dst.Object.Merge(src.Object)
		for _, k := range dst.Object.Keys() {
			dv, _ := dst.Object.Get(k)
			if sv, ok := src.Object.Get(k); ok && dv != sv {
				mergeNode(dv, sv)
			}
		}
	case JsonArray:
		dst.Array.Merge(src.Array)
		dm := dst.Array.seq.Elements()
		sm := src.Array.seq.Elements()
		for key, dv := range dm {
			if sv, ok := sm[key]; ok && dv != sv {
				mergeNode(dv, sv)
			}
		}
	case JsonText:
		dst.Text.Merge(src.Text)
	}
}

// AddSiteID assigns site to a document created without one, recursing into
// every nested container and converting each one's drained ops into JsonOp
// entries addressed by the pointer at which the container lives.
func (j *Json) AddSiteID(site uint32) ([]JsonOp, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.site != 0 {
		return nil, wrap(ErrAlreadyHasSiteId, "json")
	}
	ops := addSiteRecursive(j.root, site, "")
	j.site = site
	return ops, nil
}

func addSiteRecursive(node *JsonNode, site uint32, pointer string) []JsonOp {
	var ops []JsonOp
	switch node.Tag {
	case JsonObject:
		pending, err := node.Object.AddSiteID(site)
		if err == nil {
			for _, op := range pending {
				op := op
				ops = append(ops, JsonOp{Pointer: pointer, MapOp: &op})
			}
		}
		for _, k := range node.Object.Keys() {
			child, _ := node.Object.Get(k)
			ops = append(ops, addSiteRecursive(child, site, joinPointer(pointer, k))...)
		}
	case JsonArray:
		pending, err := node.Array.AddSiteID(site)
		if err == nil {
			for _, op := range pending {
				op := op
				ops = append(ops, JsonOp{Pointer: pointer, ListOp: &op})
			}
		}
		for i, child := range node.Array.Values() {
			ops = append(ops, addSiteRecursive(child, site, joinPointer(pointer, strconv.Itoa(i)))...)
		}
	case JsonText:
		pending, err := node.Text.AddSiteID(site)
		if err == nil && len(pending) > 0 {
			ops = append(ops, JsonOp{Pointer: pointer, TextOps: pending})
		}
	}
	return ops
}

// JsonNodeState is the wire projection of one JsonNode, carrying an
// explicit type tag so a polymorphic tree round-trips through encoding/json
// or msgpack without external schema.
type JsonNodeState struct {
	Type   string                           `json:"__TYPE__" msgpack:"__TYPE__"`
	Bool   bool                             `json:"bool,omitempty" msgpack:"bool,omitempty"`
	Number float64                          `json:"number,omitempty" msgpack:"number,omitempty"`
	Text   *SequenceState[rune]             `json:"text,omitempty" msgpack:"text,omitempty"`
	Array  *SequenceState[JsonNodeState]    `json:"array,omitempty" msgpack:"array,omitempty"`
	Object *MapState[string, JsonNodeState] `json:"object,omitempty" msgpack:"object,omitempty"`
}

// JsonState is the full document snapshot.
type JsonState struct {
	Root JsonNodeState `json:"root" msgpack:"root"`
}

// State snapshots the document.
func (j *Json) State() JsonState {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return JsonState{Root: nodeToState(j.root)}
}

func nodeToState(node *JsonNode) JsonNodeState {
	state := JsonNodeState{Type: node.Tag.String(), Bool: node.Bool, Number: node.Number}
	switch node.Tag {
	case JsonText:
		s := node.Text.State()
		state.Text = &s
	case JsonArray:
		raw := node.Array.State()
		converted := SequenceState[JsonNodeState]{Summary: raw.Summary}
		for _, el := range raw.Elements {
			converted.Elements = append(converted.Elements, SequenceElementState[JsonNodeState]{
				Key: el.Key, Dot: el.Dot, Value: nodeToState(el.Value),
			})
		}
		state.Array = &converted
	case JsonObject:
		raw := node.Object.State()
		converted := MapState[string, JsonNodeState]{Summary: raw.Summary}
		for _, cell := range raw.Cells {
			mc := MapCellState[string, JsonNodeState]{Key: cell.Key}
			for _, e := range cell.Entries {
				mc.Entries = append(mc.Entries, MapEntryState[JsonNodeState]{Dot: e.Dot, Value: nodeToState(e.Value)})
			}
			converted.Cells = append(converted.Cells, mc)
		}
		state.Object = &converted
	}
	return state
}

// FromJsonState rebuilds a document from a snapshot, bound to site.
func FromJsonState(state JsonState, site uint32) *Json {
	return NewJson(site, nodeFromState(state.Root, site))
}

func nodeFromState(state JsonNodeState, site uint32) *JsonNode {
	node := &JsonNode{id: uuid.New(), Bool: state.Bool, Number: state.Number}
	switch state.Type {
	case JsonBool.String():
		node.Tag = JsonBool
	case JsonNumber.String():
		node.Tag = JsonNumber
	case JsonText.String():
		node.Tag = JsonText
		node.Text = FromTextState(*state.Text, site)
	case JsonArray.String():
		node.Tag = JsonArray
		raw := SequenceState[*JsonNode]{Summary: state.Array.Summary}
		for _, el := range state.Array.Elements {
			raw.Elements = append(raw.Elements, SequenceElementState[*JsonNode]{
				Key: el.Key, Dot: el.Dot, Value: nodeFromState(el.Value, site),
			})
		}
		node.Array = &List[*JsonNode]{seq: FromSequenceState(raw, site)}
	case JsonObject.String():
		node.Tag = JsonObject
		raw := MapState[string, *JsonNode]{Summary: state.Object.Summary}
		for _, cell := range state.Object.Cells {
			mc := MapCellState[string, *JsonNode]{Key: cell.Key}
			for _, e := range cell.Entries {
				mc.Entries = append(mc.Entries, MapEntryState[*JsonNode]{Dot: e.Dot, Value: nodeFromState(e.Value, site)})
			}
			raw.Cells = append(raw.Cells, mc)
		}
		node.Object = FromMapState[string, *JsonNode](raw, site)
	default:
		node.Tag = JsonNull
	}
	return node
}
