package crdt

import "github.com/pkg/errors"

// Text is a collaborative string: a Sequence of runes addressed by Unicode
// scalar offset rather than byte offset, so Replace behaves correctly
// against multi-byte content. Local edits are expressed as Replace, which
// bundles the deletions and insertions it implies into one slice of
// SequenceOp[rune] so callers always ship (or apply) a whole edit as one
// atomic unit rather than as separately-ordered removes and inserts.
type Text struct {
	seq *Sequence[rune]
}

// NewText creates an empty Text owned by site.
func NewText(site uint32) *Text {
	return &Text{seq: NewSequence[rune](site)}
}

// Len returns the number of runes.
func (t *Text) Len() int { return t.seq.Len() }

// String renders the current content.
func (t *Text) String() string {
	return string(t.seq.Values())
}

// Replace removes the length runes starting at index and inserts
// replacement in their place, returning the bundle of ops to replicate. A
// replace that removes nothing and inserts nothing yields an empty, nil
// bundle and is not an error: it simply has no effect to record or send.
func (t *Text) Replace(index, length int, replacement string) ([]SequenceOp[rune], error) {
	if length == 0 && replacement == "" {
		return nil, nil
	}
	if index < 0 || length < 0 || index+length > t.seq.Len() {
		return nil, wrap(ErrInvalidIndex, "text replace")
	}

	awaitingSite := t.seq.Site() == 0
	ops := make([]SequenceOp[rune], 0, length+len(replacement))
	for i := 0; i < length; i++ {
		op, err := t.seq.Remove(index)
		if err != nil && !errors.Is(err, ErrAwaitingSite) {
			return ops, err
		}
		if err == nil {
			ops = append(ops, op)
		}
	}
	at := index
	for _, r := range replacement {
		op, err := t.seq.Insert(at, r)
		if err != nil && !errors.Is(err, ErrAwaitingSite) {
			return ops, err
		}
		if err == nil {
			ops = append(ops, op)
		}
		at++
	}
	if awaitingSite {
		return nil, wrap(ErrAwaitingSite, "text replace")
	}
	return ops, nil
}

// ExecuteRemote applies one op from a replicated bundle.
func (t *Text) ExecuteRemote(op SequenceOp[rune]) SequenceLocalOp[rune] {
	return t.seq.ExecuteRemote(op)
}

// Observed reports whether dot has already been applied, used by callers
// that must honor bundle atomicity across multiple ops.
func (t *Text) Observed(dot Dot) bool {
	return t.seq.Observed(dot)
}

// ExecuteRemoteBundle applies every op in a Replace bundle, honoring bundle
// atomicity: if any insert's dot has already been observed, the whole
// bundle is skipped rather than partially applied.
func (t *Text) ExecuteRemoteBundle(ops []SequenceOp[rune]) {
	for _, op := range ops {
		if op.Kind == SeqInsert && t.Observed(op.Dot) {
			logger().Debug("text: discarding already-observed bundle")
			return
		}
	}
	for _, op := range ops {
		t.ExecuteRemote(op)
	}
}

// Merge folds another Text's observed state into this one.
func (t *Text) Merge(other *Text) {
	t.seq.Merge(other.seq)
}

// AddSiteID assigns site to a Text created without one.
func (t *Text) AddSiteID(site uint32) ([]SequenceOp[rune], error) {
	return t.seq.AddSiteID(site)
}

// State snapshots the text.
func (t *Text) State() SequenceState[rune] { return t.seq.State() }

// FromTextState rebuilds a Text from a snapshot, bound to site.
func FromTextState(state SequenceState[rune], site uint32) *Text {
	return &Text{seq: FromSequenceState(state, site)}
}
