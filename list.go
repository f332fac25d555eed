package crdt

// List is a typed ordered sequence: a thin constraint over Sequence that
// pins the payload type and exposes the local-mutation vocabulary spec.md
// §4.I asks for (insert/remove by index) without re-deriving the ordering
// or merge machinery, which Sequence already provides.
type List[T any] struct {
	seq *Sequence[T]
}

// NewList creates an empty List owned by site.
func NewList[T any](site uint32) *List[T] {
	return &List[T]{seq: NewSequence[T](site)}
}

// Len returns the number of elements.
func (l *List[T]) Len() int { return l.seq.Len() }

// Values returns the elements in order.
func (l *List[T]) Values() []T { return l.seq.Values() }

// Get returns the element at index.
func (l *List[T]) Get(index int) (T, error) { return l.seq.Get(index) }

// Insert places value at index, returning the op to replicate.
func (l *List[T]) Insert(index int, value T) (SequenceOp[T], error) {
	return l.seq.Insert(index, value)
}

// Remove evicts the element at index, returning the op to replicate.
func (l *List[T]) Remove(index int) (SequenceOp[T], error) {
	return l.seq.Remove(index)
}

// ExecuteRemote applies a remote op.
func (l *List[T]) ExecuteRemote(op SequenceOp[T]) SequenceLocalOp[T] {
	return l.seq.ExecuteRemote(op)
}

// Merge folds another List's observed state into this one.
func (l *List[T]) Merge(other *List[T]) {
	l.seq.Merge(other.seq)
}

// AddSiteID assigns site to a List created without one.
func (l *List[T]) AddSiteID(site uint32) ([]SequenceOp[T], error) {
	return l.seq.AddSiteID(site)
}

// State snapshots the list.
func (l *List[T]) State() SequenceState[T] { return l.seq.State() }

// FromListState rebuilds a List from a snapshot, bound to site.
func FromListState[T any](state SequenceState[T], site uint32) *List[T] {
	return &List[T]{seq: FromSequenceState(state, site)}
}
