package crdt

import (
	"sync"

	"github.com/google/btree"
)

// seqElement is the payload half of a sequence position; the ordering half
// lives in the btree as a btreeKey.
type seqElement[T any] struct {
	value T
	dot   Dot
}

// SequenceOpKind discriminates the two Sequence mutations.
type SequenceOpKind uint8

const (
	SeqInsert SequenceOpKind = iota
	SeqRemove
)

func (k SequenceOpKind) String() string {
	if k == SeqInsert {
		return "insert"
	}
	return "remove"
}

// SequenceOp is the replicable description of one Sequence mutation: an
// Insert carries the new element's key, value and dot; a Remove carries
// only the key of the element being evicted and the dot minted for the
// removal event itself (used purely for idempotence of the remove, not for
// locating the target — that's the Key).
type SequenceOp[T any] struct {
	Kind  SequenceOpKind
	Key   OrderKey
	Value T
	Dot   Dot
}

// SequenceLocalOp is the value-level effect of applying a SequenceOp: the
// index and value that changed, or Empty when the op was a duplicate.
type SequenceLocalOp[T any] struct {
	Kind  SequenceOpKind
	Index int
	Value T
	Empty bool
}

// Sequence is an ordered collection of (OrderKey, value) pairs backed by a
// balanced ordered index (google/btree), the CRDT underpinning both List
// and Text. It converges because the total order over OrderKeys is
// deterministic and because deletions are tombstoneless: a removed
// element's dot lives on in the summary, so replaying its insert (or a
// racing remove) is recognized as already-observed without needing to keep
// a tombstone element around.
type Sequence[T any] struct {
	mu       sync.RWMutex
	site     uint32
	tree     *btree.BTree
	elements map[OrderKey]seqElement[T]
	summary  summary
	cache    opCache[SequenceOp[T]]
}

// NewSequence creates an empty sequence owned by site. Pass site 0 to
// create a sequence awaiting site-id assignment (see AddSiteID).
func NewSequence[T any](site uint32) *Sequence[T] {
	return &Sequence[T]{
		site:     site,
		tree:     btree.New(32),
		elements: make(map[OrderKey]seqElement[T]),
		summary:  newSummary(),
	}
}

// Len returns the number of live elements.
func (s *Sequence[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}

// Values returns the elements in iteration order.
func (s *Sequence[T]) Values() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, 0, s.tree.Len())
	s.tree.Ascend(func(it btree.Item) bool {
		key := it.(btreeKey).key
		out = append(out, s.elements[key].value)
		return true
	})
	return out
}

// nth returns the key at iteration-order position n. Linear in the size of
// the sequence, which §5 explicitly allows ("O(log n) or O(n) bounded").
func (s *Sequence[T]) nth(n int) (OrderKey, bool) {
	var key OrderKey
	found := false
	i := 0
	s.tree.Ascend(func(it btree.Item) bool {
		if i == n {
			key = it.(btreeKey).key
			found = true
			return false
		}
		i++
		return true
	})
	return key, found
}

// Site returns the sequence's owning site id (0 if still awaiting
// assignment).
func (s *Sequence[T]) Site() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.site
}

// Get returns the value at local_index.
func (s *Sequence[T]) Get(index int) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var zero T
	key, ok := s.nth(index)
	if !ok {
		return zero, wrap(ErrInvalidIndex, "sequence get")
	}
	return s.elements[key].value, nil
}

// Insert places value at local_index, minting a fresh dot and an OrderKey
// strictly between the current neighbours at that position.
func (s *Sequence[T]) Insert(index int, value T) (SequenceOp[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.tree.Len()
	if index < 0 || index > n {
		return SequenceOp[T]{}, wrap(ErrInvalidIndex, "sequence insert")
	}

	var lo, hi *OrderKey
	if index > 0 {
		k, _ := s.nth(index - 1)
		lo = &k
	}
	if index < n {
		k, _ := s.nth(index)
		hi = &k
	}

	dot := s.summary.mint(s.site)
	key := between(lo, hi, s.site, dot.Counter)
	s.insertElement(key, value, dot)

	op := SequenceOp[T]{Kind: SeqInsert, Key: key, Value: value, Dot: dot}
	if s.site == 0 {
		s.cache.record(op)
		return SequenceOp[T]{}, wrap(ErrAwaitingSite, "sequence insert")
	}
	return op, nil
}

// Remove evicts the element at local_index, minting a fresh dot for the
// removal event.
func (s *Sequence[T]) Remove(index int) (SequenceOp[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.tree.Len()
	if index < 0 || index >= n {
		return SequenceOp[T]{}, wrap(ErrInvalidIndex, "sequence remove")
	}
	key, _ := s.nth(index)

	dot := s.summary.mint(s.site)
	s.removeElement(key)
	s.summary.insert(dot)

	op := SequenceOp[T]{Kind: SeqRemove, Key: key, Dot: dot}
	if s.site == 0 {
		s.cache.record(op)
		return SequenceOp[T]{}, wrap(ErrAwaitingSite, "sequence remove")
	}
	return op, nil
}

func (s *Sequence[T]) insertElement(key OrderKey, value T, dot Dot) {
	s.elements[key] = seqElement[T]{value: value, dot: dot}
	s.tree.ReplaceOrInsert(btreeKey{key: key})
	s.summary.insert(dot)
}

func (s *Sequence[T]) removeElement(key OrderKey) {
	if _, ok := s.elements[key]; !ok {
		return
	}
	delete(s.elements, key)
	s.tree.Delete(btreeKey{key: key})
}

// ExecuteRemote applies a remote op idempotently and reports the concrete
// value-level change it caused, or an Empty LocalOp for a duplicate.
func (s *Sequence[T]) ExecuteRemote(op SequenceOp[T]) SequenceLocalOp[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.summary.contains(op.Dot) {
		logger().Debug("sequence: discarding duplicate op", "dot", op.Dot)
		return SequenceLocalOp[T]{Empty: true}
	}

	switch op.Kind {
	case SeqInsert:
		s.insertElement(op.Key, op.Value, op.Dot)
		idx := s.indexOf(op.Key)
		return SequenceLocalOp[T]{Kind: SeqInsert, Index: idx, Value: op.Value}
	case SeqRemove:
		el, existed := s.elements[op.Key]
		idx := -1
		if existed {
			idx = s.indexOf(op.Key)
		}
		s.removeElement(op.Key)
		s.summary.insert(op.Dot)
		if !existed {
			// A competing remove already won; still record our dot above
			// so a later redelivery of this exact op is a no-op too.
			return SequenceLocalOp[T]{Empty: true}
		}
		return SequenceLocalOp[T]{Kind: SeqRemove, Index: idx, Value: el.value}
	default:
		return SequenceLocalOp[T]{Empty: true}
	}
}

// Observed reports whether dot has already been applied to this sequence,
// for callers that need to check idempotence before applying a bundle of
// ops atomically (see Text / Json).
func (s *Sequence[T]) Observed(dot Dot) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary.contains(dot)
}

// Elements returns a copy of the live (OrderKey -> value) mapping, for
// callers that need to recursively merge values keyed by position (see
// Json's nested-container merge).
func (s *Sequence[T]) Elements() map[OrderKey]T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[OrderKey]T, len(s.elements))
	for k, el := range s.elements {
		out[k] = el.value
	}
	return out
}

// indexOf returns key's iteration-order position. O(n); called only to
// project a LocalOp, never on the hot insert/remove path.
func (s *Sequence[T]) indexOf(key OrderKey) int {
	idx := -1
	i := 0
	s.tree.Ascend(func(it btree.Item) bool {
		if it.(btreeKey).key == key {
			idx = i
			return false
		}
		i++
		return true
	})
	return idx
}

// Merge folds another sequence's observed state into this one: elements the
// other side has that we haven't observed are adopted; elements we have
// that the other side has already deleted (dot observed, element absent)
// are dropped. Summaries merge by point-wise max.
func (s *Sequence[T]) Merge(other *Sequence[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	for key, el := range other.elements {
		if !s.summary.contains(el.dot) {
			if _, present := s.elements[key]; !present {
				s.insertElement(key, el.value, el.dot)
			}
		}
	}
	for key, el := range s.elements {
		if _, present := other.elements[key]; !present && other.summary.contains(el.dot) {
			s.removeElement(key)
		}
	}
	s.summary.merge(&other.summary)
}

// AddSiteID assigns site to a sequence created without one, rewriting every
// site-0 dot and key in its state and draining the cache of ops minted
// while awaiting assignment.
func (s *Sequence[T]) AddSiteID(site uint32) ([]SequenceOp[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.site != 0 {
		return nil, wrap(ErrAlreadyHasSiteId, "sequence")
	}

	s.summary.rewriteSite(site)

	rewritten := make(map[OrderKey]seqElement[T], len(s.elements))
	newTree := btree.New(32)
	for key, el := range s.elements {
		nk := key
		if nk.Site == 0 {
			nk.Site = site
		}
		nd := el.dot
		if nd.Site == 0 {
			nd.Site = site
		}
		rewritten[nk] = seqElement[T]{value: el.value, dot: nd}
		newTree.ReplaceOrInsert(btreeKey{key: nk})
	}
	s.elements = rewritten
	s.tree = newTree

	pending := s.cache.drain()
	for i := range pending {
		if pending[i].Key.Site == 0 {
			pending[i].Key.Site = site
		}
		if pending[i].Dot.Site == 0 {
			pending[i].Dot.Site = site
		}
	}
	s.site = site
	logger().Debug("sequence: assigned site id", "site", site, "cached_ops", len(pending))
	return pending, nil
}

// SequenceElementState is the wire projection of one live element.
type SequenceElementState[T any] struct {
	Key   OrderKey `json:"key" msgpack:"key"`
	Value T        `json:"value" msgpack:"value"`
	Dot   Dot      `json:"dot" msgpack:"dot"`
}

// SequenceState is the full snapshot of a Sequence, without the owning
// site id (supplied separately at FromSequenceState).
type SequenceState[T any] struct {
	Elements []SequenceElementState[T] `json:"elements" msgpack:"elements"`
	Summary  []SummaryEntry            `json:"summary" msgpack:"summary"`
}

// State snapshots the sequence for replication or persistence.
func (s *Sequence[T]) State() SequenceState[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	elements := make([]SequenceElementState[T], 0, len(s.elements))
	s.tree.Ascend(func(it btree.Item) bool {
		key := it.(btreeKey).key
		el := s.elements[key]
		elements = append(elements, SequenceElementState[T]{Key: key, Value: el.value, Dot: el.dot})
		return true
	})
	return SequenceState[T]{Elements: elements, Summary: s.summary.entries()}
}

// FromSequenceState rebuilds a sequence from a snapshot, bound to site.
func FromSequenceState[T any](state SequenceState[T], site uint32) *Sequence[T] {
	s := NewSequence[T](site)
	s.summary = summaryFromEntries(state.Summary)
	for _, el := range state.Elements {
		s.elements[el.Key] = seqElement[T]{value: el.Value, dot: el.Dot}
		s.tree.ReplaceOrInsert(btreeKey{key: el.Key})
	}
	return s
}
