package crdt

import "sync"

// SetOpKind discriminates the two Set mutations.
type SetOpKind uint8

const (
	SetInsert SetOpKind = iota
	SetRemove
)

// SetOp is the replicable description of a Set mutation. Insert carries the
// single dot it minted; Remove carries every dot it observed for the value
// at the time of removal, so peers can subtract exactly those (letting a
// concurrent insert that added a dot not in this set survive).
type SetOp[T comparable] struct {
	Kind  SetOpKind
	Value T
	Dots  []Dot
}

// Set is an Observed-Remove Set: each live value is tagged with the
// non-empty set of dots that "observed" it (i.e. every concurrent insert
// that hasn't since been individually removed). A value is live iff its
// dot set is non-empty.
type Set[T comparable] struct {
	mu      sync.RWMutex
	site    uint32
	dots    map[T]map[Dot]struct{}
	summary summary
	cache   opCache[SetOp[T]]
}

// NewSet creates an empty Set owned by site.
func NewSet[T comparable](site uint32) *Set[T] {
	return &Set[T]{
		site:    site,
		dots:    make(map[T]map[Dot]struct{}),
		summary: newSummary(),
	}
}

// Contains reports whether value is currently live.
func (s *Set[T]) Contains(value T) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dots, ok := s.dots[value]
	return ok && len(dots) > 0
}

// Values returns the live values, in no particular order.
func (s *Set[T]) Values() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, 0, len(s.dots))
	for v, dots := range s.dots {
		if len(dots) > 0 {
			out = append(out, v)
		}
	}
	return out
}

// Insert adds value to the set, minting a fresh dot.
func (s *Set[T]) Insert(value T) (SetOp[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dot := s.summary.mint(s.site)
	s.addDot(value, dot)

	op := SetOp[T]{Kind: SetInsert, Value: value, Dots: []Dot{dot}}
	if s.site == 0 {
		s.cache.record(op)
		return SetOp[T]{}, wrap(ErrAwaitingSite, "set insert")
	}
	return op, nil
}

// Remove evicts value, returning ErrNoSuchElement if it is not currently
// live. The op carries every dot currently observed for value.
func (s *Set[T]) Remove(value T) (SetOp[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dots, ok := s.dots[value]
	if !ok || len(dots) == 0 {
		return SetOp[T]{}, wrap(ErrNoSuchElement, "set remove")
	}
	observed := make([]Dot, 0, len(dots))
	for d := range dots {
		observed = append(observed, d)
	}
	delete(s.dots, value)

	op := SetOp[T]{Kind: SetRemove, Value: value, Dots: observed}
	if s.site == 0 {
		s.cache.record(op)
		return SetOp[T]{}, wrap(ErrAwaitingSite, "set remove")
	}
	return op, nil
}

func (s *Set[T]) addDot(value T, dot Dot) {
	if s.dots[value] == nil {
		s.dots[value] = make(map[Dot]struct{})
	}
	s.dots[value][dot] = struct{}{}
	s.summary.insert(dot)
}

// ExecuteRemote applies a remote op idempotently.
func (s *Set[T]) ExecuteRemote(op SetOp[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch op.Kind {
	case SetInsert:
		dot := op.Dots[0]
		if s.summary.contains(dot) {
			logger().Debug("set: discarding duplicate insert", "dot", dot)
			return
		}
		s.addDot(op.Value, dot)
	case SetRemove:
		current := s.dots[op.Value]
		for _, d := range op.Dots {
			s.summary.insert(d)
			if current != nil {
				delete(current, d)
			}
		}
		if current != nil && len(current) == 0 {
			delete(s.dots, op.Value)
		}
	}
}

// Merge unions dot sets per value and drops any value whose dot set becomes
// empty as a result.
func (s *Set[T]) Merge(other *Set[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	// Standard OR-Set merge: a dot survives in the merged set iff both
	// sides still have it, or only one side has it and the other side
	// hasn't observed that dot yet (so it has no basis to drop it).
	values := make(map[T]struct{}, len(s.dots)+len(other.dots))
	for v := range s.dots {
		values[v] = struct{}{}
	}
	for v := range other.dots {
		values[v] = struct{}{}
	}
	for value := range values {
		mine := s.dots[value]
		theirs := other.dots[value]
		merged := make(map[Dot]struct{}, len(mine)+len(theirs))
		for d := range mine {
			if _, inTheirs := theirs[d]; inTheirs || !other.summary.contains(d) {
				merged[d] = struct{}{}
			}
		}
		for d := range theirs {
			if _, inMine := mine[d]; inMine || !s.summary.contains(d) {
				merged[d] = struct{}{}
			}
		}
		if len(merged) == 0 {
			delete(s.dots, value)
		} else {
			s.dots[value] = merged
		}
	}
	s.summary.merge(&other.summary)
}

// AddSiteID assigns site to a Set created without one.
func (s *Set[T]) AddSiteID(site uint32) ([]SetOp[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.site != 0 {
		return nil, wrap(ErrAlreadyHasSiteId, "set")
	}
	s.summary.rewriteSite(site)

	for _, dots := range s.dots {
		for d := range dots {
			if d.Site == 0 {
				delete(dots, d)
				d.Site = site
				dots[d] = struct{}{}
			}
		}
	}

	pending := s.cache.drain()
	for i := range pending {
		for j := range pending[i].Dots {
			if pending[i].Dots[j].Site == 0 {
				pending[i].Dots[j].Site = site
			}
		}
	}
	s.site = site
	logger().Debug("set: assigned site id", "site", site, "cached_ops", len(pending))
	return pending, nil
}

// SetEntryState is the wire projection of one live value and its dots.
type SetEntryState[T comparable] struct {
	Value T    `json:"value" msgpack:"value"`
	Dots  []Dot `json:"dots" msgpack:"dots"`
}

// SetState is the full snapshot of a Set, without the owning site id.
type SetState[T comparable] struct {
	Entries []SetEntryState[T] `json:"entries" msgpack:"entries"`
	Summary []SummaryEntry     `json:"summary" msgpack:"summary"`
}

// State snapshots the set.
func (s *Set[T]) State() SetState[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]SetEntryState[T], 0, len(s.dots))
	for v, dots := range s.dots {
		ds := make([]Dot, 0, len(dots))
		for d := range dots {
			ds = append(ds, d)
		}
		entries = append(entries, SetEntryState[T]{Value: v, Dots: ds})
	}
	return SetState[T]{Entries: entries, Summary: s.summary.entries()}
}

// FromSetState rebuilds a Set from a snapshot, bound to site.
func FromSetState[T comparable](state SetState[T], site uint32) *Set[T] {
	s := NewSet[T](site)
	s.summary = summaryFromEntries(state.Summary)
	for _, e := range state.Entries {
		dots := make(map[Dot]struct{}, len(e.Dots))
		for _, d := range e.Dots {
			dots[d] = struct{}{}
		}
		s.dots[e.Value] = dots
	}
	return s
}
