package crdt

import "sync"

// RegisterOp is the replicable description of a Register update: the
// freshly minted dot and value, plus every dot it superseded (so peers
// subtract exactly those and nothing more, letting a concurrent update
// from another site survive until it too is superseded).
type RegisterOp[V any] struct {
	Value          V
	Dot            Dot
	SupersededDots []Dot
}

// RegisterLocalOp is the value-level effect of applying a RegisterOp.
type RegisterLocalOp[V any] struct {
	Value V
	Empty bool
}

// Register is a Multi-Value Register: concurrent updates both survive the
// merge as separate (value, dot) entries, with Value() picking a
// deterministic winner — the entry whose dot is greatest under (site,
// counter) — for display, so that every replica's read agrees even while
// multiple entries remain resident.
type Register[V any] struct {
	mu      sync.RWMutex
	site    uint32
	entries map[Dot]V
	summary summary
	cache   opCache[RegisterOp[V]]
}

// NewRegister creates a Register owned by site, holding value as its
// initial entry under a dot minted at construction.
func NewRegister[V any](site uint32, value V) *Register[V] {
	r := &Register[V]{
		site:    site,
		entries: make(map[Dot]V),
		summary: newSummary(),
	}
	dot := r.summary.mint(site)
	r.entries[dot] = value
	return r
}

// Value returns the current display value: the entry with the greatest
// dot, tie-broken by (site, counter).
func (r *Register[V]) Value() V {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		best  Dot
		value V
		found bool
	)
	for d, v := range r.entries {
		if !found || best.Less(d) {
			best, value, found = d, v, true
		}
	}
	return value
}

// Update replaces the register's entire observed state with value,
// minting a fresh dot and recording every dot it supersedes.
func (r *Register[V]) Update(value V) (RegisterOp[V], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	superseded := make([]Dot, 0, len(r.entries))
	for d := range r.entries {
		superseded = append(superseded, d)
	}
	dot := r.summary.mint(r.site)
	r.entries = map[Dot]V{dot: value}
	r.summary.insert(dot)

	op := RegisterOp[V]{Value: value, Dot: dot, SupersededDots: superseded}
	if r.site == 0 {
		r.cache.record(op)
		return RegisterOp[V]{}, wrap(ErrAwaitingSite, "register update")
	}
	return op, nil
}

// ExecuteRemote applies a remote op idempotently.
func (r *Register[V]) ExecuteRemote(op RegisterOp[V]) RegisterLocalOp[V] {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := false
	for _, d := range op.SupersededDots {
		if _, ok := r.entries[d]; ok {
			delete(r.entries, d)
			changed = true
		}
		r.summary.insert(d)
	}
	if !r.summary.contains(op.Dot) {
		r.entries[op.Dot] = op.Value
		r.summary.insert(op.Dot)
		changed = true
	}
	if !changed {
		logger().Debug("register: discarding duplicate op", "dot", op.Dot)
		return RegisterLocalOp[V]{Empty: true}
	}
	return RegisterLocalOp[V]{Value: r.valueLocked()}
}

func (r *Register[V]) valueLocked() V {
	var (
		best  Dot
		value V
		found bool
	)
	for d, v := range r.entries {
		if !found || best.Less(d) {
			best, value, found = d, v, true
		}
	}
	return value
}

// Merge unions the two registers' entries using the same per-dot OR
// semantics as Set and Map.
func (r *Register[V]) Merge(other *Register[V]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	merged := make(map[Dot]V, len(r.entries)+len(other.entries))
	for d, v := range r.entries {
		if _, inTheirs := other.entries[d]; inTheirs || !other.summary.contains(d) {
			merged[d] = v
		}
	}
	for d, v := range other.entries {
		if _, inMine := r.entries[d]; inMine || !r.summary.contains(d) {
			merged[d] = v
		}
	}
	r.entries = merged
	r.summary.merge(&other.summary)
}

// AddSiteID assigns site to a Register created without one.
func (r *Register[V]) AddSiteID(site uint32) ([]RegisterOp[V], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.site != 0 {
		return nil, wrap(ErrAlreadyHasSiteId, "register")
	}
	r.summary.rewriteSite(site)

	rewritten := make(map[Dot]V, len(r.entries))
	for d, v := range r.entries {
		if d.Site == 0 {
			d.Site = site
		}
		rewritten[d] = v
	}
	r.entries = rewritten

	pending := r.cache.drain()
	for i := range pending {
		if pending[i].Dot.Site == 0 {
			pending[i].Dot.Site = site
		}
		for j := range pending[i].SupersededDots {
			if pending[i].SupersededDots[j].Site == 0 {
				pending[i].SupersededDots[j].Site = site
			}
		}
	}
	r.site = site
	logger().Debug("register: assigned site id", "site", site, "cached_ops", len(pending))
	return pending, nil
}

// RegisterEntryState is the wire projection of one surviving entry.
type RegisterEntryState[V any] struct {
	Dot   Dot `json:"dot" msgpack:"dot"`
	Value V   `json:"value" msgpack:"value"`
}

// RegisterState is the full snapshot of a Register, without the owning
// site id.
type RegisterState[V any] struct {
	Entries []RegisterEntryState[V] `json:"entries" msgpack:"entries"`
	Summary []SummaryEntry          `json:"summary" msgpack:"summary"`
}

// State snapshots the register.
func (r *Register[V]) State() RegisterState[V] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]RegisterEntryState[V], 0, len(r.entries))
	for d, v := range r.entries {
		entries = append(entries, RegisterEntryState[V]{Dot: d, Value: v})
	}
	return RegisterState[V]{Entries: entries, Summary: r.summary.entries()}
}

// FromRegisterState rebuilds a Register from a snapshot, bound to site.
func FromRegisterState[V any](state RegisterState[V], site uint32) *Register[V] {
	r := &Register[V]{
		site:    site,
		entries: make(map[Dot]V),
		summary: summaryFromEntries(state.Summary),
	}
	for _, e := range state.Entries {
		r.entries[e.Dot] = e.Value
	}
	return r
}
