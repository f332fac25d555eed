package crdt

import "sync"

// MapOpKind discriminates the value-level effect a MapOp had locally.
type MapOpKind uint8

const (
	MapInsert MapOpKind = iota
	MapRemove
)

// MapOp is the replicable description of a Map mutation. It is a compound
// op: every insert also carries the dots it observed at that key so far
// (RemoveDots), clearing them locally the instant the insert is applied.
// A plain remove carries only RemoveDots, with HasInsert false.
type MapOp[K comparable, V any] struct {
	Key         K
	RemoveDots  []Dot
	HasInsert   bool
	InsertValue V
	InsertDot   Dot
}

// MapLocalOp is the value-level effect of applying a MapOp.
type MapLocalOp[K comparable, V any] struct {
	Kind  MapOpKind
	Key   K
	Value V
	Empty bool
}

// Map is an Observed-Remove Map. Each key holds a cell of concurrently
// surviving (dot, value) pairs — structurally the same shape as Register's
// internal state — so that concurrent inserts at the same key from
// different sites both survive the merge instead of one silently
// clobbering the other; Get resolves the display value by picking the
// entry whose dot is greatest under (site, counter).
type Map[K comparable, V any] struct {
	mu      sync.RWMutex
	site    uint32
	cells   map[K]map[Dot]V
	summary summary
	cache   opCache[MapOp[K, V]]
}

// NewMap creates an empty Map owned by site.
func NewMap[K comparable, V any](site uint32) *Map[K, V] {
	return &Map[K, V]{
		site:    site,
		cells:   make(map[K]map[Dot]V),
		summary: newSummary(),
	}
}

// Get returns the display value for key and whether it is present.
func (m *Map[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.valueAt(key)
}

// Keys returns the live keys, in no particular order.
func (m *Map[K, V]) Keys() []K {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]K, 0, len(m.cells))
	for k := range m.cells {
		out = append(out, k)
	}
	return out
}

// valueAt picks the cell entry with the greatest dot, the deterministic
// tie-break for concurrent inserts.
func (m *Map[K, V]) valueAt(key K) (V, bool) {
	cell := m.cells[key]
	var (
		best  Dot
		value V
		found bool
	)
	for d, v := range cell {
		if !found || best.Less(d) {
			best, value, found = d, v, true
		}
	}
	return value, found
}

// Insert sets key to value, minting a fresh dot and locally clearing every
// dot previously observed at key.
func (m *Map[K, V]) Insert(key K, value V) (MapOp[K, V], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dot := m.summary.mint(m.site)
	cell := m.cells[key]
	removeDots := make([]Dot, 0, len(cell))
	for d := range cell {
		removeDots = append(removeDots, d)
	}
	m.cells[key] = map[Dot]V{dot: value}
	m.summary.insert(dot)

	op := MapOp[K, V]{Key: key, RemoveDots: removeDots, HasInsert: true, InsertValue: value, InsertDot: dot}
	if m.site == 0 {
		m.cache.record(op)
		return MapOp[K, V]{}, wrap(ErrAwaitingSite, "map insert")
	}
	return op, nil
}

// Remove evicts key, returning ErrNoSuchElement if it is not currently
// live. The op carries every dot observed at key.
func (m *Map[K, V]) Remove(key K) (MapOp[K, V], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cell, ok := m.cells[key]
	if !ok || len(cell) == 0 {
		return MapOp[K, V]{}, wrap(ErrNoSuchElement, "map remove")
	}
	removeDots := make([]Dot, 0, len(cell))
	for d := range cell {
		removeDots = append(removeDots, d)
	}
	delete(m.cells, key)

	op := MapOp[K, V]{Key: key, RemoveDots: removeDots}
	if m.site == 0 {
		m.cache.record(op)
		return MapOp[K, V]{}, wrap(ErrAwaitingSite, "map remove")
	}
	return op, nil
}

// ExecuteRemote applies a remote op idempotently.
func (m *Map[K, V]) ExecuteRemote(op MapOp[K, V]) MapLocalOp[K, V] {
	m.mu.Lock()
	defer m.mu.Unlock()

	cell := m.cells[op.Key]
	changed := false
	for _, d := range op.RemoveDots {
		if cell != nil {
			if _, ok := cell[d]; ok {
				delete(cell, d)
				changed = true
			}
		}
		m.summary.insert(d)
	}
	if op.HasInsert && !m.summary.contains(op.InsertDot) {
		if cell == nil {
			cell = make(map[Dot]V)
		}
		cell[op.InsertDot] = op.InsertValue
		m.summary.insert(op.InsertDot)
		changed = true
	}

	if cell != nil && len(cell) == 0 {
		delete(m.cells, op.Key)
	} else if cell != nil {
		m.cells[op.Key] = cell
	}

	if !changed {
		logger().Debug("map: discarding duplicate op", "key", op.Key)
		return MapLocalOp[K, V]{Empty: true}
	}
	if value, ok := m.valueAt(op.Key); ok {
		return MapLocalOp[K, V]{Kind: MapInsert, Key: op.Key, Value: value}
	}
	return MapLocalOp[K, V]{Kind: MapRemove, Key: op.Key}
}

// Merge folds another map's observed state into this one, key by key, with
// the same per-dot OR-semantics as Set.
func (m *Map[K, V]) Merge(other *Map[K, V]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	keys := make(map[K]struct{}, len(m.cells)+len(other.cells))
	for k := range m.cells {
		keys[k] = struct{}{}
	}
	for k := range other.cells {
		keys[k] = struct{}{}
	}
	for key := range keys {
		mine := m.cells[key]
		theirs := other.cells[key]
		merged := make(map[Dot]V, len(mine)+len(theirs))
		for d, v := range mine {
			if _, inTheirs := theirs[d]; inTheirs || !other.summary.contains(d) {
				merged[d] = v
			}
		}
		for d, v := range theirs {
			if _, inMine := mine[d]; inMine || !m.summary.contains(d) {
				merged[d] = v
			}
		}
		if len(merged) == 0 {
			delete(m.cells, key)
		} else {
			m.cells[key] = merged
		}
	}
	m.summary.merge(&other.summary)
}

// AddSiteID assigns site to a Map created without one.
func (m *Map[K, V]) AddSiteID(site uint32) ([]MapOp[K, V], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.site != 0 {
		return nil, wrap(ErrAlreadyHasSiteId, "map")
	}
	m.summary.rewriteSite(site)

	for key, cell := range m.cells {
		rewritten := make(map[Dot]V, len(cell))
		for d, v := range cell {
			if d.Site == 0 {
				d.Site = site
			}
			rewritten[d] = v
		}
		m.cells[key] = rewritten
	}

	pending := m.cache.drain()
	for i := range pending {
		if pending[i].InsertDot.Site == 0 {
			pending[i].InsertDot.Site = site
		}
		for j := range pending[i].RemoveDots {
			if pending[i].RemoveDots[j].Site == 0 {
				pending[i].RemoveDots[j].Site = site
			}
		}
	}
	m.site = site
	logger().Debug("map: assigned site id", "site", site, "cached_ops", len(pending))
	return pending, nil
}

// MapCellState is the wire projection of one key's surviving (dot, value)
// entries.
type MapCellState[K comparable, V any] struct {
	Key     K                `json:"key" msgpack:"key"`
	Entries []MapEntryState[V] `json:"entries" msgpack:"entries"`
}

// MapEntryState is one (dot, value) pair within a cell.
type MapEntryState[V any] struct {
	Dot   Dot `json:"dot" msgpack:"dot"`
	Value V   `json:"value" msgpack:"value"`
}

// MapState is the full snapshot of a Map, without the owning site id.
type MapState[K comparable, V any] struct {
	Cells   []MapCellState[K, V] `json:"cells" msgpack:"cells"`
	Summary []SummaryEntry       `json:"summary" msgpack:"summary"`
}

// State snapshots the map.
func (m *Map[K, V]) State() MapState[K, V] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cells := make([]MapCellState[K, V], 0, len(m.cells))
	for k, cell := range m.cells {
		entries := make([]MapEntryState[V], 0, len(cell))
		for d, v := range cell {
			entries = append(entries, MapEntryState[V]{Dot: d, Value: v})
		}
		cells = append(cells, MapCellState[K, V]{Key: k, Entries: entries})
	}
	return MapState[K, V]{Cells: cells, Summary: m.summary.entries()}
}

// FromMapState rebuilds a Map from a snapshot, bound to site.
func FromMapState[K comparable, V any](state MapState[K, V], site uint32) *Map[K, V] {
	m := NewMap[K, V](site)
	m.summary = summaryFromEntries(state.Summary)
	for _, c := range state.Cells {
		cell := make(map[Dot]V, len(c.Entries))
		for _, e := range c.Entries {
			cell[e.Dot] = e.Value
		}
		m.cells[c.Key] = cell
	}
	return m
}
